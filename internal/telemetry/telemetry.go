package telemetry

import (
	"sync"
	"time"
)

const dayLayout = "2006-01-02"

// Day returns the local calendar day of t, used to detect midnight rollover.
func Day(t time.Time) string {
	return t.Format(dayLayout)
}

// Merge folds snap into prev. Present fields replace the previous value and
// absent fields leave it untouched. Battery level and state only update as a
// pair. A present network type replaces the whole connection: connected and
// IP address missing from snap reset to false and empty. Merge has no side
// effects; prev is not modified.
func Merge(prev ViewState, snap Snapshot, now time.Time) ViewState {
	out := prev.Clone()

	level, hasLevel := snap.BatteryLevel.Get()
	state, hasState := snap.BatteryState.Get()
	batteryMerged := hasLevel && hasState
	if batteryMerged {
		if prevState, known := prev.BatteryState.Get(); !known || prevState != state {
			out.BatteryStateSince = now
		}
		out.BatteryLevel = Present(level)
		out.BatteryState = Present(state)
	}

	if snap.StepCount.IsPresent() {
		takenAt := snap.TakenAt
		if takenAt.IsZero() {
			takenAt = now
		}
		out.StepCount = snap.StepCount
		out.StepDay = Day(takenAt)
	}

	out.StorageTotalBytes = snap.StorageTotalBytes.Or(prev.StorageTotalBytes)
	out.StorageFreeBytes = snap.StorageFreeBytes.Or(prev.StorageFreeBytes)
	out.MemoryTotalBytes = snap.MemoryTotalBytes.Or(prev.MemoryTotalBytes)
	out.MemoryUsedBytes = snap.MemoryUsedBytes.Or(prev.MemoryUsedBytes)
	if snap.NetworkType.IsPresent() {
		out.NetworkType = snap.NetworkType
		out.NetworkConnected = snap.NetworkConnected.Or(Present(false))
		out.IPAddress = snap.IPAddress.Or(Present(""))
	} else {
		out.NetworkConnected = snap.NetworkConnected.Or(prev.NetworkConnected)
		out.IPAddress = snap.IPAddress.Or(prev.IPAddress)
	}
	out.DeviceUptimeMs = snap.DeviceUptimeMs.Or(prev.DeviceUptimeMs)
	out.DeviceCPULabel = snap.DeviceCPULabel.Or(prev.DeviceCPULabel)
	out.DeviceModel = snap.DeviceModel.Or(prev.DeviceModel)
	out.OSVersion = snap.OSVersion.Or(prev.OSVersion)
	out.Weather = snap.Weather.Or(prev.Weather)

	succeeded := map[Source]bool{
		SourceBattery:   batteryMerged,
		SourcePedometer: snap.StepCount.IsPresent(),
		SourceStorage:   snap.StorageTotalBytes.IsPresent() || snap.StorageFreeBytes.IsPresent(),
		SourceMemory:    snap.MemoryTotalBytes.IsPresent() || snap.MemoryUsedBytes.IsPresent(),
		SourceNetwork:   snap.NetworkType.IsPresent() || snap.NetworkConnected.IsPresent(),
		SourceDevice: snap.DeviceUptimeMs.IsPresent() || snap.DeviceCPULabel.IsPresent() ||
			snap.DeviceModel.IsPresent() || snap.OSVersion.IsPresent(),
		SourceWeather: snap.Weather.IsPresent(),
	}
	for src, ok := range succeeded {
		if ok {
			out.Status[src] = SourceStatus{Attempted: true, LastSuccess: now}
		}
	}
	for src, f := range snap.Failures {
		status := out.Status[src]
		status.Attempted = true
		failure := f
		status.LastFailure = &failure
		out.Status[src] = status
	}

	out.UpdatedAt = now

	return out
}

// Clone returns a deep copy of vs.
func (vs ViewState) Clone() ViewState {
	out := vs
	out.Status = make(map[Source]SourceStatus, len(vs.Status))
	for src, st := range vs.Status {
		out.Status[src] = st
	}
	return out
}

// Store holds the live ViewState and serializes every mutation of it.
type Store struct {
	mu    sync.RWMutex
	state ViewState
}

func NewStore(initial ViewState) *Store {
	return &Store{state: initial.Clone()}
}

// Get returns a copy of the current state.
func (s *Store) Get() ViewState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Update replaces the state with fn's result while holding the write lock
// and returns the new state.
func (s *Store) Update(fn func(ViewState) ViewState) ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = fn(s.state.Clone())

	return s.state.Clone()
}
