package telemetry

import (
	"encoding/json"
	"time"

	"codeberg.org/mutker/devdash/internal/errors"
)

// Field is a value that a sampling pass either produced or did not.
type Field[T any] struct {
	value   T
	present bool
}

// Present wraps a sampled value.
func Present[T any](v T) Field[T] {
	return Field[T]{value: v, present: true}
}

// Absent returns an empty field.
func Absent[T any]() Field[T] {
	return Field[T]{}
}

func (f Field[T]) Get() (T, bool) {
	return f.value, f.present
}

func (f Field[T]) IsPresent() bool {
	return f.present
}

// Value returns the wrapped value, or the zero value when absent.
func (f Field[T]) Value() T {
	return f.value
}

// Or returns f when present and prev otherwise.
func (f Field[T]) Or(prev Field[T]) Field[T] {
	if f.present {
		return f
	}
	return prev
}

func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.present {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}

// Source identifies one data source adapter.
type Source string

const (
	SourceBattery   Source = "battery"
	SourcePedometer Source = "pedometer"
	SourceStorage   Source = "storage"
	SourceMemory    Source = "memory"
	SourceNetwork   Source = "network"
	SourceDevice    Source = "device"
	SourceWeather   Source = "weather"
)

// Sources lists every source in display order.
var Sources = []Source{
	SourceBattery,
	SourcePedometer,
	SourceStorage,
	SourceMemory,
	SourceNetwork,
	SourceDevice,
	SourceWeather,
}

type BatteryState int

const (
	BatteryUnknown BatteryState = iota
	BatteryUnplugged
	BatteryCharging
	BatteryFull
)

func (s BatteryState) String() string {
	switch s {
	case BatteryUnplugged:
		return "unplugged"
	case BatteryCharging:
		return "charging"
	case BatteryFull:
		return "full"
	default:
		return "unknown"
	}
}

func (s BatteryState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// OnPower reports whether the device is connected to a charger.
func (s BatteryState) OnPower() bool {
	return s == BatteryCharging || s == BatteryFull
}

type NetworkType string

const (
	NetworkNone     NetworkType = "none"
	NetworkWiFi     NetworkType = "wifi"
	NetworkEthernet NetworkType = "ethernet"
	NetworkCellular NetworkType = "cellular"
	NetworkOther    NetworkType = "other"
	NetworkUnknown  NetworkType = "unknown"
)

// Weather is the result of one compound weather sample.
type Weather struct {
	TemperatureC float64   `json:"temperature_c"`
	Code         int       `json:"code"`
	Description  string    `json:"description"`
	Locality     string    `json:"locality"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Failure records why a source produced no values.
type Failure struct {
	Code   errors.ErrorCode `json:"code"`
	Reason string           `json:"reason"`
}

// Snapshot is the immutable output of one sampling pass, or of one
// adapter's share of it.
type Snapshot struct {
	TakenAt time.Time

	BatteryLevel      Field[float64]
	BatteryState      Field[BatteryState]
	StepCount         Field[int]
	StorageTotalBytes Field[uint64]
	StorageFreeBytes  Field[uint64]
	MemoryTotalBytes  Field[uint64]
	MemoryUsedBytes   Field[uint64]
	NetworkType       Field[NetworkType]
	NetworkConnected  Field[bool]
	IPAddress         Field[string]
	DeviceUptimeMs    Field[int64]
	DeviceCPULabel    Field[string]
	DeviceModel       Field[string]
	OSVersion         Field[string]
	Weather           Field[Weather]

	Failures map[Source]Failure
}

// Combine returns s with every present field of other laid over it.
func (s Snapshot) Combine(other Snapshot) Snapshot {
	out := s
	if other.TakenAt.After(out.TakenAt) {
		out.TakenAt = other.TakenAt
	}

	out.BatteryLevel = other.BatteryLevel.Or(s.BatteryLevel)
	out.BatteryState = other.BatteryState.Or(s.BatteryState)
	out.StepCount = other.StepCount.Or(s.StepCount)
	out.StorageTotalBytes = other.StorageTotalBytes.Or(s.StorageTotalBytes)
	out.StorageFreeBytes = other.StorageFreeBytes.Or(s.StorageFreeBytes)
	out.MemoryTotalBytes = other.MemoryTotalBytes.Or(s.MemoryTotalBytes)
	out.MemoryUsedBytes = other.MemoryUsedBytes.Or(s.MemoryUsedBytes)
	out.NetworkType = other.NetworkType.Or(s.NetworkType)
	out.NetworkConnected = other.NetworkConnected.Or(s.NetworkConnected)
	out.IPAddress = other.IPAddress.Or(s.IPAddress)
	out.DeviceUptimeMs = other.DeviceUptimeMs.Or(s.DeviceUptimeMs)
	out.DeviceCPULabel = other.DeviceCPULabel.Or(s.DeviceCPULabel)
	out.DeviceModel = other.DeviceModel.Or(s.DeviceModel)
	out.OSVersion = other.OSVersion.Or(s.OSVersion)
	out.Weather = other.Weather.Or(s.Weather)

	if len(s.Failures)+len(other.Failures) > 0 {
		out.Failures = make(map[Source]Failure, len(s.Failures)+len(other.Failures))
		for src, f := range s.Failures {
			out.Failures[src] = f
		}
		for src, f := range other.Failures {
			out.Failures[src] = f
		}
	}

	return out
}

// WithFailure returns a copy of s with a failure recorded for src.
func (s Snapshot) WithFailure(src Source, f Failure) Snapshot {
	failures := make(map[Source]Failure, len(s.Failures)+1)
	for k, v := range s.Failures {
		failures[k] = v
	}
	failures[src] = f
	s.Failures = failures

	return s
}

// SourceStatus tracks how a source has behaved over the process lifetime.
type SourceStatus struct {
	Attempted   bool      `json:"attempted"`
	LastSuccess time.Time `json:"last_success,omitempty"`
	LastFailure *Failure  `json:"last_failure,omitempty"`
}

// ViewState is the long-lived accumulation of the latest known telemetry.
type ViewState struct {
	BatteryLevel      Field[float64]
	BatteryState      Field[BatteryState]
	BatteryStateSince time.Time
	StepCount         Field[int]
	StepDay           string
	StorageTotalBytes Field[uint64]
	StorageFreeBytes  Field[uint64]
	MemoryTotalBytes  Field[uint64]
	MemoryUsedBytes   Field[uint64]
	NetworkType       Field[NetworkType]
	NetworkConnected  Field[bool]
	IPAddress         Field[string]
	DeviceUptimeMs    Field[int64]
	DeviceCPULabel    Field[string]
	DeviceModel       Field[string]
	OSVersion         Field[string]
	Weather           Field[Weather]

	StepGoal int

	Battery80       Latch
	Battery100      Latch
	StepGoalReached Latch

	Status    map[Source]SourceStatus
	UpdatedAt time.Time
}

// NewViewState returns a state with every field absent.
func NewViewState(stepGoal int) ViewState {
	return ViewState{
		StepGoal: stepGoal,
		Status:   make(map[Source]SourceStatus, len(Sources)),
	}
}

// Latch keeps a notification rule from firing again until it is re-armed.
// The zero value is armed.
type Latch struct {
	fired bool
}

// Fire moves an armed latch to fired and reports whether it was armed.
func (l *Latch) Fire() bool {
	if l.fired {
		return false
	}
	l.fired = true
	return true
}

// Rearm moves the latch back to armed.
func (l *Latch) Rearm() {
	l.fired = false
}

// Fired reports whether the rule has fired since it was last armed.
func (l Latch) Fired() bool {
	return l.fired
}
