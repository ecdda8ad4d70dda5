package telemetry_test

import (
	"testing"
	"time"

	"codeberg.org/mutker/devdash/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 14, 9, 0, 0, 0, time.Local)

func battery(level float64, state telemetry.BatteryState) telemetry.Snapshot {
	return telemetry.Snapshot{
		TakenAt:      t0,
		BatteryLevel: telemetry.Present(level),
		BatteryState: telemetry.Present(state),
	}
}

func TestMergeAbsentPreservesPrevious(t *testing.T) {
	vs := telemetry.NewViewState(6000)

	sequence := []telemetry.Field[uint64]{
		telemetry.Present[uint64](100),
		telemetry.Absent[uint64](),
		telemetry.Absent[uint64](),
		telemetry.Present[uint64](80),
		telemetry.Absent[uint64](),
	}
	want := []uint64{100, 100, 100, 80, 80}

	for i, f := range sequence {
		vs = telemetry.Merge(vs, telemetry.Snapshot{TakenAt: t0, StorageFreeBytes: f}, t0)
		got, ok := vs.StorageFreeBytes.Get()
		require.True(t, ok, "sample %d", i)
		assert.Equal(t, want[i], got, "sample %d", i)
	}
}

func TestMergeDoesNotModifyPrevious(t *testing.T) {
	prev := telemetry.NewViewState(6000)
	next := telemetry.Merge(prev, telemetry.Snapshot{
		TakenAt:   t0,
		IPAddress: telemetry.Present("10.0.0.2"),
	}, t0)

	assert.False(t, prev.IPAddress.IsPresent())
	assert.Empty(t, prev.Status)
	assert.True(t, next.IPAddress.IsPresent())
}

func TestMergeBatteryPair(t *testing.T) {
	vs := telemetry.Merge(telemetry.NewViewState(6000), battery(0.5, telemetry.BatteryUnplugged), t0)

	levelOnly := telemetry.Snapshot{TakenAt: t0, BatteryLevel: telemetry.Present(0.9)}
	vs = telemetry.Merge(vs, levelOnly, t0.Add(time.Minute))
	assert.Equal(t, 0.5, vs.BatteryLevel.Value())
	assert.Equal(t, telemetry.BatteryUnplugged, vs.BatteryState.Value())

	stateOnly := telemetry.Snapshot{TakenAt: t0, BatteryState: telemetry.Present(telemetry.BatteryCharging)}
	vs = telemetry.Merge(vs, stateOnly, t0.Add(2*time.Minute))
	assert.Equal(t, 0.5, vs.BatteryLevel.Value())
	assert.Equal(t, telemetry.BatteryUnplugged, vs.BatteryState.Value())
	assert.Equal(t, t0, vs.BatteryStateSince)
}

func TestMergeBatteryStateSince(t *testing.T) {
	states := []telemetry.BatteryState{
		telemetry.BatteryUnplugged,
		telemetry.BatteryCharging,
		telemetry.BatteryCharging,
		telemetry.BatteryFull,
	}

	vs := telemetry.NewViewState(6000)
	var since []time.Time
	for i, st := range states {
		now := t0.Add(time.Duration(i) * time.Minute)
		vs = telemetry.Merge(vs, battery(0.9, st), now)
		since = append(since, vs.BatteryStateSince)
	}

	assert.Equal(t, t0, since[0], "first known state establishes the timestamp")
	assert.Equal(t, t0.Add(time.Minute), since[1])
	assert.Equal(t, since[1], since[2], "unchanged state keeps the timestamp")
	assert.Equal(t, t0.Add(3*time.Minute), since[3])
}

func TestMergeBatteryStateSinceFromKnownState(t *testing.T) {
	start := t0.Add(-time.Hour)
	vs := telemetry.Merge(telemetry.NewViewState(6000), battery(0.9, telemetry.BatteryUnplugged), start)
	require.Equal(t, start, vs.BatteryStateSince)

	states := []telemetry.BatteryState{
		telemetry.BatteryUnplugged,
		telemetry.BatteryCharging,
		telemetry.BatteryCharging,
		telemetry.BatteryFull,
	}

	var updatedAt []int
	for i, st := range states {
		before := vs.BatteryStateSince
		vs = telemetry.Merge(vs, battery(0.9, st), t0.Add(time.Duration(i)*time.Minute))
		if !vs.BatteryStateSince.Equal(before) {
			updatedAt = append(updatedAt, i)
		}
	}

	assert.Equal(t, []int{1, 3}, updatedAt)
	assert.Equal(t, t0.Add(3*time.Minute), vs.BatteryStateSince)
}

func TestMergeNetworkReplacesConnection(t *testing.T) {
	vs := telemetry.Merge(telemetry.NewViewState(6000), telemetry.Snapshot{
		TakenAt:          t0,
		NetworkType:      telemetry.Present(telemetry.NetworkWiFi),
		NetworkConnected: telemetry.Present(true),
		IPAddress:        telemetry.Present("192.168.1.7"),
	}, t0)

	vs = telemetry.Merge(vs, telemetry.Snapshot{
		TakenAt:     t0,
		NetworkType: telemetry.Present(telemetry.NetworkEthernet),
	}, t0.Add(time.Minute))

	assert.Equal(t, telemetry.NetworkEthernet, vs.NetworkType.Value())
	assert.Equal(t, telemetry.Present(false), vs.NetworkConnected)
	assert.Equal(t, telemetry.Present(""), vs.IPAddress)

	vs = telemetry.Merge(vs, telemetry.Snapshot{TakenAt: t0}, t0.Add(2*time.Minute))
	assert.Equal(t, telemetry.NetworkEthernet, vs.NetworkType.Value(), "absent network keeps the last connection")
}

func TestMergeStepDay(t *testing.T) {
	vs := telemetry.Merge(telemetry.NewViewState(6000), telemetry.Snapshot{
		TakenAt:   t0,
		StepCount: telemetry.Present(1200),
	}, t0)

	assert.Equal(t, 1200, vs.StepCount.Value())
	assert.Equal(t, "2026-03-14", vs.StepDay)
}

func TestMergeStatus(t *testing.T) {
	vs := telemetry.NewViewState(6000)
	failed := telemetry.Snapshot{TakenAt: t0}.WithFailure(telemetry.SourceMemory,
		telemetry.Failure{Code: "source_unavailable", Reason: "no meminfo"})

	vs = telemetry.Merge(vs, failed, t0)
	status := vs.Status[telemetry.SourceMemory]
	assert.True(t, status.Attempted)
	require.NotNil(t, status.LastFailure)
	assert.Equal(t, "no meminfo", status.LastFailure.Reason)

	vs = telemetry.Merge(vs, telemetry.Snapshot{
		TakenAt:          t0,
		MemoryTotalBytes: telemetry.Present[uint64](8 << 30),
		MemoryUsedBytes:  telemetry.Present[uint64](2 << 30),
	}, t0.Add(time.Second))
	status = vs.Status[telemetry.SourceMemory]
	assert.Nil(t, status.LastFailure)
	assert.Equal(t, t0.Add(time.Second), status.LastSuccess)
}

func TestSnapshotCombine(t *testing.T) {
	a := telemetry.Snapshot{TakenAt: t0, StepCount: telemetry.Present(10)}.
		WithFailure(telemetry.SourceWeather, telemetry.Failure{Reason: "offline"})
	b := telemetry.Snapshot{TakenAt: t0.Add(time.Second), IPAddress: telemetry.Present("192.168.1.2")}

	c := a.Combine(b)
	assert.Equal(t, 10, c.StepCount.Value())
	assert.Equal(t, "192.168.1.2", c.IPAddress.Value())
	assert.Equal(t, t0.Add(time.Second), c.TakenAt)
	assert.Contains(t, c.Failures, telemetry.SourceWeather)
}

func TestStoreUpdateIsolation(t *testing.T) {
	store := telemetry.NewStore(telemetry.NewViewState(6000))

	snapshot := store.Get()
	snapshot.Status[telemetry.SourceBattery] = telemetry.SourceStatus{Attempted: true}

	assert.NotContains(t, store.Get().Status, telemetry.SourceBattery)

	store.Update(func(vs telemetry.ViewState) telemetry.ViewState {
		vs.StepGoal = 7000
		return vs
	})
	assert.Equal(t, 7000, store.Get().StepGoal)
}

func TestLatch(t *testing.T) {
	var l telemetry.Latch
	assert.False(t, l.Fired())
	assert.True(t, l.Fire())
	assert.False(t, l.Fire())
	assert.True(t, l.Fired())
	l.Rearm()
	assert.True(t, l.Fire())
}
