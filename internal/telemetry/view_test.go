package telemetry_test

import (
	"encoding/json"
	"testing"
	"time"

	"codeberg.org/mutker/devdash/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewPlaceholders(t *testing.T) {
	vs := telemetry.NewViewState(6000)
	vs = telemetry.Merge(vs, telemetry.Snapshot{TakenAt: t0}.WithFailure(telemetry.SourcePedometer,
		telemetry.Failure{Code: "source_unavailable", Reason: "no step counter"}), t0)

	v := vs.View()
	assert.Equal(t, telemetry.StatusLoading, v.Battery.Status)
	assert.Equal(t, telemetry.StatusUnavailable, v.Steps.Status)
	assert.Equal(t, "Unavailable", v.Steps.Label)
	assert.Equal(t, "no step counter", v.Steps.Reason)
}

func TestViewValues(t *testing.T) {
	vs := telemetry.Merge(telemetry.NewViewState(6000), telemetry.Snapshot{
		TakenAt:           t0,
		BatteryLevel:      telemetry.Present(0.85),
		BatteryState:      telemetry.Present(telemetry.BatteryCharging),
		StepCount:         telemetry.Present(3000),
		StorageTotalBytes: telemetry.Present[uint64](64 << 30),
		StorageFreeBytes:  telemetry.Present[uint64](16 << 30),
		MemoryTotalBytes:  telemetry.Present[uint64](8 << 30),
		MemoryUsedBytes:   telemetry.Present[uint64](2 << 30),
		NetworkType:       telemetry.Present(telemetry.NetworkWiFi),
		NetworkConnected:  telemetry.Present(true),
		IPAddress:         telemetry.Present("192.168.1.20"),
		DeviceUptimeMs:    telemetry.Present(int64((26*time.Hour + 5*time.Minute) / time.Millisecond)),
		DeviceModel:       telemetry.Present("Pixel 8"),
	}, t0)

	v := vs.View()
	assert.Equal(t, "85% Charging", v.Battery.Label)
	assert.Equal(t, "3000 / 6000 steps", v.Steps.Label)
	assert.Equal(t, telemetry.StepsValue{Count: 3000, Goal: 6000, Progress: 0.5}, v.Steps.Value)
	assert.Equal(t, "Free: 16.00 GB / Total: 64.00 GB", v.Storage.Label)
	assert.Equal(t, 75.0, v.Storage.Value.(telemetry.StorageValue).UsedPercent)
	assert.Equal(t, "25% of 8.00 GB", v.Memory.Label)
	assert.Equal(t, "wifi 192.168.1.20", v.Network.Label)
	assert.Equal(t, "Pixel 8", v.Device.Label)
	assert.Equal(t, "1d 2h 5m", v.Device.Value.(telemetry.DeviceValue).Uptime)

	_, err := json.Marshal(v)
	require.NoError(t, err)
}

func TestViewStaleValueKeepsReason(t *testing.T) {
	vs := telemetry.Merge(telemetry.NewViewState(6000), telemetry.Snapshot{
		TakenAt:          t0,
		NetworkType:      telemetry.Present(telemetry.NetworkEthernet),
		NetworkConnected: telemetry.Present(false),
	}, t0)
	vs = telemetry.Merge(vs, telemetry.Snapshot{TakenAt: t0}.WithFailure(telemetry.SourceNetwork,
		telemetry.Failure{Reason: "netlink error"}), t0.Add(time.Second))

	v := vs.View()
	assert.Equal(t, telemetry.StatusOK, v.Network.Status)
	assert.Equal(t, "Offline", v.Network.Label)
	assert.Equal(t, "netlink error", v.Network.Reason)
}

func TestToGB(t *testing.T) {
	assert.Equal(t, 1.5, telemetry.ToGB(3<<29))
	assert.Equal(t, 0.0, telemetry.ToGB(0))
}

func TestFieldJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		A telemetry.Field[int] `json:"a"`
		B telemetry.Field[int] `json:"b"`
	}{A: telemetry.Present(3)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":3,"b":null}`, string(b))
}

func TestViewStepsFromEarlierDay(t *testing.T) {
	evening := time.Date(2026, 3, 14, 23, 55, 0, 0, time.Local)
	vs := telemetry.Merge(telemetry.NewViewState(6000), telemetry.Snapshot{
		TakenAt:   evening,
		StepCount: telemetry.Present(8200),
	}, evening)
	assert.Equal(t, "8200 / 6000 steps", vs.View().Steps.Label)

	afterMidnight := evening.Add(10 * time.Minute)
	v := vs.ViewAt(afterMidnight)
	assert.Equal(t, telemetry.StatusUnavailable, v.Steps.Status)
	assert.Nil(t, v.Steps.Value)
	assert.Equal(t, "no step count for today yet", v.Steps.Reason)

	vs = telemetry.Merge(vs, telemetry.Snapshot{TakenAt: afterMidnight}.WithFailure(telemetry.SourcePedometer,
		telemetry.Failure{Code: "source_transient_io", Reason: "sensor busy"}), afterMidnight)
	v = vs.View()
	assert.Equal(t, telemetry.StatusUnavailable, v.Steps.Status)
	assert.Equal(t, "sensor busy", v.Steps.Reason)
	assert.Equal(t, 8200, vs.StepCount.Value(), "the merged count itself is kept")
}
