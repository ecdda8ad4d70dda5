package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/devdash/internal/errors"
	"codeberg.org/mutker/devdash/internal/telemetry"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSupply(t *testing.T, root, name, kind, capacity, status string) {
	t.Helper()

	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "type"), []byte(kind+"\n"), 0o644))
	if capacity != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "capacity"), []byte(capacity+"\n"), 0o644))
	}
	if status != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "status"), []byte(status+"\n"), 0o644))
	}
}

func TestBatterySample(t *testing.T) {
	root := t.TempDir()
	writeSupply(t, root, "AC", "Mains", "", "")
	writeSupply(t, root, "BAT0", "Battery", "85", "Charging")

	snap, err := NewBattery(root).Sample(context.Background())
	require.NoError(t, err)

	level, ok := snap.BatteryLevel.Get()
	require.True(t, ok)
	assert.InDelta(t, 0.85, level, 1e-9)
	assert.Equal(t, telemetry.Present(telemetry.BatteryCharging), snap.BatteryState)
	assert.False(t, snap.StepCount.IsPresent())
}

func TestBatteryFailures(t *testing.T) {
	t.Run("missing class", func(t *testing.T) {
		_, err := NewBattery(filepath.Join(t.TempDir(), "nope")).Sample(context.Background())
		assert.Equal(t, ErrUnavailable, Classify(err))
	})

	t.Run("no battery supply", func(t *testing.T) {
		root := t.TempDir()
		writeSupply(t, root, "AC", "Mains", "", "")
		_, err := NewBattery(root).Sample(context.Background())
		assert.Equal(t, ErrUnavailable, Classify(err))
	})

	t.Run("malformed capacity", func(t *testing.T) {
		root := t.TempDir()
		writeSupply(t, root, "BAT0", "Battery", "lots", "Full")
		_, err := NewBattery(root).Sample(context.Background())
		assert.Equal(t, ErrInvalidResponse, Classify(err))
	})

	t.Run("out of range capacity", func(t *testing.T) {
		root := t.TempDir()
		writeSupply(t, root, "BAT0", "Battery", "140", "Full")
		_, err := NewBattery(root).Sample(context.Background())
		assert.Equal(t, ErrInvalidResponse, Classify(err))
	})
}

func TestParseBatteryStatus(t *testing.T) {
	tests := map[string]telemetry.BatteryState{
		"Charging":     telemetry.BatteryCharging,
		"Full":         telemetry.BatteryFull,
		"Discharging":  telemetry.BatteryUnplugged,
		"Not charging": telemetry.BatteryUnknown,
		"Unknown":      telemetry.BatteryUnknown,
		"":             telemetry.BatteryUnknown,
	}

	for in, want := range tests {
		assert.Equal(t, want, ParseBatteryStatus(in), "status %q", in)
	}
}

func TestClassify(t *testing.T) {
	errFactory := errors.New()

	assert.Equal(t, ErrPermissionDenied, Classify(errFactory.New(ErrPermissionDenied)))
	assert.Equal(t, ErrInvalidResponse, Classify(fmt.Errorf("decode: %w", errFactory.New(ErrInvalidResponse))))
	assert.Equal(t, ErrTransientIO, Classify(fmt.Errorf("boom")))
	assert.Equal(t, ErrTransientIO, Classify(errFactory.New(errors.ErrInternal)))
}

func TestFailureOfDeadline(t *testing.T) {
	f := FailureOf(context.DeadlineExceeded)
	assert.Equal(t, ErrTransientIO, f.Code)
	assert.NotEmpty(t, f.Reason)
}

func TestInterfaceType(t *testing.T) {
	assert.Equal(t, telemetry.NetworkWiFi, InterfaceType("wlp2s0"))
	assert.Equal(t, telemetry.NetworkEthernet, InterfaceType("enp3s0"))
	assert.Equal(t, telemetry.NetworkEthernet, InterfaceType("eth0"))
	assert.Equal(t, telemetry.NetworkCellular, InterfaceType("wwan0"))
	assert.Equal(t, telemetry.NetworkCellular, InterfaceType("rmnet_data0"))
	assert.Equal(t, telemetry.NetworkOther, InterfaceType("docker0"))
}

func TestNetworkSample(t *testing.T) {
	n := NewNetwork()

	t.Run("prefers connected wifi over loopback", func(t *testing.T) {
		n.interfaces = func(context.Context) (net.InterfaceStatList, error) {
			return net.InterfaceStatList{
				{Name: "lo", Flags: []string{"up", "loopback"}, Addrs: net.InterfaceAddrList{{Addr: "127.0.0.1/8"}}},
				{Name: "wlan0", Flags: []string{"up", "broadcast"}, Addrs: net.InterfaceAddrList{
					{Addr: "fe80::1/64"},
					{Addr: "192.168.1.20/24"},
				}},
			}, nil
		}

		snap, err := n.Sample(context.Background())
		require.NoError(t, err)
		assert.Equal(t, telemetry.Present(telemetry.NetworkWiFi), snap.NetworkType)
		assert.Equal(t, telemetry.Present(true), snap.NetworkConnected)
		assert.Equal(t, telemetry.Present("192.168.1.20"), snap.IPAddress)
	})

	t.Run("offline", func(t *testing.T) {
		n.interfaces = func(context.Context) (net.InterfaceStatList, error) {
			return net.InterfaceStatList{
				{Name: "lo", Flags: []string{"up", "loopback"}, Addrs: net.InterfaceAddrList{{Addr: "127.0.0.1/8"}}},
				{Name: "eth0", Flags: []string{"broadcast"}},
			}, nil
		}

		snap, err := n.Sample(context.Background())
		require.NoError(t, err)
		assert.Equal(t, telemetry.Present(telemetry.NetworkNone), snap.NetworkType)
		assert.Equal(t, telemetry.Present(false), snap.NetworkConnected)
		assert.Equal(t, telemetry.Present(""), snap.IPAddress)
	})

	t.Run("platform error", func(t *testing.T) {
		n.interfaces = func(context.Context) (net.InterfaceStatList, error) {
			return nil, fmt.Errorf("netlink: permission")
		}

		_, err := n.Sample(context.Background())
		assert.Equal(t, ErrTransientIO, Classify(err))
	})
}

func TestNetworkChangeReplacesAddress(t *testing.T) {
	n := NewNetwork()
	vs := telemetry.NewViewState(6000)
	at := time.Date(2026, 3, 14, 9, 0, 0, 0, time.Local)

	sample := func(list net.InterfaceStatList) {
		t.Helper()
		n.interfaces = func(context.Context) (net.InterfaceStatList, error) { return list, nil }
		snap, err := n.Sample(context.Background())
		require.NoError(t, err)
		at = at.Add(time.Minute)
		vs = telemetry.Merge(vs, snap, at)
	}

	sample(net.InterfaceStatList{
		{Name: "wlan0", Flags: []string{"up"}, Addrs: net.InterfaceAddrList{{Addr: "192.168.1.7/24"}}},
	})
	assert.Equal(t, "wifi 192.168.1.7", vs.View().Network.Label)

	sample(net.InterfaceStatList{{Name: "wlan0", Flags: []string{"broadcast"}}})
	assert.Equal(t, telemetry.NetworkNone, vs.NetworkType.Value())
	assert.False(t, vs.NetworkConnected.Value())
	assert.Equal(t, "", vs.IPAddress.Value())
	assert.Equal(t, "Offline", vs.View().Network.Label)

	sample(net.InterfaceStatList{
		{Name: "wlan0", Flags: []string{"up"}, Addrs: net.InterfaceAddrList{{Addr: "192.168.1.7/24"}}},
	})
	sample(net.InterfaceStatList{
		{Name: "eth0", Flags: []string{"up"}, Addrs: net.InterfaceAddrList{{Addr: "fe80::2/64"}}},
	})
	assert.Equal(t, "", vs.IPAddress.Value())
	assert.Equal(t, "ethernet", vs.View().Network.Label)
}

func TestStartOfDay(t *testing.T) {
	at := time.Date(2026, 3, 14, 23, 59, 59, 0, time.Local)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.Local), StartOfDay(at))
}

func TestPedometerRecomputesDayBoundary(t *testing.T) {
	log := NewStepLog()
	evening := time.Date(2026, 3, 14, 23, 50, 0, 0, time.Local)
	log.now = func() time.Time { return evening }
	require.NoError(t, log.Record(evening.Add(-time.Hour), 4000))
	require.NoError(t, log.Record(evening, 500))

	p := NewPedometer(log)
	now := evening
	p.now = func() time.Time { return now }

	snap, err := p.Sample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, telemetry.Present(4500), snap.StepCount)

	// Twenty minutes later it is a new day and yesterday's steps drop out.
	now = evening.Add(20 * time.Minute)
	log.now = func() time.Time { return now }
	require.NoError(t, log.Record(now, 12))

	snap, err = p.Sample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, telemetry.Present(12), snap.StepCount)
	assert.Equal(t, now, snap.TakenAt)
}

func TestPedometerWithoutCounter(t *testing.T) {
	_, err := NewPedometer(nil).Sample(context.Background())
	assert.Equal(t, ErrUnavailable, Classify(err))
}

func TestStepLogRejectsNegative(t *testing.T) {
	err := NewStepLog().Record(time.Time{}, -1)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidArgument))
}

func TestStepLogPrunes(t *testing.T) {
	log := NewStepLog()
	start := time.Date(2026, 3, 10, 12, 0, 0, 0, time.Local)
	log.now = func() time.Time { return start }
	require.NoError(t, log.Record(start, 100))

	later := start.Add(72 * time.Hour)
	log.now = func() time.Time { return later }
	require.NoError(t, log.Record(later, 1))

	assert.Len(t, log.entries, 1)
}
