package source

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"codeberg.org/mutker/devdash/internal/errors"
	"codeberg.org/mutker/devdash/internal/telemetry"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
)

// Storage reports total and free bytes of the filesystem holding path.
type Storage struct {
	path string
	now  func() time.Time
}

func NewStorage(path string) *Storage {
	return &Storage{path: path, now: time.Now}
}

func (*Storage) Source() telemetry.Source {
	return telemetry.SourceStorage
}

func (s *Storage) Sample(ctx context.Context) (telemetry.Snapshot, error) {
	usage, err := disk.UsageWithContext(ctx, s.path)
	if err != nil {
		return telemetry.Snapshot{}, errors.New().Wrap(ErrTransientIO, err)
	}

	return telemetry.Snapshot{
		TakenAt:           s.now(),
		StorageTotalBytes: telemetry.Present(usage.Total),
		StorageFreeBytes:  telemetry.Present(usage.Free),
	}, nil
}

// Memory reports system memory usage. What counts as used is defined by
// the platform.
type Memory struct {
	now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

func (*Memory) Source() telemetry.Source {
	return telemetry.SourceMemory
}

func (m *Memory) Sample(ctx context.Context) (telemetry.Snapshot, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return telemetry.Snapshot{}, errors.New().Wrap(ErrTransientIO, err)
	}

	if vm.Total == 0 {
		return telemetry.Snapshot{}, errors.New().WithData(ErrInvalidResponse, "zero total memory")
	}

	return telemetry.Snapshot{
		TakenAt:          m.now(),
		MemoryTotalBytes: telemetry.Present(vm.Total),
		MemoryUsedBytes:  telemetry.Present(vm.Used),
	}, nil
}

// Network reports the primary interface type, connectivity and address.
type Network struct {
	interfaces func(ctx context.Context) (net.InterfaceStatList, error)
	now        func() time.Time
}

func NewNetwork() *Network {
	return &Network{interfaces: net.InterfacesWithContext, now: time.Now}
}

func (*Network) Source() telemetry.Source {
	return telemetry.SourceNetwork
}

func (n *Network) Sample(ctx context.Context) (telemetry.Snapshot, error) {
	list, err := n.interfaces(ctx)
	if err != nil {
		return telemetry.Snapshot{}, errors.New().Wrap(ErrTransientIO, err)
	}

	snap := telemetry.Snapshot{
		TakenAt:          n.now(),
		NetworkType:      telemetry.Present(telemetry.NetworkNone),
		NetworkConnected: telemetry.Present(false),
		IPAddress:        telemetry.Present(""),
	}

	var best *net.InterfaceStat
	bestRank := -1
	var bestIP string
	for i := range list {
		iface := &list[i]
		if !isUp(iface) || hasFlag(iface, "loopback") {
			continue
		}
		if len(iface.Addrs) == 0 {
			continue
		}
		ip := firstIPv4(iface)
		if rank := typeRank(InterfaceType(iface.Name)); rank > bestRank {
			best, bestRank, bestIP = iface, rank, ip
		}
	}

	if best != nil {
		snap.NetworkType = telemetry.Present(InterfaceType(best.Name))
		snap.NetworkConnected = telemetry.Present(true)
		snap.IPAddress = telemetry.Present(bestIP)
	}

	return snap, nil
}

// InterfaceType guesses the link type from a Linux interface name.
func InterfaceType(name string) telemetry.NetworkType {
	switch {
	case strings.HasPrefix(name, "wl"):
		return telemetry.NetworkWiFi
	case strings.HasPrefix(name, "en"), strings.HasPrefix(name, "eth"):
		return telemetry.NetworkEthernet
	case strings.HasPrefix(name, "wwan"), strings.HasPrefix(name, "rmnet"), strings.HasPrefix(name, "ccmni"):
		return telemetry.NetworkCellular
	default:
		return telemetry.NetworkOther
	}
}

// typeRank prefers physical links over tunnels and bridges.
func typeRank(t telemetry.NetworkType) int {
	switch t {
	case telemetry.NetworkEthernet:
		return 3
	case telemetry.NetworkWiFi:
		return 2
	case telemetry.NetworkCellular:
		return 1
	default:
		return 0
	}
}

func isUp(iface *net.InterfaceStat) bool {
	return hasFlag(iface, "up")
}

func hasFlag(iface *net.InterfaceStat, flag string) bool {
	for _, f := range iface.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

func firstIPv4(iface *net.InterfaceStat) string {
	for _, a := range iface.Addrs {
		prefix, err := netip.ParsePrefix(a.Addr)
		if err != nil {
			continue
		}
		if addr := prefix.Addr(); addr.Is4() && !addr.IsLoopback() {
			return addr.String()
		}
	}
	return ""
}

// Device reports static device facts and uptime.
type Device struct {
	now func() time.Time
}

func NewDevice() *Device {
	return &Device{now: time.Now}
}

func (*Device) Source() telemetry.Source {
	return telemetry.SourceDevice
}

func (d *Device) Sample(ctx context.Context) (telemetry.Snapshot, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return telemetry.Snapshot{}, errors.New().Wrap(ErrTransientIO, err)
	}

	snap := telemetry.Snapshot{
		TakenAt:        d.now(),
		DeviceUptimeMs: telemetry.Present(int64(info.Uptime) * int64(time.Second/time.Millisecond)),
		DeviceModel:    telemetry.Present(info.Hostname),
		OSVersion:      telemetry.Present(strings.TrimSpace(info.Platform + " " + info.PlatformVersion)),
	}

	// CPU details are nice to have; the uptime above is still worth reporting
	// on platforms that hide them.
	if cpus, err := cpu.InfoWithContext(ctx); err == nil && len(cpus) > 0 {
		label := cpus[0].ModelName
		if cores, err := cpu.CountsWithContext(ctx, true); err == nil && cores > 0 {
			label = fmt.Sprintf("%s (%d cores)", label, cores)
		}
		snap.DeviceCPULabel = telemetry.Present(strings.TrimSpace(label))
	}

	return snap, nil
}
