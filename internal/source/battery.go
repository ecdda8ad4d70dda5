package source

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/devdash/internal/errors"
	"codeberg.org/mutker/devdash/internal/telemetry"
)

// Battery reads the first battery-type supply under a Linux sysfs
// power_supply directory.
type Battery struct {
	root string
	now  func() time.Time
}

func NewBattery(supplyPath string) *Battery {
	return &Battery{root: supplyPath, now: time.Now}
}

func (*Battery) Source() telemetry.Source {
	return telemetry.SourceBattery
}

func (b *Battery) Sample(ctx context.Context) (telemetry.Snapshot, error) {
	errFactory := errors.New()

	if err := ctx.Err(); err != nil {
		return telemetry.Snapshot{}, errFactory.Wrap(ErrTransientIO, err)
	}

	supply, err := b.findSupply()
	if err != nil {
		return telemetry.Snapshot{}, err
	}

	capacity, err := readTrimmed(filepath.Join(supply, "capacity"))
	if err != nil {
		return telemetry.Snapshot{}, errFactory.Wrap(ErrTransientIO, err)
	}

	percent, err := strconv.Atoi(capacity)
	if err != nil || percent < 0 || percent > 100 {
		return telemetry.Snapshot{}, errFactory.WithData(ErrInvalidResponse, "capacity "+capacity)
	}

	status, err := readTrimmed(filepath.Join(supply, "status"))
	if err != nil {
		return telemetry.Snapshot{}, errFactory.Wrap(ErrTransientIO, err)
	}

	return telemetry.Snapshot{
		TakenAt:      b.now(),
		BatteryLevel: telemetry.Present(float64(percent) / 100),
		BatteryState: telemetry.Present(ParseBatteryStatus(status)),
	}, nil
}

func (b *Battery) findSupply() (string, error) {
	errFactory := errors.New()

	entries, err := os.ReadDir(b.root)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errFactory.WithData(ErrUnavailable, "no power_supply class at "+b.root)
		}
		if os.IsPermission(err) {
			return "", errFactory.Wrap(ErrPermissionDenied, err)
		}
		return "", errFactory.Wrap(ErrTransientIO, err)
	}

	for _, entry := range entries {
		dir := filepath.Join(b.root, entry.Name())
		kind, err := readTrimmed(filepath.Join(dir, "type"))
		if err != nil {
			continue
		}
		if strings.EqualFold(kind, "battery") {
			return dir, nil
		}
	}

	return "", errFactory.WithData(ErrUnavailable, "no battery found")
}

// ParseBatteryStatus maps a sysfs status string onto a BatteryState.
func ParseBatteryStatus(status string) telemetry.BatteryState {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "charging":
		return telemetry.BatteryCharging
	case "full":
		return telemetry.BatteryFull
	case "discharging":
		return telemetry.BatteryUnplugged
	default:
		return telemetry.BatteryUnknown
	}
}

func readTrimmed(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
