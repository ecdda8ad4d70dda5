// Package demo simulates the sensors a desktop usually lacks so the daemon,
// CLI and dashboard can be exercised end to end. The battery charges to
// full, rests, unplugs and drains in a loop; the pedometer walks a few
// hundred steps per sample and starts over at local midnight.
package demo

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"codeberg.org/mutker/devdash/internal/source"
	"codeberg.org/mutker/devdash/internal/telemetry"
)

const (
	chargeStep = 0.05
	drainStep  = 0.04
	lowLevel   = 0.55
	fullRest   = 3 // samples spent at full before unplugging
)

type phase int

const (
	phaseCharging phase = iota
	phaseFull
	phaseDraining
)

// Battery is a simulated battery that advances one step per sample.
type Battery struct {
	mu    sync.Mutex
	level float64
	phase phase
	rest  int
	now   func() time.Time
}

func NewBattery() *Battery {
	return &Battery{level: 0.7, phase: phaseCharging, now: time.Now}
}

func (*Battery) Source() telemetry.Source {
	return telemetry.SourceBattery
}

func (b *Battery) Sample(ctx context.Context) (telemetry.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return telemetry.Snapshot{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	state := b.advance()

	return telemetry.Snapshot{
		TakenAt:      b.now(),
		BatteryLevel: telemetry.Present(b.level),
		BatteryState: telemetry.Present(state),
	}, nil
}

func (b *Battery) advance() telemetry.BatteryState {
	switch b.phase {
	case phaseCharging:
		b.level += chargeStep
		if b.level >= 1 {
			b.level = 1
			b.phase = phaseFull
			b.rest = 0
			return telemetry.BatteryFull
		}
		return telemetry.BatteryCharging
	case phaseFull:
		b.rest++
		if b.rest > fullRest {
			b.phase = phaseDraining
			return telemetry.BatteryUnplugged
		}
		return telemetry.BatteryFull
	default:
		b.level -= drainStep
		if b.level <= lowLevel {
			b.phase = phaseCharging
		}
		return telemetry.BatteryUnplugged
	}
}

// NewPedometer returns a pedometer adapter backed by a step log that gains
// random steps on every sample.
func NewPedometer() source.Adapter {
	log := source.NewStepLog()
	ped := source.NewPedometer(log)

	return source.Func{
		Src: telemetry.SourcePedometer,
		Fn: func(ctx context.Context) (telemetry.Snapshot, error) {
			if err := log.Record(time.Time{}, 150+rand.Intn(350)); err != nil {
				return telemetry.Snapshot{}, err
			}
			return ped.Sample(ctx)
		},
	}
}
