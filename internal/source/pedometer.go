package source

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/devdash/internal/errors"
	"codeberg.org/mutker/devdash/internal/telemetry"
)

const stepRetention = 48 * time.Hour

// StepCounter returns the number of steps taken between start and end,
// both inclusive.
type StepCounter interface {
	StepsBetween(ctx context.Context, start, end time.Time) (int, error)
}

// StartOfDay returns local midnight of the day containing t.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Pedometer reports today's step count. The day boundary is computed on
// every call.
type Pedometer struct {
	counter StepCounter
	now     func() time.Time
}

// NewPedometer returns a pedometer adapter. A nil counter makes every
// sample fail as unavailable.
func NewPedometer(counter StepCounter) *Pedometer {
	return &Pedometer{counter: counter, now: time.Now}
}

func (*Pedometer) Source() telemetry.Source {
	return telemetry.SourcePedometer
}

func (p *Pedometer) Sample(ctx context.Context) (telemetry.Snapshot, error) {
	errFactory := errors.New()

	if p.counter == nil {
		return telemetry.Snapshot{}, errFactory.WithData(ErrUnavailable, "no step counter configured")
	}

	now := p.now()
	steps, err := p.counter.StepsBetween(ctx, StartOfDay(now), now)
	if err != nil {
		if _, ok := errors.CodeOf(err); ok {
			return telemetry.Snapshot{}, err
		}
		return telemetry.Snapshot{}, errFactory.Wrap(ErrTransientIO, err)
	}

	if steps < 0 {
		return telemetry.Snapshot{}, errFactory.WithData(ErrInvalidResponse, steps)
	}

	return telemetry.Snapshot{
		TakenAt:   now,
		StepCount: telemetry.Present(steps),
	}, nil
}

type stepEntry struct {
	at    time.Time
	steps int
}

// StepLog is a StepCounter fed by increments pushed from the device that
// owns the motion sensor.
type StepLog struct {
	mu      sync.Mutex
	entries []stepEntry
	now     func() time.Time
}

func NewStepLog() *StepLog {
	return &StepLog{now: time.Now}
}

// Record adds steps taken at the given time. A zero time means now.
func (l *StepLog) Record(at time.Time, steps int) error {
	if steps < 0 {
		return errors.New().WithData(errors.ErrInvalidArgument, "negative step increment")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if at.IsZero() {
		at = now
	}

	l.entries = append(l.entries, stepEntry{at: at, steps: steps})
	l.prune(now)

	return nil
}

func (l *StepLog) StepsBetween(ctx context.Context, start, end time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	total := 0
	for _, e := range l.entries {
		if !e.at.Before(start) && !e.at.After(end) {
			total += e.steps
		}
	}

	return total, nil
}

func (l *StepLog) prune(now time.Time) {
	cutoff := now.Add(-stepRetention)
	kept := l.entries[:0]
	for _, e := range l.entries {
		if !e.at.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	l.entries = kept
}
