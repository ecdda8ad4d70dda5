package sampler

import (
	"context"
	"fmt"
	"time"

	"codeberg.org/mutker/devdash/internal/errors"
	"codeberg.org/mutker/devdash/internal/logger"
	"codeberg.org/mutker/devdash/internal/source"
	"codeberg.org/mutker/devdash/internal/telemetry"
)

// Result is one adapter's settled share of a pass.
type Result struct {
	Source   telemetry.Source
	Snapshot telemetry.Snapshot
	Err      error
	Elapsed  time.Duration
}

// Sampler runs one best-effort fan-out over a fixed set of adapters.
type Sampler struct {
	name     string
	adapters []source.Adapter
	timeout  time.Duration
	log      logger.Logger
	now      func() time.Time
}

// New returns a sampler. A zero timeout leaves adapter calls unbounded.
func New(name string, adapters []source.Adapter, timeout time.Duration, log logger.Logger) *Sampler {
	if log == nil {
		log = logger.Nop()
	}
	return &Sampler{
		name:     name,
		adapters: adapters,
		timeout:  timeout,
		log:      log,
		now:      time.Now,
	}
}

func (s *Sampler) Name() string {
	return s.name
}

// Run samples every adapter concurrently. onSettled, when not nil, is called
// for each result as soon as that adapter settles, never concurrently with
// itself. Run returns the combined snapshot once every adapter has settled;
// a failing adapter never cancels or delays the others.
func (s *Sampler) Run(ctx context.Context, onSettled func(Result)) telemetry.Snapshot {
	results := make(chan Result, len(s.adapters))

	for _, a := range s.adapters {
		go func(a source.Adapter) {
			results <- s.sampleOne(ctx, a)
		}(a)
	}

	combined := telemetry.Snapshot{TakenAt: s.now()}
	for range s.adapters {
		r := <-results
		if r.Err != nil {
			failure := source.FailureOf(r.Err)
			r.Snapshot = telemetry.Snapshot{TakenAt: s.now()}.WithFailure(r.Source, failure)
			s.log.Debug().
				Str("pass", s.name).
				Str("source", string(r.Source)).
				Str("code", string(failure.Code)).
				Dur("elapsed", r.Elapsed).
				Msg(failure.Reason)
		}

		combined = combined.Combine(r.Snapshot)
		if onSettled != nil {
			onSettled(r)
		}
	}

	return combined
}

func (s *Sampler) sampleOne(ctx context.Context, a source.Adapter) (r Result) {
	start := s.now()
	r.Source = a.Source()

	defer func() {
		if p := recover(); p != nil {
			r.Snapshot = telemetry.Snapshot{}
			r.Err = errors.New().WithData(source.ErrTransientIO, fmt.Sprintf("adapter panic: %v", p))
		}
		r.Elapsed = s.now().Sub(start)
	}()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	snap, err := a.Sample(ctx)
	if err != nil {
		r.Err = err
		return r
	}

	if snap.TakenAt.IsZero() {
		snap.TakenAt = s.now()
	}
	r.Snapshot = snap

	return r
}
