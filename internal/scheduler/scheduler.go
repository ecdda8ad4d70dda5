// Package scheduler drives the telemetry and weather passes: one repeating
// timer each plus an on-demand refresh. A pass never overlaps another run
// of the same timer.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/devdash/internal/logger"
	"golang.org/x/sync/singleflight"
)

// Timer is one repeating pass.
type Timer struct {
	Name     string
	Interval time.Duration
	Pass     func(ctx context.Context)
}

const defaultShutdownGrace = 5 * time.Second

// Scheduler runs a fixed set of timers.
type Scheduler struct {
	// ShutdownGrace bounds how long Run waits for in-flight passes after
	// ctx is done. A pass that ignores ctx is abandoned after it.
	ShutdownGrace time.Duration

	timers   []Timer
	inflight []atomic.Bool
	refresh  chan struct{}
	group    singleflight.Group
	log      logger.Logger

	wg       sync.WaitGroup
	triggers atomic.Int64
	runs     atomic.Int64
}

func New(log logger.Logger, timers ...Timer) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{
		ShutdownGrace: defaultShutdownGrace,
		timers:        timers,
		inflight:      make([]atomic.Bool, len(timers)),
		refresh:       make(chan struct{}, 1),
		log:           log,
	}
}

// Refresh asks for an immediate run of every timer. It never blocks, and
// requests made while one is pending are merged into it. The timers keep
// their schedule.
func (s *Scheduler) Refresh() {
	select {
	case s.refresh <- struct{}{}:
	default:
	}
}

// Skipped returns how many triggers were dropped because the pass was
// already running.
func (s *Scheduler) Skipped() int64 {
	return s.triggers.Load() - s.runs.Load()
}

// Run fires every timer once, then on its interval, until ctx is done. It
// waits up to ShutdownGrace for in-flight passes before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.drain()

	tickers := make([]*time.Ticker, len(s.timers))
	ticks := make(chan int, len(s.timers))
	for i, t := range s.timers {
		tickers[i] = time.NewTicker(t.Interval)
		defer tickers[i].Stop()

		s.wg.Add(1)
		go func(i int, c <-chan time.Time) {
			defer s.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-c:
					select {
					case ticks <- i:
					default:
					}
				}
			}
		}(i, tickers[i].C)
	}

	s.log.Info().Int("timers", len(s.timers)).Msg("Scheduler started")

	for i := range s.timers {
		s.trigger(ctx, i, "start")
	}

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Scheduler stopping")
			return nil
		case i := <-ticks:
			s.trigger(ctx, i, "tick")
		case <-s.refresh:
			for i := range s.timers {
				s.trigger(ctx, i, "refresh")
			}
		}
	}
}

// trigger starts timer i's pass unless one is in flight, in which case the
// trigger is counted as skipped and nothing is started.
func (s *Scheduler) trigger(ctx context.Context, i int, reason string) {
	t := s.timers[i]
	s.triggers.Add(1)

	if !s.inflight[i].CompareAndSwap(false, true) {
		s.log.Debug().Str("timer", t.Name).Str("reason", reason).Msg("Pass in flight, skipped")
		return
	}

	ch := s.group.DoChan(t.Name, func() (any, error) {
		s.runs.Add(1)

		begin := time.Now()
		t.Pass(ctx)
		s.log.Debug().
			Str("timer", t.Name).
			Str("reason", reason).
			Dur("elapsed", time.Since(begin)).
			Msg("Pass completed")

		return nil, nil
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		<-ch
		s.inflight[i].Store(false)
	}()
}

func (s *Scheduler) drain() {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.ShutdownGrace):
		s.log.Warn().Dur("grace", s.ShutdownGrace).Msg("Abandoning passes still in flight")
	}
}
