// Package dashboard owns the live view state and connects the samplers,
// the threshold engine, the sinks and the scheduler.
package dashboard

import (
	"context"
	"time"

	"codeberg.org/mutker/devdash/internal/alert"
	"codeberg.org/mutker/devdash/internal/errors"
	"codeberg.org/mutker/devdash/internal/goal"
	"codeberg.org/mutker/devdash/internal/history"
	"codeberg.org/mutker/devdash/internal/logger"
	"codeberg.org/mutker/devdash/internal/sampler"
	"codeberg.org/mutker/devdash/internal/scheduler"
	"codeberg.org/mutker/devdash/internal/source"
	"codeberg.org/mutker/devdash/internal/telemetry"
	"codeberg.org/mutker/devdash/internal/ws"
)

const (
	TimerTelemetry = "telemetry"
	TimerWeather   = "weather"

	goalLoadTimeout = 5 * time.Second
)

// Dispatcher delivers alert events without blocking.
type Dispatcher interface {
	Dispatch(events ...alert.Event)
}

// Publisher pushes messages to the rendering layer.
type Publisher interface {
	Publish(kind string, data any)
}

type Options struct {
	Telemetry       []source.Adapter
	Weather         []source.Adapter
	AdapterTimeout  time.Duration
	Interval        time.Duration
	WeatherInterval time.Duration
	DefaultGoal     int

	Goals      goal.Store
	History    history.Recorder
	Dispatcher Dispatcher
	Publisher  Publisher
	// Steps receives step increments pushed over the API. Nil when the
	// pedometer is simulated or absent.
	Steps *source.StepLog

	Engine *alert.Engine
	Log    logger.Logger
}

type Dashboard struct {
	store      *telemetry.Store
	engine     *alert.Engine
	goals      goal.Store
	history    history.Recorder
	dispatcher Dispatcher
	publisher  Publisher
	steps      *source.StepLog
	telemetry  *sampler.Sampler
	weather    *sampler.Sampler
	scheduler  *scheduler.Scheduler
	log        logger.Logger
	now        func() time.Time
}

// New builds the dashboard and loads the step goal. A missing or unreadable
// goal falls back to the default.
func New(ctx context.Context, opts Options) *Dashboard {
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	engine := opts.Engine
	if engine == nil {
		engine = alert.NewEngine()
	}

	d := &Dashboard{
		engine:     engine,
		goals:      opts.Goals,
		history:    opts.History,
		dispatcher: opts.Dispatcher,
		publisher:  opts.Publisher,
		steps:      opts.Steps,
		log:        log,
		now:        time.Now,
	}

	d.store = telemetry.NewStore(telemetry.NewViewState(d.loadGoal(ctx, opts.DefaultGoal)))
	d.telemetry = sampler.New(TimerTelemetry, opts.Telemetry, opts.AdapterTimeout, logger.New("sampler"))
	d.weather = sampler.New(TimerWeather, opts.Weather, opts.AdapterTimeout, logger.New("sampler"))

	timers := []scheduler.Timer{{Name: TimerTelemetry, Interval: opts.Interval, Pass: d.TelemetryPass}}
	if len(opts.Weather) > 0 {
		timers = append(timers, scheduler.Timer{Name: TimerWeather, Interval: opts.WeatherInterval, Pass: d.WeatherPass})
	}
	d.scheduler = scheduler.New(logger.New("scheduler"), timers...)

	return d
}

func (d *Dashboard) loadGoal(ctx context.Context, fallback int) int {
	if d.goals == nil {
		return fallback
	}

	ctx, cancel := context.WithTimeout(ctx, goalLoadTimeout)
	defer cancel()

	stored, ok, err := d.goals.Get(ctx)
	switch {
	case err != nil:
		d.log.Warn().Err(err).Int("default", fallback).Msg("Failed to load step goal, using default")
		return fallback
	case !ok:
		return fallback
	default:
		return stored
	}
}

// Run drives both timers until ctx is done.
func (d *Dashboard) Run(ctx context.Context) error {
	return d.scheduler.Run(ctx)
}

// TelemetryPass samples every telemetry source and records the resulting
// state in the history.
func (d *Dashboard) TelemetryPass(ctx context.Context) {
	d.telemetry.Run(ctx, d.settle)
	d.record(ctx)
}

// WeatherPass samples the weather source.
func (d *Dashboard) WeatherPass(ctx context.Context) {
	d.weather.Run(ctx, d.settle)
}

// settle merges one adapter's result, evaluates the rules and fans out the
// consequences. Merge and evaluation happen under the store lock; delivery
// does not.
func (d *Dashboard) settle(r sampler.Result) {
	var events []alert.Event

	vs := d.store.Update(func(vs telemetry.ViewState) telemetry.ViewState {
		vs = telemetry.Merge(vs, r.Snapshot, d.now())
		vs, events = d.engine.Evaluate(vs)
		return vs
	})

	for _, ev := range events {
		d.log.Info().Str("kind", string(ev.Kind)).Str("id", ev.ID).Msg(ev.Title)
	}
	if d.dispatcher != nil && len(events) > 0 {
		d.dispatcher.Dispatch(events...)
	}

	d.publish(vs)
}

func (d *Dashboard) record(ctx context.Context) {
	if d.history == nil {
		return
	}
	if err := d.history.Record(ctx, history.FromViewState(d.store.Get())); err != nil {
		var e errors.Error
		if errors.As(err, &e) {
			d.log.ErrorWithCode(e).Msg("Failed to record history")
			return
		}
		d.log.Error().Err(err).Msg("Failed to record history")
	}
}

func (d *Dashboard) publish(vs telemetry.ViewState) {
	if d.publisher != nil {
		d.publisher.Publish(ws.TypeState, vs.ViewAt(d.now()))
	}
}

// State returns the read-only projection for the rendering layer.
func (d *Dashboard) State() telemetry.View {
	return d.store.Get().ViewAt(d.now())
}

// Snapshot returns a copy of the raw view state.
func (d *Dashboard) Snapshot() telemetry.ViewState {
	return d.store.Get()
}

// StepGoal returns the goal currently in force.
func (d *Dashboard) StepGoal() int {
	return d.store.Get().StepGoal
}

// OnRefreshRequested runs both passes now without moving the timers.
func (d *Dashboard) OnRefreshRequested() {
	d.scheduler.Refresh()
}

// OnStepGoalChanged applies a new goal and re-arms the goal notification.
// The goal takes effect even when it cannot be persisted; the persistence
// error is returned.
func (d *Dashboard) OnStepGoalChanged(ctx context.Context, newGoal int) error {
	if err := goal.Validate(newGoal); err != nil {
		return err
	}

	vs := d.store.Update(func(vs telemetry.ViewState) telemetry.ViewState {
		return d.engine.GoalChanged(vs, newGoal)
	})
	d.publish(vs)

	d.log.Info().Int("goal", newGoal).Msg("Step goal changed")

	if d.goals == nil {
		return nil
	}
	if err := d.goals.Set(ctx, newGoal); err != nil {
		d.log.Warn().Err(err).Int("goal", newGoal).Msg("Failed to persist step goal")
		return errors.New().Wrap(errors.ErrPersistGoal, err)
	}

	return nil
}

// RecordSteps adds pushed step increments. They show up on the next
// telemetry pass.
func (d *Dashboard) RecordSteps(at time.Time, steps int) error {
	if d.steps == nil {
		return errors.New().WithData(source.ErrUnavailable, "step counter is not push-fed")
	}
	return d.steps.Record(at, steps)
}

// History returns recent recorded samples, newest first.
func (d *Dashboard) History(ctx context.Context, limit int) ([]history.Sample, error) {
	if d.history == nil {
		return []history.Sample{}, nil
	}
	return d.history.Recent(ctx, limit)
}
