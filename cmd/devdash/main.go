package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/devdash/internal/config"
	"codeberg.org/mutker/devdash/internal/dashboard"
	"codeberg.org/mutker/devdash/internal/demo"
	"codeberg.org/mutker/devdash/internal/errors"
	"codeberg.org/mutker/devdash/internal/goal"
	"codeberg.org/mutker/devdash/internal/history"
	"codeberg.org/mutker/devdash/internal/logger"
	"codeberg.org/mutker/devdash/internal/notify"
	"codeberg.org/mutker/devdash/internal/pid"
	"codeberg.org/mutker/devdash/internal/server"
	"codeberg.org/mutker/devdash/internal/source"
	"codeberg.org/mutker/devdash/internal/weather"
	"codeberg.org/mutker/devdash/internal/ws"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Options{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		IsService:  logger.IsService(),
	})
	logger.Debug().Msg("Config loaded")

	if err := pid.Write(); err != nil {
		fatal(errors.ErrInitApp, err, "Failed to write PID file")
	}

	code := 0
	if err := run(cfg); err != nil {
		logger.Error().Err(err).Msg("Exited with error")
		code = 1
	}

	if err := pid.Remove(); err != nil {
		logger.Warn().Err(err).Msg("Failed to remove PID file")
	}
	logger.Info().Msg("Exiting...")
	os.Exit(code)
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetryAdapters, steps := telemetryAdapters(cfg)

	var weatherAdapters []source.Adapter
	if cfg.Weather.Enabled {
		weatherAdapters = append(weatherAdapters, weather.FromConfig(cfg.Weather))
	}

	goals, err := goal.Open(cfg.Store.DBPath, logger.New("goal"))
	if err != nil {
		return errors.New().Wrap(errors.ErrInitApp, err)
	}
	defer goals.Close()

	recorder, err := history.NewService(history.FromConfig(cfg.History), logger.New("history"))
	if err != nil {
		return errors.New().Wrap(errors.ErrInitHistory, err)
	}
	defer recorder.Close()

	hub := ws.NewHub(logger.New("ws"))
	dispatcher := notify.NewDispatcher(notificationSinks(cfg, hub), notify.MultiHaptic{notify.HubSink{Hub: hub}},
		cfg.Notify.QueueSize, logger.New("notify"))
	defer dispatcher.Close()

	dash := dashboard.New(ctx, dashboard.Options{
		Telemetry:       telemetryAdapters,
		Weather:         weatherAdapters,
		AdapterTimeout:  cfg.Sampler.AdapterTimeout,
		Interval:        cfg.Sampler.Interval,
		WeatherInterval: cfg.Sampler.WeatherInterval,
		DefaultGoal:     cfg.Steps.DefaultGoal,
		Goals:           goals,
		History:         recorder,
		Dispatcher:      dispatcher,
		Publisher:       hub,
		Steps:           steps,
		Log:             logger.New("dashboard"),
	})
	hub.Greeting = func() ws.Message {
		return ws.Message{Type: ws.TypeState, At: time.Now(), Data: dash.State()}
	}

	srv := server.New(dash, hub.Handler(), logger.New("server"))

	logger.Info().
		Str("bind", cfg.Server.Bind).
		Dur("interval", cfg.Sampler.Interval).
		Bool("demo", cfg.Demo).
		Bool("weather", cfg.Weather.Enabled).
		Int("step_goal", dash.StepGoal()).
		Msg("Starting devdash")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return srv.ListenAndServe(gctx, cfg.Server.Bind) })
	g.Go(func() error { return dash.Run(gctx) })

	err = g.Wait()
	if ctx.Err() != nil {
		logger.Info().Msg("Received termination signal.")
		return nil
	}

	return err
}

// telemetryAdapters builds the per-tick sources. The returned log is nil
// when steps are simulated.
func telemetryAdapters(cfg *config.Config) ([]source.Adapter, *source.StepLog) {
	adapters := []source.Adapter{
		source.NewStorage(cfg.Storage.Path),
		source.NewMemory(),
		source.NewNetwork(),
		source.NewDevice(),
	}

	if cfg.Demo {
		logger.Info().Msg("Demo mode activated. Battery and steps are simulated.")
		return append(adapters, demo.NewBattery(), demo.NewPedometer()), nil
	}

	steps := source.NewStepLog()
	return append(adapters, source.NewBattery(cfg.Battery.SupplyPath), source.NewPedometer(steps)), steps
}

func notificationSinks(cfg *config.Config, hub *ws.Hub) notify.NotificationSink {
	sinks := notify.Multi{
		notify.LogSink{Log: logger.New("notification")},
		notify.HubSink{Hub: hub},
	}

	if cfg.Notify.Desktop {
		desktop, err := notify.NewDesktopSink()
		if err != nil {
			logger.Warn().Err(err).Msg("Desktop notifications unavailable")
		} else {
			sinks = append(sinks, desktop)
		}
	}

	return sinks
}

func fatal(code errors.ErrorCode, err error, msg string) {
	logger.FatalWithCode(errors.New().Wrap(code, err)).Msg(msg)
}
