// Package history optionally records merged view states to sqlite.
package history

import (
	"context"
	"time"

	"codeberg.org/mutker/devdash/internal/config"
	"codeberg.org/mutker/devdash/internal/errors"
	"codeberg.org/mutker/devdash/internal/logger"
)

const (
	DefaultLimit = 100
	MaxLimit     = 10000
)

type Config struct {
	Enabled      bool
	DBPath       string
	BatchSize    int
	BatchTimeout time.Duration
}

// FromConfig converts the history section of the daemon configuration.
func FromConfig(cfg config.HistoryConfig) Config {
	return Config{
		Enabled:      cfg.Enabled,
		DBPath:       cfg.DBPath,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: time.Duration(cfg.BatchTimeout) * time.Second,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	// Only validate DBPath if history is enabled
	if c.Enabled && c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	if c.BatchSize < 0 || c.BatchTimeout < 0 {
		return errFactory.WithData(ErrInvalidConfig, "negative batch settings")
	}
	return nil
}

type service struct {
	repo Repository
	cfg  Config
}

type noopRecorder struct{}

// NewService returns a recorder backed by sqlite, or a no-op recorder when
// history is disabled.
func NewService(cfg Config, log logger.Logger) (Recorder, error) {
	errFactory := errors.New()

	if log == nil {
		log = logger.Nop()
	}

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		log.Debug().Msg("History disabled, using no-op recorder")
		return &noopRecorder{}, nil
	}

	repo, err := NewRepository(cfg, log)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to create history repository")
		return nil, err
	}

	return &service{repo: repo, cfg: cfg}, nil
}

func (s *service) Record(ctx context.Context, sample *Sample) error {
	errFactory := errors.New()

	if sample == nil {
		return errFactory.New(ErrInvalidSample)
	}

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
		if err := s.repo.Record(sample); err != nil {
			return errFactory.Wrap(ErrRecord, err)
		}
	}

	return nil
}

func (s *service) Recent(ctx context.Context, limit int) ([]Sample, error) {
	return s.repo.Recent(ctx, ClampLimit(limit))
}

func (s *service) Close() error {
	if err := s.repo.Close(); err != nil {
		return errors.New().Wrap(ErrStorageClose, err)
	}
	return nil
}

func (*service) IsReadOnly() bool {
	return false
}

func (*noopRecorder) Record(context.Context, *Sample) error {
	return nil
}

func (*noopRecorder) Recent(context.Context, int) ([]Sample, error) {
	return []Sample{}, nil
}

func (*noopRecorder) Close() error {
	return nil
}

func (*noopRecorder) IsReadOnly() bool {
	return true
}

// ClampLimit maps a requested row count onto [1, MaxLimit], defaulting
// non-positive values.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}
