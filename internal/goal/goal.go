// Package goal persists the user's daily step goal.
package goal

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"codeberg.org/mutker/devdash/internal/errors"
	"codeberg.org/mutker/devdash/internal/logger"
	_ "github.com/mattn/go-sqlite3"
)

const (
	stepGoalKey    = "step_goal"
	defaultDirPerm = 0o755

	createSettingsSQL = `
	CREATE TABLE IF NOT EXISTS settings (
	    key        TEXT PRIMARY KEY,
	    value      TEXT NOT NULL,
	    updated_at TEXT NOT NULL
	);`

	upsertSettingSQL = `
	INSERT INTO settings (key, value, updated_at)
	VALUES (?, ?, datetime('now'))
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	selectSettingSQL = `SELECT value FROM settings WHERE key = ?`
)

// Store is a durable single-key store for the step goal.
type Store interface {
	// Get returns the stored goal and whether one was stored.
	Get(ctx context.Context) (int, bool, error)
	Set(ctx context.Context, goal int) error
}

// Validate reports whether goal is usable as a step goal.
func Validate(goal int) error {
	if goal <= 0 {
		return errors.New().WithData(errors.ErrInvalidGoal, goal)
	}
	return nil
}

// SQLiteStore keeps the goal in a settings table.
type SQLiteStore struct {
	db  *sql.DB
	log logger.Logger
}

// Open opens or creates the settings database at path.
func Open(path string, log logger.Logger) (*SQLiteStore, error) {
	errFactory := errors.New()

	if log == nil {
		log = logger.Nop()
	}

	if path == "" {
		return nil, errFactory.WithMessage(errors.ErrInvalidConfig, "settings database path is empty")
	}

	if err := os.MkdirAll(filepath.Dir(path), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(errors.ErrInitFailed, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  path,
			Error: err.Error(),
		})
	}

	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrInitFailed, err)
	}

	if _, err := db.Exec(createSettingsSQL); err != nil {
		db.Close()
		return nil, errFactory.WithData(errors.ErrInitFailed, struct {
			Phase string
			Error string
		}{
			Phase: "create_schema",
			Error: err.Error(),
		})
	}

	log.Debug().Str("path", path).Msg("Settings store opened")

	return &SQLiteStore{db: db, log: log}, nil
}

func (s *SQLiteStore) Get(ctx context.Context) (int, bool, error) {
	errFactory := errors.New()

	var raw string
	err := s.db.QueryRowContext(ctx, selectSettingSQL, stepGoalKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errFactory.Wrap(errors.ErrLoadGoal, err)
	}

	goal, err := strconv.Atoi(raw)
	if err != nil || Validate(goal) != nil {
		return 0, false, errFactory.WithData(errors.ErrLoadGoal, "stored value "+strconv.Quote(raw))
	}

	return goal, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, goal int) error {
	if err := Validate(goal); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, upsertSettingSQL, stepGoalKey, strconv.Itoa(goal)); err != nil {
		return errors.New().Wrap(errors.ErrPersistGoal, err)
	}

	s.log.Debug().Int("goal", goal).Msg("Step goal persisted")

	return nil
}

func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return errors.New().Wrap(errors.ErrShutdownFailed, err)
	}
	return nil
}

// MemoryStore keeps the goal in memory.
type MemoryStore struct {
	mu   sync.Mutex
	goal int
	set  bool
	Fail error // returned by every call when set
}

func (m *MemoryStore) Get(context.Context) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return 0, false, m.Fail
	}
	return m.goal, m.set, nil
}

func (m *MemoryStore) Set(_ context.Context, goal int) error {
	if err := Validate(goal); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	m.goal, m.set = goal, true
	return nil
}
