package goal

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"codeberg.org/mutker/devdash/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "settings.db")

	s, err := Open(path, nil)
	require.NoError(t, err)

	_, ok, err := s.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, 8000))
	require.NoError(t, s.Set(ctx, 7500))
	require.NoError(t, s.Close())

	s, err = Open(path, nil)
	require.NoError(t, err)
	defer s.Close()

	goal, ok, err := s.Get(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 7500, goal)
}

func TestSQLiteStoreRejectsInvalidGoal(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "settings.db"), nil)
	require.NoError(t, err)
	defer s.Close()

	err = s.Set(context.Background(), 0)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidGoal))
}

func TestSQLiteStoreCorruptValue(t *testing.T) {
	ctx := context.Background()
	s, err := Open(filepath.Join(t.TempDir(), "settings.db"), nil)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.db.Exec(upsertSettingSQL, stepGoalKey, "lots")
	require.NoError(t, err)

	_, ok, err := s.Get(ctx)
	assert.False(t, ok)
	assert.True(t, errors.HasCode(err, errors.ErrLoadGoal))
}

func TestOpenEmptyPath(t *testing.T) {
	_, err := Open("", nil)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidConfig))
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := &MemoryStore{}

	_, ok, err := m.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, 6500))
	goal, ok, err := m.Get(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 6500, goal)

	assert.Error(t, m.Set(ctx, -3))

	m.Fail = fmt.Errorf("disk gone")
	_, _, err = m.Get(ctx)
	assert.Error(t, err)
}
