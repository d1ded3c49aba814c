package kv

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flipfinder/backend/internal/domain"
)

func openTestStore(t *testing.T) (*SQLiteStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "flipfinder.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	return s, path
}

func TestSQLiteStore_GetSet(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)
	defer s.Close()

	_, err := s.Get(ctx, "settings")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.Set(ctx, "settings", []byte(`{"enabled":true}`)))
	got, err := s.Get(ctx, "settings")
	require.NoError(t, err)
	assert.JSONEq(t, `{"enabled":true}`, string(got))

	require.NoError(t, s.Set(ctx, "settings", []byte(`{"enabled":false}`)))
	got, err = s.Get(ctx, "settings")
	require.NoError(t, err)
	assert.JSONEq(t, `{"enabled":false}`, string(got))
}

func TestSQLiteStore_Delete(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)
	defer s.Close()

	require.NoError(t, s.Set(ctx, "stats", []byte(`{}`)))
	require.NoError(t, s.Delete(ctx, "stats"))
	require.NoError(t, s.Delete(ctx, "stats"))

	_, err := s.Get(ctx, "stats")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	s, path := openTestStore(t)
	require.NoError(t, s.Set(ctx, "stats", []byte(`{"productsAnalyzed":4}`)))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "stats")
	require.NoError(t, err)
	assert.JSONEq(t, `{"productsAnalyzed":4}`, string(got))
}
