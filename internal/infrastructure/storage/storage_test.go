package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := kv.Get(ctx, KeyCurrentSession)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Set(ctx, KeyCurrentSession, `{"fisno":"100"}`))
	got, ok, err := kv.Get(ctx, KeyCurrentSession)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"fisno":"100"}`, got)

	// Overwrite wins.
	require.NoError(t, kv.Set(ctx, KeyCurrentSession, "null"))
	got, _, err = kv.Get(ctx, KeyCurrentSession)
	require.NoError(t, err)
	assert.Equal(t, "null", got)

	require.NoError(t, kv.Remove(ctx, KeyCurrentSession))
	_, ok, err = kv.Get(ctx, KeyCurrentSession)
	require.NoError(t, err)
	assert.False(t, ok)

	// Removing an absent key is a no-op.
	assert.NoError(t, kv.Remove(ctx, "never-set"))
}

func TestMemoryKV(t *testing.T) {
	testKV(t, NewMemory())
}

func TestSQLiteKV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "okuma.db")
	kv, err := OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	testKV(t, kv)
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "okuma.db")

	kv, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, kv.Set(ctx, KeyPendingSessions, "[]"))
	require.NoError(t, kv.Close())

	kv, err = OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	got, ok, err := kv.Get(ctx, KeyPendingSessions)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "[]", got)
}
