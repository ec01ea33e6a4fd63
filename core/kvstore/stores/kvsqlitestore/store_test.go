package kvsqlitestore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jrazmi/habitsync/core/kvstore"
	"github.com/jrazmi/habitsync/core/kvstore/stores/kvsqlitestore"
	"github.com/jrazmi/habitsync/infrastructure/sqlitedb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := sqlitedb.Open(ctx, sqlitedb.Options{Path: filepath.Join(t.TempDir(), "kv.db")})
	require.NoError(t, err)
	defer db.Close()

	s := kvsqlitestore.New(db)

	_, err = s.Get(ctx, "tasks")
	assert.ErrorIs(t, err, kvstore.ErrKeyNotFound)

	require.NoError(t, s.Put(ctx, "tasks", []byte(`[1]`)))
	require.NoError(t, s.Put(ctx, "tasks", []byte(`[1,2]`)))

	got, err := s.Get(ctx, "tasks")
	require.NoError(t, err)
	assert.Equal(t, `[1,2]`, string(got))

	require.NoError(t, s.Delete(ctx, "tasks"))
	assert.ErrorIs(t, s.Delete(ctx, "tasks"), kvstore.ErrKeyNotFound)
}

func TestStore_Memory(t *testing.T) {
	ctx := context.Background()
	db, err := sqlitedb.Open(ctx, sqlitedb.Options{Path: ":memory:"})
	require.NoError(t, err)
	defer db.Close()

	s := kvsqlitestore.New(db)
	require.NoError(t, s.Put(ctx, "k", []byte("v")))
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))
}
