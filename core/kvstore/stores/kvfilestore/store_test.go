package kvfilestore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jrazmi/habitsync/core/kvstore"
	"github.com/jrazmi/habitsync/core/kvstore/stores/kvfilestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "data")
	s, err := kvfilestore.New(dir)
	require.NoError(t, err)

	_, err = s.Get(ctx, "habit-templates")
	assert.ErrorIs(t, err, kvstore.ErrKeyNotFound)

	require.NoError(t, s.Put(ctx, "habit-templates", []byte(`[]`)))
	got, err := s.Get(ctx, "habit-templates")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "habit-templates.json", entries[0].Name())

	require.NoError(t, s.Delete(ctx, "habit-templates"))
	assert.ErrorIs(t, s.Delete(ctx, "habit-templates"), kvstore.ErrKeyNotFound)
}

func TestStore_KeysAreEscaped(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := kvfilestore.New(dir)
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "../escape", []byte(`1`)))
	got, err := s.Get(ctx, "../escape")
	require.NoError(t, err)
	assert.Equal(t, `1`, string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
