package kvpgxstore_test

import (
	"context"
	"os"
	"testing"

	"github.com/jrazmi/habitsync/core/kvstore"
	"github.com/jrazmi/habitsync/core/kvstore/stores/kvpgxstore"
	"github.com/jrazmi/habitsync/infrastructure/postgresdb"
	"github.com/jrazmi/habitsync/sdk/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RoundTrip(t *testing.T) {
	url := os.Getenv("HABITSYNC_TEST_PG_URL")
	if url == "" {
		t.Skip("HABITSYNC_TEST_PG_URL not set")
	}

	ctx := context.Background()
	log := logger.NewDiscard()
	pool, err := postgresdb.New(postgresdb.Options{DatabaseURL: url}, postgresdb.WithLogger(log))
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, postgresdb.Migrate(ctx, pool, log))

	s := kvpgxstore.New(pool)
	key := "kvpgxstore-test"
	_ = s.Delete(ctx, key)

	_, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, kvstore.ErrKeyNotFound)

	require.NoError(t, s.Put(ctx, key, []byte(`{"a":1}`)))
	require.NoError(t, s.Put(ctx, key, []byte(`{"a":2}`)))

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":2}`, string(got))

	require.NoError(t, s.Delete(ctx, key))
	assert.ErrorIs(t, s.Delete(ctx, key), kvstore.ErrKeyNotFound)
}
