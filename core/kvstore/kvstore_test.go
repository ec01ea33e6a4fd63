package kvstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jrazmi/habitsync/core/kvstore"
	"github.com/jrazmi/habitsync/core/kvstore/stores/kvmemstore"
	"github.com/jrazmi/habitsync/core/model"
	"github.com/jrazmi/habitsync/sdk/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func newStore(t *testing.T) (*kvstore.Store, *kvmemstore.Store) {
	t.Helper()
	mem := kvmemstore.New()
	return kvstore.NewStore(logger.NewDiscard(), mem), mem
}

func TestLoad_AbsentKeyReturnsDefault(t *testing.T) {
	s, _ := newStore(t)
	got := kvstore.Load(context.Background(), s, "tasks", []item{})
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Empty(t, s.Errors())
}

func TestSaveThenLoad(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	in := []item{{ID: "1", Name: "Run"}, {ID: "2", Name: "Read"}}
	require.True(t, kvstore.Save(ctx, s, "tasks", in))

	out := kvstore.Load(ctx, s, "tasks", []item(nil))
	assert.Equal(t, in, out)
}

func TestLoad_CorruptDataReturnsDefault(t *testing.T) {
	ctx := context.Background()
	s, mem := newStore(t)
	mem.Corrupt("tasks", []byte("{not json"))

	out := kvstore.Load(ctx, s, "tasks", []item{})
	assert.Empty(t, out)

	select {
	case f := <-s.Errors():
		assert.Equal(t, "decode", f.Op)
		assert.Equal(t, "tasks", f.Key)
	default:
		t.Fatal("expected a decode failure on the error channel")
	}
}

func TestSave_BackendFailureIsReported(t *testing.T) {
	ctx := context.Background()
	s, mem := newStore(t)
	boom := errors.New("disk full")
	mem.Fail(nil, boom)

	ok := kvstore.Save(ctx, s, "tasks", []item{{ID: "1"}})
	assert.False(t, ok)

	f := <-s.Errors()
	assert.Equal(t, "write", f.Op)
	assert.ErrorIs(t, f, model.ErrStorage)
	assert.ErrorIs(t, f, boom)
}

func TestLoad_ReadFailureReturnsDefault(t *testing.T) {
	ctx := context.Background()
	s, mem := newStore(t)
	require.True(t, kvstore.Save(ctx, s, "k", item{ID: "x"}))
	mem.Fail(errors.New("io"), nil)

	got := kvstore.Load(ctx, s, "k", item{ID: "default"})
	assert.Equal(t, "default", got.ID)

	f := <-s.Errors()
	assert.Equal(t, "read", f.Op)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s, mem := newStore(t)
	require.True(t, kvstore.Save(ctx, s, "k", 1))

	assert.True(t, s.Delete(ctx, "k"))
	assert.True(t, s.Delete(ctx, "k"), "missing key is not a failure")
	assert.Empty(t, mem.Keys())
}

func TestErrorChannelOverflowDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	mem := kvmemstore.New()
	mem.Fail(nil, errors.New("nope"))
	s := kvstore.NewStore(logger.NewDiscard(), mem, kvstore.WithErrorBuffer(1))

	for i := 0; i < 5; i++ {
		assert.False(t, kvstore.Save(ctx, s, "k", i))
	}
	assert.Len(t, s.Errors(), 1)
}

func TestWithKeys(t *testing.T) {
	keys := kvstore.DefaultKeys()
	keys.Tasks = "custom-tasks"
	s := kvstore.NewStore(logger.NewDiscard(), kvmemstore.New(), kvstore.WithKeys(keys))
	assert.Equal(t, "custom-tasks", s.Keys().Tasks)
	assert.Equal(t, "dismissedHabitTasks", s.Keys().Dismissed)
}

func TestRead_DistinguishesAbsentFromFailure(t *testing.T) {
	ctx := context.Background()
	s, mem := newStore(t)

	v, err := kvstore.Read(ctx, s, "missing", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	mem.Fail(errors.New("offline"), nil)
	v, err = kvstore.Read(ctx, s, "missing", 7)
	assert.ErrorIs(t, err, model.ErrStorage)
	assert.Equal(t, 7, v)
}
