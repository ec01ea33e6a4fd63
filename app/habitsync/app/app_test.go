package app_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrazmi/habitsync/app/habitsync/app"
	"github.com/jrazmi/habitsync/app/habitsync/config"
	"github.com/jrazmi/habitsync/core/kvstore/stores/kvmemstore"
	"github.com/jrazmi/habitsync/core/model"
	"github.com/jrazmi/habitsync/sdk/clock"
	"github.com/jrazmi/habitsync/sdk/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2025-03-03 is a Monday.
var monday = time.Date(2025, 3, 3, 7, 0, 0, 0, time.UTC)

func testConfig(t *testing.T, backend string) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Store.Backend = backend
	cfg.Store.DataDir = t.TempDir()
	cfg.Store.SQLite.Path = filepath.Join(t.TempDir(), "habitsync.db")
	cfg.Core.Tasks.VerifyDelay = 0
	return cfg
}

func templates() []model.ActiveTemplate {
	return []model.ActiveTemplate{{
		TemplateID: "T1",
		ActiveDays: []string{"Monday", "Wednesday"},
		Habits: []model.HabitDetail{
			{ID: "H1", Name: "Focus block", Metrics: model.HabitMetrics{Type: model.MetricTimer, Target: 1500}},
			{ID: "H2", Name: "Evening journal", Metrics: model.HabitMetrics{Type: model.MetricJournal}},
		},
	}}
}

func habitTasksOn(list []model.Task, date string) map[string]model.Task {
	out := make(map[string]model.Task)
	for _, t := range list {
		if t.IsHabitTask() && t.Relationships.Date == date {
			out[t.Relationships.HabitID] = t
		}
	}
	return out
}

func TestApp_DailyLifecycle(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(monday)
	a, err := app.New(ctx, testConfig(t, config.BackendMemory), logger.NewDiscard(),
		app.WithClock(clk), app.WithStorer(kvmemstore.New()))
	require.NoError(t, err)
	t.Cleanup(a.Close)

	require.NoError(t, a.Habits.SaveTemplates(ctx, templates()))

	// First start is a rollover from nothing; the backfill creates Monday's tasks.
	require.NoError(t, a.Startup(ctx))
	mondayTasks := habitTasksOn(a.Tasks.Tasks(), "2025-03-03")
	require.Len(t, mondayTasks, 2)
	assert.Equal(t, 1500, mondayTasks["H1"].Duration)
	assert.Equal(t, model.TaskTypeTimer, mondayTasks["H1"].TaskType)

	// A second start on the same day changes nothing.
	require.NoError(t, a.Startup(ctx))
	assert.Len(t, a.Tasks.Tasks(), 2)

	_, ok := a.Tasks.CompleteTask(ctx, mondayTasks["H1"].ID, nil)
	require.True(t, ok)
	assert.Len(t, a.Tasks.CompletedTasks(), 1)

	// Tuesday has no habits due; rollover resets completion.
	clk.Advance(24 * time.Hour)
	moved, err := a.Rollover.Check(ctx)
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Empty(t, a.Tasks.CompletedTasks())
	assert.Empty(t, habitTasksOn(a.Tasks.Tasks(), "2025-03-04"))

	// Wednesday: dismiss the journal before the scheduler sees it again.
	clk.Advance(24 * time.Hour)
	moved, err = a.Rollover.Check(ctx)
	require.NoError(t, err)
	assert.True(t, moved)
	wednesday := habitTasksOn(a.Tasks.Tasks(), "2025-03-05")
	require.Len(t, wednesday, 2)

	require.NoError(t, a.Tasks.DismissTask(ctx, "H2", "2025-03-05"))
	a.Habits.Run(ctx)
	wednesday = habitTasksOn(a.Tasks.Tasks(), "2025-03-05")
	assert.Len(t, wednesday, 1)
	assert.Contains(t, wednesday, "H1")
}

func TestApp_PersistentBackendsSurviveRestart(t *testing.T) {
	for _, backend := range []string{config.BackendFile, config.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			cfg := testConfig(t, backend)
			clk := clock.NewFake(monday)

			a, err := app.New(ctx, cfg, logger.NewDiscard(), app.WithClock(clk))
			require.NoError(t, err)
			require.NoError(t, a.Habits.SaveTemplates(ctx, templates()))
			require.NoError(t, a.Startup(ctx))
			created, err := a.Tasks.CreateTask(ctx, model.Task{Name: "Water plants"})
			require.NoError(t, err)
			a.Close()

			b, err := app.New(ctx, cfg, logger.NewDiscard(), app.WithClock(clk))
			require.NoError(t, err)
			t.Cleanup(b.Close)

			assert.Len(t, b.Tasks.Tasks(), 3)
			assert.Len(t, habitTasksOn(b.Tasks.Tasks(), "2025-03-03"), 2)
			require.NoError(t, b.Startup(ctx))
			assert.Len(t, b.Tasks.Tasks(), 3)

			var found bool
			for _, task := range b.Tasks.Tasks() {
				found = found || task.ID == created.ID
			}
			assert.True(t, found)
		})
	}
}

func TestApp_UnknownBackend(t *testing.T) {
	cfg := testConfig(t, "redis")
	_, err := app.New(context.Background(), cfg, logger.NewDiscard())
	assert.Error(t, err)
}

func TestApp_HabitRetriedAfterFailedWrite(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(monday)
	mem := kvmemstore.New()
	a, err := app.New(ctx, testConfig(t, config.BackendMemory), logger.NewDiscard(),
		app.WithClock(clk), app.WithStorer(mem))
	require.NoError(t, err)
	t.Cleanup(a.Close)
	require.NoError(t, a.Habits.SaveTemplates(ctx, templates()))

	mem.Fail(nil, errors.New("disk full"))
	require.NoError(t, a.Startup(ctx))
	assert.Empty(t, a.Tasks.Tasks())
	assert.False(t, a.Habits.Scheduled("H1", "2025-03-03"))

	mem.Fail(nil, nil)
	clk.Advance(10 * time.Minute)
	a.Habits.Run(ctx)
	assert.Len(t, habitTasksOn(a.Tasks.Tasks(), "2025-03-03"), 2)
}

func TestApp_StartupSurvivesCorruptSyncDate(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(monday)
	mem := kvmemstore.New()
	a, err := app.New(ctx, testConfig(t, config.BackendMemory), logger.NewDiscard(),
		app.WithClock(clk), app.WithStorer(mem))
	require.NoError(t, err)
	t.Cleanup(a.Close)
	require.NoError(t, a.Habits.SaveTemplates(ctx, templates()))
	mem.Corrupt(a.Store.Keys().LastSyncDate, []byte("{{not json"))

	require.NoError(t, a.Startup(ctx))
	require.NoError(t, a.Startup(ctx))
	assert.Len(t, habitTasksOn(a.Tasks.Tasks(), "2025-03-03"), 2)
}
