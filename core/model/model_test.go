package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrazmi/habitsync/core/model"
)

func TestSchedulingEventNormalize(t *testing.T) {
	ev := model.SchedulingEvent{HabitID: "H1", Name: "Read", Date: "Mon Oct 19 2026", Duration: 0}

	got, err := ev.Normalize(900)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-19", got.Date)
	assert.Equal(t, 900, got.Duration)

	got, err = model.SchedulingEvent{HabitID: "H1", Name: "Read", Date: "2026-10-19", Duration: -5}.Normalize(0)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultHabitDuration, got.Duration)
}

func TestSchedulingEventNormalizeRejects(t *testing.T) {
	cases := []model.SchedulingEvent{
		{Name: "Read", Date: "2026-10-19"},
		{HabitID: "H1", Date: "2026-10-19"},
		{HabitID: "H1", Name: "Read"},
		{HabitID: "H1", Name: "Read", Date: "someday"},
	}
	for _, ev := range cases {
		_, err := ev.Normalize(1500)
		assert.True(t, errors.Is(err, model.ErrValidation), "%+v", ev)
	}
}

func TestTaskTypeForMetric(t *testing.T) {
	assert.Equal(t, model.TaskTypeTimer, model.TaskTypeForMetric("timer"))
	assert.Equal(t, model.TaskTypeJournal, model.TaskTypeForMetric("journal"))
	assert.Equal(t, model.TaskTypeRegular, model.TaskTypeForMetric("boolean"))
	assert.Equal(t, model.TaskTypeRegular, model.TaskTypeForMetric(""))
}

func TestTaskValidate(t *testing.T) {
	now := time.Now()
	base := model.Task{ID: "t1", Name: "Walk", TaskType: model.TaskTypeRegular}
	require.NoError(t, base.Validate())

	both := base
	both.CompletedAt, both.DismissedAt = &now, &now
	assert.ErrorIs(t, both.Validate(), model.ErrValidation)

	badType := base
	badType.TaskType = "video"
	assert.ErrorIs(t, badType.Validate(), model.ErrValidation)

	halfRel := base
	halfRel.Relationships = &model.Relationships{HabitID: "H1"}
	assert.ErrorIs(t, halfRel.Validate(), model.ErrValidation)
}

func TestTaskCloneSharesNoPointers(t *testing.T) {
	now := time.Now()
	orig := model.Task{
		ID:            "t1",
		CompletedAt:   &now,
		Relationships: &model.Relationships{HabitID: "H1", Date: "2026-10-19"},
		Metrics:       &model.TaskMetrics{ActualTime: 10},
	}
	c := orig.Clone()
	c.Relationships.HabitID = "H2"
	c.Metrics.ActualTime = 20

	assert.Equal(t, "H1", orig.Relationships.HabitID)
	assert.Equal(t, 10, orig.Metrics.ActualTime)
	assert.True(t, c.MatchesHabit("H2", "2026-10-19"))
}

func TestActiveTemplate(t *testing.T) {
	tpl := model.ActiveTemplate{
		TemplateID: "T1",
		ActiveDays: []string{"Monday", "wed"},
		Habits:     []model.HabitDetail{{ID: "H1", Name: "Read"}},
	}
	require.NoError(t, tpl.Validate())
	assert.True(t, tpl.Enabled())
	assert.True(t, tpl.ActiveOn(time.Monday))
	assert.True(t, tpl.ActiveOn(time.Wednesday))
	assert.False(t, tpl.ActiveOn(time.Tuesday))

	tpl.ActiveDays = nil
	assert.False(t, tpl.Enabled())
	assert.ErrorIs(t, tpl.Validate(), model.ErrValidation)

	dup := model.ActiveTemplate{
		TemplateID: "T2",
		ActiveDays: []string{"Friday"},
		Habits:     []model.HabitDetail{{ID: "H1", Name: "a"}, {ID: "H1", Name: "b"}},
	}
	assert.ErrorIs(t, dup.Validate(), model.ErrValidation)
}

func TestSchedulingEventFor(t *testing.T) {
	tpl := model.ActiveTemplate{TemplateID: "T1"}
	h := model.HabitDetail{ID: "H1", Name: "Focus", Metrics: model.HabitMetrics{Type: "timer", Target: 1500}}

	ev := model.SchedulingEventFor(tpl, h, "2026-10-19")
	assert.Equal(t, model.SchedulingEvent{
		HabitID: "H1", TemplateID: "T1", Name: "Focus", Duration: 1500, Date: "2026-10-19", MetricType: "timer",
	}, ev)
	assert.Equal(t, "H1-2026-10-19", ev.Key())
}

func TestTaskPatchApply(t *testing.T) {
	now := time.Now()
	name := "Stretch"
	done := true
	base := model.Task{ID: "t1", Name: "Walk", TaskType: model.TaskTypeRegular}

	got, err := model.TaskPatch{Name: &name, Completed: &done, CompletedAt: &now}.Apply(base)
	require.NoError(t, err)
	assert.Equal(t, "Stretch", got.Name)
	assert.True(t, got.Completed)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, "Walk", base.Name)

	_, err = model.TaskPatch{DismissedAt: &now}.Apply(got)
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = model.TaskPatch{CompletedAt: &now}.Apply(got)
	assert.ErrorIs(t, err, model.ErrValidation)

	zero := 0
	_, err = model.TaskPatch{Duration: &zero}.Apply(base)
	assert.ErrorIs(t, err, model.ErrValidation)

	assert.True(t, model.TaskPatch{}.Empty())
}
