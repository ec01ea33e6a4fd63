// Package model holds the task and habit records shared by the sync core.
package model

import (
	"time"

	"github.com/google/uuid"
)

type TaskType string

const (
	TaskTypeRegular    TaskType = "regular"
	TaskTypeTimer      TaskType = "timer"
	TaskTypeJournal    TaskType = "journal"
	TaskTypeChecklist  TaskType = "checklist"
	TaskTypeScreenshot TaskType = "screenshot"
	TaskTypeVoiceNote  TaskType = "voicenote"
)

// Valid reports whether t is one of the fixed task variants.
func (t TaskType) Valid() bool {
	switch t {
	case TaskTypeRegular, TaskTypeTimer, TaskTypeJournal, TaskTypeChecklist, TaskTypeScreenshot, TaskTypeVoiceNote:
		return true
	}
	return false
}

// TaskTypeForMetric maps a habit metric type onto the task variant that
// tracks it. Unknown metric types produce regular tasks.
func TaskTypeForMetric(metricType string) TaskType {
	switch metricType {
	case MetricTimer:
		return TaskTypeTimer
	case MetricJournal:
		return TaskTypeJournal
	default:
		return TaskTypeRegular
	}
}

// Relationships is set only on habit-derived tasks.
type Relationships struct {
	HabitID    string `json:"habitId"`
	TemplateID string `json:"templateId,omitempty"`
	Date       string `json:"date"`
}

// TaskMetrics is timer and efficiency data attached on completion.
type TaskMetrics struct {
	ExpectedTime  int     `json:"expectedTime"` // seconds
	ActualTime    int     `json:"actualTime"`
	PausedTime    int     `json:"pausedTime"`
	ExtraTime     int     `json:"extraTime"`
	TimeSpent     int     `json:"timeSpent"`
	EfficiencyPct float64 `json:"efficiencyRatio"`
	CompletedAt   string  `json:"completedAt,omitempty"`
}

type Task struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Completed     bool           `json:"completed"`
	Duration      int            `json:"duration,omitempty"` // seconds
	CreatedAt     time.Time      `json:"createdAt"`
	CompletedAt   *time.Time     `json:"completedAt,omitempty"`
	DismissedAt   *time.Time     `json:"dismissedAt,omitempty"`
	TaskType      TaskType       `json:"taskType"`
	Relationships *Relationships `json:"relationships,omitempty"`
	Metrics       *TaskMetrics   `json:"metrics,omitempty"`
}

func NewTaskID() string {
	return uuid.NewString()
}

// IsHabitTask reports whether the task was derived from a habit.
func (t Task) IsHabitTask() bool {
	return t.Relationships != nil && t.Relationships.HabitID != ""
}

// MatchesHabit reports whether t is the derived task for (habitID, date).
func (t Task) MatchesHabit(habitID, date string) bool {
	return t.IsHabitTask() && t.Relationships.HabitID == habitID && t.Relationships.Date == date
}

// Clone returns a copy that shares no pointers with t.
func (t Task) Clone() Task {
	c := t
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		c.CompletedAt = &v
	}
	if t.DismissedAt != nil {
		v := *t.DismissedAt
		c.DismissedAt = &v
	}
	if t.Relationships != nil {
		v := *t.Relationships
		c.Relationships = &v
	}
	if t.Metrics != nil {
		v := *t.Metrics
		c.Metrics = &v
	}
	return c
}

// Validate checks the record-level invariants of a task.
func (t Task) Validate() error {
	if t.ID == "" {
		return ValidationError("id", "required")
	}
	if t.Name == "" {
		return ValidationError("name", "required")
	}
	if t.Duration < 0 {
		return ValidationError("duration", "must be positive")
	}
	if !t.TaskType.Valid() {
		return ValidationError("taskType", "unknown variant "+string(t.TaskType))
	}
	if t.CompletedAt != nil && t.DismissedAt != nil {
		return ValidationError("completedAt", "mutually exclusive with dismissedAt")
	}
	if t.Relationships != nil && (t.Relationships.HabitID == "" || t.Relationships.Date == "") {
		return ValidationError("relationships", "habitId and date are required together")
	}
	return nil
}
