package model

import (
	"strings"
	"time"

	"github.com/jrazmi/habitsync/sdk/validation"
)

// Habit metric types.
const (
	MetricTimer   = "timer"
	MetricJournal = "journal"
	MetricBoolean = "boolean"
)

// DefaultHabitDuration is used when a scheduling request carries no positive
// duration. The synchronizer takes its value from configuration.
const DefaultHabitDuration = 1500

type HabitMetrics struct {
	Type   string `json:"type" yaml:"type"`
	Target int    `json:"target,omitempty" yaml:"target,omitempty"` // seconds, timer habits
}

type HabitDetail struct {
	ID      string       `json:"id" yaml:"id"`
	Name    string       `json:"name" yaml:"name"`
	Metrics HabitMetrics `json:"metrics" yaml:"metrics"`
}

type ActiveTemplate struct {
	TemplateID string        `json:"templateId" yaml:"templateId"`
	Habits     []HabitDetail `json:"habits" yaml:"habits"`
	ActiveDays []string      `json:"activeDays" yaml:"activeDays"`
	Customized bool          `json:"customized" yaml:"customized"`
}

// Enabled reports whether the template has at least one active day.
// Templates with no active days are disabled, not deleted.
func (t ActiveTemplate) Enabled() bool {
	return len(t.ActiveDays) > 0
}

// ActiveOn reports whether the template's habits are due on weekday d.
func (t ActiveTemplate) ActiveOn(d time.Weekday) bool {
	for _, name := range t.ActiveDays {
		if wd, ok := validation.ParseWeekday(name); ok && wd == d {
			return true
		}
	}
	return false
}

// Validate checks a template at creation or import time.
func (t ActiveTemplate) Validate() error {
	if strings.TrimSpace(t.TemplateID) == "" {
		return ValidationError("templateId", "required")
	}
	if len(t.ActiveDays) == 0 {
		return ValidationError("activeDays", "at least one day is required")
	}
	for _, d := range t.ActiveDays {
		if _, ok := validation.ParseWeekday(d); !ok {
			return ValidationError("activeDays", "unknown weekday "+d)
		}
	}
	seen := make(map[string]bool, len(t.Habits))
	for _, h := range t.Habits {
		if err := h.Validate(); err != nil {
			return err
		}
		if seen[h.ID] {
			return ValidationError("habits", "duplicate habit id "+h.ID)
		}
		seen[h.ID] = true
	}
	return nil
}

func (h HabitDetail) Validate() error {
	if missing := validation.MissingFields("habit.id", h.ID, "habit.name", h.Name); len(missing) > 0 {
		return ValidationError(missing[0], "required")
	}
	if h.Metrics.Target < 0 {
		return ValidationError("habit.metrics.target", "must not be negative")
	}
	return nil
}

// DismissalKey identifies one habit on one day.
func DismissalKey(habitID, date string) string {
	return habitID + "-" + date
}

// DismissalRecord means "do not (re)create a task for this habit on this date".
type DismissalRecord struct {
	HabitID     string    `json:"habitId"`
	Date        string    `json:"date"`
	DismissedAt time.Time `json:"dismissedAt"`
}
