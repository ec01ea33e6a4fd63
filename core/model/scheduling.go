package model

import (
	"github.com/jrazmi/habitsync/sdk/validation"
)

// SchedulingEvent is a request to materialize a task for a due habit.
// It is transient and never persisted.
type SchedulingEvent struct {
	HabitID    string `json:"habitId"`
	TemplateID string `json:"templateId"`
	Name       string `json:"name"`
	Duration   int    `json:"duration"` // seconds
	Date       string `json:"date"`
	MetricType string `json:"metricType"`
}

// Key is the (habitId, date) identity the event reconciles against.
func (e SchedulingEvent) Key() string {
	return DismissalKey(e.HabitID, e.Date)
}

// Normalize validates e and returns a copy with a canonical date and a
// positive duration. Missing habitId, name or date, and unparseable dates,
// are validation errors.
func (e SchedulingEvent) Normalize(defaultDuration int) (SchedulingEvent, error) {
	if missing := validation.MissingFields("habitId", e.HabitID, "name", e.Name, "date", e.Date); len(missing) > 0 {
		return SchedulingEvent{}, ValidationError(missing[0], "required")
	}
	day, err := validation.NormalizeDay(e.Date)
	if err != nil {
		return SchedulingEvent{}, ValidationError("date", err.Error())
	}
	e.Date = day
	if e.Duration <= 0 {
		if defaultDuration <= 0 {
			defaultDuration = DefaultHabitDuration
		}
		e.Duration = defaultDuration
	}
	return e, nil
}

// SchedulingEventFor builds the request for habit h of template t on day.
func SchedulingEventFor(t ActiveTemplate, h HabitDetail, day string) SchedulingEvent {
	ev := SchedulingEvent{
		HabitID:    h.ID,
		TemplateID: t.TemplateID,
		Name:       h.Name,
		Date:       day,
		MetricType: h.Metrics.Type,
	}
	if h.Metrics.Type == MetricTimer && h.Metrics.Target > 0 {
		ev.Duration = h.Metrics.Target
	}
	return ev
}
