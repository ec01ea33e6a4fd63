package model

import "time"

// TaskPatch is a partial update.
// nil pointer => "no change".
type TaskPatch struct {
	Name        *string      `json:"name,omitempty"`
	Completed   *bool        `json:"completed,omitempty"`
	Duration    *int         `json:"duration,omitempty"`
	TaskType    *TaskType    `json:"taskType,omitempty"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
	DismissedAt *time.Time   `json:"dismissedAt,omitempty"`
	Metrics     *TaskMetrics `json:"metrics,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Name == nil && p.Completed == nil && p.Duration == nil && p.TaskType == nil &&
		p.CompletedAt == nil && p.DismissedAt == nil && p.Metrics == nil
}

// Apply returns t with p merged in. Timestamps are set only once and
// completedAt/dismissedAt stay mutually exclusive; violations are
// validation errors and t is returned unchanged.
func (p TaskPatch) Apply(t Task) (Task, error) {
	if p.CompletedAt != nil && p.DismissedAt != nil {
		return t, ValidationError("completedAt", "cannot be set together with dismissedAt")
	}
	if p.CompletedAt != nil && (t.CompletedAt != nil || t.DismissedAt != nil) {
		return t, ValidationError("completedAt", "already set")
	}
	if p.DismissedAt != nil && (t.DismissedAt != nil || t.CompletedAt != nil) {
		return t, ValidationError("dismissedAt", "already set")
	}
	if p.Name != nil && *p.Name == "" {
		return t, ValidationError("name", "must not be empty")
	}
	if p.Duration != nil && *p.Duration <= 0 {
		return t, ValidationError("duration", "must be positive")
	}
	if p.TaskType != nil && !p.TaskType.Valid() {
		return t, ValidationError("taskType", "unknown variant "+string(*p.TaskType))
	}

	out := t.Clone()
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Completed != nil {
		out.Completed = *p.Completed
	}
	if p.Duration != nil {
		out.Duration = *p.Duration
	}
	if p.TaskType != nil {
		out.TaskType = *p.TaskType
	}
	if p.CompletedAt != nil {
		v := *p.CompletedAt
		out.CompletedAt = &v
	}
	if p.DismissedAt != nil {
		v := *p.DismissedAt
		out.DismissedAt = &v
	}
	if p.Metrics != nil {
		v := *p.Metrics
		out.Metrics = &v
	}
	return out, nil
}
