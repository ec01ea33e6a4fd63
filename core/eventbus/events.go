package eventbus

import (
	"reflect"
	"time"

	"github.com/jrazmi/habitsync/core/model"
)

// Name is one of the closed set of channels.
type Name string

const (
	TaskCreate        Name = "task:create"
	TaskUpdate        Name = "task:update"
	TaskDelete        Name = "task:delete"
	TaskComplete      Name = "task:complete"
	TaskDismiss       Name = "task:dismiss"
	HabitSchedule     Name = "habit:schedule"
	HabitDismissed    Name = "habit:dismissed"
	HabitCheckPending Name = "habit:check-pending"
	ForceTaskUpdate   Name = "force-task-update"
	TimerComplete     Name = "timer:complete"
	JournalSaved      Name = "journal:saved"
	DayRollover       Name = "day:rollover"
)

// Source records who emitted an event. Command handlers ignore SourceCore
// so that notifications sharing a command's name do not loop.
type Source string

const (
	SourceUI        Source = "ui"
	SourceCore      Source = "core"
	SourceScheduler Source = "scheduler"
	SourceRollover  Source = "rollover"
)

type Event struct {
	Name    Name
	Source  Source
	Payload any
	At      time.Time
}

// TaskCreated is the task:create payload. As a command Task is the input; as
// a notification it is the stored task.
type TaskCreated struct {
	Task model.Task
}

// TaskUpdated is the task:update payload. Commands carry TaskID and Patch;
// notifications also carry the merged Task.
type TaskUpdated struct {
	TaskID string
	Patch  model.TaskPatch
	Task   model.Task
}

type TaskDeleted struct {
	TaskID string
	Reason string
}

type TaskCompleted struct {
	TaskID  string
	Metrics *model.TaskMetrics
	Task    model.Task
}

type DismissRequest struct {
	HabitID string
	Date    string
}

type HabitDismissedNotice struct {
	HabitID string
	Date    string
	TaskID  string // empty when no derived task existed
}

type CheckPending struct {
	Reason string
}

type ReloadRequest struct {
	Reason string
}

type TimerCompleted struct {
	TaskID  string
	Metrics model.TaskMetrics
}

// JournalEntry is the single journal payload shape. Entries written for a
// journal habit carry the derived task's id; free-standing entries leave
// TaskID empty and are ignored by the core.
type JournalEntry struct {
	TaskID  string
	HabitID string
	Date    string
	Content string
	SavedAt time.Time
}

type DayRolledOver struct {
	From       string
	To         string
	ResetCount int
}

var payloadTypes = map[Name]reflect.Type{
	TaskCreate:        reflect.TypeOf(TaskCreated{}),
	TaskUpdate:        reflect.TypeOf(TaskUpdated{}),
	TaskDelete:        reflect.TypeOf(TaskDeleted{}),
	TaskComplete:      reflect.TypeOf(TaskCompleted{}),
	TaskDismiss:       reflect.TypeOf(DismissRequest{}),
	HabitSchedule:     reflect.TypeOf(model.SchedulingEvent{}),
	HabitDismissed:    reflect.TypeOf(HabitDismissedNotice{}),
	HabitCheckPending: reflect.TypeOf(CheckPending{}),
	ForceTaskUpdate:   reflect.TypeOf(ReloadRequest{}),
	TimerComplete:     reflect.TypeOf(TimerCompleted{}),
	JournalSaved:      reflect.TypeOf(JournalEntry{}),
	DayRollover:       reflect.TypeOf(DayRolledOver{}),
}

// Known reports whether n is a channel of the bus.
func Known(n Name) bool {
	_, ok := payloadTypes[n]
	return ok
}

// Names lists every channel.
func Names() []Name {
	out := make([]Name, 0, len(payloadTypes))
	for n := range payloadTypes {
		out = append(out, n)
	}
	return out
}

func New(name Name, src Source, payload any) Event {
	return Event{Name: name, Source: src, Payload: payload}
}

func NewTaskCreated(src Source, t model.Task) Event {
	return New(TaskCreate, src, TaskCreated{Task: t})
}

func NewTaskUpdated(src Source, taskID string, p model.TaskPatch, t model.Task) Event {
	return New(TaskUpdate, src, TaskUpdated{TaskID: taskID, Patch: p, Task: t})
}

func NewTaskDeleted(src Source, taskID, reason string) Event {
	return New(TaskDelete, src, TaskDeleted{TaskID: taskID, Reason: reason})
}

func NewTaskCompleted(src Source, taskID string, m *model.TaskMetrics, t model.Task) Event {
	return New(TaskComplete, src, TaskCompleted{TaskID: taskID, Metrics: m, Task: t})
}

func NewDismissRequest(src Source, habitID, date string) Event {
	return New(TaskDismiss, src, DismissRequest{HabitID: habitID, Date: date})
}

func NewHabitDismissed(habitID, date, taskID string) Event {
	return New(HabitDismissed, SourceCore, HabitDismissedNotice{HabitID: habitID, Date: date, TaskID: taskID})
}

func NewScheduleHabit(src Source, ev model.SchedulingEvent) Event {
	return New(HabitSchedule, src, ev)
}

func NewCheckPending(src Source, reason string) Event {
	return New(HabitCheckPending, src, CheckPending{Reason: reason})
}

func NewReloadRequest(src Source, reason string) Event {
	return New(ForceTaskUpdate, src, ReloadRequest{Reason: reason})
}

func NewTimerCompleted(src Source, taskID string, m model.TaskMetrics) Event {
	return New(TimerComplete, src, TimerCompleted{TaskID: taskID, Metrics: m})
}

func NewJournalSaved(src Source, entry JournalEntry) Event {
	return New(JournalSaved, src, entry)
}

func NewDayRolledOver(from, to string, reset int) Event {
	return New(DayRollover, SourceRollover, DayRolledOver{From: from, To: to, ResetCount: reset})
}
