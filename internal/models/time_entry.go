package models

import "time"

// TimeEntry is one clock-in/clock-out session of a user on a task.
// A nil EndTime means the entry is still active.
type TimeEntry struct {
	ID        string     `json:"id"`
	TaskID    string     `json:"task_id"`
	UserID    string     `json:"user_id"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
}

// Active reports whether the entry has not been clocked out yet.
func (e TimeEntry) Active() bool {
	return e.EndTime == nil
}

// DurationSeconds returns the whole seconds between start and end, or nil for an active entry.
func (e TimeEntry) DurationSeconds() *int64 {
	if e.EndTime == nil {
		return nil
	}
	d := int64(e.EndTime.Sub(e.StartTime) / time.Second)
	if d < 0 {
		d = 0
	}
	return &d
}

// ClockOutMode selects what happens to the task when a user clocks out.
type ClockOutMode string

const (
	ClockOutKeepOpen  ClockOutMode = "keep_open"
	ClockOutCloseTask ClockOutMode = "close_task"
)

// Valid reports whether m is a known mode.
func (m ClockOutMode) Valid() bool {
	return m == ClockOutKeepOpen || m == ClockOutCloseTask
}

type ClockOutRequest struct {
	Mode ClockOutMode `json:"mode"`
}

// ClockOutResult carries the ended entry and, for ClockOutCloseTask, the closed task.
type ClockOutResult struct {
	Entry TimeEntry `json:"entry"`
	Task  *Task     `json:"task,omitempty"`
}
