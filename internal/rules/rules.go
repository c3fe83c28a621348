// Package rules holds the task exclusivity and clock-out checks. They are
// evaluated twice: by clients against their cached snapshot, and by the
// service against rows read inside the write transaction. Only the latter
// is authoritative.
package rules

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"Mansoor88-6/team-time-tracker/internal/apperr"
	"Mansoor88-6/team-time-tracker/internal/models"
)

// Messages shown to users for rejected operations.
const (
	MsgEmptyTitle          = "Please enter a task title"
	MsgDuplicateSession    = "You already have an active session for this task"
	MsgTaskOccupiedFormat  = "This task is currently being worked on by %s"
	MsgOtherActiveSessions = "Cannot close task: other users have active sessions"
	MsgTaskClosed          = "This task is closed"
	MsgEntryEnded          = "This session has already ended"

	anotherUser = "another user"
)

// ActiveEntryForTask returns the first active entry on the task, if any.
func ActiveEntryForTask(entries []models.TimeEntry, taskID string) (models.TimeEntry, bool) {
	for _, e := range entries {
		if e.TaskID == taskID && e.Active() {
			return e, true
		}
	}
	return models.TimeEntry{}, false
}

// ActiveEntryForUser returns the user's active entry on the task, if any.
func ActiveEntryForUser(entries []models.TimeEntry, taskID, userID string) (models.TimeEntry, bool) {
	for _, e := range entries {
		if e.TaskID == taskID && e.UserID == userID && e.Active() {
			return e, true
		}
	}
	return models.TimeEntry{}, false
}

// CountActive returns the number of active entries on the task.
func CountActive(entries []models.TimeEntry, taskID string) int {
	n := 0
	for _, e := range entries {
		if e.TaskID == taskID && e.Active() {
			n++
		}
	}
	return n
}

// CheckClockIn decides whether userID may start a session on task.
// emailOf resolves the display identity of whoever holds the task.
func CheckClockIn(task models.Task, entries []models.TimeEntry, userID string, emailOf func(string) string) error {
	if !task.IsOpen() {
		return apperr.Validation(apperr.CodeTaskClosed, MsgTaskClosed)
	}

	active, ok := ActiveEntryForTask(entries, task.ID)
	if !ok {
		return nil
	}
	if active.UserID == userID {
		return apperr.Validation(apperr.CodeDuplicateSession, MsgDuplicateSession)
	}
	return OccupiedError(active.UserID, emailOf)
}

// OccupiedError builds the rejection for a task held by holderID.
func OccupiedError(holderID string, emailOf func(string) string) error {
	who := ""
	if emailOf != nil {
		who = emailOf(holderID)
	}
	if who == "" {
		who = anotherUser
	}
	return apperr.Validation(apperr.CodeTaskOccupied, fmt.Sprintf(MsgTaskOccupiedFormat, who))
}

// CheckClose rejects closing the task while any active entry other than entryID exists on it.
func CheckClose(entries []models.TimeEntry, taskID, entryID string) error {
	for _, e := range entries {
		if e.TaskID == taskID && e.Active() && e.ID != entryID {
			return apperr.Validation(apperr.CodeOtherActiveSessions, MsgOtherActiveSessions)
		}
	}
	return nil
}

// NormalizeText trims surrounding whitespace and applies NFC normalization.
func NormalizeText(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

// ValidateTitle normalizes title and rejects it when blank.
func ValidateTitle(title string) (string, error) {
	normalized := NormalizeText(title)
	if normalized == "" {
		return "", apperr.Validation(apperr.CodeEmptyTitle, MsgEmptyTitle)
	}
	return normalized, nil
}
