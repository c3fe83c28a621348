package models

import (
	"encoding/json"
	"time"
)

// Tables that emit change events.
const (
	TableTasks       = "tasks"
	TableTimeEntries = "time_entries"
)

// Change event types.
const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
)

// ChangeEvent describes one committed row change. New is empty for deletes and
// Old is empty for inserts.
type ChangeEvent struct {
	Seq       int64           `json:"seq"`
	Table     string          `json:"table"`
	Type      string          `json:"type"`
	New       json.RawMessage `json:"new,omitempty"`
	Old       json.RawMessage `json:"old,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewChangeEvent encodes the old and new records. A nil record is left empty.
func NewChangeEvent(table, eventType string, newRecord, oldRecord any) (ChangeEvent, error) {
	event := ChangeEvent{Table: table, Type: eventType}
	if newRecord != nil {
		data, err := json.Marshal(newRecord)
		if err != nil {
			return ChangeEvent{}, err
		}
		event.New = data
	}
	if oldRecord != nil {
		data, err := json.Marshal(oldRecord)
		if err != nil {
			return ChangeEvent{}, err
		}
		event.Old = data
	}
	return event, nil
}
