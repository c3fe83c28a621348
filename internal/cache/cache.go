// Package cache keeps a client-side copy of tasks, time entries and profiles,
// loaded from a snapshot and kept current by applying change events.
package cache

import (
	"encoding/json"
	"fmt"
	"sync"

	"Mansoor88-6/team-time-tracker/internal/models"
)

// Cache is safe for concurrent use. Accessors return copies.
type Cache struct {
	mu       sync.RWMutex
	tasks    []models.Task
	entries  []models.TimeEntry
	profiles []models.Profile
	seq      int64
}

func New() *Cache {
	return &Cache{}
}

// Load replaces all cached state with snapshot.
func (c *Cache) Load(snapshot models.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tasks = append([]models.Task(nil), snapshot.Tasks...)
	c.entries = append([]models.TimeEntry(nil), snapshot.Entries...)
	c.profiles = append([]models.Profile(nil), snapshot.Profiles...)
	c.seq = snapshot.Seq
}

// Apply reconciles one change event by record id. It reports whether the
// event changed the cache; events at or below the last applied sequence
// number are ignored.
func (c *Cache) Apply(event models.ChangeEvent) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if event.Seq != 0 && event.Seq <= c.seq {
		return false, nil
	}

	var err error
	switch event.Table {
	case models.TableTasks:
		c.tasks, err = reconcile(c.tasks, event, func(t models.Task) string { return t.ID })
	case models.TableTimeEntries:
		c.entries, err = reconcile(c.entries, event, func(e models.TimeEntry) string { return e.ID })
	default:
		return false, fmt.Errorf("unknown table %q", event.Table)
	}
	if err != nil {
		return false, err
	}

	if event.Seq > c.seq {
		c.seq = event.Seq
	}
	return true, nil
}

func reconcile[T any](items []T, event models.ChangeEvent, idOf func(T) string) ([]T, error) {
	switch event.Type {
	case models.EventInsert, models.EventUpdate:
		var record T
		if err := json.Unmarshal(event.New, &record); err != nil {
			return items, fmt.Errorf("failed to decode %s record: %w", event.Table, err)
		}
		id := idOf(record)
		for i := range items {
			if idOf(items[i]) == id {
				items[i] = record
				return items, nil
			}
		}
		return append([]T{record}, items...), nil

	case models.EventDelete:
		var record T
		if err := json.Unmarshal(event.Old, &record); err != nil {
			return items, fmt.Errorf("failed to decode %s record: %w", event.Table, err)
		}
		id := idOf(record)
		out := items[:0]
		for _, item := range items {
			if idOf(item) != id {
				out = append(out, item)
			}
		}
		return out, nil

	default:
		return items, fmt.Errorf("unknown event type %q", event.Type)
	}
}

// Seq returns the sequence number of the last applied event.
func (c *Cache) Seq() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.seq
}

// Tasks returns cached tasks, optionally filtered by status.
func (c *Cache) Tasks(status models.TaskStatus) []models.Task {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Task, 0, len(c.tasks))
	for _, t := range c.tasks {
		if status == "" || t.Status == status {
			out = append(out, t)
		}
	}
	return out
}

// Task returns the cached task with id.
func (c *Cache) Task(id string) (models.Task, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, t := range c.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return models.Task{}, false
}

// Entries returns cached entries, optionally filtered by task.
func (c *Cache) Entries(taskID string) []models.TimeEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.TimeEntry, 0, len(c.entries))
	for _, e := range c.entries {
		if taskID == "" || e.TaskID == taskID {
			out = append(out, e)
		}
	}
	return out
}

func (c *Cache) Profiles() []models.Profile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Profile(nil), c.profiles...)
}

// ActiveEntryFor returns the active entry of userID on taskID. An empty
// taskID matches any task.
func (c *Cache) ActiveEntryFor(taskID, userID string) (models.TimeEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, e := range c.entries {
		if e.Active() && e.UserID == userID && (taskID == "" || e.TaskID == taskID) {
			return e, true
		}
	}
	return models.TimeEntry{}, false
}

// Snapshot returns a copy of the cached state.
func (c *Cache) Snapshot() models.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return models.Snapshot{
		Tasks:    append([]models.Task(nil), c.tasks...),
		Entries:  append([]models.TimeEntry(nil), c.entries...),
		Profiles: append([]models.Profile(nil), c.profiles...),
		Seq:      c.seq,
	}
}
