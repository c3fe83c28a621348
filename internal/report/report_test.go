package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Mansoor88-6/team-time-tracker/internal/models"
)

func at(h, m, s int) time.Time {
	return time.Date(2026, 3, 4, h, m, s, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

var profiles = []models.Profile{
	{ID: "alice", Email: "alice@example.com"},
	{ID: "bob", Email: "bob@example.com"},
}

func sampleTask() models.Task {
	return models.Task{
		ID:          "task-1",
		Title:       "Build report",
		Description: "Quarterly numbers",
		Status:      models.TaskOpen,
		CreatedBy:   "alice",
		CreatedAt:   at(8, 55, 0),
	}
}

func sampleEntries() []models.TimeEntry {
	return []models.TimeEntry{
		{ID: "e1", TaskID: "task-1", UserID: "alice", StartTime: at(9, 0, 0), EndTime: ptr(at(9, 1, 30))},
		{ID: "e3", TaskID: "task-1", UserID: "ghost", StartTime: at(9, 45, 0)},
		{ID: "e2", TaskID: "task-1", UserID: "bob", StartTime: at(9, 30, 0), EndTime: ptr(at(10, 0, 0))},
		{ID: "x1", TaskID: "task-2", UserID: "bob", StartTime: at(7, 0, 0), EndTime: ptr(at(8, 0, 0))},
	}
}

func TestBuild_SingleEntryDuration(t *testing.T) {
	task := sampleTask()
	entries := []models.TimeEntry{
		{ID: "e1", TaskID: task.ID, UserID: "alice", StartTime: at(9, 0, 0), EndTime: ptr(at(9, 1, 30))},
	}

	r := Build(task, entries, profiles)

	require.Len(t, r.Lines, 1)
	assert.Equal(t, "00:01:30", r.Lines[0].Duration)
	assert.Equal(t, int64(90), r.TotalSeconds)
	assert.Equal(t, "00:01:30", r.Total)
}

func TestBuild_ActiveEntryExcludedFromTotal(t *testing.T) {
	r := Build(sampleTask(), sampleEntries(), profiles)

	require.Len(t, r.Lines, 3)
	assert.Equal(t, []string{"e3", "e2", "e1"}, []string{r.Lines[0].EntryID, r.Lines[1].EntryID, r.Lines[2].EntryID})

	assert.Equal(t, ActiveLabel, r.Lines[0].Duration)
	assert.Nil(t, r.Lines[0].DurationSeconds)
	assert.Equal(t, UnknownUser, r.Lines[0].UserEmail)

	assert.Equal(t, "00:30:00", r.Lines[1].Duration)
	assert.Equal(t, int64(90+1800), r.TotalSeconds)
	assert.Equal(t, "00:31:30", r.Total)
	assert.Equal(t, "alice@example.com", r.CreatorEmail)
}

func TestBuild_NoEntries(t *testing.T) {
	r := Build(sampleTask(), nil, nil)

	assert.Empty(t, r.Lines)
	assert.Equal(t, "00:00:00", r.Total)
	assert.Equal(t, UnknownUser, r.CreatorEmail)
}

func TestRender_Golden(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, Build(sampleTask(), sampleEntries(), profiles)))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "task_report", buf.Bytes())
}

func TestRender_ClosedTaskWithoutEntries(t *testing.T) {
	task := sampleTask()
	task.Description = ""
	task.Status = models.TaskClosed
	task.ClosedAt = ptr(at(11, 0, 0))

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, Build(task, nil, profiles)))

	want := "Task:        Build report\n" +
		"Status:      closed\n" +
		"Created by:  alice@example.com\n" +
		"Created at:  2026-03-04 08:55:00 UTC\n" +
		"Closed at:   2026-03-04 11:00:00 UTC\n" +
		"\n" +
		"No time entries for this task\n" +
		"\n" +
		"Total time: 00:00:00\n"
	assert.Equal(t, want, buf.String())
}
