package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"Mansoor88-6/team-time-tracker/internal/apperr"
	"Mansoor88-6/team-time-tracker/internal/models"
	"Mansoor88-6/team-time-tracker/internal/queue"
)

func (f *fixture) clockedIn(t *testing.T, user string) (*models.Task, *models.TimeEntry) {
	t.Helper()
	ctx := context.Background()
	task, err := f.svc.CreateTask(ctx, user, "Task", "")
	require.NoError(t, err)
	entry, err := f.svc.ClockIn(ctx, user, task.ID)
	require.NoError(t, err)
	return task, entry
}

func intentFor(entry *models.TimeEntry) queue.CloseIntent {
	return queue.CloseIntent{EntryID: entry.ID, TaskID: entry.TaskID, UserID: entry.UserID, RequestedAt: base}
}

func TestResolveCloseIntent_KeepOpenEntryStaysOpen(t *testing.T) {
	f := newFixture(t, "alice")
	ctx := context.Background()
	task, entry := f.clockedIn(t, "alice")

	require.NoError(t, f.journal.Record(ctx, intentFor(entry)))
	f.clock.Advance(10 * time.Minute)
	_, err := f.svc.ClockOut(ctx, "alice", entry.ID, models.ClockOutKeepOpen)
	require.NoError(t, err)

	count, err := f.journal.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count, "keep open drops the pending close")

	open, err := f.svc.ListTasks(ctx, models.TaskOpen)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, task.ID, open[0].ID)
}

func TestResolveCloseIntent_CompletesCloseOfEndedEntry(t *testing.T) {
	f := newFixture(t, "alice")
	ctx := context.Background()
	task, entry := f.clockedIn(t, "alice")

	f.clock.Advance(10 * time.Minute)
	ended, err := f.svc.ClockOut(ctx, "alice", entry.ID, models.ClockOutKeepOpen)
	require.NoError(t, err)

	// The user then asks to close the task, and that request fails in the store.
	_, err = f.db.ExecContext(ctx, `
		CREATE TRIGGER fail_close BEFORE UPDATE ON tasks
		BEGIN
			SELECT RAISE(ABORT, 'boom');
		END`)
	require.NoError(t, err)
	_, err = f.svc.ClockOut(ctx, "alice", entry.ID, models.ClockOutCloseTask)
	require.True(t, apperr.IsKind(err, apperr.KindStore))
	_, err = f.db.ExecContext(ctx, `DROP TRIGGER fail_close`)
	require.NoError(t, err)

	pending, err := f.journal.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	f.clock.Advance(time.Hour)
	outcome, err := f.svc.ResolveCloseIntent(ctx, pending[0])
	require.NoError(t, err)
	assert.Equal(t, OutcomeRepaired, outcome)

	closed, err := f.svc.ListTasks(ctx, models.TaskClosed)
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, task.ID, closed[0].ID)
	require.NotNil(t, closed[0].ClosedAt)
	assert.True(t, ended.Entry.EndTime.Equal(*closed[0].ClosedAt), "closed when the session ended")
}

func TestResolveCloseIntent_ActiveEntryIsLeftAlone(t *testing.T) {
	f := newFixture(t, "alice")
	ctx := context.Background()
	_, entry := f.clockedIn(t, "alice")

	outcome, err := f.svc.ResolveCloseIntent(ctx, intentFor(entry))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAbandoned, outcome)

	open, err := f.svc.ListTasks(ctx, models.TaskOpen)
	require.NoError(t, err)
	assert.Len(t, open, 1)
	assert.Equal(t, 1, f.activeCount(t, entry.TaskID))
}

func TestResolveCloseIntent_AlreadyClosed(t *testing.T) {
	f := newFixture(t, "alice")
	ctx := context.Background()
	_, entry := f.clockedIn(t, "alice")
	_, err := f.svc.ClockOut(ctx, "alice", entry.ID, models.ClockOutCloseTask)
	require.NoError(t, err)

	outcome, err := f.svc.ResolveCloseIntent(ctx, intentFor(entry))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)
}

func TestResolveCloseIntent_SupersededAndMissing(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	ctx := context.Background()
	task, entry := f.clockedIn(t, "alice")
	_, err := f.svc.ClockOut(ctx, "alice", entry.ID, models.ClockOutKeepOpen)
	require.NoError(t, err)
	_, err = f.svc.ClockIn(ctx, "bob", task.ID)
	require.NoError(t, err)

	outcome, err := f.svc.ResolveCloseIntent(ctx, intentFor(entry))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuperseded, outcome)

	outcome, err = f.svc.ResolveCloseIntent(ctx, queue.CloseIntent{EntryID: "gone", TaskID: task.ID, UserID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeMissing, outcome)

	open, err := f.svc.ListTasks(ctx, models.TaskOpen)
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestReconciler_RunOnceDrainsJournal(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	ctx := context.Background()

	_, active := f.clockedIn(t, "alice")
	_, ended := f.clockedIn(t, "bob")
	_, err := f.svc.ClockOut(ctx, "bob", ended.ID, models.ClockOutKeepOpen)
	require.NoError(t, err)

	require.NoError(t, f.journal.Record(ctx, intentFor(active)))
	require.NoError(t, f.journal.Record(ctx, intentFor(ended)))

	r := NewReconciler(f.svc, f.journal, time.Hour, 7*24*time.Hour, zap.NewNop())
	assert.Equal(t, 2, r.RunOnce(ctx))

	count, err := f.journal.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	closed, err := f.svc.ListTasks(ctx, models.TaskClosed)
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, ended.TaskID, closed[0].ID)
}

func TestReconciler_StartStop(t *testing.T) {
	f := newFixture(t, "alice")
	ctx := context.Background()
	_, entry := f.clockedIn(t, "alice")
	require.NoError(t, f.journal.Record(ctx, intentFor(entry)))

	r := NewReconciler(f.svc, f.journal, 10*time.Millisecond, 0, zap.NewNop())
	r.Start(ctx)
	r.Start(ctx)

	require.Eventually(t, func() bool {
		count, err := f.journal.Count(ctx)
		return err == nil && count == 0
	}, time.Second, 10*time.Millisecond)

	r.Stop()
	r.Stop()
}
