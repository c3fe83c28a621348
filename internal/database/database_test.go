package database

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(InMemory, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNew_CreatesFileAndMigrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tracker.db")

	db, err := New(path, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(path)
	require.NoError(t, err)

	version, err := db.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestNew_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.db")

	for i := 0; i < 3; i++ {
		db, err := New(path, zap.NewNop())
		require.NoError(t, err, "open %d", i)
		require.NoError(t, db.Close())
	}
}

func TestNew_RequiresPath(t *testing.T) {
	_, err := New("", zap.NewNop())
	assert.Error(t, err)
}

func TestOneActiveEntryPerTaskIndex(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := FormatTime(time.Now())

	_, err := db.ExecContext(ctx, `INSERT INTO profiles (id, email, created_at) VALUES ('u1', 'a@x', ?), ('u2', 'b@x', ?)`, now, now)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO tasks (id, title, created_by, created_at) VALUES ('t1', 'T', 'u1', ?)`, now)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `INSERT INTO time_entries (id, task_id, user_id, start_time) VALUES ('e1', 't1', 'u1', ?)`, now)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `INSERT INTO time_entries (id, task_id, user_id, start_time) VALUES ('e2', 't1', 'u2', ?)`, now)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))

	// Ending the first entry frees the task.
	_, err = db.ExecContext(ctx, `UPDATE time_entries SET end_time = ? WHERE id = 'e1'`, now)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO time_entries (id, task_id, user_id, start_time) VALUES ('e2', 't1', 'u2', ?)`, now)
	require.NoError(t, err)
}

func TestTaskStatusRequiresClosedAt(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := FormatTime(time.Now())

	_, err := db.ExecContext(ctx, `INSERT INTO profiles (id, email, created_at) VALUES ('u1', 'a@x', ?)`, now)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `INSERT INTO tasks (id, title, status, created_by, created_at) VALUES ('t1', 'T', 'closed', 'u1', ?)`, now)
	assert.Error(t, err)
	assert.False(t, IsUniqueViolation(err))
}

func TestTimeRoundTrip(t *testing.T) {
	local := time.FixedZone("X", 3*3600)
	in := time.Date(2026, 3, 4, 12, 0, 0, 123456789, local)

	out, err := ParseTime(FormatTime(in))
	require.NoError(t, err)
	assert.True(t, in.Equal(out))
	assert.Equal(t, time.UTC, out.Location())

	// Fixed width keeps lexical order chronological.
	assert.Less(t, FormatTime(in), FormatTime(in.Add(time.Nanosecond)))
	assert.Less(t, FormatTime(in.Truncate(time.Second)), FormatTime(in))

	null, err := ParseNullTime(sql.NullString{})
	require.NoError(t, err)
	assert.Nil(t, null)
	assert.False(t, NullTime(nil).Valid)
}
