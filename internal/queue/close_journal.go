package queue

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"Mansoor88-6/team-time-tracker/internal/database"
)

// MaxRetries is the retry count after which an old intent becomes eligible for cleanup.
const MaxRetries = 10

// CloseIntent records that a user asked to clock out and close a task. It is
// written before the close transaction and removed once the outcome is known,
// so an intent left behind marks a close whose outcome is unknown.
type CloseIntent struct {
	EntryID     string
	TaskID      string
	UserID      string
	RequestedAt time.Time
	RetryCount  int
	LastAttempt *time.Time
	LastError   string
}

// dbtx is satisfied by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CloseJournal stores pending close intents in the local database.
type CloseJournal struct {
	db     dbtx
	logger *zap.Logger
	now    func() time.Time
}

func NewCloseJournal(db *sql.DB, logger *zap.Logger) *CloseJournal {
	return &CloseJournal{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// WithTx returns a journal bound to tx, so intents can be dropped atomically
// with the entry change that makes them obsolete.
func (j *CloseJournal) WithTx(tx *sql.Tx) *CloseJournal {
	return &CloseJournal{db: tx, logger: j.logger, now: j.now}
}

// Record stores intent, replacing any earlier intent for the same entry.
func (j *CloseJournal) Record(ctx context.Context, intent CloseIntent) error {
	if intent.RequestedAt.IsZero() {
		intent.RequestedAt = j.now()
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO close_intents (entry_id, task_id, user_id, requested_at, retry_count)
		VALUES (?, ?, ?, ?, 0)
		ON CONFLICT(entry_id) DO UPDATE SET
			task_id = excluded.task_id,
			user_id = excluded.user_id,
			requested_at = excluded.requested_at,
			retry_count = 0,
			last_attempt = NULL,
			last_error = NULL
	`, intent.EntryID, intent.TaskID, intent.UserID, database.FormatTime(intent.RequestedAt))
	if err != nil {
		return fmt.Errorf("failed to record close intent: %w", err)
	}

	j.logger.Debug("Close intent recorded",
		zap.String("entry_id", intent.EntryID),
		zap.String("task_id", intent.TaskID),
	)
	return nil
}

// Pending returns up to limit intents, oldest first.
func (j *CloseJournal) Pending(ctx context.Context, limit int) ([]CloseIntent, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT entry_id, task_id, user_id, requested_at, retry_count, last_attempt, COALESCE(last_error, '')
		FROM close_intents
		ORDER BY requested_at ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query close intents: %w", err)
	}
	defer rows.Close()

	var intents []CloseIntent
	for rows.Next() {
		var (
			intent      CloseIntent
			requestedAt string
			lastAttempt sql.NullString
		)
		if err := rows.Scan(
			&intent.EntryID,
			&intent.TaskID,
			&intent.UserID,
			&requestedAt,
			&intent.RetryCount,
			&lastAttempt,
			&intent.LastError,
		); err != nil {
			return nil, fmt.Errorf("failed to scan close intent: %w", err)
		}
		if intent.RequestedAt, err = database.ParseTime(requestedAt); err != nil {
			return nil, err
		}
		if intent.LastAttempt, err = database.ParseNullTime(lastAttempt); err != nil {
			return nil, err
		}
		intents = append(intents, intent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return intents, nil
}

// Remove deletes the intent for entryID. Removing an unknown intent is not an error.
func (j *CloseJournal) Remove(ctx context.Context, entryID string) error {
	result, err := j.db.ExecContext(ctx, `DELETE FROM close_intents WHERE entry_id = ?`, entryID)
	if err != nil {
		return fmt.Errorf("failed to remove close intent: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	j.logger.Debug("Close intent removed",
		zap.String("entry_id", entryID),
		zap.Int64("count", rowsAffected),
	)
	return nil
}

// MarkFailed increments the retry count of the intent and stores cause.
func (j *CloseJournal) MarkFailed(ctx context.Context, entryID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	_, err := j.db.ExecContext(ctx, `
		UPDATE close_intents
		SET retry_count = retry_count + 1, last_attempt = ?, last_error = ?
		WHERE entry_id = ?
	`, database.FormatTime(j.now()), msg, entryID)
	if err != nil {
		return fmt.Errorf("failed to mark close intent: %w", err)
	}
	return nil
}

// Count returns the number of pending intents.
func (j *CloseJournal) Count(ctx context.Context) (int, error) {
	var count int
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM close_intents`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count close intents: %w", err)
	}
	return count, nil
}

// Cleanup drops intents requested before olderThan ago that have failed more
// than MaxRetries times.
func (j *CloseJournal) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := j.now().Add(-olderThan)
	result, err := j.db.ExecContext(ctx, `
		DELETE FROM close_intents
		WHERE requested_at < ? AND retry_count > ?
	`, database.FormatTime(cutoff), MaxRetries)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup close intents: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		j.logger.Info("Cleaned up abandoned close intents",
			zap.Int64("count", rowsAffected),
		)
	}
	return rowsAffected, nil
}
