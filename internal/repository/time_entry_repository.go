package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"Mansoor88-6/team-time-tracker/internal/database"
	"Mansoor88-6/team-time-tracker/internal/models"
)

const entryColumns = `id, task_id, user_id, start_time, end_time`

type TimeEntryRepository struct {
	db DBTX
}

func NewTimeEntryRepository(db DBTX) *TimeEntryRepository {
	return &TimeEntryRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *TimeEntryRepository) WithTx(tx *sql.Tx) *TimeEntryRepository {
	return &TimeEntryRepository{db: tx}
}

// Create inserts entry. Inserting a second active entry for a task violates
// idx_time_entries_one_active; see database.IsUniqueViolation.
func (r *TimeEntryRepository) Create(ctx context.Context, entry *models.TimeEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO time_entries (id, task_id, user_id, start_time, end_time)
		VALUES (?, ?, ?, ?, ?)
	`,
		entry.ID,
		entry.TaskID,
		entry.UserID,
		database.FormatTime(entry.StartTime),
		database.NullTime(entry.EndTime),
	)
	if err != nil {
		return fmt.Errorf("failed to create time entry: %w", err)
	}
	return nil
}

func (r *TimeEntryRepository) GetByID(ctx context.Context, id string) (*models.TimeEntry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM time_entries WHERE id = ?`, id)

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("time entry %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get time entry: %w", err)
	}
	return entry, nil
}

// List returns entries by start time, newest first. An empty taskID returns
// entries of every task.
func (r *TimeEntryRepository) List(ctx context.Context, taskID string) ([]models.TimeEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM time_entries`
	var args []any
	if taskID != "" {
		query += ` WHERE task_id = ?`
		args = append(args, taskID)
	}
	query += ` ORDER BY start_time DESC, id`
	return r.query(ctx, query, args...)
}

// ActiveForTask returns the entries of the task that have not ended.
func (r *TimeEntryRepository) ActiveForTask(ctx context.Context, taskID string) ([]models.TimeEntry, error) {
	return r.query(ctx, `
		SELECT `+entryColumns+`
		FROM time_entries
		WHERE task_id = ? AND end_time IS NULL
		ORDER BY start_time DESC
	`, taskID)
}

// End sets the end time of an active entry. It reports false when the entry
// had already ended or does not exist.
func (r *TimeEntryRepository) End(ctx context.Context, id string, endTime time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE time_entries
		SET end_time = ?
		WHERE id = ? AND end_time IS NULL
	`, database.FormatTime(endTime), id)
	if err != nil {
		return false, fmt.Errorf("failed to end time entry: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

func (r *TimeEntryRepository) query(ctx context.Context, query string, args ...any) ([]models.TimeEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query time entries: %w", err)
	}
	defer rows.Close()

	entries := make([]models.TimeEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan time entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return entries, nil
}

func scanEntry(s scanner) (*models.TimeEntry, error) {
	var (
		entry     models.TimeEntry
		startTime string
		endTime   sql.NullString
	)
	if err := s.Scan(&entry.ID, &entry.TaskID, &entry.UserID, &startTime, &endTime); err != nil {
		return nil, err
	}

	var err error
	if entry.StartTime, err = database.ParseTime(startTime); err != nil {
		return nil, err
	}
	if entry.EndTime, err = database.ParseNullTime(endTime); err != nil {
		return nil, err
	}
	return &entry, nil
}
