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

const taskColumns = `id, title, description, status, created_by, created_at, closed_at`

type TaskRepository struct {
	db DBTX
}

func NewTaskRepository(db DBTX) *TaskRepository {
	return &TaskRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *TaskRepository) WithTx(tx *sql.Tx) *TaskRepository {
	return &TaskRepository{db: tx}
}

func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tasks (id, title, description, status, created_by, created_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		task.ID,
		task.Title,
		task.Description,
		string(task.Status),
		task.CreatedBy,
		database.FormatTime(task.CreatedAt),
		database.NullTime(task.ClosedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

func (r *TaskRepository) GetByID(ctx context.Context, id string) (*models.Task, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// List returns tasks newest first. An empty status returns every task.
func (r *TaskRepository) List(ctx context.Context, status models.TaskStatus) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]models.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return tasks, nil
}

// Close marks an open task closed. It reports false when the task was
// already closed or does not exist.
func (r *TaskRepository) Close(ctx context.Context, id string, closedAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = ?, closed_at = ?
		WHERE id = ? AND status = ?
	`, string(models.TaskClosed), database.FormatTime(closedAt), id, string(models.TaskOpen))
	if err != nil {
		return false, fmt.Errorf("failed to close task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

func scanTask(s scanner) (*models.Task, error) {
	var (
		task      models.Task
		status    string
		createdAt string
		closedAt  sql.NullString
	)
	if err := s.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&status,
		&task.CreatedBy,
		&createdAt,
		&closedAt,
	); err != nil {
		return nil, err
	}

	var err error
	task.Status = models.TaskStatus(status)
	if task.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return nil, err
	}
	if task.ClosedAt, err = database.ParseNullTime(closedAt); err != nil {
		return nil, err
	}
	return &task, nil
}
