package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"Mansoor88-6/team-time-tracker/internal/models"
	"Mansoor88-6/team-time-tracker/internal/queue"
	"Mansoor88-6/team-time-tracker/internal/repository"
	"Mansoor88-6/team-time-tracker/internal/rules"
)

// Outcome is what reconciliation decided for one close intent.
type Outcome string

const (
	// OutcomeCompleted: the task was already closed.
	OutcomeCompleted Outcome = "completed"
	// OutcomeRepaired: the entry had ended but the task was still open, so the task was closed.
	OutcomeRepaired Outcome = "repaired"
	// OutcomeAbandoned: the entry is still active, the close never happened.
	OutcomeAbandoned Outcome = "abandoned"
	// OutcomeSuperseded: other users clocked in since, so the task stays open.
	OutcomeSuperseded Outcome = "superseded"
	// OutcomeMissing: the entry no longer exists.
	OutcomeMissing Outcome = "missing"
)

// ResolveCloseIntent brings the store in line with a close request whose
// outcome is unknown. Every outcome except a returned error means the intent
// can be removed.
func (s *TaskService) ResolveCloseIntent(ctx context.Context, intent queue.CloseIntent) (Outcome, error) {
	ctx, cancel := s.operationContext(ctx)
	defer cancel()

	var (
		outcome    Outcome
		before     *models.Task
		afterClose models.Task
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		tasks := s.tasks.WithTx(tx)
		entries := s.entries.WithTx(tx)

		entry, err := entries.GetByID(ctx, intent.EntryID)
		if errors.Is(err, repository.ErrNotFound) {
			outcome = OutcomeMissing
			return nil
		}
		if err != nil {
			return err
		}

		task, err := tasks.GetByID(ctx, entry.TaskID)
		if err != nil {
			return err
		}
		switch {
		case !task.IsOpen():
			outcome = OutcomeCompleted
			return nil
		case entry.Active():
			outcome = OutcomeAbandoned
			return nil
		}

		active, err := entries.ActiveForTask(ctx, task.ID)
		if err != nil {
			return err
		}
		if rules.CheckClose(active, task.ID, entry.ID) != nil {
			outcome = OutcomeSuperseded
			return nil
		}

		closedAt := latest(*entry.EndTime, task.CreatedAt)
		closed, err := tasks.Close(ctx, task.ID, closedAt)
		if err != nil {
			return err
		}
		if !closed {
			outcome = OutcomeCompleted
			return nil
		}

		outcome = OutcomeRepaired
		before = task
		afterClose = *task
		afterClose.Status = models.TaskClosed
		afterClose.ClosedAt = &closedAt
		return nil
	})
	if err != nil {
		return "", err
	}

	if outcome == OutcomeRepaired {
		s.logger.Info("Completed interrupted task close",
			zap.String("entry_id", intent.EntryID),
			zap.String("task_id", afterClose.ID),
		)
		s.publish(models.TableTasks, models.EventUpdate, &afterClose, before)
	}
	return outcome, nil
}
