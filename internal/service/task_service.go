package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"Mansoor88-6/team-time-tracker/internal/apperr"
	"Mansoor88-6/team-time-tracker/internal/database"
	"Mansoor88-6/team-time-tracker/internal/models"
	"Mansoor88-6/team-time-tracker/internal/notify"
	"Mansoor88-6/team-time-tracker/internal/queue"
	"Mansoor88-6/team-time-tracker/internal/report"
	"Mansoor88-6/team-time-tracker/internal/repository"
	"Mansoor88-6/team-time-tracker/internal/rules"
)

// DefaultOperationTimeout bounds each store operation when none is configured.
const DefaultOperationTimeout = 5 * time.Second

// MsgActiveSessionConflict is returned when the store rejects a clock-in that
// passed the exclusivity check.
const MsgActiveSessionConflict = "This task was clocked in at the same time. Refresh and try again"

const msgNotEntryOwner = "Only the user who clocked in can clock out of this session"

// Options configures a TaskService.
type Options struct {
	// OperationTimeout bounds every store operation.
	OperationTimeout time.Duration
	// Now replaces time.Now.
	Now func() time.Time
}

// TaskService is the authoritative implementation of task and time-entry
// operations. Every check that protects an invariant runs on rows read
// inside the write transaction.
type TaskService struct {
	db       *database.DB
	tasks    *repository.TaskRepository
	entries  *repository.TimeEntryRepository
	profiles *repository.ProfileRepository
	journal  *queue.CloseJournal
	broker   *notify.Broker
	logger   *zap.Logger
	timeout  time.Duration
	now      func() time.Time
}

func NewTaskService(
	db *database.DB,
	journal *queue.CloseJournal,
	broker *notify.Broker,
	logger *zap.Logger,
	opts Options,
) *TaskService {
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = DefaultOperationTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &TaskService{
		db:       db,
		tasks:    repository.NewTaskRepository(db),
		entries:  repository.NewTimeEntryRepository(db),
		profiles: repository.NewProfileRepository(db),
		journal:  journal,
		broker:   broker,
		logger:   logger,
		timeout:  opts.OperationTimeout,
		now:      opts.Now,
	}
}

// CreateTask creates an open task owned by actorID.
func (s *TaskService) CreateTask(ctx context.Context, actorID, title, description string) (*models.Task, error) {
	title, err := rules.ValidateTitle(title)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.operationContext(ctx)
	defer cancel()

	task := &models.Task{
		ID:          uuid.NewString(),
		Title:       title,
		Description: rules.NormalizeText(description),
		Status:      models.TaskOpen,
		CreatedBy:   actorID,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, s.storeError("failed to create task", err, zap.String("user_id", actorID))
	}

	s.logger.Info("Task created",
		zap.String("task_id", task.ID),
		zap.String("user_id", actorID),
	)
	s.publish(models.TableTasks, models.EventInsert, task, nil)
	return task, nil
}

// ListTasks returns tasks newest first, optionally filtered by status.
func (s *TaskService) ListTasks(ctx context.Context, status models.TaskStatus) ([]models.Task, error) {
	if status != "" && status != models.TaskOpen && status != models.TaskClosed {
		return nil, apperr.Validation(apperr.CodeInvalidStatus, fmt.Sprintf("unknown task status %q", status))
	}

	ctx, cancel := s.operationContext(ctx)
	defer cancel()

	tasks, err := s.tasks.List(ctx, status)
	if err != nil {
		return nil, s.storeError("failed to list tasks", err)
	}
	return tasks, nil
}

// ListEntries returns entries newest first. An empty taskID lists every entry.
func (s *TaskService) ListEntries(ctx context.Context, taskID string) ([]models.TimeEntry, error) {
	ctx, cancel := s.operationContext(ctx)
	defer cancel()

	entries, err := s.entries.List(ctx, taskID)
	if err != nil {
		return nil, s.storeError("failed to list time entries", err)
	}
	return entries, nil
}

func (s *TaskService) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	ctx, cancel := s.operationContext(ctx)
	defer cancel()

	profiles, err := s.profiles.List(ctx)
	if err != nil {
		return nil, s.storeError("failed to list profiles", err)
	}
	return profiles, nil
}

// Snapshot reads tasks, entries and profiles in one transaction. Seq is read
// first, so a client applying events with a higher seq misses nothing.
func (s *TaskService) Snapshot(ctx context.Context) (*models.Snapshot, error) {
	ctx, cancel := s.operationContext(ctx)
	defer cancel()

	snapshot := &models.Snapshot{Seq: s.broker.Seq()}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if snapshot.Tasks, err = s.tasks.WithTx(tx).List(ctx, ""); err != nil {
			return err
		}
		if snapshot.Entries, err = s.entries.WithTx(tx).List(ctx, ""); err != nil {
			return err
		}
		snapshot.Profiles, err = s.profiles.WithTx(tx).List(ctx)
		return err
	})
	if err != nil {
		return nil, s.storeError("failed to read snapshot", err)
	}
	return snapshot, nil
}

// ClockIn starts a session for actorID on taskID.
func (s *TaskService) ClockIn(ctx context.Context, actorID, taskID string) (*models.TimeEntry, error) {
	ctx, cancel := s.operationContext(ctx)
	defer cancel()

	var entry *models.TimeEntry
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		task, err := s.tasks.WithTx(tx).GetByID(ctx, taskID)
		if err != nil {
			return err
		}

		entries := s.entries.WithTx(tx)
		active, err := entries.ActiveForTask(ctx, taskID)
		if err != nil {
			return err
		}

		emails, err := s.emailsOf(ctx, s.profiles.WithTx(tx), active)
		if err != nil {
			return err
		}
		if err := rules.CheckClockIn(*task, active, actorID, func(id string) string { return emails[id] }); err != nil {
			return err
		}

		entry = &models.TimeEntry{
			ID:        uuid.NewString(),
			TaskID:    taskID,
			UserID:    actorID,
			StartTime: s.now().UTC(),
		}
		if err := entries.Create(ctx, entry); err != nil {
			if database.IsUniqueViolation(err) {
				return apperr.Conflict(apperr.CodeActiveSessionConflict, MsgActiveSessionConflict, err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		if apperr.IsKind(err, apperr.KindConflict) {
			s.logger.Warn("Clock-in rejected by store constraint",
				zap.String("task_id", taskID),
				zap.String("user_id", actorID),
				zap.Error(err),
			)
		}
		return nil, s.classify("failed to clock in", err, "task", zap.String("task_id", taskID))
	}

	s.logger.Info("Clocked in",
		zap.String("entry_id", entry.ID),
		zap.String("task_id", taskID),
		zap.String("user_id", actorID),
	)
	s.publish(models.TableTimeEntries, models.EventInsert, entry, nil)
	return entry, nil
}

// ClockOut ends actorID's session entryID. With models.ClockOutCloseTask the
// task is closed in the same transaction.
func (s *TaskService) ClockOut(ctx context.Context, actorID, entryID string, mode models.ClockOutMode) (*models.ClockOutResult, error) {
	if !mode.Valid() {
		return nil, apperr.Validation(apperr.CodeInvalidMode, fmt.Sprintf("unknown clock-out mode %q", mode))
	}

	ctx, cancel := s.operationContext(ctx)
	defer cancel()

	if mode == models.ClockOutKeepOpen {
		return s.keepOpen(ctx, actorID, entryID)
	}
	return s.closeTask(ctx, actorID, entryID)
}

func (s *TaskService) keepOpen(ctx context.Context, actorID, entryID string) (*models.ClockOutResult, error) {
	var before, after *models.TimeEntry
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		entries := s.entries.WithTx(tx)
		entry, err := entries.GetByID(ctx, entryID)
		if err != nil {
			return err
		}
		if entry.UserID != actorID {
			return apperr.Forbidden(apperr.CodeNotEntryOwner, msgNotEntryOwner)
		}
		// A close that failed earlier must not be completed later by the
		// reconciler once the user chose to keep the task open.
		if err := s.journal.WithTx(tx).Remove(ctx, entryID); err != nil {
			return err
		}
		if !entry.Active() {
			after = entry
			return nil
		}

		before, after, err = s.endEntry(ctx, entries, entry)
		return err
	})
	if err != nil {
		return nil, s.classify("failed to clock out", err, "time entry", zap.String("entry_id", entryID))
	}

	if before != nil {
		s.logger.Info("Clocked out",
			zap.String("entry_id", entryID),
			zap.String("task_id", after.TaskID),
			zap.String("user_id", actorID),
		)
		s.publish(models.TableTimeEntries, models.EventUpdate, after, before)
	}
	return &models.ClockOutResult{Entry: *after}, nil
}

func (s *TaskService) closeTask(ctx context.Context, actorID, entryID string) (*models.ClockOutResult, error) {
	entry, err := s.entries.GetByID(ctx, entryID)
	if err != nil {
		return nil, s.classify("failed to clock out", err, "time entry", zap.String("entry_id", entryID))
	}
	if entry.UserID != actorID {
		return nil, apperr.Forbidden(apperr.CodeNotEntryOwner, msgNotEntryOwner)
	}

	intent := queue.CloseIntent{
		EntryID:     entryID,
		TaskID:      entry.TaskID,
		UserID:      actorID,
		RequestedAt: s.now().UTC(),
	}
	if err := s.journal.Record(ctx, intent); err != nil {
		return nil, s.storeError("failed to clock out", err, zap.String("entry_id", entryID))
	}

	var (
		entryBefore, entryAfter *models.TimeEntry
		taskBefore, taskAfter   *models.Task
	)
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		tasks := s.tasks.WithTx(tx)
		entries := s.entries.WithTx(tx)

		current, err := entries.GetByID(ctx, entryID)
		if err != nil {
			return err
		}
		task, err := tasks.GetByID(ctx, current.TaskID)
		if err != nil {
			return err
		}
		entryAfter, taskAfter = current, task

		if !task.IsOpen() {
			if current.Active() {
				return apperr.Validation(apperr.CodeTaskClosed, rules.MsgTaskClosed)
			}
			// Retried close that already committed.
			return nil
		}

		active, err := entries.ActiveForTask(ctx, task.ID)
		if err != nil {
			return err
		}
		if err := rules.CheckClose(active, task.ID, entryID); err != nil {
			return err
		}

		if current.Active() {
			if entryBefore, entryAfter, err = s.endEntry(ctx, entries, current); err != nil {
				return err
			}
		}

		closedAt := latest(s.now().UTC(), task.CreatedAt)
		closed, err := tasks.Close(ctx, task.ID, closedAt)
		if err != nil {
			return err
		}
		if !closed {
			return apperr.Conflict(apperr.CodeTaskClosed, rules.MsgTaskClosed, nil)
		}
		taskBefore = task
		closedTask := *task
		closedTask.Status = models.TaskClosed
		closedTask.ClosedAt = &closedAt
		taskAfter = &closedTask
		return nil
	})

	if err != nil {
		// A rejected close changed nothing, so the intent has nothing to reconcile.
		if kind := apperr.KindOf(err); kind != apperr.KindStore {
			s.removeIntent(ctx, entryID)
		}
		return nil, s.classify("failed to clock out", err, "time entry", zap.String("entry_id", entryID))
	}
	s.removeIntent(ctx, entryID)

	if entryBefore != nil {
		s.publish(models.TableTimeEntries, models.EventUpdate, entryAfter, entryBefore)
	}
	if taskBefore != nil {
		s.logger.Info("Clocked out and closed task",
			zap.String("entry_id", entryID),
			zap.String("task_id", taskAfter.ID),
			zap.String("user_id", actorID),
		)
		s.publish(models.TableTasks, models.EventUpdate, taskAfter, taskBefore)
	}
	return &models.ClockOutResult{Entry: *entryAfter, Task: taskAfter}, nil
}

// TaskReport aggregates the time entries of taskID.
func (s *TaskService) TaskReport(ctx context.Context, taskID string) (*report.Report, error) {
	ctx, cancel := s.operationContext(ctx)
	defer cancel()

	var (
		task     *models.Task
		entries  []models.TimeEntry
		profiles []models.Profile
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if task, err = s.tasks.WithTx(tx).GetByID(ctx, taskID); err != nil {
			return err
		}
		if entries, err = s.entries.WithTx(tx).List(ctx, taskID); err != nil {
			return err
		}
		profiles, err = s.profiles.WithTx(tx).List(ctx)
		return err
	})
	if err != nil {
		return nil, s.classify("failed to build report", err, "task", zap.String("task_id", taskID))
	}

	r := report.Build(*task, entries, profiles)
	return &r, nil
}

// endEntry ends an active entry at the current time, never before its start.
func (s *TaskService) endEntry(ctx context.Context, entries *repository.TimeEntryRepository, entry *models.TimeEntry) (before, after *models.TimeEntry, err error) {
	end := latest(s.now().UTC(), entry.StartTime)
	ended, err := entries.End(ctx, entry.ID, end)
	if err != nil {
		return nil, nil, err
	}
	if !ended {
		return nil, nil, apperr.Conflict(apperr.CodeEntryEnded, rules.MsgEntryEnded, nil)
	}
	updated := *entry
	updated.EndTime = &end
	return entry, &updated, nil
}

func (s *TaskService) emailsOf(ctx context.Context, profiles *repository.ProfileRepository, entries []models.TimeEntry) (map[string]string, error) {
	emails := make(map[string]string, len(entries))
	for _, e := range entries {
		p, err := profiles.GetByID(ctx, e.UserID)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		emails[p.ID] = p.Email
	}
	return emails, nil
}

func (s *TaskService) removeIntent(ctx context.Context, entryID string) {
	if err := s.journal.Remove(ctx, entryID); err != nil {
		s.logger.Warn("Failed to remove close intent",
			zap.String("entry_id", entryID),
			zap.Error(err),
		)
	}
}

func (s *TaskService) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *TaskService) operationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *TaskService) publish(table, eventType string, newRecord, oldRecord any) {
	event, err := models.NewChangeEvent(table, eventType, newRecord, oldRecord)
	if err != nil {
		s.logger.Error("Failed to encode change event",
			zap.String("table", table),
			zap.Error(err),
		)
		return
	}
	event.Timestamp = s.now().UTC()
	s.broker.Publish(event)
}

// classify passes application errors through, maps missing rows to
// not-found for resource, and treats everything else as a store failure.
func (s *TaskService) classify(msg string, err error, resource string, fields ...zap.Field) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae
	}
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(resource)
	}
	return s.storeError(msg, err, fields...)
}

func (s *TaskService) storeError(msg string, err error, fields ...zap.Field) error {
	s.logger.Error(msg, append(fields, zap.Error(err))...)
	return apperr.Store(msg, err)
}

func latest(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
