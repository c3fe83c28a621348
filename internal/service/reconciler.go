package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"Mansoor88-6/team-time-tracker/internal/queue"
)

const (
	reconcileBatchSize       = 100
	defaultReconcileInterval = 30 * time.Second
)

// Reconciler periodically resolves close intents left in the journal.
type Reconciler struct {
	service  *TaskService
	journal  *queue.CloseJournal
	interval time.Duration
	maxAge   time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewReconciler(
	service *TaskService,
	journal *queue.CloseJournal,
	interval time.Duration,
	maxAge time.Duration,
	logger *zap.Logger,
) *Reconciler {
	if interval <= 0 {
		interval = defaultReconcileInterval
	}
	return &Reconciler{
		service:  service,
		journal:  journal,
		interval: interval,
		maxAge:   maxAge,
		logger:   logger,
	}
}

// Start runs one pass immediately and then one per interval until Stop.
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	if r.stopChan != nil {
		r.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	r.stopChan = stop
	r.wg.Add(1)
	r.mu.Unlock()

	go r.loop(ctx, stop)

	r.logger.Info("Close reconciler started",
		zap.Duration("interval", r.interval),
	)
}

// Stop ends the loop and waits for an in-flight pass. Safe to call repeatedly.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	stop := r.stopChan
	r.stopChan = nil
	r.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	r.wg.Wait()
	r.logger.Info("Close reconciler stopped")
}

// RunOnce resolves every pending intent and returns how many were resolved.
func (r *Reconciler) RunOnce(ctx context.Context) int {
	intents, err := r.journal.Pending(ctx, reconcileBatchSize)
	if err != nil {
		r.logger.Error("Failed to load close intents", zap.Error(err))
		return 0
	}

	resolved := 0
	for _, intent := range intents {
		outcome, err := r.service.ResolveCloseIntent(ctx, intent)
		if err != nil {
			r.logger.Warn("Failed to resolve close intent",
				zap.String("entry_id", intent.EntryID),
				zap.Int("retry_count", intent.RetryCount),
				zap.Error(err),
			)
			if err := r.journal.MarkFailed(ctx, intent.EntryID, err); err != nil {
				r.logger.Error("Failed to mark close intent", zap.Error(err))
			}
			continue
		}

		if err := r.journal.Remove(ctx, intent.EntryID); err != nil {
			r.logger.Error("Failed to remove close intent", zap.Error(err))
			continue
		}
		resolved++
		r.logger.Info("Close intent resolved",
			zap.String("entry_id", intent.EntryID),
			zap.String("task_id", intent.TaskID),
			zap.String("outcome", string(outcome)),
		)
	}

	if r.maxAge > 0 {
		if _, err := r.journal.Cleanup(ctx, r.maxAge); err != nil {
			r.logger.Error("Failed to cleanup close intents", zap.Error(err))
		}
	}
	return resolved
}

func (r *Reconciler) loop(ctx context.Context, stop <-chan struct{}) {
	defer r.wg.Done()

	r.RunOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.RunOnce(ctx)
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}
