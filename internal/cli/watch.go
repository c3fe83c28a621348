package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"Mansoor88-6/team-time-tracker/internal/apperr"
	"Mansoor88-6/team-time-tracker/internal/cache"
	"Mansoor88-6/team-time-tracker/internal/client"
	"Mansoor88-6/team-time-tracker/internal/models"
	"Mansoor88-6/team-time-tracker/internal/timer"
)

const (
	watchRetryDelay = 2 * time.Second
	idleLabel       = "No active session"
)

var errStreamClosed = errors.New("event stream closed")

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow live changes and show the running timer",
		Long: `Follow task and session changes made by any user.

The current session's elapsed time is shown as HH:MM:SS and refreshed every
second. When the event stream is lost the full state is fetched again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := rootOpts.load(cmd)
			if err != nil {
				return err
			}
			defer e.log.Sync()

			api, err := e.api(true)
			if err != nil {
				return err
			}
			me, err := api.Me(cmd.Context())
			if err != nil {
				return err
			}

			w := newWatcher(api, *me, e.out, interval, e.log.Logger)
			return w.run(cmd.Context())
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", timer.Interval, "timer refresh interval")
	_ = cmd.Flags().MarkHidden("interval")
	return cmd
}

// watcher keeps a cache in sync with the server and drives the timer line
// for the signed-in user's active entry.
type watcher struct {
	api    *client.APIClient
	me     models.Profile
	cache  *cache.Cache
	timer  *timer.Timer
	out    *OutputFormatter
	logger *zap.Logger
	retry  time.Duration

	activeID string
	started  bool

	// mu serializes writes to out between the timer loop and event handling.
	mu    sync.Mutex
	label string
}

func newWatcher(api *client.APIClient, me models.Profile, out *OutputFormatter, interval time.Duration, logger *zap.Logger) *watcher {
	w := &watcher{
		api:    api,
		me:     me,
		cache:  cache.New(),
		out:    out,
		logger: logger,
		retry:  watchRetryDelay,
		label:  idleLabel,
	}
	w.timer = timer.New(interval, nil, w.tick, logger)
	return w
}

func (w *watcher) run(ctx context.Context) error {
	defer w.timer.Stop()

	for {
		err := w.follow(ctx)
		if ctx.Err() != nil {
			w.finish()
			return nil
		}
		if apperr.IsKind(err, apperr.KindUnauthorized) {
			w.finish()
			return err
		}

		w.logger.Warn("Lost event stream, refetching state",
			zap.Error(err),
			zap.Duration("retry_in", w.retry),
		)
		select {
		case <-ctx.Done():
			w.finish()
			return nil
		case <-time.After(w.retry):
		}
	}
}

// follow subscribes before fetching the snapshot so no event is missed;
// events already covered by the snapshot are skipped by the cache.
func (w *watcher) follow(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := w.api.Subscribe(ctx)
	if err != nil {
		return err
	}
	snapshot, err := w.api.Snapshot(ctx)
	if err != nil {
		return err
	}
	w.cache.Load(*snapshot)
	w.logger.Debug("Loaded snapshot",
		zap.Int64("seq", snapshot.Seq),
		zap.Int("tasks", len(snapshot.Tasks)),
		zap.Int("entries", len(snapshot.Entries)),
	)
	w.refresh()

	for event := range events {
		applied, err := w.cache.Apply(event)
		if err != nil {
			return fmt.Errorf("failed to apply event %d: %w", event.Seq, err)
		}
		if !applied {
			continue
		}
		w.notice(event)
		w.refresh()
	}
	return errStreamClosed
}

// refresh restarts the timer when the user's active entry changed.
func (w *watcher) refresh() {
	entry, ok := w.cache.ActiveEntryFor("", w.me.ID)
	if w.started && entry.ID == w.activeID {
		return
	}
	w.started = true
	w.activeID = entry.ID

	w.timer.Stop()
	if !ok {
		w.setLabel(idleLabel)
		w.timer.Start(nil)
		return
	}

	label := "Unknown task"
	if task, found := w.cache.Task(entry.TaskID); found {
		label = task.Title
	}
	w.setLabel(label)
	start := entry.StartTime
	w.timer.Start(&start)
}

func (w *watcher) setLabel(label string) {
	w.mu.Lock()
	w.label = label
	w.mu.Unlock()
}

func (w *watcher) tick(value string) {
	if w.out.Format == "json" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out.Writer, "\r%s %s", w.label, value)
}

func (w *watcher) notice(event models.ChangeEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.out.Format == "json" {
		if err := json.NewEncoder(w.out.Writer).Encode(CLIResponse{Status: "ok", Data: event}); err != nil {
			w.logger.Warn("Failed to write event", zap.Error(err))
		}
		return
	}
	if text := w.describe(event); text != "" {
		fmt.Fprintf(w.out.Writer, "\n%s\n", text)
	}
}

func (w *watcher) finish() {
	if w.out.Format == "json" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.out.Writer)
}

func (w *watcher) describe(event models.ChangeEvent) string {
	snapshot := w.cache.Snapshot()

	switch event.Table {
	case models.TableTasks:
		var task models.Task
		if json.Unmarshal(event.New, &task) != nil {
			return ""
		}
		switch {
		case event.Type == models.EventInsert:
			return fmt.Sprintf("%s created task %q", emailOrUnknown(snapshot, task.CreatedBy), task.Title)
		case !task.IsOpen():
			return fmt.Sprintf("Task %q closed", task.Title)
		}

	case models.TableTimeEntries:
		var entry models.TimeEntry
		if json.Unmarshal(event.New, &entry) != nil {
			return ""
		}
		title := "Unknown task"
		if task, ok := findTask(snapshot, entry.TaskID); ok {
			title = task.Title
		}
		who := emailOrUnknown(snapshot, entry.UserID)
		if entry.Active() {
			return fmt.Sprintf("%s clocked in to %q", who, title)
		}
		return fmt.Sprintf("%s clocked out of %q", who, title)
	}
	return ""
}
