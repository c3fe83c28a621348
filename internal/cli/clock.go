package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"Mansoor88-6/team-time-tracker/internal/apperr"
	"Mansoor88-6/team-time-tracker/internal/client"
	"Mansoor88-6/team-time-tracker/internal/models"
	"Mansoor88-6/team-time-tracker/internal/rules"
	"Mansoor88-6/team-time-tracker/internal/timer"
)

// MsgNoActiveSession is shown when clocking out of a task the user is not working on.
const MsgNoActiveSession = "You have no active session for this task"

// NewClockInCommand creates the clockin command.
func NewClockInCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clockin <task-id>",
		Short: "Start working on a task",
		Args:  cobra.ExactArgs(1),
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
			ctx := cmd.Context()
			taskID := args[0]

			snapshot, me, err := loadState(ctx, api)
			if err != nil {
				return err
			}
			task, ok := findTask(*snapshot, taskID)
			if !ok {
				return apperr.NotFound("task")
			}
			if err := rules.CheckClockIn(task, snapshot.Entries, me.ID, snapshot.EmailOf); err != nil {
				return err
			}

			entry, err := api.ClockIn(ctx, taskID)
			if err != nil {
				return err
			}
			e.log.Debug("Clocked in",
				zap.String("task_id", taskID),
				zap.String("entry_id", entry.ID),
			)

			return e.out.Success(entry, func(w io.Writer) {
				fmt.Fprintf(w, "Clocked in to %q at %s\n", task.Title, entry.StartTime.Local().Format(displayTime))
			})
		},
	}
}

// NewClockOutCommand creates the clockout command.
func NewClockOutCommand(rootOpts *RootOptions) *cobra.Command {
	var closeTask bool

	cmd := &cobra.Command{
		Use:   "clockout <task-id>",
		Short: "Stop working on a task",
		Long: `Stop working on a task.

By default the task stays open for others. With --close the task is closed as
well, which is refused while other users are still clocked in.`,
		Args: cobra.ExactArgs(1),
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
			ctx := cmd.Context()
			taskID := args[0]

			snapshot, me, err := loadState(ctx, api)
			if err != nil {
				return err
			}
			if _, ok := findTask(*snapshot, taskID); !ok {
				return apperr.NotFound("task")
			}
			entry, ok := rules.ActiveEntryForUser(snapshot.Entries, taskID, me.ID)
			if !ok {
				return apperr.Validation(apperr.CodeEntryEnded, MsgNoActiveSession)
			}

			mode := models.ClockOutKeepOpen
			if closeTask {
				mode = models.ClockOutCloseTask
				if err := rules.CheckClose(snapshot.Entries, taskID, entry.ID); err != nil {
					return err
				}
			}

			result, err := api.ClockOut(ctx, entry.ID, mode)
			if err != nil {
				return err
			}
			e.log.Debug("Clocked out",
				zap.String("task_id", taskID),
				zap.String("entry_id", entry.ID),
				zap.String("mode", string(mode)),
			)

			return e.out.Success(result, func(w io.Writer) {
				d := result.Entry.DurationSeconds()
				var seconds int64
				if d != nil {
					seconds = *d
				}
				fmt.Fprintf(w, "Clocked out after %s\n", timer.Format(seconds))
				if result.Task != nil {
					fmt.Fprintf(w, "Task %q closed\n", result.Task.Title)
				}
			})
		},
	}

	cmd.Flags().BoolVar(&closeTask, "close", false, "close the task as well")
	return cmd
}

func loadState(ctx context.Context, api *client.APIClient) (*models.Snapshot, *models.Profile, error) {
	me, err := api.Me(ctx)
	if err != nil {
		return nil, nil, err
	}
	snapshot, err := api.Snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}
	return snapshot, me, nil
}

func findTask(snapshot models.Snapshot, id string) (models.Task, bool) {
	for _, t := range snapshot.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return models.Task{}, false
}
