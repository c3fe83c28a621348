package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"Mansoor88-6/team-time-tracker/internal/models"
)

const displayTime = "2006-01-02 15:04"

// NewTaskCommand creates the task command group.
func NewTaskCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Create and list tasks",
	}
	cmd.AddCommand(newTaskCreateCommand(rootOpts))
	cmd.AddCommand(newTaskListCommand(rootOpts))
	return cmd
}

func newTaskCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var title, description string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an open task",
		Args:  cobra.NoArgs,
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
			task, err := api.CreateTask(cmd.Context(), title, description)
			if err != nil {
				return err
			}

			return e.out.Success(task, func(w io.Writer) {
				fmt.Fprintf(w, "Created task %s: %s\n", task.ID, task.Title)
			})
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "task title (required)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "optional description")
	return cmd
}

func newTaskListCommand(rootOpts *RootOptions) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, newest first",
		Args:  cobra.NoArgs,
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
			snapshot, err := api.Snapshot(cmd.Context())
			if err != nil {
				return err
			}

			tasks := make([]models.Task, 0, len(snapshot.Tasks))
			for _, t := range snapshot.Tasks {
				if status == "" || string(t.Status) == status {
					tasks = append(tasks, t)
				}
			}

			return e.out.Success(tasks, func(w io.Writer) {
				renderTasks(w, tasks, *snapshot)
			})
		},
	}

	cmd.Flags().StringVarP(&status, "status", "s", "", "filter by status (open|closed)")
	return cmd
}

func renderTasks(w io.Writer, tasks []models.Task, snapshot models.Snapshot) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tTITLE\tCREATED BY\tCREATED\tWORKING")
	for _, t := range tasks {
		working := "-"
		for _, e := range snapshot.Entries {
			if e.TaskID == t.ID && e.Active() {
				working = emailOrUnknown(snapshot, e.UserID)
				break
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID,
			t.Status,
			t.Title,
			emailOrUnknown(snapshot, t.CreatedBy),
			t.CreatedAt.Local().Format(displayTime),
			working,
		)
	}
	tw.Flush()
}

func emailOrUnknown(snapshot models.Snapshot, userID string) string {
	if email := snapshot.EmailOf(userID); email != "" {
		return email
	}
	return "Unknown"
}
