package cli

import (
	"io"

	"github.com/spf13/cobra"

	"Mansoor88-6/team-time-tracker/internal/report"
)

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "report <task-id>",
		Short: "Show the time spent on a task",
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
			rep, err := api.TaskReport(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			var renderErr error
			if err := e.out.Success(rep, func(w io.Writer) {
				renderErr = report.Render(w, *rep)
			}); err != nil {
				return err
			}
			return renderErr
		},
	}
}
