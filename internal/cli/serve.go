package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"Mansoor88-6/team-time-tracker/internal/server"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server",
		Long: `Run the HTTP API server that owns the task store.

The server stops cleanly on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := rootOpts.load(cmd)
			if err != nil {
				return err
			}
			defer e.log.Sync()
			if address != "" {
				e.cfg.Server.Address = address
			}

			e.log.Info("Starting team tracker server",
				zap.String("env", e.cfg.Env),
				zap.String("config_path", rootOpts.ConfigPath),
				zap.String("storage_path", e.cfg.StoragePath),
			)

			srv, err := server.New(e.cfg, e.log.Logger)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to start server", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			runErr := srv.Run(ctx)
			if err := srv.Close(); err != nil {
				e.log.Error("Failed to close server", zap.Error(err))
			}
			if runErr != nil {
				return WrapExitError(ExitFailure, "server stopped with error", runErr)
			}

			e.log.Info("Team tracker server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "listen address (overrides server.address)")
	return cmd
}
