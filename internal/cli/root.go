package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"Mansoor88-6/team-time-tracker/internal/client"
	"Mansoor88-6/team-time-tracker/internal/config"
	"Mansoor88-6/team-time-tracker/internal/logger"
)

// DefaultConfigPath is used when --config is not given.
const DefaultConfigPath = "config/local.yaml"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Format     string // "json" | "text"
	Verbose    bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command of the team tracker CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "team-tracker",
		Short: "Collaborative task and time tracking",
		Long: `Track time on shared tasks.

Users create tasks, clock in and out against them, and review how much time
was spent. A task can be worked on by one user at a time.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", DefaultConfigPath, "path to configuration file")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewSignInCommand(opts))
	cmd.AddCommand(NewSignOutCommand(opts))
	cmd.AddCommand(NewTaskCommand(opts))
	cmd.AddCommand(NewClockInCommand(opts))
	cmd.AddCommand(NewClockOutCommand(opts))
	cmd.AddCommand(NewReportCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))

	return cmd
}

// Run executes the CLI with args and returns the process exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts := &RootOptions{}
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	format := opts.Format
	if !isValidFormat(format) {
		format = "text"
	}
	formatter := &OutputFormatter{Format: format, Writer: stdout, ErrWriter: stderr}
	formatter.Error(err)
	return GetExitCode(err)
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// env is what every command needs after loading the configuration.
type env struct {
	cfg *config.Config
	log *logger.Logger
	out *OutputFormatter
}

func (o *RootOptions) load(cmd *cobra.Command) (*env, error) {
	cfg, err := config.LoadConfig(o.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	level := cfg.Log.Level
	if o.Verbose {
		level = "debug"
	}
	log, err := logger.New(level, cfg.Log.Format)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to initialize logger", err)
	}

	return &env{
		cfg: cfg,
		log: log,
		out: &OutputFormatter{
			Format:    o.Format,
			Writer:    cmd.OutOrStdout(),
			ErrWriter: cmd.ErrOrStderr(),
		},
	}, nil
}

// api returns a client for the configured server. Commands that act as a
// user require a stored token.
func (e *env) api(requireToken bool) (*client.APIClient, error) {
	if requireToken && e.cfg.Client.Token == "" {
		return nil, NewExitError(ExitCommandError, "not signed in: run team-tracker signin <email>")
	}
	return client.NewAPIClient(
		e.cfg.Client.BaseURL,
		e.cfg.Client.Token,
		e.cfg.Client.TimeoutDuration(),
		e.log.Logger,
	), nil
}
