package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"classroom/internal/app"
	"classroom/internal/config"
	"classroom/internal/logger"
	"classroom/internal/store"
)

var version = "0.1.0"

// errSkipped is returned when another change to the same entity is pending
var errSkipped = errors.New("another change to this item is still pending")

// ARCHITECTURAL DISCOVERY: Separate run function enables testing and error handling
// Signal handling cancels the root context so pollers and heartbeats stop cleanly
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// rootOptions are the persistent flags shared by every command
type rootOptions struct {
	configPath string
	baseURL    string
	storePath  string
	token      string
	logLevel   string
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "classroom",
		Short: "Command-line client for the Interactive Classroom Platform",
		Long: `classroom manages workspaces and sessions as a lecturer and joins
sessions as a participant.

Examples:
  # Lecturer
  classroom login --email me@uni.edu --password ...
  classroom workspaces list
  classroom sessions list --workspace 1 --tab archive
  classroom sessions toggle --workspace 1 42

  # Participant
  classroom join ALGO01 --name Ada
  classroom watch ALGO01
  classroom ask ALGO01 "Is quicksort stable?"`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", os.Getenv("CLASSROOM_CONFIG_FILE"), "Configuration file (JSON or YAML)")
	flags.StringVar(&opts.baseURL, "base-url", "", "Backend base URL")
	flags.StringVar(&opts.storePath, "store-path", "", "Local credential database")
	flags.StringVar(&opts.token, "token", "", "Lecturer access token")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	root.AddCommand(newLoginCmd(opts))
	root.AddCommand(newWorkspacesCmd(opts))
	root.AddCommand(newSessionsCmd(opts))
	root.AddCommand(newJoinCmd(opts))
	root.AddCommand(newWatchCmd(opts))
	root.AddCommand(newAskCmd(opts))
	return root
}

// load resolves configuration: flags > file > env > defaults
func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.LoadConfigWithPrecedence(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.baseURL != "" {
		cfg.API.BaseURL = o.baseURL
	}
	if o.storePath != "" {
		cfg.Store.Path = o.storePath
	}
	if o.token != "" {
		cfg.Auth.AccessToken = o.token
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	return cfg, nil
}

// withApp builds the application for one command invocation and closes it afterwards
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.Application) error) error {
	cfg, err := o.load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	log, err := logger.NewWithWriter(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	a, err := app.NewApplication(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error().Err(err).Msg("close")
		}
	}()

	return fn(cmd.Context(), a)
}

// outcomeError turns a manager outcome into a command error
func outcomeError(outcome store.Outcome, message string) error {
	switch outcome {
	case store.Failed:
		return errors.New(message)
	case store.Skipped:
		return errSkipped
	}
	return nil
}

func newLoginCmd(opts *rootOptions) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Exchange lecturer credentials for an access token",
		Long: `Log in and print the access token. The token is not stored; export it
as CLASSROOM_AUTH_ACCESS_TOKEN or pass --token to later commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				st, err := a.Auth().Login(ctx, email, password)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "export CLASSROOM_AUTH_ACCESS_TOKEN=%s\n", st.AccessToken)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Lecturer email")
	cmd.Flags().StringVar(&password, "password", os.Getenv("CLASSROOM_PASSWORD"), "Lecturer password")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
