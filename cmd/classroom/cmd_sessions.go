package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"classroom/internal/app"
	"classroom/internal/session"
	"classroom/internal/store"
	"classroom/internal/view"
	"classroom/pkg/types"
)

func newSessionsCmd(opts *rootOptions) *cobra.Command {
	var workspaceID int64
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage the sessions of one workspace",
	}
	cmd.PersistentFlags().Int64VarP(&workspaceID, "workspace", "w", 0, "Workspace id")
	_ = cmd.MarkPersistentFlagRequired("workspace")

	cmd.AddCommand(
		sessionsListCmd(opts, &workspaceID),
		sessionsCreateCmd(opts, &workspaceID),
		sessionsWatchCmd(opts, &workspaceID),
		sessionMoveCmd(opts, &workspaceID, "archive", "Archive a session", types.StatusArchive),
		sessionMoveCmd(opts, &workspaceID, "unarchive", "Bring an archived session back", types.StatusActive),
		sessionMoveCmd(opts, &workspaceID, "trash", "Move a session to the trash", types.StatusTrash),
		sessionActionCmd(opts, &workspaceID, "restore", "Restore a trashed session to active",
			func(ctx context.Context, m *session.Manager, id int64) store.Outcome { return m.Restore(ctx, id) }),
		sessionActionCmd(opts, &workspaceID, "toggle", "Start a stopped session or stop a running one",
			func(ctx context.Context, m *session.Manager, id int64) store.Outcome { return m.ToggleStartStop(ctx, id) }),
		sessionsDeleteCmd(opts, &workspaceID),
	)
	return cmd
}

func sessionsListCmd(opts *rootOptions, workspaceID *int64) *cobra.Command {
	var vs view.ViewState
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions in a tab, running first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				m, err := loadSessions(ctx, a, *workspaceID)
				if err != nil {
					return err
				}
				m.SetView(vs)
				counts := m.Counts()
				fmt.Fprintf(cmd.OutOrStdout(), "active %d  archive %d  trash %d\n",
					counts[types.StatusActive], counts[types.StatusArchive], counts[types.StatusTrash])
				return printSessions(cmd.OutOrStdout(), m.Visible())
			})
		},
	}
	cmd.Flags().StringVar(&vs.Tab, "tab", types.StatusActive, "Tab to show: active, archive or trash")
	cmd.Flags().StringVarP(&vs.Query, "query", "q", "", "Filter by name or passcode")
	return cmd
}

func sessionsCreateCmd(opts *rootOptions, workspaceID *int64) *cobra.Command {
	var req types.CreateSessionRequest
	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Name = args[0]
			return opts.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				m := a.Sessions(*workspaceID)
				created, outcome := m.Create(ctx, req)
				if err := outcomeError(outcome, m.Error()); err != nil {
					return err
				}
				if created == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "session %q created\n", req.Name)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "session %d %q created, passcode %s\n", created.ID, created.Name, created.Passcode)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.EntryMode, "entry-mode", "", "Participant entry mode: anonymous, registered, sso or email_code")
	return cmd
}

func sessionsWatchCmd(opts *rootOptions, workspaceID *int64) *cobra.Command {
	var (
		vs       view.ViewState
		duration time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the session list in sync and print it on every change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				ctx, cancel := boundedContext(ctx, duration)
				defer cancel()

				m := a.Sessions(*workspaceID)
				m.SetView(vs)
				cfg := a.Config()

				var lastFetch time.Time
				ticker := time.NewTicker(max(cfg.Polling.SessionInterval/4, 50*time.Millisecond))
				defer ticker.Stop()
				report := func() error {
					if at := m.FetchedAt(); at.After(lastFetch) {
						lastFetch = at
						return printSessions(cmd.OutOrStdout(), m.Visible())
					}
					return nil
				}

				done := make(chan error, 1)
				go func() { done <- m.Watch(ctx, cfg.Polling.SessionInterval, cfg.Polling.Jitter) }()
				for {
					select {
					case err := <-done:
						if perr := report(); perr != nil {
							return perr
						}
						return ignoreCancel(err)
					case <-ticker.C:
						if err := report(); err != nil {
							return err
						}
					}
				}
			})
		},
	}
	cmd.Flags().StringVar(&vs.Tab, "tab", types.StatusActive, "Tab to show: active, archive or trash")
	cmd.Flags().StringVarP(&vs.Query, "query", "q", "", "Filter by name or passcode")
	cmd.Flags().DurationVar(&duration, "for", 0, "Stop after this long (0 watches until interrupted)")
	return cmd
}

func sessionMoveCmd(opts *rootOptions, workspaceID *int64, use, short, target string) *cobra.Command {
	return sessionActionCmd(opts, workspaceID, use, short, func(ctx context.Context, m *session.Manager, id int64) store.Outcome {
		return m.Move(ctx, id, target)
	})
}

func sessionActionCmd(opts *rootOptions, workspaceID *int64, use, short string, action func(context.Context, *session.Manager, int64) store.Outcome) *cobra.Command {
	return &cobra.Command{
		Use:   use + " SESSION_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionAction(cmd, opts, *workspaceID, args[0], action)
		},
	}
}

func sessionsDeleteCmd(opts *rootOptions, workspaceID *int64) *cobra.Command {
	var confirmed bool
	cmd := &cobra.Command{
		Use:   "delete SESSION_ID",
		Short: "Permanently delete a trashed session",
		Long:  "Permanently delete a trashed session. This cannot be undone and requires --yes.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				m, err := loadSessions(ctx, a, *workspaceID)
				if err != nil {
					return err
				}
				if err := outcomeError(m.DeletePermanently(ctx, id, confirmed), m.Error()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "session %d deleted permanently\n", id)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&confirmed, "yes", false, "Confirm the permanent deletion")
	return cmd
}

// runSessionAction loads the workspace's sessions, applies one change and
// prints where the session ended up
func runSessionAction(cmd *cobra.Command, opts *rootOptions, workspaceID int64, rawID string, action func(context.Context, *session.Manager, int64) store.Outcome) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	return opts.withApp(cmd, func(ctx context.Context, a *app.Application) error {
		m, err := loadSessions(ctx, a, workspaceID)
		if err != nil {
			return err
		}
		if err := outcomeError(action(ctx, m, id), m.Error()); err != nil {
			return err
		}
		s, _ := m.Get(id)
		running := "stopped"
		if !s.IsStopped {
			running = "running"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "session %d %q is now %s, %s\n", s.ID, s.Name, session.Lifecycle(s), running)
		return nil
	})
}

func loadSessions(ctx context.Context, a *app.Application, workspaceID int64) (*session.Manager, error) {
	if workspaceID <= 0 {
		return nil, types.ErrInvalidWorkspaceID
	}
	m := a.Sessions(workspaceID)
	if err := outcomeError(m.Fetch(ctx), m.Error()); err != nil {
		return nil, err
	}
	return m, nil
}

// boundedContext limits ctx to d when d is positive
func boundedContext(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

// ignoreCancel treats the end of a watch as success
func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
