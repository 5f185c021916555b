package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"classroom/internal/app"
	"classroom/internal/join"
	"classroom/pkg/types"
)

func newJoinCmd(opts *rootOptions) *cobra.Command {
	var name, email, code string
	cmd := &cobra.Command{
		Use:   "join PASSCODE",
		Short: "Join a session as a participant",
		Long: `Join a session by passcode. The session's entry mode decides how:

  anonymous    a participant token is issued for this device
  registered   the lecturer/student access token is used (--token)
  sso          same as registered
  email_code   run once with --email to receive a code, then again
               with --email and --code to verify it`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			passcode := args[0]
			return opts.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				out := cmd.OutOrStdout()
				flow := a.Join()

				mode, err := flow.ResolveEntryMode(ctx, passcode)
				if err != nil {
					return err
				}

				var p *join.Participation
				switch {
				case mode != types.EntryModeEmailCode:
					p, err = flow.Join(ctx, passcode, name)
				case code == "":
					if err := flow.RequestEmailCode(ctx, passcode, email); err != nil {
						return err
					}
					fmt.Fprintf(out, "verification code sent to %s; run join again with --code\n", email)
					return nil
				default:
					p, err = flow.VerifyEmailCode(ctx, passcode, email, code)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "joined %q (%s) as %s\n", p.Name, p.Passcode, p.Mode)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name shown to the lecturer")
	cmd.Flags().StringVar(&email, "email", "", "Email address for email_code sessions")
	cmd.Flags().StringVar(&code, "code", "", "Verification code received by email")
	return cmd
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var duration time.Duration
	cmd := &cobra.Command{
		Use:   "watch PASSCODE",
		Short: "Stay present in a joined session and follow its roster, modules and timer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				ctx, cancel := boundedContext(ctx, duration)
				defer cancel()
				return watchSession(ctx, a, args[0], &lockedWriter{out: cmd.OutOrStdout()})
			})
		},
	}
	cmd.Flags().DurationVar(&duration, "for", 0, "Stop after this long (0 watches until interrupted)")
	return cmd
}

// watchSession runs the heartbeat and every poller of a joined session until
// ctx is done or the participant has to join again
func watchSession(ctx context.Context, a *app.Application, passcode string, out *lockedWriter) error {
	p, err := a.Join().Attach(ctx, passcode)
	if err != nil {
		return err
	}
	polling := a.Config().Polling
	heartbeat := a.Config().Join.HeartbeatInterval

	timerID, err := p.ActiveTimer(ctx)
	switch {
	case errors.Is(err, join.ErrNoTimerModule):
		timerID = 0
	case err != nil:
		return rejoinHint(err, passcode)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.KeepAlive(gctx, heartbeat)
	})
	g.Go(func() error {
		return p.WatchRoster(gctx, polling.RosterInterval, polling.Jitter, func(roster []types.Participant) {
			_ = printRoster(out, roster)
		})
	})
	g.Go(func() error {
		return p.WatchModules(gctx, polling.ModuleInterval, polling.Jitter, func(modules []types.ModuleState) {
			_ = printModules(out, modules)
		})
	})
	if timerID > 0 {
		g.Go(func() error {
			return p.WatchTimer(gctx, timerID, polling.TimerInterval, polling.Jitter, func(st *types.TimerState) {
				_ = printTimer(out, st)
			})
		})
	}

	return rejoinHint(ignoreCancel(g.Wait()), passcode)
}

func newAskCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ask PASSCODE MESSAGE...",
		Short: "Post a question to a joined session",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				p, err := a.Join().Attach(ctx, args[0])
				if err != nil {
					return err
				}
				msg, err := p.PostMessage(ctx, strings.Join(args[1:], " "))
				if err != nil {
					return rejoinHint(err, args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "question %d posted\n", msg.ID)
				return nil
			})
		},
	}
}

// rejoinHint tells the user how to recover from a missing or revoked token
func rejoinHint(err error, passcode string) error {
	if err != nil && join.IsRejoinRequired(err) {
		return fmt.Errorf("%w (run: classroom join %s)", err, passcode)
	}
	return err
}
