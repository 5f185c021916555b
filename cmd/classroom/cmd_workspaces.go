package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"classroom/internal/app"
	"classroom/internal/store"
	"classroom/internal/view"
	"classroom/internal/workspace"
	"classroom/pkg/types"
)

func newWorkspacesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workspaces",
		Aliases: []string{"ws"},
		Short:   "List and organize workspaces",
	}

	var vs view.ViewState
	list := &cobra.Command{
		Use:   "list",
		Short: "List workspaces in a tab",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				m := a.Workspaces()
				if err := fetchWorkspaces(ctx, m); err != nil {
					return err
				}
				m.SetView(vs)
				return printWorkspaces(cmd.OutOrStdout(), m.Visible())
			})
		},
	}
	list.Flags().StringVar(&vs.Tab, "tab", types.StatusActive, "Tab to show: active, archive or trash")
	list.Flags().StringVarP(&vs.Query, "query", "q", "", "Filter by name or description")
	cmd.AddCommand(list)

	cmd.AddCommand(
		workspaceMoveCmd(opts, "archive", "Archive a workspace", types.StatusArchive),
		workspaceMoveCmd(opts, "unarchive", "Bring an archived workspace back", types.StatusActive),
		workspaceMoveCmd(opts, "trash", "Move a workspace to the trash", types.StatusTrash),
	)

	cmd.AddCommand(&cobra.Command{
		Use:   "restore ID",
		Short: "Restore a trashed workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return workspaceAction(cmd, opts, args[0], func(ctx context.Context, m *workspace.Manager, id int64) store.Outcome {
				return m.Restore(ctx, id)
			})
		},
	})
	return cmd
}

func workspaceMoveCmd(opts *rootOptions, use, short, target string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return workspaceAction(cmd, opts, args[0], func(ctx context.Context, m *workspace.Manager, id int64) store.Outcome {
				return m.Move(ctx, id, target)
			})
		},
	}
}

// workspaceAction loads the list, applies one change and reports the result
func workspaceAction(cmd *cobra.Command, opts *rootOptions, rawID string, action func(context.Context, *workspace.Manager, int64) store.Outcome) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	return opts.withApp(cmd, func(ctx context.Context, a *app.Application) error {
		m := a.Workspaces()
		if err := fetchWorkspaces(ctx, m); err != nil {
			return err
		}
		if err := outcomeError(action(ctx, m, id), m.Error()); err != nil {
			return err
		}
		w, _ := m.Get(id)
		fmt.Fprintf(cmd.OutOrStdout(), "workspace %d %q is now %s\n", w.ID, w.Name, workspaceLifecycle(w))
		return nil
	})
}

func fetchWorkspaces(ctx context.Context, m *workspace.Manager) error {
	return outcomeError(m.Fetch(ctx), m.Error())
}

func workspaceLifecycle(w types.Workspace) string {
	if w.IsDeleted {
		return types.StatusTrash
	}
	return w.Status
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}
