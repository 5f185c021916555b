package api

import (
	"context"
	"fmt"
	"net/http"

	"classroom/pkg/types"
)

// ListWorkspaces fetches every workspace owned by the current user
func (c *Client) ListWorkspaces(ctx context.Context, fields ...string) ([]types.Workspace, error) {
	workspaces, err := callList[types.Workspace](ctx, c, http.MethodGet, "/workspaces", c.userToken(), fieldsQuery(fields))
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	return workspaces, nil
}

func (c *Client) ArchiveWorkspace(ctx context.Context, workspaceID int64) (*types.Workspace, error) {
	return c.workspaceAction(ctx, http.MethodPost, workspaceID, "/archive")
}

func (c *Client) UnarchiveWorkspace(ctx context.Context, workspaceID int64) (*types.Workspace, error) {
	return c.workspaceAction(ctx, http.MethodPost, workspaceID, "/unarchive")
}

func (c *Client) TrashWorkspace(ctx context.Context, workspaceID int64) (*types.Workspace, error) {
	return c.workspaceAction(ctx, http.MethodDelete, workspaceID, "")
}

func (c *Client) RestoreWorkspace(ctx context.Context, workspaceID int64) (*types.Workspace, error) {
	return c.workspaceAction(ctx, http.MethodPost, workspaceID, "/restore")
}

func (c *Client) workspaceAction(ctx context.Context, method string, workspaceID int64, suffix string) (*types.Workspace, error) {
	path := fmt.Sprintf("/workspaces/%d%s", workspaceID, suffix)
	workspace, err := callOne[types.Workspace](ctx, c, method, path, c.userToken(), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return workspace, nil
}
