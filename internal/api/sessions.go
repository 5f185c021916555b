package api

import (
	"context"
	"fmt"
	"net/http"

	"classroom/pkg/types"
)

// ListSessions fetches every session of a workspace
func (c *Client) ListSessions(ctx context.Context, workspaceID int64, fields ...string) ([]types.Session, error) {
	sessions, err := callList[types.Session](ctx, c, http.MethodGet, fmt.Sprintf("/workspaces/%d/sessions", workspaceID), c.userToken(), fieldsQuery(fields))
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// CreateSession creates a session inside a workspace
func (c *Client) CreateSession(ctx context.Context, workspaceID int64, req types.CreateSessionRequest) (*types.Session, error) {
	created, err := callOne[types.Session](ctx, c, http.MethodPost, fmt.Sprintf("/workspaces/%d/sessions", workspaceID), c.userToken(), req, nil)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return created, nil
}

func (c *Client) ArchiveSession(ctx context.Context, sessionID int64) (*types.Session, error) {
	return c.sessionAction(ctx, http.MethodPost, sessionID, "/archive")
}

func (c *Client) UnarchiveSession(ctx context.Context, sessionID int64) (*types.Session, error) {
	return c.sessionAction(ctx, http.MethodPost, sessionID, "/unarchive")
}

func (c *Client) StartSession(ctx context.Context, sessionID int64) (*types.Session, error) {
	return c.sessionAction(ctx, http.MethodPost, sessionID, "/start")
}

func (c *Client) StopSession(ctx context.Context, sessionID int64) (*types.Session, error) {
	return c.sessionAction(ctx, http.MethodPost, sessionID, "/stop")
}

func (c *Client) RestoreSession(ctx context.Context, sessionID int64) (*types.Session, error) {
	return c.sessionAction(ctx, http.MethodPost, sessionID, "/restore")
}

// TrashSession soft-deletes a session
func (c *Client) TrashSession(ctx context.Context, sessionID int64) (*types.Session, error) {
	return c.sessionAction(ctx, http.MethodDelete, sessionID, "")
}

// DeleteSessionPermanently removes a session for good
func (c *Client) DeleteSessionPermanently(ctx context.Context, sessionID int64) error {
	_, err := c.call(ctx, http.MethodDelete, fmt.Sprintf("/sessions/%d/permanent", sessionID), c.userToken(), nil, nil, nil)
	if err != nil {
		return fmt.Errorf("delete session %d permanently: %w", sessionID, err)
	}
	return nil
}

func (c *Client) sessionAction(ctx context.Context, method string, sessionID int64, suffix string) (*types.Session, error) {
	path := fmt.Sprintf("/sessions/%d%s", sessionID, suffix)
	session, err := callOne[types.Session](ctx, c, method, path, c.userToken(), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return session, nil
}
