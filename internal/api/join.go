package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"classroom/pkg/types"
)

func passcodePath(passcode, suffix string) string {
	return "/sessions/by-passcode/" + url.PathEscape(passcode) + suffix
}

// LookupSession resolves a passcode without authentication
func (c *Client) LookupSession(ctx context.Context, passcode string) (*types.PublicSession, error) {
	session, err := callOne[types.PublicSession](ctx, c, http.MethodGet, passcodePath(passcode, ""), "", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if session == nil {
		return nil, &Error{Message: GenericMessage, Err: fmt.Errorf("empty lookup response")}
	}
	return session, nil
}

// Join acquires a credential for the given entry mode.
// bearer is only set for registered and sso joins.
func (c *Client) Join(ctx context.Context, passcode, mode string, req types.JoinRequest, bearer string) (*types.JoinResponse, error) {
	path := passcodePath(passcode, "/join/"+url.PathEscape(mode))
	resp, err := callOne[types.JoinResponse](ctx, c, http.MethodPost, path, bearer, req, nil)
	if err != nil {
		return nil, fmt.Errorf("join %s: %w", mode, err)
	}
	if resp == nil {
		resp = &types.JoinResponse{}
	}
	return resp, nil
}

func (c *Client) Heartbeat(ctx context.Context, passcode, bearer string) error {
	if _, err := c.call(ctx, http.MethodPost, passcodePath(passcode, "/heartbeat"), bearer, nil, nil, nil); err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	return nil
}

func (c *Client) Participants(ctx context.Context, passcode, bearer string) ([]types.Participant, error) {
	participants, err := callList[types.Participant](ctx, c, http.MethodGet, passcodePath(passcode, "/participants"), bearer, nil)
	if err != nil {
		return nil, fmt.Errorf("participants: %w", err)
	}
	return participants, nil
}

func (c *Client) ActiveModules(ctx context.Context, passcode, bearer string) ([]types.ModuleState, error) {
	modules, err := callList[types.ModuleState](ctx, c, http.MethodGet, passcodePath(passcode, "/modules"), bearer, nil)
	if err != nil {
		return nil, fmt.Errorf("active modules: %w", err)
	}
	return modules, nil
}

func (c *Client) TimerState(ctx context.Context, sessionID, moduleID int64, bearer string) (*types.TimerState, error) {
	path := fmt.Sprintf("/sessions/%d/modules/timer/%d/state", sessionID, moduleID)
	state, err := callOne[types.TimerState](ctx, c, http.MethodGet, path, bearer, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("timer state: %w", err)
	}
	if state == nil {
		state = &types.TimerState{ModuleID: moduleID}
	}
	return state, nil
}

// PostMessage posts a Q&A message; the server echo is returned when sent
func (c *Client) PostMessage(ctx context.Context, passcode, bearer string, msg types.Message) (*types.Message, error) {
	echo, err := callOne[types.Message](ctx, c, http.MethodPost, passcodePath(passcode, "/messages"), bearer, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("post message: %w", err)
	}
	return echo, nil
}
