package api

import (
	"context"
	"fmt"
	"net/http"

	"classroom/pkg/types"
)

// LoginRequest is the credential exchange body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges lecturer credentials for a token pair
func (c *Client) Login(ctx context.Context, req LoginRequest) (*types.TokenPair, error) {
	pair, err := callOne[types.TokenPair](ctx, c, http.MethodPost, "/auth/login", "", req, nil)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if pair == nil || pair.AccessToken == "" {
		return nil, &Error{Message: GenericMessage, Err: fmt.Errorf("login response carried no token")}
	}
	return pair, nil
}
