// Package auth holds the lecturer's authentication state.
// Readers get immutable snapshots; Login, Refresh and Logout are the only writers.
package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"classroom/internal/api"
	"classroom/pkg/types"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrMissingPassword  = errors.New("email and password are required")
)

// State is an immutable snapshot of the current user's credentials
type State struct {
	AccessToken  string
	RefreshToken string
	UserID       string
	IssuedAt     time.Time
}

// Authenticated reports whether a user token is present
func (s State) Authenticated() bool {
	return s.AccessToken != ""
}

// LoginFunc exchanges credentials for a token pair
type LoginFunc func(ctx context.Context, req api.LoginRequest) (*types.TokenPair, error)

// Holder owns the single authoritative State.
// ARCHITECTURAL DISCOVERY: Writes are serialized by writeMu while reads go
// through an atomic pointer, so readers never block a login
type Holder struct {
	current atomic.Pointer[State]
	writeMu sync.Mutex
	login   LoginFunc
	logger  zerolog.Logger
	now     func() time.Time
}

// NewHolder creates a holder seeded with an optional pre-issued token
func NewHolder(initialToken string, login LoginFunc, logger zerolog.Logger) *Holder {
	h := &Holder{login: login, logger: logger, now: time.Now}
	st := &State{}
	if initialToken != "" {
		st = &State{AccessToken: initialToken, IssuedAt: h.now()}
	}
	h.current.Store(st)
	return h
}

// Current returns the current snapshot
func (h *Holder) Current() State {
	return *h.current.Load()
}

// AccessToken implements api.TokenSource
func (h *Holder) AccessToken() string {
	return h.current.Load().AccessToken
}

// Login authenticates and replaces the state on success.
// On failure the previous state is kept.
func (h *Holder) Login(ctx context.Context, email, password string) (State, error) {
	if email == "" || password == "" {
		return h.Current(), ErrMissingPassword
	}
	if h.login == nil {
		return h.Current(), ErrNotAuthenticated
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	pair, err := h.login(ctx, api.LoginRequest{Email: email, Password: password})
	if err != nil {
		h.logger.Warn().Err(err).Msg("login failed")
		return h.Current(), err
	}

	next := &State{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		UserID:       pair.UserID,
		IssuedAt:     h.now(),
	}
	h.current.Store(next)
	h.logger.Info().Str("user_id", next.UserID).Msg("logged in")
	return *next, nil
}

// SetToken replaces the access token, keeping the refresh token and user
func (h *Holder) SetToken(accessToken string) State {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	prev := h.current.Load()
	next := &State{
		AccessToken:  accessToken,
		RefreshToken: prev.RefreshToken,
		UserID:       prev.UserID,
		IssuedAt:     h.now(),
	}
	h.current.Store(next)
	return *next
}

// Logout drops the user credentials
func (h *Holder) Logout() {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	h.current.Store(&State{})
	h.logger.Info().Msg("logged out")
}
