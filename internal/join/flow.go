// Package join resolves how a participant enters a session and keeps every
// session-scoped call on the bearer token that entry mode requires.
package join

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	"classroom/internal/api"
	"classroom/pkg/interfaces"
	"classroom/pkg/types"
)

// UserTokens yields the authenticated lecturer or student token
type UserTokens interface {
	AccessToken() string
}

// Options configures a Flow
type Options struct {
	CacheSize int
	CacheTTL  time.Duration
	Logger    zerolog.Logger
}

// Flow is the participant entry point
// ARCHITECTURAL DISCOVERY: The token is always chosen from the entry mode,
// never from whichever token happens to exist
type Flow struct {
	api     interfaces.JoinAPI
	creds   interfaces.CredentialStore
	users   UserTokens
	lookups *expirable.LRU[string, types.PublicSession]
	logger  zerolog.Logger
}

// NewFlow creates a join flow
func NewFlow(joinAPI interfaces.JoinAPI, creds interfaces.CredentialStore, users UserTokens, opts Options) *Flow {
	size := opts.CacheSize
	if size <= 0 {
		size = 128
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Flow{
		api:     joinAPI,
		creds:   creds,
		users:   users,
		lookups: expirable.NewLRU[string, types.PublicSession](size, nil, ttl),
		logger:  opts.Logger,
	}
}

// Lookup resolves a passcode to its public session, using a short-lived cache
func (f *Flow) Lookup(ctx context.Context, passcode string) (*types.PublicSession, error) {
	code := types.NormalizePasscode(passcode)
	if !types.IsValidPasscode(code) {
		return nil, types.ErrInvalidPasscode
	}
	if cached, ok := f.lookups.Get(code); ok {
		return &cached, nil
	}

	session, err := f.api.LookupSession(ctx, code)
	if err != nil {
		return nil, err
	}
	if !types.IsValidEntryMode(session.EntryMode) {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidEntryMode, session.EntryMode)
	}
	f.lookups.Add(code, *session)
	return session, nil
}

// ResolveEntryMode returns the participant entry mode the session requires
func (f *Flow) ResolveEntryMode(ctx context.Context, passcode string) (string, error) {
	session, err := f.Lookup(ctx, passcode)
	if err != nil {
		return "", err
	}
	return session.EntryMode, nil
}

// Forget drops a cached lookup so the next call asks the server again
func (f *Flow) Forget(passcode string) {
	f.lookups.Remove(types.NormalizePasscode(passcode))
}

// Join acquires the credential for an anonymous, registered or sso session
// and returns a Participation bound to it. email_code sessions go through
// RequestEmailCode and VerifyEmailCode instead.
func (f *Flow) Join(ctx context.Context, passcode, displayName string) (*Participation, error) {
	session, err := f.Lookup(ctx, passcode)
	if err != nil {
		return nil, err
	}
	code := session.Passcode
	if code == "" {
		code = types.NormalizePasscode(passcode)
	}

	switch session.EntryMode {
	case types.EntryModeAnonymous:
		fingerprint, err := f.creds.Fingerprint(ctx)
		if err != nil {
			return nil, fmt.Errorf("fingerprint: %w", err)
		}
		resp, err := f.api.Join(ctx, code, types.EntryModeAnonymous, types.JoinRequest{
			Fingerprint: fingerprint,
			DisplayName: displayName,
		}, "")
		if err != nil {
			return nil, err
		}
		if err := f.save(ctx, code, types.EntryModeAnonymous, resp); err != nil {
			return nil, err
		}

	case types.EntryModeRegistered, types.EntryModeSSO:
		token := f.userToken()
		if token == "" {
			return nil, types.ErrUserTokenRequired
		}
		if _, err := f.api.Join(ctx, code, session.EntryMode, types.JoinRequest{DisplayName: displayName}, token); err != nil {
			return nil, err
		}

	case types.EntryModeEmailCode:
		return nil, ErrEmailVerificationRequired

	default:
		return nil, types.ErrInvalidEntryMode
	}

	f.logger.Info().Str("passcode", code).Str("mode", session.EntryMode).Msg("joined session")
	return f.participation(session, code), nil
}

// RequestEmailCode asks the server to mail a verification code
func (f *Flow) RequestEmailCode(ctx context.Context, passcode, email string) error {
	if err := types.ValidateEmail(email); err != nil {
		return err
	}
	session, err := f.emailSession(ctx, passcode)
	if err != nil {
		return err
	}

	resp, err := f.api.Join(ctx, session.Passcode, types.EntryModeEmailCode, types.JoinRequest{Email: email}, "")
	if err != nil {
		return err
	}
	if resp.Token != "" {
		// some deployments skip verification for known addresses
		return f.save(ctx, session.Passcode, types.EntryModeEmailCode, resp)
	}
	f.logger.Info().Str("passcode", session.Passcode).Msg("verification code requested")
	return nil
}

// VerifyEmailCode exchanges the mailed code for a guest token
func (f *Flow) VerifyEmailCode(ctx context.Context, passcode, email, code string) (*Participation, error) {
	if err := types.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := types.ValidateVerificationCode(code); err != nil {
		return nil, err
	}
	session, err := f.emailSession(ctx, passcode)
	if err != nil {
		return nil, err
	}

	resp, err := f.api.Join(ctx, session.Passcode, types.EntryModeEmailCode, types.JoinRequest{Email: email, Code: code}, "")
	if err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, ErrNoTokenIssued
	}
	if err := f.save(ctx, session.Passcode, types.EntryModeEmailCode, resp); err != nil {
		return nil, err
	}
	return f.participation(session, session.Passcode), nil
}

// Attach returns a Participation for a session joined earlier, without
// calling the join endpoint again. Calls fail until a matching token exists.
func (f *Flow) Attach(ctx context.Context, passcode string) (*Participation, error) {
	session, err := f.Lookup(ctx, passcode)
	if err != nil {
		return nil, err
	}
	code := session.Passcode
	if code == "" {
		code = types.NormalizePasscode(passcode)
	}
	return f.participation(session, code), nil
}

// TokenFor returns the bearer token for a session-scoped call in mode.
// A missing token is an error; another family's token is never substituted.
func (f *Flow) TokenFor(ctx context.Context, passcode, mode string) (string, error) {
	kind, err := types.CredentialKindFor(mode)
	if err != nil {
		return "", err
	}

	switch kind {
	case types.CredentialUser:
		if token := f.userToken(); token != "" {
			return token, nil
		}
		return "", types.ErrUserTokenRequired
	case types.CredentialGuest:
		return f.storedToken(ctx, passcode, kind, types.ErrGuestTokenRequired)
	default:
		return f.storedToken(ctx, passcode, kind, types.ErrParticipantTokenRequired)
	}
}

func (f *Flow) storedToken(ctx context.Context, passcode, kind string, missing error) (string, error) {
	cred, err := f.creds.GetCredential(ctx, passcode, kind)
	if errors.Is(err, interfaces.ErrCredentialNotFound) {
		return "", missing
	}
	if err != nil {
		return "", fmt.Errorf("read %s credential: %w", kind, err)
	}
	return cred.Token, nil
}

// HandleUnauthorized forgets every guest and participant credential so the
// next session-scoped call forces a re-join. The user token is left alone.
func (f *Flow) HandleUnauthorized(ctx context.Context) {
	if err := f.creds.ClearGuestCredentials(ctx); err != nil {
		f.logger.Error().Err(err).Msg("failed to clear guest credentials after 401")
	}
}

func (f *Flow) emailSession(ctx context.Context, passcode string) (*types.PublicSession, error) {
	session, err := f.Lookup(ctx, passcode)
	if err != nil {
		return nil, err
	}
	if session.EntryMode != types.EntryModeEmailCode {
		return nil, fmt.Errorf("%w: session uses %s", ErrWrongEntryMode, session.EntryMode)
	}
	if session.Passcode == "" {
		session.Passcode = types.NormalizePasscode(passcode)
	}
	return session, nil
}

func (f *Flow) save(ctx context.Context, passcode, mode string, resp *types.JoinResponse) error {
	if resp == nil || resp.Token == "" {
		return ErrNoTokenIssued
	}
	cred := &types.Credential{
		Passcode:      passcode,
		Mode:          mode,
		Token:         resp.Token,
		ParticipantID: resp.ParticipantID,
		ExpiresAt:     resp.ExpiresAt,
	}
	if err := f.creds.SaveCredential(ctx, cred); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

func (f *Flow) userToken() string {
	if f.users == nil {
		return ""
	}
	return f.users.AccessToken()
}

func (f *Flow) participation(session *types.PublicSession, passcode string) *Participation {
	return &Participation{
		flow:      f,
		Passcode:  passcode,
		Mode:      session.EntryMode,
		SessionID: session.ID,
		Name:      session.Name,
	}
}

// IsRejoinRequired reports whether err means the participant must join again
func IsRejoinRequired(err error) bool {
	return errors.Is(err, types.ErrGuestTokenRequired) ||
		errors.Is(err, types.ErrParticipantTokenRequired) ||
		api.IsUnauthorized(err)
}
