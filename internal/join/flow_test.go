package join

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classroom/internal/api"
	"classroom/pkg/interfaces"
	"classroom/pkg/types"
)

// Mock JoinAPI recording the bearer of every call
type mockJoinAPI struct {
	mu       sync.Mutex
	sessions map[string]types.PublicSession
	lookups  int
	bearers  map[string][]string
	joins    []types.JoinRequest
	failJoin error
	timer    types.TimerState
	modules  []types.ModuleState
}

var _ interfaces.JoinAPI = (*mockJoinAPI)(nil)

func newMockJoinAPI() *mockJoinAPI {
	return &mockJoinAPI{
		sessions: map[string]types.PublicSession{
			"ANON1": {ID: 11, Name: "Open lecture", Passcode: "ANON1", EntryMode: types.EntryModeAnonymous},
			"MAIL1": {ID: 12, Name: "Guest seminar", Passcode: "MAIL1", EntryMode: types.EntryModeEmailCode},
			"REG01": {ID: 13, Name: "Enrolled", Passcode: "REG01", EntryMode: types.EntryModeRegistered},
			"SSO01": {ID: 14, Name: "Campus", Passcode: "SSO01", EntryMode: types.EntryModeSSO},
		},
		bearers: make(map[string][]string),
	}
}

func (m *mockJoinAPI) note(op, bearer string) {
	m.mu.Lock()
	m.bearers[op] = append(m.bearers[op], bearer)
	m.mu.Unlock()
}

func (m *mockJoinAPI) LookupSession(ctx context.Context, passcode string) (*types.PublicSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	s, ok := m.sessions[passcode]
	if !ok {
		return nil, &api.Error{StatusCode: 404, Message: "Session not found"}
	}
	return &s, nil
}

func (m *mockJoinAPI) Join(ctx context.Context, passcode, mode string, req types.JoinRequest, bearer string) (*types.JoinResponse, error) {
	m.note("join", bearer)
	m.mu.Lock()
	m.joins = append(m.joins, req)
	m.mu.Unlock()
	if m.failJoin != nil {
		return nil, m.failJoin
	}
	switch mode {
	case types.EntryModeAnonymous:
		return &types.JoinResponse{Token: "participant-" + req.Fingerprint, ParticipantID: "p-1"}, nil
	case types.EntryModeEmailCode:
		if req.Code == "" {
			return &types.JoinResponse{CodeSent: true}, nil
		}
		return &types.JoinResponse{Token: "guest-token", ParticipantID: "g-1"}, nil
	default:
		return &types.JoinResponse{ParticipantID: "u-1"}, nil
	}
}

func (m *mockJoinAPI) Heartbeat(ctx context.Context, passcode, bearer string) error {
	m.note("heartbeat", bearer)
	return nil
}

func (m *mockJoinAPI) Participants(ctx context.Context, passcode, bearer string) ([]types.Participant, error) {
	m.note("participants", bearer)
	return []types.Participant{{ID: "p-1", DisplayName: "Ada"}}, nil
}

func (m *mockJoinAPI) ActiveModules(ctx context.Context, passcode, bearer string) ([]types.ModuleState, error) {
	m.note("modules", bearer)
	return m.modules, nil
}

func (m *mockJoinAPI) TimerState(ctx context.Context, sessionID, moduleID int64, bearer string) (*types.TimerState, error) {
	m.note("timer", bearer)
	st := m.timer
	st.ModuleID = moduleID
	return &st, nil
}

func (m *mockJoinAPI) PostMessage(ctx context.Context, passcode, bearer string, msg types.Message) (*types.Message, error) {
	m.note("message", bearer)
	msg.ID = 1
	return &msg, nil
}

// In-memory credential store
type memoryCredentials struct {
	mu      sync.Mutex
	creds   map[string]types.Credential
	cleared int
}

func newMemoryCredentials() *memoryCredentials {
	return &memoryCredentials{creds: make(map[string]types.Credential)}
}

func (s *memoryCredentials) SaveCredential(ctx context.Context, cred *types.Credential) error {
	kind, err := types.CredentialKindFor(cred.Mode)
	if err != nil {
		return err
	}
	cred.Kind = kind
	s.mu.Lock()
	s.creds[types.NormalizePasscode(cred.Passcode)+"/"+kind] = *cred
	s.mu.Unlock()
	return nil
}

func (s *memoryCredentials) GetCredential(ctx context.Context, passcode, kind string) (*types.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.creds[types.NormalizePasscode(passcode)+"/"+kind]
	if !ok {
		return nil, interfaces.ErrCredentialNotFound
	}
	return &c, nil
}

func (s *memoryCredentials) ClearGuestCredentials(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = make(map[string]types.Credential)
	s.cleared++
	return nil
}

func (s *memoryCredentials) Fingerprint(ctx context.Context) (string, error) { return "fp-1", nil }
func (s *memoryCredentials) HealthCheck(ctx context.Context) error           { return nil }
func (s *memoryCredentials) Close() error                                    { return nil }

type staticToken string

func (s staticToken) AccessToken() string { return string(s) }

func newFlow(mock *mockJoinAPI, creds *memoryCredentials, user string) *Flow {
	return NewFlow(mock, creds, staticToken(user), Options{CacheSize: 8, CacheTTL: time.Minute, Logger: zerolog.Nop()})
}

// Functional Validation Tests - Entry mode resolution

func TestResolveEntryMode(t *testing.T) {
	mock := newMockJoinAPI()
	f := newFlow(mock, newMemoryCredentials(), "")

	tests := map[string]string{
		"anon1":   types.EntryModeAnonymous,
		" MAIL1 ": types.EntryModeEmailCode,
		"REG01":   types.EntryModeRegistered,
		"sso01":   types.EntryModeSSO,
	}
	for passcode, want := range tests {
		mode, err := f.ResolveEntryMode(context.Background(), passcode)
		require.NoError(t, err, passcode)
		assert.Equal(t, want, mode, passcode)
	}
}

func TestResolveEntryMode_CachesLookups(t *testing.T) {
	mock := newMockJoinAPI()
	f := newFlow(mock, newMemoryCredentials(), "")

	for i := 0; i < 3; i++ {
		_, err := f.ResolveEntryMode(context.Background(), "ANON1")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, mock.lookups)

	f.Forget("anon1")
	_, err := f.ResolveEntryMode(context.Background(), "ANON1")
	require.NoError(t, err)
	assert.Equal(t, 2, mock.lookups)
}

func TestResolveEntryMode_Errors(t *testing.T) {
	mock := newMockJoinAPI()
	mock.sessions["WEIRD"] = types.PublicSession{Passcode: "WEIRD", EntryMode: "carrier_pigeon"}
	f := newFlow(mock, newMemoryCredentials(), "")

	_, err := f.ResolveEntryMode(context.Background(), "no!")
	assert.ErrorIs(t, err, types.ErrInvalidPasscode)
	assert.Equal(t, 0, mock.lookups)

	_, err = f.ResolveEntryMode(context.Background(), "NOPE1")
	assert.Equal(t, "Session not found", api.ErrorMessage(err))

	_, err = f.ResolveEntryMode(context.Background(), "WEIRD")
	assert.ErrorIs(t, err, types.ErrInvalidEntryMode)
}

// Functional Validation Tests - Credential acquisition

func TestJoin_AnonymousIssuesParticipantToken(t *testing.T) {
	mock := newMockJoinAPI()
	creds := newMemoryCredentials()
	f := newFlow(mock, creds, "user-token")

	p, err := f.Join(context.Background(), "anon1", "Ada")
	require.NoError(t, err)
	assert.Equal(t, types.EntryModeAnonymous, p.Mode)
	assert.Equal(t, int64(11), p.SessionID)

	require.Len(t, mock.joins, 1)
	assert.Equal(t, "fp-1", mock.joins[0].Fingerprint)
	assert.Equal(t, []string{""}, mock.bearers["join"], "anonymous join must not carry the user token")

	cred, err := creds.GetCredential(context.Background(), "ANON1", types.CredentialParticipant)
	require.NoError(t, err)
	assert.Equal(t, "participant-fp-1", cred.Token)

	require.NoError(t, p.SendHeartbeat(context.Background()))
	assert.Equal(t, []string{"participant-fp-1"}, mock.bearers["heartbeat"])
}

func TestJoin_RegisteredReusesUserToken(t *testing.T) {
	mock := newMockJoinAPI()
	creds := newMemoryCredentials()
	f := newFlow(mock, creds, "user-token")

	p, err := f.Join(context.Background(), "SSO01", "")
	require.NoError(t, err)
	require.NoError(t, p.SendHeartbeat(context.Background()))

	assert.Equal(t, []string{"user-token"}, mock.bearers["join"])
	assert.Equal(t, []string{"user-token"}, mock.bearers["heartbeat"])
	assert.Empty(t, creds.creds, "user tokens are never persisted")
}

func TestJoin_RegisteredWithoutUserToken(t *testing.T) {
	mock := newMockJoinAPI()
	f := newFlow(mock, newMemoryCredentials(), "")

	_, err := f.Join(context.Background(), "REG01", "")
	assert.ErrorIs(t, err, types.ErrUserTokenRequired)
	assert.Empty(t, mock.bearers["join"])
}

func TestJoin_EmailCodeNeedsVerification(t *testing.T) {
	f := newFlow(newMockJoinAPI(), newMemoryCredentials(), "")

	_, err := f.Join(context.Background(), "MAIL1", "")
	assert.ErrorIs(t, err, ErrEmailVerificationRequired)
}

func TestEmailCode_TwoStepFlow(t *testing.T) {
	mock := newMockJoinAPI()
	creds := newMemoryCredentials()
	f := newFlow(mock, creds, "user-token")
	ctx := context.Background()

	require.NoError(t, f.RequestEmailCode(ctx, "MAIL1", "guest@example.edu"))
	_, err := creds.GetCredential(ctx, "MAIL1", types.CredentialGuest)
	assert.ErrorIs(t, err, interfaces.ErrCredentialNotFound, "requesting a code issues no token")

	p, err := f.VerifyEmailCode(ctx, "MAIL1", "guest@example.edu", "123456")
	require.NoError(t, err)

	require.NoError(t, p.SendHeartbeat(ctx))
	_, err = p.PostMessage(ctx, "What is on the exam?")
	require.NoError(t, err)

	assert.Equal(t, []string{"guest-token"}, mock.bearers["heartbeat"])
	assert.Equal(t, []string{"guest-token"}, mock.bearers["message"])
	assert.Equal(t, []string{"", ""}, mock.bearers["join"])
}

func TestEmailCode_Validation(t *testing.T) {
	mock := newMockJoinAPI()
	f := newFlow(mock, newMemoryCredentials(), "")
	ctx := context.Background()

	assert.ErrorIs(t, f.RequestEmailCode(ctx, "MAIL1", "not-an-email"), types.ErrInvalidEmail)
	_, err := f.VerifyEmailCode(ctx, "MAIL1", "guest@example.edu", "12ab")
	assert.ErrorIs(t, err, types.ErrInvalidCode)
	assert.ErrorIs(t, f.RequestEmailCode(ctx, "ANON1", "guest@example.edu"), ErrWrongEntryMode)
	assert.Empty(t, mock.joins)
}

// Functional Validation Tests - Token selection by mode

func TestHeartbeat_EmailCodeNeverSubstitutesParticipantToken(t *testing.T) {
	mock := newMockJoinAPI()
	creds := newMemoryCredentials()
	f := newFlow(mock, creds, "user-token")
	ctx := context.Background()

	// only a participant token exists for this passcode
	require.NoError(t, creds.SaveCredential(ctx, &types.Credential{Passcode: "MAIL1", Mode: types.EntryModeAnonymous, Token: "participant-x"}))

	mode, err := f.ResolveEntryMode(ctx, "MAIL1")
	require.NoError(t, err)
	require.Equal(t, types.EntryModeEmailCode, mode)

	p, err := f.Attach(ctx, "MAIL1")
	require.NoError(t, err)

	err = p.SendHeartbeat(ctx)
	require.Error(t, err)
	assert.Equal(t, "Guest token is required", err.Error())
	assert.Empty(t, mock.bearers["heartbeat"], "no request may be sent with a substituted token")
}

func TestTokenFor(t *testing.T) {
	creds := newMemoryCredentials()
	f := newFlow(newMockJoinAPI(), creds, "")
	ctx := context.Background()

	_, err := f.TokenFor(ctx, "ANON1", types.EntryModeAnonymous)
	assert.ErrorIs(t, err, types.ErrParticipantTokenRequired)
	_, err = f.TokenFor(ctx, "REG01", types.EntryModeRegistered)
	assert.ErrorIs(t, err, types.ErrUserTokenRequired)
	_, err = f.TokenFor(ctx, "REG01", "unknown")
	assert.ErrorIs(t, err, types.ErrInvalidEntryMode)

	require.NoError(t, creds.SaveCredential(ctx, &types.Credential{Passcode: "MAIL1", Mode: types.EntryModeEmailCode, Token: "g"}))
	token, err := f.TokenFor(ctx, "mail1", types.EntryModeEmailCode)
	require.NoError(t, err)
	assert.Equal(t, "g", token)
}

func TestHandleUnauthorized_ForcesRejoin(t *testing.T) {
	mock := newMockJoinAPI()
	creds := newMemoryCredentials()
	f := newFlow(mock, creds, "user-token")
	ctx := context.Background()

	p, err := f.Join(ctx, "ANON1", "Ada")
	require.NoError(t, err)

	f.HandleUnauthorized(ctx)
	assert.Equal(t, 1, creds.cleared)

	err = p.SendHeartbeat(ctx)
	assert.ErrorIs(t, err, types.ErrParticipantTokenRequired)
	assert.True(t, IsRejoinRequired(err))

	token, err := f.TokenFor(ctx, "REG01", types.EntryModeRegistered)
	require.NoError(t, err)
	assert.Equal(t, "user-token", token, "user token survives a 401")
}

// Functional Validation Tests - Polling

func TestParticipation_ActiveTimerAndWatch(t *testing.T) {
	mock := newMockJoinAPI()
	mock.modules = []types.ModuleState{
		{ID: 3, Kind: types.ModulePoll, IsActive: true},
		{ID: 4, Kind: types.ModuleTimer, IsActive: true},
	}
	mock.timer = types.TimerState{DurationSeconds: 60, RemainingSeconds: 42, IsRunning: true}
	f := newFlow(mock, newMemoryCredentials(), "user-token")

	p, err := f.Join(context.Background(), "REG01", "")
	require.NoError(t, err)

	id, err := p.ActiveTimer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), id)

	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan *types.TimerState, 4)
	done := make(chan error, 1)
	go func() {
		done <- p.WatchTimer(ctx, id, 5*time.Millisecond, 0, func(st *types.TimerState) {
			select {
			case updates <- st:
			default:
			}
		})
	}()

	select {
	case st := <-updates:
		assert.Equal(t, 42, st.RemainingSeconds)
		assert.Equal(t, int64(4), st.ModuleID)
	case <-time.After(time.Second):
		t.Fatal("no timer update received")
	}
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestParticipation_NoTimer(t *testing.T) {
	mock := newMockJoinAPI()
	mock.modules = []types.ModuleState{{ID: 4, Kind: types.ModuleTimer, IsActive: false}}
	f := newFlow(mock, newMemoryCredentials(), "user-token")

	p, err := f.Attach(context.Background(), "REG01")
	require.NoError(t, err)
	_, err = p.ActiveTimer(context.Background())
	assert.ErrorIs(t, err, ErrNoTimerModule)
}

func TestKeepAlive_StopsWhenRejoinRequired(t *testing.T) {
	f := newFlow(newMockJoinAPI(), newMemoryCredentials(), "")
	p, err := f.Attach(context.Background(), "ANON1")
	require.NoError(t, err)

	err = p.KeepAlive(context.Background(), time.Millisecond)
	assert.True(t, errors.Is(err, types.ErrParticipantTokenRequired))
}

func TestPostMessage_Validation(t *testing.T) {
	mock := newMockJoinAPI()
	f := newFlow(mock, newMemoryCredentials(), "user-token")
	p, err := f.Attach(context.Background(), "REG01")
	require.NoError(t, err)

	_, err = p.PostMessage(context.Background(), "   ")
	assert.ErrorIs(t, err, types.ErrEmptyMessage)
	assert.Empty(t, mock.bearers["message"])
}
