package credentials

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbconfig "classroom/pkg/database"
	"classroom/pkg/interfaces"
	"classroom/pkg/types"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := dbconfig.DefaultConfig()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "credentials.db")

	s, err := Open(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// Functional Validation Tests - Save and load

func TestSaveAndGetCredential(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	cred := &types.Credential{Passcode: "ab12", Mode: types.EntryModeEmailCode, Token: "guest-1"}
	require.NoError(t, s.SaveCredential(ctx, cred))
	assert.Equal(t, types.CredentialGuest, cred.Kind)

	got, err := s.GetCredential(ctx, "AB12", types.CredentialGuest)
	require.NoError(t, err)
	assert.Equal(t, "guest-1", got.Token)
	assert.Equal(t, types.EntryModeEmailCode, got.Mode)
	assert.Equal(t, "AB12", got.Passcode)

	_, err = s.GetCredential(ctx, "AB12", types.CredentialParticipant)
	assert.ErrorIs(t, err, interfaces.ErrCredentialNotFound)
}

func TestSaveCredential_Upserts(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveCredential(ctx, &types.Credential{Passcode: "AB12", Mode: types.EntryModeAnonymous, Token: "p-1"}))
	require.NoError(t, s.SaveCredential(ctx, &types.Credential{Passcode: "AB12", Mode: types.EntryModeAnonymous, Token: "p-2", ParticipantID: "42"}))

	got, err := s.GetCredential(ctx, "AB12", types.CredentialParticipant)
	require.NoError(t, err)
	assert.Equal(t, "p-2", got.Token)
	assert.Equal(t, "42", got.ParticipantID)
}

func TestSaveCredential_RejectsUserTokens(t *testing.T) {
	s := setupTestStore(t)
	err := s.SaveCredential(context.Background(), &types.Credential{Passcode: "AB12", Mode: types.EntryModeSSO, Token: "u"})
	assert.True(t, errors.Is(err, ErrUserCredential))
}

func TestGetCredential_ExpiredIsNotFound(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	require.NoError(t, s.SaveCredential(ctx, &types.Credential{Passcode: "AB12", Mode: types.EntryModeEmailCode, Token: "g", ExpiresAt: &past}))

	_, err := s.GetCredential(ctx, "AB12", types.CredentialGuest)
	assert.ErrorIs(t, err, interfaces.ErrCredentialNotFound)
}

func TestClearGuestCredentials(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveCredential(ctx, &types.Credential{Passcode: "AB12", Mode: types.EntryModeEmailCode, Token: "g"}))
	require.NoError(t, s.SaveCredential(ctx, &types.Credential{Passcode: "CD34", Mode: types.EntryModeAnonymous, Token: "p"}))

	require.NoError(t, s.ClearGuestCredentials(ctx))

	_, err := s.GetCredential(ctx, "AB12", types.CredentialGuest)
	assert.ErrorIs(t, err, interfaces.ErrCredentialNotFound)
	_, err = s.GetCredential(ctx, "CD34", types.CredentialParticipant)
	assert.ErrorIs(t, err, interfaces.ErrCredentialNotFound)
}

// Functional Validation Tests - Fingerprint

func TestFingerprint_StableAcrossCallsAndReopen(t *testing.T) {
	cfg := dbconfig.DefaultConfig()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "credentials.db")
	ctx := context.Background()

	s, err := Open(cfg, zerolog.Nop())
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			fp, err := s.Fingerprint(ctx)
			assert.NoError(t, err)
			results[i] = fp
		}(i)
	}
	wg.Wait()
	for _, fp := range results {
		assert.Equal(t, results[0], fp)
	}
	require.NoError(t, s.Close())

	reopened, err := Open(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer reopened.Close()

	fp, err := reopened.Fingerprint(ctx)
	require.NoError(t, err)
	assert.Equal(t, results[0], fp)
}

// Technical Validation Tests - Lifecycle

func TestHealthCheck(t *testing.T) {
	s := setupTestStore(t)
	assert.NoError(t, s.HealthCheck(context.Background()))
}

func TestClose_RejectsFurtherWrites(t *testing.T) {
	s := setupTestStore(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	err := s.SaveCredential(context.Background(), &types.Credential{Passcode: "AB12", Mode: types.EntryModeAnonymous, Token: "p"})
	assert.ErrorIs(t, err, interfaces.ErrStoreClosed)
}
