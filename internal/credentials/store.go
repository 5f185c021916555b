// Package credentials persists guest and participant tokens and the
// anonymous join fingerprint in a local sqlite database.
package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	dbconfig "classroom/pkg/database"
	"classroom/pkg/interfaces"
	"classroom/pkg/types"
)

const fingerprintKey = "fingerprint"

var (
	ErrUserCredential = errors.New("user tokens are not stored in the credential store")
	ErrWriteTimeout   = errors.New("credential write timed out")
)

// Store implements interfaces.CredentialStore
type Store struct {
	db           *sql.DB
	config       *dbconfig.Config
	logger       zerolog.Logger
	writeChannel chan writeOperation // TECHNICAL: Single-writer pattern for SQLite
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex
	fpOnce       sync.Mutex
}

var _ interfaces.CredentialStore = (*Store)(nil)

type writeOperation struct {
	ctx       context.Context
	operation func(ctx context.Context, db *sql.DB) error
	result    chan error
}

// Open opens the database, applies migrations and starts the writer
func Open(config *dbconfig.Config, logger zerolog.Logger) (*Store, error) {
	db, err := dbconfig.Open(config)
	if err != nil {
		return nil, err
	}

	if err := dbconfig.NewMigrationManager(db).ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate credential store: %w", err)
	}

	s := &Store{
		db:           db,
		config:       config,
		logger:       logger,
		writeChannel: make(chan writeOperation, 16),
		shutdown:     make(chan struct{}),
	}

	// ARCHITECTURAL DISCOVERY: Single-writer goroutine prevents SQLite write contention
	s.wg.Add(1)
	go s.writeLoop()

	return s, nil
}

func (s *Store) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case op := <-s.writeChannel:
			err := op.operation(op.ctx, s.db)
			if err != nil {
				s.logger.Error().Err(err).Msg("credential write failed")
			}
			op.result <- err

		case <-s.shutdown:
			s.logger.Debug().Msg("credential write loop shutting down")
			return
		}
	}
}

// executeWrite queues a write and waits for the writer to run it
func (s *Store) executeWrite(ctx context.Context, operation func(ctx context.Context, db *sql.DB) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return interfaces.ErrStoreClosed
	}
	s.mu.RUnlock()

	result := make(chan error, 1)
	timer := time.NewTimer(s.config.WriteTimeout)
	defer timer.Stop()

	select {
	case s.writeChannel <- writeOperation{ctx: ctx, operation: operation, result: result}:
	case <-timer.C:
		return ErrWriteTimeout
	case <-ctx.Done():
		return ctx.Err()
	case <-s.shutdown:
		return interfaces.ErrStoreClosed
	}

	select {
	case err := <-result:
		return err
	case <-s.shutdown:
		return interfaces.ErrStoreClosed
	}
}

// SaveCredential upserts a guest or participant credential.
// The kind is derived from the mode; user credentials are rejected.
func (s *Store) SaveCredential(ctx context.Context, cred *types.Credential) error {
	if cred == nil || cred.Token == "" {
		return fmt.Errorf("credential token cannot be empty")
	}
	kind, err := types.CredentialKindFor(cred.Mode)
	if err != nil {
		return err
	}
	if kind == types.CredentialUser {
		return ErrUserCredential
	}
	cred.Kind = kind
	passcode := types.NormalizePasscode(cred.Passcode)

	return s.executeWrite(ctx, func(ctx context.Context, db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO credentials (passcode, kind, mode, token, participant_id, expires_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (passcode, kind) DO UPDATE SET
				mode = excluded.mode,
				token = excluded.token,
				participant_id = excluded.participant_id,
				expires_at = excluded.expires_at,
				updated_at = excluded.updated_at
		`,
			passcode,
			kind,
			cred.Mode,
			cred.Token,
			nullString(cred.ParticipantID),
			cred.ExpiresAt,
			time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to save credential: %w", err)
		}
		return nil
	})
}

// GetCredential returns the stored credential for a passcode and kind.
// Expired credentials are reported as not found.
func (s *Store) GetCredential(ctx context.Context, passcode, kind string) (*types.Credential, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT passcode, kind, mode, token, participant_id, expires_at
		FROM credentials
		WHERE passcode = ? AND kind = ?
	`, types.NormalizePasscode(passcode), kind)

	var cred types.Credential
	var participantID sql.NullString
	var expiresAt sql.NullTime
	if err := row.Scan(&cred.Passcode, &cred.Kind, &cred.Mode, &cred.Token, &participantID, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, interfaces.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("failed to query credential: %w", err)
	}

	if participantID.Valid {
		cred.ParticipantID = participantID.String
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		if !t.After(time.Now()) {
			return nil, interfaces.ErrCredentialNotFound
		}
		cred.ExpiresAt = &t
	}
	return &cred, nil
}

// ClearGuestCredentials removes every guest and participant credential
func (s *Store) ClearGuestCredentials(ctx context.Context) error {
	return s.executeWrite(ctx, func(ctx context.Context, db *sql.DB) error {
		res, err := db.ExecContext(ctx, `DELETE FROM credentials WHERE kind IN (?, ?)`,
			types.CredentialGuest, types.CredentialParticipant)
		if err != nil {
			return fmt.Errorf("failed to clear credentials: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			s.logger.Info().Int64("count", n).Msg("cleared guest credentials")
		}
		return nil
	})
}

// Fingerprint returns the installation fingerprint, generating it on first use
func (s *Store) Fingerprint(ctx context.Context) (string, error) {
	s.fpOnce.Lock()
	defer s.fpOnce.Unlock()

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM client_settings WHERE key = ?`, fingerprintKey).Scan(&value)
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("failed to read fingerprint: %w", err)
	}

	value = uuid.NewString()
	err = s.executeWrite(ctx, func(ctx context.Context, db *sql.DB) error {
		_, err := db.ExecContext(ctx, `INSERT INTO client_settings (key, value) VALUES (?, ?)`, fingerprintKey, value)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to store fingerprint: %w", err)
	}
	return value, nil
}

// HealthCheck validates database connectivity and schema
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("credential store ping failed: %w", err)
	}
	if err := dbconfig.NewSchemaValidator(s.db).Validate(); err != nil {
		return fmt.Errorf("credential store schema invalid: %w", err)
	}
	return nil
}

// Close stops the writer and closes the database
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.shutdown)
	s.wg.Wait()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close credential store: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
