// Package session manages the sessions of one workspace as the lecturer sees
// them: fetch, project, and mutate optimistically with rollback.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"classroom/internal/api"
	"classroom/internal/poller"
	"classroom/internal/store"
	"classroom/internal/view"
	"classroom/pkg/interfaces"
	"classroom/pkg/types"
)

// Manager owns the session list of a single workspace.
// ARCHITECTURAL DISCOVERY: Errors stop at this boundary; callers read Error()
// instead of receiving them, and every mutation reports an Outcome
type Manager struct {
	api         interfaces.SessionAPI
	workspaceID int64
	store       *store.Store[types.Session]
	guard       *store.InFlightGuard
	logger      zerolog.Logger

	mutationTimeout time.Duration
	fields          []string

	fetchSeq atomic.Uint64

	mu           sync.RWMutex
	viewState    view.ViewState
	errMsg       string
	lastFetchSeq uint64
	fetchedAt    time.Time
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithMutationTimeout bounds every remote mutation call
func WithMutationTimeout(d time.Duration) Option {
	return func(m *Manager) { m.mutationTimeout = d }
}

// WithFields limits list responses to the named fields
func WithFields(fields ...string) Option {
	return func(m *Manager) { m.fields = fields }
}

// NewManager creates a manager for the sessions of workspaceID
func NewManager(sessionAPI interfaces.SessionAPI, workspaceID int64, opts ...Option) *Manager {
	m := &Manager{
		api:         sessionAPI,
		workspaceID: workspaceID,
		store:       store.New[types.Session](),
		guard:       store.NewInFlightGuard(),
		logger:      zerolog.Nop(),
		viewState:   view.ViewState{Tab: types.StatusActive},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With().Int64("workspace_id", workspaceID).Logger()
	return m
}

// WorkspaceID returns the scope of this manager
func (m *Manager) WorkspaceID() int64 {
	return m.workspaceID
}

// Fetch replaces the list with the server's.
// A non-positive workspace id makes it a no-op. On failure the previous list
// is kept and the message is exposed through Error.
// A response that arrives after a newer fetch was already applied is dropped.
func (m *Manager) Fetch(ctx context.Context) store.Outcome {
	if m.workspaceID <= 0 {
		return store.Skipped
	}

	seq := m.fetchSeq.Add(1)
	sessions, err := m.api.ListSessions(ctx, m.workspaceID, m.fields...)

	m.mu.Lock()
	defer m.mu.Unlock()

	if seq <= m.lastFetchSeq {
		m.logger.Debug().Uint64("seq", seq).Msg("dropping stale session list")
		return store.Skipped
	}
	if err != nil {
		m.errMsg = api.ErrorMessage(err)
		m.logger.Warn().Err(err).Msg("failed to fetch sessions, keeping previous list")
		return store.Failed
	}

	m.lastFetchSeq = seq
	m.store.Replace(sessions)
	m.fetchedAt = time.Now()
	m.errMsg = ""
	m.logger.Debug().Int("count", len(sessions)).Msg("sessions fetched")
	return store.Applied
}

// Watch re-fetches on every interval until ctx is done
func (m *Manager) Watch(ctx context.Context, interval, jitter time.Duration) error {
	if m.workspaceID <= 0 {
		return types.ErrInvalidWorkspaceID
	}
	p := poller.New("sessions", interval,
		func(ctx context.Context) (store.Outcome, error) {
			return m.Fetch(ctx), nil
		},
		poller.WithJitter[store.Outcome](jitter),
		poller.WithLogger[store.Outcome](m.logger),
	)
	return p.Run(ctx)
}

// Create validates and creates a session, then adds the server's
// representation to the list. Creation is not optimistic: the id comes from
// the server.
func (m *Manager) Create(ctx context.Context, req types.CreateSessionRequest) (*types.Session, store.Outcome) {
	if m.workspaceID <= 0 {
		m.setError(types.ErrInvalidWorkspaceID)
		return nil, store.Failed
	}
	if err := types.ValidateSessionName(req.Name); err != nil {
		m.setError(err)
		return nil, store.Failed
	}
	if req.EntryMode != "" && !types.IsValidEntryMode(req.EntryMode) {
		m.setError(types.ErrInvalidEntryMode)
		return nil, store.Failed
	}

	created, err := m.api.CreateSession(ctx, m.workspaceID, req)
	if err != nil {
		m.setError(err)
		return nil, store.Failed
	}
	if created == nil {
		// No body; the next fetch will pick it up
		m.Fetch(ctx)
		m.clearError()
		return nil, store.Applied
	}

	m.store.Upsert(*created)
	m.clearError()
	m.logger.Info().Int64("session_id", created.ID).Msg("session created")
	return created, store.Applied
}

// Move transitions a session between active, archive and trash.
// Moving a trashed session to active is a restore.
func (m *Manager) Move(ctx context.Context, id int64, target string) store.Outcome {
	current, ok := m.store.Get(id)
	if !ok {
		return m.reject(id, ErrSessionNotFound)
	}
	if !types.IsValidStatus(target) {
		return m.reject(id, types.ErrInvalidStatus)
	}

	from := Lifecycle(current)
	if from == types.StatusTrash && target == types.StatusActive {
		return m.Restore(ctx, id)
	}

	var remote func(ctx context.Context) (*types.Session, error)
	var apply func(*types.Session)
	switch {
	case from == types.StatusActive && target == types.StatusArchive:
		remote = func(ctx context.Context) (*types.Session, error) { return m.api.ArchiveSession(ctx, id) }
		apply = func(s *types.Session) { s.Status = types.StatusArchive }
	case from == types.StatusArchive && target == types.StatusActive:
		remote = func(ctx context.Context) (*types.Session, error) { return m.api.UnarchiveSession(ctx, id) }
		apply = func(s *types.Session) { s.Status = types.StatusActive }
	case from != types.StatusTrash && target == types.StatusTrash:
		remote = func(ctx context.Context) (*types.Session, error) { return m.api.TrashSession(ctx, id) }
		apply = func(s *types.Session) { s.IsDeleted = true }
	default:
		return m.reject(id, ErrInvalidTransition)
	}

	return m.mutate(ctx, id, "move", store.Mutation[types.Session]{
		Apply: func(items []types.Session) []types.Session {
			return store.Modify(items, id, apply)
		},
		Remote: remote,
	})
}

// ToggleStartStop flips the running flag.
// Trashed sessions are refused.
func (m *Manager) ToggleStartStop(ctx context.Context, id int64) store.Outcome {
	current, ok := m.store.Get(id)
	if !ok {
		return m.reject(id, ErrSessionNotFound)
	}
	if current.IsDeleted {
		return m.reject(id, ErrSessionTrashed)
	}

	return m.mutate(ctx, id, "toggle", store.Mutation[types.Session]{
		Apply: func(items []types.Session) []types.Session {
			return store.Modify(items, id, func(s *types.Session) { s.IsStopped = !s.IsStopped })
		},
		Remote: func(ctx context.Context) (*types.Session, error) {
			// the snapshot taken before Apply decides the direction
			if current.IsStopped {
				return m.api.StartSession(ctx, id)
			}
			return m.api.StopSession(ctx, id)
		},
	})
}

// Restore takes a session out of the trash. It always lands in active.
func (m *Manager) Restore(ctx context.Context, id int64) store.Outcome {
	current, ok := m.store.Get(id)
	if !ok {
		return m.reject(id, ErrSessionNotFound)
	}
	if !current.IsDeleted {
		return m.reject(id, ErrNotTrashed)
	}

	return m.mutate(ctx, id, "restore", store.Mutation[types.Session]{
		Apply: func(items []types.Session) []types.Session {
			return store.Modify(items, id, func(s *types.Session) {
				s.IsDeleted = false
				s.Status = types.StatusActive
			})
		},
		Remote: func(ctx context.Context) (*types.Session, error) { return m.api.RestoreSession(ctx, id) },
	})
}

// DeletePermanently removes a trashed session for good.
// confirmed must be true; the server sends no body, so the local removal stands.
func (m *Manager) DeletePermanently(ctx context.Context, id int64, confirmed bool) store.Outcome {
	current, ok := m.store.Get(id)
	if !ok {
		return m.reject(id, ErrSessionNotFound)
	}
	if !current.IsDeleted {
		return m.reject(id, ErrNotTrashed)
	}
	if !confirmed {
		return m.reject(id, ErrConfirmationRequired)
	}

	return m.mutate(ctx, id, "delete", store.Mutation[types.Session]{
		Apply: func(items []types.Session) []types.Session {
			return store.RemoveFrom(items, id)
		},
		Remote: func(ctx context.Context) (*types.Session, error) {
			return nil, m.api.DeleteSessionPermanently(ctx, id)
		},
	})
}

func (m *Manager) mutate(ctx context.Context, id int64, op string, mutation store.Mutation[types.Session]) store.Outcome {
	mutation.Timeout = m.mutationTimeout

	outcome, err := store.RunOptimisticMutation(ctx, m.store, m.guard, id, mutation)
	switch outcome {
	case store.Skipped:
		m.logger.Debug().Int64("session_id", id).Str("op", op).Msg("mutation already in flight, ignoring")
	case store.Failed:
		m.setError(err)
		m.logger.Warn().Err(err).Int64("session_id", id).Str("op", op).Msg("mutation failed, rolled back")
	case store.Applied:
		m.clearError()
		m.logger.Debug().Int64("session_id", id).Str("op", op).Msg("mutation applied")
	}
	return outcome
}

// reject records a validation error without touching the network
func (m *Manager) reject(id int64, err error) store.Outcome {
	m.setError(err)
	m.logger.Debug().Err(err).Int64("session_id", id).Msg("mutation rejected")
	return store.Failed
}

func (m *Manager) setError(err error) {
	m.mu.Lock()
	m.errMsg = api.ErrorMessage(err)
	m.mu.Unlock()
}

func (m *Manager) clearError() {
	m.mu.Lock()
	m.errMsg = ""
	m.mu.Unlock()
}

// Error returns the message of the last failure, or "" after a success
func (m *Manager) Error() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.errMsg
}

// ClearError dismisses the current error
func (m *Manager) ClearError() {
	m.clearError()
}

// IsUpdating reports whether session id has a mutation in flight
func (m *Manager) IsUpdating(id int64) bool {
	return m.guard.IsUpdating(id)
}

// FetchedAt returns when the list was last replaced by a fetch
func (m *Manager) FetchedAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fetchedAt
}

// All returns the unfiltered list
func (m *Manager) All() []types.Session {
	return m.store.Snapshot()
}

// Get returns one session by id
func (m *Manager) Get(id int64) (types.Session, bool) {
	return m.store.Get(id)
}

// SetView changes the tab and query used by Visible
func (m *Manager) SetView(vs view.ViewState) {
	m.mu.Lock()
	m.viewState = vs.Normalize()
	m.mu.Unlock()
}

// View returns the current tab and query
func (m *Manager) View() view.ViewState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.viewState
}

// Visible projects the list through the current view state
func (m *Manager) Visible() []types.Session {
	return view.ProjectSessions(m.store.Snapshot(), m.View())
}

// Counts returns how many sessions each tab would show
func (m *Manager) Counts() map[string]int {
	return view.CountByTab(m.store.Snapshot())
}

// Lifecycle maps a session to its state in the status machine:
// trash when deleted, otherwise its status
func Lifecycle(s types.Session) string {
	if s.IsDeleted {
		return types.StatusTrash
	}
	if s.Status == "" {
		return types.StatusActive
	}
	return s.Status
}
