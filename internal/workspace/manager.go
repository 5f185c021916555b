// Package workspace manages the lecturer's workspace list. Counts and the
// live indicator are server-computed; only lifecycle status is mutated here.
package workspace

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"classroom/internal/api"
	"classroom/internal/store"
	"classroom/internal/view"
	"classroom/pkg/interfaces"
	"classroom/pkg/types"
)

var (
	ErrWorkspaceNotFound = errors.New("workspace not found")
	ErrInvalidTransition = errors.New("workspace cannot move to that status")
	ErrNotTrashed        = errors.New("only workspaces in the trash can be restored")
)

// Manager owns the workspace list of the current user
type Manager struct {
	api    interfaces.WorkspaceAPI
	store  *store.Store[types.Workspace]
	guard  *store.InFlightGuard
	logger zerolog.Logger
	fields []string

	mutationTimeout time.Duration

	mu        sync.RWMutex
	viewState view.ViewState
	errMsg    string
}

// Option configures a Manager
type Option func(*Manager)

// WithMutationTimeout bounds each remote call of a mutation
func WithMutationTimeout(d time.Duration) Option {
	return func(m *Manager) { m.mutationTimeout = d }
}

// WithFields limits list responses to the given fields
func WithFields(fields ...string) Option {
	return func(m *Manager) { m.fields = fields }
}

// NewManager creates a workspace list manager
func NewManager(workspaceAPI interfaces.WorkspaceAPI, logger zerolog.Logger, opts ...Option) *Manager {
	m := &Manager{
		api:       workspaceAPI,
		store:     store.New[types.Workspace](),
		guard:     store.NewInFlightGuard(),
		logger:    logger,
		viewState: view.ViewState{Tab: types.StatusActive},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Fetch replaces the list; on failure the previous list is kept
func (m *Manager) Fetch(ctx context.Context) store.Outcome {
	workspaces, err := m.api.ListWorkspaces(ctx, m.fields...)
	if err != nil {
		m.setError(err)
		m.logger.Warn().Err(err).Msg("failed to fetch workspaces, keeping previous list")
		return store.Failed
	}
	m.store.Replace(workspaces)
	m.setError(nil)
	return store.Applied
}

// Move transitions a workspace between active, archive and trash.
// Moving a trashed workspace to active is a restore.
func (m *Manager) Move(ctx context.Context, id int64, target string) store.Outcome {
	current, ok := m.store.Get(id)
	if !ok {
		return m.reject(ErrWorkspaceNotFound)
	}
	if !types.IsValidStatus(target) {
		return m.reject(types.ErrInvalidStatus)
	}

	from := current.Status
	if current.IsDeleted {
		from = types.StatusTrash
	}
	if from == types.StatusTrash && target == types.StatusActive {
		return m.Restore(ctx, id)
	}

	var mutation store.Mutation[types.Workspace]
	switch {
	case from == types.StatusActive && target == types.StatusArchive:
		mutation = m.transition(id, func(w *types.Workspace) { w.Status = types.StatusArchive }, m.api.ArchiveWorkspace)
	case from == types.StatusArchive && target == types.StatusActive:
		mutation = m.transition(id, func(w *types.Workspace) { w.Status = types.StatusActive }, m.api.UnarchiveWorkspace)
	case from != types.StatusTrash && target == types.StatusTrash:
		mutation = m.transition(id, func(w *types.Workspace) { w.IsDeleted = true }, m.api.TrashWorkspace)
	default:
		return m.reject(ErrInvalidTransition)
	}
	return m.run(ctx, id, mutation)
}

// Restore takes a workspace out of the trash into active
func (m *Manager) Restore(ctx context.Context, id int64) store.Outcome {
	current, ok := m.store.Get(id)
	if !ok {
		return m.reject(ErrWorkspaceNotFound)
	}
	if !current.IsDeleted {
		return m.reject(ErrNotTrashed)
	}
	return m.run(ctx, id, m.transition(id, func(w *types.Workspace) {
		w.IsDeleted = false
		w.Status = types.StatusActive
	}, m.api.RestoreWorkspace))
}

func (m *Manager) transition(id int64, apply func(*types.Workspace), call func(context.Context, int64) (*types.Workspace, error)) store.Mutation[types.Workspace] {
	return store.Mutation[types.Workspace]{
		Apply: func(items []types.Workspace) []types.Workspace {
			return store.Modify(items, id, apply)
		},
		Remote: func(ctx context.Context) (*types.Workspace, error) {
			return call(ctx, id)
		},
	}
}

func (m *Manager) run(ctx context.Context, id int64, mutation store.Mutation[types.Workspace]) store.Outcome {
	mutation.Timeout = m.mutationTimeout
	outcome, err := store.RunOptimisticMutation(ctx, m.store, m.guard, id, mutation)
	switch outcome {
	case store.Failed:
		m.setError(err)
		m.logger.Warn().Err(err).Int64("workspace_id", id).Msg("workspace mutation failed, rolled back")
	case store.Applied:
		m.setError(nil)
	}
	return outcome
}

func (m *Manager) reject(err error) store.Outcome {
	m.setError(err)
	return store.Failed
}

func (m *Manager) setError(err error) {
	m.mu.Lock()
	m.errMsg = api.ErrorMessage(err)
	m.mu.Unlock()
}

// Error returns the message of the last failure
func (m *Manager) Error() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.errMsg
}

// IsUpdating reports whether workspace id has a mutation in flight
func (m *Manager) IsUpdating(id int64) bool {
	return m.guard.IsUpdating(id)
}

// Get returns one workspace by id
func (m *Manager) Get(id int64) (types.Workspace, bool) {
	return m.store.Get(id)
}

// All returns the unfiltered list
func (m *Manager) All() []types.Workspace {
	return m.store.Snapshot()
}

// SetView changes the tab and query used by Visible
func (m *Manager) SetView(vs view.ViewState) {
	m.mu.Lock()
	m.viewState = vs.Normalize()
	m.mu.Unlock()
}

// Visible projects the list through the current view state
func (m *Manager) Visible() []types.Workspace {
	m.mu.RLock()
	vs := m.viewState
	m.mu.RUnlock()
	return view.ProjectWorkspaces(m.store.Snapshot(), vs)
}

// LiveCount returns how many visible workspaces have a running session
func (m *Manager) LiveCount() int {
	n := 0
	for _, w := range m.Visible() {
		if w.HasLiveSession {
			n++
		}
	}
	return n
}
