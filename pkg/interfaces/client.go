package interfaces

import (
	"context"

	"classroom/pkg/types"
)

// SessionAPI is the lecturer-side session surface of the backend
// ARCHITECTURAL DISCOVERY: Every mutation returns the server representation when
// the backend sends one; a nil session with a nil error means "no body"
type SessionAPI interface {
	ListSessions(ctx context.Context, workspaceID int64, fields ...string) ([]types.Session, error)
	CreateSession(ctx context.Context, workspaceID int64, req types.CreateSessionRequest) (*types.Session, error)
	ArchiveSession(ctx context.Context, sessionID int64) (*types.Session, error)
	UnarchiveSession(ctx context.Context, sessionID int64) (*types.Session, error)
	StartSession(ctx context.Context, sessionID int64) (*types.Session, error)
	StopSession(ctx context.Context, sessionID int64) (*types.Session, error)
	RestoreSession(ctx context.Context, sessionID int64) (*types.Session, error)

	// TrashSession is the soft delete; the session stays restorable
	TrashSession(ctx context.Context, sessionID int64) (*types.Session, error)

	// DeleteSessionPermanently is irreversible
	DeleteSessionPermanently(ctx context.Context, sessionID int64) error
}

// WorkspaceAPI is the lecturer-side workspace surface
type WorkspaceAPI interface {
	ListWorkspaces(ctx context.Context, fields ...string) ([]types.Workspace, error)
	ArchiveWorkspace(ctx context.Context, workspaceID int64) (*types.Workspace, error)
	UnarchiveWorkspace(ctx context.Context, workspaceID int64) (*types.Workspace, error)
	TrashWorkspace(ctx context.Context, workspaceID int64) (*types.Workspace, error)
	RestoreWorkspace(ctx context.Context, workspaceID int64) (*types.Workspace, error)
}

// JoinAPI is the passcode-scoped participant surface
// FUNCTIONAL DISCOVERY: The bearer token is an explicit argument so the caller,
// not the transport, decides which token family a request carries
type JoinAPI interface {
	LookupSession(ctx context.Context, passcode string) (*types.PublicSession, error)
	Join(ctx context.Context, passcode, mode string, req types.JoinRequest, bearer string) (*types.JoinResponse, error)
	Heartbeat(ctx context.Context, passcode, bearer string) error
	Participants(ctx context.Context, passcode, bearer string) ([]types.Participant, error)
	ActiveModules(ctx context.Context, passcode, bearer string) ([]types.ModuleState, error)
	TimerState(ctx context.Context, sessionID, moduleID int64, bearer string) (*types.TimerState, error)
	PostMessage(ctx context.Context, passcode, bearer string, msg types.Message) (*types.Message, error)
}

// CredentialStore persists guest and participant credentials between runs
type CredentialStore interface {
	SaveCredential(ctx context.Context, cred *types.Credential) error

	// GetCredential returns ErrCredentialNotFound when nothing is stored
	GetCredential(ctx context.Context, passcode, kind string) (*types.Credential, error)

	// ClearGuestCredentials drops every guest and participant credential.
	// It never touches the primary user token, which is not stored here.
	ClearGuestCredentials(ctx context.Context) error

	Fingerprint(ctx context.Context) (string, error)
	HealthCheck(ctx context.Context) error
	Close() error
}
