package types

import (
	"time"
)

// ARCHITECTURAL DISCOVERY: Lifecycle status values are the exact strings the
// backend sends; is_deleted is carried separately and overrides status
const (
	StatusActive  = "active"
	StatusArchive = "archive"
	StatusTrash   = "trash"
)

// Participant entry modes a session can require of joiners
const (
	EntryModeAnonymous  = "anonymous"
	EntryModeRegistered = "registered"
	EntryModeSSO        = "sso"
	EntryModeEmailCode  = "email_code"
)

// Credential kinds, one per bearer token family
const (
	CredentialParticipant = "participant"
	CredentialGuest       = "guest"
	CredentialUser        = "user"
)

// Activity module kinds
const (
	ModuleQuestions = "questions"
	ModulePoll      = "poll"
	ModuleQuiz      = "quiz"
	ModuleTimer     = "timer"
)

// Session represents a single live or scheduled teaching event
// FUNCTIONAL DISCOVERY: is_deleted == true means the session is only visible
// under the trash projection regardless of Status
type Session struct {
	ID               int64     `json:"id"`
	WorkspaceID      int64     `json:"workspace_id"`
	Name             string    `json:"name"`
	Passcode         string    `json:"passcode"`
	Status           string    `json:"status"`
	IsDeleted        bool      `json:"is_deleted"`
	IsStopped        bool      `json:"is_stopped"`
	EntryMode        string    `json:"participant_entry_mode,omitempty"`
	ParticipantCount int       `json:"participant_count"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// EntityID implements store.Entity
func (s Session) EntityID() int64 { return s.ID }

// Workspace is the lecturer-owned container of sessions and modules.
// Counts and the live indicator are computed by the server.
type Workspace struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	Status           string    `json:"status"`
	IsDeleted        bool      `json:"is_deleted"`
	ParticipantCount int       `json:"participant_count"`
	SessionCount     int       `json:"session_count"`
	HasLiveSession   bool      `json:"has_live_session"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// EntityID implements store.Entity
func (w Workspace) EntityID() int64 { return w.ID }

// PublicSession is what an unauthenticated passcode lookup returns
type PublicSession struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Passcode      string `json:"passcode"`
	EntryMode     string `json:"participant_entry_mode"`
	IsStopped     bool   `json:"is_stopped"`
	WorkspaceName string `json:"workspace_name,omitempty"`
}

// Credential is a bearer token bound to the entry mode that produced it
// ARCHITECTURAL DISCOVERY: Kind is derived from Mode, never chosen by the
// caller, so session-scoped requests cannot mix token families
type Credential struct {
	Passcode      string     `json:"passcode"`
	Mode          string     `json:"mode"`
	Kind          string     `json:"kind"`
	Token         string     `json:"token"`
	ParticipantID string     `json:"participant_id,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// Participant is one roster entry of a running session
type Participant struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Kind        string    `json:"kind"`
	IsOnline    bool      `json:"is_online"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// ModuleState describes an activity module attached to a session
type ModuleState struct {
	ID       int64  `json:"id"`
	Kind     string `json:"kind"`
	Title    string `json:"title"`
	Position int    `json:"position"`
	IsActive bool   `json:"is_active"`
}

// TimerState is the polled state of a timer module
type TimerState struct {
	ModuleID         int64      `json:"module_id"`
	DurationSeconds  int        `json:"duration_seconds"`
	RemainingSeconds int        `json:"remaining_seconds"`
	IsRunning        bool       `json:"is_running"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
}

// Message is a Q&A post made by a participant
type Message struct {
	ID         int64     `json:"id,omitempty"`
	Content    string    `json:"content"`
	AuthorName string    `json:"author_name,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

// TokenPair is returned by the login endpoint
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	UserID       string `json:"user_id,omitempty"`
}

// CreateSessionRequest is the body of a workspace-scoped session creation
type CreateSessionRequest struct {
	Name      string `json:"name"`
	EntryMode string `json:"participant_entry_mode,omitempty"`
}

// JoinRequest is the body of a join call; which fields are set depends on the mode
// FUNCTIONAL DISCOVERY: email_code without Code requests a code, with Code verifies it
type JoinRequest struct {
	Fingerprint string `json:"fingerprint,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email,omitempty"`
	Code        string `json:"code,omitempty"`
}

// JoinResponse carries the credential issued by a join call.
// CodeSent is set when an email_code request only dispatched a code.
type JoinResponse struct {
	Token         string     `json:"token,omitempty"`
	ParticipantID string     `json:"participant_id,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	CodeSent      bool       `json:"code_sent,omitempty"`
}
