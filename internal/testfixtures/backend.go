// Package testfixtures provides an in-memory classroom backend served over
// httptest, plus realistic classroom data, for tests that exercise the real
// HTTP client end to end.
package testfixtures

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"classroom/pkg/types"
)

// Tokens the fake backend accepts
const (
	UserToken     = "lecturer-token"
	VerifyCode    = "246810"
	GuestToken    = "guest-token"
	tokenUserPass = "secret"
)

// Backend is a fake classroom API
type Backend struct {
	Server *httptest.Server

	mu           sync.Mutex
	workspaces   map[int64]*types.Workspace
	sessions     map[int64]*types.Session
	participants map[string][]types.Participant
	modules      map[string][]types.ModuleState
	timers       map[int64]types.TimerState
	messages     map[string][]types.Message
	tokens       map[string]string // token -> passcode (participant and guest)
	nextID       int64
	now          time.Time

	failures  map[string]int // "METHOD /path" -> status
	delays    map[string]time.Duration
	calls     map[string]int
	bearers   map[string][]string
	heartbeat map[string]int
}

// NewBackend starts a fake backend seeded with the given classroom
func NewBackend(t *testing.T, classroom *Classroom) *Backend {
	t.Helper()
	b := &Backend{
		workspaces:   make(map[int64]*types.Workspace),
		sessions:     make(map[int64]*types.Session),
		participants: make(map[string][]types.Participant),
		modules:      make(map[string][]types.ModuleState),
		timers:       make(map[int64]types.TimerState),
		messages:     make(map[string][]types.Message),
		tokens:       make(map[string]string),
		nextID:       1000,
		now:          time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC),
		failures:     make(map[string]int),
		delays:       make(map[string]time.Duration),
		calls:        make(map[string]int),
		bearers:      make(map[string][]string),
		heartbeat:    make(map[string]int),
	}
	if classroom != nil {
		b.seed(classroom)
	}
	b.Server = httptest.NewServer(b.routes())
	t.Cleanup(b.Server.Close)
	return b
}

func (b *Backend) seed(c *Classroom) {
	for i := range c.Workspaces {
		w := c.Workspaces[i]
		b.workspaces[w.ID] = &w
	}
	for i := range c.Sessions {
		s := c.Sessions[i]
		b.sessions[s.ID] = &s
	}
	for passcode, roster := range c.Participants {
		b.participants[passcode] = roster
	}
	for passcode, modules := range c.Modules {
		b.modules[passcode] = modules
	}
	for id, st := range c.Timers {
		b.timers[id] = st
	}
}

// URL is the base URL to hand to the client (without /api/v1)
func (b *Backend) URL() string {
	return b.Server.URL
}

// Fail makes every request matching "METHOD /api/v1/path" answer status
func (b *Backend) Fail(route string, status int) {
	b.mu.Lock()
	b.failures[route] = status
	b.mu.Unlock()
}

// Delay holds every request matching route for d before answering
func (b *Backend) Delay(route string, d time.Duration) {
	b.mu.Lock()
	b.delays[route] = d
	b.mu.Unlock()
}

// Calls returns how many requests matched route
func (b *Backend) Calls(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[route]
}

// Bearers returns the bearer tokens seen on route, in arrival order
func (b *Backend) Bearers(route string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.bearers[route]...)
}

// Session returns the server-side copy of a session
func (b *Backend) Session(id int64) (types.Session, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[id]
	if !ok {
		return types.Session{}, false
	}
	return *s, true
}

// Messages returns posted Q&A messages for a passcode
func (b *Backend) Messages(passcode string) []types.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]types.Message(nil), b.messages[passcode]...)
}

// RevokeTokens invalidates every participant and guest token
func (b *Backend) RevokeTokens() {
	b.mu.Lock()
	b.tokens = make(map[string]string)
	b.mu.Unlock()
}

func (b *Backend) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/auth/login", b.login)
	mux.HandleFunc("GET /api/v1/workspaces", b.user(b.listWorkspaces))
	mux.HandleFunc("POST /api/v1/workspaces/{id}/{action}", b.user(b.workspaceAction))
	mux.HandleFunc("DELETE /api/v1/workspaces/{id}", b.user(b.workspaceAction))
	mux.HandleFunc("GET /api/v1/workspaces/{id}/sessions", b.user(b.listSessions))
	mux.HandleFunc("POST /api/v1/workspaces/{id}/sessions", b.user(b.createSession))
	mux.HandleFunc("POST /api/v1/sessions/{id}/{action}", b.user(b.sessionAction))
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", b.user(b.sessionAction))
	mux.HandleFunc("DELETE /api/v1/sessions/{id}/permanent", b.user(b.deletePermanently))

	mux.HandleFunc("GET /api/v1/sessions/by-passcode/{code}", b.lookup)
	mux.HandleFunc("POST /api/v1/sessions/by-passcode/{code}/join/{mode}", b.join)
	mux.HandleFunc("POST /api/v1/sessions/by-passcode/{code}/heartbeat", b.scoped(b.heartbeatHandler))
	mux.HandleFunc("GET /api/v1/sessions/by-passcode/{code}/participants", b.scoped(b.roster))
	mux.HandleFunc("GET /api/v1/sessions/by-passcode/{code}/modules", b.scoped(b.activeModules))
	mux.HandleFunc("POST /api/v1/sessions/by-passcode/{code}/messages", b.scoped(b.postMessage))
	mux.HandleFunc("GET /api/v1/sessions/{sid}/modules/timer/{mid}/state", b.timerState)

	return b.instrument(mux)
}

// instrument counts calls, records bearers and applies injected failures and delays
func (b *Backend) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.Method + " " + r.URL.Path
		b.mu.Lock()
		b.calls[route]++
		b.bearers[route] = append(b.bearers[route], bearer(r))
		status := b.failures[route]
		delay := b.delays[route]
		b.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}
		if status != 0 {
			writeJSON(w, status, map[string]any{"detail": fmt.Sprintf("injected failure %d", status)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) user(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if bearer(r) != UserToken {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Not authenticated"})
			return
		}
		next(w, r)
	}
}

// scoped checks the token matches the session's entry mode
func (b *Backend) scoped(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.PathValue("code")
		s := b.byPasscode(code)
		if s == nil {
			writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Session not found"})
			return
		}
		token := bearer(r)

		b.mu.Lock()
		ok := false
		switch s.EntryMode {
		case types.EntryModeRegistered, types.EntryModeSSO:
			ok = token == UserToken
		default:
			ok = b.tokens[token] == code
		}
		b.mu.Unlock()

		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Invalid participant token"})
			return
		}
		next(w, r)
	}
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password != tokenUserPass {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Incorrect email or password"})
		return
	}
	writeJSON(w, http.StatusOK, types.TokenPair{AccessToken: UserToken, TokenType: "bearer", UserID: "lecturer-1"})
}

func (b *Backend) listWorkspaces(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	out := make([]types.Workspace, 0, len(b.workspaces))
	for _, ws := range b.workspaces {
		out = append(out, *ws)
	}
	b.mu.Unlock()
	sortByID(out, func(w types.Workspace) int64 { return w.ID })
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) workspaceAction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": []map[string]string{{"msg": "id must be an integer"}}})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	ws, ok := b.workspaces[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Workspace not found"})
		return
	}
	action := r.PathValue("action")
	if r.Method == http.MethodDelete {
		action = "trash"
	}
	switch action {
	case "archive":
		ws.Status = types.StatusArchive
	case "unarchive":
		ws.Status = types.StatusActive
	case "trash":
		ws.IsDeleted = true
	case "restore":
		ws.IsDeleted = false
		ws.Status = types.StatusActive
	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not found"})
		return
	}
	b.now = b.now.Add(time.Minute)
	ws.UpdatedAt = b.now
	writeJSON(w, http.StatusOK, ws)
}

func (b *Backend) listSessions(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	b.mu.Lock()
	out := []types.Session{}
	for _, s := range b.sessions {
		if s.WorkspaceID == id {
			out = append(out, *s)
		}
	}
	b.mu.Unlock()
	sortByID(out, func(s types.Session) int64 { return s.ID })
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) createSession(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	var req types.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": []map[string]string{{"msg": "name is required"}}})
		return
	}
	if req.EntryMode == "" {
		req.EntryMode = types.EntryModeAnonymous
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.workspaces[id]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Workspace not found"})
		return
	}
	b.nextID++
	b.now = b.now.Add(time.Minute)
	s := &types.Session{
		ID:          b.nextID,
		WorkspaceID: id,
		Name:        req.Name,
		Passcode:    fmt.Sprintf("S%04d", b.nextID%10000),
		Status:      types.StatusActive,
		IsStopped:   true,
		EntryMode:   req.EntryMode,
		CreatedAt:   b.now,
		UpdatedAt:   b.now,
	}
	b.sessions[s.ID] = s
	writeJSON(w, http.StatusCreated, s)
}

func (b *Backend) sessionAction(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	action := r.PathValue("action")
	if r.Method == http.MethodDelete {
		action = "trash"
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Session not found"})
		return
	}
	switch action {
	case "archive":
		s.Status = types.StatusArchive
	case "unarchive":
		s.Status = types.StatusActive
	case "start":
		s.IsStopped = false
	case "stop":
		s.IsStopped = true
	case "trash":
		s.IsDeleted = true
	case "restore":
		s.IsDeleted = false
		s.Status = types.StatusActive
	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not found"})
		return
	}
	b.now = b.now.Add(time.Minute)
	s.UpdatedAt = b.now
	writeJSON(w, http.StatusOK, s)
}

func (b *Backend) deletePermanently(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Session not found"})
		return
	}
	if !s.IsDeleted {
		writeJSON(w, http.StatusConflict, map[string]any{"detail": "Session must be in the trash"})
		return
	}
	delete(b.sessions, id)
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) byPasscode(code string) *types.Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.sessions {
		if s.Passcode == code && !s.IsDeleted {
			cp := *s
			return &cp
		}
	}
	return nil
}

func (b *Backend) lookup(w http.ResponseWriter, r *http.Request) {
	s := b.byPasscode(r.PathValue("code"))
	if s == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Session not found"})
		return
	}
	b.mu.Lock()
	name := ""
	if ws, ok := b.workspaces[s.WorkspaceID]; ok {
		name = ws.Name
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, types.PublicSession{
		ID:            s.ID,
		Name:          s.Name,
		Passcode:      s.Passcode,
		EntryMode:     s.EntryMode,
		IsStopped:     s.IsStopped,
		WorkspaceName: name,
	})
}

func (b *Backend) join(w http.ResponseWriter, r *http.Request) {
	code, mode := r.PathValue("code"), r.PathValue("mode")
	s := b.byPasscode(code)
	if s == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Session not found"})
		return
	}
	if s.EntryMode != mode {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "Session requires " + s.EntryMode})
		return
	}
	var req types.JoinRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	pid := fmt.Sprintf("p-%d", b.nextID)

	switch mode {
	case types.EntryModeAnonymous:
		if req.Fingerprint == "" {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": []map[string]string{{"msg": "fingerprint is required"}}})
			return
		}
		token := "participant-" + req.Fingerprint
		b.tokens[token] = code
		b.addParticipant(code, pid, req.DisplayName, types.CredentialParticipant)
		writeJSON(w, http.StatusOK, types.JoinResponse{Token: token, ParticipantID: pid})
	case types.EntryModeEmailCode:
		if req.Code == "" {
			writeJSON(w, http.StatusOK, types.JoinResponse{CodeSent: true})
			return
		}
		if req.Code != VerifyCode {
			writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "Invalid verification code"})
			return
		}
		b.tokens[GuestToken] = code
		b.addParticipant(code, pid, req.Email, types.CredentialGuest)
		writeJSON(w, http.StatusOK, types.JoinResponse{Token: GuestToken, ParticipantID: pid})
	default:
		if bearer(r) != UserToken {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Login required"})
			return
		}
		b.addParticipant(code, pid, req.DisplayName, types.CredentialUser)
		writeJSON(w, http.StatusOK, types.JoinResponse{ParticipantID: pid})
	}
}

func (b *Backend) addParticipant(code, id, name, kind string) {
	if name == "" {
		name = "Participant " + id
	}
	b.participants[code] = append(b.participants[code], types.Participant{
		ID: id, DisplayName: name, Kind: kind, IsOnline: true, LastSeenAt: b.now,
	})
}

func (b *Backend) heartbeatHandler(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.heartbeat[r.PathValue("code")]++
	b.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

// Heartbeats returns how many heartbeats a passcode received
func (b *Backend) Heartbeats(passcode string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.heartbeat[passcode]
}

func (b *Backend) roster(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	out := append([]types.Participant{}, b.participants[r.PathValue("code")]...)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) activeModules(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	out := append([]types.ModuleState{}, b.modules[r.PathValue("code")]...)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) postMessage(w http.ResponseWriter, r *http.Request) {
	var msg types.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil || strings.TrimSpace(msg.Content) == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": []map[string]string{{"msg": "content is required"}}})
		return
	}
	code := r.PathValue("code")
	b.mu.Lock()
	b.nextID++
	msg.ID = b.nextID
	msg.CreatedAt = b.now
	b.messages[code] = append(b.messages[code], msg)
	b.mu.Unlock()
	writeJSON(w, http.StatusCreated, msg)
}

func (b *Backend) timerState(w http.ResponseWriter, r *http.Request) {
	mid, _ := strconv.ParseInt(r.PathValue("mid"), 10, 64)
	if bearer(r) == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Not authenticated"})
		return
	}
	b.mu.Lock()
	st, ok := b.timers[mid]
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Timer not found"})
		return
	}
	st.ModuleID = mid
	writeJSON(w, http.StatusOK, st)
}

func bearer(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func sortByID[T any](items []T, id func(T) int64) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && id(items[j]) < id(items[j-1]); j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}
