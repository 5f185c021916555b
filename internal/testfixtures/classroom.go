package testfixtures

import (
	"fmt"
	"math/rand"
	"time"

	"classroom/pkg/types"
)

// Passcodes of the sessions in DefaultClassroom
const (
	AnonymousPasscode  = "ALGO01"
	EmailCodePasscode  = "GUEST1"
	RegisteredPasscode = "ENROL1"
	TimerModuleID      = 501
)

// Classroom is the seed data of a fake backend
type Classroom struct {
	Workspaces   []types.Workspace
	Sessions     []types.Session
	Participants map[string][]types.Participant
	Modules      map[string][]types.ModuleState
	Timers       map[int64]types.TimerState
}

var base = time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)

// DefaultClassroom is one lecturer with two workspaces and a session in
// every lifecycle state, one per entry mode
func DefaultClassroom() *Classroom {
	return &Classroom{
		Workspaces: []types.Workspace{
			{ID: 1, Name: "Algorithms", Description: "CS 301 fall", Status: types.StatusActive, SessionCount: 5, HasLiveSession: true, UpdatedAt: base},
			{ID: 2, Name: "Compilers", Description: "CS 412 spring", Status: types.StatusArchive, SessionCount: 0, UpdatedAt: base},
		},
		Sessions: []types.Session{
			{ID: 10, WorkspaceID: 1, Name: "Week 1 - Sorting", Passcode: AnonymousPasscode, Status: types.StatusActive, IsStopped: false, EntryMode: types.EntryModeAnonymous, UpdatedAt: base.Add(1 * time.Hour)},
			{ID: 11, WorkspaceID: 1, Name: "Week 2 - Graphs", Passcode: EmailCodePasscode, Status: types.StatusActive, IsStopped: true, EntryMode: types.EntryModeEmailCode, UpdatedAt: base.Add(3 * time.Hour)},
			{ID: 12, WorkspaceID: 1, Name: "Week 3 - Dynamic programming", Passcode: RegisteredPasscode, Status: types.StatusActive, IsStopped: true, EntryMode: types.EntryModeRegistered, UpdatedAt: base.Add(2 * time.Hour)},
			{ID: 13, WorkspaceID: 1, Name: "Midterm review", Passcode: "REVIEW", Status: types.StatusArchive, IsStopped: true, EntryMode: types.EntryModeSSO, UpdatedAt: base},
			{ID: 14, WorkspaceID: 1, Name: "Draft", Passcode: "DRAFT1", Status: types.StatusActive, IsDeleted: true, IsStopped: true, EntryMode: types.EntryModeAnonymous, UpdatedAt: base},
		},
		Participants: map[string][]types.Participant{
			AnonymousPasscode: {
				{ID: "p-1", DisplayName: "Ada", Kind: types.CredentialParticipant, IsOnline: true, LastSeenAt: base},
				{ID: "p-2", DisplayName: "Grace", Kind: types.CredentialParticipant, IsOnline: false, LastSeenAt: base},
			},
		},
		Modules: map[string][]types.ModuleState{
			AnonymousPasscode: {
				{ID: 500, Kind: types.ModulePoll, Title: "Favourite sort", Position: 0, IsActive: false},
				{ID: TimerModuleID, Kind: types.ModuleTimer, Title: "Think-pair-share", Position: 1, IsActive: true},
				{ID: 502, Kind: types.ModuleQuestions, Title: "Questions", Position: 2, IsActive: true},
			},
		},
		Timers: map[int64]types.TimerState{
			TimerModuleID: {DurationSeconds: 300, RemainingSeconds: 120, IsRunning: true},
		},
	}
}

// GenerateClassroom creates a workspace with n sessions in mixed states
func GenerateClassroom(workspaceID int64, n int) *Classroom {
	c := &Classroom{
		Workspaces: []types.Workspace{{ID: workspaceID, Name: "Generated", Status: types.StatusActive, SessionCount: n}},
	}
	statuses := []string{types.StatusActive, types.StatusActive, types.StatusArchive}
	for i := 0; i < n; i++ {
		c.Sessions = append(c.Sessions, types.Session{
			ID:          workspaceID*1000 + int64(i),
			WorkspaceID: workspaceID,
			Name:        GenerateSessionName(),
			Passcode:    fmt.Sprintf("G%05d", i),
			Status:      statuses[i%len(statuses)],
			IsDeleted:   i%7 == 6,
			IsStopped:   i%4 != 0,
			EntryMode:   types.EntryModeAnonymous,
			UpdatedAt:   base.Add(time.Duration(rand.Intn(10_000)) * time.Minute),
		})
	}
	return c
}

// GenerateSessionName creates realistic session names
func GenerateSessionName() string {
	subjects := []string{"Math", "Science", "History", "English", "Computer Science", "Physics", "Chemistry", "Biology"}
	topics := []string{"Chapter 5", "Lab Session", "Review Session", "Quiz Prep", "Project Work", "Discussion", "Practice Problems"}

	subject := subjects[rand.Intn(len(subjects))]
	topic := topics[rand.Intn(len(topics))]

	return fmt.Sprintf("%s - %s", subject, topic)
}

// WaitForCondition polls condition until it holds or timeout elapses
func WaitForCondition(condition func() bool, timeout time.Duration, interval time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(interval)
	}
	return condition()
}
