package view

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classroom/pkg/types"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func ids(sessions []types.Session) []int64 {
	out := make([]int64, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.ID)
	}
	return out
}

func randomSessions(r *rand.Rand, n int) []types.Session {
	statuses := []string{types.StatusActive, types.StatusArchive, types.StatusTrash}
	names := []string{"Physics Lab", "Math Review", "History Quiz", "Biology", "Chem Prep"}
	out := make([]types.Session, n)
	for i := range out {
		out[i] = types.Session{
			ID:        int64(i + 1),
			Name:      names[r.Intn(len(names))],
			Passcode:  string(rune('A'+r.Intn(26))) + "X12",
			Status:    statuses[r.Intn(len(statuses))],
			IsDeleted: r.Intn(4) == 0,
			IsStopped: r.Intn(2) == 0,
			UpdatedAt: t0.Add(time.Duration(r.Intn(50)) * time.Minute),
		}
	}
	return out
}

func TestProjectSessions_RunningFirstDespiteOlderTimestamp(t *testing.T) {
	sessions := []types.Session{
		{ID: 1, Status: types.StatusActive, IsStopped: false, UpdatedAt: t0.Add(2 * time.Hour)},
		{ID: 2, Status: types.StatusActive, IsStopped: true, UpdatedAt: t0.Add(3 * time.Hour)},
	}

	got := ProjectSessions(sessions, ViewState{Tab: types.StatusActive})

	assert.Equal(t, []int64{1, 2}, ids(got))
}

func TestProjectSessions_GroupsSortedByUpdatedAtDescending(t *testing.T) {
	sessions := []types.Session{
		{ID: 1, Status: types.StatusActive, IsStopped: true, UpdatedAt: t0},
		{ID: 2, Status: types.StatusActive, IsStopped: false, UpdatedAt: t0},
		{ID: 3, Status: types.StatusActive, IsStopped: true, UpdatedAt: t0.Add(time.Hour)},
		{ID: 4, Status: types.StatusActive, IsStopped: false, UpdatedAt: t0.Add(time.Hour)},
		{ID: 5, Status: types.StatusActive, IsStopped: false, UpdatedAt: t0},
	}

	got := ProjectSessions(sessions, ViewState{})

	// 2 and 5 tie on timestamp and keep fetch order
	assert.Equal(t, []int64{4, 2, 5, 3, 1}, ids(got))
}

func TestProjectSessions_TabRules(t *testing.T) {
	sessions := []types.Session{
		{ID: 1, Status: types.StatusActive},
		{ID: 2, Status: types.StatusArchive},
		{ID: 3, Status: types.StatusActive, IsDeleted: true},
		{ID: 4, Status: types.StatusArchive, IsDeleted: true},
	}

	tests := []struct {
		tab  string
		want []int64
	}{
		{types.StatusActive, []int64{1}},
		{types.StatusArchive, []int64{2}},
		{types.StatusTrash, []int64{3, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.tab, func(t *testing.T) {
			assert.ElementsMatch(t, tt.want, ids(ProjectSessions(sessions, ViewState{Tab: tt.tab})))
		})
	}
}

func TestProjectSessions_QueryMatchesNameOrPasscode(t *testing.T) {
	sessions := []types.Session{
		{ID: 1, Name: "Thermodynamics", Passcode: "QWE123", Status: types.StatusActive},
		{ID: 2, Name: "Optics", Passcode: "THERM9", Status: types.StatusActive},
		{ID: 3, Name: "Algebra", Passcode: "ZZZ111", Status: types.StatusActive},
	}

	assert.ElementsMatch(t, []int64{1, 2}, ids(ProjectSessions(sessions, ViewState{Query: "therm"})))
	assert.ElementsMatch(t, []int64{1}, ids(ProjectSessions(sessions, ViewState{Query: "qwe"})))
	assert.Empty(t, ProjectSessions(sessions, ViewState{Query: "calculus"}))
}

func TestProjectSessions_Properties(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	tabs := []string{types.StatusActive, types.StatusArchive, types.StatusTrash}
	queries := []string{"", "lab", "X1", "quiz", "zzz"}

	for round := 0; round < 200; round++ {
		list := randomSessions(r, r.Intn(20))
		vs := ViewState{Tab: tabs[r.Intn(len(tabs))], Query: queries[r.Intn(len(queries))]}

		once := ProjectSessions(list, vs)
		twice := ProjectSessions(once, vs)
		require.Equal(t, once, twice, "projection must be idempotent (round %d)", round)

		for i, a := range once {
			if vs.Tab != types.StatusTrash {
				require.False(t, a.IsDeleted, "deleted session %d in %s tab", a.ID, vs.Tab)
			}
			for _, b := range once[i+1:] {
				require.False(t, a.IsStopped && !b.IsStopped, "stopped %d precedes running %d", a.ID, b.ID)
			}
		}
	}
}

func TestProjectSessions_DoesNotMutateInput(t *testing.T) {
	sessions := []types.Session{
		{ID: 1, Status: types.StatusActive, IsStopped: true},
		{ID: 2, Status: types.StatusActive},
	}

	_ = ProjectSessions(sessions, ViewState{})

	assert.Equal(t, []int64{1, 2}, ids(sessions))
}

func TestProjectWorkspaces(t *testing.T) {
	workspaces := []types.Workspace{
		{ID: 1, Name: "CS101", Description: "Intro to programming", Status: types.StatusActive},
		{ID: 2, Name: "PHY201", Description: "Waves", Status: types.StatusActive},
		{ID: 3, Name: "Old term", Status: types.StatusArchive},
		{ID: 4, Name: "Scratch", Status: types.StatusActive, IsDeleted: true},
	}

	got := ProjectWorkspaces(workspaces, ViewState{Tab: types.StatusActive, Query: "PROGRAM"})
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)

	assert.Len(t, ProjectWorkspaces(workspaces, ViewState{Tab: types.StatusActive}), 2)
	assert.Len(t, ProjectWorkspaces(workspaces, ViewState{Tab: types.StatusArchive}), 1)

	trash := ProjectWorkspaces(workspaces, ViewState{Tab: types.StatusTrash})
	require.Len(t, trash, 1)
	assert.Equal(t, int64(4), trash[0].ID)
}

func TestCountByTab(t *testing.T) {
	sessions := []types.Session{
		{Status: types.StatusActive},
		{Status: types.StatusActive},
		{Status: types.StatusArchive},
		{Status: types.StatusArchive, IsDeleted: true},
	}

	assert.Equal(t, map[string]int{
		types.StatusActive:  2,
		types.StatusArchive: 1,
		types.StatusTrash:   1,
	}, CountByTab(sessions))
}
