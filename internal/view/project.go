// Package view derives the filtered and sorted projections shown to the user.
// Every function here is pure.
package view

import (
	"sort"
	"strings"

	"classroom/pkg/types"
)

// ViewState is the status tab plus the free-text query
type ViewState struct {
	Tab   string
	Query string
}

// Normalize defaults an empty tab to active
func (v ViewState) Normalize() ViewState {
	if v.Tab == "" {
		v.Tab = types.StatusActive
	}
	v.Query = strings.TrimSpace(v.Query)
	return v
}

// Visible applies the tab rule shared by every entity:
// the trash tab shows only deleted entities, every other tab hides them.
func Visible(status string, isDeleted bool, tab string) bool {
	if tab == types.StatusTrash {
		return isDeleted
	}
	return !isDeleted && status == tab
}

// Matches reports whether any field contains query, case-insensitively
func Matches(query string, fields ...string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// ProjectSessions filters sessions by tab and query, then orders running
// sessions first and each group by most recently updated
func ProjectSessions(sessions []types.Session, vs ViewState) []types.Session {
	vs = vs.Normalize()

	out := make([]types.Session, 0, len(sessions))
	for _, s := range sessions {
		if !Visible(s.Status, s.IsDeleted, vs.Tab) {
			continue
		}
		if !Matches(vs.Query, s.Name, s.Passcode) {
			continue
		}
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.IsStopped != b.IsStopped {
			return !a.IsStopped
		}
		return a.UpdatedAt.After(b.UpdatedAt)
	})
	return out
}

// ProjectWorkspaces filters workspaces by tab and by name or description.
// Fetch order is kept.
func ProjectWorkspaces(workspaces []types.Workspace, vs ViewState) []types.Workspace {
	vs = vs.Normalize()

	out := make([]types.Workspace, 0, len(workspaces))
	for _, w := range workspaces {
		if Visible(w.Status, w.IsDeleted, vs.Tab) && Matches(vs.Query, w.Name, w.Description) {
			out = append(out, w)
		}
	}
	return out
}

// CountByTab returns how many sessions each tab would show with an empty query
func CountByTab(sessions []types.Session) map[string]int {
	counts := map[string]int{types.StatusActive: 0, types.StatusArchive: 0, types.StatusTrash: 0}
	for _, s := range sessions {
		for tab := range counts {
			if Visible(s.Status, s.IsDeleted, tab) {
				counts[tab]++
			}
		}
	}
	return counts
}
