package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"classroom/internal/session"
	"classroom/pkg/types"
)

func newTable(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
}

func printWorkspaces(out io.Writer, workspaces []types.Workspace) error {
	tw := newTable(out)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tSESSIONS\tLIVE\tDESCRIPTION")
	for _, w := range workspaces {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\n", w.ID, w.Name, workspaceLifecycle(w), w.SessionCount, yesNo(w.HasLiveSession), w.Description)
	}
	return tw.Flush()
}

func printSessions(out io.Writer, sessions []types.Session) error {
	tw := newTable(out)
	fmt.Fprintln(tw, "ID\tNAME\tPASSCODE\tSTATUS\tRUNNING\tENTRY\tUPDATED")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.Name, s.Passcode, session.Lifecycle(s), yesNo(!s.IsStopped), s.EntryMode, formatTime(s.UpdatedAt))
	}
	return tw.Flush()
}

func printRoster(out io.Writer, participants []types.Participant) error {
	online := 0
	names := make([]string, 0, len(participants))
	for _, p := range participants {
		if p.IsOnline {
			online++
			names = append(names, p.DisplayName)
		}
	}
	_, err := fmt.Fprintf(out, "roster: %d online of %d [%s]\n", online, len(participants), strings.Join(names, ", "))
	return err
}

func printModules(out io.Writer, modules []types.ModuleState) error {
	active := make([]string, 0, len(modules))
	for _, m := range modules {
		if m.IsActive {
			active = append(active, fmt.Sprintf("%s %q", m.Kind, m.Title))
		}
	}
	_, err := fmt.Fprintf(out, "modules: %s\n", strings.Join(active, "; "))
	return err
}

func printTimer(out io.Writer, st *types.TimerState) error {
	if st == nil {
		return nil
	}
	state := "paused"
	if st.IsRunning {
		state = "running"
	}
	remaining := time.Duration(st.RemainingSeconds) * time.Second
	_, err := fmt.Fprintf(out, "timer: %s left (%s)\n", remaining, state)
	return err
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

// lockedWriter serializes writes from concurrent watchers
type lockedWriter struct {
	mu  sync.Mutex
	out io.Writer
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.out.Write(p)
}
