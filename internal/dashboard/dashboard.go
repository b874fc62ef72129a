// Package dashboard implements the terminal observer: a bubbletea program
// that polls the stats snapshot on an interval and renders per-user queue
// depth, in-flight job, and global counters.
package dashboard

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ollamamq/ollamamq/internal/registry"
	"github.com/ollamamq/ollamamq/internal/stats"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
)

const pollInterval = 500 * time.Millisecond

type tickMsg time.Time

type snapshotMsg stats.Snapshot

type buildFunc func() stats.Snapshot

// Model is the bubbletea model backing the dashboard.
type Model struct {
	build buildFunc
	snap  stats.Snapshot
}

// New constructs a dashboard model over the given registry, global
// counters, and scheduler in-flight view.
func New(reg *registry.Registry, global *stats.Global, sched stats.InFlightSource) Model {
	return Model{
		build: func() stats.Snapshot { return stats.Build(reg, global, sched) },
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.poll(), tick())
}

func (m Model) poll() tea.Cmd {
	return func() tea.Msg { return snapshotMsg(m.build()) }
}

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tickMsg:
		return m, tea.Batch(m.poll(), tick())
	case snapshotMsg:
		m.snap = stats.Snapshot(msg)
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("ollamamq dispatcher") + "\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("uptime %s", m.snap.Uptime.Round(time.Second))) + "\n\n")

	g := m.snap.Global
	b.WriteString(fmt.Sprintf("seen=%d completed=%d cancelled=%d failed=%d\n\n", g.Seen, g.Completed, g.Cancelled, g.Failed))

	if m.snap.InFlight.Active {
		b.WriteString(activeStyle.Render(fmt.Sprintf("in-flight: %s (seq %d)", m.snap.InFlight.User, m.snap.InFlight.Seq)) + "\n\n")
	} else {
		b.WriteString(dimStyle.Render("in-flight: none") + "\n\n")
	}

	users := make([]registry.UserSnapshot, len(m.snap.Users))
	copy(users, m.snap.Users)
	sort.Slice(users, func(i, j int) bool { return users[i].User < users[j].User })

	b.WriteString(headerStyle.Render(fmt.Sprintf("%-20s %8s %10s %10s %10s", "user", "pending", "enqueued", "completed", "last seen")) + "\n")
	for _, u := range users {
		last := "-"
		if !u.LastActivity.IsZero() {
			last = time.Since(u.LastActivity).Round(time.Second).String() + " ago"
		}
		b.WriteString(fmt.Sprintf("%-20s %8d %10d %10d %10s\n", u.User, u.PendingDepth, u.TotalEnqueued, u.TotalCompleted, last))
	}

	b.WriteString("\n" + dimStyle.Render("press q to quit (dashboard only; server keeps running)"))
	return b.String()
}

// Run starts the bubbletea program; it blocks until the user quits.
func Run(reg *registry.Registry, global *stats.Global, sched stats.InFlightSource) error {
	p := tea.NewProgram(New(reg, global, sched))
	_, err := p.Run()
	return err
}
