package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/seniordevguy/qobuz-favorites-downloader/internal/models"
	"github.com/seniordevguy/qobuz-favorites-downloader/internal/status"
)

// pollInterval is how often the watch view refreshes the daemon snapshot.
const pollInterval = 2 * time.Second

// StatusClient is the slice of the dashboard client the watch view needs.
type StatusClient interface {
	Status(ctx context.Context) (*status.Snapshot, error)
	TriggerCycle(ctx context.Context) (bool, error)
}

type snapshotMsg struct {
	snap *status.Snapshot
	err  error
}

type triggerMsg struct {
	accepted bool
	err      error
}

type tickMsg time.Time

// Model represents the watch view state.
type Model struct {
	ctx     context.Context
	client  StatusClient
	snap    *status.Snapshot
	err     error
	notice  string
	spinner spinner.Model
	help    help.Model
	keys    keyMap
	width   int
}

// NewModel creates the watch view over a dashboard client.
func NewModel(ctx context.Context, client StatusClient) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.title

	return Model{
		ctx:     ctx,
		client:  client,
		spinner: sp,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init implements [tea.Model].
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetchStatus(), tick())
}

// Update implements [tea.Model].
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.refresh):
			return m, m.fetchStatus()
		case key.Matches(msg, m.keys.trigger):
			return m, m.triggerCycle()
		}
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.fetchStatus(), tick())

	case snapshotMsg:
		// Keep the last good snapshot visible through transient poll failures.
		if msg.err == nil {
			m.snap = msg.snap
		}
		m.err = msg.err
		return m, nil

	case triggerMsg:
		switch {
		case msg.err != nil:
			m.notice = fmt.Sprintf("trigger failed: %v", msg.err)
		case msg.accepted:
			m.notice = "cycle triggered"
		default:
			m.notice = "already running"
		}
		return m, m.fetchStatus()

	default:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
}

// View implements [tea.Model].
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(styles.title.Render("qobuz favorites downloader"))
	b.WriteString("\n")

	switch {
	case m.err != nil:
		b.WriteString(styles.err.Render(fmt.Sprintf("daemon unreachable: %v", m.err)))
		b.WriteString("\n")
	case m.snap == nil:
		b.WriteString(m.spinner.View() + " connecting...\n")
	default:
		b.WriteString(m.renderSnapshot())
	}

	if m.notice != "" {
		b.WriteString("\n" + styles.warn.Render(m.notice) + "\n")
	}

	b.WriteString("\n" + m.help.View(m.keys))
	return b.String()
}

func (m Model) renderSnapshot() string {
	var b strings.Builder
	snap := m.snap

	state := snap.CurrentStatus
	if snap.IsRunning {
		state = m.spinner.View() + " " + state
	}
	b.WriteString(fmt.Sprintf("status:    %s\n", state))
	b.WriteString(fmt.Sprintf("last run:  %s\n", snap.LastRun))
	b.WriteString(fmt.Sprintf("next run:  %s\n", snap.NextRun))

	if snap.CurrentItem != "" {
		b.WriteString(fmt.Sprintf("current:   %s\n", snap.CurrentItem))
	}

	b.WriteString("\n")
	rows := []struct {
		kind       models.Kind
		downloaded int
		failed     int
	}{
		{models.KindTrack, snap.Stats.TracksDownloaded, snap.Stats.TracksFailed},
		{models.KindAlbum, snap.Stats.AlbumsDownloaded, snap.Stats.AlbumsFailed},
		{models.KindArtist, snap.Stats.ArtistsDownloaded, snap.Stats.ArtistsFailed},
	}
	for _, row := range rows {
		line := fmt.Sprintf("%-8s %s downloaded  %s failed",
			row.kind.Plural(),
			styles.ok.Render(fmt.Sprint(row.downloaded)),
			styles.err.Render(fmt.Sprint(row.failed)),
		)
		if count, ok := snap.FavoritesCount[row.kind.Plural()]; ok {
			line += styles.help.Render(fmt.Sprintf("  (%d favorites)", count))
		}
		b.WriteString(line + "\n")
	}

	if snap.Stats.LastError != "" {
		b.WriteString("\n" + styles.err.Render("last error: "+snap.Stats.LastError) + "\n")
	}

	return b.String()
}

func (m Model) fetchStatus() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, 5*time.Second)
		defer cancel()
		snap, err := m.client.Status(ctx)
		return snapshotMsg{snap: snap, err: err}
	}
}

func (m Model) triggerCycle() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, 5*time.Second)
		defer cancel()
		accepted, err := m.client.TriggerCycle(ctx)
		return triggerMsg{accepted: accepted, err: err}
	}
}

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
