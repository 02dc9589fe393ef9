// Package tui implements the terminal scan monitor behind "catalogd scan watch".
package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/mattjoyce/catalogd/internal/events"
	"github.com/mattjoyce/catalogd/internal/scan"
)

const (
	maxEventLog    = 50
	shownEvents    = 10
	healthInterval = 5 * time.Second
	reconnectDelay = 2 * time.Second
)

// ScanRow is the monitor's view of one scan, built from hub events.
type ScanRow struct {
	ID         string
	Roots      []string
	Schedule   string
	Status     scan.Status
	Counts     scan.Counts
	LastPath   string
	StartedAt  time.Time
	FinishedAt time.Time
}

type Model struct {
	ctx    context.Context
	apiURL string
	apiKey string
	theme  Theme

	width  int
	height int

	scans       map[string]*ScanRow
	eventLog    []events.Event
	hubEvents   chan events.Event
	lastEventID int64
	streaming   bool
	lastErr     error

	health healthMsg

	scanTable table.Model
}

// NewMonitor builds a monitor for the API at apiURL. ctx bounds the event
// stream connection.
func NewMonitor(ctx context.Context, apiURL, apiKey string) *Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "ST", Width: 2},
			{Title: "Scan", Width: 10},
			{Title: "Roots", Width: 30},
			{Title: "Files", Width: 10},
			{Title: "Upserts", Width: 10},
			{Title: "Errors", Width: 8},
			{Title: "Elapsed", Width: 10},
		}),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return &Model{
		ctx:       ctx,
		apiURL:    strings.TrimRight(apiURL, "/"),
		apiKey:    apiKey,
		theme:     NewDefaultTheme(),
		scans:     make(map[string]*ScanRow),
		hubEvents: make(chan events.Event, 100),
		scanTable: t,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		subscribeToEvents(m.ctx, m.apiURL, m.apiKey, 0, m.hubEvents),
		receiveNextEvent(m.hubEvents),
		m.pollHealth(0),
		tea.EnterAltScreen,
	)
}

// --- Update ---

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.scanTable.SetWidth(m.width - 6)

	case eventMsg:
		m.streaming = true
		m.handleEvent(events.Event(msg))
		m.updateTable()
		return m, receiveNextEvent(m.hubEvents)

	case sseDisconnectedMsg:
		m.streaming = false
		m.lastErr = msg.err
		return m, tea.Tick(reconnectDelay, func(time.Time) tea.Msg { return reconnectMsg{} })

	case reconnectMsg:
		return m, subscribeToEvents(m.ctx, m.apiURL, m.apiKey, m.lastEventID, m.hubEvents)

	case healthMsg:
		m.health = msg
		m.lastErr = nil
		return m, m.pollHealth(healthInterval)

	case errMsg:
		m.lastErr = msg
		return m, m.pollHealth(healthInterval)
	}

	m.scanTable, cmd = m.scanTable.Update(msg)
	return m, cmd
}

func (m *Model) handleEvent(e events.Event) {
	if e.ID > m.lastEventID {
		m.lastEventID = e.ID
	}
	m.eventLog = append([]events.Event{e}, m.eventLog...)
	if len(m.eventLog) > maxEventLog {
		m.eventLog = m.eventLog[:maxEventLog]
	}

	switch e.Type {
	case events.ScanStarted:
		var data struct {
			ScanID    string    `json:"scan_id"`
			Roots     []string  `json:"roots"`
			Schedule  string    `json:"schedule"`
			StartedAt time.Time `json:"started_at"`
		}
		if err := json.Unmarshal(e.Data, &data); err != nil || data.ScanID == "" {
			return
		}
		row := m.row(data.ScanID)
		row.Roots = data.Roots
		row.Schedule = data.Schedule
		row.StartedAt = data.StartedAt
		if row.Status == "" {
			row.Status = scan.StatusRunning
		}

	case events.ScanProgress, events.ScanDone:
		var n scan.Notification
		if err := json.Unmarshal(e.Data, &n); err != nil || n.JobID == "" {
			return
		}
		row := m.row(n.JobID)
		row.Status = n.Status
		row.Counts = n.Counts
		if n.LastPath != "" {
			row.LastPath = n.LastPath
		}
		if row.StartedAt.IsZero() {
			row.StartedAt = n.StartedAt
		}
		if n.FinishedAt != nil {
			row.FinishedAt = *n.FinishedAt
		}
	}
}

func (m *Model) row(id string) *ScanRow {
	r, ok := m.scans[id]
	if !ok {
		r = &ScanRow{ID: id}
		m.scans[id] = r
	}
	return r
}

// Rows returns the tracked scans, newest first.
func (m *Model) Rows() []*ScanRow {
	out := make([]*ScanRow, 0, len(m.scans))
	for _, r := range m.scans {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *Model) updateTable() {
	var rows []table.Row
	for _, r := range m.Rows() {
		rows = append(rows, m.toRow(r))
	}
	m.scanTable.SetRows(rows)
}

func (m *Model) toRow(r *ScanRow) table.Row {
	statusSym := m.theme.StatusRunning.Render("◉")
	switch r.Status {
	case scan.StatusComplete:
		statusSym = m.theme.StatusOK.Render("●")
	case scan.StatusStopped:
		statusSym = m.theme.StatusStopped.Render("○")
	}
	if r.Counts.Errors > 0 && r.Status.Terminal() {
		statusSym = m.theme.StatusFailed.Render("◑")
	}

	elapsed := "-"
	if !r.StartedAt.IsZero() {
		end := r.FinishedAt
		if end.IsZero() {
			end = time.Now()
		}
		elapsed = end.Sub(r.StartedAt).Round(time.Second).String()
	}

	roots := strings.Join(r.Roots, ",")
	if r.Schedule != "" {
		roots = r.Schedule + ": " + roots
	}

	return table.Row{
		statusSym,
		shortID(r.ID),
		truncate(roots, 30),
		humanize.Comma(r.Counts.FilesSeen),
		humanize.Comma(r.Counts.Upserts),
		humanize.Comma(r.Counts.Errors),
		elapsed,
	}
}

// --- View ---

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	scansView := m.theme.Border.Width(m.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.theme.Title.Render("Scans"),
			m.scanTable.View(),
		),
	)

	eventsView := m.theme.Border.Width(m.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.theme.Title.Render("Event Stream"),
			m.renderEvents(),
		),
	)

	help := m.theme.Help.Render(" [q] Quit • [↑/↓] Scroll Scans")

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(
			lipgloss.Left,
			m.renderHeader(),
			scansView,
			eventsView,
			help,
		),
	)
}

func (m Model) renderHeader() string {
	status := m.theme.StatusOK.Render("RUNNING")
	switch {
	case m.lastErr != nil:
		status = m.theme.StatusFailed.Render("UNREACHABLE")
	case m.health.Status != "ok" && m.health.Status != "":
		status = m.theme.StatusFailed.Render("DEGRADED")
	}

	stream := m.theme.Dim.Render("connecting")
	if m.streaming {
		stream = m.theme.StatusOK.Render("live")
	}

	uptime := time.Duration(m.health.UptimeSeconds) * time.Second
	items := []string{
		fmt.Sprintf("Status: %s", status),
		fmt.Sprintf("Uptime: %s", uptime.String()),
		fmt.Sprintf("Live scans: %d", m.health.LiveScans),
		fmt.Sprintf("Catalog: %s files", humanize.Comma(m.health.CatalogFiles)),
		fmt.Sprintf("Events: %s", stream),
	}

	cellWidth := (m.width - 4) / len(items)
	cells := make([]string, len(items))
	for i, item := range items {
		cells[i] = lipgloss.NewStyle().Width(cellWidth).Render(item)
	}
	return m.theme.Border.Width(m.width - 4).Render(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
}

func (m Model) renderEvents() string {
	var lines []string
	for i, e := range m.eventLog {
		if i >= shownEvents {
			break
		}
		lines = append(lines, m.formatEvent(e))
	}
	if len(lines) == 0 {
		return m.theme.Dim.Render("  Waiting for events...")
	}
	return lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n"))
}

func (m Model) formatEvent(e events.Event) string {
	ts := m.theme.Dim.Render(e.At.Format("15:04:05"))

	typeStyle := m.theme.Dim
	switch e.Type {
	case events.ScanStarted:
		typeStyle = m.theme.StatusRunning
	case events.ScanDone:
		typeStyle = m.theme.StatusOK
	case events.JanitorExecuted, events.ScheduleTriggered, events.ScheduleSkipped:
		typeStyle = m.theme.Highlight
	}

	return fmt.Sprintf("%s %s %s", ts, typeStyle.Render(fmt.Sprintf("%-20s", e.Type)), eventDesc(e))
}

func eventDesc(e events.Event) string {
	data := make(map[string]any)
	_ = json.Unmarshal(e.Data, &data)

	var parts []string
	if id, ok := data["scan_id"].(string); ok {
		parts = append(parts, fmt.Sprintf("[%s]", shortID(id)))
	}
	if sched, ok := data["schedule"].(string); ok && sched != "" {
		parts = append(parts, sched)
	}
	if status, ok := data["status"].(string); ok {
		parts = append(parts, status)
	}
	if counts, ok := data["counts"].(map[string]any); ok {
		if seen, ok := counts["files_seen"].(float64); ok {
			parts = append(parts, humanize.Comma(int64(seen))+" files")
		}
	}
	if freed, ok := data["space_freed"].(float64); ok {
		parts = append(parts, humanize.IBytes(uint64(freed))+" freed")
	}
	if reason, ok := data["reason"].(string); ok {
		parts = append(parts, reason)
	}

	if len(parts) == 0 {
		return truncate(string(e.Data), 60)
	}
	return strings.Join(parts, " ")
}

// --- Commands ---

func (m Model) pollHealth(after time.Duration) tea.Cmd {
	if after <= 0 {
		return func() tea.Msg { return fetchHealth(m.apiURL, m.apiKey) }
	}
	return tea.Tick(after, func(time.Time) tea.Msg {
		return fetchHealth(m.apiURL, m.apiKey)
	})
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
