// Package ui implements the browse/search/preview terminal UI.
// Grounded on the teacher's internal/ui/tui.go bubbletea tea.Model
// lifecycle and lipgloss styling idiom; the application state machine
// itself (focus, preview mode, source filter, resume-in-external-tool)
// is grounded on original_source/src/tui.rs's App struct and its
// kickoff_index_refresh/kickoff_search/update_detail dispatch
// functions, reimplemented as bubbletea Update(msg tea.Msg) cases
// instead of ratatui's direct crossterm event loop.
package ui

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nicosuave/memex/internal/async"
	"github.com/nicosuave/memex/internal/ingest"
	"github.com/nicosuave/memex/internal/memexconfig"
	"github.com/nicosuave/memex/internal/preview"
	"github.com/nicosuave/memex/internal/record"
	"github.com/nicosuave/memex/internal/search"
	"github.com/nicosuave/memex/internal/session"
	"github.com/nicosuave/memex/internal/store"
)

// Focus names which pane receives key input.
type Focus int

const (
	FocusSearch Focus = iota
	FocusList
)

// statusVisibility is how long a status message stays on screen,
// matching SPEC_FULL.md §7's "shown for ≥4s" footer requirement.
const statusVisibility = 4 * time.Second

// indexUpdateMsg and searchUpdateMsg wrap async.Controller channel
// values as tea.Msg, the bridge pattern bubbletea expects for
// externally-driven channels.
type indexUpdateMsg async.IndexUpdate
type searchUpdateMsg async.SearchUpdate
type statusExpiredMsg struct{ seq uint64 }

// Model is the bubbletea model for the browse/search/preview TUI.
type Model struct {
	ctrl   *async.Controller
	ft     *store.FullTextIndex
	cfg    memexconfig.UserConfig
	styles Styles

	width, height int

	focus       Focus
	searchInput textinput.Model
	spinner     spinner.Model

	source      record.Source
	sourceSet   bool
	project     string
	showTools   bool
	previewMode preview.Mode

	results  []session.Summary
	selected int

	detailLines    []preview.DetailLine
	lastDetailFor  string
	lastDetailMode preview.Mode
	lastDetailTool bool

	status        string
	statusSeq     uint64
	lastIssuedSeq uint64

	indexing bool

	quitting bool
}

func New(ctrl *async.Controller, ft *store.FullTextIndex, cfg memexconfig.UserConfig, styles Styles) *Model {
	ti := textinput.New()
	ti.Placeholder = "search…"
	ti.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime))

	return &Model{
		ctrl:        ctrl,
		ft:          ft,
		cfg:         cfg,
		styles:      styles,
		searchInput: ti,
		spinner:     s,
		focus:       FocusSearch,
		previewMode: preview.ModeMatches,
		width:       80,
		height:      24,
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		waitForIndexUpdate(m.ctrl),
		waitForSearchUpdate(m.ctrl),
		m.triggerSearch(),
	)
}

func waitForIndexUpdate(ctrl *async.Controller) tea.Cmd {
	return func() tea.Msg {
		return indexUpdateMsg(<-ctrl.IndexUpdates)
	}
}

func waitForSearchUpdate(ctrl *async.Controller) tea.Cmd {
	return func() tea.Msg {
		return searchUpdateMsg(<-ctrl.SearchUpdates)
	}
}

func (m *Model) triggerSearch() tea.Cmd {
	opts := search.QueryOptions{
		Query:  m.searchInput.Value(),
		Limit:  50,
		Filter: m.filter(),
		Alpha:  m.cfg.FusionAlphaOrDefault(),
	}
	m.lastIssuedSeq = m.ctrl.Search(context.Background(), opts)
	return nil
}

// sourceCycle is the closed rotation "s" steps through: unfiltered,
// then each recognized source in turn.
var sourceCycle = []record.Source{record.SourceClaude, record.SourceCodexSession, record.SourceCodexHistory}

func (m *Model) cycleSource() {
	if !m.sourceSet {
		m.source = sourceCycle[0]
		m.sourceSet = true
		return
	}
	for i, s := range sourceCycle {
		if s == m.source {
			if i == len(sourceCycle)-1 {
				m.sourceSet = false
				return
			}
			m.source = sourceCycle[i+1]
			return
		}
	}
	m.sourceSet = false
}

func (m *Model) filter() store.Filter {
	f := store.Filter{Project: m.project}
	if m.sourceSet {
		f.Sources = []record.Source{m.source}
	}
	return f
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case indexUpdateMsg:
		return m.handleIndexUpdate(async.IndexUpdate(msg))

	case searchUpdateMsg:
		return m.handleSearchUpdate(async.SearchUpdate(msg))

	case statusExpiredMsg:
		if msg.seq == m.statusSeq {
			m.status = ""
		}
		return m, nil
	}

	return m, nil
}

func (m *Model) handleIndexUpdate(u async.IndexUpdate) (tea.Model, tea.Cmd) {
	var statusCmd tea.Cmd
	switch u.Kind {
	case async.IndexStarted:
		m.indexing = true
		statusCmd = m.setStatus("indexing...")
	case async.IndexSkipped:
		m.indexing = false
		statusCmd = m.setStatus("index up to date")
	case async.IndexDone:
		m.indexing = false
		statusCmd = m.setStatus(fmt.Sprintf("indexed %d records, embedded %d", u.Report.RecordsAdded, u.Report.RecordsEmbedded))
	case async.IndexError:
		m.indexing = false
		statusCmd = m.setStatus("index error: " + u.Err.Error())
	}
	return m, tea.Batch(waitForIndexUpdate(m.ctrl), statusCmd)
}

func (m *Model) handleSearchUpdate(u async.SearchUpdate) (tea.Model, tea.Cmd) {
	if u.Seq < m.lastIssuedSeq {
		// Superseded by a newer search already in flight; per spec.md
		// §5 a stale update is benign and simply discarded.
		return m, waitForSearchUpdate(m.ctrl)
	}
	if u.Err != nil {
		statusCmd := m.setStatus("search error: " + u.Err.Error())
		return m, tea.Batch(waitForSearchUpdate(m.ctrl), statusCmd)
	}
	m.results = u.Sessions
	if m.selected >= len(m.results) {
		m.selected = 0
	}
	m.invalidateDetail()
	return m, waitForSearchUpdate(m.ctrl)
}

func (m *Model) setStatus(s string) tea.Cmd {
	m.status = s
	m.statusSeq++
	seq := m.statusSeq
	return tea.Tick(statusVisibility, func(time.Time) tea.Msg {
		return statusExpiredMsg{seq: seq}
	})
}

func (m *Model) invalidateDetail() {
	m.lastDetailFor = ""
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "tab":
		if m.focus == FocusSearch {
			m.focus = FocusList
		} else {
			m.focus = FocusSearch
		}
		return m, nil
	case "t":
		if m.focus == FocusList {
			m.showTools = !m.showTools
			m.invalidateDetail()
			return m, nil
		}
	case "p":
		if m.focus == FocusList {
			m.previewMode = togglePreviewMode(m.previewMode)
			m.invalidateDetail()
			return m, nil
		}
	case "i":
		m.ctrl.TriggerIndex(context.Background(), ingest.Options{})
		return m, nil
	case "s":
		if m.focus == FocusList {
			m.cycleSource()
			return m, m.triggerSearch()
		}
	case "r":
		if m.focus == FocusList && m.selected < len(m.results) {
			return m, m.resumeCmd(m.results[m.selected])
		}
	case "up", "ctrl+p":
		if m.focus == FocusList && m.selected > 0 {
			m.selected--
			m.invalidateDetail()
		}
		return m, nil
	case "down", "ctrl+n":
		if m.focus == FocusList && m.selected < len(m.results)-1 {
			m.selected++
			m.invalidateDetail()
		}
		return m, nil
	case "q":
		if m.focus == FocusList {
			m.quitting = true
			return m, tea.Quit
		}
	case "enter":
		if m.focus == FocusSearch {
			return m, m.triggerSearch()
		}
	}

	if m.focus == FocusSearch {
		var cmd tea.Cmd
		m.searchInput, cmd = m.searchInput.Update(msg)
		return m, tea.Batch(cmd, m.triggerSearch())
	}
	return m, nil
}

// ensureDetail recomputes detailLines when the selected session, its
// query, preview mode, or tool visibility changed since the last
// render — matching original_source/src/tui.rs's last_detail_*
// cache-invalidation fields, so switching back to an already-rendered
// session is free.
func (m *Model) ensureDetail() {
	if len(m.results) == 0 {
		m.detailLines = nil
		return
	}
	if m.selected >= len(m.results) {
		m.selected = 0
	}
	s := m.results[m.selected]

	query := m.searchInput.Value()
	cacheKey := s.SessionID + "\x00" + query
	if m.lastDetailFor == cacheKey && m.lastDetailMode == m.previewMode && m.lastDetailTool == m.showTools {
		return
	}

	records, err := m.ft.RecordsBySessionID(s.SessionID)
	if err != nil {
		m.detailLines = []preview.DetailLine{{Kind: preview.KindNote, Text: "error loading session: " + err.Error()}}
		return
	}
	m.detailLines = preview.BuildDetailLines(records, s, m.previewMode, query, m.showTools)
	m.lastDetailFor = cacheKey
	m.lastDetailMode = m.previewMode
	m.lastDetailTool = m.showTools
}

func togglePreviewMode(mode preview.Mode) preview.Mode {
	if mode == preview.ModeMatches {
		return preview.ModeHistory
	}
	return preview.ModeMatches
}

// resumeCmd launches the configured resume command for s's source,
// suspending the TUI via tea.ExecProcess — the bubbletea equivalent of
// original_source/src/tui.rs's run_external_command, which manually
// left and re-entered raw mode around std::process::Command.
func (m *Model) resumeCmd(s session.Summary) tea.Cmd {
	template := m.cfg.ResumeCmd(s.Source == record.SourceClaude)
	command := expandResumeTemplate(template, s)
	c := exec.Command("sh", "-lc", command)
	return tea.ExecProcess(c, func(err error) tea.Msg {
		if err != nil {
			return statusExpiredMsg{} // falls through to View(); error ignored, matching original's best-effort println
		}
		return nil
	})
}

// expandResumeTemplate substitutes the {session_id}/{project}/{source}/
// {source_path} placeholders, matching original_source/src/tui.rs's
// expand_resume_template exactly.
func expandResumeTemplate(template string, s session.Summary) string {
	r := strings.NewReplacer(
		"{session_id}", s.SessionID,
		"{project}", s.Project,
		"{source}", string(s.Source),
		"{source_path}", s.SourcePath,
	)
	return r.Replace(template)
}
