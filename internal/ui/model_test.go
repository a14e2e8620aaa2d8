package ui

import (
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nicosuave/memex/internal/async"
	"github.com/nicosuave/memex/internal/embed"
	"github.com/nicosuave/memex/internal/ingest"
	"github.com/nicosuave/memex/internal/memexconfig"
	"github.com/nicosuave/memex/internal/preview"
	"github.com/nicosuave/memex/internal/record"
	"github.com/nicosuave/memex/internal/search"
	"github.com/nicosuave/memex/internal/session"
	"github.com/nicosuave/memex/internal/store"
)

func newTestModel(t *testing.T) *Model {
	t.Helper()
	dir := t.TempDir()

	ft, err := store.OpenFullText(filepath.Join(dir, "index"))
	if err != nil {
		t.Fatalf("OpenFullText: %v", err)
	}
	t.Cleanup(func() { _ = ft.Close() })

	vs, err := store.OpenVectorStore(filepath.Join(dir, "vectors"))
	if err != nil {
		t.Fatalf("OpenVectorStore: %v", err)
	}
	t.Cleanup(func() { _ = vs.Close() })

	embedder := embed.NewStaticEmbedder(32, "potion")
	t.Cleanup(func() { _ = embedder.Close() })

	orch := ingest.New(filepath.Join(dir, "state"), ft, vs, embedder)
	eng := search.NewEngine(ft, vs, embedder)
	agg := session.NewAggregator(ft)
	ctrl := async.NewController(orch, eng, agg, filepath.Join(dir, "index"))

	return New(ctrl, ft, memexconfig.UserConfig{}, DefaultStyles())
}

func TestTabTogglesFocus(t *testing.T) {
	m := newTestModel(t)
	if m.focus != FocusSearch {
		t.Fatalf("expected initial focus on search")
	}
	model, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = model.(*Model)
	if m.focus != FocusList {
		t.Fatalf("expected tab to move focus to list")
	}
	model, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = model.(*Model)
	if m.focus != FocusSearch {
		t.Fatalf("expected tab to move focus back to search")
	}
}

func TestListNavigationStaysInBounds(t *testing.T) {
	m := newTestModel(t)
	m.focus = FocusList
	m.results = []session.Summary{{SessionID: "a"}, {SessionID: "b"}}

	model, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = model.(*Model)
	if m.selected != 1 {
		t.Fatalf("expected selected=1, got %d", m.selected)
	}
	model, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = model.(*Model)
	if m.selected != 1 {
		t.Fatalf("expected selected to stay at last index, got %d", m.selected)
	}
	model, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = model.(*Model)
	if m.selected != 0 {
		t.Fatalf("expected selected=0 after up, got %d", m.selected)
	}
	model, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = model.(*Model)
	if m.selected != 0 {
		t.Fatalf("expected selected to stay at 0, got %d", m.selected)
	}
}

func TestToolToggleTogglesShowTools(t *testing.T) {
	m := newTestModel(t)
	m.focus = FocusList
	if m.showTools {
		t.Fatalf("expected showTools to start false")
	}
	model, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("t")})
	m = model.(*Model)
	if !m.showTools {
		t.Fatalf("expected 't' to toggle showTools on")
	}
}

func TestPreviewModeToggle(t *testing.T) {
	m := newTestModel(t)
	m.focus = FocusList
	if m.previewMode != preview.ModeMatches {
		t.Fatalf("expected default preview mode Matches")
	}
	model, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	m = model.(*Model)
	if m.previewMode != preview.ModeHistory {
		t.Fatalf("expected 'p' to toggle to History mode")
	}
}

func TestSourceCyclesThroughClosedSetThenUnfiltered(t *testing.T) {
	m := newTestModel(t)
	if m.sourceSet {
		t.Fatalf("expected source unset initially")
	}
	m.cycleSource()
	if !m.sourceSet || m.source != record.SourceClaude {
		t.Fatalf("expected first cycle to select claude, got %v/%v", m.sourceSet, m.source)
	}
	m.cycleSource()
	if m.source != record.SourceCodexSession {
		t.Fatalf("expected second cycle to select codex_session, got %v", m.source)
	}
	m.cycleSource()
	if m.source != record.SourceCodexHistory {
		t.Fatalf("expected third cycle to select codex_history, got %v", m.source)
	}
	m.cycleSource()
	if m.sourceSet {
		t.Fatalf("expected fourth cycle to return to unfiltered")
	}
}

func TestExpandResumeTemplateSubstitutesAllPlaceholders(t *testing.T) {
	s := session.Summary{
		SessionID:  "sess-1",
		Project:    "myproj",
		Source:     record.SourceClaude,
		SourcePath: "/home/user/.claude/projects/myproj/sess-1.jsonl",
	}
	got := expandResumeTemplate("claude --resume {session_id} in {project} ({source}) at {source_path}", s)
	want := "claude --resume sess-1 in myproj (claude) at /home/user/.claude/projects/myproj/sess-1.jsonl"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestQuitKeyFromListFocus(t *testing.T) {
	m := newTestModel(t)
	m.focus = FocusList
	model, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	m = model.(*Model)
	if !m.quitting {
		t.Fatalf("expected 'q' to set quitting in list focus")
	}
	if cmd == nil {
		t.Fatalf("expected tea.Quit command")
	}
}

func TestQKeyTypesIntoSearchBoxWhenFocused(t *testing.T) {
	m := newTestModel(t)
	m.focus = FocusSearch
	model, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	m = model.(*Model)
	if m.quitting {
		t.Fatalf("expected 'q' to be typed into the search box, not quit, while search is focused")
	}
	if m.searchInput.Value() != "q" {
		t.Fatalf("expected search input to contain 'q', got %q", m.searchInput.Value())
	}
}
