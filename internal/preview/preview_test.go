package preview

import (
	"strings"
	"testing"

	"github.com/nicosuave/memex/internal/record"
	"github.com/nicosuave/memex/internal/session"
)

func sampleRecords() []record.Record {
	return []record.Record{
		{DocID: 1, SessionID: "s1", TurnID: 0, TS: 10, Role: "user", Text: "can you fix the flaky test"},
		{DocID: 2, SessionID: "s1", TurnID: 1, TS: 20, Role: "tool_use", Text: "running go test ./..."},
		{DocID: 3, SessionID: "s1", TurnID: 2, TS: 30, Role: "assistant", Text: "the flaky test is now fixed"},
		{DocID: 4, SessionID: "s1", TurnID: 3, TS: 40, Role: "user", Text: "thanks"},
	}
}

func TestBuildDetailLinesHistoryModeIncludesAllNonToolRecords(t *testing.T) {
	lines := BuildDetailLines(sampleRecords(), session.Summary{SessionID: "s1", Project: "p"}, ModeHistory, "", false)

	var recordTexts []string
	for _, l := range lines {
		if l.Kind == KindRecord {
			recordTexts = append(recordTexts, l.Text)
		}
	}
	if len(recordTexts) != 3 {
		t.Fatalf("expected 3 non-tool records, got %d: %v", len(recordTexts), recordTexts)
	}
	for _, text := range recordTexts {
		if strings.Contains(text, "go test") {
			t.Fatalf("tool_use record leaked into history view: %q", text)
		}
	}
}

func TestBuildDetailLinesHistoryModeShowToolsIncludesToolRecords(t *testing.T) {
	lines := BuildDetailLines(sampleRecords(), session.Summary{SessionID: "s1"}, ModeHistory, "", true)
	found := false
	for _, l := range lines {
		if l.Kind == KindRecord && strings.Contains(l.Text, "go test") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected tool record to appear when showTools is true")
	}
}

func TestBuildDetailLinesMatchesModeHighlightsContextWindow(t *testing.T) {
	lines := BuildDetailLines(sampleRecords(), session.Summary{SessionID: "s1"}, ModeMatches, "flaky", true)

	var highlighted []string
	for _, l := range lines {
		if l.Kind == KindRecord && l.Highlight {
			highlighted = append(highlighted, l.Text)
		}
	}
	// "flaky" appears in records 0 and 2 (0-indexed); with
	// ContextAroundMatch=1, the context windows are [0,1] and [1,3],
	// deduplicated, covering all 4 records.
	if len(highlighted) != 4 {
		t.Fatalf("expected 4 highlighted context records, got %d: %v", len(highlighted), highlighted)
	}
}

func TestBuildDetailLinesMatchesModeNoMatchesInToolOnlyCase(t *testing.T) {
	records := []record.Record{
		{DocID: 1, SessionID: "s1", TurnID: 0, TS: 10, Role: "tool_use", Text: "grep needle haystack"},
		{DocID: 2, SessionID: "s1", TurnID: 1, TS: 20, Role: "user", Text: "unrelated"},
	}
	lines := BuildDetailLines(records, session.Summary{SessionID: "s1"}, ModeMatches, "needle", false)
	foundNote := false
	for _, l := range lines {
		if l.Kind == KindNote && strings.Contains(l.Text, "only in tool messages") {
			foundNote = true
		}
	}
	if !foundNote {
		t.Fatalf("expected the tool-only guidance note, got %+v", lines)
	}
}

func TestBuildDetailLinesMatchesModeNoLiteralMatchNote(t *testing.T) {
	records := []record.Record{
		{DocID: 1, SessionID: "s1", TurnID: 0, TS: 10, Role: "user", Text: "something else entirely"},
	}
	lines := BuildDetailLines(records, session.Summary{SessionID: "s1"}, ModeMatches, "zzzznomatch", false)
	foundNote := false
	for _, l := range lines {
		if l.Kind == KindNote && strings.Contains(l.Text, "no literal matches") {
			foundNote = true
		}
	}
	if !foundNote {
		t.Fatalf("expected the no-literal-match guidance note, got %+v", lines)
	}
}

func TestBuildDetailLinesEmptySession(t *testing.T) {
	lines := BuildDetailLines(nil, session.Summary{SessionID: "s1"}, ModeHistory, "", false)
	found := false
	for _, l := range lines {
		if l.Kind == KindNote && l.Text == "no records in session" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected empty-session note, got %+v", lines)
	}
}

func TestBuildMatchersDropsShortTermsAndDedupes(t *testing.T) {
	matchers := BuildMatchers("a bb BB cc!")
	if len(matchers) != 2 {
		t.Fatalf("expected 2 matchers (bb deduped case-insensitively, 'a' dropped as too short), got %d", len(matchers))
	}
}

func TestMatchesAnyIsCaseInsensitive(t *testing.T) {
	matchers := BuildMatchers("Flaky")
	if !MatchesAny("a FLAKY test", matchers) {
		t.Fatalf("expected case-insensitive match")
	}
	if MatchesAny("nothing here", matchers) {
		t.Fatalf("expected no match")
	}
}
