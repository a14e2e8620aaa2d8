// Package preview implements Preview Assembly: turning a session's
// ordered records into a flat list of detail lines for display, in
// either "matches" mode (records near a query match, with context) or
// "history" mode (the full, unfiltered transcript). Grounded on
// original_source/src/tui.rs's build_detail_lines/build_matchers/
// matches_any/summarize/is_tool_role, stripped of ratatui styling
// (Line/Span/Color) since terminal styling belongs to the UI layer,
// not this package.
package preview

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/nicosuave/memex/internal/record"
	"github.com/nicosuave/memex/internal/session"
)

// MaxMessageChars bounds how much of one record's text is shown before
// it is summarized with an ellipsis.
const MaxMessageChars = 4000

// ContextAroundMatch is the number of neighboring records shown on
// either side of a literal match in Matches mode.
const ContextAroundMatch = 1

// DetailTailLines bounds how many of the most recent records are shown
// in Matches mode when the query is empty (e.g. filters-only search).
const DetailTailLines = 10

// Mode selects between a match-centered view and the full history.
type Mode int

const (
	ModeMatches Mode = iota
	ModeHistory
)

// Kind distinguishes the structural role of a DetailLine so the UI
// layer can style it without string-sniffing.
type Kind int

const (
	KindHeader Kind = iota
	KindSnippet
	KindRecord
	KindNote
	KindBlank
)

// DetailLine is one line of assembled preview output.
type DetailLine struct {
	Kind      Kind
	Text      string
	Role      string // set on KindRecord lines
	TS        int64  // set on KindRecord lines
	Highlight bool   // true for lines inside a match context window
}

// BuildDetailLines assembles the preview for one session's records,
// per SPEC_FULL.md §4.7. records need not be pre-sorted; they are
// ordered by (turn_id, ts, doc_id) internally, matching the total
// order invariant in record.Less (session_id is constant within a
// session's record set, so sorting by Less is equivalent to the
// teacher's turn_id/ts/doc_id chain).
func BuildDetailLines(records []record.Record, summary session.Summary, mode Mode, query string, showTools bool) []DetailLine {
	sorted := make([]record.Record, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.TurnID != b.TurnID {
			return a.TurnID < b.TurnID
		}
		if a.TS != b.TS {
			return a.TS < b.TS
		}
		return a.DocID < b.DocID
	})

	lines := []DetailLine{
		{Kind: KindHeader, Text: headerText(summary)},
	}
	if len(sorted) == 0 {
		return append(lines, DetailLine{Kind: KindNote, Text: "no records in session"})
	}
	if summary.Snippet != "" {
		lines = append(lines, DetailLine{Kind: KindSnippet, Text: "top hit: " + summary.Snippet})
	}
	lines = append(lines, DetailLine{Kind: KindBlank})

	switch mode {
	case ModeMatches:
		lines = append(lines, matchesLines(sorted, query, showTools)...)
	case ModeHistory:
		for _, r := range sorted {
			if !showTools && record.IsToolRole(r.Role) {
				continue
			}
			lines = append(lines, recordLines(r, false)...)
		}
	}
	return lines
}

func headerText(s session.Summary) string {
	return "session " + s.SessionID + "  " + s.Project + "  " + string(s.Source)
}

func matchesLines(records []record.Record, query string, showTools bool) []DetailLine {
	query = strings.TrimSpace(query)
	if query == "" {
		start := 0
		if len(records) > DetailTailLines {
			start = len(records) - DetailTailLines
		}
		var out []DetailLine
		for _, r := range records[start:] {
			out = append(out, recordLines(r, false)...)
		}
		return out
	}

	matchers := BuildMatchers(query)
	if len(matchers) == 0 {
		return []DetailLine{{Kind: KindNote, Text: "no valid query terms"}}
	}

	matchesAll := false
	matchesNonTools := false
	for _, r := range records {
		if MatchesAny(r.Text, matchers) {
			matchesAll = true
			if !record.IsToolRole(r.Role) {
				matchesNonTools = true
			}
		}
	}

	var indices []int
	for i, r := range records {
		if !showTools && record.IsToolRole(r.Role) {
			continue
		}
		if MatchesAny(r.Text, matchers) {
			indices = append(indices, i)
		}
	}

	if len(indices) == 0 {
		switch {
		case !matchesAll:
			return []DetailLine{{Kind: KindNote, Text: "no literal matches (search matched via tokenizer)"}}
		case !showTools && !matchesNonTools:
			return []DetailLine{{Kind: KindNote, Text: "matches only in tool messages (press t to show)"}}
		default:
			return []DetailLine{{Kind: KindNote, Text: "no matches in session"}}
		}
	}

	var out []DetailLine
	lastAdded := -1
	haveLast := false
	for _, idx := range indices {
		start := idx - ContextAroundMatch
		if start < 0 {
			start = 0
		}
		end := idx + ContextAroundMatch
		if end > len(records)-1 {
			end = len(records) - 1
		}
		for i := start; i <= end; i++ {
			r := records[i]
			if !showTools && record.IsToolRole(r.Role) {
				continue
			}
			if haveLast && i <= lastAdded {
				continue
			}
			lastAdded = i
			haveLast = true
			out = append(out, recordLines(r, true)...)
		}
		out = append(out, DetailLine{Kind: KindBlank})
	}
	return out
}

func recordLines(r record.Record, highlight bool) []DetailLine {
	role := r.Role
	if role == "" {
		role = "unknown"
	}
	text := r.Text
	if len(text) > MaxMessageChars {
		text = session.Summarize(text, MaxMessageChars)
	}
	if text == "" {
		text = "<empty>"
	}
	return []DetailLine{
		{Kind: KindRecord, Text: text, Role: role, TS: r.TS, Highlight: highlight},
		{Kind: KindBlank},
	}
}

// BuildMatchers compiles query into a deduplicated set of
// case-insensitive literal-substring matchers, one per whitespace-
// separated term with fewer than 2 alphanumeric characters dropped.
// Grounded on the teacher's regex-escape-per-term build_matchers, kept
// as compiled regexes (rather than plain substring search) so it stays
// ready to grow query syntax without a rewrite.
func BuildMatchers(query string) []*regexp.Regexp {
	seen := make(map[string]bool)
	var out []*regexp.Regexp
	for _, part := range strings.Fields(query) {
		cleaned := strings.TrimFunc(part, func(r rune) bool { return !isAlnum(r) })
		if len([]rune(cleaned)) < 2 {
			continue
		}
		key := strings.ToLower(cleaned)
		if seen[key] {
			continue
		}
		seen[key] = true
		re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(key))
		if err != nil {
			continue
		}
		out = append(out, re)
	}
	return out
}

// MatchesAny reports whether text matches any of matchers.
func MatchesAny(text string, matchers []*regexp.Regexp) bool {
	for _, re := range matchers {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
