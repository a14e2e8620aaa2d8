// Package session implements the Session Aggregator: grouping scored
// search hits (or recent records) into per-session summaries, following
// SPEC_FULL.md §4.6. Grounded on original_source/src/tui.rs's
// sessions_from_query/sessions_from_recent/add_record_to_session.
package session

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/nicosuave/memex/internal/record"
	"github.com/nicosuave/memex/internal/search"
	"github.com/nicosuave/memex/internal/store"
)

// ResultLimit bounds the number of session summaries returned by either
// branch, matching the teacher's RESULT_LIMIT constant.
const ResultLimit = 200

// RecentRecordsMultiplier scales ResultLimit into the number of raw
// records pulled for the recent (empty-query) branch, since many
// records collapse into few sessions.
const RecentRecordsMultiplier = 50

// snippetChars bounds the length of the summary snippet carried on each
// Summary, independent of the full detail-line truncation in the
// preview package.
const snippetChars = 160

// Summary is one session's aggregate view over the matching records in
// a result set.
type Summary struct {
	SessionID  string
	Project    string
	Source     record.Source
	LastTS     int64
	HitCount   int
	TopScore   float64
	Snippet    string
	SourcePath string
}

// Aggregator groups search hits or recent records into Summary values.
type Aggregator struct {
	ft *store.FullTextIndex
}

func NewAggregator(ft *store.FullTextIndex) *Aggregator {
	return &Aggregator{ft: ft}
}

// FromQuery runs a non-empty-query search through eng and groups the
// resulting hits by session_id. Sessions are sorted by (top_score desc,
// last_ts desc) and truncated to ResultLimit.
func (a *Aggregator) FromQuery(ctx context.Context, eng *search.Engine, opts search.QueryOptions) ([]Summary, error) {
	limit := opts.Limit
	if limit < 20 {
		limit = 20
	}
	opts.Limit = limit

	hits, err := eng.Search(ctx, opts)
	if err != nil {
		return nil, err
	}

	sessions := make(map[string]*Summary)
	for _, h := range hits {
		addRecordToSession(sessions, h.Score, h.Record)
	}

	out := summariesOf(sessions)
	sort.Slice(out, func(i, j int) bool {
		if out[i].TopScore != out[j].TopScore {
			return out[i].TopScore > out[j].TopScore
		}
		return out[i].LastTS > out[j].LastTS
	})
	if len(out) > ResultLimit {
		out = out[:ResultLimit]
	}
	return out, nil
}

// FromRecent pulls the most recent records (unscored) and groups them
// into sessions, stopping once ResultLimit distinct sessions have been
// formed. Sessions are sorted by last_ts desc.
func (a *Aggregator) FromRecent(filter store.Filter) ([]Summary, error) {
	recordLimit := ResultLimit * RecentRecordsMultiplier
	if recordLimit < ResultLimit {
		recordLimit = ResultLimit
	}
	records, err := a.ft.RecentRecords(recordLimit)
	if err != nil {
		return nil, err
	}

	sessions := make(map[string]*Summary)
	for _, r := range records {
		if !filter.Matches(r) {
			continue
		}
		addRecordToSession(sessions, 0, r)
		if len(sessions) >= ResultLimit {
			break
		}
	}

	out := summariesOf(sessions)
	sort.Slice(out, func(i, j int) bool { return out[i].LastTS > out[j].LastTS })
	return out, nil
}

// addRecordToSession folds one (score, record) pair into the running
// per-session aggregate: hit_count increments unconditionally, last_ts
// tracks the max ts seen, and top_score/snippet/source_path follow the
// highest-scoring record seen so far (ties favor the latest update,
// matching the teacher's >= comparison).
func addRecordToSession(sessions map[string]*Summary, score float64, r record.Record) {
	s, ok := sessions[r.SessionID]
	if !ok {
		s = &Summary{
			SessionID:  r.SessionID,
			Project:    r.Project,
			Source:     r.Source,
			LastTS:     r.TS,
			TopScore:   score,
			Snippet:    Summarize(r.Text, snippetChars),
			SourcePath: r.SourcePath,
		}
		sessions[r.SessionID] = s
	}
	s.HitCount++
	if r.TS > s.LastTS {
		s.LastTS = r.TS
	}
	if score >= s.TopScore {
		s.TopScore = score
		if snippet := Summarize(r.Text, snippetChars); snippet != "" {
			s.Snippet = snippet
		}
		s.SourcePath = r.SourcePath
	}
}

func summariesOf(sessions map[string]*Summary) []Summary {
	out := make([]Summary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, *s)
	}
	return out
}

// Summarize collapses text to at most max runes of whitespace-folded
// text, appending "..." when truncated. Ported from the teacher's
// character-counting summarize helper, adjusted to iterate runes
// instead of UTF-8 bytes.
func Summarize(text string, max int) string {
	if max == 0 {
		return ""
	}
	var out []rune
	count := 0
	lastSpace := false
	truncated := false
	for _, ch := range text {
		if count >= max {
			truncated = true
			break
		}
		if isSpace(ch) {
			if len(out) == 0 || lastSpace {
				continue
			}
			out = append(out, ' ')
			lastSpace = true
			count++
			continue
		}
		out = append(out, ch)
		lastSpace = false
		count++
	}
	if truncated && max >= 3 {
		keep := max - 3
		if keep < 0 {
			keep = 0
		}
		if keep > len(out) {
			keep = len(out)
		}
		return strings.TrimSpace(string(out[:keep]) + "...")
	}
	return strings.TrimSpace(string(out))
}

func isSpace(ch rune) bool {
	return unicode.IsSpace(ch)
}
