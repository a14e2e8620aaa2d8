package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nicosuave/memex/internal/embed"
	"github.com/nicosuave/memex/internal/record"
	"github.com/nicosuave/memex/internal/search"
	"github.com/nicosuave/memex/internal/store"
)

func newTestSetup(t *testing.T) (*store.FullTextIndex, *store.VectorStore, embed.Embedder, *search.Engine) {
	t.Helper()
	ft, err := store.OpenFullText(filepath.Join(t.TempDir(), "index"))
	if err != nil {
		t.Fatalf("OpenFullText: %v", err)
	}
	t.Cleanup(func() { _ = ft.Close() })

	vs, err := store.OpenVectorStore(filepath.Join(t.TempDir(), "vectors"))
	if err != nil {
		t.Fatalf("OpenVectorStore: %v", err)
	}
	t.Cleanup(func() { _ = vs.Close() })

	embedder := embed.NewStaticEmbedder(64, "potion")
	t.Cleanup(func() { _ = embedder.Close() })

	return ft, vs, embedder, search.NewEngine(ft, vs, embedder)
}

func addRecord(t *testing.T, ft *store.FullTextIndex, vs *store.VectorStore, e embed.Embedder, r record.Record) {
	t.Helper()
	docID, err := ft.Add(r)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	vec, err := e.Embed(context.Background(), r.Text)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if err := vs.Append(docID, vec, e.ModelName()); err != nil {
		t.Fatalf("Append: %v", err)
	}
}

func TestAggregatorFromQueryGroupsBySession(t *testing.T) {
	ft, vs, embedder, eng := newTestSetup(t)

	addRecord(t, ft, vs, embedder, record.Record{SessionID: "s1", TurnID: 0, TS: 1, Project: "alpha", Text: "the cat sat on the mat"})
	addRecord(t, ft, vs, embedder, record.Record{SessionID: "s1", TurnID: 1, TS: 2, Project: "alpha", Text: "the cat ran away"})
	addRecord(t, ft, vs, embedder, record.Record{SessionID: "s2", TurnID: 0, TS: 3, Project: "beta", Text: "dogs are loyal animals"})
	if err := ft.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := vs.Commit(); err != nil {
		t.Fatalf("Commit vectors: %v", err)
	}

	agg := NewAggregator(ft)
	out, err := agg.FromQuery(context.Background(), eng, search.QueryOptions{Query: "cat", Limit: 20})
	if err != nil {
		t.Fatalf("FromQuery: %v", err)
	}
	if len(out) == 0 {
		t.Fatalf("expected at least one session")
	}
	if out[0].SessionID != "s1" {
		t.Fatalf("expected session s1 to rank first, got %s", out[0].SessionID)
	}
	if out[0].HitCount != 2 {
		t.Fatalf("expected hit_count 2 for s1, got %d", out[0].HitCount)
	}
	if out[0].LastTS != 2 {
		t.Fatalf("expected last_ts 2 for s1, got %d", out[0].LastTS)
	}
}

func TestAggregatorFromRecentOrdersByLastTS(t *testing.T) {
	ft, vs, embedder, _ := newTestSetup(t)

	addRecord(t, ft, vs, embedder, record.Record{SessionID: "s1", TurnID: 0, TS: 100, Project: "alpha", Text: "hello"})
	addRecord(t, ft, vs, embedder, record.Record{SessionID: "s2", TurnID: 0, TS: 300, Project: "alpha", Text: "world"})
	addRecord(t, ft, vs, embedder, record.Record{SessionID: "s1", TurnID: 1, TS: 200, Project: "alpha", Text: "again"})
	if err := ft.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	agg := NewAggregator(ft)
	out, err := agg.FromRecent(store.Filter{})
	if err != nil {
		t.Fatalf("FromRecent: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(out))
	}
	if out[0].SessionID != "s2" {
		t.Fatalf("expected s2 (last_ts 300) first, got %s", out[0].SessionID)
	}
	if out[1].SessionID != "s1" || out[1].LastTS != 200 {
		t.Fatalf("expected s1 last with last_ts 200, got %+v", out[1])
	}
}

func TestAggregatorFromRecentAppliesFilter(t *testing.T) {
	ft, vs, embedder, _ := newTestSetup(t)

	addRecord(t, ft, vs, embedder, record.Record{SessionID: "s1", TurnID: 0, TS: 100, Project: "alpha", Text: "hello"})
	addRecord(t, ft, vs, embedder, record.Record{SessionID: "s2", TurnID: 0, TS: 200, Project: "beta", Text: "world"})
	if err := ft.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	agg := NewAggregator(ft)
	out, err := agg.FromRecent(store.Filter{Project: "alpha"})
	if err != nil {
		t.Fatalf("FromRecent: %v", err)
	}
	if len(out) != 1 || out[0].SessionID != "s1" {
		t.Fatalf("expected only s1 to survive the project filter, got %+v", out)
	}
}

func TestSummarizeTruncatesAndFoldsWhitespace(t *testing.T) {
	if got := Summarize("hello   world", 100); got != "hello world" {
		t.Fatalf("expected whitespace folded, got %q", got)
	}
	if got := Summarize("abcdefghij", 5); got != "ab..." {
		t.Fatalf("expected truncation with ellipsis, got %q", got)
	}
	if got := Summarize("anything", 0); got != "" {
		t.Fatalf("expected empty string for max=0, got %q", got)
	}
}
