package search

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nicosuave/memex/internal/embed"
	"github.com/nicosuave/memex/internal/record"
	"github.com/nicosuave/memex/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.FullTextIndex, *store.VectorStore) {
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

	return NewEngine(ft, vs, embedder), ft, vs
}

func addAndEmbed(t *testing.T, ft *store.FullTextIndex, vs *store.VectorStore, e embed.Embedder, r record.Record) uint64 {
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
	return docID
}

func TestEngineSearchEmptyQueryReturnsRecent(t *testing.T) {
	eng, ft, _ := newTestEngine(t)
	for i, ts := range []int64{100, 300, 200} {
		if _, err := ft.Add(record.Record{SessionID: "s", TurnID: uint64(i), TS: ts, Text: "hi"}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if err := ft.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	hits, err := eng.Search(context.Background(), QueryOptions{Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Record.TS > hits[i-1].Record.TS {
			t.Fatalf("expected recent-branch hits ordered by descending ts")
		}
	}
}

func TestEngineSearchLexicalAndVectorFusion(t *testing.T) {
	eng, ft, vs := newTestEngine(t)
	embedder := embed.NewStaticEmbedder(64, "potion")
	defer embedder.Close()

	addAndEmbed(t, ft, vs, embedder, record.Record{SessionID: "s1", TurnID: 0, TS: 1, Text: "the cat sat on the mat"})
	addAndEmbed(t, ft, vs, embedder, record.Record{SessionID: "s1", TurnID: 1, TS: 2, Text: "dogs are loyal animals"})
	if err := ft.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := vs.Commit(); err != nil {
		t.Fatalf("Commit vectors: %v", err)
	}

	hits, err := eng.Search(context.Background(), QueryOptions{Query: "cat", Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) == 0 {
		t.Fatalf("expected at least one hit for 'cat'")
	}
	if hits[0].Record.Text != "the cat sat on the mat" {
		t.Fatalf("expected the lexical match to rank first, got %q", hits[0].Record.Text)
	}
}

func TestEngineSearchAppliesFilter(t *testing.T) {
	eng, ft, vs := newTestEngine(t)
	embedder := embed.NewStaticEmbedder(64, "potion")
	defer embedder.Close()

	addAndEmbed(t, ft, vs, embedder, record.Record{SessionID: "s1", TurnID: 0, TS: 1, Project: "alpha", Text: "shared topic keyword"})
	addAndEmbed(t, ft, vs, embedder, record.Record{SessionID: "s2", TurnID: 0, TS: 2, Project: "beta", Text: "shared topic keyword"})
	if err := ft.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := vs.Commit(); err != nil {
		t.Fatalf("Commit vectors: %v", err)
	}

	hits, err := eng.Search(context.Background(), QueryOptions{
		Query:  "shared",
		Filter: store.Filter{Project: "alpha"},
		Limit:  10,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, h := range hits {
		if h.Record.Project != "alpha" {
			t.Fatalf("filter leaked non-matching project: %+v", h.Record)
		}
	}
}
