package store

import (
	"path/filepath"
	"testing"

	"github.com/nicosuave/memex/internal/record"
)

func newTestIndex(t *testing.T) *FullTextIndex {
	t.Helper()
	idx, err := OpenFullText(filepath.Join(t.TempDir(), "index"))
	if err != nil {
		t.Fatalf("OpenFullText: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestAddAssignsMonotonicDocIDs(t *testing.T) {
	idx := newTestIndex(t)

	var ids []uint64
	for i := 0; i < 5; i++ {
		id, err := idx.Add(record.Record{SessionID: "s", Text: "hello"})
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			t.Fatalf("doc_id not strictly increasing: %v", ids)
		}
	}
}

func TestUncommittedAddsAreNotVisible(t *testing.T) {
	idx := newTestIndex(t)

	if _, err := idx.Add(record.Record{SessionID: "s", Text: "hello"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	count, err := idx.DocCount()
	if err != nil {
		t.Fatalf("DocCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 committed docs before Commit, got %d", count)
	}

	if err := idx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	count, err = idx.DocCount()
	if err != nil {
		t.Fatalf("DocCount: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 committed doc after Commit, got %d", count)
	}
}

func TestRecentRecordsOrderedByTSDescending(t *testing.T) {
	idx := newTestIndex(t)

	for i, ts := range []int64{100, 300, 200} {
		if _, err := idx.Add(record.Record{SessionID: "s", TurnID: uint64(i), TS: ts, Text: "hi"}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if err := idx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	recs, err := idx.RecentRecords(10)
	if err != nil {
		t.Fatalf("RecentRecords: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	for i := 1; i < len(recs); i++ {
		if recs[i].TS > recs[i-1].TS {
			t.Fatalf("recent records not ts-descending: %v", recs)
		}
	}
}

func TestSearchLexicalMatch(t *testing.T) {
	idx := newTestIndex(t)

	recs := []record.Record{
		{SessionID: "s1", TurnID: 0, TS: 1, Text: "the cat sat on the mat"},
		{SessionID: "s1", TurnID: 1, TS: 2, Text: "dogs are loyal"},
		{SessionID: "s2", TurnID: 0, TS: 3, Text: "a cat is sitting on a mat"},
	}
	for _, r := range recs {
		if _, err := idx.Add(r); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if err := idx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	results, err := idx.Search("cat", Filter{}, 20)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 matches for 'cat', got %d: %+v", len(results), results)
	}
	for _, r := range results {
		if r.Record.Text == "dogs are loyal" {
			t.Fatalf("unexpected match for unrelated text")
		}
	}
}

func TestSearchFilterComposition(t *testing.T) {
	idx := newTestIndex(t)

	recs := []record.Record{
		{SessionID: "s1", TurnID: 0, TS: 1, Project: "alpha", Role: "user", Text: "cat fact one"},
		{SessionID: "s1", TurnID: 1, TS: 2, Project: "beta", Role: "user", Text: "cat fact two"},
	}
	for _, r := range recs {
		if _, err := idx.Add(r); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if err := idx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	all, err := idx.Search("cat", Filter{}, 20)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	filtered, err := idx.Search("cat", Filter{Project: "alpha"}, 20)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(filtered) > len(all) {
		t.Fatalf("filter increased cardinality: %d > %d", len(filtered), len(all))
	}
	for _, r := range filtered {
		if r.Record.Project != "alpha" {
			t.Fatalf("filter leaked non-matching project: %+v", r.Record)
		}
	}
}

func TestHasFingerprintDetectsDuplicate(t *testing.T) {
	idx := newTestIndex(t)

	r := record.Record{SourcePath: "/a.jsonl", SessionID: "s1", TurnID: 0, TS: 1, Text: "hello"}
	fp := record.Fingerprint(r.SourcePath, r.SessionID, r.TurnID, r.TS, r.Text)

	if _, err := idx.Add(r); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := idx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	found, err := idx.HasFingerprint(r.SourcePath, fp)
	if err != nil {
		t.Fatalf("HasFingerprint: %v", err)
	}
	if !found {
		t.Fatalf("expected fingerprint to be found after commit")
	}

	notFound, err := idx.HasFingerprint(r.SourcePath, fp+1)
	if err != nil {
		t.Fatalf("HasFingerprint: %v", err)
	}
	if notFound {
		t.Fatalf("expected different fingerprint to not be found")
	}
}

func TestOpenFullTextIdempotentAcrossRestarts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")

	idx1, err := OpenFullText(dir)
	if err != nil {
		t.Fatalf("OpenFullText: %v", err)
	}
	if _, err := idx1.Add(record.Record{SessionID: "s", Text: "hi"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := idx1.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := idx1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	idx2, err := OpenFullText(dir)
	if err != nil {
		t.Fatalf("re-OpenFullText: %v", err)
	}
	defer idx2.Close()

	count, err := idx2.DocCount()
	if err != nil {
		t.Fatalf("DocCount: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected committed doc to survive reopen, got count %d", count)
	}

	id, err := idx2.Add(record.Record{SessionID: "s", Text: "second"})
	if err != nil {
		t.Fatalf("Add after reopen: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected doc_id sequence to continue at 1, got %d", id)
	}
}
