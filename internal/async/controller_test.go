package async

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nicosuave/memex/internal/embed"
	"github.com/nicosuave/memex/internal/ingest"
	"github.com/nicosuave/memex/internal/record"
	"github.com/nicosuave/memex/internal/search"
	"github.com/nicosuave/memex/internal/session"
	"github.com/nicosuave/memex/internal/store"
)

func newTestController(t *testing.T) (*Controller, *store.FullTextIndex) {
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

	return NewController(orch, eng, agg, filepath.Join(dir, "index")), ft
}

func TestControllerTriggerIndexSendsStartedWhenNoSourcesConfigured(t *testing.T) {
	ctrl, _ := newTestController(t)

	ctrl.TriggerIndex(context.Background(), ingest.Options{})

	select {
	case u := <-ctrl.IndexUpdates:
		if u.Kind != IndexStarted && u.Kind != IndexDone {
			t.Fatalf("unexpected update kind %v (err=%v)", u.Kind, u.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for index update")
	}
}

func TestControllerTriggerIndexIsNoOpWhileRunning(t *testing.T) {
	ctrl, _ := newTestController(t)

	ctrl.mu.Lock()
	ctrl.indexing = true
	ctrl.mu.Unlock()

	ctrl.TriggerIndex(context.Background(), ingest.Options{})
	if ctrl.IsIndexing() != true {
		t.Fatalf("expected indexing flag to remain true (no-op trigger)")
	}

	select {
	case u := <-ctrl.IndexUpdates:
		t.Fatalf("expected no update to be sent for a no-op trigger, got %+v", u)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestControllerSearchReturnsIncreasingSeq(t *testing.T) {
	ctrl, ft := newTestController(t)
	if _, err := ft.Add(record.Record{SessionID: "s1", TurnID: 0, TS: 1, Text: "hello world"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := ft.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	seq1 := ctrl.Search(context.Background(), search.QueryOptions{Limit: 20})
	seq2 := ctrl.Search(context.Background(), search.QueryOptions{Limit: 20})
	if seq2 <= seq1 {
		t.Fatalf("expected strictly increasing sequence numbers, got %d then %d", seq1, seq2)
	}

	seen := 0
	for seen < 2 {
		select {
		case u := <-ctrl.SearchUpdates:
			if u.Err != nil {
				t.Fatalf("unexpected search error: %v", u.Err)
			}
			seen++
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for search updates")
		}
	}
}
