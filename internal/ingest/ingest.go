// Package ingest implements the Ingest Orchestrator: freshness-gated,
// incremental discovery, parse/normalize, dedup, staged commit, and
// best-effort embedding of new transcript records, following the
// 8-step algorithm of spec.md §4.4.
package ingest

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nicosuave/memex/internal/embed"
	"github.com/nicosuave/memex/internal/ingest/source"
	"github.com/nicosuave/memex/internal/record"
	"github.com/nicosuave/memex/internal/store"
)

// recentFingerprintWindow bounds how long a fingerprint is remembered
// purely to skip redundant re-parses of the same bytes across passes;
// the index's own HasFingerprint check is the durable source of truth.
const recentFingerprintWindow = 7 * 24 * time.Hour

// targetBatchBytes bounds the transient memory used by one embedding
// batch, per spec.md §4.4 step 6's "target ≤ 128 MiB transient".
const targetBatchBytes = 128 << 20

// Options configures one ingest pass, mirroring spec.md §4.4's
// IngestOptions.
type Options struct {
	ClaudeRoot         string
	CodexSessionRoot   string
	CodexHistoryPath   string
	IncludeClaude      bool
	IncludeCodex       bool
	Embeddings         bool
	BackfillEmbeddings bool
	ModelTag           string
	ScanCacheTTL       time.Duration
}

// Report summarizes one ingest pass.
type Report struct {
	Skipped         bool
	RecordsAdded    int
	RecordsEmbedded int
}

// Orchestrator ties together the scan state, the source readers, the
// full-text index, the vector store, and an embedder.
type Orchestrator struct {
	stateDir string
	ft       *store.FullTextIndex
	vs       *store.VectorStore
	embedder embed.Embedder // nil when embeddings are disabled or unavailable
}

func New(stateDir string, ft *store.FullTextIndex, vs *store.VectorStore, embedder embed.Embedder) *Orchestrator {
	return &Orchestrator{stateDir: stateDir, ft: ft, vs: vs, embedder: embedder}
}

// Run executes one ingest pass. now is injected so callers (and tests)
// control the freshness gate deterministically.
func (o *Orchestrator) Run(ctx context.Context, opts Options, now time.Time) (Report, error) {
	state, err := loadScanState(o.stateDir)
	if err != nil {
		return Report{}, err
	}

	// Step 1: freshness gate.
	if !state.isStale(opts.ScanCacheTTL, now) {
		return Report{Skipped: true}, nil
	}

	readers := o.enabledReaders(opts)

	var report Report
	var pendingTexts []string
	var pendingDocIDs []uint64

	flushEmbeddings := func() error {
		if len(pendingTexts) == 0 || o.embedder == nil {
			pendingTexts = pendingTexts[:0]
			pendingDocIDs = pendingDocIDs[:0]
			return nil
		}
		vecs, err := o.embedder.EmbedBatch(ctx, pendingTexts)
		if err != nil {
			// Best-effort layer: keep the text index commit, drop this batch's vectors.
			pendingTexts = pendingTexts[:0]
			pendingDocIDs = pendingDocIDs[:0]
			return nil
		}
		for i, vec := range vecs {
			if err := o.vs.Append(pendingDocIDs[i], vec, o.embedder.ModelName()); err != nil {
				return err
			}
		}
		report.RecordsEmbedded += len(vecs)
		pendingTexts = pendingTexts[:0]
		pendingDocIDs = pendingDocIDs[:0]
		return nil
	}

	// Step 2: discovery walks the source roots one after another, then
	// the per-file reads fan out with errgroup, since each file read is
	// independent I/O; everything from dedup onward runs sequentially
	// because doc_id assignment must stay strictly ordered within this
	// pass.
	type job struct {
		rd     source.Reader
		ref    source.FileRef
		cursor source.Cursor
	}
	var jobs []job
	for _, rd := range readers {
		refs, err := rd.Discover(rootFor(opts, rd))
		if err != nil {
			slog.Warn("source discovery failed",
				slog.String("source", string(rd.Source())), slog.String("error", err.Error()))
			continue // per-root discovery failure: logged, pass continues
		}
		for _, ref := range refs {
			jobs = append(jobs, job{rd: rd, ref: ref, cursor: state.Files[ref.Path]})
		}
	}

	type result struct {
		path   string
		recs   []record.Record
		cursor source.Cursor
		err    error
	}
	results := make([]result, len(jobs))
	g, _ := errgroup.WithContext(ctx)
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			recs, newCursor, err := j.rd.ReadNew(j.ref, j.cursor)
			results[i] = result{path: j.ref.Path, recs: recs, cursor: newCursor, err: err}
			return nil // per-file parse errors are recorded, not propagated
		})
	}
	_ = g.Wait()

	batchBytes := 0
	for _, res := range results {
		if res.err != nil {
			slog.Warn("skipping unreadable transcript",
				slog.String("path", res.path), slog.String("error", res.err.Error()))
			continue // per-file parse error: logged and skipped, step 4.4 failure semantics
		}
		state.Files[res.path] = res.cursor

		for _, r := range res.recs {
			fp := record.Fingerprint(r.SourcePath, r.SessionID, r.TurnID, r.TS, r.Text)
			fpKey := strconv.FormatUint(fp, 16)

			if _, seen := state.RecentFingerprints[fpKey]; seen {
				continue
			}
			found, err := o.ft.HasFingerprint(r.SourcePath, fp)
			if err != nil {
				return report, err
			}
			if found {
				state.RecentFingerprints[fpKey] = now.UnixMilli()
				continue
			}

			docID, err := o.ft.Add(r)
			if err != nil {
				return report, err
			}
			state.RecentFingerprints[fpKey] = now.UnixMilli()
			report.RecordsAdded++

			if opts.Embeddings && o.embedder != nil {
				pendingTexts = append(pendingTexts, r.Text)
				pendingDocIDs = append(pendingDocIDs, docID)
				batchBytes += len(r.Text) * 4
				if batchBytes >= targetBatchBytes {
					if err := flushEmbeddings(); err != nil {
						return report, err
					}
					batchBytes = 0
				}
			}
		}
	}
	if err := flushEmbeddings(); err != nil {
		return report, err
	}

	if opts.BackfillEmbeddings && opts.Embeddings && o.embedder != nil {
		n, err := o.backfill(ctx)
		if err != nil {
			return report, err
		}
		report.RecordsEmbedded += n
	}

	// Step 8: commit both stores, then the scan state, in that order,
	// so a crash between commits never advances the scan timestamp
	// past work that wasn't durably committed.
	if err := o.ft.Commit(); err != nil {
		return report, err
	}
	if err := o.vs.Commit(); err != nil {
		return report, err
	}

	state.pruneFingerprints(recentFingerprintWindow, now)
	state.LastScanMS = now.UnixMilli()
	if err := saveScanState(o.stateDir, state); err != nil {
		return report, err
	}

	return report, nil
}

// backfill embeds existing full-text records that have no vector yet,
// per spec.md §4.4 step 7: when the vector store is empty/short, walk
// records in increasing doc_id order and embed them without touching
// the text index.
func (o *Orchestrator) backfill(ctx context.Context) (int, error) {
	nextDocID := uint64(o.vs.Count())

	var texts []string
	var docIDs []uint64
	embedded := 0
	batchBytes := 0

	flush := func() error {
		if len(texts) == 0 {
			return nil
		}
		vecs, err := o.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			texts = texts[:0]
			docIDs = docIDs[:0]
			return nil
		}
		for i, vec := range vecs {
			if err := o.vs.Append(docIDs[i], vec, o.embedder.ModelName()); err != nil {
				return err
			}
		}
		embedded += len(vecs)
		texts = texts[:0]
		docIDs = docIDs[:0]
		return nil
	}

	var todo []record.Record
	err := o.ft.ForEachRecord(func(r record.Record) error {
		if r.DocID < nextDocID {
			return nil // already has a vector slot, per strict doc_id-ordered append
		}
		todo = append(todo, r)
		return nil
	})
	if err != nil {
		return embedded, err
	}
	// ForEachRecord yields records in no particular order; Append needs
	// increasing doc_ids.
	sort.Slice(todo, func(i, j int) bool { return todo[i].DocID < todo[j].DocID })
	for _, r := range todo {
		texts = append(texts, r.Text)
		docIDs = append(docIDs, r.DocID)
		batchBytes += len(r.Text) * 4
		if batchBytes >= targetBatchBytes {
			if err := flush(); err != nil {
				return embedded, err
			}
			batchBytes = 0
		}
	}
	if err := flush(); err != nil {
		return embedded, err
	}
	return embedded, nil
}

func (o *Orchestrator) enabledReaders(opts Options) []source.Reader {
	var readers []source.Reader
	if opts.IncludeClaude {
		readers = append(readers, source.ClaudeReader{})
	}
	if opts.IncludeCodex {
		readers = append(readers, source.CodexSessionReader{}, source.CodexHistoryReader{})
	}
	return readers
}

func rootFor(opts Options, rd source.Reader) string {
	switch rd.Source() {
	case record.SourceClaude:
		return opts.ClaudeRoot
	case record.SourceCodexSession:
		return opts.CodexSessionRoot
	case record.SourceCodexHistory:
		return opts.CodexHistoryPath
	default:
		return ""
	}
}

// DefaultRoots returns the conventional source roots rooted at the
// user's home directory, used when Options leaves them empty.
func DefaultRoots(home string) (claudeRoot, codexSessionRoot, codexHistoryPath string) {
	return filepath.Join(home, ".claude", "projects"),
		filepath.Join(home, ".codex", "sessions"),
		filepath.Join(home, ".codex", "history.jsonl")
}
