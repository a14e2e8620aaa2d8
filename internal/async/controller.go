// Package async implements the Concurrency & Resource Model of
// SPEC_FULL.md §5: a single active index worker, a pool of concurrent
// search workers, and two UI-facing update channels. Grounded on the
// teacher's internal/async (BackgroundIndexer's stop/done channel
// lifecycle and lock-file discipline, IndexProgress's RWMutex-guarded
// snapshot pattern), generalized from "index a code repo" to "ingest
// transcript sources" and extended with a search-worker pattern the
// teacher has no equivalent of (spec §5 explicitly permits multiple
// concurrent searches; this is new code in the teacher's idiom).
package async

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nicosuave/memex/internal/ingest"
	"github.com/nicosuave/memex/internal/search"
	"github.com/nicosuave/memex/internal/session"
)

// updateBufferSize is "bounded-free (unbounded-in-practice)" per
// spec.md §5: large enough that a well-behaved UI drain never
// saturates it; a send on a full channel is dropped rather than
// blocking the sender, since a stale update is always superseded by
// the next one.
const updateBufferSize = 64

// IndexUpdateKind mirrors tui.rs's IndexUpdate enum
// (Started/Skipped/Done/Error).
type IndexUpdateKind int

const (
	IndexStarted IndexUpdateKind = iota
	IndexSkipped
	IndexDone
	IndexError
)

// IndexUpdate is sent on Controller.IndexUpdates as the index worker
// progresses through one ingest pass.
type IndexUpdate struct {
	Kind     IndexUpdateKind
	Report   ingest.Report
	Err      error
	Progress ProgressSnapshot
}

// SearchUpdate is sent on Controller.SearchUpdates when a search
// worker completes. Seq lets the UI discard a result that arrived
// after a newer search was already issued, even if updates arrive out
// of order.
type SearchUpdate struct {
	Seq      uint64
	Sessions []session.Summary
	Err      error
	Query    string
}

// Controller owns the index worker's single-writer discipline and the
// search worker pool, connecting both to the two UI channels.
type Controller struct {
	orchestrator *ingest.Orchestrator
	engine       *search.Engine
	aggregator   *session.Aggregator
	lock         *WriterLock

	IndexUpdates  chan IndexUpdate
	SearchUpdates chan SearchUpdate

	mu       sync.Mutex
	indexing bool
	progress *Progress

	searchSeq atomic.Uint64
}

func NewController(orchestrator *ingest.Orchestrator, engine *search.Engine, aggregator *session.Aggregator, indexDir string) *Controller {
	return &Controller{
		orchestrator:  orchestrator,
		engine:        engine,
		aggregator:    aggregator,
		lock:          NewWriterLock(indexDir),
		IndexUpdates:  make(chan IndexUpdate, updateBufferSize),
		SearchUpdates: make(chan SearchUpdate, updateBufferSize),
	}
}

// IsIndexing reports whether an index worker goroutine is currently
// running, whether or not it has acquired the writer lock yet.
func (c *Controller) IsIndexing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.indexing
}

// TriggerIndex starts the index worker in a background goroutine if
// none is already running. At most one active at any time, per
// spec.md §5; a second call while one is in flight is a no-op, not an
// error, matching the teacher's BackgroundIndexer.Start early-return.
func (c *Controller) TriggerIndex(ctx context.Context, opts ingest.Options) {
	c.mu.Lock()
	if c.indexing {
		c.mu.Unlock()
		return
	}
	c.indexing = true
	c.progress = newProgress()
	c.mu.Unlock()

	go c.runIndex(ctx, opts)
}

func (c *Controller) runIndex(ctx context.Context, opts ingest.Options) {
	defer func() {
		c.mu.Lock()
		c.indexing = false
		c.mu.Unlock()
	}()

	acquired, err := c.lock.TryLock()
	if err != nil {
		c.sendIndexUpdate(IndexUpdate{Kind: IndexError, Err: err})
		return
	}
	if !acquired {
		c.sendIndexUpdate(IndexUpdate{Kind: IndexSkipped})
		return
	}
	defer func() { _ = c.lock.Unlock() }()

	c.sendIndexUpdate(IndexUpdate{Kind: IndexStarted, Progress: c.progress.Snapshot()})
	c.progress.setStage(StageDiscovering)

	report, err := c.orchestrator.Run(ctx, opts, time.Now())
	if err != nil {
		c.sendIndexUpdate(IndexUpdate{Kind: IndexError, Err: err, Progress: c.progress.Snapshot()})
		return
	}
	if report.Skipped {
		c.sendIndexUpdate(IndexUpdate{Kind: IndexSkipped, Report: report})
		return
	}

	c.progress.setCounts(report.RecordsAdded, report.RecordsEmbedded)
	c.progress.setStage(StageCommitting)
	c.sendIndexUpdate(IndexUpdate{Kind: IndexDone, Report: report, Progress: c.progress.Snapshot()})
}

func (c *Controller) sendIndexUpdate(u IndexUpdate) {
	select {
	case c.IndexUpdates <- u:
	default:
		// Channel saturated: a well-behaved UI drain never triggers this;
		// the update is dropped rather than blocking the worker.
	}
}

// Search spawns a search worker goroutine for one user-initiated query:
// it computes results through the controller's shared engine and
// aggregator, sends one SearchUpdate (dropped if the channel is full),
// and exits. Multiple concurrent searches are permitted; Seq lets the
// UI keep only the most recent.
func (c *Controller) Search(ctx context.Context, opts search.QueryOptions) uint64 {
	seq := c.searchSeq.Add(1)
	go func() {
		var (
			sessions []session.Summary
			err      error
		)
		if opts.Query == "" {
			sessions, err = c.aggregator.FromRecent(opts.Filter)
		} else {
			sessions, err = c.aggregator.FromQuery(ctx, c.engine, opts)
		}
		select {
		case c.SearchUpdates <- SearchUpdate{Seq: seq, Sessions: sessions, Err: err, Query: opts.Query}:
		default:
		}
	}()
	return seq
}
