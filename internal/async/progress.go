package async

import (
	"sync"
	"time"
)

// Stage names the current phase of an ingest pass, reported to the UI
// thread. Adapted from the teacher's IndexingStage, renamed to match
// the Ingest Orchestrator's own phases (spec.md §4.4) instead of the
// teacher's code-chunking pipeline.
type Stage string

const (
	StageDiscovering Stage = "discovering"
	StageDeduping    Stage = "deduping"
	StageEmbedding   Stage = "embedding"
	StageCommitting  Stage = "committing"
)

// ProgressSnapshot is an immutable view of one in-flight ingest pass,
// for the status footer.
type ProgressSnapshot struct {
	Stage           Stage
	RecordsAdded    int
	RecordsEmbedded int
	ElapsedSeconds  int
}

// Progress is thread-safe progress tracking for the index worker,
// adapted from the teacher's IndexProgress (same RWMutex-guarded
// read/write split), trimmed to the fields the Ingest Orchestrator
// actually reports.
type Progress struct {
	mu sync.RWMutex

	stage     Stage
	added     int
	embedded  int
	startTime time.Time
}

func newProgress() *Progress {
	return &Progress{stage: StageDiscovering, startTime: time.Now()}
}

func (p *Progress) setStage(s Stage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stage = s
}

func (p *Progress) setCounts(added, embedded int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.added = added
	p.embedded = embedded
}

func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return ProgressSnapshot{
		Stage:           p.stage,
		RecordsAdded:    p.added,
		RecordsEmbedded: p.embedded,
		ElapsedSeconds:  int(time.Since(p.startTime).Seconds()),
	}
}
