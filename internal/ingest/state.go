package ingest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/nicosuave/memex/internal/ingest/source"
	"github.com/nicosuave/memex/internal/merrors"
)

const scanStateFileName = "scan.json"

// ScanState is the ingest state persisted between passes, per
// spec.md §3's "Ingest state": last scan timestamp, per-file cursor,
// and a recently-seen fingerprint set for idempotent replays.
type ScanState struct {
	LastScanMS         int64                    `json:"last_scan_ms"`
	Files              map[string]source.Cursor `json:"files"`
	RecentFingerprints map[string]int64         `json:"recent_fingerprints"` // hex fingerprint -> seen_ms
}

func newScanState() ScanState {
	return ScanState{
		Files:              make(map[string]source.Cursor),
		RecentFingerprints: make(map[string]int64),
	}
}

// loadScanState reads dir/scan.json. A missing file yields a fresh,
// zero-value state — not an error, since the very first ingest pass
// has nothing to load.
func loadScanState(dir string) (ScanState, error) {
	data, err := os.ReadFile(filepath.Join(dir, scanStateFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return newScanState(), nil
		}
		return ScanState{}, merrors.New(merrors.Io, "read scan state", err)
	}

	var st ScanState
	if err := json.Unmarshal(data, &st); err != nil {
		return ScanState{}, merrors.New(merrors.Corruption, "parse scan state", err)
	}
	if st.Files == nil {
		st.Files = make(map[string]source.Cursor)
	}
	if st.RecentFingerprints == nil {
		st.RecentFingerprints = make(map[string]int64)
	}
	return st, nil
}

// saveScanState writes dir/scan.json atomically (temp file + rename),
// per spec.md §4.4 step 8.
func saveScanState(dir string, st ScanState) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return merrors.New(merrors.Io, "create ingest state directory", err)
	}
	blob, err := json.Marshal(st)
	if err != nil {
		return merrors.New(merrors.Corruption, "marshal scan state", err)
	}
	path := filepath.Join(dir, scanStateFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o644); err != nil {
		return merrors.New(merrors.Io, "write scan state", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return merrors.New(merrors.Io, "rename scan state", err)
	}
	return nil
}

// isStale reports whether the persisted last-scan time is older than
// ttl, per spec.md §4.4 step 1's freshness gate. A zero LastScanMS
// (never scanned) is always stale.
func (st ScanState) isStale(ttl time.Duration, now time.Time) bool {
	if st.LastScanMS == 0 {
		return true
	}
	last := time.UnixMilli(st.LastScanMS)
	return now.Sub(last) >= ttl
}

// pruneFingerprints drops fingerprints older than window, bounding the
// recent-window set's growth across many ingest passes.
func (st *ScanState) pruneFingerprints(window time.Duration, now time.Time) {
	cutoff := now.Add(-window).UnixMilli()
	for fp, seenMS := range st.RecentFingerprints {
		if seenMS < cutoff {
			delete(st.RecentFingerprints, fp)
		}
	}
}
