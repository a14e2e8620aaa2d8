package source

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/nicosuave/memex/internal/record"
)

// CodexSessionReader discovers per-session JSONL transcripts written
// by Codex CLI, shaped like <root>/rollout-<session>.jsonl directly
// under the root (no per-project subdirectory), per
// SPEC_FULL.md §4.4's "analogous structure" note.
type CodexSessionReader struct{}

var _ Reader = CodexSessionReader{}

func (CodexSessionReader) Source() record.Source { return record.SourceCodexSession }

func (CodexSessionReader) Discover(root string) ([]FileRef, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var refs []FileRef
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, "rollout-") || filepath.Ext(name) != ".jsonl" {
			continue
		}
		refs = append(refs, FileRef{Path: filepath.Join(root, name), Project: ""})
	}
	return refs, nil
}

func (CodexSessionReader) ReadNew(ref FileRef, cursor Cursor) ([]record.Record, Cursor, error) {
	lines, newOffset, err := readLinesFromOffset(ref.Path, cursor.Offset)
	if err != nil {
		return nil, cursor, err
	}

	sessionID := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(ref.Path), "rollout-"), ".jsonl")
	turnID := cursor.NextTurnID

	var recs []record.Record
	for _, line := range lines {
		var turn genericTurn
		if err := json.Unmarshal(line, &turn); err != nil {
			continue
		}
		text := turn.text()
		if text == "" {
			continue
		}
		sid := sessionID
		if turn.SessionID != "" {
			sid = turn.SessionID
		}
		recs = append(recs, record.Record{
			SessionID:  sid,
			TurnID:     turnID,
			TS:         turn.tsMillis(),
			Source:     record.SourceCodexSession,
			SourcePath: ref.Path,
			Project:    ref.Project,
			Role:       turn.effectiveRole(),
			Text:       text,
		})
		turnID++
	}

	return recs, Cursor{Offset: newOffset, NextTurnID: turnID}, nil
}
