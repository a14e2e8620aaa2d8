package source

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/nicosuave/memex/internal/record"
)

// ClaudeReader discovers per-session JSONL transcripts written by
// Claude Code under a root shaped like
// <root>/<project>/<session>.jsonl, one line per turn.
type ClaudeReader struct{}

var _ Reader = ClaudeReader{}

func (ClaudeReader) Source() record.Source { return record.SourceClaude }

// Discover walks root one level deep: each immediate subdirectory is a
// project, and every *.jsonl file inside it is one session transcript.
// The project tag is the subdirectory's basename, sanitized.
func (ClaudeReader) Discover(root string) ([]FileRef, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var refs []FileRef
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		project := sanitizeProject(e.Name())
		projDir := filepath.Join(root, e.Name())
		files, err := os.ReadDir(projDir)
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.IsDir() || filepath.Ext(f.Name()) != ".jsonl" {
				continue
			}
			refs = append(refs, FileRef{Path: filepath.Join(projDir, f.Name()), Project: project})
		}
	}
	return refs, nil
}

func (ClaudeReader) ReadNew(ref FileRef, cursor Cursor) ([]record.Record, Cursor, error) {
	lines, newOffset, err := readLinesFromOffset(ref.Path, cursor.Offset)
	if err != nil {
		return nil, cursor, err
	}

	sessionID := sessionIDFromFilename(ref.Path)
	turnID := cursor.NextTurnID

	var recs []record.Record
	for _, line := range lines {
		var turn genericTurn
		if err := json.Unmarshal(line, &turn); err != nil {
			continue // malformed line: skip, per spec.md §4.4 failure semantics
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
			Source:     record.SourceClaude,
			SourcePath: ref.Path,
			Project:    ref.Project,
			Role:       turn.effectiveRole(),
			Text:       text,
		})
		turnID++
	}

	return recs, Cursor{Offset: newOffset, NextTurnID: turnID}, nil
}

func sessionIDFromFilename(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}

func sanitizeProject(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			out = append(out, r)
		default:
			out = append(out, '-')
		}
	}
	return string(out)
}
