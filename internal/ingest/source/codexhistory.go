package source

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/nicosuave/memex/internal/record"
)

// CodexHistoryReader discovers the single flat append-only history
// file Codex CLI writes (no per-session file boundary). Per
// SPEC_FULL.md §4.4, session_id is taken from an embedded marker when
// a line carries one; absent a marker, lines are attributed to a
// rolling synthetic session id that advances only when a new marker is
// seen, so contiguous unmarked runs stay grouped together.
type CodexHistoryReader struct{}

var _ Reader = CodexHistoryReader{}

func (CodexHistoryReader) Source() record.Source { return record.SourceCodexHistory }

// Discover treats root itself as the one history file; project is
// unknown for this source, per the data model's "empty if unknown".
func (CodexHistoryReader) Discover(root string) ([]FileRef, error) {
	return []FileRef{{Path: root, Project: ""}}, nil
}

func (CodexHistoryReader) ReadNew(ref FileRef, cursor Cursor) ([]record.Record, Cursor, error) {
	lines, newOffset, err := readLinesFromOffset(ref.Path, cursor.Offset)
	if err != nil {
		return nil, cursor, err
	}

	rolling := cursor.RollingSession
	turnID := cursor.NextTurnID

	var recs []record.Record
	for _, line := range lines {
		var turn genericTurn
		if err := json.Unmarshal(line, &turn); err != nil {
			continue
		}
		if turn.SessionID != "" {
			rolling = turn.SessionID
		}
		if rolling == "" {
			rolling = uuid.NewString()
		}

		text := turn.text()
		if text == "" {
			continue
		}
		recs = append(recs, record.Record{
			SessionID:  rolling,
			TurnID:     turnID,
			TS:         turn.tsMillis(),
			Source:     record.SourceCodexHistory,
			SourcePath: ref.Path,
			Project:    ref.Project,
			Role:       turn.effectiveRole(),
			Text:       text,
		})
		turnID++
	}

	return recs, Cursor{Offset: newOffset, NextTurnID: turnID, RollingSession: rolling}, nil
}
