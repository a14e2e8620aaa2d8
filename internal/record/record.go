// Package record defines the canonical indexed unit shared by the
// full-text index, the vector store, and the session/preview layers.
package record

import (
	"hash/fnv"
	"strconv"
)

// Source identifies which assistant produced a transcript.
type Source string

const (
	SourceClaude       Source = "claude"
	SourceCodexSession Source = "codex_session"
	SourceCodexHistory Source = "codex_history"
)

// Valid reports whether s is one of the closed set of recognized sources.
func (s Source) Valid() bool {
	switch s {
	case SourceClaude, SourceCodexSession, SourceCodexHistory:
		return true
	default:
		return false
	}
}

// ToolRoleUse and ToolRoleResult are the two role values treated as the
// "tool" role for filtering purposes (see Glossary, "Tool role").
const (
	ToolRoleUse    = "tool_use"
	ToolRoleResult = "tool_result"
)

// IsToolRole reports whether role is one of the tool-role values.
func IsToolRole(role string) bool {
	return role == ToolRoleUse || role == ToolRoleResult
}

// Record is one indexed conversational turn.
type Record struct {
	DocID      uint64
	SessionID  string
	TurnID     uint64
	TS         int64 // milliseconds since epoch
	Source     Source
	SourcePath string
	Project    string
	Role       string
	Text       string
}

// Fingerprint derives the dedup key for a record per the data-model
// invariant: dedup is by content fingerprint, not text equality.
// Identical text re-ingested under a different session/turn/ts is a
// distinct record; identical (source_path, session_id, turn_id, ts,
// text) is the same record.
func Fingerprint(sourcePath, sessionID string, turnID uint64, ts int64, text string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(sourcePath))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(sessionID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(strconv.FormatUint(turnID, 10)))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(strconv.FormatInt(ts, 10)))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(text))
	return h.Sum64()
}

// Less orders two records by (session_id, turn_id, ts, doc_id), the
// total order required for session playback.
func Less(a, b Record) bool {
	if a.SessionID != b.SessionID {
		return a.SessionID < b.SessionID
	}
	if a.TurnID != b.TurnID {
		return a.TurnID < b.TurnID
	}
	if a.TS != b.TS {
		return a.TS < b.TS
	}
	return a.DocID < b.DocID
}
