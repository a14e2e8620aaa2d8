// Package source enumerates and parses the transcript files produced
// by each supported AI coding assistant into record.Record values.
//
// spec.md §1 explicitly places "the on-disk format of upstream
// assistant transcripts" out of scope, describing it only as an
// external collaborator. The parsers here therefore target a
// reasonable, generic JSONL turn shape (timestamp, role, content,
// optional session marker) rather than a byte-exact reverse of any
// one assistant's real file format; the Reader interface is what the
// rest of the module depends on; the on-disk schema is a readers-only
// implementation detail.
package source

import (
	"github.com/nicosuave/memex/internal/record"
)

// FileRef is one transcript file discovered under a source root,
// already carrying the project tag derived from its location.
type FileRef struct {
	Path    string
	Project string
}

// Cursor is the per-file incremental-read position persisted by
// internal/ingest/state.go between passes.
type Cursor struct {
	Offset          int64  `json:"offset"`
	NextTurnID      uint64 `json:"next_turn_id"`
	RollingSession  string `json:"rolling_session,omitempty"`
}

// Reader discovers and incrementally parses one assistant's transcript
// files.
type Reader interface {
	Source() record.Source
	Discover(root string) ([]FileRef, error)
	// ReadNew parses the bytes of ref.Path beyond cursor.Offset,
	// returning newly discovered records and the cursor to persist for
	// the next pass. ReadNew only moves forward from the cursor, except
	// that a truncated or rotated file starts over from offset 0.
	ReadNew(ref FileRef, cursor Cursor) ([]record.Record, Cursor, error)
}
