package store

import (
	"encoding/json"

	"github.com/nicosuave/memex/internal/record"
)

// wireRecord is the JSON shape persisted in the RecordJSON stored
// field, kept separate from record.Record so the wire format doesn't
// silently change if the in-memory struct grows unrelated fields.
type wireRecord struct {
	DocID      uint64 `json:"doc_id"`
	SessionID  string `json:"session_id"`
	TurnID     uint64 `json:"turn_id"`
	TS         int64  `json:"ts"`
	Source     string `json:"source"`
	SourcePath string `json:"source_path"`
	Project    string `json:"project"`
	Role       string `json:"role"`
	Text       string `json:"text"`
}

func marshalRecord(r record.Record) (string, error) {
	w := wireRecord{
		DocID:      r.DocID,
		SessionID:  r.SessionID,
		TurnID:     r.TurnID,
		TS:         r.TS,
		Source:     string(r.Source),
		SourcePath: r.SourcePath,
		Project:    r.Project,
		Role:       r.Role,
		Text:       r.Text,
	}
	b, err := json.Marshal(w)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalRecord(s string) (record.Record, error) {
	var w wireRecord
	if err := json.Unmarshal([]byte(s), &w); err != nil {
		return record.Record{}, err
	}
	return record.Record{
		DocID:      w.DocID,
		SessionID:  w.SessionID,
		TurnID:     w.TurnID,
		TS:         w.TS,
		Source:     record.Source(w.Source),
		SourcePath: w.SourcePath,
		Project:    w.Project,
		Role:       w.Role,
		Text:       w.Text,
	}, nil
}
