package source

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/nicosuave/memex/internal/merrors"
)

// genericTurn is the generic per-line JSONL shape both Claude and
// CodexSession transcripts are parsed against: a timestamp, a role,
// and a content payload that may be a bare string or a list of
// structured content blocks (the common "content blocks" shape used by
// tool-augmented chat transcripts).
type genericTurn struct {
	Type      string          `json:"type"`
	Role      string          `json:"role"`
	Timestamp json.RawMessage `json:"timestamp"`
	SessionID string          `json:"session_id"`
	Message   *struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"message"`
	Content json.RawMessage `json:"content"`
}

func (t genericTurn) effectiveRole() string {
	if t.Message != nil && t.Message.Role != "" {
		return t.Message.Role
	}
	if t.Role != "" {
		return t.Role
	}
	return t.Type
}

func (t genericTurn) text() string {
	if t.Message != nil && len(t.Message.Content) > 0 {
		if s, ok := decodeContentText(t.Message.Content); ok {
			return s
		}
	}
	if len(t.Content) > 0 {
		if s, ok := decodeContentText(t.Content); ok {
			return s
		}
	}
	return ""
}

// decodeContentText accepts either a bare JSON string or an array of
// content blocks ({"type":"text","text":"..."} among others, the rest
// concatenated in order) and flattens it to plain text.
func decodeContentText(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}

	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return "", false
	}
	out := ""
	for i, b := range blocks {
		if b.Text == "" {
			continue
		}
		if i > 0 && out != "" {
			out += "\n"
		}
		out += b.Text
	}
	return out, true
}

func (t genericTurn) tsMillis() int64 {
	if len(t.Timestamp) == 0 {
		return 0
	}
	var s string
	if err := json.Unmarshal(t.Timestamp, &s); err == nil {
		if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return parsed.UnixMilli()
		}
		if parsed, err := time.Parse(time.RFC3339, s); err == nil {
			return parsed.UnixMilli()
		}
		return 0
	}
	var n int64
	if err := json.Unmarshal(t.Timestamp, &n); err == nil {
		return n
	}
	return 0
}

// readLinesFromOffset seeks path to offset, scans whole lines only
// (a dangling partial final line is left for the next pass, since the
// writer may still be mid-append), and returns the decoded lines plus
// the new offset positioned at the end of the last complete line.
func readLinesFromOffset(path string, offset int64) (lines [][]byte, newOffset int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, offset, merrors.New(merrors.Io, "open transcript file", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, offset, merrors.New(merrors.Io, "stat transcript file", err)
	}
	if info.Size() < offset {
		// File was truncated or replaced; restart from the beginning.
		offset = 0
	}

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, merrors.New(merrors.Io, "seek transcript file", err)
	}

	reader := bufio.NewReader(f)
	pos := offset
	for {
		line, readErr := reader.ReadBytes('\n')
		if len(line) > 0 && line[len(line)-1] == '\n' {
			lines = append(lines, line[:len(line)-1])
			pos += int64(len(line))
		}
		if readErr != nil {
			break
		}
	}
	return lines, pos, nil
}
