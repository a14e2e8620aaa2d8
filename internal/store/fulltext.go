// Package store implements memex's hybrid index: a bleve-backed
// full-text index (this file) and a flat-file + in-memory HNSW vector
// store (vector.go), coupled only by doc_id per SPEC_FULL.md §9.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/nicosuave/memex/internal/merrors"
	"github.com/nicosuave/memex/internal/record"
)

const docIDSeqFile = "next_doc_id"

// indexDoc is the document shape bleve indexes. Filters live as
// keyword/numeric/boolean fields; Text is the only analyzed field;
// RecordJSON is a stored-but-unindexed blob that lets Search/
// RecentRecords/etc reconstruct the full record.Record without a
// second store lookup.
type indexDoc struct {
	Text       string `json:"text"`
	SessionID  string `json:"session_id"`
	Project    string `json:"project"`
	Role       string `json:"role"`
	Source     string `json:"source"`
	SourcePath string `json:"source_path"`
	Tool       bool   `json:"tool"`
	TS         int64  `json:"ts"`
	RecordJSON string `json:"record_json"`
}

// FullTextIndex is the inverted full-text index described by
// SPEC_FULL.md §4.1.
type FullTextIndex struct {
	mu      sync.RWMutex
	idx     bleve.Index
	dir     string
	closed  bool
	nextID  uint64
	pending []record.Record
}

// OpenFullText opens the index at dir, creating it if absent.
// Idempotent: calling it again on the same directory recovers the
// prior committed state without repair.
func OpenFullText(dir string) (*FullTextIndex, error) {
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return nil, merrors.New(merrors.Io, "create index parent directory", err)
	}

	m, err := buildMapping()
	if err != nil {
		return nil, merrors.New(merrors.Corruption, "build index mapping", err)
	}

	idx, err := bleve.Open(dir)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(dir, m)
	} else if err != nil && isCorruptionError(err) {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			return nil, merrors.New(merrors.Corruption, "clear corrupted index", rmErr)
		}
		idx, err = bleve.New(dir, m)
	}
	if err != nil {
		return nil, merrors.New(merrors.Corruption, "open or create index", err)
	}

	nextID, err := readDocIDSeq(dir)
	if err != nil {
		return nil, err
	}

	return &FullTextIndex{idx: idx, dir: dir, nextID: nextID}, nil
}

func buildMapping() (*mapping.IndexMappingImpl, error) {
	m := bleve.NewIndexMapping()
	if err := addTextAnalyzer(m); err != nil {
		return nil, err
	}

	doc := bleve.NewDocumentMapping()

	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = textAnalyzerName
	doc.AddFieldMappingsAt("Text", textField)

	kw := func() *mapping.FieldMapping {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = keyword.Name
		return f
	}
	doc.AddFieldMappingsAt("SessionID", kw())
	doc.AddFieldMappingsAt("Project", kw())
	doc.AddFieldMappingsAt("Role", kw())
	doc.AddFieldMappingsAt("Source", kw())
	doc.AddFieldMappingsAt("SourcePath", kw())

	boolField := bleve.NewBooleanFieldMapping()
	doc.AddFieldMappingsAt("Tool", boolField)

	numField := bleve.NewNumericFieldMapping()
	doc.AddFieldMappingsAt("TS", numField)

	stored := bleve.NewTextFieldMapping()
	stored.Analyzer = keyword.Name
	stored.Index = false
	doc.AddFieldMappingsAt("RecordJSON", stored)

	m.DefaultMapping = doc
	return m, nil
}

func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "unexpected end of JSON") ||
		strings.Contains(s, "error parsing mapping JSON") ||
		strings.Contains(s, "failed to load segment") ||
		strings.Contains(s, "error opening bolt") ||
		err == bleve.ErrorIndexMetaCorrupt
}

func readDocIDSeq(dir string) (uint64, error) {
	data, err := os.ReadFile(filepath.Join(dir, docIDSeqFile))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, merrors.New(merrors.Io, "read doc_id sequence", err)
	}
	n, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, merrors.New(merrors.Corruption, "parse doc_id sequence", err)
	}
	return n, nil
}

func writeDocIDSeq(dir string, next uint64) error {
	tmp := filepath.Join(dir, docIDSeqFile+".tmp")
	if err := os.WriteFile(tmp, []byte(strconv.FormatUint(next, 10)), 0o644); err != nil {
		return merrors.New(merrors.Io, "write doc_id sequence", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, docIDSeqFile)); err != nil {
		return merrors.New(merrors.Io, "rename doc_id sequence", err)
	}
	return nil
}

// Add stages r, assigning and returning its doc_id. The record is not
// visible to readers until Commit.
func (f *FullTextIndex) Add(r record.Record) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, merrors.New(merrors.Io, "index is closed", nil)
	}

	r.DocID = f.nextID
	f.nextID++
	f.pending = append(f.pending, r)
	return r.DocID, nil
}

// Commit flushes staged records atomically as one bleve batch.
func (f *FullTextIndex) Commit() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return merrors.New(merrors.Io, "index is closed", nil)
	}
	if len(f.pending) == 0 {
		return nil
	}

	batch := f.idx.NewBatch()
	for _, r := range f.pending {
		blob, err := marshalRecord(r)
		if err != nil {
			return merrors.New(merrors.Corruption, "marshal record", err)
		}
		doc := indexDoc{
			Text:       r.Text,
			SessionID:  r.SessionID,
			Project:    r.Project,
			Role:       r.Role,
			Source:     string(r.Source),
			SourcePath: r.SourcePath,
			Tool:       record.IsToolRole(r.Role),
			TS:         r.TS,
			RecordJSON: blob,
		}
		if err := batch.Index(docIDKey(r.DocID), doc); err != nil {
			return merrors.New(merrors.Io, "stage document in batch", err)
		}
	}

	if err := f.idx.Batch(batch); err != nil {
		return merrors.New(merrors.Corruption, "commit batch", err)
	}
	if err := writeDocIDSeq(f.dir, f.nextID); err != nil {
		return err
	}
	f.pending = nil
	return nil
}

// DocCount returns the number of committed records.
func (f *FullTextIndex) DocCount() (uint64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n, err := f.idx.DocCount()
	if err != nil {
		return 0, merrors.New(merrors.Io, "doc count", err)
	}
	return n, nil
}

// RecentRecords returns up to n records sorted by ts descending.
func (f *FullTextIndex) RecentRecords(n int) ([]record.Record, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = n
	req.SortBy([]string{"-TS"})
	req.Fields = []string{"RecordJSON"}

	res, err := f.idx.Search(req)
	if err != nil {
		return nil, merrors.New(merrors.Io, "recent records search", err)
	}
	return hitsToRecords(res.Hits)
}

// RecordsBySessionID returns every record belonging to sessionID, in
// no particular order (callers sort per their own needs, e.g. the
// session/preview layers sort by turn_id/ts/doc_id).
func (f *FullTextIndex) RecordsBySessionID(sessionID string) ([]record.Record, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	q := query.NewTermQuery(sessionID)
	q.SetField("SessionID")
	req := bleve.NewSearchRequest(q)
	docCount, _ := f.idx.DocCount()
	req.Size = int(docCount)
	req.Fields = []string{"RecordJSON"}

	res, err := f.idx.Search(req)
	if err != nil {
		return nil, merrors.New(merrors.Io, "records by session search", err)
	}
	return hitsToRecords(res.Hits)
}

// RecordsByDocIDs returns the records for the given doc IDs, keyed by
// DocID. IDs with no matching committed record are simply absent from
// the result rather than erroring, since a vector-index neighbor can
// reference a doc_id that fusion needs to resolve speculatively.
func (f *FullTextIndex) RecordsByDocIDs(ids []uint64) (map[uint64]record.Record, error) {
	if len(ids) == 0 {
		return map[uint64]record.Record{}, nil
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = docIDKey(id)
	}
	req := bleve.NewSearchRequest(bleve.NewDocIDQuery(keys))
	req.Size = len(keys)
	req.Fields = []string{"RecordJSON"}

	res, err := f.idx.Search(req)
	if err != nil {
		return nil, merrors.New(merrors.Io, "records by doc id search", err)
	}
	recs, err := hitsToRecords(res.Hits)
	if err != nil {
		return nil, err
	}
	out := make(map[uint64]record.Record, len(recs))
	for _, r := range recs {
		out[r.DocID] = r
	}
	return out, nil
}

// ForEachRecord streams every committed record through cb in no
// particular order, in pages of 1000 records.
func (f *FullTextIndex) ForEachRecord(cb func(record.Record) error) error {
	f.mu.RLock()
	docCount, err := f.idx.DocCount()
	f.mu.RUnlock()
	if err != nil {
		return merrors.New(merrors.Io, "doc count", err)
	}

	const pageSize = 1000
	for from := uint64(0); from < docCount; from += pageSize {
		f.mu.RLock()
		req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
		req.From = int(from)
		req.Size = pageSize
		req.Fields = []string{"RecordJSON"}
		res, err := f.idx.Search(req)
		f.mu.RUnlock()
		if err != nil {
			return merrors.New(merrors.Io, "for each record search", err)
		}
		recs, err := hitsToRecords(res.Hits)
		if err != nil {
			return err
		}
		for _, r := range recs {
			if err := cb(r); err != nil {
				return err
			}
		}
		if len(res.Hits) < pageSize {
			break
		}
	}
	return nil
}

// HasFingerprint reports whether fingerprint already exists among
// committed records, used as the Ingest Orchestrator's secondary
// dedup map per SPEC_FULL.md §4.4 step 4. Full-text search does not
// index fingerprints directly, so this scans every committed record
// with the same source_path; the Ingest Orchestrator is expected to additionally keep
// a recent-window in-memory set so this path is only hit for records
// outside that window.
func (f *FullTextIndex) HasFingerprint(sourcePath string, fp uint64) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	q := query.NewTermQuery(sourcePath)
	q.SetField("SourcePath")
	req := bleve.NewSearchRequest(q)
	docCount, _ := f.idx.DocCount()
	req.Size = int(docCount)
	req.Fields = []string{"RecordJSON"}

	res, err := f.idx.Search(req)
	if err != nil {
		return false, merrors.New(merrors.Io, "fingerprint lookup search", err)
	}
	recs, err := hitsToRecords(res.Hits)
	if err != nil {
		return false, err
	}
	for _, r := range recs {
		if record.Fingerprint(r.SourcePath, r.SessionID, r.TurnID, r.TS, r.Text) == fp {
			return true, nil
		}
	}
	return false, nil
}

// ScoredRecord pairs a record with its lexical score.
type ScoredRecord struct {
	Score  float64
	Record record.Record
}

// Search implements the full-text index's own contract: match on text
// (when non-empty) AND-combined with Filter, returning at most limit
// items sorted by score desc then ts desc. limit is lower-bounded to
// 20 internally, per SPEC_FULL.md §4.1.
func (f *FullTextIndex) Search(queryText string, filter Filter, limit int) ([]ScoredRecord, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if limit < 20 {
		limit = 20
	}

	conjuncts := filterQueries(filter)
	var q query.Query
	if strings.TrimSpace(queryText) != "" {
		mq := bleve.NewMatchQuery(queryText)
		mq.SetField("Text")
		conjuncts = append(conjuncts, mq)
	}
	if len(conjuncts) == 0 {
		q = bleve.NewMatchAllQuery()
	} else {
		q = bleve.NewConjunctionQuery(conjuncts...)
	}

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{"RecordJSON"}
	req.SortBy([]string{"-_score", "-TS"})

	res, err := f.idx.Search(req)
	if err != nil {
		return nil, merrors.New(merrors.Io, "search", err)
	}

	out := make([]ScoredRecord, 0, len(res.Hits))
	for _, hit := range res.Hits {
		r, err := recordFromFields(hit.Fields)
		if err != nil {
			continue
		}
		out = append(out, ScoredRecord{Score: hit.Score, Record: r})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Record.TS > out[j].Record.TS
	})
	return out, nil
}

func filterQueries(filter Filter) []query.Query {
	var qs []query.Query
	term := func(field, value string) {
		tq := query.NewTermQuery(value)
		tq.SetField(field)
		qs = append(qs, tq)
	}
	if filter.Project != "" {
		term("Project", filter.Project)
	}
	if filter.Role != "" {
		term("Role", filter.Role)
	}
	if filter.ToolSet {
		bq := query.NewBoolFieldQuery(filter.Tool)
		bq.SetField("Tool")
		qs = append(qs, bq)
	}
	if filter.SessionID != "" {
		term("SessionID", filter.SessionID)
	}
	if len(filter.Sources) > 0 {
		var disjuncts []query.Query
		for _, s := range filter.Sources {
			tq := query.NewTermQuery(string(s))
			tq.SetField("Source")
			disjuncts = append(disjuncts, tq)
		}
		qs = append(qs, bleve.NewDisjunctionQuery(disjuncts...))
	}
	if filter.SinceMS != 0 || filter.UntilMS != 0 {
		min := float64(filter.SinceMS)
		max := float64(filter.UntilMS)
		var minP, maxP *float64
		if filter.SinceMS != 0 {
			minP = &min
		}
		if filter.UntilMS != 0 {
			maxP = &max
		}
		tru := true
		nq := bleve.NewNumericRangeInclusiveQuery(minP, maxP, &tru, &tru)
		nq.SetField("TS")
		qs = append(qs, nq)
	}
	return qs
}

// Close closes the underlying bleve index.
func (f *FullTextIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	return f.idx.Close()
}

func docIDKey(id uint64) string {
	return strconv.FormatUint(id, 10)
}

func hitsToRecords(hits []*search.DocumentMatch) ([]record.Record, error) {
	out := make([]record.Record, 0, len(hits))
	for _, h := range hits {
		r, err := recordFromFields(h.Fields)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func recordFromFields(fields map[string]interface{}) (record.Record, error) {
	raw, ok := fields["RecordJSON"]
	if !ok {
		return record.Record{}, fmt.Errorf("missing record_json field")
	}
	s, ok := raw.(string)
	if !ok {
		return record.Record{}, fmt.Errorf("record_json field is not a string")
	}
	return unmarshalRecord(s)
}
