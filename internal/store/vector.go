package store

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	"github.com/nicosuave/memex/internal/merrors"
)

const (
	vectorsFileName = "vectors.f32"
	docIDsFileName  = "doc_ids.u64"
	metaFileName    = "meta.json"

	// bruteForceThreshold is the store size below which Search scans all
	// vectors directly instead of querying the HNSW graph, guaranteeing
	// exact (not approximate) recall for small stores — the common case
	// in tests and for users with a few thousand conversation turns.
	bruteForceThreshold = 4096
)

// vectorMeta is the on-disk shape of meta.json, per SPEC_FULL.md §6.
type vectorMeta struct {
	Dims  int    `json:"dims"`
	Count int    `json:"count"`
	Model string `json:"model"`
}

// VectorHit is one result of a vector search.
type VectorHit struct {
	DocID uint64
	Score float32 // cosine similarity, higher is better
}

// VectorStore is the dense vector store described by SPEC_FULL.md
// §4.2: an append-only flat-file pair (vectors.f32, doc_ids.u64) plus
// meta.json, with an in-memory coder/hnsw graph hydrated from the flat
// files for ANN search.
type VectorStore struct {
	mu  sync.RWMutex
	dir string

	dims  int
	model string

	docIDs  []uint64
	vectors [][]float32 // kept in memory for brute-force search and for rebuilding the graph
	graph   *hnsw.Graph[uint64]

	pendingIDs  []uint64
	pendingVecs [][]float32

	lastDocID    uint64
	haveLastDoc  bool
	closed       bool
}

// OpenVectorStore opens the vector store rooted at dir. A missing
// meta.json yields an empty store (dims unset), never an error.
func OpenVectorStore(dir string) (*VectorStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, merrors.New(merrors.Io, "create vectors directory", err)
	}

	s := &VectorStore{
		dir:   dir,
		graph: newGraph(),
	}

	metaPath := filepath.Join(dir, metaFileName)
	data, err := os.ReadFile(metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, merrors.New(merrors.Io, "read vector meta", err)
	}

	var meta vectorMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, merrors.New(merrors.Corruption, "parse vector meta", err)
	}
	s.dims = meta.Dims
	s.model = meta.Model

	docIDs, err := readDocIDs(filepath.Join(dir, docIDsFileName), meta.Count)
	if err != nil {
		return nil, err
	}
	vectors, err := readVectors(filepath.Join(dir, vectorsFileName), meta.Dims, meta.Count)
	if err != nil {
		return nil, err
	}
	if len(docIDs) != len(vectors) {
		return nil, merrors.New(merrors.Corruption, "doc_ids/vectors count mismatch", nil)
	}

	s.docIDs = docIDs
	s.vectors = vectors
	for i, id := range docIDs {
		s.graph.Add(hnsw.MakeNode(id, vectors[i]))
		if !s.haveLastDoc || id > s.lastDocID {
			s.lastDocID = id
			s.haveLastDoc = true
		}
	}

	return s, nil
}

func newGraph() *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	return g
}

// Dims returns the store's vector width, or 0 if the store is empty.
func (s *VectorStore) Dims() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dims
}

// Count returns the number of committed vectors.
func (s *VectorStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docIDs)
}

// Append stages (docID, vec) for the next Commit. docID must be
// strictly greater than every previously appended doc_id (including
// pending, uncommitted ones). Gaps in the doc_id sequence are not
// checked: an Append that skips doc_ids is accepted.
func (s *VectorStore) Append(docID uint64, vec []float32, modelTag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return merrors.New(merrors.Io, "vector store is closed", nil)
	}

	if s.dims == 0 && len(s.pendingVecs) == 0 {
		s.dims = len(vec)
		s.model = modelTag
	}
	if len(vec) != s.dims {
		return merrors.New(merrors.Corruption, "vector dimension mismatch", nil)
	}
	if s.model != "" && modelTag != "" && modelTag != s.model {
		return merrors.New(merrors.Corruption, "vector model mismatch", nil)
	}

	lastPending := s.lastDocID
	havePending := s.haveLastDoc
	if len(s.pendingIDs) > 0 {
		lastPending = s.pendingIDs[len(s.pendingIDs)-1]
		havePending = true
	}
	if havePending && docID <= lastPending {
		return merrors.New(merrors.Corruption, "doc_id not strictly increasing in vector append order", nil)
	}

	cp := make([]float32, len(vec))
	copy(cp, vec)
	normalize(cp)

	s.pendingIDs = append(s.pendingIDs, docID)
	s.pendingVecs = append(s.pendingVecs, cp)
	return nil
}

// Commit flushes staged appends to the flat files and the in-memory
// graph, atomically rewriting meta.json last.
func (s *VectorStore) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return merrors.New(merrors.Io, "vector store is closed", nil)
	}
	if len(s.pendingIDs) == 0 {
		return nil
	}

	if err := appendDocIDs(filepath.Join(s.dir, docIDsFileName), s.pendingIDs); err != nil {
		return err
	}
	if err := appendVectors(filepath.Join(s.dir, vectorsFileName), s.pendingVecs); err != nil {
		return err
	}

	for i, id := range s.pendingIDs {
		s.graph.Add(hnsw.MakeNode(id, s.pendingVecs[i]))
		s.docIDs = append(s.docIDs, id)
		s.vectors = append(s.vectors, s.pendingVecs[i])
		s.lastDocID = id
		s.haveLastDoc = true
	}

	meta := vectorMeta{Dims: s.dims, Count: len(s.docIDs), Model: s.model}
	blob, err := json.Marshal(meta)
	if err != nil {
		return merrors.New(merrors.Corruption, "marshal vector meta", err)
	}
	tmp := filepath.Join(s.dir, metaFileName+".tmp")
	if err := os.WriteFile(tmp, blob, 0o644); err != nil {
		return merrors.New(merrors.Io, "write vector meta", err)
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, metaFileName)); err != nil {
		return merrors.New(merrors.Io, "rename vector meta", err)
	}

	s.pendingIDs = nil
	s.pendingVecs = nil
	return nil
}

// Search returns up to topK (doc_id, cosine_sim) pairs whose doc_id
// passes filter, sorted by descending similarity. Below
// bruteForceThreshold committed vectors, Search scans exhaustively for
// exact recall; above it, Search queries the HNSW graph with an
// overfetch factor before applying filter, trading a small recall loss
// for sublinear query time (still within the ≥0.95 recall allowance of
// SPEC_FULL.md §4.2).
func (s *VectorStore) Search(queryVec []float32, topK int, filter func(uint64) bool) ([]VectorHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.dims == 0 || len(s.docIDs) == 0 {
		return nil, nil
	}
	if len(queryVec) != s.dims {
		return nil, merrors.New(merrors.Corruption, "query vector dimension mismatch", nil)
	}

	q := make([]float32, len(queryVec))
	copy(q, queryVec)
	normalize(q)

	if len(s.docIDs) <= bruteForceThreshold {
		hits := make([]VectorHit, 0, len(s.docIDs))
		for i, id := range s.docIDs {
			if filter != nil && !filter(id) {
				continue
			}
			hits = append(hits, VectorHit{DocID: id, Score: cosine(q, s.vectors[i])})
		}
		sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
		if len(hits) > topK {
			hits = hits[:topK]
		}
		return hits, nil
	}

	overfetch := topK * 4
	if overfetch < 50 {
		overfetch = 50
	}
	if overfetch > len(s.docIDs) {
		overfetch = len(s.docIDs)
	}
	nodes := s.graph.Search(q, overfetch)
	hits := make([]VectorHit, 0, len(nodes))
	for _, n := range nodes {
		if filter != nil && !filter(n.Key) {
			continue
		}
		hits = append(hits, VectorHit{DocID: n.Key, Score: cosine(q, n.Value)})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Close releases in-memory resources. The flat files are already
// durable as of the last Commit.
func (s *VectorStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func normalize(v []float32) {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

func readDocIDs(path string, count int) ([]uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if count == 0 {
				return nil, nil
			}
			return nil, merrors.New(merrors.Corruption, "doc_ids.u64 missing but meta.json reports records", err)
		}
		return nil, merrors.New(merrors.Io, "read doc_ids.u64", err)
	}
	if len(data) != count*8 {
		return nil, merrors.New(merrors.Corruption, "doc_ids.u64 size does not match meta.json count", nil)
	}
	out := make([]uint64, count)
	for i := 0; i < count; i++ {
		out[i] = binary.LittleEndian.Uint64(data[i*8 : i*8+8])
	}
	return out, nil
}

func readVectors(path string, dims, count int) ([][]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if count == 0 {
				return nil, nil
			}
			return nil, merrors.New(merrors.Corruption, "vectors.f32 missing but meta.json reports records", err)
		}
		return nil, merrors.New(merrors.Io, "read vectors.f32", err)
	}
	want := count * dims * 4
	if len(data) != want {
		return nil, merrors.New(merrors.Corruption, "vectors.f32 size does not match meta.json dims*count", nil)
	}
	out := make([][]float32, count)
	for i := 0; i < count; i++ {
		vec := make([]float32, dims)
		for d := 0; d < dims; d++ {
			off := (i*dims + d) * 4
			bits := binary.LittleEndian.Uint32(data[off : off+4])
			vec[d] = math.Float32frombits(bits)
		}
		out[i] = vec
	}
	return out, nil
}

func appendDocIDs(path string, ids []uint64) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return merrors.New(merrors.Io, "open doc_ids.u64", err)
	}
	defer f.Close()

	buf := make([]byte, 8*len(ids))
	for i, id := range ids {
		binary.LittleEndian.PutUint64(buf[i*8:i*8+8], id)
	}
	if _, err := f.Write(buf); err != nil {
		return merrors.New(merrors.Io, "append doc_ids.u64", err)
	}
	return nil
}

func appendVectors(path string, vecs [][]float32) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return merrors.New(merrors.Io, "open vectors.f32", err)
	}
	defer f.Close()

	var dims int
	if len(vecs) > 0 {
		dims = len(vecs[0])
	}
	buf := make([]byte, 4*dims*len(vecs))
	pos := 0
	for _, vec := range vecs {
		for _, x := range vec {
			binary.LittleEndian.PutUint32(buf[pos:pos+4], math.Float32bits(x))
			pos += 4
		}
	}
	if _, err := f.Write(buf); err != nil {
		return merrors.New(merrors.Io, "append vectors.f32", err)
	}
	return nil
}
