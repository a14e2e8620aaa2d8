package search

import (
	"context"

	"github.com/nicosuave/memex/internal/embed"
	"github.com/nicosuave/memex/internal/record"
	"github.com/nicosuave/memex/internal/store"
)

// QueryOptions is the caller-facing search request, matching spec.md
// §6's QueryOptions external interface.
type QueryOptions struct {
	Query  string
	Filter store.Filter
	Limit  int
	Alpha  float64 // 0 selects DefaultAlpha in Search; out-of-range values fall back via Weights.alpha
}

// Hit pairs a fused score with the full record, the shape the Session
// Aggregator consumes.
type Hit struct {
	Score  float64
	Record record.Record
}

// Engine is the hybrid search engine, grounded on the teacher's
// internal/search/engine.go single-query-embed-per-search shape but
// stripped of the teacher's reranking/classification/multi-query
// layers — none of which spec.md §4.5 calls for.
type Engine struct {
	ft       *store.FullTextIndex
	vs       *store.VectorStore
	embedder embed.Embedder // nil disables the vector half of fusion
}

func NewEngine(ft *store.FullTextIndex, vs *store.VectorStore, embedder embed.Embedder) *Engine {
	return &Engine{ft: ft, vs: vs, embedder: embedder}
}

// Search implements spec.md §4.5's hybrid scoring. An empty query
// bypasses scoring entirely and returns the most recent records
// matching the filter (§4.6's "recent" branch is the caller's
// responsibility — the session aggregator, not this engine — so here
// an empty query simply returns RecentRecords through the same Hit
// shape for a uniform caller contract).
func (e *Engine) Search(ctx context.Context, opts QueryOptions) ([]Hit, error) {
	limit := opts.Limit
	if limit < 20 {
		limit = 20
	}

	if opts.Query == "" {
		recs, err := e.ft.RecentRecords(limit)
		if err != nil {
			return nil, err
		}
		hits := make([]Hit, 0, len(recs))
		for _, r := range recs {
			if !opts.Filter.Matches(r) {
				continue
			}
			hits = append(hits, Hit{Score: 0, Record: r})
		}
		return hits, nil
	}

	candidateLimit := limit * 4
	scored, err := e.ft.Search(opts.Query, opts.Filter, candidateLimit)
	if err != nil {
		return nil, err
	}

	byDocID := make(map[uint64]record.Record, len(scored))
	lex := make([]LexCandidate, 0, len(scored))
	for _, sr := range scored {
		byDocID[sr.Record.DocID] = sr.Record
		lex = append(lex, LexCandidate{DocID: sr.Record.DocID, Score: sr.Score, TS: sr.Record.TS})
	}

	var vec []VecCandidate
	if e.embedder != nil && e.vs != nil && hasIndexableToken(opts.Query) {
		queryVec, err := e.embedder.Embed(ctx, opts.Query)
		if err == nil {
			filterFn := func(docID uint64) bool {
				r, ok := byDocID[docID]
				if !ok {
					return true // unknown to the lexical set yet; resolved and filtered below
				}
				return opts.Filter.Matches(r)
			}
			vecHits, err := e.vs.Search(queryVec, limit, filterFn)
			if err == nil {
				var missing []uint64
				for _, vh := range vecHits {
					if _, ok := byDocID[vh.DocID]; !ok {
						missing = append(missing, vh.DocID)
					}
				}
				if len(missing) > 0 {
					if fetched, ferr := e.ft.RecordsByDocIDs(missing); ferr == nil {
						for id, r := range fetched {
							byDocID[id] = r
						}
					}
				}

				vec = make([]VecCandidate, 0, len(vecHits))
				for _, vh := range vecHits {
					r, ok := byDocID[vh.DocID]
					if !ok {
						continue // vector neighbor whose record no longer exists
					}
					if !opts.Filter.Matches(r) {
						continue
					}
					vec = append(vec, VecCandidate{DocID: vh.DocID, Score: float64(vh.Score), TS: r.TS})
				}
			}
		}
	}

	alpha := opts.Alpha
	if alpha == 0 {
		alpha = DefaultAlpha
	}
	fused := Fusion{}.Fuse(lex, vec, Weights{Alpha: alpha})

	hits := make([]Hit, 0, len(fused))
	for _, f := range fused {
		r, ok := byDocID[f.DocID]
		if !ok {
			continue
		}
		if !opts.Filter.Matches(r) {
			continue
		}
		hits = append(hits, Hit{Score: f.Score, Record: r})
		if len(hits) >= limit {
			break
		}
	}
	return hits, nil
}

func hasIndexableToken(query string) bool {
	return len(store.IndexableTokens(query)) > 0
}
