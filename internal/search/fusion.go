// Package search implements the hybrid search engine: a lexical
// candidate set from the full-text index fused with dense vector
// cosine scores.
package search

import "sort"

// Weights controls the balance between the lexical and vector
// components of the fused score.
type Weights struct {
	Alpha float64 // weight on the normalized lexical score; (1-Alpha) on cosine
}

// DefaultAlpha is used when the caller supplies an Alpha outside [0,1].
const DefaultAlpha = 0.5

func (w Weights) alpha() float64 {
	if w.Alpha < 0 || w.Alpha > 1 {
		return DefaultAlpha
	}
	return w.Alpha
}

// FusedResult is one candidate after fusion, carrying both component
// scores for debugging/snippet selection as well as the combined
// score actually used for ranking.
type FusedResult struct {
	DocID      uint64
	Score      float64 // final fused score
	LexScore   float64 // raw lexical score, as returned by the full-text index
	HasLex     bool
	VecScore   float64 // cosine similarity, [-1,1]
	HasVec     bool
	TS         int64
}

// Fusion combines lexical and vector candidate lists into one ranked
// list, following spec.md §4.5's exact linear formula — a deliberate
// departure from the teacher's Reciprocal Rank Fusion, documented in
// DESIGN.md. The surrounding code shape (typed Fusion/Weights, a
// getOrCreate-style candidate map, a sorted-slice tie-break compare
// function) is kept from the teacher; only the scoring body changes.
type Fusion struct{}

// LexCandidate and VecCandidate are the inputs Fuse consumes, kept
// deliberately minimal so this package doesn't import internal/store
// just to reuse its result types.
type LexCandidate struct {
	DocID uint64
	Score float64
	TS    int64
}

type VecCandidate struct {
	DocID uint64
	Score float64
	TS    int64
}

// Fuse combines lex and vec into a descending-score-ordered slice.
// score = α·normalized(lexical) + (1−α)·cosine, where normalized is a
// min-max scale of the lexical score over the candidate set (vector-only
// candidates contribute 0 to the lexical term, exactly as an absent
// lexical hit has no lexical evidence). Ties break by descending ts,
// then ascending doc_id, per spec.md §4.5.
func (Fusion) Fuse(lex []LexCandidate, vec []VecCandidate, w Weights) []FusedResult {
	if len(lex) == 0 && len(vec) == 0 {
		return []FusedResult{}
	}

	candidates := make(map[uint64]*FusedResult, len(lex)+len(vec))
	getOrCreate := func(docID uint64, ts int64) *FusedResult {
		if r, ok := candidates[docID]; ok {
			return r
		}
		r := &FusedResult{DocID: docID, TS: ts}
		candidates[docID] = r
		return r
	}

	minLex, maxLex := 0.0, 0.0
	for i, l := range lex {
		if i == 0 || l.Score < minLex {
			minLex = l.Score
		}
		if i == 0 || l.Score > maxLex {
			maxLex = l.Score
		}
	}

	for _, l := range lex {
		r := getOrCreate(l.DocID, l.TS)
		r.LexScore = l.Score
		r.HasLex = true
	}
	for _, v := range vec {
		r := getOrCreate(v.DocID, v.TS)
		r.VecScore = v.Score
		r.HasVec = true
		if v.TS > r.TS {
			r.TS = v.TS
		}
	}

	alpha := w.alpha()
	spread := maxLex - minLex
	for _, r := range candidates {
		normalizedLex := 0.0
		if r.HasLex && spread > 0 {
			normalizedLex = (r.LexScore - minLex) / spread
		} else if r.HasLex {
			normalizedLex = 1.0 // single-candidate set: the only lexical score is the max
		}
		r.Score = alpha*normalizedLex + (1-alpha)*r.VecScore
	}

	results := make([]FusedResult, 0, len(candidates))
	for _, r := range candidates {
		results = append(results, *r)
	}
	sort.Slice(results, func(i, j int) bool { return compare(results[i], results[j]) })
	return results
}

// compare orders by descending score, then descending ts, then
// ascending doc_id, matching spec.md §4.5's tie-break rule.
func compare(a, b FusedResult) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.TS != b.TS {
		return a.TS > b.TS
	}
	return a.DocID < b.DocID
}
