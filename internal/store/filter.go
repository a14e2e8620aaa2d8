package store

import "github.com/nicosuave/memex/internal/record"

// Filter is the set of AND-combined post-tokenization filters accepted
// by the full-text index's Search and by the vector store's search
// predicate, per SPEC_FULL.md §4.1/§4.2.
type Filter struct {
	Project   string // exact match; "" means unfiltered
	Role      string // exact match; "" means unfiltered
	Tool      bool   // if true, only tool-role records
	ToolSet   bool   // whether Tool was explicitly requested
	SessionID string // exact match; "" means unfiltered
	Sources   []record.Source
	SinceMS   int64 // inclusive; 0 means unbounded
	UntilMS   int64 // inclusive; 0 means unbounded
}

// Matches reports whether r satisfies every set field of f. Used both
// by the brute-force vector filter predicate and as the reference
// semantics the bleve-backed query must reproduce.
func (f Filter) Matches(r record.Record) bool {
	if f.Project != "" && r.Project != f.Project {
		return false
	}
	if f.Role != "" && r.Role != f.Role {
		return false
	}
	if f.ToolSet {
		if record.IsToolRole(r.Role) != f.Tool {
			return false
		}
	}
	if f.SessionID != "" && r.SessionID != f.SessionID {
		return false
	}
	if len(f.Sources) > 0 {
		ok := false
		for _, s := range f.Sources {
			if r.Source == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.SinceMS != 0 && r.TS < f.SinceMS {
		return false
	}
	if f.UntilMS != 0 && r.TS > f.UntilMS {
		return false
	}
	return true
}
