// Package resolver maps free-text product mentions, plus optional price
// and unit hints, to ranked catalog-entry candidates. Candidate lookup
// goes through an inverted keyword index rebuilt per catalog version;
// results are cached until the next rebuild.
package resolver

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/rapeepat/shopflow/internal/core/domain"
)

const (
	DefaultTopK     = 5
	DefaultMinScore = 300
)

// CatalogSource supplies catalog snapshots and a version counter bumped on
// every catalog mutation. The resolver rebuilds its index whenever the
// version moves.
type CatalogSource interface {
	Version() int64
	Snapshot(ctx context.Context) ([]domain.CatalogEntry, error)
}

type Candidate struct {
	Entry domain.CatalogEntry
	Score int
}

// Result is a ranked candidate list. Ambiguous means the top two scores
// landed within the ambiguity threshold and the caller must ask the user
// to disambiguate instead of auto-selecting.
type Result struct {
	Candidates []Candidate
	Ambiguous  bool
}

// Best returns the single auto-selectable candidate, or false when the
// result is empty or ambiguous.
func (r Result) Best() (Candidate, bool) {
	if len(r.Candidates) == 0 || r.Ambiguous {
		return Candidate{}, false
	}
	return r.Candidates[0], true
}

type Query struct {
	Text      string
	PriceHint float64
	UnitHint  string
	TopK      int
	MinScore  int
}

type Resolver struct {
	source   CatalogSource
	synonyms map[string][]string

	mu      sync.RWMutex
	idx     *index
	version int64
	cache   *resultCache

	rebuild singleflight.Group
}

// New builds a resolver over source. extraSynonyms augments the built-in
// synonym table; keys and values are folded before use.
func New(source CatalogSource, extraSynonyms map[string][]string) *Resolver {
	syn := make(map[string][]string, len(defaultSynonyms)+len(extraSynonyms))
	for k, v := range defaultSynonyms {
		syn[domain.FoldKey(k)] = v
	}
	for k, v := range extraSynonyms {
		key := domain.FoldKey(k)
		syn[key] = append(syn[key], v...)
	}
	return &Resolver{
		source:   source,
		synonyms: syn,
		cache:    newResultCache(defaultCacheSize),
	}
}

// Search ranks catalog entries against the query. Only candidates scoring
// at least MinScore are returned, at most TopK of them, best first.
func (r *Resolver) Search(ctx context.Context, q Query) (Result, error) {
	if q.Text == "" {
		return Result{}, fmt.Errorf("%w: empty query", domain.ErrValidation)
	}
	if q.TopK <= 0 {
		q.TopK = DefaultTopK
	}
	if q.MinScore <= 0 {
		q.MinScore = DefaultMinScore
	}

	idx, err := r.currentIndex(ctx)
	if err != nil {
		return Result{}, err
	}

	key := cacheKey(q)
	if res, ok := r.cache.get(key); ok {
		return res, nil
	}

	folded := domain.FoldKey(q.Text)
	keywords := extractKeywords(q.Text, r.synonyms)
	foldedUnit := domain.FoldKey(q.UnitHint)

	positions := idx.candidates(keywords)
	cands := make([]Candidate, 0, len(positions))
	for _, pos := range positions {
		in := idx.entries[pos]
		s := score(folded, keywords, q.PriceHint, foldedUnit, in)
		if s >= q.MinScore {
			cands = append(cands, Candidate{Entry: in.entry, Score: s})
		}
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Score != cands[j].Score {
			return cands[i].Score > cands[j].Score
		}
		return cands[i].Entry.Key() < cands[j].Entry.Key()
	})
	if len(cands) > q.TopK {
		cands = cands[:q.TopK]
	}

	res := Result{Candidates: cands}
	if len(cands) >= 2 && cands[0].Score-cands[1].Score < ambiguityThreshold {
		res.Ambiguous = true
	}

	r.cache.put(key, res)
	return res, nil
}

// currentIndex returns the index for the source's current version,
// rebuilding it when stale. Concurrent callers hitting the same stale
// version share one rebuild.
func (r *Resolver) currentIndex(ctx context.Context) (*index, error) {
	want := r.source.Version()

	r.mu.RLock()
	if r.idx != nil && r.version == want {
		idx := r.idx
		r.mu.RUnlock()
		return idx, nil
	}
	r.mu.RUnlock()

	_, err, _ := r.rebuild.Do(strconv.FormatInt(want, 10), func() (any, error) {
		entries, err := r.source.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		idx := buildIndex(entries, r.synonyms)
		r.mu.Lock()
		r.idx = idx
		r.version = want
		r.cache.flush()
		r.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.idx, nil
}

func cacheKey(q Query) string {
	return fmt.Sprintf("%s|%.4f|%s|%d|%d",
		domain.FoldKey(q.Text), q.PriceHint, domain.FoldKey(q.UnitHint), q.TopK, q.MinScore)
}
