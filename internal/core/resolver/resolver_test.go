package resolver

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapeepat/shopflow/internal/core/domain"
)

type fakeSource struct {
	mu      sync.Mutex
	version int64
	entries []domain.CatalogEntry
}

func newFakeSource(entries ...domain.CatalogEntry) *fakeSource {
	return &fakeSource{version: 1, entries: entries}
}

func (f *fakeSource) Version() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.version
}

func (f *fakeSource) Snapshot(context.Context) ([]domain.CatalogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.CatalogEntry(nil), f.entries...), nil
}

func (f *fakeSource) replace(entries ...domain.CatalogEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = entries
	f.version++
}

func entry(name, unit string, price float64, stock int) domain.CatalogEntry {
	return domain.CatalogEntry{Name: name, Unit: unit, Price: price, Stock: stock}
}

func TestSearch_ExactMatchDominates(t *testing.T) {
	src := newFakeSource(
		entry("Coke", "bottle", 25, 10),
		entry("Coke Zero", "bottle", 30, 10),
	)
	r := New(src, nil)

	res, err := r.Search(context.Background(), Query{Text: "coke"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Candidates)
	assert.Equal(t, "Coke", res.Candidates[0].Entry.Name)
	assert.GreaterOrEqual(t, res.Candidates[0].Score, scoreExact)
}

func TestSearch_PriceHintSeparatesSameName(t *testing.T) {
	src := newFakeSource(
		entry("Coke", "bottle", 45, 10),
		entry("Coke", "can", 25, 10),
	)
	r := New(src, nil)

	res, err := r.Search(context.Background(), Query{Text: "coke", PriceHint: 25})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 2)
	assert.False(t, res.Ambiguous)
	assert.Equal(t, 25.0, res.Candidates[0].Entry.Price)
	assert.Greater(t, res.Candidates[0].Score, res.Candidates[1].Score)
}

func TestSearch_PriceToleranceBand(t *testing.T) {
	src := newFakeSource(
		entry("Coke", "bottle", 27, 10), // within ±15% of 25
		entry("Coke", "can", 45, 10),    // far outside
	)
	r := New(src, nil)

	res, err := r.Search(context.Background(), Query{Text: "coke", PriceHint: 25})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, 27.0, res.Candidates[0].Entry.Price)
}

func TestSearch_AmbiguousWhenScoresTie(t *testing.T) {
	src := newFakeSource(
		entry("Coke", "bottle", 25, 10),
		entry("Coke", "can", 45, 10),
	)
	r := New(src, nil)

	// No hints: both entries score identically, so nothing may be
	// auto-selected.
	res, err := r.Search(context.Background(), Query{Text: "coke"})
	require.NoError(t, err)
	assert.True(t, res.Ambiguous)

	_, ok := res.Best()
	assert.False(t, ok)
}

func TestSearch_UnitHint(t *testing.T) {
	src := newFakeSource(
		entry("Coke", "bottle", 25, 10),
		entry("Coke", "can", 25, 10),
	)
	r := New(src, nil)

	res, err := r.Search(context.Background(), Query{Text: "coke", UnitHint: "can"})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 2)
	assert.False(t, res.Ambiguous)
	assert.Equal(t, "can", res.Candidates[0].Entry.Unit)
}

func TestSearch_SubstringAndPrefix(t *testing.T) {
	src := newFakeSource(
		entry("Drinking Water Large", "pack", 60, 5),
		entry("Soda Water", "pack", 20, 5),
	)
	r := New(src, nil)

	res, err := r.Search(context.Background(), Query{Text: "drinking water"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Candidates)
	assert.Equal(t, "Drinking Water Large", res.Candidates[0].Entry.Name)
}

func TestSearch_NoWhitespaceScript(t *testing.T) {
	// Thai has no whitespace word boundaries; bigram keywords must still
	// find the entry from a partial mention.
	src := newFakeSource(
		entry("น้ำแข็ง", "ถุง", 20, 50),
		entry("Coke", "bottle", 25, 10),
	)
	r := New(src, nil)

	res, err := r.Search(context.Background(), Query{Text: "แข็ง"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Candidates)
	assert.Equal(t, "น้ำแข็ง", res.Candidates[0].Entry.Name)
}

func TestSearch_SynonymExpansion(t *testing.T) {
	src := newFakeSource(entry("Coca Cola", "bottle", 25, 10))
	r := New(src, nil)

	res, err := r.Search(context.Background(), Query{Text: "coke"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Candidates)
	assert.Equal(t, "Coca Cola", res.Candidates[0].Entry.Name)
}

func TestSearch_ExtraSynonyms(t *testing.T) {
	src := newFakeSource(entry("Fish Sauce Premium", "bottle", 35, 8))
	r := New(src, map[string][]string{"nam pla": {"fish sauce"}})

	res, err := r.Search(context.Background(), Query{Text: "nam pla"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Candidates)
	assert.Equal(t, "Fish Sauce Premium", res.Candidates[0].Entry.Name)
}

func TestSearch_MinScoreFiltersNoise(t *testing.T) {
	src := newFakeSource(entry("Broom", "piece", 90, 3))
	r := New(src, nil)

	res, err := r.Search(context.Background(), Query{Text: "coke"})
	require.NoError(t, err)
	assert.Empty(t, res.Candidates)
}

func TestSearch_TopKBound(t *testing.T) {
	src := newFakeSource(
		entry("Water Small", "pack", 10, 5),
		entry("Water Medium", "pack", 20, 5),
		entry("Water Large", "pack", 30, 5),
	)
	r := New(src, nil)

	res, err := r.Search(context.Background(), Query{Text: "water", TopK: 2})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(res.Candidates), 2)
}

func TestSearch_EmptyQuery(t *testing.T) {
	r := New(newFakeSource(), nil)
	_, err := r.Search(context.Background(), Query{})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSearch_RebuildOnVersionChange(t *testing.T) {
	src := newFakeSource(entry("Coke", "bottle", 25, 10))
	r := New(src, nil)
	ctx := context.Background()

	res, err := r.Search(ctx, Query{Text: "coke"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Candidates)
	assert.Equal(t, 10, res.Candidates[0].Entry.Stock)

	// Catalog changes; the version bump must flush the cached result and
	// rebuild the index.
	src.replace(entry("Coke", "bottle", 25, 3))

	res, err = r.Search(ctx, Query{Text: "coke"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Candidates)
	assert.Equal(t, 3, res.Candidates[0].Entry.Stock)
}

func TestSearch_CachedResultReused(t *testing.T) {
	src := newFakeSource(entry("Coke", "bottle", 25, 10))
	r := New(src, nil)
	ctx := context.Background()

	first, err := r.Search(ctx, Query{Text: "coke"})
	require.NoError(t, err)
	second, err := r.Search(ctx, Query{Text: "coke"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLongestCommonSubstring(t *testing.T) {
	assert.Equal(t, 0, longestCommonSubstring("", "abc"))
	assert.Equal(t, 3, longestCommonSubstring("abc", "abc"))
	assert.Equal(t, 2, longestCommonSubstring("coke", "cola"))
	assert.Equal(t, 5, longestCommonSubstring("xdrinkx", "drink"))
}

func TestLCSRatio(t *testing.T) {
	assert.InDelta(t, 1.0, LCSRatio("somchai", "somchai"), 1e-9)
	assert.InDelta(t, 0.0, LCSRatio("", "somchai"), 1e-9)
	assert.Greater(t, LCSRatio("somchai shop", "somchai"), 0.5)
}
