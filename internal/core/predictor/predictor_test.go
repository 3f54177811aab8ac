package predictor

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapeepat/shopflow/internal/adapter/storage"
	"github.com/rapeepat/shopflow/internal/core/catalog"
	"github.com/rapeepat/shopflow/internal/core/domain"
)

func order(customer string, lines ...domain.OrderLine) domain.OrderRecord {
	return domain.OrderRecord{Customer: customer, Lines: lines}
}

func line(product string, qty int) domain.OrderLine {
	return domain.OrderLine{Product: product, Quantity: qty}
}

func TestObserveAccumulatesItemStats(t *testing.T) {
	p := New()
	p.Observe(order("Somchai", line("Ice", 2), line("Coke", 1)))
	p.Observe(order("Somchai", line("Ice", 3)))

	pat, ok := p.FindCustomerByName("Somchai")
	require.True(t, ok)

	ice := pat.Items[domain.FoldKey("Ice")]
	require.NotNil(t, ice)
	assert.Equal(t, 2, ice.Count)
	assert.Equal(t, 3, ice.LastQuantity())

	coke := pat.Items[domain.FoldKey("Coke")]
	require.NotNil(t, coke)
	assert.Equal(t, 1, coke.Count)
}

func TestObserveIgnoresAnonymousOrders(t *testing.T) {
	p := New()
	p.Observe(order("", line("Ice", 1)))
	_, ok := p.FindCustomerByName("")
	assert.False(t, ok)
}

func TestFindCustomerByName_CaseAndWhitespace(t *testing.T) {
	p := New()
	p.Observe(order("Somchai", line("Ice", 1)))

	pat, ok := p.FindCustomerByName("  SOMCHAI ")
	require.True(t, ok)
	assert.Equal(t, "Somchai", pat.Name)
}

func TestFindCustomerByName_Fuzzy(t *testing.T) {
	p := New()
	p.Observe(order("Somchai Shop", line("Ice", 1)))

	// "somchai shop" vs "somchai sho" shares an 11-rune run out of 12.
	pat, ok := p.FindCustomerByName("somchai sho")
	require.True(t, ok)
	assert.Equal(t, "Somchai Shop", pat.Name)

	_, ok = p.FindCustomerByName("malee")
	assert.False(t, ok)
}

func TestPredictOrder_Tiers(t *testing.T) {
	p := New()
	p.Observe(order("Somchai",
		line("Ice", 2), line("Coke", 1), line("Water", 1), line("Charcoal", 1)))

	// 5/5 known.
	pred := p.PredictOrder("Somchai", []string{"Ice", "Coke", "Water", "Charcoal", "ice"})
	assert.Equal(t, ConfidenceHigh, pred.Confidence)
	assert.InDelta(t, 1.0, pred.MatchFraction, 1e-9)

	// 1/2 known.
	pred = p.PredictOrder("Somchai", []string{"Ice", "Motor Oil"})
	assert.Equal(t, ConfidenceMedium, pred.Confidence)
	assert.InDelta(t, 0.5, pred.MatchFraction, 1e-9)

	// 0/2 known.
	pred = p.PredictOrder("Somchai", []string{"Motor Oil", "Tires"})
	assert.Equal(t, ConfidenceLow, pred.Confidence)
}

func TestPredictOrder_UnknownCustomer(t *testing.T) {
	p := New()
	pred := p.PredictOrder("Nobody", []string{"Ice"})
	assert.Equal(t, ConfidenceLow, pred.Confidence)
	assert.Empty(t, pred.Suggestions)
}

func TestPredictOrder_SuggestsFrequentItems(t *testing.T) {
	p := New()
	p.Observe(order("Somchai", line("Ice", 2), line("Coke", 1)))
	p.Observe(order("Somchai", line("Ice", 4)))
	p.Observe(order("Somchai", line("Ice", 5), line("Water", 3), line("Charcoal", 1)))

	pred := p.PredictOrder("Somchai", nil)
	assert.Equal(t, ConfidenceMedium, pred.Confidence)
	require.Len(t, pred.Suggestions, 3)

	assert.Equal(t, "Ice", pred.Suggestions[0].Product)
	assert.Equal(t, 3, pred.Suggestions[0].Count)
	assert.Equal(t, 5, pred.Suggestions[0].Quantity)

	// Count ties break alphabetically.
	assert.Equal(t, "Charcoal", pred.Suggestions[1].Product)
	assert.Equal(t, "Coke", pred.Suggestions[2].Product)
}

func TestRecentRingBounded(t *testing.T) {
	p := New()
	for i := 0; i < recentLimit+5; i++ {
		rec := order("Somchai", line("Ice", 1))
		rec.ID = int64(i + 1)
		p.Observe(rec)
	}

	pat, ok := p.FindCustomerByName("Somchai")
	require.True(t, ok)
	require.Len(t, pat.Recent, recentLimit)
	// Oldest entries fall off the front.
	assert.Equal(t, int64(6), pat.Recent[0].ID)
	assert.Equal(t, int64(recentLimit+5), pat.Recent[len(pat.Recent)-1].ID)
}

// Warming from stored history must key items the same way live order
// records do, or a regular customer's usual products grade as unknown.
func TestLearnFromStoredHistoryMatchesLiveProducts(t *testing.T) {
	tab := storage.NewMemoryStore()
	store := catalog.NewStore(tab)
	ctx := context.Background()

	require.NoError(t, store.AppendOrder(ctx, domain.OrderRecord{
		ID:       1,
		Customer: "Somchai",
		Lines: []domain.OrderLine{
			{Product: "Ice", Unit: "bag", Quantity: 2, UnitPrice: 20},
			{Product: "Coke", Unit: "bottle", Quantity: 1, UnitPrice: 25},
		},
	}))

	history, err := store.LoadOrders(ctx)
	require.NoError(t, err)

	p := New()
	p.Learn(history)

	pred := p.PredictOrder("Somchai", []string{"Ice", "Coke"})
	assert.Equal(t, ConfidenceHigh, pred.Confidence)
	assert.InDelta(t, 1.0, pred.MatchFraction, 1e-9)

	// A live record observed after warming lands on the same keys.
	p.Observe(domain.OrderRecord{
		ID:       2,
		Customer: "Somchai",
		Lines:    []domain.OrderLine{{Product: "Ice", Unit: "bag", Quantity: 3}},
	})
	pat, ok := p.FindCustomerByName("Somchai")
	require.True(t, ok)
	ice := pat.Items[domain.FoldKey("Ice")]
	require.NotNil(t, ice)
	assert.Equal(t, 2, ice.Count)
	assert.Equal(t, 3, ice.LastQuantity())
}

func TestLearnReplaysHistory(t *testing.T) {
	p := New()
	var history []domain.OrderRecord
	for i := 0; i < 4; i++ {
		history = append(history, order(fmt.Sprintf("Customer %d", i), line("Ice", 1)))
	}
	p.Learn(history)

	for i := 0; i < 4; i++ {
		_, ok := p.FindCustomerByName(fmt.Sprintf("customer %d", i))
		assert.True(t, ok)
	}
}
