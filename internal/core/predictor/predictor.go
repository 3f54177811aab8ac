// Package predictor learns per-customer ordering habits from historical
// order records and advises the caller on how expected a new order looks.
// It is advisory only: it never mutates stock and never blocks the
// coordinator.
package predictor

import (
	"sort"
	"sync"

	"github.com/rapeepat/shopflow/internal/core/domain"
	"github.com/rapeepat/shopflow/internal/core/resolver"
)

// matchThreshold is the minimum LCS similarity ratio for accepting a
// fuzzy customer-name match.
const matchThreshold = 0.7

// recentLimit bounds the per-customer ring of recent order snapshots.
const recentLimit = 8

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Tier thresholds on the fraction of requested lines matching the
// customer's historical items.
const (
	highFraction   = 0.8
	mediumFraction = 0.4
)

type ItemStat struct {
	Product    string
	Count      int
	Quantities []int
}

// LastQuantity returns the most recently observed quantity, 0 when none.
func (s *ItemStat) LastQuantity() int {
	if len(s.Quantities) == 0 {
		return 0
	}
	return s.Quantities[len(s.Quantities)-1]
}

type CustomerPattern struct {
	Name       string
	Normalized string
	Items      map[string]*ItemStat
	Recent     []domain.OrderRecord
}

type Suggestion struct {
	Product  string
	Count    int
	Quantity int
}

type Prediction struct {
	Customer      string
	Confidence    Confidence
	MatchFraction float64
	Suggestions   []Suggestion
}

type Predictor struct {
	mu       sync.RWMutex
	patterns map[string]*CustomerPattern
}

func New() *Predictor {
	return &Predictor{patterns: make(map[string]*CustomerPattern)}
}

// Learn folds a batch of historical records into the patterns. Typically
// called once at startup with the store's order history.
func (p *Predictor) Learn(orders []domain.OrderRecord) {
	for _, rec := range orders {
		p.Observe(rec)
	}
}

// Observe folds one committed order into its customer's pattern.
func (p *Predictor) Observe(rec domain.OrderRecord) {
	if rec.Customer == "" {
		return
	}
	norm := domain.FoldKey(rec.Customer)

	p.mu.Lock()
	defer p.mu.Unlock()

	pat, ok := p.patterns[norm]
	if !ok {
		pat = &CustomerPattern{
			Name:       rec.Customer,
			Normalized: norm,
			Items:      make(map[string]*ItemStat),
		}
		p.patterns[norm] = pat
	}
	for _, line := range rec.Lines {
		key := domain.FoldKey(line.Product)
		st, ok := pat.Items[key]
		if !ok {
			st = &ItemStat{Product: line.Product}
			pat.Items[key] = st
		}
		st.Count++
		st.Quantities = append(st.Quantities, line.Quantity)
	}
	pat.Recent = append(pat.Recent, rec)
	if len(pat.Recent) > recentLimit {
		pat.Recent = pat.Recent[len(pat.Recent)-recentLimit:]
	}
}

// FindCustomerByName fuzzily matches free text against known customers.
// A match needs an LCS similarity ratio of at least 0.7; ties go to the
// highest ratio.
func (p *Predictor) FindCustomerByName(input string) (*CustomerPattern, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pat := p.findLocked(domain.FoldKey(input))
	return pat, pat != nil
}

func (p *Predictor) findLocked(norm string) *CustomerPattern {
	if norm == "" {
		return nil
	}
	if pat, ok := p.patterns[norm]; ok {
		return pat
	}
	var best *CustomerPattern
	bestRatio := 0.0
	for _, pat := range p.patterns {
		r := resolver.LCSRatio(norm, pat.Normalized)
		if r >= matchThreshold && r > bestRatio {
			best = pat
			bestRatio = r
		}
	}
	return best
}

// PredictOrder grades how expected the requested products look for the
// customer. With no products given it instead suggests the customer's
// most frequent items.
func (p *Predictor) PredictOrder(customer string, products []string) Prediction {
	p.mu.RLock()
	defer p.mu.RUnlock()

	pat := p.findLocked(domain.FoldKey(customer))
	if pat == nil {
		return Prediction{Customer: customer, Confidence: ConfidenceLow}
	}

	pred := Prediction{Customer: pat.Name}

	if len(products) == 0 {
		pred.Confidence = ConfidenceMedium
		pred.Suggestions = topItems(pat, 3)
		return pred
	}

	matched := 0
	for _, prod := range products {
		if _, ok := pat.Items[domain.FoldKey(prod)]; ok {
			matched++
		}
	}
	pred.MatchFraction = float64(matched) / float64(len(products))
	switch {
	case pred.MatchFraction >= highFraction:
		pred.Confidence = ConfidenceHigh
	case pred.MatchFraction >= mediumFraction:
		pred.Confidence = ConfidenceMedium
	default:
		pred.Confidence = ConfidenceLow
	}
	return pred
}

func topItems(pat *CustomerPattern, n int) []Suggestion {
	stats := make([]*ItemStat, 0, len(pat.Items))
	for _, st := range pat.Items {
		stats = append(stats, st)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Product < stats[j].Product
	})
	if len(stats) > n {
		stats = stats[:n]
	}
	out := make([]Suggestion, len(stats))
	for i, st := range stats {
		out[i] = Suggestion{Product: st.Product, Count: st.Count, Quantity: st.LastQuantity()}
	}
	return out
}
