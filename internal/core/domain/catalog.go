package domain

// CatalogEntry is one stocked product/unit combination. Entries are owned
// by the catalog table of the backing store; stock is mutated only through
// the transaction coordinator's decrement step or an explicit adjustment.
type CatalogEntry struct {
	Name     string
	Unit     string
	Price    float64
	Cost     float64
	Stock    int
	Category string
	SKU      string

	// Row is the data-row index the entry was read from, as addressed by
	// the tabular store. Required for in-place stock writes.
	Row int
}

// Key returns the entry's resource key, used uniformly for indexing and
// locking.
func (e CatalogEntry) Key() string {
	return ResourceKey(e.Name, e.Unit)
}

// InStock reports whether the entry can satisfy the given quantity.
func (e CatalogEntry) InStock(quantity int) bool {
	return e.Stock >= quantity
}
