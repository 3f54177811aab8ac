package port

import "context"

// Table names in the backing store.
const (
	TableCatalog = "catalog"
	TableOrders  = "orders"
)

// RowUpdate addresses one data row for an in-place write.
type RowUpdate struct {
	Table  string
	Row    int
	Values []string
}

// TabularStore abstracts the backing store as positional string rows, the
// way the upstream spreadsheet-style collaborator exposes it. The store
// offers no transactions; callers get consistency from the lock manager
// and explicit compensation. Row indices returned by ReadRows are the
// ones UpdateRow addresses. Implementations serialize their own outbound
// calls (rate limiting is a store concern, not a caller guarantee).
type TabularStore interface {
	// ReadRows returns every data row of the table, authoritative at the
	// time of the call. Used for re-verification under lock.
	ReadRows(ctx context.Context, table string) ([][]string, error)

	// AppendRows adds rows at the end of the table.
	AppendRows(ctx context.Context, table string, rows [][]string) error

	// UpdateRow overwrites one data row in place.
	UpdateRow(ctx context.Context, table string, row int, values []string) error

	// BatchUpdate applies several row writes in one call. Used by
	// compensation to restore multiple rows efficiently.
	BatchUpdate(ctx context.Context, updates []RowUpdate) error

	// DeleteRowsWhere removes every row whose column col equals value.
	// Used by compensation to drop order rows written before a failed
	// decrement.
	DeleteRowsWhere(ctx context.Context, table string, col int, value string) error
}
