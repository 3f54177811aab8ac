// Package catalog is the typed layer between the core and the tabular
// backing store: row mapping, a cached catalog snapshot keyed by a
// version counter, and the order-id sequencer.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rapeepat/shopflow/internal/core/domain"
	"github.com/rapeepat/shopflow/internal/port"
)

type Store struct {
	tab port.TabularStore

	// version moves on every catalog mutation; the resolver keys its
	// index rebuilds off it.
	version atomic.Int64

	// seq assigns order ids: strictly increasing, seeded from the store's
	// max id at startup. Deriving ids from the current row count is
	// race-prone under concurrent appends.
	seq atomic.Int64

	mu            sync.Mutex
	cached        []domain.CatalogEntry
	cachedVersion int64
}

func NewStore(tab port.TabularStore) *Store {
	s := &Store{tab: tab}
	s.version.Store(1)
	return s
}

// Init seeds the order-id sequencer from the highest id already in the
// store. Call once before the first CreateOrder.
func (s *Store) Init(ctx context.Context) error {
	rows, err := s.tab.ReadRows(ctx, port.TableOrders)
	if err != nil {
		return fmt.Errorf("seed order sequence: %w", err)
	}
	var max int64
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		if id, err := strconv.ParseInt(row[ordColID], 10, 64); err == nil && id > max {
			max = id
		}
	}
	s.seq.Store(max)
	return nil
}

// NextOrderID returns a unique, strictly increasing order id.
func (s *Store) NextOrderID() int64 {
	return s.seq.Add(1)
}

// Version implements resolver.CatalogSource.
func (s *Store) Version() int64 {
	return s.version.Load()
}

// Invalidate bumps the version so the next Snapshot reloads and the
// resolver drops its cache.
func (s *Store) Invalidate() {
	s.version.Add(1)
}

// Snapshot implements resolver.CatalogSource: the full catalog, cached
// per version. Not authoritative for stock; re-verification reads go
// through EntryByKey.
func (s *Store) Snapshot(ctx context.Context) ([]domain.CatalogEntry, error) {
	v := s.version.Load()
	s.mu.Lock()
	if s.cached != nil && s.cachedVersion == v {
		cached := s.cached
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	entries, err := s.readCatalog(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cached = entries
	s.cachedVersion = v
	s.mu.Unlock()
	return entries, nil
}

// EntryByKey re-reads the catalog from the store and returns the entry
// for the resource key. Always authoritative: a value read before locking
// is stale and must not be trusted.
func (s *Store) EntryByKey(ctx context.Context, key string) (domain.CatalogEntry, bool, error) {
	entries, err := s.readCatalog(ctx)
	if err != nil {
		return domain.CatalogEntry{}, false, err
	}
	for _, e := range entries {
		if e.Key() == key {
			return e, true, nil
		}
	}
	return domain.CatalogEntry{}, false, nil
}

// ReadByKeys does one authoritative catalog read and returns the entries
// for the requested resource keys. Keys with no catalog row are absent
// from the map.
func (s *Store) ReadByKeys(ctx context.Context, keys []string) (map[string]domain.CatalogEntry, error) {
	entries, err := s.readCatalog(ctx)
	if err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}
	out := make(map[string]domain.CatalogEntry, len(keys))
	for _, e := range entries {
		if want[e.Key()] {
			out[e.Key()] = e
		}
	}
	return out, nil
}

func (s *Store) readCatalog(ctx context.Context) ([]domain.CatalogEntry, error) {
	rows, err := s.tab.ReadRows(ctx, port.TableCatalog)
	if err != nil {
		return nil, &domain.StoreIOError{Op: "read catalog", Err: err}
	}
	entries := make([]domain.CatalogEntry, 0, len(rows))
	for i, row := range rows {
		e, err := entryFromRow(row, i)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// WriteStock writes an absolute stock value for the entry's row and bumps
// the catalog version. Callers hold the entry's resource-key lock.
func (s *Store) WriteStock(ctx context.Context, e domain.CatalogEntry, stock int) error {
	updated := e
	updated.Stock = stock
	if err := s.tab.UpdateRow(ctx, port.TableCatalog, e.Row, rowFromEntry(updated)); err != nil {
		return &domain.StoreIOError{Op: "write stock", Err: err}
	}
	s.Invalidate()
	return nil
}

// StockRestore is one compensating stock write.
type StockRestore struct {
	Entry domain.CatalogEntry
	Stock int
}

// RestoreStocks batch-restores prior stock values during compensation.
func (s *Store) RestoreStocks(ctx context.Context, restores []StockRestore) error {
	if len(restores) == 0 {
		return nil
	}
	updates := make([]port.RowUpdate, 0, len(restores))
	for _, r := range restores {
		e := r.Entry
		e.Stock = r.Stock
		updates = append(updates, port.RowUpdate{
			Table:  port.TableCatalog,
			Row:    r.Entry.Row,
			Values: rowFromEntry(e),
		})
	}
	if err := s.tab.BatchUpdate(ctx, updates); err != nil {
		return &domain.StoreIOError{Op: "restore stock", Err: err}
	}
	s.Invalidate()
	return nil
}

// AppendOrder writes the record's rows, one per line.
func (s *Store) AppendOrder(ctx context.Context, rec domain.OrderRecord) error {
	if err := s.tab.AppendRows(ctx, port.TableOrders, orderRows(rec)); err != nil {
		return &domain.StoreIOError{Op: "append order", Err: err}
	}
	return nil
}

// DeleteOrder removes every row of the order. Used by compensation after
// a partial decrement failure.
func (s *Store) DeleteOrder(ctx context.Context, orderID int64) error {
	err := s.tab.DeleteRowsWhere(ctx, port.TableOrders, ordColID, strconv.FormatInt(orderID, 10))
	if err != nil {
		return &domain.StoreIOError{Op: "delete order", Err: err}
	}
	return nil
}

// LoadOrders reads historical order records back, grouped by id and
// ordered by id ascending. Fuel for the pattern predictor.
func (s *Store) LoadOrders(ctx context.Context) ([]domain.OrderRecord, error) {
	rows, err := s.tab.ReadRows(ctx, port.TableOrders)
	if err != nil {
		return nil, &domain.StoreIOError{Op: "read orders", Err: err}
	}
	byID := make(map[int64]*domain.OrderRecord)
	for _, row := range rows {
		if len(row) < orderWidth {
			continue
		}
		id, err := strconv.ParseInt(row[ordColID], 10, 64)
		if err != nil {
			continue
		}
		qty, err := parseInt(row[ordColQuantity])
		if err != nil {
			continue
		}
		rec, ok := byID[id]
		if !ok {
			ts, _ := time.Parse(timestampLayout, row[ordColTimestamp])
			rec = &domain.OrderRecord{
				ID:             id,
				Timestamp:      ts,
				Customer:       row[ordColCustomer],
				DeliveryPerson: row[ordColDelivery],
				Payment:        domain.PaymentStatus(row[ordColPayment]),
				Notes:          row[ordColNotes],
			}
			byID[id] = rec
		}
		amount := parseFloat(row[ordColAmount])
		name, unit := splitProductCell(row[ordColProduct])
		line := domain.OrderLine{
			Product:  name,
			Unit:     unit,
			Quantity: qty,
		}
		if qty > 0 {
			line.UnitPrice = amount / float64(qty)
		}
		rec.Lines = append(rec.Lines, line)
		rec.Total += amount
	}

	out := make([]domain.OrderRecord, 0, len(byID))
	for _, rec := range byID {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
