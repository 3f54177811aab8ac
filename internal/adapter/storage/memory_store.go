package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/rapeepat/shopflow/internal/port"
)

// MemoryStore is an in-memory TabularStore. It backs tests and standalone
// runs where no MySQL is available, and deliberately mimics the remote
// store's contract: no transactions, rows addressed by index.
type MemoryStore struct {
	mu     sync.Mutex
	tables map[string][][]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string][][]string)}
}

// Seed replaces a table's contents. Test and bootstrap helper.
func (m *MemoryStore) Seed(table string, rows [][]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([][]string, len(rows))
	for i, r := range rows {
		cp[i] = append([]string(nil), r...)
	}
	m.tables[table] = cp
}

func (m *MemoryStore) ReadRows(_ context.Context, table string) ([][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.tables[table]
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out, nil
}

func (m *MemoryStore) AppendRows(_ context.Context, table string, rows [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		m.tables[table] = append(m.tables[table], append([]string(nil), r...))
	}
	return nil
}

func (m *MemoryStore) UpdateRow(_ context.Context, table string, row int, values []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.tables[table]
	if row < 0 || row >= len(rows) {
		return fmt.Errorf("update %s row %d: out of range (%d rows)", table, row, len(rows))
	}
	rows[row] = append([]string(nil), values...)
	return nil
}

func (m *MemoryStore) BatchUpdate(ctx context.Context, updates []port.RowUpdate) error {
	for _, u := range updates {
		if err := m.UpdateRow(ctx, u.Table, u.Row, u.Values); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryStore) DeleteRowsWhere(_ context.Context, table string, col int, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.tables[table]
	kept := rows[:0]
	for _, r := range rows {
		if col < len(r) && r[col] == value {
			continue
		}
		kept = append(kept, r)
	}
	m.tables[table] = kept
	return nil
}
