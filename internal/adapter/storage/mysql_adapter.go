package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rapeepat/shopflow/internal/port"
)

// tableColumns maps the positional columns of each table. Order matches
// the row layouts the core writes.
var tableColumns = map[string][]string{
	port.TableCatalog: {"name", "cost", "price", "unit", "stock", "category", "sku"},
	port.TableOrders: {"order_id", "ts", "customer", "product", "quantity",
		"notes", "delivery_person", "payment_status", "amount"},
}

// MySQLAdapter implements port.TabularStore over MySQL. Rows carry an
// explicit pos column kept equal to their data-row index, so the core's
// index-based addressing maps straight onto WHERE pos = ?.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

// EnsureSchema creates the backing tables when missing.
func (m *MySQLAdapter) EnsureSchema(ctx context.Context) error {
	for table, cols := range tableColumns {
		defs := make([]string, 0, len(cols)+1)
		defs = append(defs, "pos INT NOT NULL PRIMARY KEY")
		for _, c := range cols {
			defs = append(defs, fmt.Sprintf("%s TEXT NOT NULL", c))
		}
		stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(defs, ", "))
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create table %s: %w", table, err)
		}
	}
	return nil
}

func (m *MySQLAdapter) ReadRows(ctx context.Context, table string) ([][]string, error) {
	cols, err := columnsFor(table)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY pos", strings.Join(cols, ", "), table)
	rows, err := m.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		vals := make([]string, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		out = append(out, vals)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) AppendRows(ctx context.Context, table string, newRows [][]string) error {
	cols, err := columnsFor(table)
	if err != nil {
		return err
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COALESCE(MAX(pos)+1, 0) FROM %s", table)).Scan(&next); err != nil {
		return fmt.Errorf("next pos for %s: %w", table, err)
	}

	placeholders := "?" + strings.Repeat(", ?", len(cols))
	stmt := fmt.Sprintf("INSERT INTO %s (pos, %s) VALUES (%s)",
		table, strings.Join(cols, ", "), placeholders)
	for _, row := range newRows {
		if len(row) != len(cols) {
			return fmt.Errorf("append %s: want %d values, got %d", table, len(cols), len(row))
		}
		args := make([]any, 0, len(cols)+1)
		args = append(args, next)
		for _, v := range row {
			args = append(args, v)
		}
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("append %s: %w", table, err)
		}
		next++
	}
	return tx.Commit()
}

func (m *MySQLAdapter) UpdateRow(ctx context.Context, table string, row int, values []string) error {
	return m.updateOne(ctx, m.db, table, row, values)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (m *MySQLAdapter) updateOne(ctx context.Context, ex execer, table string, row int, values []string) error {
	cols, err := columnsFor(table)
	if err != nil {
		return err
	}
	if len(values) != len(cols) {
		return fmt.Errorf("update %s: want %d values, got %d", table, len(cols), len(values))
	}
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		sets[i] = c + " = ?"
		args = append(args, values[i])
	}
	args = append(args, row)
	res, err := ex.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET %s WHERE pos = ?", table, strings.Join(sets, ", ")), args...)
	if err != nil {
		return fmt.Errorf("update %s row %d: %w", table, row, err)
	}
	// RowsAffected is 0 both for a missing pos and for rewriting identical
	// values, so only the missing-row case gets verified. The check runs
	// through ex so it sees uncommitted state inside BatchUpdate's tx.
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		if err := ex.QueryRowContext(ctx,
			fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE pos = ?", table), row).Scan(&exists); err == nil && exists == 0 {
			return fmt.Errorf("update %s row %d: out of range", table, row)
		}
	}
	return nil
}

func (m *MySQLAdapter) BatchUpdate(ctx context.Context, updates []port.RowUpdate) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()
	for _, u := range updates {
		if err := m.updateOne(ctx, tx, u.Table, u.Row, u.Values); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (m *MySQLAdapter) DeleteRowsWhere(ctx context.Context, table string, col int, value string) error {
	cols, err := columnsFor(table)
	if err != nil {
		return err
	}
	if col < 0 || col >= len(cols) {
		return fmt.Errorf("delete from %s: column %d out of range", table, col)
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, cols[col]), value); err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	// Close the pos holes so row indices stay dense after deletes.
	if _, err := tx.ExecContext(ctx, "SET @i := -1"); err != nil {
		return fmt.Errorf("renumber %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET pos = (@i := @i + 1) ORDER BY pos", table)); err != nil {
		return fmt.Errorf("renumber %s: %w", table, err)
	}
	return tx.Commit()
}

func columnsFor(table string) ([]string, error) {
	cols, ok := tableColumns[table]
	if !ok {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	return cols, nil
}
