package storage

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapeepat/shopflow/internal/port"
)

// newTestMySQL connects to the database named by MYSQL_DSN, or skips.
// The test truncates both tables, so point it at a throwaway schema.
func newTestMySQL(t *testing.T) *MySQLAdapter {
	t.Helper()
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		t.Skip("MYSQL_DSN not set, skipping MySQL integration test")
	}
	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, db.PingContext(ctx))

	a := NewMySQLAdapter(db)
	require.NoError(t, a.EnsureSchema(ctx))
	for table := range tableColumns {
		_, err := db.ExecContext(ctx, "DELETE FROM "+table)
		require.NoError(t, err)
	}
	return a
}

func TestMySQLAdapter_AppendReadUpdate(t *testing.T) {
	a := newTestMySQL(t)
	ctx := context.Background()

	require.NoError(t, a.AppendRows(ctx, port.TableCatalog, [][]string{
		{"Ice", "12", "20", "bag", "50", "frozen", "ICE-001"},
		{"Coke", "18", "25", "bottle", "10", "drink", "CK-01"},
	}))

	rows, err := a.ReadRows(ctx, port.TableCatalog)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Ice", rows[0][0])
	assert.Equal(t, "Coke", rows[1][0])

	require.NoError(t, a.UpdateRow(ctx, port.TableCatalog, 1,
		[]string{"Coke", "18", "25", "bottle", "7", "drink", "CK-01"}))

	rows, err = a.ReadRows(ctx, port.TableCatalog)
	require.NoError(t, err)
	assert.Equal(t, "7", rows[1][4])
}

func TestMySQLAdapter_UpdateOutOfRange(t *testing.T) {
	a := newTestMySQL(t)
	err := a.UpdateRow(context.Background(), port.TableCatalog, 99,
		[]string{"Ice", "12", "20", "bag", "50", "frozen", ""})
	assert.Error(t, err)
}

func TestMySQLAdapter_DeleteRenumbers(t *testing.T) {
	a := newTestMySQL(t)
	ctx := context.Background()

	require.NoError(t, a.AppendRows(ctx, port.TableOrders, [][]string{
		{"1", "2026-08-01T10:00:00Z", "Somchai", "Ice (bag)", "2", "", "", "paid", "40"},
		{"2", "2026-08-01T11:00:00Z", "Malee", "Coke (bottle)", "1", "", "", "unpaid", "25"},
		{"2", "2026-08-01T11:00:00Z", "Malee", "Water (pack)", "1", "", "", "unpaid", "10"},
		{"3", "2026-08-01T12:00:00Z", "Lek", "Ice (bag)", "1", "", "", "paid", "20"},
	}))

	require.NoError(t, a.DeleteRowsWhere(ctx, port.TableOrders, 0, "2"))

	rows, err := a.ReadRows(ctx, port.TableOrders)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "1", rows[0][0])
	assert.Equal(t, "3", rows[1][0])

	// Indices are dense again: appending lands right after the survivors.
	require.NoError(t, a.AppendRows(ctx, port.TableOrders, [][]string{
		{"4", "2026-08-01T13:00:00Z", "Somchai", "Ice (bag)", "1", "", "", "paid", "20"},
	}))
	rows, err = a.ReadRows(ctx, port.TableOrders)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "4", rows[2][0])
}

func TestMySQLAdapter_BatchUpdateIdenticalValues(t *testing.T) {
	a := newTestMySQL(t)
	ctx := context.Background()

	row := []string{"Ice", "12", "20", "bag", "50", "frozen", "ICE-001"}
	require.NoError(t, a.AppendRows(ctx, port.TableCatalog, [][]string{row}))

	// Rewriting identical values reports zero affected rows; the
	// missing-row verification must still pass inside the batch tx.
	require.NoError(t, a.BatchUpdate(ctx, []port.RowUpdate{
		{Table: port.TableCatalog, Row: 0, Values: row},
	}))

	err := a.BatchUpdate(ctx, []port.RowUpdate{
		{Table: port.TableCatalog, Row: 99, Values: row},
	})
	assert.Error(t, err)
}

func TestMySQLAdapter_UnknownTable(t *testing.T) {
	a := newTestMySQL(t)
	_, err := a.ReadRows(context.Background(), "bogus")
	assert.Error(t, err)
}
