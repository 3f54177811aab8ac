package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapeepat/shopflow/internal/port"
)

func TestMemoryStore_SeedAndRead(t *testing.T) {
	m := NewMemoryStore()
	m.Seed("t", [][]string{{"a", "1"}, {"b", "2"}})

	rows, err := m.ReadRows(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "1"}, {"b", "2"}}, rows)
}

func TestMemoryStore_ReadReturnsCopies(t *testing.T) {
	m := NewMemoryStore()
	m.Seed("t", [][]string{{"a", "1"}})
	ctx := context.Background()

	rows, err := m.ReadRows(ctx, "t")
	require.NoError(t, err)
	rows[0][0] = "mutated"

	again, err := m.ReadRows(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, "a", again[0][0])
}

func TestMemoryStore_AppendRows(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, m.AppendRows(ctx, "t", [][]string{{"a"}, {"b"}}))
	require.NoError(t, m.AppendRows(ctx, "t", [][]string{{"c"}}))

	rows, err := m.ReadRows(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a"}, {"b"}, {"c"}}, rows)
}

func TestMemoryStore_UpdateRow(t *testing.T) {
	m := NewMemoryStore()
	m.Seed("t", [][]string{{"a"}, {"b"}})
	ctx := context.Background()

	require.NoError(t, m.UpdateRow(ctx, "t", 1, []string{"B"}))

	rows, err := m.ReadRows(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a"}, {"B"}}, rows)

	assert.Error(t, m.UpdateRow(ctx, "t", 2, []string{"x"}))
	assert.Error(t, m.UpdateRow(ctx, "t", -1, []string{"x"}))
}

func TestMemoryStore_BatchUpdate(t *testing.T) {
	m := NewMemoryStore()
	m.Seed("t", [][]string{{"a"}, {"b"}})

	err := m.BatchUpdate(context.Background(), []port.RowUpdate{
		{Table: "t", Row: 0, Values: []string{"A"}},
		{Table: "t", Row: 1, Values: []string{"B"}},
	})
	require.NoError(t, err)

	rows, err := m.ReadRows(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"A"}, {"B"}}, rows)
}

func TestMemoryStore_DeleteRowsWhere(t *testing.T) {
	m := NewMemoryStore()
	m.Seed("t", [][]string{
		{"1", "keep"},
		{"2", "drop"},
		{"3", "keep"},
		{"2", "drop"},
	})

	require.NoError(t, m.DeleteRowsWhere(context.Background(), "t", 0, "2"))

	rows, err := m.ReadRows(context.Background(), "t")
	require.NoError(t, err)
	// Survivors stay in order with dense indices.
	assert.Equal(t, [][]string{{"1", "keep"}, {"3", "keep"}}, rows)
}

func TestMemoryStore_UnknownTableReadsEmpty(t *testing.T) {
	m := NewMemoryStore()
	rows, err := m.ReadRows(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, rows)
}
