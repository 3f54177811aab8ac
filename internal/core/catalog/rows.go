package catalog

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rapeepat/shopflow/internal/core/domain"
)

// Persisted column layouts. These mirror the collaborator's storage
// layout and must not be reordered.
//
//	catalog: name, cost, price, unit, stock, category, sku
//	orders:  orderId, timestamp, customer, product, quantity, notes,
//	         deliveryPerson, paymentStatus, amount
const (
	colName = iota
	colCost
	colPrice
	colUnit
	colStock
	colCategory
	colSKU
	catalogWidth
)

const (
	ordColID = iota
	ordColTimestamp
	ordColCustomer
	ordColProduct
	ordColQuantity
	ordColNotes
	ordColDelivery
	ordColPayment
	ordColAmount
	orderWidth
)

const timestampLayout = time.RFC3339

func entryFromRow(row []string, rowIndex int) (domain.CatalogEntry, error) {
	if len(row) < catalogWidth {
		return domain.CatalogEntry{}, fmt.Errorf("catalog row %d: want %d columns, got %d",
			rowIndex, catalogWidth, len(row))
	}
	stock, err := parseInt(row[colStock])
	if err != nil {
		return domain.CatalogEntry{}, fmt.Errorf("catalog row %d stock: %w", rowIndex, err)
	}
	return domain.CatalogEntry{
		Name:     row[colName],
		Unit:     row[colUnit],
		Price:    parseFloat(row[colPrice]),
		Cost:     parseFloat(row[colCost]),
		Stock:    stock,
		Category: row[colCategory],
		SKU:      row[colSKU],
		Row:      rowIndex,
	}, nil
}

func rowFromEntry(e domain.CatalogEntry) []string {
	return []string{
		e.Name,
		formatFloat(e.Cost),
		formatFloat(e.Price),
		e.Unit,
		strconv.Itoa(e.Stock),
		e.Category,
		e.SKU,
	}
}

// orderRows expands a record into one row per line.
func orderRows(rec domain.OrderRecord) [][]string {
	rows := make([][]string, 0, len(rec.Lines))
	for _, l := range rec.Lines {
		rows = append(rows, []string{
			strconv.FormatInt(rec.ID, 10),
			rec.Timestamp.Format(timestampLayout),
			rec.Customer,
			l.Product + " (" + l.Unit + ")",
			strconv.Itoa(l.Quantity),
			rec.Notes,
			rec.DeliveryPerson,
			string(rec.Payment),
			formatFloat(l.Subtotal()),
		})
	}
	return rows
}

// splitProductCell undoes the "name (unit)" form orderRows writes, so
// loaded lines carry the same product name live order records do. Cells
// without a unit suffix come back with an empty unit.
func splitProductCell(s string) (name, unit string) {
	if strings.HasSuffix(s, ")") {
		if i := strings.LastIndex(s, " ("); i >= 0 {
			return s[:i], s[i+2 : len(s)-1]
		}
	}
	return s, ""
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func parseInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
