package domain

import "time"

type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	PaymentStatusPaid   PaymentStatus = "paid"
	PaymentStatusCredit PaymentStatus = "credit"
)

// OrderLineRequest is one requested line before resolution. Query is free
// text; PriceHint of 0 and UnitHint of "" mean no hint was given.
type OrderLineRequest struct {
	Query     string
	Quantity  int
	PriceHint float64
	UnitHint  string
}

// OrderLine is a committed line with the catalog snapshot taken at order
// time. ResultingStock is the stock remaining after the decrement.
type OrderLine struct {
	Product        string
	Unit           string
	Quantity       int
	UnitPrice      float64
	UnitCost       float64
	ResultingStock int
}

func (l OrderLine) Subtotal() float64 {
	return float64(l.Quantity) * l.UnitPrice
}

// OrderRecord is created at commit and never mutated here afterward.
type OrderRecord struct {
	ID             int64
	Timestamp      time.Time
	Customer       string
	Lines          []OrderLine
	DeliveryPerson string
	Payment        PaymentStatus
	Notes          string
	Total          float64
}
