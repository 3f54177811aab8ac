package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/rapeepat/shopflow/internal/core/domain"
)

type StockOp string

const (
	StockOpAdd      StockOp = "add"
	StockOpSubtract StockOp = "subtract"
	StockOpSet      StockOp = "set"
)

// StockAdjustment reports the stock value before and after an adjustment.
type StockAdjustment struct {
	Key      string
	Product  string
	OldStock int
	NewStock int
}

// AdjustStock applies an explicit stock adjustment to one resource key,
// serialized through the same lock manager as order decrements. Subtract
// below zero fails with InsufficientStockError; stock never goes
// negative.
func (s *OrderService) AdjustStock(ctx context.Context, key string, value int, op StockOp) (StockAdjustment, error) {
	if key == "" {
		return StockAdjustment{}, fmt.Errorf("%w: resource key is required", domain.ErrValidation)
	}
	if value < 0 {
		return StockAdjustment{}, fmt.Errorf("%w: value must not be negative", domain.ErrValidation)
	}
	switch op {
	case StockOpAdd, StockOpSubtract, StockOpSet:
	default:
		return StockAdjustment{}, fmt.Errorf("%w: unknown operation %q", domain.ErrValidation, op)
	}

	holder := uuid.NewString()
	if err := s.locks.Acquire(ctx, key, holder); err != nil {
		return StockAdjustment{}, err
	}
	defer s.locks.Release(key, holder)

	var entry domain.CatalogEntry
	err := s.retryStore(ctx, func() error {
		e, ok, rerr := s.store.EntryByKey(ctx, key)
		if rerr != nil {
			return rerr
		}
		if !ok {
			return fmt.Errorf("%w: %q", domain.ErrNoMatch, key)
		}
		entry = e
		return nil
	})
	if err != nil {
		return StockAdjustment{}, err
	}

	newStock := entry.Stock
	switch op {
	case StockOpAdd:
		newStock += value
	case StockOpSubtract:
		if value > entry.Stock {
			return StockAdjustment{}, &domain.InsufficientStockError{Shortfalls: []domain.Shortfall{{
				Key:       key,
				Product:   entry.Name,
				Requested: value,
				Available: entry.Stock,
			}}}
		}
		newStock -= value
	case StockOpSet:
		newStock = value
	}

	if err := s.retryStore(ctx, func() error { return s.store.WriteStock(ctx, entry, newStock) }); err != nil {
		return StockAdjustment{}, err
	}

	s.logger.Info("stock adjusted",
		slog.String("key", key),
		slog.String("op", string(op)),
		slog.Int("old", entry.Stock),
		slog.Int("new", newStock))
	return StockAdjustment{
		Key:      key,
		Product:  entry.Name,
		OldStock: entry.Stock,
		NewStock: newStock,
	}, nil
}
