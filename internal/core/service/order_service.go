// Package service holds the transaction coordinator: order creation over
// a store without native transactions, with per-resource locking,
// re-verification, and explicit compensation on partial failure.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/rapeepat/shopflow/internal/core/catalog"
	"github.com/rapeepat/shopflow/internal/core/domain"
	"github.com/rapeepat/shopflow/internal/core/lock"
	"github.com/rapeepat/shopflow/internal/core/resolver"
	"github.com/rapeepat/shopflow/internal/port"
)

var ErrDuplicateRequest = errors.New("duplicate request")

// storeRetries bounds the exponential backoff on transient store I/O.
// Insufficient stock and resolution failures are terminal, never retried.
const storeRetries = 2

const (
	initialBackoff = 50 * time.Millisecond
	maxBackoff     = 2 * time.Second
)

// OrderRequest is a structured order produced by the upstream NLP
// collaborator. RequestID is optional; when set and an idempotency cache
// is configured, duplicate submissions short-circuit.
type OrderRequest struct {
	RequestID      string
	Customer       string
	Lines          []domain.OrderLineRequest
	DeliveryPerson string
	Payment        domain.PaymentStatus
	Notes          string
}

// Event is a best-effort post-commit notification (ledger entries, cache
// invalidation fan-out). Dropped when the queue is full; never blocks or
// fails the commit path.
type Event struct {
	Order domain.OrderRecord
}

type OrderService struct {
	store    *catalog.Store
	resolver *resolver.Resolver
	locks    *lock.Manager
	cache    port.CacheRepository // nil disables idempotency
	logger   *slog.Logger
	events   chan Event
}

// NewOrderService wires the coordinator. The lock manager is constructed
// once at process startup and injected; the coordinator never reaches for
// shared global state.
func NewOrderService(store *catalog.Store, res *resolver.Resolver, locks *lock.Manager, cache port.CacheRepository, logger *slog.Logger, queueSize int) *OrderService {
	if logger == nil {
		logger = slog.Default()
	}
	if queueSize <= 0 {
		queueSize = 128
	}
	return &OrderService{
		store:    store,
		resolver: res,
		locks:    locks,
		cache:    cache,
		logger:   logger,
		events:   make(chan Event, queueSize),
	}
}

// Events exposes the post-commit notification queue for worker drains.
func (s *OrderService) Events() <-chan Event {
	return s.events
}

func (s *OrderService) Close() {
	close(s.events)
}

// ResolveProduct ranks catalog candidates for a free-text mention.
func (s *OrderService) ResolveProduct(ctx context.Context, query string, priceHint float64, unitHint string) (resolver.Result, error) {
	return s.resolver.Search(ctx, resolver.Query{Text: query, PriceHint: priceHint, UnitHint: unitHint})
}

type resolvedLine struct {
	req domain.OrderLineRequest
	key string
}

// CreateOrder runs the full transaction: resolve every line, lock the
// resolved resource keys in canonical order, re-verify stock under lock,
// write the order, decrement stock, and commit. It either fully succeeds
// or leaves no state behind; the one exception is a RollbackFailureError,
// which means compensation itself failed and an operator must reconcile.
func (s *OrderService) CreateOrder(ctx context.Context, req OrderRequest) (domain.OrderRecord, error) {
	if err := validate(req); err != nil {
		return domain.OrderRecord{}, err
	}

	if req.RequestID != "" && s.cache != nil {
		ok, err := s.cache.SetIdempotency(ctx, "order:"+req.RequestID)
		if err != nil {
			return domain.OrderRecord{}, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !ok {
			return domain.OrderRecord{}, ErrDuplicateRequest
		}
	}

	// Resolve every line before any lock is taken: resolution failures
	// and ambiguity abort with nothing to clean up.
	lines, err := s.resolveLines(ctx, req.Lines)
	if err != nil {
		return domain.OrderRecord{}, err
	}

	// Total demand per resource key; two lines can hit the same entry.
	need := make(map[string]int)
	keys := make([]string, 0, len(lines))
	for _, l := range lines {
		if need[l.key] == 0 {
			keys = append(keys, l.key)
		}
		need[l.key] += l.req.Quantity
	}
	sort.Strings(keys)

	holder := uuid.NewString()
	if err := s.locks.AcquireAll(ctx, keys, holder); err != nil {
		return domain.OrderRecord{}, err
	}
	defer s.locks.ReleaseAll(keys, holder)

	// Re-verify under lock: anything read before the locks were held is
	// stale. Enumerate every shortfall, not just the first.
	var fresh map[string]domain.CatalogEntry
	err = s.retryStore(ctx, func() error {
		var rerr error
		fresh, rerr = s.store.ReadByKeys(ctx, keys)
		return rerr
	})
	if err != nil {
		return domain.OrderRecord{}, err
	}

	var shortfalls []domain.Shortfall
	for _, key := range keys {
		e, ok := fresh[key]
		if !ok {
			return domain.OrderRecord{}, fmt.Errorf("%w: %q vanished from catalog", domain.ErrNoMatch, key)
		}
		if e.Stock < need[key] {
			shortfalls = append(shortfalls, domain.Shortfall{
				Key:       key,
				Product:   e.Name,
				Requested: need[key],
				Available: e.Stock,
			})
		}
	}
	if len(shortfalls) > 0 {
		return domain.OrderRecord{}, &domain.InsufficientStockError{Shortfalls: shortfalls}
	}

	rec := buildRecord(s.store.NextOrderID(), req, lines, fresh)

	// Write order rows first. A failure here needs no compensation: no
	// stock has been touched yet.
	if err := s.retryStore(ctx, func() error { return s.store.AppendOrder(ctx, rec) }); err != nil {
		return domain.OrderRecord{}, err
	}

	// Decrement stock key by key, keeping a LIFO stack of compensating
	// actions. On partial failure the stack restores the written keys in
	// reverse and deletes the order rows.
	comps := []compensator{{
		desc: fmt.Sprintf("delete order %d", rec.ID),
		run:  func(c context.Context) error { return s.store.DeleteOrder(c, rec.ID) },
	}}
	for _, key := range keys {
		e := fresh[key]
		newStock := e.Stock - need[key]
		if err := s.retryStore(ctx, func() error { return s.store.WriteStock(ctx, e, newStock) }); err != nil {
			if rbErr := s.compensate(ctx, rec.ID, comps); rbErr != nil {
				return domain.OrderRecord{}, rbErr
			}
			return domain.OrderRecord{}, err
		}
		prior := e.Stock
		comps = append(comps, compensator{
			desc: fmt.Sprintf("restore %s to %d", key, prior),
			run: func(c context.Context) error {
				return s.store.RestoreStocks(c, []catalog.StockRestore{{Entry: e, Stock: prior}})
			},
		})
	}

	s.notify(rec)
	s.logger.Info("order committed",
		slog.Int64("order_id", rec.ID),
		slog.String("customer", rec.Customer),
		slog.Int("lines", len(rec.Lines)),
		slog.Float64("total", rec.Total))
	return rec, nil
}

func validate(req OrderRequest) error {
	if req.Customer == "" {
		return fmt.Errorf("%w: customer is required", domain.ErrValidation)
	}
	if len(req.Lines) == 0 {
		return fmt.Errorf("%w: at least one line is required", domain.ErrValidation)
	}
	for i, l := range req.Lines {
		if l.Query == "" {
			return fmt.Errorf("%w: line %d has no query", domain.ErrValidation, i)
		}
		if l.Quantity <= 0 {
			return fmt.Errorf("%w: line %d quantity must be positive", domain.ErrValidation, i)
		}
	}
	return nil
}

func (s *OrderService) resolveLines(ctx context.Context, reqs []domain.OrderLineRequest) ([]resolvedLine, error) {
	lines := make([]resolvedLine, 0, len(reqs))
	for _, lr := range reqs {
		res, err := s.resolver.Search(ctx, resolver.Query{
			Text:      lr.Query,
			PriceHint: lr.PriceHint,
			UnitHint:  lr.UnitHint,
		})
		if err != nil {
			return nil, err
		}
		if len(res.Candidates) == 0 {
			return nil, fmt.Errorf("%w: %q", domain.ErrNoMatch, lr.Query)
		}
		if res.Ambiguous {
			entries := make([]domain.CatalogEntry, len(res.Candidates))
			for i, c := range res.Candidates {
				entries[i] = c.Entry
			}
			return nil, &domain.AmbiguousMatchError{Query: lr.Query, Candidates: entries}
		}
		lines = append(lines, resolvedLine{req: lr, key: res.Candidates[0].Entry.Key()})
	}
	return lines, nil
}

// buildRecord snapshots unit price and cost from the re-verified entries,
// so the total always reflects commit-time prices. ResultingStock is
// cumulative when several lines share a key.
func buildRecord(id int64, req OrderRequest, lines []resolvedLine, fresh map[string]domain.CatalogEntry) domain.OrderRecord {
	remaining := make(map[string]int, len(fresh))
	for k, e := range fresh {
		remaining[k] = e.Stock
	}

	rec := domain.OrderRecord{
		ID:             id,
		Timestamp:      time.Now(),
		Customer:       req.Customer,
		DeliveryPerson: req.DeliveryPerson,
		Payment:        req.Payment,
		Notes:          req.Notes,
	}
	if rec.Payment == "" {
		rec.Payment = domain.PaymentStatusUnpaid
	}
	for _, l := range lines {
		e := fresh[l.key]
		remaining[l.key] -= l.req.Quantity
		line := domain.OrderLine{
			Product:        e.Name,
			Unit:           e.Unit,
			Quantity:       l.req.Quantity,
			UnitPrice:      e.Price,
			UnitCost:       e.Cost,
			ResultingStock: remaining[l.key],
		}
		rec.Lines = append(rec.Lines, line)
		rec.Total += line.Subtotal()
	}
	return rec
}

type compensator struct {
	desc string
	run  func(context.Context) error
}

// compensate executes the stack in reverse order. A compensation failure
// is never swallowed: the remaining actions are still attempted, and the
// result is a RollbackFailureError naming what could not be undone so an
// operator can reconcile.
func (s *OrderService) compensate(ctx context.Context, orderID int64, comps []compensator) error {
	var cause error
	var failed []string
	for i := len(comps) - 1; i >= 0; i-- {
		c := comps[i]
		if err := s.retryStore(ctx, func() error { return c.run(ctx) }); err != nil {
			s.logger.Error("compensation step failed",
				slog.Int64("order_id", orderID),
				slog.String("step", c.desc),
				slog.Any("error", err))
			failed = append(failed, c.desc)
			if cause == nil {
				cause = err
			}
		}
	}
	if cause != nil {
		return &domain.RollbackFailureError{OrderID: orderID, Cause: cause, Unrestored: failed}
	}
	s.logger.Warn("order rolled back", slog.Int64("order_id", orderID))
	return nil
}

// retryStore retries op with bounded exponential backoff while the error
// stays transient. Everything else is permanent.
func (s *OrderService) retryStore(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialBackoff
	b.MaxInterval = maxBackoff
	return backoff.Retry(func() error {
		err := op()
		if err == nil || domain.IsTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(backoff.WithMaxRetries(b, storeRetries), ctx))
}

func (s *OrderService) notify(rec domain.OrderRecord) {
	select {
	case s.events <- Event{Order: rec}:
	default:
		s.logger.Warn("event queue full, dropping notification",
			slog.Int64("order_id", rec.ID))
	}
}
