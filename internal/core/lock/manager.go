// Package lock provides per-resource-key mutual exclusion with FIFO
// waiters, a wait bound, and stale-holder recovery. One Manager instance
// is constructed at process startup and injected wherever stock is
// mutated; every mutator of a resource must go through it.
package lock

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rapeepat/shopflow/internal/core/domain"
)

// ErrCapacity is returned when the lock table is full of live entries.
// The manager applies backpressure instead of evicting a held lock:
// evicting would let a second mutator in on a key someone still holds.
var ErrCapacity = errors.New("lock table at capacity")

// ErrNotHolder is returned by Release when the caller does not hold the key.
var ErrNotHolder = errors.New("release by non-holder")

const (
	DefaultWaitBound  = 10 * time.Second
	DefaultStaleAfter = 30 * time.Second
	DefaultCapacity   = 1024
)

type waiter struct {
	holder  string
	ready   chan struct{}
	granted bool
}

type entry struct {
	holder     string
	acquiredAt time.Time
	waiters    []*waiter
}

// Manager is a keyed mutex. Keys not currently held and with no waiters
// occupy no memory.
type Manager struct {
	waitBound  time.Duration
	staleAfter time.Duration
	capacity   int
	logger     *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

func NewManager(waitBound, staleAfter time.Duration, capacity int, logger *slog.Logger) *Manager {
	if waitBound <= 0 {
		waitBound = DefaultWaitBound
	}
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		waitBound:  waitBound,
		staleAfter: staleAfter,
		capacity:   capacity,
		logger:     logger,
		entries:    make(map[string]*entry),
	}
}

func (m *Manager) lock()   { m.mu.Lock() }
func (m *Manager) unlock() { m.mu.Unlock() }

// Acquire grants the key to holder, waiting in FIFO order behind the
// current owner. It fails with a LockTimeoutError after the manager's
// wait bound, or with ctx.Err() if the context ends first. On failure the
// caller holds nothing.
func (m *Manager) Acquire(ctx context.Context, key, holder string) error {
	m.lock()

	e, ok := m.entries[key]
	if !ok {
		if len(m.entries) >= m.capacity {
			m.unlock()
			return ErrCapacity
		}
		m.entries[key] = &entry{holder: holder, acquiredAt: time.Now()}
		m.unlock()
		return nil
	}

	w := &waiter{holder: holder, ready: make(chan struct{})}
	e.waiters = append(e.waiters, w)
	m.unlock()

	timer := time.NewTimer(m.waitBound)
	defer timer.Stop()

	select {
	case <-w.ready:
		return nil
	case <-timer.C:
		return m.abandonWait(key, w, &domain.LockTimeoutError{Key: key, Wait: m.waitBound})
	case <-ctx.Done():
		return m.abandonWait(key, w, ctx.Err())
	}
}

// abandonWait removes w from the queue. If the grant raced the timeout,
// the caller briefly owns the key and must pass it on.
func (m *Manager) abandonWait(key string, w *waiter, cause error) error {
	m.lock()
	if w.granted {
		m.releaseLocked(key, w.holder)
		m.unlock()
		return cause
	}
	if e, ok := m.entries[key]; ok {
		for i, x := range e.waiters {
			if x == w {
				e.waiters = append(e.waiters[:i], e.waiters[i+1:]...)
				break
			}
		}
	}
	m.unlock()
	return cause
}

// Release hands the key to the next FIFO waiter, or removes the entry when
// nobody is waiting.
func (m *Manager) Release(key, holder string) error {
	m.lock()
	defer m.unlock()

	e, ok := m.entries[key]
	if !ok || e.holder != holder {
		return ErrNotHolder
	}
	m.releaseLocked(key, holder)
	return nil
}

func (m *Manager) releaseLocked(key, holder string) {
	e := m.entries[key]
	if len(e.waiters) == 0 {
		delete(m.entries, key)
		return
	}
	next := e.waiters[0]
	e.waiters = e.waiters[1:]
	e.holder = next.holder
	e.acquiredAt = time.Now()
	next.granted = true
	close(next.ready)
}

// AcquireAll takes every key in canonical (sorted) order so transactions
// sharing overlapping keys cannot deadlock each other. Keys are
// deduplicated first. On any failure the keys already taken are released
// before the error is returned; the caller never ends up with a partial
// set.
func (m *Manager) AcquireAll(ctx context.Context, keys []string, holder string) error {
	seen := make(map[string]bool, len(keys))
	ordered := make([]string, 0, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			ordered = append(ordered, k)
		}
	}
	sort.Strings(ordered)

	for i, k := range ordered {
		if err := m.Acquire(ctx, k, holder); err != nil {
			for j := i - 1; j >= 0; j-- {
				m.Release(ordered[j], holder)
			}
			return err
		}
	}
	return nil
}

// ReleaseAll releases every key held by holder among keys. Order does not
// matter on the release side.
func (m *Manager) ReleaseAll(keys []string, holder string) {
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		m.Release(k, holder)
	}
}

// Sweep reclaims entries whose holder has sat on the key past the stale
// bound without releasing, promoting the next waiter. Defends against
// crashed or aborted holders that never called Release. Returns the
// number of reclaimed keys.
func (m *Manager) Sweep() int {
	m.lock()
	defer m.unlock()

	now := time.Now()
	reclaimed := 0
	for key, e := range m.entries {
		if now.Sub(e.acquiredAt) > m.staleAfter {
			m.logger.Warn("reclaiming stale lock",
				slog.String("key", key),
				slog.String("holder", e.holder),
				slog.Duration("held", now.Sub(e.acquiredAt)))
			m.releaseLocked(key, e.holder)
			reclaimed++
		}
	}
	return reclaimed
}

// StartSweeper runs Sweep on the given interval until ctx ends.
func (m *Manager) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = m.staleAfter / 2
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				m.Sweep()
			}
		}
	}()
}

// Held reports whether key is currently owned. Intended for tests and
// diagnostics.
func (m *Manager) Held(key string) bool {
	m.lock()
	defer m.unlock()
	_, ok := m.entries[key]
	return ok
}

// Len returns the number of tracked keys.
func (m *Manager) Len() int {
	m.lock()
	defer m.unlock()
	return len(m.entries)
}
