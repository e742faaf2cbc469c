package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/intakebot/core/logger"
)

const (
	defaultLockTTL = 30 * time.Second

	saveAttempts = 3
	saveBackoff  = 50 * time.Millisecond
)

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Options tune a Registry.
type Options struct {
	// Locker adds a cross-process lock around every operation.
	Locker Locker
	// LockTTL is how long a distributed lock survives a holder that stopped
	// renewing it, and how long Lock waits for a busy session; 0 means 30s.
	LockTTL time.Duration
}

// Registry maps session ids to values of type T. Operations on one id run
// one at a time; different ids proceed in parallel.
type Registry[T any] struct {
	store   Store[T]
	fresh   func() T
	locker  Locker
	lockTTL time.Duration

	mu    sync.Mutex
	locks map[string]*lockEntry
}

// NewRegistry builds a Registry. fresh returns the value of a new session.
func NewRegistry[T any](store Store[T], fresh func() T, opts Options) *Registry[T] {
	if fresh == nil {
		fresh = func() T {
			var zero T
			return zero
		}
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaultLockTTL
	}
	return &Registry[T]{
		store:   store,
		fresh:   fresh,
		locker:  opts.Locker,
		lockTTL: opts.LockTTL,
		locks:   make(map[string]*lockEntry),
	}
}

func (r *Registry[T]) acquire(id string) *lockEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.locks[id]
	if !ok {
		e = &lockEntry{}
		r.locks[id] = e
	}
	e.refs++
	return e
}

func (r *Registry[T]) release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.locks[id]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(r.locks, id)
	}
}

func (r *Registry[T]) withLock(ctx context.Context, id string, fn func(context.Context) error) error {
	e := r.acquire(id)
	e.mu.Lock()
	defer func() {
		e.mu.Unlock()
		r.release(id)
	}()

	if r.locker != nil {
		unlock, err := r.locker.Lock(ctx, id, r.lockTTL)
		if err != nil {
			return fmt.Errorf("session %s: %w", id, err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				logger.Warn(ctx, "tg.session", "session.unlock",
					slog.String("status", "fail"),
					slog.String("session_id", id),
					slog.String("err", err.Error()),
				)
			}
		}()
	}
	return fn(ctx)
}

func (r *Registry[T]) loadOrFresh(ctx context.Context, id string) (T, bool, error) {
	v, err := r.store.Load(ctx, id)
	if err == nil {
		return v, false, nil
	}
	if errors.Is(err, ErrNotFound) {
		return r.fresh(), true, nil
	}
	return v, false, fmt.Errorf("load session %s: %w", id, err)
}

// Get returns the session value, creating and storing a fresh one if absent.
func (r *Registry[T]) Get(ctx context.Context, id string) (T, error) {
	var out T
	err := r.withLock(ctx, id, func(ctx context.Context) error {
		v, created, err := r.loadOrFresh(ctx, id)
		if err != nil {
			return err
		}
		if created {
			if err := r.store.Save(ctx, id, v); err != nil {
				return fmt.Errorf("save session %s: %w", id, err)
			}
		}
		out = v
		return nil
	})
	return out, err
}

// Reset forgets the session; the next access starts fresh.
func (r *Registry[T]) Reset(ctx context.Context, id string) error {
	return r.withLock(ctx, id, func(ctx context.Context) error {
		return r.store.Delete(ctx, id)
	})
}

// Update loads the session (or a fresh one), runs fn on it and saves the
// result. Nothing is saved when fn fails. No other operation on id runs
// until fn returns, so fn may block on I/O safely.
func (r *Registry[T]) Update(ctx context.Context, id string, fn func(context.Context, *T) error) error {
	return r.Apply(ctx, id, func(ctx context.Context, v *T) (func(context.Context), error) {
		return nil, fn(ctx, v)
	})
}

// Apply is Update with a follow-up: the func returned by fn runs after the
// new value is saved, still under the session lock, and never runs when the
// save fails. A save is retried a few times and is not cut short by ctx, so
// a side effect fn already caused is not lost to a cancelled update.
func (r *Registry[T]) Apply(ctx context.Context, id string, fn func(context.Context, *T) (func(context.Context), error)) error {
	return r.withLock(ctx, id, func(ctx context.Context) error {
		v, _, err := r.loadOrFresh(ctx, id)
		if err != nil {
			return err
		}
		then, err := fn(ctx, &v)
		if err != nil {
			return err
		}
		if err := r.save(ctx, id, v); err != nil {
			return err
		}
		if then != nil {
			then(ctx)
		}
		return nil
	})
}

func (r *Registry[T]) save(ctx context.Context, id string, v T) error {
	ctx = context.WithoutCancel(ctx)
	var err error
	for attempt := 1; attempt <= saveAttempts; attempt++ {
		if err = r.store.Save(ctx, id, v); err == nil {
			return nil
		}
		status := "retry"
		if attempt == saveAttempts {
			status = "fail"
		}
		logger.Warn(ctx, "tg.session", "session.save",
			slog.String("status", status),
			slog.String("session_id", id),
			slog.Int("attempt", attempt),
			slog.String("err", err.Error()),
		)
		if attempt < saveAttempts {
			time.Sleep(saveBackoff * time.Duration(attempt))
		}
	}
	return fmt.Errorf("save session %s: %w", id, err)
}

// Active reports how many sessions have an operation in flight or waiting.
func (r *Registry[T]) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}
