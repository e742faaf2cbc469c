package state

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores for unknown or expired sessions.
var ErrNotFound = errors.New("state: session not found")

// ErrCorrupt is returned by stores holding a value that no longer decodes.
var ErrCorrupt = errors.New("state: session corrupt")

// ErrLockTimeout is returned when a distributed lock could not be taken in time.
var ErrLockTimeout = errors.New("state: lock not acquired")

// Store persists session values by id.
type Store[T any] interface {
	// Load returns ErrNotFound when id has no live value.
	Load(ctx context.Context, id string) (T, error)
	Save(ctx context.Context, id string, v T) error
	Delete(ctx context.Context, id string) error
}

// UnlockFunc releases a lock taken by Locker.Lock.
type UnlockFunc func(context.Context) error

// Locker guards a session across processes sharing one Store.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
