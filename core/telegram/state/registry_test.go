package state

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	Phase string `json:"phase"`
	N     int    `json:"n"`
}

func freshCounter() counter { return counter{Phase: "start"} }

func TestRegistryGetCreatesFreshSession(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore[counter](0)
	reg := NewRegistry[counter](store, freshCounter, Options{})

	v, err := reg.Get(ctx, "1:1")
	require.NoError(t, err)
	assert.Equal(t, counter{Phase: "start"}, v)
	assert.Equal(t, 1, store.Len())

	_, err = store.Load(ctx, "2:2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistryUpdateAndReset(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry[counter](NewMemoryStore[counter](0), freshCounter, Options{})

	require.NoError(t, reg.Update(ctx, "s", func(_ context.Context, c *counter) error {
		c.Phase = "middle"
		c.N = 3
		return nil
	}))
	v, err := reg.Get(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, counter{Phase: "middle", N: 3}, v)

	boom := errors.New("boom")
	err = reg.Update(ctx, "s", func(_ context.Context, c *counter) error {
		c.N = 99
		return boom
	})
	require.ErrorIs(t, err, boom)
	v, _ = reg.Get(ctx, "s")
	assert.Equal(t, 3, v.N, "failed update must not be saved")

	require.NoError(t, reg.Reset(ctx, "s"))
	v, _ = reg.Get(ctx, "s")
	assert.Equal(t, freshCounter(), v)
}

func TestRegistrySerializesUpdatesPerSession(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry[counter](NewMemoryStore[counter](0), freshCounter, Options{})

	const workers = 64
	var wg sync.WaitGroup
	wg.Add(workers * 2)
	for i := 0; i < workers; i++ {
		for _, id := range []string{"a", "b"} {
			go func(id string) {
				defer wg.Done()
				_ = reg.Update(ctx, id, func(_ context.Context, c *counter) error {
					n := c.N
					runtime.Gosched()
					c.N = n + 1
					return nil
				})
			}(id)
		}
	}
	wg.Wait()

	for _, id := range []string{"a", "b"} {
		v, err := reg.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, workers, v.N, id)
	}
	assert.Equal(t, 0, reg.Active(), "lock entries must be released")
}

func TestRegistryZeroValueWithoutConstructor(t *testing.T) {
	reg := NewRegistry[counter](NewMemoryStore[counter](0), nil, Options{})
	v, err := reg.Get(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, counter{}, v)
}

type failingStore struct{ MemoryStore[counter] }

func (*failingStore) Load(context.Context, string) (counter, error) {
	return counter{}, errors.New("backend down")
}

func TestRegistryPropagatesStoreErrors(t *testing.T) {
	reg := NewRegistry[counter](&failingStore{}, freshCounter, Options{})
	called := false
	err := reg.Update(context.Background(), "x", func(context.Context, *counter) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend down")
	assert.False(t, called)
}

// flakyStore fails the next failSaves saves.
type flakyStore struct {
	*MemoryStore[counter]
	failSaves int
	saves     int
}

func (s *flakyStore) Save(ctx context.Context, id string, v counter) error {
	s.saves++
	if s.failSaves > 0 {
		s.failSaves--
		return errors.New("write timeout")
	}
	return s.MemoryStore.Save(ctx, id, v)
}

func TestRegistryApplyRetriesSave(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := &flakyStore{MemoryStore: NewMemoryStore[counter](0), failSaves: 1}
	reg := NewRegistry[counter](store, freshCounter, Options{})

	followed := false
	err := reg.Apply(ctx, "s", func(_ context.Context, c *counter) (func(context.Context), error) {
		c.N = 1
		cancel()
		return func(context.Context) { followed = true }, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, store.saves)
	assert.True(t, followed)

	v, err := store.Load(context.Background(), "s")
	require.NoError(t, err)
	assert.Equal(t, 1, v.N, "saved although the caller gave up")
}

func TestRegistryApplySkipsFollowUpWhenSaveFails(t *testing.T) {
	store := &flakyStore{MemoryStore: NewMemoryStore[counter](0), failSaves: saveAttempts}
	reg := NewRegistry[counter](store, freshCounter, Options{})

	followed := false
	err := reg.Apply(context.Background(), "s", func(_ context.Context, c *counter) (func(context.Context), error) {
		c.N = 1
		return func(context.Context) { followed = true }, nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write timeout")
	assert.Equal(t, saveAttempts, store.saves)
	assert.False(t, followed)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStoreTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore[counter](time.Minute)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Save(ctx, "a", counter{N: 1}))
	require.NoError(t, store.Save(ctx, "b", counter{N: 2}))

	now = now.Add(30 * time.Second)
	require.NoError(t, store.Save(ctx, "b", counter{N: 3}))
	v, err := store.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, v.N)

	now = now.Add(45 * time.Second)
	_, err = store.Load(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, store.Len(), "expired entry is dropped on access")

	now = now.Add(time.Minute)
	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 0, store.Len())
}
