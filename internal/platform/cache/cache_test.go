package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SetGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	got, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	_, ok, err = s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))

	now = now.Add(59 * time.Second)
	_, ok, _ := s.Get(ctx, "k")
	assert.True(t, ok)

	now = now.Add(time.Second)
	_, ok, _ = s.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryStore_ExpiryKeepsConcurrentRefresh(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	require.NoError(t, s.Set(ctx, "k", []byte("old"), time.Second))

	now = now.Add(2 * time.Second)
	// The first clock read inside Get happens after it has seen the expired
	// entry and released its read lock; refresh the key right there.
	refreshed := false
	s.now = func() time.Time {
		if !refreshed {
			refreshed = true
			require.NoError(t, s.Set(ctx, "k", []byte("fresh"), time.Minute))
		}
		return now
	}

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	got, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok, "refreshed entry must survive the expiry of the old one")
	assert.Equal(t, []byte("fresh"), got)
}

func TestMemoryStore_NonPositiveTTLNotStored(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "k", []byte("v"), 0))
	_, ok, _ := s.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, s.Set(ctx, "b", []byte("2"), time.Minute))

	require.NoError(t, s.Delete(ctx, "a", "b", "c"))
	_, ok, _ := s.Get(ctx, "a")
	assert.False(t, ok)
	_, ok, _ = s.Get(ctx, "b")
	assert.False(t, ok)
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	buf := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", buf, time.Minute))
	buf[0] = 'z'

	got, _, _ := s.Get(ctx, "k")
	assert.Equal(t, "abc", string(got))
	got[1] = 'z'
	again, _, _ := s.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestMemoryStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Set(ctx, "k", []byte("v"), time.Minute)
			_, _, _ = s.Get(ctx, "k")
			_ = s.Delete(ctx, "k")
		}()
	}
	wg.Wait()
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	type item struct {
		Name string `json:"name"`
	}
	require.NoError(t, SaveJSON(ctx, s, "items", []item{{Name: "a"}}, time.Minute))

	var out []item
	ok, err := LoadJSON(ctx, s, "items", &out)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []item{{Name: "a"}}, out)

	ok, err = LoadJSON(ctx, s, "absent", &out)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "broken", []byte("{"), time.Minute))
	_, err = LoadJSON(ctx, s, "broken", &out)
	assert.Error(t, err)
}

func TestNopStore(t *testing.T) {
	ctx := context.Background()
	var s Store = NopStore{}
	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	_, ok, err := s.Get(ctx, "k")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, s.Delete(ctx, "k"))
}

func TestNewRedisStore_BadURL(t *testing.T) {
	_, err := NewRedisStore("http://not-redis", "clinic:")
	assert.Error(t, err)
}

func TestRedisStore_UnreachableReportsError(t *testing.T) {
	s, err := NewRedisStore("redis://127.0.0.1:1/0?dial_timeout=200ms", "clinic:")
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, _, err = s.Get(ctx, "k")
	assert.Error(t, err)
	assert.Error(t, s.Ping(ctx))
	assert.Equal(t, "clinic:k", s.key("k"))
}
