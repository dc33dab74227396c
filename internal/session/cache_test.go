// ABOUTME: Tests for the session snapshot cache
// ABOUTME: Validates TTL expiration, copy semantics, LRU eviction, cleanup, and concurrency safety

package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_GetMissing(t *testing.T) {
	cache := NewCache(5*time.Minute, 100)
	defer cache.Close()

	_, ok := cache.Get("never-put")
	assert.False(t, ok)
}

func TestCache_PutGet(t *testing.T) {
	cache := NewCache(5*time.Minute, 100)
	defer cache.Close()

	cache.Put("k", []byte(`{"a":1}`))

	got, ok := cache.Get("k")
	require.True(t, ok)
	assert.Equal(t, `{"a":1}`, string(got))
}

func TestCache_ReturnsCopies(t *testing.T) {
	cache := NewCache(5*time.Minute, 100)
	defer cache.Close()

	in := []byte("abc")
	cache.Put("k", in)
	in[0] = 'X'

	got, _ := cache.Get("k")
	got[1] = 'Y'

	again, _ := cache.Get("k")
	assert.Equal(t, "abc", string(again))
}

func TestCache_Expired(t *testing.T) {
	cache := NewCache(10*time.Millisecond, 100)
	defer cache.Close()

	cache.Put("k", []byte("v"))
	_, ok := cache.Get("k")
	assert.True(t, ok)

	time.Sleep(20 * time.Millisecond)

	_, ok = cache.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len(), "expired entry is dropped on read")
}

func TestCache_ZeroTTLNeverExpires(t *testing.T) {
	cache := NewCache(0, 100)
	defer cache.Close()

	cache.Put("k", []byte("v"))
	time.Sleep(5 * time.Millisecond)
	cache.runCleanup()

	_, ok := cache.Get("k")
	assert.True(t, ok)
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	cache := NewCache(5*time.Minute, 3)
	defer cache.Close()

	cache.Put("a", []byte("1"))
	cache.Put("b", []byte("2"))
	cache.Put("c", []byte("3"))

	// Touching "a" makes "b" the oldest
	_, _ = cache.Get("a")
	cache.Put("d", []byte("4"))

	_, ok := cache.Get("b")
	assert.False(t, ok)
	for _, k := range []string{"a", "c", "d"} {
		_, ok := cache.Get(k)
		assert.True(t, ok, k)
	}
	assert.Equal(t, 3, cache.Len())
}

func TestCache_PutOverwrites(t *testing.T) {
	cache := NewCache(5*time.Minute, 2)
	defer cache.Close()

	cache.Put("a", []byte("1"))
	cache.Put("a", []byte("2"))

	got, _ := cache.Get("a")
	assert.Equal(t, "2", string(got))
	assert.Equal(t, 1, cache.Len())
}

func TestCache_Delete(t *testing.T) {
	cache := NewCache(5*time.Minute, 10)
	defer cache.Close()

	cache.Put("a", []byte("1"))
	cache.Delete("a")
	cache.Delete("missing")

	_, ok := cache.Get("a")
	assert.False(t, ok)
}

func TestCache_Cleanup(t *testing.T) {
	cache := NewCache(10*time.Millisecond, 100)
	defer cache.Close()

	for i := range 5 {
		cache.Put(fmt.Sprintf("k%d", i), []byte("v"))
	}
	time.Sleep(20 * time.Millisecond)

	cache.runCleanup()

	assert.Equal(t, 0, cache.Len(), "cleanup should remove expired entries")
	assert.Equal(t, 0, cache.order.Len(), "cleanup should unlink expired entries")
}

func TestCache_Concurrent(t *testing.T) {
	cache := NewCache(5*time.Minute, 50)
	defer cache.Close()

	var wg sync.WaitGroup
	for g := range 10 {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := range 100 {
				key := fmt.Sprintf("k%d", (g*100+i)%80)
				cache.Put(key, []byte(key))
				if got, ok := cache.Get(key); ok {
					assert.Equal(t, key, string(got))
				}
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, cache.Len(), 50)
}

func TestCache_CloseTwice(t *testing.T) {
	cache := NewCache(time.Minute, 10)
	cache.Close()
	assert.NotPanics(t, cache.Close)
}
