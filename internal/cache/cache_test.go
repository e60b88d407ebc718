package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestCacheGetSet(t *testing.T) {
	c := New[string](4, 0)

	if _, ok := c.Get("a"); ok {
		t.Fatal("Get on empty cache returned ok")
	}

	c.Set("a", "alpha")
	got, ok := c.Get("a")
	if !ok || got != "alpha" {
		t.Errorf("Get(a) = %q, %v; want alpha, true", got, ok)
	}

	c.Set("a", "beta")
	got, _ = c.Get("a")
	if got != "beta" {
		t.Errorf("Get(a) after overwrite = %q, want beta", got)
	}

	hits, misses := c.Stats()
	if hits != 2 || misses != 1 {
		t.Errorf("Stats() = %d hits, %d misses; want 2, 1", hits, misses)
	}
}

func TestCacheLRUEviction(t *testing.T) {
	c := New[int](2, 0)

	c.Set("a", 1)
	c.Set("b", 2)

	// Touch "a" so "b" becomes the eviction candidate.
	if _, ok := c.Get("a"); !ok {
		t.Fatal("Get(a) missing before eviction")
	}

	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b survived eviction, want least-recently-used removed")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a evicted, want retained (recently used)")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("c missing after insert")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	c := New[string](8, time.Hour)

	base := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return base }

	c.Set("k", "v")
	if _, ok := c.Get("k"); !ok {
		t.Fatal("Get(k) missing immediately after Set")
	}

	// Just under the TTL: still present.
	c.now = func() time.Time { return base.Add(time.Hour - time.Second) }
	if _, ok := c.Get("k"); !ok {
		t.Error("entry expired before TTL elapsed")
	}

	// At the TTL boundary: gone.
	c.now = func() time.Time { return base.Add(time.Hour) }
	if _, ok := c.Get("k"); ok {
		t.Error("entry survived past TTL")
	}
	if c.Len() != 0 {
		t.Errorf("Len() after expiry = %d, want 0", c.Len())
	}
}

func TestCacheInvalidatePrefix(t *testing.T) {
	c := New[int](16, 0)

	c.Set("thread-1:50:true", 1)
	c.Set("thread-1:0:false", 2)
	c.Set("thread-2:50:true", 3)

	c.InvalidatePrefix("thread-1:")

	if _, ok := c.Get("thread-1:50:true"); ok {
		t.Error("thread-1 view survived prefix invalidation")
	}
	if _, ok := c.Get("thread-1:0:false"); ok {
		t.Error("thread-1 second view survived prefix invalidation")
	}
	if _, ok := c.Get("thread-2:50:true"); !ok {
		t.Error("thread-2 view invalidated, want retained")
	}
}

func TestCacheDeleteAndPurge(t *testing.T) {
	c := New[int](8, 0)
	c.Set("a", 1)
	c.Set("b", 2)

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("a present after Delete")
	}

	c.Purge()
	if c.Len() != 0 {
		t.Errorf("Len() after Purge = %d, want 0", c.Len())
	}
	if _, ok := c.Get("b"); ok {
		t.Error("b present after Purge")
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := New[int](64, time.Minute)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", i%32)
				c.Set(key, g*1000+i)
				c.Get(key)
				if i%50 == 0 {
					c.InvalidatePrefix("k1")
				}
			}
		}(g)
	}
	wg.Wait()

	if c.Len() > 64 {
		t.Errorf("Len() = %d exceeds bound 64", c.Len())
	}
}
