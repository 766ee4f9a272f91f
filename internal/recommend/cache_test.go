package recommend

import (
	"testing"
)

func TestCache_GetSet(t *testing.T) {
	c := NewCache(2)
	if v, ok := c.Get("a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	ra := &Result{Matched: 1}
	c.Set("a", ra)
	if v, ok := c.Get("a"); !ok || v != ra {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	c.Set("b", &Result{Matched: 2})
	c.Get("a")                      // a is now most recent
	c.Set("c", &Result{Matched: 3}) // evicts b
	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to remain")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d", c.Len())
	}
	c.Purge()
	if c.Len() != 0 {
		t.Errorf("Len after purge = %d", c.Len())
	}
}

func TestCache_Disabled(t *testing.T) {
	c := NewCache(0)
	if c != nil {
		t.Fatal("capacity 0 should disable the cache")
	}
	c.Set("a", &Result{})
	if _, ok := c.Get("a"); ok {
		t.Error("disabled cache should never hit")
	}
	if c.Len() != 0 {
		t.Error("disabled cache has no entries")
	}
}

func TestCacheKey(t *testing.T) {
	if CacheKey(1, "Toy Story", 5) != CacheKey(1, "toy story", 5) {
		t.Error("keys should fold case")
	}
	if CacheKey(1, "Toy Story", 5) == CacheKey(2, "Toy Story", 5) {
		t.Error("keys should differ by version")
	}
	if CacheKey(1, "Toy Story", 5) == CacheKey(1, "Toy Story", 6) {
		t.Error("keys should differ by top_k")
	}
}
