package ristretto

import "testing"

func TestMatchCacheSetGet(t *testing.T) {
	mc, err := NewMatchCache(1000)
	if err != nil {
		t.Fatalf("NewMatchCache: %v", err)
	}
	defer mc.Close()

	if _, ok := mc.Get("1|search_web"); ok {
		t.Fatal("expected miss on empty cache")
	}

	mc.Set("1|search_web", true)
	mc.Set("1|read_file", false)
	mc.c.Wait()

	matched, ok := mc.Get("1|search_web")
	if !ok || !matched {
		t.Fatalf("Get(1|search_web) = %v, %v; want true, true", matched, ok)
	}
	matched, ok = mc.Get("1|read_file")
	if !ok || matched {
		t.Fatalf("Get(1|read_file) = %v, %v; want false, true", matched, ok)
	}

	// A new config generation uses different keys, so stale entries
	// are simply never consulted.
	if _, ok := mc.Get("2|search_web"); ok {
		t.Fatal("expected miss for new generation key")
	}
}
