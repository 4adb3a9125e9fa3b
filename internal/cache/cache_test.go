package cache

import (
	"net/http"
	"testing"
	"time"
)

func testEntry(body string) Entry {
	return Entry{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"text/css"}},
		Body:       []byte(body),
	}
}

func TestLRU_SetGet(t *testing.T) {
	c := New(10, 0, time.Hour)
	c.Set("/static/app.css", testEntry("body{}"))

	e, ok := c.Get("/static/app.css")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if string(e.Body) != "body{}" {
		t.Errorf("body = %q, want %q", e.Body, "body{}")
	}
	if e.Header.Get("Content-Type") != "text/css" {
		t.Errorf("Content-Type = %q, want %q", e.Header.Get("Content-Type"), "text/css")
	}
	if e.StoredAt.IsZero() {
		t.Error("StoredAt should be set on insert")
	}
}

func TestLRU_MissOnUnknownKey(t *testing.T) {
	c := New(10, 0, time.Hour)
	if _, ok := c.Get("/static/missing.js"); ok {
		t.Error("expected cache miss for unknown key")
	}
}

func TestLRU_ExpiresAfterTTL(t *testing.T) {
	now := time.Now()
	c := New(10, 0, time.Hour)
	c.now = func() time.Time { return now }

	c.Set("/static/app.js", testEntry("js"))

	// One second short of the window: still fresh.
	c.now = func() time.Time { return now.Add(time.Hour - time.Second) }
	if _, ok := c.Get("/static/app.js"); !ok {
		t.Fatal("entry should still be fresh just inside the window")
	}

	// At the window boundary: stale and removed.
	c.now = func() time.Time { return now.Add(time.Hour) }
	if _, ok := c.Get("/static/app.js"); ok {
		t.Fatal("entry should be stale at the window boundary")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after lazy eviction, want 0", c.Len())
	}
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New(2, 0, time.Hour)
	c.Set("a", testEntry("a"))
	c.Set("b", testEntry("b"))

	// Touch "a" so "b" becomes the eviction candidate.
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected hit for a")
	}

	c.Set("c", testEntry("c"))

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a should have survived eviction")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("c should be present")
	}
	if got := c.Evictions(); got != 1 {
		t.Errorf("Evictions() = %d, want 1", got)
	}
}

func TestLRU_SkipsOversizedBody(t *testing.T) {
	c := New(10, 4, time.Hour)
	c.Set("/static/big.png", testEntry("12345"))

	if _, ok := c.Get("/static/big.png"); ok {
		t.Error("oversized body should not be cached")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestLRU_UpdateExistingKey(t *testing.T) {
	c := New(2, 0, time.Hour)
	c.Set("a", testEntry("v1"))
	c.Set("a", testEntry("v2"))

	e, ok := c.Get("a")
	if !ok {
		t.Fatal("expected hit")
	}
	if string(e.Body) != "v2" {
		t.Errorf("body = %q, want %q", e.Body, "v2")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestLRU_ZeroCapacityStoresNothing(t *testing.T) {
	c := New(0, 0, time.Hour)
	c.Set("a", testEntry("a"))
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}
