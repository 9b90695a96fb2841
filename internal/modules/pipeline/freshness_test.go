package pipeline

import (
	"testing"
	"time"
)

func TestFreshnessIndexDecisions(t *testing.T) {
	now := time.Now()
	index := NewFreshnessIndex(24*time.Hour, map[string]time.Time{
		"https://shop.example/a": now.Add(-2 * time.Hour),
		"https://shop.example/b": now.Add(-30 * time.Hour),
	})

	if !index.Fresh("https://shop.example/a", now) {
		t.Error("2h-old detection should be fresh inside a 24h window")
	}
	if index.Fresh("https://shop.example/b", now) {
		t.Error("30h-old detection should be stale")
	}
	if index.Fresh("https://shop.example/unknown", now) {
		t.Error("unknown URL should never be fresh")
	}
}

func TestFreshnessIndexBoundary(t *testing.T) {
	now := time.Now()
	index := NewFreshnessIndex(24*time.Hour, map[string]time.Time{
		"https://shop.example/edge": now.Add(-24 * time.Hour),
	})

	// Exactly at the window boundary counts as stale.
	if index.Fresh("https://shop.example/edge", now) {
		t.Error("detection exactly 24h old should be stale")
	}
}

func TestFreshnessIndexImmutable(t *testing.T) {
	source := map[string]time.Time{"https://shop.example/a": time.Now()}
	index := NewFreshnessIndex(time.Hour, source)

	delete(source, "https://shop.example/a")
	if _, ok := index.Lookup("https://shop.example/a"); !ok {
		t.Error("index shares storage with its source map")
	}
}
