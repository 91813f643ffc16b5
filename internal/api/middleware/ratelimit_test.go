package middleware

import (
	"testing"
	"time"
)

func TestLimiter_BurstThenRefill(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := newLimiter(10, idleBucket)
	l.now = func() time.Time { return now }

	for i := 0; i < 10; i++ {
		if ok, _ := l.take("ip:1.2.3.4"); !ok {
			t.Fatalf("request %d rejected inside burst", i+1)
		}
	}
	ok, wait := l.take("ip:1.2.3.4")
	if ok {
		t.Fatal("11th request allowed, want rejected")
	}
	if wait != 100*time.Millisecond {
		t.Errorf("wait = %s, want 100ms at 10 rps", wait)
	}
	if ok, _ := l.take("ip:5.6.7.8"); !ok {
		t.Error("other caller should have its own bucket")
	}

	now = now.Add(200 * time.Millisecond) // 2 tokens at 10 rps
	for i := 0; i < 2; i++ {
		if ok, _ := l.take("ip:1.2.3.4"); !ok {
			t.Errorf("refilled token %d was not granted", i+1)
		}
	}
	if ok, _ := l.take("ip:1.2.3.4"); ok {
		t.Error("bucket should be empty again")
	}
}

func TestLimiter_SweepsIdleBuckets(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := newLimiter(5, idleBucket)
	l.now = func() time.Time { return now }

	l.take("old")
	now = now.Add(20 * time.Minute)
	l.take("fresh")

	if _, ok := l.buckets["old"]; ok {
		t.Error("idle bucket was not swept")
	}
	if _, ok := l.buckets["fresh"]; !ok {
		t.Error("active bucket was swept")
	}
}
