package proxy

import (
	"testing"
	"time"
)

func TestPool_Rotation(t *testing.T) {
	pool := NewPool([]string{"p1", "p2", "p3"}, time.Minute)

	for i, want := range []string{"p1", "p2", "p3", "p1"} {
		if got := pool.Next(); got != want {
			t.Errorf("call %d: expected %s, got %s", i, want, got)
		}
	}
}

func TestPool_SkipsFailedUntilCooldown(t *testing.T) {
	now := time.Unix(1000, 0)
	pool := NewPool([]string{"p1", "p2"}, time.Minute)
	pool.now = func() time.Time { return now }

	pool.MarkFailed("p1")

	if got := pool.Next(); got != "p2" {
		t.Errorf("expected p2 while p1 cools down, got %s", got)
	}
	if got := pool.Next(); got != "p2" {
		t.Errorf("expected p2 again, got %s", got)
	}

	now = now.Add(2 * time.Minute)
	if got := pool.Next(); got != "p1" {
		t.Errorf("expected p1 after cooldown, got %s", got)
	}
}

func TestPool_AllFailedReturnsOldest(t *testing.T) {
	now := time.Unix(1000, 0)
	pool := NewPool([]string{"p1", "p2"}, time.Hour)
	pool.now = func() time.Time { return now }

	pool.MarkFailed("p2")
	now = now.Add(time.Second)
	pool.MarkFailed("p1")

	if got := pool.Next(); got != "p2" {
		t.Errorf("expected the longest-failed proxy p2, got %s", got)
	}
}

func TestPool_MarkHealthy(t *testing.T) {
	pool := NewPool([]string{"p1", "p2"}, time.Hour)
	pool.MarkFailed("p1")
	pool.MarkHealthy("p1")

	if got := pool.Next(); got != "p1" {
		t.Errorf("expected p1 after MarkHealthy, got %s", got)
	}
}

func TestPool_Empty(t *testing.T) {
	pool := NewPool([]string{"", ""}, 0)
	if pool.Len() != 0 {
		t.Errorf("empty strings should be dropped")
	}
	if got := pool.Next(); got != "" {
		t.Errorf("expected no proxy, got %q", got)
	}
}
