package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func fastPolicy() Policy {
	p := DefaultPolicy()
	p.InitialBackoff = time.Millisecond
	p.MaxBackoff = 2 * time.Millisecond
	return p
}

func TestDo_SucceedsAfterRetryableStatus(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(), func(context.Context) error {
		calls++
		if calls < 3 {
			return HTTPError{StatusCode: http.StatusServiceUnavailable, Status: "503 Service Unavailable"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_StopsOnClientError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(), func(context.Context) error {
		calls++
		return HTTPError{StatusCode: http.StatusBadRequest, Status: "400 Bad Request"}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("4xx should not be retried, got %d calls", calls)
	}
}

func TestDo_Permanent(t *testing.T) {
	calls := 0
	sentinel := errors.New("bad payload")
	err := Do(context.Background(), fastPolicy(), func(context.Context) error {
		calls++
		return Permanent(sentinel)
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped sentinel, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_Exhausted(t *testing.T) {
	sentinel := errors.New("connection refused")
	err := Do(context.Background(), fastPolicy(), func(context.Context) error { return sentinel })
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped sentinel, got %v", err)
	}
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	p := DefaultPolicy()
	p.InitialBackoff = time.Hour
	p.MaxBackoff = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := Do(ctx, p, func(context.Context) error { return errors.New("flaky") })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestBackoffCapped(t *testing.T) {
	p := Policy{InitialBackoff: time.Second, MaxBackoff: 3 * time.Second, Multiplier: 2}
	if got := p.backoff(0); got != time.Second {
		t.Errorf("attempt 0: got %s", got)
	}
	if got := p.backoff(5); got != 3*time.Second {
		t.Errorf("attempt 5 should be capped, got %s", got)
	}
}
