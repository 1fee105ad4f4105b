package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestDo_SuccessFirstAttempt(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), DefaultPolicy(), "test", func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Errorf("expected 'ok', got %q", result)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_FailTwiceThenSucceed(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), Policy{Retries: 3}, "test", func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", fmt.Errorf("fail-%d", calls)
		}
		return "recovered", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "recovered" {
		t.Errorf("expected 'recovered', got %q", result)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_AllFail(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{Retries: 3}, "test", func(ctx context.Context) (int, error) {
		calls++
		return 0, fmt.Errorf("fail-%d", calls)
	})
	if err == nil {
		t.Fatal("expected error after all retries")
	}
	if calls != 4 { // 1 initial + 3 retries
		t.Errorf("expected 4 calls, got %d", calls)
	}
	if err.Error() != "fail-4" {
		t.Errorf("expected last error 'fail-4', got %q", err.Error())
	}
}

func TestDo_ZeroRetries(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{Retries: 0}, "test", func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("fail")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call with 0 retries, got %d", calls)
	}
}

func TestDo_LargeBudget(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{Retries: 10000, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}, "test", func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("fail")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 10001 {
		t.Errorf("expected 10001 calls, got %d", calls)
	}
}

func TestDo_PermanentNotRetried(t *testing.T) {
	sentinel := errors.New("malformed")
	calls := 0
	_, err := Do(context.Background(), Policy{Retries: 3}, "test", func(ctx context.Context) (int, error) {
		calls++
		return 0, Permanent(fmt.Errorf("decode: %w", sentinel))
	})
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if !errors.Is(err, sentinel) {
		t.Errorf("expected sentinel in chain, got %v", err)
	}
	if IsPermanent(err) {
		t.Error("returned error should be unwrapped from the permanent marker")
	}
}

func TestDo_WrappedPermanentKeepsContext(t *testing.T) {
	sentinel := errors.New("no choices")
	calls := 0
	_, err := Do(context.Background(), Policy{Retries: 3}, "test", func(ctx context.Context) (int, error) {
		calls++
		return 0, fmt.Errorf("chat completion: %w", Permanent(sentinel))
	})
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if err == nil || err.Error() != "chat completion: no choices" {
		t.Errorf("expected outer context kept, got %v", err)
	}
	if !errors.Is(err, sentinel) {
		t.Errorf("expected sentinel in chain, got %v", err)
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(ctx, Policy{Retries: 5, Delay: time.Millisecond}, "test", func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestPermanent_Nil(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}
