package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/showsearch/showsearch/pkg/errors"
)

var errFlaky = errors.New("flaky")

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "load", fastRetry(3), func() error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Errorf("err=%v calls=%d", err, calls)
	}
}

func TestRetryGivesUp(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "load", fastRetry(2), func() error {
		calls++
		return errFlaky
	})
	if !errors.Is(err, errFlaky) || calls != 2 {
		t.Errorf("err=%v calls=%d", err, calls)
	}
}

func TestRetryStopsOnPermanent(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "load", fastRetry(5), func() error {
		calls++
		return Permanent(apperrors.ErrCorpusUnavailable)
	})
	if calls != 1 {
		t.Errorf("permanent error retried %d times", calls)
	}
	if !errors.Is(err, apperrors.ErrCorpusUnavailable) {
		t.Errorf("err = %v", err)
	}
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}

func TestRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Retry(ctx, "load", fastRetry(5), func() error {
		calls++
		return errFlaky
	})
	if !errors.Is(err, context.Canceled) || calls != 1 {
		t.Errorf("err=%v calls=%d", err, calls)
	}
}

func TestBackoffCapped(t *testing.T) {
	cfg := RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond}.withDefaults()
	for attempt := 1; attempt <= 6; attempt++ {
		d := backoff(attempt, cfg)
		if d <= 0 || d > cfg.MaxDelay {
			t.Errorf("attempt %d: delay %v out of range", attempt, d)
		}
	}
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), 10*time.Millisecond, "load", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, apperrors.ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}

	err = WithTimeout(context.Background(), time.Second, "load", func(ctx context.Context) error {
		return errFlaky
	})
	if !errors.Is(err, errFlaky) {
		t.Errorf("err = %v", err)
	}

	if err := WithTimeout(context.Background(), 0, "load", func(ctx context.Context) error { return nil }); err != nil {
		t.Errorf("no deadline: %v", err)
	}
}

func TestCircuitBreakerLifecycle(t *testing.T) {
	now := time.Unix(0, 0)
	var changes []State
	cb := NewCircuitBreaker("redis", CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Second,
		OnStateChange:    func(_ string, _, to State) { changes = append(changes, to) },
	})
	cb.now = func() time.Time { return now }
	fail := func() error { return errFlaky }
	ok := func() error { return nil }

	cb.Execute(fail)
	if cb.State() != StateClosed {
		t.Fatal("opened before threshold")
	}
	cb.Execute(fail)
	if cb.State() != StateOpen {
		t.Fatal("not open at threshold")
	}
	if err := cb.Execute(ok); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("open circuit ran fn: %v", err)
	}

	now = now.Add(time.Second)
	if err := cb.Execute(fail); !errors.Is(err, errFlaky) {
		t.Fatalf("probe not attempted: %v", err)
	}
	if cb.State() != StateOpen {
		t.Fatal("failed probe should reopen")
	}

	now = now.Add(time.Second)
	if err := cb.Execute(ok); err != nil {
		t.Fatal(err)
	}
	if cb.State() != StateClosed {
		t.Fatal("successful probe should close")
	}

	want := []State{StateOpen, StateHalfOpen, StateOpen, StateHalfOpen, StateClosed}
	if len(changes) != len(want) {
		t.Fatalf("changes = %v, want %v", changes, want)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("changes[%d] = %v, want %v", i, changes[i], want[i])
		}
	}
}

func TestCircuitBreakerSuccessResetsCount(t *testing.T) {
	cb := NewCircuitBreaker("x", CircuitBreakerConfig{FailureThreshold: 2})
	cb.Execute(func() error { return errFlaky })
	cb.Execute(func() error { return nil })
	cb.Execute(func() error { return errFlaky })
	if cb.State() != StateClosed {
		t.Error("failures separated by a success must not open the circuit")
	}
	cb.Execute(func() error { return errFlaky })
	cb.Reset()
	if cb.State() != StateClosed {
		t.Error("Reset did not close the circuit")
	}
}
