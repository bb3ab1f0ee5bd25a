package invoke

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sweetpotato0/genflow/fault"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// sleepRecorder captures backoff delays without actually sleeping.
type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

func TestDoRetriesRateLimitWithDoublingBackoff(t *testing.T) {
	recorder := &sleepRecorder{}
	iv := NewInvoker(WithSleep(recorder.sleep), WithLogger(discardLogger()))

	calls := 0
	out, err := Do(context.Background(), iv, "Funnel Generation", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("googleapi: Error 429: Resource has been exhausted")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if out != "ok" {
		t.Fatalf("out = %q", out)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(recorder.delays) != len(want) {
		t.Fatalf("delays = %v, want %v", recorder.delays, want)
	}
	for i := range want {
		if recorder.delays[i] != want[i] {
			t.Fatalf("delay[%d] = %v, want %v", i, recorder.delays[i], want[i])
		}
	}
}

func TestDoExhaustsAttemptsThenClassifies(t *testing.T) {
	recorder := &sleepRecorder{}
	iv := NewInvoker(WithSleep(recorder.sleep), WithLogger(discardLogger()))

	calls := 0
	_, err := Do(context.Background(), iv, "Funnel Generation", func(context.Context) (string, error) {
		calls++
		return "", errors.New("quota exceeded for requests per minute")
	})
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if len(recorder.delays) != 2 {
		t.Fatalf("delays = %v, want two backoffs", recorder.delays)
	}
	if fault.KindOf(err) != fault.KindRateLimited {
		t.Fatalf("err = %v, want KindRateLimited", err)
	}
}

func TestDoNonRetryableFailsImmediately(t *testing.T) {
	recorder := &sleepRecorder{}
	iv := NewInvoker(WithSleep(recorder.sleep), WithLogger(discardLogger()))

	calls := 0
	_, err := Do(context.Background(), iv, "Funnel Generation", func(context.Context) (string, error) {
		calls++
		return "", errors.New("API key not valid. Please pass a valid API key.")
	})
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (no retry on non-transient failures)", calls)
	}
	if len(recorder.delays) != 0 {
		t.Fatalf("unexpected backoff: %v", recorder.delays)
	}
	if fault.KindOf(err) != fault.KindInvalidCredential {
		t.Fatalf("err = %v, want KindInvalidCredential", err)
	}
}

func TestDoClassifiesUnderLabel(t *testing.T) {
	iv := NewInvoker(WithSleep((&sleepRecorder{}).sleep), WithLogger(discardLogger()))

	_, err := Do(context.Background(), iv, "Asset Upload", func(context.Context) (int, error) {
		return 0, errors.New("connection reset by peer")
	})
	var fe *fault.Error
	if !errors.As(err, &fe) {
		t.Fatalf("err %T is not a *fault.Error", err)
	}
	if fe.Context != "Asset Upload" {
		t.Fatalf("Context = %q, want %q", fe.Context, "Asset Upload")
	}
}

func TestDoPassesThroughTypedErrors(t *testing.T) {
	iv := NewInvoker(WithSleep((&sleepRecorder{}).sleep), WithLogger(discardLogger()))

	original := fault.New(fault.KindSafetyBlocked, "blocked")
	_, err := Do(context.Background(), iv, "Funnel Generation", func(context.Context) (string, error) {
		return "", original
	})
	var fe *fault.Error
	if !errors.As(err, &fe) || fe != original {
		t.Fatalf("err = %v, want the original classified error", err)
	}
}

func TestDoStopsWhenContextCancelledDuringBackoff(t *testing.T) {
	iv := NewInvoker(
		WithSleep(sleepContext),
		WithBaseDelay(time.Hour),
		WithLogger(discardLogger()),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	_, err := Do(ctx, iv, "Funnel Generation", func(context.Context) (string, error) {
		calls++
		return "", errors.New("rate limit exceeded")
	})
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if err == nil || !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context cancellation", err)
	}
}
