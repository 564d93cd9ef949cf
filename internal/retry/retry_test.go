package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"wavelift/internal/retry"
	"wavelift/internal/services"
)

type sleepRecorder struct {
	delays []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func TestDoBackoffSchedule(t *testing.T) {
	rec := &sleepRecorder{}
	calls := 0
	policy := retry.Policy{MaxAttempts: 4, BaseDelay: 5 * time.Second, Sleep: rec.sleep}

	_, err := retry.Do(context.Background(), policy, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("connection reset")
	})
	if err == nil {
		t.Fatal("expected final error")
	}
	if calls != 4 {
		t.Fatalf("expected 4 attempts, got %d", calls)
	}
	want := []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}
	if len(rec.delays) != len(want) {
		t.Fatalf("delays = %v, want %v", rec.delays, want)
	}
	for i := range want {
		if rec.delays[i] != want[i] {
			t.Fatalf("delays = %v, want %v", rec.delays, want)
		}
	}
}

func TestDoStopsOnSuccess(t *testing.T) {
	rec := &sleepRecorder{}
	calls := 0
	value, err := retry.Do(context.Background(), retry.Policy{MaxAttempts: 5, BaseDelay: time.Second, Sleep: rec.sleep},
		func(context.Context) (string, error) {
			calls++
			if calls < 2 {
				return "", errors.New("flaky")
			}
			return "ok", nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "ok" || calls != 2 {
		t.Fatalf("value=%q calls=%d", value, calls)
	}
	if len(rec.delays) != 1 || rec.delays[0] != time.Second {
		t.Fatalf("unexpected delays %v", rec.delays)
	}
}

func TestDoReturnsLastError(t *testing.T) {
	calls := 0
	errs := []error{errors.New("first"), errors.New("second"), errors.New("third")}
	err := retry.Run(context.Background(), retry.Policy{MaxAttempts: 3, Sleep: (&sleepRecorder{}).sleep},
		func(context.Context) error {
			err := errs[calls]
			calls++
			return err
		})
	if err == nil || err.Error() != "third" {
		t.Fatalf("expected last error, got %v", err)
	}
}

func TestDoNonRetryableStopsImmediately(t *testing.T) {
	calls := 0
	err := retry.Run(context.Background(), retry.Policy{MaxAttempts: 3, Sleep: (&sleepRecorder{}).sleep},
		func(context.Context) error {
			calls++
			return services.Wrap(services.ErrResolution, "resolve", "lookup", "removed", nil)
		})
	if !errors.Is(err, services.ErrResolution) {
		t.Fatalf("expected resolution error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one attempt, got %d", calls)
	}
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := retry.Run(ctx, retry.Policy{MaxAttempts: 5, BaseDelay: time.Hour}, func(context.Context) error {
		calls++
		cancel()
		return errors.New("unavailable")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected cancellation to stop retries, got %d attempts", calls)
	}
}

func TestDoPerAttemptTimeoutIsTransient(t *testing.T) {
	calls := 0
	err := retry.Run(context.Background(), retry.Policy{
		MaxAttempts: 2,
		Timeout:     10 * time.Millisecond,
		Sleep:       (&sleepRecorder{}).sleep,
	}, func(ctx context.Context) error {
		calls++
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout marker, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected timeout to be retried, got %d attempts", calls)
	}
}

func TestDelay(t *testing.T) {
	p := retry.Policy{BaseDelay: 100 * time.Millisecond}
	cases := map[int]time.Duration{0: 100 * time.Millisecond, 1: 200 * time.Millisecond, 3: 800 * time.Millisecond}
	for i, want := range cases {
		if got := p.Delay(i); got != want {
			t.Fatalf("Delay(%d) = %s, want %s", i, got, want)
		}
	}
	if (retry.Policy{}).Delay(2) != 0 {
		t.Fatal("zero base delay should not sleep")
	}
}
