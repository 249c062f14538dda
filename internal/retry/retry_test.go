package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLinearDelays(t *testing.T) {
	d := Linear(time.Second)
	for i, want := range []time.Duration{time.Second, 2 * time.Second, 3 * time.Second} {
		if got := d(i + 1); got != want {
			t.Errorf("attempt %d: got %v, want %v", i+1, got, want)
		}
	}
}

func TestExponentialDelays(t *testing.T) {
	d := Exponential(time.Second)
	for i, want := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		if got := d(i + 1); got != want {
			t.Errorf("attempt %d: got %v, want %v", i+1, got, want)
		}
	}
}

func TestDoStopsAfterMaxAttempts(t *testing.T) {
	calls := 0
	p := Policy{MaxAttempts: 3, Delay: Linear(time.Millisecond)}
	err := p.Do(context.Background(), func() error {
		calls++
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 3 {
		t.Errorf("got %d calls, want 3", calls)
	}
}

func TestDoReturnsOnFirstSuccess(t *testing.T) {
	calls := 0
	p := Policy{MaxAttempts: 3, Delay: Linear(time.Millisecond)}
	err := p.Do(context.Background(), func() error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("got %d calls, want 2", calls)
	}
}

func TestDoHonorsContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := Policy{MaxAttempts: 3, Delay: Linear(time.Hour)}
	err := p.Do(ctx, func() error { return errors.New("boom") })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}
