package pa

import (
	"errors"
	"testing"
	"time"
)

func TestBreaker_OpensAfterMaxFailures(t *testing.T) {
	b := NewBreaker(3, time.Hour)
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		if err := b.Execute(func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("attempt %d: err = %v, want boom", i, err)
		}
	}
	if !b.Open() {
		t.Fatal("breaker still closed after max failures")
	}

	if err := b.Execute(func() error {
		t.Fatal("open breaker must not execute")
		return nil
	}); !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("err = %v, want ErrBreakerOpen", err)
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(3, time.Hour)
	boom := errors.New("boom")

	for i := 0; i < 5; i++ {
		b.Execute(func() error { return boom })
		b.Execute(func() error { return nil })
	}
	if b.Open() {
		t.Fatal("alternating outcomes must not open the breaker")
	}
}

func TestBreaker_HalfOpenProbeAndRecovery(t *testing.T) {
	b := NewBreaker(1, time.Nanosecond)
	boom := errors.New("boom")

	b.Execute(func() error { return boom })
	time.Sleep(time.Millisecond)

	// Cooldown elapsed: the probe runs, a failure re-opens.
	if err := b.Execute(func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("probe err = %v, want boom", err)
	}
	time.Sleep(time.Millisecond)

	// Three consecutive successes close it again.
	for i := 0; i < 3; i++ {
		if err := b.Execute(func() error { return nil }); err != nil {
			t.Fatalf("success %d: %v", i, err)
		}
	}
	if b.Open() {
		t.Fatal("breaker still open after recovery")
	}
}

func TestBreaker_Reset(t *testing.T) {
	b := NewBreaker(1, time.Hour)
	b.Execute(func() error { return errors.New("boom") })
	if !b.Open() {
		t.Fatal("breaker should be open")
	}
	b.Reset()
	if b.Open() {
		t.Fatal("breaker should be closed after reset")
	}
}
