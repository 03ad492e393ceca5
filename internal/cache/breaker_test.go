package cache

import (
	"errors"
	"testing"
	"time"
)

func newTestBreaker(max int, cool time.Duration) (*Breaker, *fakeClock) {
	clk := newFakeClock()
	b := NewBreaker(max, cool)
	b.now = clk.Now
	return b, clk
}

func TestBreaker_StartsClosed(t *testing.T) {
	b, _ := newTestBreaker(3, time.Second)
	if b.State() != BreakerClosed {
		t.Errorf("expected closed, got %v", b.State())
	}
}

func TestBreaker_OpensAfterFailures(t *testing.T) {
	b, _ := newTestBreaker(3, time.Second)
	errFail := errors.New("fail")

	for i := 0; i < 3; i++ {
		if err := b.Execute(func() error { return errFail }); err != errFail {
			t.Fatalf("expected errFail, got %v", err)
		}
	}
	if b.State() != BreakerOpen {
		t.Fatalf("expected open after 3 failures, got %v", b.State())
	}

	called := false
	err := b.Execute(func() error { called = true; return nil })
	if err != ErrBreakerOpen {
		t.Errorf("expected ErrBreakerOpen, got %v", err)
	}
	if called {
		t.Error("fn ran while open")
	}
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	b, clk := newTestBreaker(2, time.Second)
	errFail := errors.New("fail")
	b.Execute(func() error { return errFail })
	b.Execute(func() error { return errFail })

	var transitions []BreakerState
	b.OnStateChange = func(_, to BreakerState) { transitions = append(transitions, to) }

	// failed probe reopens
	clk.Advance(2 * time.Second)
	b.Execute(func() error { return errFail })
	if b.State() != BreakerOpen {
		t.Fatalf("expected open after failed probe, got %v", b.State())
	}

	// successful probe closes
	clk.Advance(2 * time.Second)
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if b.State() != BreakerClosed {
		t.Errorf("expected closed, got %v", b.State())
	}

	want := []BreakerState{BreakerHalfOpen, BreakerOpen, BreakerHalfOpen, BreakerClosed}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %v, want %v", i, transitions[i], want[i])
		}
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(3, time.Second)
	errFail := errors.New("fail")

	b.Execute(func() error { return errFail })
	b.Execute(func() error { return errFail })
	b.Execute(func() error { return nil })
	b.Execute(func() error { return errFail })
	b.Execute(func() error { return errFail })

	if b.State() != BreakerClosed {
		t.Errorf("expected closed, got %v", b.State())
	}
}
