package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketdata-hub/internal/model"
)

func TestAdapter_TimeoutIsSoft(t *testing.T) {
	f := &fakeProvider{name: "slow", info: &model.StockInfo{Symbol: "X"}, delay: 200 * time.Millisecond}
	a := Wrap(f, Descriptor{Timeout: 20 * time.Millisecond})

	start := time.Now()
	r := a.StockInfo(context.Background(), "X")
	if took := time.Since(start); took > 150*time.Millisecond {
		t.Errorf("call blocked for %s, want about the timeout", took)
	}
	var te *TimeoutError
	if r.OK || !errors.As(r.Reason, &te) {
		t.Fatalf("got %+v, want TimeoutError", r)
	}
	if st := a.Stats(); st.Errors != 1 || st.Success != 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestAdapter_CallerCancelLeavesHealthAlone(t *testing.T) {
	f := &fakeProvider{name: "ok", info: &model.StockInfo{Symbol: "X"}, delay: 50 * time.Millisecond}
	a := Wrap(f, Descriptor{Timeout: time.Second})

	for i := 0; i < 12; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
		r := a.StockInfo(ctx, "X")
		cancel()
		var ue *UnavailableError
		if r.OK || !errors.As(r.Reason, &ue) || !errors.Is(r.Reason, context.DeadlineExceeded) {
			t.Fatalf("call %d: got %+v, want UnavailableError wrapping the deadline", i, r)
		}
	}
	st := a.Stats()
	if st.Errors != 0 || st.Success != 0 || !st.Healthy {
		t.Fatalf("caller cancellations changed stats: %+v", st)
	}

	// a cancelled caller must not hide real timeouts
	slow := Wrap(&fakeProvider{name: "slow", delay: 100 * time.Millisecond}, Descriptor{Timeout: 10 * time.Millisecond})
	slow.StockInfo(context.Background(), "X")
	if slow.Stats().Errors != 1 {
		t.Errorf("own timeout not counted: %+v", slow.Stats())
	}
}

func TestAdapter_CancelledProviderErrorNotCounted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := Wrap(&fakeProvider{name: "c", err: context.Canceled}, Descriptor{Timeout: time.Second})
	for i := 0; i < 12; i++ {
		a.StockInfo(ctx, "X")
	}
	if st := a.Stats(); st.Errors != 0 || !st.Healthy {
		t.Errorf("stats = %+v", st)
	}
}

func TestAdapter_PanicBecomesUnavailable(t *testing.T) {
	a := Wrap(&fakeProvider{name: "p", panic: true}, Descriptor{Timeout: time.Second})
	r := a.StockInfo(context.Background(), "X")
	var ue *UnavailableError
	if r.OK || !errors.As(r.Reason, &ue) {
		t.Fatalf("got %+v, want UnavailableError", r)
	}
	if a.Stats().Errors != 1 {
		t.Errorf("stats = %+v", a.Stats())
	}
}

func TestAdapter_ErrorWrapsCause(t *testing.T) {
	a := Wrap(&fakeProvider{name: "e", err: errBackend}, Descriptor{Timeout: time.Second})
	r := a.StockInfo(context.Background(), "X")
	if !errors.Is(r.Reason, errBackend) {
		t.Errorf("reason %v does not wrap cause", r.Reason)
	}
}

func TestAdapter_HealthRule(t *testing.T) {
	f := &fakeProvider{name: "h", err: errBackend}
	a := Wrap(f, Descriptor{Timeout: time.Second})
	ctx := context.Background()

	// 5 errors / max(5,10) = 0.5: still healthy
	for i := 0; i < 5; i++ {
		a.StockInfo(ctx, "X")
	}
	if !a.Healthy() {
		t.Fatalf("unhealthy at 5/10: %+v", a.Stats())
	}
	a.StockInfo(ctx, "X")
	if a.Healthy() {
		t.Fatalf("healthy at 6/10: %+v", a.Stats())
	}

	// successes dilute the ratio: 6 errors / 13 total < 0.5
	f.set(&model.StockInfo{Symbol: "X"}, nil)
	for i := 0; i < 7; i++ {
		a.StockInfo(ctx, "X")
	}
	if !a.Healthy() {
		t.Errorf("expected recovery: %+v", a.Stats())
	}
}

func TestAdapter_RunningMean(t *testing.T) {
	f := &fakeProvider{name: "m", info: &model.StockInfo{Symbol: "X"}}
	a := Wrap(f, Descriptor{Timeout: time.Second})

	// now() is read at start, at completion and when recording:
	// first call takes 10ms, second 30ms.
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	offsets := []time.Duration{0, 10, 10, 10, 40, 40}
	a.now = func() time.Time {
		d := offsets[0]
		if len(offsets) > 1 {
			offsets = offsets[1:]
		}
		return base.Add(d * time.Millisecond)
	}

	a.StockInfo(context.Background(), "X")
	a.StockInfo(context.Background(), "X")

	st := a.Stats()
	if st.AvgResponseMs < 19.9 || st.AvgResponseMs > 20.1 {
		t.Errorf("avg = %.2fms, want 20", st.AvgResponseMs)
	}
	if st.P50ResponseMs < 19.9 || st.P50ResponseMs > 20.1 || st.P95ResponseMs < 28.9 || st.P95ResponseMs > 29.1 {
		t.Errorf("p50/p95 = %.2f/%.2f, want 20/29", st.P50ResponseMs, st.P95ResponseMs)
	}
	if want := base.Add(40 * time.Millisecond); !st.LastRequestAt.Equal(want) {
		t.Errorf("LastRequestAt = %v, want %v", st.LastRequestAt, want)
	}
}

func TestLatencyWindow_KeepsMostRecent(t *testing.T) {
	w := newLatencyWindow(4)
	if p50, p95 := w.percentiles(); p50 != 0 || p95 != 0 {
		t.Fatalf("empty window = %v/%v", p50, p95)
	}
	for _, ms := range []float64{1000, 1000, 1, 2, 3, 4} {
		w.add(ms)
	}
	p50, p95 := w.percentiles()
	if p50 != 2.5 {
		t.Errorf("p50 = %v, want 2.5", p50)
	}
	if p95 < 3.8 || p95 > 3.9 {
		t.Errorf("p95 = %v, want ~3.85", p95)
	}
}
