package history

import (
	"testing"
)

func TestRefresher_BadSpec(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, newFakeFetcher())
	if _, err := NewRefresher(o, "not a cron", nil, nil); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestRefresher_RunOnceForcesFetch(t *testing.T) {
	f := newFakeFetcher()
	o, _, _ := newTestOrchestrator(t, f)
	r, err := NewRefresher(o, "0 30 22 * * 1-5", []string{"AAPL", "MSFT"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	r.Start()
	defer r.Stop()

	r.RunOnce()
	r.RunOnce()
	if f.Calls("AAPL") != 2 || f.Calls("MSFT") != 2 {
		t.Errorf("calls = %d/%d, want 2/2", f.Calls("AAPL"), f.Calls("MSFT"))
	}
}
