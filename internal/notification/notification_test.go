package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu     sync.Mutex
	alerts []Alert
	err    error
}

func (r *recorder) Send(_ context.Context, a Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return r.err
}

func (r *recorder) all() []Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Alert(nil), r.alerts...)
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestWebhookNotifier(t *testing.T) {
	var got Alert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("method=%s ct=%s", r.Method, r.Header.Get("Content-Type"))
		}
		json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL).Send(context.Background(), Alert{Level: AlertWarning, Title: "t", Source: "live"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "t" || got.Source != "live" || got.Time.IsZero() {
		t.Errorf("got %+v", got)
	}
}

func TestWebhookNotifier_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if err := NewWebhookNotifier(srv.URL).Send(context.Background(), Alert{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestTelegramNotifier_EscapesText(t *testing.T) {
	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&body)
	}))
	defer srv.Close()

	tg := NewTelegramNotifier("TOKEN", "42")
	tg.apiBase = srv.URL
	if err := tg.Send(context.Background(), Alert{Level: AlertInfo, Title: "a.b", Message: "x-y"}); err != nil {
		t.Fatal(err)
	}
	if body["chat_id"] != "42" || !strings.Contains(body["text"], `a\.b`) || !strings.Contains(body["text"], `x\-y`) {
		t.Errorf("body = %v", body)
	}
}

func TestMulti_JoinsErrors(t *testing.T) {
	ok := &recorder{}
	bad := &recorder{err: errors.New("down")}
	err := Multi{ok, bad}.Send(context.Background(), Alert{Title: "x"})
	if err == nil || len(ok.all()) != 1 || len(bad.all()) != 1 {
		t.Errorf("err=%v ok=%d bad=%d", err, len(ok.all()), len(bad.all()))
	}
}

func TestHealthAlerter_Cooldown(t *testing.T) {
	rec := &recorder{}
	h := NewHealthAlerter(rec, time.Minute, quiet())
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return clock }

	h.Notify("live", false)
	h.Notify("live", false) // suppressed
	h.Notify("live", true)
	clock = clock.Add(2 * time.Minute)
	h.Notify("live", false)
	h.Wait()

	alerts := rec.all()
	if len(alerts) != 3 {
		t.Fatalf("got %d alerts, want 3", len(alerts))
	}
	var warn, info int
	for _, a := range alerts {
		switch a.Level {
		case AlertWarning:
			warn++
		case AlertInfo:
			info++
		}
	}
	if warn != 2 || info != 1 {
		t.Errorf("warn=%d info=%d", warn, info)
	}
}

func TestLogNotifier(t *testing.T) {
	if err := NewLogNotifier(quiet()).Send(context.Background(), Alert{Level: AlertCritical, Title: "x"}); err != nil {
		t.Fatal(err)
	}
}
