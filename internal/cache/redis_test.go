package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisWithClient(client, "test:", nil), mr
}

func TestRedis_SetGetExpire(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedis(t)

	r.Set(ctx, StockInfoKey("aapl"), []byte(`{"price":1}`), time.Second)
	if !mr.Exists("test:stock_info:AAPL") {
		t.Fatal("key not written under prefix")
	}
	if v, ok := r.Get(ctx, StockInfoKey("AAPL")); !ok || string(v) != `{"price":1}` {
		t.Fatalf("get = %q, %v", v, ok)
	}

	mr.FastForward(2 * time.Second)
	if _, ok := r.Get(ctx, StockInfoKey("AAPL")); ok {
		t.Fatal("expected absent after ttl")
	}

	st := r.Stats(ctx)
	if st.Hits != 1 || st.Misses != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestRedis_ClearOnlyOwnPrefix(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedis(t)

	mr.Set("other:key", "keep")
	r.Set(ctx, "a", []byte("1"), time.Minute)
	r.Set(ctx, "b", []byte("2"), time.Minute)

	if st := r.Stats(ctx); st.Keys != 2 {
		t.Fatalf("keys = %d, want 2", st.Keys)
	}
	r.Clear(ctx)
	if st := r.Stats(ctx); st.Keys != 0 {
		t.Errorf("keys after clear = %d", st.Keys)
	}
	if !mr.Exists("other:key") {
		t.Error("clear removed a foreign key")
	}
}

func TestRedis_DownReadsAsMiss(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedis(t)
	r.Set(ctx, "k", []byte("v"), time.Minute)
	mr.Close()

	for i := 0; i < 6; i++ {
		if _, ok := r.Get(ctx, "k"); ok {
			t.Fatal("expected miss with server down")
		}
	}
	if r.Breaker().State() != BreakerOpen {
		t.Errorf("breaker = %v, want open", r.Breaker().State())
	}
	// writes are dropped, not panicking or blocking
	r.Set(ctx, "k", []byte("v"), time.Minute)
}
