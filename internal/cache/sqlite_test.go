package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"galileo/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return s
}

func testKey(symbol string) Key {
	return Key{
		Symbol:      symbol,
		Start:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:         time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
		Granularity: domain.GranularityDaily,
	}
}

func testSeries(symbol string, n int) *domain.Series {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, n)
	for i := range bars {
		price := 100.0 + float64(i)
		bars[i] = domain.Bar{
			Symbol:    symbol,
			Timestamp: base.AddDate(0, 0, i),
			Open:      price, High: price + 1, Low: price - 1, Close: price,
			Volume: 1000,
		}
	}
	return &domain.Series{Symbol: symbol, Bars: bars}
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := testKey("AAPL")

	want := testSeries("AAPL", 5)
	if err := s.Put(ctx, key, want, time.Hour); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, hit, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !hit {
		t.Fatal("Get reported miss for stored entry")
	}
	if got.Symbol != "AAPL" || len(got.Bars) != 5 {
		t.Fatalf("Get returned %d bars for %q, want 5 for AAPL", len(got.Bars), got.Symbol)
	}
	if !got.Bars[2].Timestamp.Equal(want.Bars[2].Timestamp) || got.Bars[2].Close != want.Bars[2].Close {
		t.Errorf("bar 2 mismatch: got %+v, want %+v", got.Bars[2], want.Bars[2])
	}
}

func TestGetMissForUnknownKey(t *testing.T) {
	s := openTestStore(t)

	_, hit, err := s.Get(context.Background(), testKey("MSFT"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if hit {
		t.Error("Get reported hit for unknown key")
	}
}

func TestSubRangeIsMiss(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, testKey("AAPL"), testSeries("AAPL", 5), time.Hour); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// Same symbol, narrower range: the tuple differs, so this is a miss.
	sub := testKey("AAPL")
	sub.End = sub.End.AddDate(0, -1, 0)
	_, hit, err := s.Get(ctx, sub)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if hit {
		t.Error("sub-range query served from a wider cached range")
	}
}

func TestExpiredEntryIsMiss(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := testKey("AAPL")

	if err := s.Put(ctx, key, testSeries("AAPL", 3), time.Hour); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// Advance the clock past the TTL.
	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, hit, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if hit {
		t.Error("expired entry served as a hit")
	}
}

func TestCorruptEntryIsIsolatedMiss(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	good := testKey("AAPL")
	bad := testKey("MSFT")
	if err := s.Put(ctx, good, testSeries("AAPL", 3), time.Hour); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, bad, testSeries("MSFT", 3), time.Hour); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// Corrupt one entry directly.
	if _, err := s.db.Exec(`UPDATE bar_cache SET bars = ? WHERE cache_key = ?`,
		[]byte("{not json"), bad.String()); err != nil {
		t.Fatalf("corrupting entry: %v", err)
	}

	_, hit, err := s.Get(ctx, bad)
	if err != nil {
		t.Fatalf("Get of corrupt entry returned error: %v", err)
	}
	if hit {
		t.Error("corrupt entry served as a hit")
	}

	// The other key is unaffected.
	_, hit, err = s.Get(ctx, good)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !hit {
		t.Error("healthy entry missed after corruption of a different key")
	}
}

func TestPutReplacesExisting(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := testKey("AAPL")

	if err := s.Put(ctx, key, testSeries("AAPL", 3), time.Hour); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, key, testSeries("AAPL", 7), time.Hour); err != nil {
		t.Fatalf("Put (replace): %v", err)
	}

	got, hit, err := s.Get(ctx, key)
	if err != nil || !hit {
		t.Fatalf("Get: hit=%v err=%v", hit, err)
	}
	if len(got.Bars) != 7 {
		t.Errorf("replaced entry has %d bars, want 7", len(got.Bars))
	}

	n, err := s.Len(ctx)
	if err != nil {
		t.Fatalf("Len: %v", err)
	}
	if n != 1 {
		t.Errorf("Len = %d after replace, want 1", n)
	}
}

func TestInvalidate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, testKey("AAPL"), testSeries("AAPL", 3), time.Hour); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, testKey("MSFT"), testSeries("MSFT", 3), time.Hour); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if err := s.Invalidate(ctx, "AAPL"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, hit, _ := s.Get(ctx, testKey("AAPL")); hit {
		t.Error("invalidated symbol still served")
	}
	if _, hit, _ := s.Get(ctx, testKey("MSFT")); !hit {
		t.Error("unrelated symbol was invalidated")
	}

	if err := s.InvalidateAll(ctx); err != nil {
		t.Fatalf("InvalidateAll: %v", err)
	}
	n, err := s.Len(ctx)
	if err != nil {
		t.Fatalf("Len: %v", err)
	}
	if n != 0 {
		t.Errorf("Len = %d after InvalidateAll, want 0", n)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.db")
	ctx := context.Background()
	key := testKey("AAPL")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s1.Put(ctx, key, testSeries("AAPL", 4), time.Hour); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	got, hit, err := s2.Get(ctx, key)
	if err != nil || !hit {
		t.Fatalf("Get after reopen: hit=%v err=%v", hit, err)
	}
	if len(got.Bars) != 4 {
		t.Errorf("entry has %d bars after reopen, want 4", len(got.Bars))
	}
}
