package markethours

import (
	"testing"
	"time"
)

func et(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, Eastern)
}

func TestIsMarketOpen(t *testing.T) {
	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"tuesday midday", et(2026, time.October, 20, 12, 0), true},
		{"before open", et(2026, time.October, 20, 9, 29), false},
		{"at open", et(2026, time.October, 20, 9, 30), true},
		{"at close", et(2026, time.October, 20, 16, 0), false},
		{"saturday", et(2026, time.October, 24, 12, 0), false},
		{"thanksgiving", et(2026, time.November, 26, 12, 0), false},
		{"july 3 observed", et(2026, time.July, 3, 12, 0), false},
	}
	for _, c := range cases {
		if got := IsMarketOpen(c.at); got != c.want {
			t.Errorf("%s: got %v, want %v", c.name, got, c.want)
		}
	}
	if Status(et(2026, time.October, 20, 12, 0)) != StatusOpen {
		t.Error("Status should be open")
	}
}

func TestIsMarketOpen_UTCInput(t *testing.T) {
	// 14:00 UTC on a summer weekday is 10:00 EDT
	if !IsMarketOpen(time.Date(2026, time.June, 16, 14, 0, 0, 0, time.UTC)) {
		t.Error("expected open at 14:00 UTC in June")
	}
	// 14:00 UTC in January is 09:00 EST
	if IsMarketOpen(time.Date(2026, time.January, 13, 14, 0, 0, 0, time.UTC)) {
		t.Error("expected closed at 14:00 UTC in January")
	}
}

func TestNextOpen(t *testing.T) {
	// Friday after close → Monday open
	got := NextOpen(et(2026, time.October, 23, 17, 0))
	if want := et(2026, time.October, 26, 9, 30); !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
	// Wednesday before Thanksgiving after close → Friday
	got = NextOpen(et(2026, time.November, 25, 18, 0))
	if want := et(2026, time.November, 27, 9, 30); !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestLastSessionDate(t *testing.T) {
	// Sunday → previous Friday
	got := LastSessionDate(et(2026, time.October, 25, 12, 0))
	if want := time.Date(2026, time.October, 23, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
