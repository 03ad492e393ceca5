// Package markethours answers whether the US equity market (NYSE/Nasdaq
// regular session) is open at a given instant.
package markethours

import (
	"fmt"
	"time"
	_ "time/tzdata" // America/New_York without a system zoneinfo
)

// Eastern is US Eastern time, DST aware.
var Eastern = mustLoad("America/New_York")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("markethours: load %s: %v", name, err))
	}
	return loc
}

// Regular session in Eastern time.
const (
	OpenHour    = 9
	OpenMinute  = 30
	CloseHour   = 16
	CloseMinute = 0
)

// Session states, matching model.MarketOpen / model.MarketClosed.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// IsMarketOpen returns true if t falls within the regular session
// (9:30 AM – 4:00 PM ET, Mon–Fri, excluding exchange holidays).
func IsMarketOpen(t time.Time) bool {
	et := t.In(Eastern)
	if !IsTradingDay(et) {
		return false
	}
	hm := et.Hour()*60 + et.Minute()
	return hm >= OpenHour*60+OpenMinute && hm < CloseHour*60+CloseMinute
}

// Status returns StatusOpen or StatusClosed.
func Status(t time.Time) string {
	if IsMarketOpen(t) {
		return StatusOpen
	}
	return StatusClosed
}

// IsTradingDay returns true if t is a weekday and not a holiday in Eastern time.
func IsTradingDay(t time.Time) bool {
	et := t.In(Eastern)
	wd := et.Weekday()
	return wd != time.Saturday && wd != time.Sunday && !IsHoliday(et)
}

// NextOpen returns the next session open at or after t.
func NextOpen(t time.Time) time.Time {
	et := t.In(Eastern)
	open := time.Date(et.Year(), et.Month(), et.Day(), OpenHour, OpenMinute, 0, 0, Eastern)
	if et.Before(open) && IsTradingDay(et) {
		return open
	}
	d := et
	for i := 0; i < 10; i++ {
		d = d.AddDate(0, 0, 1)
		if IsTradingDay(d) {
			return time.Date(d.Year(), d.Month(), d.Day(), OpenHour, OpenMinute, 0, 0, Eastern)
		}
	}
	return open.AddDate(0, 0, 1)
}

// TodayClose returns 4:00 PM ET on t's Eastern calendar day.
func TodayClose(t time.Time) time.Time {
	et := t.In(Eastern)
	return time.Date(et.Year(), et.Month(), et.Day(), CloseHour, CloseMinute, 0, 0, Eastern)
}

// LastSessionDate returns the Eastern calendar date of the most recent
// trading day that has started, as midnight UTC.
func LastSessionDate(t time.Time) time.Time {
	et := t.In(Eastern)
	d := et
	if !IsTradingDay(d) || et.Hour()*60+et.Minute() < OpenHour*60+OpenMinute {
		for i := 0; i < 10; i++ {
			d = d.AddDate(0, 0, -1)
			if IsTradingDay(d) {
				break
			}
		}
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

// StatusString returns a human-readable market status.
func StatusString(t time.Time) string {
	if IsMarketOpen(t) {
		return fmt.Sprintf("Market Open, closes in %s", fmtDur(TodayClose(t).Sub(t)))
	}
	next := NextOpen(t)
	et := next.In(Eastern)
	return fmt.Sprintf("Market Closed, opens %s %s ET (%s)",
		et.Weekday().String()[:3], et.Format("15:04"), fmtDur(next.Sub(t)))
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
