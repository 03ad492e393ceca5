package parser

import (
	"sort"
	"time"

	"marketdata-hub/internal/model"
)

// Periods lists the period tokens understood by SliceForPeriod, shortest first.
var Periods = []string{"1d", "1w", "1m", "3m", "6m", "1y", "2y", "5y", "ytd", "max"}

// ValidPeriod reports whether token is a known period.
func ValidPeriod(token string) bool {
	for _, p := range Periods {
		if p == token {
			return true
		}
	}
	return false
}

// Cutoff returns the first date included by token relative to now. ok is false
// for "max" and for unknown tokens, which both mean "no lower bound".
func Cutoff(token string, now time.Time) (time.Time, bool) {
	today := dateOnly(now.UTC())
	switch token {
	case "1d":
		return today.AddDate(0, 0, -1), true
	case "1w":
		return today.AddDate(0, 0, -7), true
	case "1m":
		return today.AddDate(0, -1, 0), true
	case "3m":
		return today.AddDate(0, -3, 0), true
	case "6m":
		return today.AddDate(0, -6, 0), true
	case "1y":
		return today.AddDate(-1, 0, 0), true
	case "2y":
		return today.AddDate(-2, 0, 0), true
	case "5y":
		return today.AddDate(-5, 0, 0), true
	case "ytd":
		return time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

// SliceForPeriod returns the points of s dated on or after the cutoff for token.
// Unknown tokens return s unchanged.
func SliceForPeriod(s *model.Series, token string, now time.Time) *model.Series {
	cutoff, ok := Cutoff(token, now)
	if !ok {
		return s
	}
	i := sort.Search(len(s.Points), func(i int) bool {
		return !s.Points[i].Date.Before(cutoff)
	})
	return s.WithPoints(s.Points[i:])
}

// SliceRange returns the points within [from, to]. A zero bound is open.
func SliceRange(s *model.Series, from, to time.Time) *model.Series {
	lo := 0
	if !from.IsZero() {
		from = dateOnly(from.UTC())
		lo = sort.Search(len(s.Points), func(i int) bool {
			return !s.Points[i].Date.Before(from)
		})
	}
	hi := len(s.Points)
	if !to.IsZero() {
		to = dateOnly(to.UTC())
		hi = sort.Search(len(s.Points), func(i int) bool {
			return s.Points[i].Date.After(to)
		})
	}
	if lo > hi {
		lo = hi
	}
	return s.WithPoints(s.Points[lo:hi])
}
