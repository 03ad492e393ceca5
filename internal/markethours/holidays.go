package markethours

import "time"

// NYSE full-day closures (observed dates).
var nyseHolidays = []struct {
	year  int
	month time.Month
	day   int
}{
	{2025, time.January, 1},
	{2025, time.January, 9}, // national day of mourning
	{2025, time.January, 20},
	{2025, time.February, 17},
	{2025, time.April, 18},
	{2025, time.May, 26},
	{2025, time.June, 19},
	{2025, time.July, 4},
	{2025, time.September, 1},
	{2025, time.November, 27},
	{2025, time.December, 25},

	{2026, time.January, 1},
	{2026, time.January, 19},
	{2026, time.February, 16},
	{2026, time.April, 3},
	{2026, time.May, 25},
	{2026, time.June, 19},
	{2026, time.July, 3},
	{2026, time.September, 7},
	{2026, time.November, 26},
	{2026, time.December, 25},

	{2027, time.January, 1},
	{2027, time.January, 18},
	{2027, time.February, 15},
	{2027, time.March, 26},
	{2027, time.May, 31},
	{2027, time.June, 18},
	{2027, time.July, 5},
	{2027, time.September, 6},
	{2027, time.November, 25},
	{2027, time.December, 24},
}

var holidaySet = func() map[string]bool {
	m := make(map[string]bool, len(nyseHolidays))
	for _, h := range nyseHolidays {
		m[time.Date(h.year, h.month, h.day, 0, 0, 0, 0, time.UTC).Format("2006-01-02")] = true
	}
	return m
}()

// IsHoliday reports whether t's Eastern calendar date is an exchange holiday.
func IsHoliday(t time.Time) bool {
	return holidaySet[t.In(Eastern).Format("2006-01-02")]
}
