// Package parser turns loosely structured delimited text into validated,
// date-ordered price series. Column roles are inferred from header names,
// malformed rows are dropped rather than failing the whole input.
package parser

import (
	"encoding/csv"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"marketdata-hub/internal/model"
)

// Report summarizes what happened to the data rows of one input.
type Report struct {
	Rows       int
	Accepted   int
	Skipped    int
	Duplicates int
}

// Parse reads raw delimited text for symbol into a Series.
func Parse(raw, symbol string) (*model.Series, error) {
	s, _, err := ParseWithReport(raw, symbol)
	return s, err
}

// ParseWithReport is Parse plus row accounting, used by callers that log
// data quality.
func ParseWithReport(raw, symbol string) (*model.Series, Report, error) {
	var rep Report

	lines := splitLines(raw)
	if len(lines) < 2 {
		return nil, rep, &ParseError{Symbol: symbol, Reason: "need a header and at least one data line"}
	}

	delim := detectDelimiter(lines[0])
	header, err := splitRecord(lines[0], delim)
	if err != nil {
		return nil, rep, &ParseError{Symbol: symbol, Reason: "unreadable header: " + err.Error()}
	}

	mapping := ResolveColumns(header)
	if mapping.Index(RoleDate) < 0 {
		return nil, rep, &ParseError{Symbol: symbol, Reason: "no date column in header " + strings.Join(header, ",")}
	}
	if mapping.Index(RoleClose) < 0 && mapping.Index(RoleAdjClose) >= 0 {
		mapping[RoleClose] = mapping[RoleAdjClose]
	}
	if mapping.Index(RoleClose) < 0 {
		return nil, rep, &ParseError{Symbol: symbol, Reason: "no close column in header " + strings.Join(header, ",")}
	}

	points := make([]model.Point, 0, len(lines)-1)
	for _, line := range lines[1:] {
		rep.Rows++
		fields, err := splitRecord(line, delim)
		if err != nil || len(fields) != len(header) {
			rep.Skipped++
			continue
		}
		p, ok := parseRow(fields, mapping)
		if !ok {
			rep.Skipped++
			continue
		}
		points = append(points, p)
	}

	points, rep.Duplicates = sortAndDedupe(points)
	rep.Accepted = len(points)
	if len(points) == 0 {
		return nil, rep, &DataError{Symbol: symbol, Rows: rep.Rows, Skipped: rep.Skipped}
	}

	return model.NewSeries(symbol, points, header), rep, nil
}

func splitLines(raw string) []string {
	raw = strings.TrimPrefix(raw, "\ufeff")
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")

	out := make([]string, 0, strings.Count(raw, "\n")+1)
	for _, l := range strings.Split(raw, "\n") {
		if strings.TrimSpace(l) == "" {
			continue
		}
		out = append(out, l)
	}
	return out
}

// detectDelimiter picks the most frequent candidate separator in the header.
func detectDelimiter(header string) rune {
	best, bestCount := ',', 0
	for _, d := range []rune{',', ';', '\t', '|'} {
		if n := strings.Count(header, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func splitRecord(line string, delim rune) ([]string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.Comma = delim
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1
	return r.Read()
}

func parseRow(fields []string, m Mapping) (model.Point, bool) {
	date, ok := ParseDate(fields[m[RoleDate]])
	if !ok {
		return model.Point{}, false
	}

	var ohlc [4]float64
	for i, role := range []Role{RoleOpen, RoleHigh, RoleLow, RoleClose} {
		idx := m.Index(role)
		if idx < 0 {
			return model.Point{}, false
		}
		v, ok := ParseNumber(fields[idx])
		if !ok || v <= 0 {
			return model.Point{}, false
		}
		ohlc[i] = v
	}

	p := model.Point{
		Date:  date,
		Open:  ohlc[0],
		High:  ohlc[1],
		Low:   ohlc[2],
		Close: ohlc[3],
	}
	if !p.Valid() {
		return model.Point{}, false
	}

	if idx := m.Index(RoleVolume); idx >= 0 {
		if v, ok := ParseNumber(fields[idx]); ok && v >= 0 {
			p.Volume = v
		}
	}
	if idx := m.Index(RoleAdjClose); idx >= 0 && idx != m[RoleClose] {
		if v, ok := ParseNumber(fields[idx]); ok && v > 0 {
			p.AdjClose = &v
		}
	}
	return p, true
}

// sortAndDedupe orders points by date; for repeated dates the row that came
// last in the input wins.
func sortAndDedupe(points []model.Point) ([]model.Point, int) {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})
	out := points[:0]
	dups := 0
	for _, p := range points {
		if n := len(out); n > 0 && out[n-1].Date.Equal(p.Date) {
			out[n-1] = p
			dups++
			continue
		}
		out = append(out, p)
	}
	return out, dups
}

// Date layouts tried in order. Day-first forms come before the US month-first
// fallback, so "03/04/2024" reads as 3 April.
var (
	primaryLayouts = []string{
		"2006-01-02",
		"02/01/2006",
		"02-01-2006",
		"2006/01/02",
	}
	fallbackLayouts = []string{
		time.RFC3339,
		"2006-01-02 15:04:05-07:00",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04",
		"2/1/2006",
		"01/02/2006",
		"1/2/2006",
		"Jan 2, 2006",
		"January 2, 2006",
		"2 Jan 2006",
		"02 Jan 2006",
		"02-Jan-2006",
		"20060102",
		"02.01.2006",
	}
)

// ParseDate reads a calendar date and returns it as midnight UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.Trim(strings.TrimSpace(s), `"'`)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range primaryLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return dateOnly(t), true
		}
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return dateOnly(t), true
		}
	}
	// unix seconds
	if len(s) >= 9 && len(s) <= 10 {
		if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
			return dateOnly(time.Unix(sec, 0).UTC()), true
		}
	}
	return time.Time{}, false
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseNumber reads a price or volume field. Quotes, currency signs and
// thousands separators are removed; both "1,234.5" and "1.234,5" are
// accepted, as are K/M/B suffixes.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	s = strings.NewReplacer("$", "", "€", "", "£", "", "¥", "", " ", "", " ", "", "_", "").Replace(s)
	if s == "" || s == "-" || strings.EqualFold(s, "null") || strings.EqualFold(s, "n/a") || strings.EqualFold(s, "nan") {
		return 0, false
	}

	mult := 1.0
	switch s[len(s)-1] {
	case 'K', 'k':
		mult, s = 1e3, s[:len(s)-1]
	case 'M', 'm':
		mult, s = 1e6, s[:len(s)-1]
	case 'B', 'b':
		mult, s = 1e9, s[:len(s)-1]
	}

	s = normalizeSeparators(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v * mult, true
}

func normalizeSeparators(s string) string {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			// 1.234,56
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 || len(s)-lastComma-1 == 3 {
			return strings.ReplaceAll(s, ",", "")
		}
		return strings.Replace(s, ",", ".", 1)
	case strings.Count(s, ".") > 1:
		return strings.ReplaceAll(s, ".", "")
	}
	return s
}
