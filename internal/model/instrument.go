package model

import "strings"

// Instrument is a configured symbol with a display name, e.g. an index
// tracked for the market overview or a sector proxy ETF.
type Instrument struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange,omitempty"`
}

// Key returns the normalized symbol.
func (i Instrument) Key() string {
	return strings.ToUpper(strings.TrimSpace(i.Symbol))
}

// ParseInstruments reads "SYM:Name,SYM2:Name 2". A missing name defaults to
// the symbol; empty items are ignored.
func ParseInstruments(s string) []Instrument {
	var out []Instrument
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		sym, name, _ := strings.Cut(item, ":")
		sym = strings.TrimSpace(sym)
		name = strings.TrimSpace(name)
		if sym == "" {
			continue
		}
		if name == "" {
			name = sym
		}
		out = append(out, Instrument{Symbol: sym, Name: name})
	}
	return out
}

// Symbols returns the symbols of list in order.
func Symbols(list []Instrument) []string {
	out := make([]string, len(list))
	for i, in := range list {
		out[i] = in.Symbol
	}
	return out
}
