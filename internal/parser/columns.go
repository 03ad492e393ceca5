package parser

import (
	"strings"
	"unicode"
)

// Role is the meaning assigned to a CSV column.
type Role string

const (
	RoleDate     Role = "date"
	RoleOpen     Role = "open"
	RoleHigh     Role = "high"
	RoleLow      Role = "low"
	RoleClose    Role = "close"
	RoleVolume   Role = "volume"
	RoleAdjClose Role = "adj_close"
)

// resolveOrder matters: adjusted close is claimed before close so that an
// "Adj Close" column can never be taken as the plain close by substring match.
var resolveOrder = []Role{RoleDate, RoleAdjClose, RoleOpen, RoleHigh, RoleLow, RoleClose, RoleVolume}

// synonyms are stored normalized (see normalizeHeader).
var synonyms = map[Role][]string{
	RoleDate: {
		"date", "datetime", "timestamp", "time", "day", "tradedate", "tradingdate",
		"fecha", "data", "datum", "jour", "dia",
	},
	RoleOpen: {
		"open", "opening", "openprice", "opening price",
		"apertura", "abertura", "eröffnung", "eroffnung", "ouverture", "offnung",
	},
	RoleHigh: {
		"high", "highprice", "max", "maximum", "dayhigh",
		"alto", "maximo", "máximo", "hoch", "haut", "plushaut",
	},
	RoleLow: {
		"low", "lowprice", "min", "minimum", "daylow",
		"bajo", "minimo", "mínimo", "tief", "bas", "plusbas",
	},
	RoleClose: {
		"close", "closeprice", "closing", "closingprice", "last", "lastprice", "price",
		"cierre", "fechamento", "schluss", "schlusskurs", "cloture", "clôture", "ultimo", "último",
	},
	RoleVolume: {
		"volume", "vol", "volumen", "qty", "quantity", "sharesvolume",
		"umsatz", "volumenegociado", "volumentransado",
	},
	RoleAdjClose: {
		"adjclose", "adjustedclose", "adjclosing", "adjustedclosingprice", "adjcloseprice",
		"cierreajustado", "fechamentoajustado", "schlusskursbereinigt", "clotureajustee",
	},
}

// normalizeHeader lowercases a header and drops everything that is not a
// letter or digit, so "Adj. Close" and "adj_close" compare equal.
func normalizeHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(h)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Mapping assigns column indexes to roles. Unresolved roles are absent.
type Mapping map[Role]int

// Index returns the column for role, or -1.
func (m Mapping) Index(r Role) int {
	if i, ok := m[r]; ok {
		return i
	}
	return -1
}

// ResolveColumns infers column roles from header names in two passes.
// Pass 1 only accepts exact synonym matches, preferring the earliest synonym;
// pass 2 runs substring matching for roles that are still unresolved, over
// columns not already claimed.
// A column such as "delisting_date" therefore never shadows a real "date".
func ResolveColumns(headers []string) Mapping {
	norm := make([]string, len(headers))
	for i, h := range headers {
		norm[i] = normalizeHeader(h)
	}

	m := make(Mapping, len(resolveOrder))
	claimed := make(map[int]bool, len(headers))

	for _, role := range resolveOrder {
		best, bestRank := -1, len(synonyms[role])
		for i, n := range norm {
			if claimed[i] || n == "" {
				continue
			}
			if r := exactRank(n, synonyms[role]); r >= 0 && r < bestRank {
				best, bestRank = i, r
			}
		}
		if best >= 0 {
			m[role] = best
			claimed[best] = true
		}
	}

	for _, role := range resolveOrder {
		if _, ok := m[role]; ok {
			continue
		}
		for i, n := range norm {
			if claimed[i] || n == "" {
				continue
			}
			if matchesSubstring(n, synonyms[role]) {
				m[role] = i
				claimed[i] = true
				break
			}
		}
	}
	return m
}

// exactRank is the position of name in table, or -1. Earlier synonyms win
// when several columns match the same role.
func exactRank(name string, table []string) int {
	for i, s := range table {
		if name == normalizeHeader(s) {
			return i
		}
	}
	return -1
}

// Tokens shorter than minSubstringLen only ever match exactly.
const minSubstringLen = 3

func matchesSubstring(name string, table []string) bool {
	for _, s := range table {
		token := normalizeHeader(s)
		if len([]rune(token)) < minSubstringLen {
			continue
		}
		if strings.Contains(name, token) {
			return true
		}
	}
	return false
}
