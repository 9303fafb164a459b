package arb

import (
	"sort"

	"triflow/models"
)

// Market indexes a symbol universe by spelling and by quote currency.
type Market struct {
	bySpelling   map[string]models.Symbol
	basesByQuote map[string][]string
}

// NewMarket indexes symbols. Later duplicates of a spelling are ignored.
func NewMarket(symbols []models.Symbol) *Market {
	m := &Market{
		bySpelling:   make(map[string]models.Symbol, len(symbols)),
		basesByQuote: make(map[string][]string),
	}
	for _, s := range symbols {
		key := s.Key()
		if _, ok := m.bySpelling[key]; ok {
			continue
		}
		m.bySpelling[key] = s
		m.basesByQuote[s.Quote] = append(m.basesByQuote[s.Quote], s.Base)
	}
	for _, bases := range m.basesByQuote {
		sort.Strings(bases)
	}
	return m
}

// Lookup finds the symbol spelled base/quote.
func (m *Market) Lookup(base, quote string) (models.Symbol, bool) {
	s, ok := m.bySpelling[models.PairKey(base, quote)]
	return s, ok
}

// Has reports whether base/quote is listed.
func (m *Market) Has(base, quote string) bool {
	_, ok := m.bySpelling[models.PairKey(base, quote)]
	return ok
}

func (m *Market) Len() int {
	return len(m.bySpelling)
}

// ResolveLeg picks the symbol that converts from into to. to/from is traded
// FORWARD and from/to INVERSE; when both are listed, preferred decides.
func (m *Market) ResolveLeg(from, to string, preferred models.LegDirection) (models.Leg, bool) {
	forward, hasForward := m.Lookup(to, from)
	inverse, hasInverse := m.Lookup(from, to)
	switch {
	case hasForward && (preferred == models.Forward || !hasInverse):
		return models.Leg{Symbol: forward, From: from, To: to, Direction: models.Forward}, true
	case hasInverse:
		return models.Leg{Symbol: inverse, From: from, To: to, Direction: models.Inverse}, true
	}
	return models.Leg{}, false
}

// Enumerate derives every cycle base->mid1->mid2->base where mid1/base and
// mid2/mid1 are listed and mid2 trades against base in either spelling.
// Each distinct (base, mid1, mid2) appears once, in anchor order.
func Enumerate(m *Market, anchors []string) []models.Triangle {
	seen := make(map[[3]string]struct{})
	var out []models.Triangle
	for _, base := range anchors {
		for _, mid1 := range m.basesByQuote[base] {
			if mid1 == base {
				continue
			}
			for _, mid2 := range m.basesByQuote[mid1] {
				if mid2 == base || mid2 == mid1 {
					continue
				}
				if !m.Has(mid2, base) && !m.Has(base, mid2) {
					continue
				}
				key := [3]string{base, mid1, mid2}
				if _, dup := seen[key]; dup {
					continue
				}
				tri, ok := m.triangle(base, mid1, mid2)
				if !ok {
					continue
				}
				seen[key] = struct{}{}
				out = append(out, tri)
			}
		}
	}
	return out
}

// triangle resolves the three legs. Every leg prefers the spelling whose base
// is the non-anchor currency: mid1/base, mid2/mid1, then mid2/base.
func (m *Market) triangle(base, mid1, mid2 string) (models.Triangle, bool) {
	tri := models.Triangle{Base: base, Mid1: mid1, Mid2: mid2}
	hops := [3]struct {
		from, to  string
		preferred models.LegDirection
	}{
		{base, mid1, models.Forward},
		{mid1, mid2, models.Forward},
		{mid2, base, models.Inverse},
	}
	for i, hop := range hops {
		leg, ok := m.ResolveLeg(hop.from, hop.to, hop.preferred)
		if !ok {
			return models.Triangle{}, false
		}
		tri.Legs[i] = leg
	}
	return tri, true
}
