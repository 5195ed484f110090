package domain

import (
	"fmt"
	"sort"
	"strings"
)

// AllMarkets is the location-table sentinel for "fulfills every market".
const AllMarkets = "*"

// MarketAvailability is one entry of the per-market availability map.
// A nil Available means the flag was not set, which counts as available.
type MarketAvailability struct {
	Available *bool `json:"available,omitempty" firestore:"available"`
}

// MarketEligibility is the normalized market data of a product or variant: a set of
// eligible market codes plus per-market override flags. The zero value has no data
// and is eligible nowhere.
type MarketEligibility struct {
	codes     map[string]struct{}
	overrides map[string]bool
}

// NewMarketEligibility builds the normalized form from either stored shape
// (a list of codes, a code -> {available} map, or both).
func NewMarketEligibility(markets []string, marketsObject map[string]MarketAvailability) MarketEligibility {
	var m MarketEligibility
	for _, code := range markets {
		code = NormalizeMarketCode(code)
		if code == "" {
			continue
		}
		if m.codes == nil {
			m.codes = make(map[string]struct{})
		}
		m.codes[code] = struct{}{}
	}
	for code, entry := range marketsObject {
		code = NormalizeMarketCode(code)
		if code == "" {
			continue
		}
		if m.overrides == nil {
			m.overrides = make(map[string]bool)
		}
		m.overrides[code] = entry.Available == nil || *entry.Available
	}
	return m
}

// HasData reports whether any market information was present.
func (m MarketEligibility) HasData() bool {
	return len(m.codes) > 0 || len(m.overrides) > 0
}

// Allows reports whether the market is eligible. Missing data never allows.
func (m MarketEligibility) Allows(market string) bool {
	market = NormalizeMarketCode(market)
	if market == "" {
		return false
	}
	if available, ok := m.overrides[market]; ok {
		return available
	}
	_, ok := m.codes[market]
	return ok
}

// Codes returns the eligible market codes, sorted.
func (m MarketEligibility) Codes() []string {
	out := make([]string, 0, len(m.codes)+len(m.overrides))
	seen := make(map[string]bool)
	for code := range m.codes {
		if m.Allows(code) {
			out = append(out, code)
			seen[code] = true
		}
	}
	for code, available := range m.overrides {
		if available && !seen[code] {
			out = append(out, code)
		}
	}
	sort.Strings(out)
	return out
}

// NormalizeMarketCode upper-cases and trims a market code.
func NormalizeMarketCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// MarketTable is the immutable market reference data keyed by code.
type MarketTable map[string]Market

// Lookup returns the market for a code.
func (t MarketTable) Lookup(code string) (Market, bool) {
	m, ok := t[NormalizeMarketCode(code)]
	return m, ok
}

// LocationEligibility is one row of the Location-Market Eligibility Table.
// Lower Priority is preferred.
type LocationEligibility struct {
	Location
	Markets  []string
	Priority int
}

// ServesMarket reports whether the location can fulfill the market.
func (l LocationEligibility) ServesMarket(market string) bool {
	market = NormalizeMarketCode(market)
	for _, m := range l.Markets {
		if m == AllMarkets || m == market {
			return true
		}
	}
	return false
}

// LocationTable is the static location -> markets mapping. It is read-only after
// construction and safe for concurrent use.
type LocationTable struct {
	entries []LocationEligibility
	byID    map[string]LocationEligibility
}

// NewLocationTable validates the rows: location ids are unique and priorities
// form a total order within every market.
func NewLocationTable(entries []LocationEligibility) (*LocationTable, error) {
	t := &LocationTable{byID: make(map[string]LocationEligibility, len(entries))}
	for _, e := range entries {
		if strings.TrimSpace(e.ID) == "" {
			return nil, fmt.Errorf("location with empty id")
		}
		if _, dup := t.byID[e.ID]; dup {
			return nil, fmt.Errorf("duplicate location %s", e.ID)
		}
		markets := make([]string, 0, len(e.Markets))
		for _, m := range e.Markets {
			if m = NormalizeMarketCode(m); m != "" {
				markets = append(markets, m)
			}
		}
		e.Markets = markets
		t.byID[e.ID] = e
		t.entries = append(t.entries, e)
	}
	sort.SliceStable(t.entries, func(i, j int) bool {
		if t.entries[i].Priority != t.entries[j].Priority {
			return t.entries[i].Priority < t.entries[j].Priority
		}
		return t.entries[i].ID < t.entries[j].ID
	})

	// Within a market no two serving locations may share a rank. Wildcard rows
	// serve every market, so they are checked against each other and against
	// every explicit market.
	ranks := make(map[string]map[int]string)
	claim := func(market string, e LocationEligibility) error {
		if ranks[market] == nil {
			ranks[market] = make(map[int]string)
		}
		if other, ok := ranks[market][e.Priority]; ok {
			return fmt.Errorf("locations %s and %s share priority %d for market %s", other, e.ID, e.Priority, market)
		}
		ranks[market][e.Priority] = e.ID
		return nil
	}
	for _, e := range t.entries {
		for _, m := range e.Markets {
			if err := claim(m, e); err != nil {
				return nil, err
			}
		}
	}
	for _, e := range t.entries {
		if !e.ServesMarket(AllMarkets) {
			continue
		}
		for market := range ranks {
			if market == AllMarkets {
				continue
			}
			if other, ok := ranks[market][e.Priority]; ok && other != e.ID {
				return nil, fmt.Errorf("locations %s and %s share priority %d for market %s", other, e.ID, e.Priority, market)
			}
		}
	}
	return t, nil
}

// LocationsFor returns the locations serving market (exact or wildcard), best first.
func (t *LocationTable) LocationsFor(market string) []LocationEligibility {
	if t == nil {
		return nil
	}
	var out []LocationEligibility
	for _, e := range t.entries {
		if e.ServesMarket(market) {
			out = append(out, e)
		}
	}
	return out
}

// Get returns the row for a location id.
func (t *LocationTable) Get(locationID string) (LocationEligibility, bool) {
	if t == nil {
		return LocationEligibility{}, false
	}
	e, ok := t.byID[locationID]
	return e, ok
}

// Len returns the number of locations in the table.
func (t *LocationTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}
