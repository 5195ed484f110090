// Package refdata loads the static market and location reference tables.
package refdata

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/domain"
)

type file struct {
	Markets   []marketRow   `yaml:"markets"`
	Locations []locationRow `yaml:"locations"`
}

type marketRow struct {
	Code             string  `yaml:"code"`
	Supported        *bool   `yaml:"supported"`
	Currency         string  `yaml:"currency"`
	ShippingEstimate float64 `yaml:"shippingEstimate"`
}

type locationRow struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Markets  []string `yaml:"markets"`
	Priority int      `yaml:"priority"`
}

// Tables is the loaded reference data. Both tables are read-only.
type Tables struct {
	Markets   domain.MarketTable
	Locations *domain.LocationTable
}

// LoadFile reads reference data from a YAML file.
func LoadFile(path string) (*Tables, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open reference data: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses reference data from YAML.
func Load(r io.Reader) (*Tables, error) {
	var raw file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse reference data: %w", err)
	}

	markets := make(domain.MarketTable, len(raw.Markets))
	for _, m := range raw.Markets {
		code := domain.NormalizeMarketCode(m.Code)
		if code == "" {
			return nil, fmt.Errorf("market with empty code")
		}
		if _, dup := markets[code]; dup {
			return nil, fmt.Errorf("duplicate market %s", code)
		}
		// markets listed without an explicit flag are supported
		supported := m.Supported == nil || *m.Supported
		markets[code] = domain.Market{
			Code:             code,
			Supported:        supported,
			Currency:         m.Currency,
			ShippingEstimate: m.ShippingEstimate,
		}
	}

	rows := make([]domain.LocationEligibility, 0, len(raw.Locations))
	for _, l := range raw.Locations {
		rows = append(rows, domain.LocationEligibility{
			Location: domain.Location{ID: l.ID, Name: l.Name},
			Markets:  l.Markets,
			Priority: l.Priority,
		})
	}
	locations, err := domain.NewLocationTable(rows)
	if err != nil {
		return nil, fmt.Errorf("location table: %w", err)
	}

	return &Tables{Markets: markets, Locations: locations}, nil
}
