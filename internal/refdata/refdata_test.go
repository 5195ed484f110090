package refdata

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_Bundled(t *testing.T) {
	tables, err := LoadFile("../../refdata.yaml")
	require.NoError(t, err)

	fi, ok := tables.Markets.Lookup("fi")
	require.True(t, ok)
	assert.True(t, fi.Supported)
	assert.Equal(t, "EUR", fi.Currency)

	gb, ok := tables.Markets.Lookup("GB")
	require.True(t, ok)
	assert.False(t, gb.Supported)

	us := tables.Locations.LocationsFor("US")
	require.Len(t, us, 2)
	assert.Equal(t, "gid://shopify/Location/70003", us[0].ID)
	assert.Equal(t, "gid://shopify/Location/70009", us[1].ID)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{name: "unknown field", yaml: "markets:\n  - code: FI\n    vat: 24\n", want: "parse reference data"},
		{name: "duplicate market", yaml: "markets:\n  - code: FI\n  - code: fi\n", want: "duplicate market FI"},
		{name: "empty code", yaml: "markets:\n  - currency: EUR\n", want: "empty code"},
		{
			name: "priority clash",
			yaml: "locations:\n  - id: a\n    markets: [FI]\n    priority: 1\n  - id: b\n    markets: [FI]\n    priority: 1\n",
			want: "location table",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile("does-not-exist.yaml")
	assert.Error(t, err)
}
