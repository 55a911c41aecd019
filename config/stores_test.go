package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saptarshihalder/Dzukou-Pricing-2.0/models"
)

func TestLoadStoresDefault(t *testing.T) {
	stores, err := LoadStores("")
	require.NoError(t, err)
	assert.Len(t, stores, 14)

	stores[0].Name = "changed"
	assert.Equal(t, "Made Trade", DefaultStores[0].Name)
}

func TestLoadStoresFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stores.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
stores:
  - name: EarthHero
    base_url: https://earthhero.com/
    platform: shopify
    rps: 1.5
  - name: " NOVICA "
    base_url: https://www.novica.com
    platform: browser
`), 0o644))

	stores, err := LoadStores(path)
	require.NoError(t, err)
	require.Len(t, stores, 2)
	assert.Equal(t, models.StoreConfig{Name: "EarthHero", BaseURL: "https://earthhero.com", Platform: models.PlatformShopify, RPS: 1.5}, stores[0])
	assert.Equal(t, "NOVICA", stores[1].Name)
	assert.Equal(t, models.PlatformBrowser, stores[1].Platform)
}

func TestParseStoresRejectsBadEntries(t *testing.T) {
	tests := map[string]string{
		"missing url":  "stores:\n  - name: A\n",
		"duplicate":    "stores:\n  - {name: A, base_url: https://a}\n  - {name: A, base_url: https://b}\n",
		"bad platform": "stores:\n  - {name: A, base_url: https://a, platform: ftp}\n",
		"bad yaml":     "stores: [",
	}
	for name, data := range tests {
		_, err := ParseStores([]byte(data))
		assert.Error(t, err, name)
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b c"}, SplitList(" a ,, b c ,"))
	assert.Nil(t, SplitList(""))
}
