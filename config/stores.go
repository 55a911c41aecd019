package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/saptarshihalder/Dzukou-Pricing-2.0/models"
)

// DefaultSearchTerms cover the main catalog categories.
var DefaultSearchTerms = []string{
	"sunglasses",
	"water bottle",
	"notebook",
	"coffee mug",
	"phone stand",
	"lunch box",
	"shawl",
	"cushion cover",
	"towel",
}

// DefaultStores is the built-in competitor list.
var DefaultStores = []models.StoreConfig{
	{Name: "Made Trade", BaseURL: "https://www.madetrade.com"},
	{Name: "EarthHero", BaseURL: "https://earthhero.com"},
	{Name: "GOODEE", BaseURL: "https://www.goodeeworld.com"},
	{Name: "Package Free Shop", BaseURL: "https://packagefreeshop.com"},
	{Name: "The Citizenry", BaseURL: "https://www.thecitizenry.com"},
	{Name: "Ten Thousand Villages", BaseURL: "https://www.tenthousandvillages.com"},
	{Name: "NOVICA", BaseURL: "https://www.novica.com", Platform: models.PlatformBrowser},
	{Name: "The Little Market", BaseURL: "https://thelittlemarket.com"},
	{Name: "DoneGood", BaseURL: "https://donegood.co"},
	{Name: "Folksy", BaseURL: "https://folksy.com", Platform: models.PlatformHTML},
	{Name: "IndieCart", BaseURL: "https://indiecart.com"},
	{Name: "Zero Waste Store", BaseURL: "https://zerowaste.store"},
	{Name: "EcoRoots", BaseURL: "https://ecoroots.us"},
	{Name: "Wild Minimalist", BaseURL: "https://wildminimalist.com"},
}

type storesFile struct {
	Stores []models.StoreConfig `yaml:"stores"`
}

// LoadStores returns the store list from the YAML file at path, or the
// built-in list when path is empty.
func LoadStores(path string) ([]models.StoreConfig, error) {
	if path == "" {
		return append([]models.StoreConfig(nil), DefaultStores...), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read stores file: %w", err)
	}
	return ParseStores(data)
}

// ParseStores decodes a YAML store list and validates every entry.
func ParseStores(data []byte) ([]models.StoreConfig, error) {
	var f storesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parse stores file: %w", err)
	}

	seen := make(map[string]struct{}, len(f.Stores))
	for i := range f.Stores {
		s := &f.Stores[i]
		s.Name = strings.TrimSpace(s.Name)
		s.BaseURL = strings.TrimRight(strings.TrimSpace(s.BaseURL), "/")
		if s.Name == "" || s.BaseURL == "" {
			return nil, fmt.Errorf("config: store #%d needs name and base_url", i+1)
		}
		if _, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("config: duplicate store %q", s.Name)
		}
		seen[s.Name] = struct{}{}

		switch s.Platform {
		case "", models.PlatformShopify, models.PlatformHTML, models.PlatformBrowser:
		default:
			return nil, fmt.Errorf("config: store %q has unknown platform %q", s.Name, s.Platform)
		}
	}
	return f.Stores, nil
}
