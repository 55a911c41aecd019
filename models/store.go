package models

// Storefront fetch strategies.
const (
	PlatformShopify = "shopify"
	PlatformHTML    = "html"
	PlatformBrowser = "browser"
)

// StoreConfig describes one competitor storefront.
type StoreConfig struct {
	Name     string  `yaml:"name"`
	BaseURL  string  `yaml:"base_url"`
	Platform string  `yaml:"platform"`
	RPS      float64 `yaml:"rps"`
}
