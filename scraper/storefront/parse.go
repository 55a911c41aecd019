package storefront

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// item is a listing candidate extracted from a store response.
type item struct {
	Title    string
	Price    string
	Currency string
	URL      string
	Brand    string
}

const maxCards = 20

var (
	cardSelector  = ".product-card, .product-item, .grid-product, .product-grid-item, .card-wrapper, [data-product]"
	titleSelector = "h2, h3, .product-title, .product-name, .card__heading, [itemprop=\"name\"]"
	priceSelector = "[itemprop=\"price\"], .price-item--sale, .price-item, .price, .money"

	cardPriceRe = regexp.MustCompile(`(?i)(€|£|\$|₹|USD|EUR|GBP|INR|Rs\.?)\s*([\d][\d.,]*)`)
)

// parseSearchHTML extracts products from a search results page. JSON-LD
// data is preferred; product cards fill in when it yields fewer than three.
func parseSearchHTML(r io.Reader, baseURL string) ([]item, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var items []item
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var data any
		if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &data); err != nil {
			return
		}
		items = append(items, ldItems(data, baseURL)...)
	})

	if len(items) < 3 {
		items = append(items, cardItems(doc, baseURL)...)
	}
	return items, nil
}

func ldItems(v any, baseURL string) []item {
	switch t := v.(type) {
	case []any:
		var out []item
		for _, e := range t {
			out = append(out, ldItems(e, baseURL)...)
		}
		return out
	case map[string]any:
		if graph, ok := t["@graph"]; ok {
			return ldItems(graph, baseURL)
		}
		switch {
		case hasType(t, "Product"):
			if it, ok := ldProduct(t, baseURL); ok {
				return []item{it}
			}
		case hasType(t, "ItemList"):
			var out []item
			elems, _ := t["itemListElement"].([]any)
			for _, e := range elems {
				el, ok := e.(map[string]any)
				if !ok {
					continue
				}
				if inner, ok := el["item"].(map[string]any); ok {
					el = inner
				}
				if it, ok := ldProduct(el, baseURL); ok {
					out = append(out, it)
				}
			}
			return out
		}
	}
	return nil
}

func hasType(m map[string]any, want string) bool {
	switch t := m["@type"].(type) {
	case string:
		return t == want
	case []any:
		for _, e := range t {
			if s, _ := e.(string); s == want {
				return true
			}
		}
	}
	return false
}

func ldProduct(m map[string]any, baseURL string) (item, bool) {
	offer, _ := m["offers"].(map[string]any)
	if list, ok := m["offers"].([]any); ok && len(list) > 0 {
		offer, _ = list[0].(map[string]any)
	}

	it := item{
		Title: strings.TrimSpace(scalar(m["name"])),
		URL:   scalar(m["url"]),
	}
	if offer != nil {
		it.Price = scalar(offer["price"])
		if it.Price == "" {
			it.Price = scalar(offer["lowPrice"])
		}
		it.Currency = scalar(offer["priceCurrency"])
		if it.URL == "" {
			it.URL = scalar(offer["url"])
		}
	}
	switch b := m["brand"].(type) {
	case string:
		it.Brand = b
	case map[string]any:
		it.Brand = scalar(b["name"])
	}

	it.URL = resolveURL(baseURL, it.URL)
	if it.Title == "" || it.Price == "" || it.URL == "" {
		return item{}, false
	}
	return it, true
}

func cardItems(doc *goquery.Document, baseURL string) []item {
	var out []item
	doc.Find(cardSelector).EachWithBreak(func(_ int, card *goquery.Selection) bool {
		title := strings.TrimSpace(card.Find(titleSelector).First().Text())
		if title == "" {
			return true
		}

		priceText := strings.TrimSpace(card.Find(priceSelector).First().Text())
		m := cardPriceRe.FindStringSubmatch(priceText)
		if m == nil {
			m = cardPriceRe.FindStringSubmatch(card.Text())
		}
		if m == nil {
			return true
		}

		href, _ := card.Find("a[href]").First().Attr("href")
		if href == "" {
			return true
		}
		out = append(out, item{
			Title:    strings.Join(strings.Fields(title), " "),
			Price:    m[0],
			Currency: currencyFor(m[1]),
			URL:      resolveURL(baseURL, href),
		})
		return len(out) < maxCards
	})
	return out
}

func currencyFor(symbol string) string {
	switch strings.ToUpper(strings.TrimSuffix(symbol, ".")) {
	case "€", "EUR":
		return "EUR"
	case "£", "GBP":
		return "GBP"
	case "₹", "INR", "RS":
		return "INR"
	default:
		return "USD"
	}
}

// scalar renders a JSON string or number as text.
func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	}
	return ""
}

// resolveURL makes href absolute against base.
func resolveURL(base, href string) string {
	if href == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

type shopifyProduct struct {
	Title    string `json:"title"`
	Handle   string `json:"handle"`
	URL      string `json:"url"`
	Vendor   string `json:"vendor"`
	Price    any    `json:"price"`
	PriceMin any    `json:"price_min"`
	Currency string `json:"currency"`
	Variants []struct {
		Price any `json:"price"`
	} `json:"variants"`
}

type shopifyResponse struct {
	Resources struct {
		Results struct {
			Products []shopifyProduct `json:"products"`
		} `json:"results"`
		Products []shopifyProduct `json:"products"`
	} `json:"resources"`
	Products []shopifyProduct `json:"products"`
}

// parseShopifyJSON reads both the predictive search (suggest.json) and the
// catalog (products.json) payload shapes.
func parseShopifyJSON(data []byte, baseURL string) ([]item, error) {
	var resp shopifyResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse shopify json: %w", err)
	}

	var all []shopifyProduct
	all = append(all, resp.Resources.Results.Products...)
	all = append(all, resp.Resources.Products...)
	all = append(all, resp.Products...)

	base := strings.TrimRight(baseURL, "/")
	out := make([]item, 0, len(all))
	for _, p := range all {
		price := scalar(p.Price)
		if price == "" {
			price = scalar(p.PriceMin)
		}
		if price == "" && len(p.Variants) > 0 {
			price = scalar(p.Variants[0].Price)
		}
		if p.Title == "" || price == "" {
			continue
		}

		link := p.URL
		switch {
		case link != "":
			link = resolveURL(base, link)
		case p.Handle != "":
			link = base + "/products/" + p.Handle
		default:
			continue
		}

		out = append(out, item{
			Title:    strings.TrimSpace(p.Title),
			Price:    price,
			Currency: p.Currency,
			URL:      link,
			Brand:    p.Vendor,
		})
	}
	return out, nil
}
