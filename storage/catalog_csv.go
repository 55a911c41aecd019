package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/saptarshihalder/Dzukou-Pricing-2.0/models"
)

const (
	defaultBrand    = "Dzukou"
	defaultCurrency = "EUR"
)

var (
	idColumns    = []string{"product id", "id", "product_id", "sku"}
	nameColumns  = []string{"product name", "name", "title", "product"}
	priceColumns = []string{"current price", "current_price", "price"}
	costColumns  = []string{"unit cost", "unit_cost", "cost"}

	nonNumericRe = regexp.MustCompile(`[^\d.]`)
)

// categoryKeywords is checked in order; the first hit wins.
var categoryKeywords = []struct {
	category string
	words    []string
}{
	{"sunglasses", []string{"sunglass", "eyewear"}},
	{"bottles", []string{"bottle", "thermos", "flask"}},
	{"notebooks", []string{"notebook", "journal"}},
	{"mugs", []string{"mug", "cup"}},
	{"stands", []string{"stand", "holder"}},
	{"lunchboxes", []string{"lunchbox", "lunch box"}},
	{"stoles", []string{"stole", "shawl", "scarf"}},
	{"cushions", []string{"cushion", "pillow"}},
	{"towels", []string{"towel"}},
}

// InferCategory derives a catalog category from a product name.
func InferCategory(name string) string {
	lower := strings.ToLower(name)
	for _, ck := range categoryKeywords {
		for _, w := range ck.words {
			if strings.Contains(lower, w) {
				return ck.category
			}
		}
	}
	return "general"
}

// LoadCatalogCSV reads catalog products from a CSV export of the merchant's
// pricing sheet.
func LoadCatalogCSV(path string) ([]*models.Product, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %q: %w", path, err)
	}
	defer f.Close()
	return ParseCatalogCSV(f)
}

// ParseCatalogCSV skips rows with a missing id or name, a non-positive
// price, or an id already seen.
func ParseCatalogCSV(r io.Reader) ([]*models.Product, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("catalog: read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	col := func(row []string, names []string) string {
		for _, n := range names {
			if i, ok := index[n]; ok && i < len(row) {
				if v := strings.TrimSpace(row[i]); v != "" {
					return v
				}
			}
		}
		return ""
	}

	seen := make(map[string]struct{})
	var products []*models.Product
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("catalog: read row: %w", err)
		}

		id, name := col(row, idColumns), col(row, nameColumns)
		if id == "" || name == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		price := parseAmount(col(row, priceColumns))
		if price <= 0 {
			continue
		}
		seen[id] = struct{}{}

		products = append(products, &models.Product{
			ID:           id,
			Name:         name,
			Category:     InferCategory(name),
			Brand:        defaultBrand,
			UnitCost:     parseAmount(col(row, costColumns)),
			CurrentPrice: price,
			Currency:     defaultCurrency,
		})
	}
	return products, nil
}

// parseAmount strips currency symbols and returns 0 for unparseable input.
// A lone comma is read as the decimal separator.
func parseAmount(s string) float64 {
	if strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", "")
	} else {
		s = strings.ReplaceAll(s, ",", ".")
	}
	v, err := strconv.ParseFloat(nonNumericRe.ReplaceAllString(s, ""), 64)
	if err != nil {
		return 0
	}
	return v
}
