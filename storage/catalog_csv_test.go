package storage

import (
	"strings"
	"testing"
)

func TestInferCategory(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"Bamboo Sunglasses Classic", "sunglasses"},
		{"Insulated Thermos 500ml", "bottles"},
		{"Recycled Paper Journal", "notebooks"},
		{"Ceramic Coffee Mug", "mugs"},
		{"Wooden Phone Stand", "stands"},
		{"Steel Lunch Box", "lunchboxes"},
		{"Wool Shawl", "stoles"},
		{"Jute Cushion Cover", "cushions"},
		{"Organic Towel", "towels"},
		{"Gift Card", "general"},
	}
	for _, c := range cases {
		if got := InferCategory(c.name); got != c.want {
			t.Errorf("InferCategory(%q) = %q; want %q", c.name, got, c.want)
		}
	}
}

func TestParseCatalogCSV(t *testing.T) {
	in := "\ufeffProduct ID, Product Name , Unit Cost , Current Price \n" +
		"P1,Bamboo Sunglasses Classic,€8.00,€20.00\n" +
		"P2,Steel Bottle,\"€5,50\",€18\n" +
		",Missing ID,1,2\n" +
		"P3,Free Sample,1,0\n" +
		"P1,Duplicate,1,9\n"

	products, err := ParseCatalogCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ParseCatalogCSV: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("got %d products, want 2", len(products))
	}

	p := products[0]
	if p.ID != "P1" || p.Category != "sunglasses" || p.UnitCost != 8 || p.CurrentPrice != 20 {
		t.Errorf("unexpected first product: %+v", p)
	}
	if got := parseAmount("$1,200.50"); got != 1200.5 {
		t.Errorf("parseAmount(%q) = %v; want 1200.5", "$1,200.50", got)
	}
	if products[1].UnitCost != 5.5 {
		t.Errorf("comma decimal cost = %v; want 5.5", products[1].UnitCost)
	}
	if p.Brand != "Dzukou" || p.Currency != "EUR" {
		t.Errorf("defaults not applied: %+v", p)
	}
}
