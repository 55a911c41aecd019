package storefront

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSearchHTMLGraphAndOffers(t *testing.T) {
	page := `<script type="application/ld+json">
{"@graph":[
  {"@type":["Product"],"name":"Linen Cushion Cover","url":"https://shop.example/p/linen",
   "brand":{"@type":"Brand","name":"Citizenry"},
   "offers":[{"price":"45.00","priceCurrency":"USD"}]},
  {"@type":"Product","name":"Wool Cushion","url":"/p/wool","offers":{"lowPrice":39,"priceCurrency":"USD"}},
  {"@type":"Organization","name":"Shop"}
]}
</script>
<script type="application/ld+json">{ not json </script>
<script type="application/ld+json">{"@type":"Product","name":"Velvet Cushion","url":"/p/velvet","offers":{"price":"55"}}</script>`

	items, err := parseSearchHTML(strings.NewReader(page), "https://shop.example")
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, item{Title: "Linen Cushion Cover", Price: "45.00", Currency: "USD", URL: "https://shop.example/p/linen", Brand: "Citizenry"}, items[0])
	assert.Equal(t, "39", items[1].Price)
	assert.Equal(t, "https://shop.example/p/wool", items[1].URL)
	assert.Equal(t, "Velvet Cushion", items[2].Title)
}

func TestCardItemsCurrency(t *testing.T) {
	page := `<div class="product-item"><a href="p/1"><h2>Tea Towel</h2></a><p>Only £8.50 today</p></div>
<div class="product-item"><a href="/p/2"><h2>Bath Towel</h2></a><span class="money">Rs. 1,499</span></div>
<div class="product-item"><a href="/p/3"><h2>Hand Towel</h2></a><span>sold out</span></div>`

	items, err := parseSearchHTML(strings.NewReader(page), "https://shop.example/shop/")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "£8.50", items[0].Price)
	assert.Equal(t, "GBP", items[0].Currency)
	assert.Equal(t, "https://shop.example/shop/p/1", items[0].URL)
	assert.Equal(t, "INR", items[1].Currency)
}

func TestParseShopifyJSON(t *testing.T) {
	data := `{"products":[
	  {"title":"Insulated Bottle","handle":"insulated-bottle","vendor":"EcoRoots","variants":[{"price":"32.00"}]},
	  {"title":"No Price"},
	  {"title":"Absolute","url":"https://other.example/products/x","price_min":1200}
	]}`
	items, err := parseShopifyJSON([]byte(data), "https://ecoroots.example/")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "https://ecoroots.example/products/insulated-bottle", items[0].URL)
	assert.Equal(t, "32.00", items[0].Price)
	assert.Equal(t, "1200", items[1].Price)
	assert.Equal(t, "https://other.example/products/x", items[1].URL)

	_, err = parseShopifyJSON([]byte("<html>"), "https://ecoroots.example")
	assert.Error(t, err)
}
