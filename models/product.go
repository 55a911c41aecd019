package models

// Product is a catalog item owned by the merchant.
type Product struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Category     string  `json:"category"`
	Brand        string  `json:"brand"`
	UnitCost     float64 `json:"unit_cost"`
	CurrentPrice float64 `json:"current_price"`
	Currency     string  `json:"currency"`
}

// Margin returns the gross margin as a fraction of the current price.
func (p *Product) Margin() float64 {
	if p.CurrentPrice <= 0 {
		return 0
	}
	return (p.CurrentPrice - p.UnitCost) / p.CurrentPrice
}
