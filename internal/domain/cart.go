package domain

// CartLine is one product's presence in a cart. UnitPrice is the price seen
// when the product was added; Name and Photo are display copies only.
type CartLine struct {
	ProductID string `json:"product_id"`
	UnitPrice Money  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	Name      string `json:"name"`
	Photo     string `json:"photo,omitempty"`
}

func (l CartLine) Subtotal() Money {
	return l.UnitPrice.Times(l.Quantity)
}

// SumLines is the cart total over the given lines.
func SumLines(lines []CartLine) Money {
	var total Money
	for _, l := range lines {
		total += l.Subtotal()
	}
	return total
}
