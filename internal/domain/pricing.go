package domain

// Monetary values are float64 currency units. Rounding happens only when an
// amount is formatted for display, never while accumulating.

// UnitAddOnTotal sums the priced add-on selections of a line. Ids missing from the
// catalog and non-positive quantities contribute nothing.
func UnitAddOnTotal(selected map[int64]int, catalog AddOnCatalog) float64 {
	var total float64
	for id, qty := range selected {
		if qty <= 0 {
			continue
		}
		info, ok := catalog[id]
		if !ok {
			continue
		}
		total += info.UnitPrice * float64(qty)
	}
	return total
}

// LineItemTotal is base × quantity, plus the add-on total, plus the per-unit extra
// charge × quantity.
func LineItemTotal(item LineItem) float64 {
	qty := float64(item.Quantity)
	return item.UnitBasePrice*qty +
		UnitAddOnTotal(item.SelectedAddOns, item.AddOnCatalog) +
		item.ExtraChargesPerUnit*qty
}

// CartSubtotal sums LineItemTotal over items. Delivery is not included.
func CartSubtotal(items []LineItem) float64 {
	var subtotal float64
	for _, item := range items {
		subtotal += LineItemTotal(item)
	}
	return subtotal
}

// OrderTotal adds the flat delivery fee of the chosen zone.
func OrderTotal(subtotal, deliveryFee float64) float64 {
	return subtotal + deliveryFee
}

// PricingBreakdown captures the aggregated monetary results of pricing a cart.
type PricingBreakdown struct {
	Currency    string
	Subtotal    float64
	DeliveryFee float64
	Total       float64
	ItemCount   int
	Items       []ItemPricingBreakdown
	Zone        *DeliveryZone
}

// ItemPricingBreakdown stores the per-line components that make up LineItemTotal.
type ItemPricingBreakdown struct {
	ProductID       int64
	Key             string
	Quantity        int
	Base            float64
	AddOns          float64
	ExtraCharges    float64
	Total           float64
	MissingAddOnIDs []int64
}
