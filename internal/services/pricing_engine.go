package services

import (
	"context"
	"errors"
	"sort"

	domain "github.com/menuboard/api/internal/domain"
)

// ErrCartPricingInvalidInput signals negative prices or quantities in a priced cart.
var ErrCartPricingInvalidInput = errors.New("cart pricing: invalid input")

// CartPricingEngine turns line items into a per-line breakdown built from the
// pricing primitives.
type CartPricingEngine struct {
	currency string
	logger   func(context.Context, string, map[string]any)
}

// CartPricingEngineDeps configures the engine.
type CartPricingEngineDeps struct {
	Currency string
	Logger   func(context.Context, string, map[string]any)
}

// NewCartPricingEngine builds an engine; the logger defaults to a no-op.
func NewCartPricingEngine(deps CartPricingEngineDeps) *CartPricingEngine {
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &CartPricingEngine{currency: deps.Currency, logger: logger}
}

// PriceCartCommand is the input to Calculate. Zone is optional.
type PriceCartCommand struct {
	Items []LineItem
	Zone  *DeliveryZone
}

// Calculate prices every line and the order. Missing add-on catalog entries are
// priced at zero and reported on the line.
func (e *CartPricingEngine) Calculate(ctx context.Context, cmd PriceCartCommand) (PricingBreakdown, error) {
	breakdown := PricingBreakdown{
		Currency: e.currency,
		Items:    make([]ItemPricingBreakdown, 0, len(cmd.Items)),
	}

	for _, item := range cmd.Items {
		if item.Quantity < 0 || item.UnitBasePrice < 0 || item.ExtraChargesPerUnit < 0 {
			return PricingBreakdown{}, ErrCartPricingInvalidInput
		}
		qty := float64(item.Quantity)
		line := ItemPricingBreakdown{
			ProductID:    item.ProductID,
			Key:          LineItemKey(item.ProductID, item.SelectedParameters),
			Quantity:     item.Quantity,
			Base:         item.UnitBasePrice * qty,
			AddOns:       domain.UnitAddOnTotal(item.SelectedAddOns, item.AddOnCatalog),
			ExtraCharges: item.ExtraChargesPerUnit * qty,
			Total:        domain.LineItemTotal(item),
		}
		line.MissingAddOnIDs = missingAddOns(item)
		if len(line.MissingAddOnIDs) > 0 {
			e.logger(ctx, "pricing_item_missing_addon", map[string]any{
				"productId": item.ProductID,
				"addOnIds":  line.MissingAddOnIDs,
			})
		}
		breakdown.Items = append(breakdown.Items, line)
		breakdown.ItemCount += item.Quantity
	}

	breakdown.Subtotal = domain.CartSubtotal(cmd.Items)
	if cmd.Zone != nil {
		zone := *cmd.Zone
		breakdown.Zone = &zone
		breakdown.DeliveryFee = zone.Fee
	}
	breakdown.Total = domain.OrderTotal(breakdown.Subtotal, breakdown.DeliveryFee)
	return breakdown, nil
}

func missingAddOns(item LineItem) []int64 {
	var missing []int64
	for id, qty := range item.SelectedAddOns {
		if qty <= 0 {
			continue
		}
		if _, ok := item.AddOnCatalog[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing
}
