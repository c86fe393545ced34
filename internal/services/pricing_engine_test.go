package services

import (
	"context"
	"errors"
	"testing"
)

func TestCartPricingEngineCalculate(t *testing.T) {
	var events []string
	engine := NewCartPricingEngine(CartPricingEngineDeps{
		Currency: "CUP",
		Logger: func(_ context.Context, event string, fields map[string]any) {
			events = append(events, event)
			ids, ok := fields["addOnIds"].([]int64)
			if !ok || len(ids) != 2 || ids[0] != 3 || ids[1] != 42 {
				t.Fatalf("unexpected missing add-on ids %v", fields["addOnIds"])
			}
		},
	})

	items := []LineItem{
		{ProductID: 1, UnitBasePrice: 100, Quantity: 2, SelectedAddOns: map[int64]int{9: 1}, AddOnCatalog: shotCatalog},
		{ProductID: 2, UnitBasePrice: 150, Quantity: 1, SelectedAddOns: map[int64]int{42: 1, 3: 1, 9: 0}, ExtraChargesPerUnit: 10},
	}
	zone := &DeliveryZone{ID: "z", Fee: 50}

	result, err := engine.Calculate(context.Background(), PriceCartCommand{Items: items, Zone: zone})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Currency != "CUP" {
		t.Fatalf("expected currency CUP, got %q", result.Currency)
	}
	if result.Subtotal != 380 || result.DeliveryFee != 50 || result.Total != 430 {
		t.Fatalf("unexpected totals %+v", result)
	}
	if result.ItemCount != 3 {
		t.Fatalf("expected 3 items, got %d", result.ItemCount)
	}
	if len(result.Items) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(result.Items))
	}
	first := result.Items[0]
	if first.Base != 200 || first.AddOns != 20 || first.ExtraCharges != 0 || first.Total != 220 {
		t.Fatalf("unexpected first line %+v", first)
	}
	second := result.Items[1]
	if second.ExtraCharges != 10 || second.Total != 160 {
		t.Fatalf("unexpected second line %+v", second)
	}
	if len(events) != 1 || events[0] != "pricing_item_missing_addon" {
		t.Fatalf("expected one missing add-on event, got %v", events)
	}

	zone.Fee = 999
	if result.Zone.Fee != 50 {
		t.Fatal("expected breakdown zone to be a copy")
	}
}

func TestCartPricingEngineRejectsNegativeValues(t *testing.T) {
	engine := NewCartPricingEngine(CartPricingEngineDeps{})
	_, err := engine.Calculate(context.Background(), PriceCartCommand{
		Items: []LineItem{{ProductID: 1, UnitBasePrice: 10, Quantity: -1}},
	})
	if !errors.Is(err, ErrCartPricingInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestCartPricingEngineEmptyCart(t *testing.T) {
	engine := NewCartPricingEngine(CartPricingEngineDeps{})
	result, err := engine.Calculate(context.Background(), PriceCartCommand{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Total != 0 || len(result.Items) != 0 || result.Zone != nil {
		t.Fatalf("unexpected empty breakdown %+v", result)
	}
}
