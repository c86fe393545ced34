package domain

import (
	"math"
	"testing"
)

func TestUnitAddOnTotalSkipsMissingAndEmptySelections(t *testing.T) {
	catalog := AddOnCatalog{
		9:  {Name: "Extra shot", UnitPrice: 20},
		10: {Name: "Syrup", UnitPrice: 7.5},
	}
	selected := map[int64]int{9: 2, 10: 0, 11: 3, 12: -1}

	got := UnitAddOnTotal(selected, catalog)
	if got != 40 {
		t.Fatalf("expected 40, got %v", got)
	}
	if got := UnitAddOnTotal(nil, catalog); got != 0 {
		t.Fatalf("expected 0 for nil selection, got %v", got)
	}
	if got := UnitAddOnTotal(selected, nil); got != 0 {
		t.Fatalf("expected 0 for nil catalog, got %v", got)
	}
}

func TestLineItemTotalAddsAllComponents(t *testing.T) {
	item := LineItem{
		ProductID:           1,
		UnitBasePrice:       100,
		Quantity:            3,
		SelectedAddOns:      map[int64]int{9: 1},
		AddOnCatalog:        AddOnCatalog{9: {Name: "Extra shot", UnitPrice: 20}},
		ExtraChargesPerUnit: 5,
	}
	if got := LineItemTotal(item); got != 335 {
		t.Fatalf("expected 335, got %v", got)
	}
}

func TestCartSubtotalAndOrderTotal(t *testing.T) {
	items := []LineItem{
		{
			ProductID:      1,
			Name:           "Coffee",
			UnitBasePrice:  100,
			Quantity:       2,
			SelectedAddOns: map[int64]int{9: 1},
			AddOnCatalog:   AddOnCatalog{9: {Name: "Extra shot", UnitPrice: 20}},
		},
	}
	subtotal := CartSubtotal(items)
	if subtotal != 220 {
		t.Fatalf("expected subtotal 220, got %v", subtotal)
	}
	if total := OrderTotal(subtotal, 50); total != 270 {
		t.Fatalf("expected total 270, got %v", total)
	}
	if got := CartSubtotal(nil); got != 0 {
		t.Fatalf("expected empty subtotal 0, got %v", got)
	}
}

func TestCartSubtotalDoesNotRoundWhileAccumulating(t *testing.T) {
	items := make([]LineItem, 0, 10)
	for i := 0; i < 10; i++ {
		items = append(items, LineItem{ProductID: int64(i), UnitBasePrice: 0.105, Quantity: 1})
	}
	got := CartSubtotal(items)
	if math.Abs(got-1.05) > 1e-9 {
		t.Fatalf("expected 1.05, got %v", got)
	}
}

func TestCheckoutStepValid(t *testing.T) {
	for _, step := range []CheckoutStep{StepReview, StepDelivery, StepConfirm} {
		if !step.Valid() {
			t.Fatalf("expected step %d to be valid", step)
		}
	}
	for _, step := range []CheckoutStep{0, 4, -1} {
		if step.Valid() {
			t.Fatalf("expected step %d to be invalid", step)
		}
	}
}
