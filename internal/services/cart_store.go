package services

import (
	"errors"
	"fmt"
	"sync"

	domain "github.com/menuboard/api/internal/domain"
)

// ErrInvalidStep is returned by SetStep for values outside the three checkout screens.
var ErrInvalidStep = errors.New("cart store: invalid step")

// Selection carries the optional choices supplied with an add.
type Selection struct {
	Parameters          map[string]int
	AddOns              map[int64]int
	AddOnCatalog        AddOnCatalog
	ExtraChargesPerUnit float64
}

// CartStore owns a single cart's state. It is the only writer of the line items and
// every mutation is applied whole under one lock.
//
// The store trusts its caller on quantities: it neither clamps them nor checks that
// a parameterized add's quantity equals the sum of its parameters. CartService does
// that before calling in.
type CartStore struct {
	mu    sync.RWMutex
	items []LineItem
	open  bool
	step  CheckoutStep
}

// NewCartStore returns an empty, closed cart on the review step.
func NewCartStore() *CartStore {
	return &CartStore{step: domain.StepReview}
}

// NewCartStoreFromState rebuilds a store from a persisted state.
func NewCartStoreFromState(state CartState) *CartStore {
	store := NewCartStore()
	store.Restore(state)
	return store
}

// AddToCart merges into the line sharing the (product, parameters) key, or appends a
// new line. On merge the quantity is summed while add-ons, their catalog and the
// extra charge are replaced by the values of this call.
func (s *CartStore) AddToCart(product Product, quantity int, sel Selection) {
	params := NormalizeParameters(sel.Parameters)
	key := LineItemKey(product.ID, params)

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if LineItemKey(s.items[i].ProductID, s.items[i].SelectedParameters) != key {
			continue
		}
		s.items[i].Quantity += quantity
		s.items[i].SelectedAddOns = cloneAddOnSelection(sel.AddOns)
		s.items[i].AddOnCatalog = cloneAddOnCatalog(sel.AddOnCatalog)
		s.items[i].ExtraChargesPerUnit = sel.ExtraChargesPerUnit
		return
	}

	s.items = append(s.items, LineItem{
		ProductID:           product.ID,
		Name:                product.Name,
		UnitBasePrice:       product.Price,
		ImageURL:            product.ImageURL,
		Quantity:            quantity,
		SelectedParameters:  params,
		SelectedAddOns:      cloneAddOnSelection(sel.AddOns),
		AddOnCatalog:        cloneAddOnCatalog(sel.AddOnCatalog),
		ExtraChargesPerUnit: sel.ExtraChargesPerUnit,
	})
}

// RemoveFromCart drops every line of the product, whatever its parameters.
// It reports how many lines were removed.
func (s *CartStore) RemoveFromCart(productID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.items[:0]
	removed := 0
	for _, item := range s.items {
		if item.ProductID == productID {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	// clear the tail so removed lines are not retained by the backing array
	for i := len(kept); i < len(s.items); i++ {
		s.items[i] = LineItem{}
	}
	s.items = kept
	return removed
}

// ClearCart empties the cart and returns to the review step. The open flag is kept.
func (s *CartStore) ClearCart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.step = domain.StepReview
}

// ToggleCart flips the open flag and returns the new value.
func (s *CartStore) ToggleCart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = !s.open
	return s.open
}

// SetOpen forces the open flag.
func (s *CartStore) SetOpen(open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = open
}

// SetStep jumps directly to a step. Values outside 1..3 leave the state unchanged.
func (s *CartStore) SetStep(step CheckoutStep) error {
	if !step.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidStep, step)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.step = step
	return nil
}

// Advance moves one step forward; the confirm step is terminal.
func (s *CartStore) Advance() CheckoutStep {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step < domain.StepConfirm {
		s.step++
	}
	return s.step
}

// Retreat moves one step back, stopping at review.
func (s *CartStore) Retreat() CheckoutStep {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step > domain.StepReview {
		s.step--
	}
	return s.step
}

// Step returns the current checkout step.
func (s *CartStore) Step() CheckoutStep {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.step
}

// TotalItemCount sums quantities across lines, for badge display.
func (s *CartStore) TotalItemCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, item := range s.items {
		total += item.Quantity
	}
	return total
}

// TotalPrice is the cart subtotal using full line totals.
func (s *CartStore) TotalPrice() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.CartSubtotal(s.items)
}

// Len returns the number of distinct lines.
func (s *CartStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// State returns a deep copy of the cart.
func (s *CartStore) State() CartState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return CartState{
		Items:  cloneLineItems(s.items),
		IsOpen: s.open,
		Step:   s.step,
	}
}

// Restore replaces the whole state. Invalid steps fall back to review and line
// parameters are normalised.
func (s *CartStore) Restore(state CartState) {
	items := cloneLineItems(state.Items)
	for i := range items {
		items[i].SelectedParameters = NormalizeParameters(items[i].SelectedParameters)
	}
	step := state.Step
	if !step.Valid() {
		step = domain.StepReview
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = items
	s.open = state.IsOpen
	s.step = step
}

func cloneLineItems(items []LineItem) []LineItem {
	if len(items) == 0 {
		return []LineItem{}
	}
	dup := make([]LineItem, len(items))
	copy(dup, items)
	for i := range dup {
		dup[i].SelectedParameters = cloneParameters(dup[i].SelectedParameters)
		dup[i].SelectedAddOns = cloneAddOnSelection(dup[i].SelectedAddOns)
		dup[i].AddOnCatalog = cloneAddOnCatalog(dup[i].AddOnCatalog)
	}
	return dup
}

func cloneParameters(values map[string]int) map[string]int {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]int, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}

func cloneAddOnSelection(values map[int64]int) map[int64]int {
	if len(values) == 0 {
		return nil
	}
	out := make(map[int64]int, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}

func cloneAddOnCatalog(values AddOnCatalog) AddOnCatalog {
	if len(values) == 0 {
		return nil
	}
	out := make(AddOnCatalog, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}
