package domain

import "time"

// Product mirrors a catalog record as returned by the menu API.
type Product struct {
	ID              int64
	Name            string
	Price           float64
	ImageURL        string
	Section         string
	Stock           int
	HasParameters   bool
	HasAddOns       bool
	HasExtraCharges bool
	Parameters      []ProductParameter
}

// ProductParameter is a selectable variant dimension (size, flavour) of a product.
type ProductParameter struct {
	Name              string
	AvailableQuantity int
}

// ProductDetail carries the add-on and extra-charge catalogs fetched for a single product.
type ProductDetail struct {
	Product      Product
	AddOns       []AddOn
	ExtraCharges []ExtraCharge
}

// AddOn is an optional priced extra the customer may select per line.
type AddOn struct {
	ID    int64
	Name  string
	Price float64
}

// ExtraCharge is a flat per-unit surcharge bundled with a product.
type ExtraCharge struct {
	ID    int64
	Name  string
	Price float64
}

// Section groups products for menu navigation.
type Section struct {
	Name  string
	Order int
}

// AddOnInfo is the snapshot of an add-on kept on a line item.
type AddOnInfo struct {
	Name      string
	UnitPrice float64
}

// AddOnCatalog maps add-on ids to their snapshot at add time.
type AddOnCatalog map[int64]AddOnInfo

// LineItem is one row of the cart. Display data and prices are captured when the
// item is added and never re-fetched.
type LineItem struct {
	ProductID           int64
	Name                string
	UnitBasePrice       float64
	ImageURL            string
	Quantity            int
	SelectedParameters  map[string]int
	SelectedAddOns      map[int64]int
	AddOnCatalog        AddOnCatalog
	ExtraChargesPerUnit float64
}

// CheckoutStep enumerates the three checkout screens.
type CheckoutStep int

const (
	StepReview   CheckoutStep = 1
	StepDelivery CheckoutStep = 2
	StepConfirm  CheckoutStep = 3
)

// Valid reports whether the step is one of the three known screens.
func (s CheckoutStep) Valid() bool {
	return s >= StepReview && s <= StepConfirm
}

// CartState is the full observable state of a cart.
type CartState struct {
	Items  []LineItem
	IsOpen bool
	Step   CheckoutStep
}

// CartSnapshot is a persisted copy of a session's cart.
type CartSnapshot struct {
	SessionID string
	State     CartState
	Draft     OrderDraft
	UpdatedAt time.Time
}

// DeliveryZone is a static fee tier keyed by destination area.
type DeliveryZone struct {
	ID       string
	Name     string
	Distance string
	Fee      float64
	Tier     int
	TierName string
}

// DeliveryMode selects between immediate and scheduled delivery.
type DeliveryMode string

const (
	DeliveryImmediate DeliveryMode = "immediate"
	DeliveryScheduled DeliveryMode = "scheduled"
)

// DeliveryTiming captures when the customer wants the order.
type DeliveryTiming struct {
	Mode DeliveryMode
	// Time is a 24-hour "HH:MM" string; only meaningful for scheduled delivery.
	Time string
}

// OrderDraft holds the customer and delivery inputs collected before hand-off.
type OrderDraft struct {
	CustomerName    string
	Phone           string
	Zone            *DeliveryZone
	SpecificAddress string
	Timing          DeliveryTiming
}

// OrderSummary is the composed, immutable order message plus its totals.
type OrderSummary struct {
	Text        string
	Subtotal    float64
	DeliveryFee float64
	Total       float64
	HandoffURL  string
	ItemCount   int
}
