package services

import (
	"context"

	domain "github.com/menuboard/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Product              = domain.Product
	ProductParameter     = domain.ProductParameter
	ProductDetail        = domain.ProductDetail
	AddOn                = domain.AddOn
	ExtraCharge          = domain.ExtraCharge
	Section              = domain.Section
	AddOnInfo            = domain.AddOnInfo
	AddOnCatalog         = domain.AddOnCatalog
	LineItem             = domain.LineItem
	CheckoutStep         = domain.CheckoutStep
	CartState            = domain.CartState
	CartSnapshot         = domain.CartSnapshot
	DeliveryZone         = domain.DeliveryZone
	DeliveryMode         = domain.DeliveryMode
	DeliveryTiming       = domain.DeliveryTiming
	OrderDraft           = domain.OrderDraft
	OrderSummary         = domain.OrderSummary
	PricingBreakdown     = domain.PricingBreakdown
	ItemPricingBreakdown = domain.ItemPricingBreakdown
)

// CartService exposes session-scoped cart mutations.
type CartService interface {
	NewSessionID() string
	GetCart(ctx context.Context, sessionID string) (CartView, error)
	AddItem(ctx context.Context, cmd AddCartItemCommand) (CartView, error)
	RemoveItem(ctx context.Context, sessionID string, productID int64) (CartView, error)
	ClearCart(ctx context.Context, sessionID string) (CartView, error)
	ToggleCart(ctx context.Context, sessionID string) (CartView, error)
	SetStep(ctx context.Context, sessionID string, step CheckoutStep) (CartView, error)
	AdvanceStep(ctx context.Context, sessionID string) (StepTransition, error)
	RetreatStep(ctx context.Context, sessionID string) (CartView, error)
}

// CheckoutService collects the order draft and hands the composed order off.
type CheckoutService interface {
	GetDraft(ctx context.Context, sessionID string) (DraftView, error)
	UpdateDraft(ctx context.Context, cmd UpdateDraftCommand) (DraftView, error)
	Preview(ctx context.Context, sessionID string) (OrderSummary, error)
	Submit(ctx context.Context, sessionID string) (SubmitResult, error)
}

// CatalogService serves the read-only menu and delivery zone data.
type CatalogService interface {
	ListProducts(ctx context.Context, section string) ([]Product, error)
	ListSections(ctx context.Context) ([]Section, error)
	GetProduct(ctx context.Context, productID int64) (ProductDetail, error)
	ListZones(ctx context.Context) ([]DeliveryZone, error)
}

// HandoffDispatcher delivers a composed order to the messaging channel.
type HandoffDispatcher interface {
	Dispatch(ctx context.Context, msg HandoffMessage) error
}

// HandoffMessage is the payload given to a HandoffDispatcher.
type HandoffMessage struct {
	SessionID   string  `json:"sessionId"`
	Text        string  `json:"text"`
	URL         string  `json:"url"`
	Destination string  `json:"destination"`
	Total       float64 `json:"total"`
	ItemCount   int     `json:"itemCount"`
}

// CartView is a cart state plus its derived aggregates.
type CartView struct {
	SessionID string
	State     CartState
	ItemCount int
	Pricing   PricingBreakdown
}

// StepTransition reports the outcome of a forward step request. A refused transition
// is not an error; Missing names the fields that block it.
type StepTransition struct {
	Cart     CartView
	Advanced bool
	Missing  []string
}

// DraftView is the stored draft and the fields still required before confirmation.
type DraftView struct {
	SessionID string
	Draft     OrderDraft
	Missing   []string
}

// SubmitResult is the outcome of a successful hand-off.
type SubmitResult struct {
	Summary OrderSummary
	Cart    CartView
}

// AddCartItemCommand adds a product to a session cart. Product and AddOnCatalog are
// client snapshots used only when no catalog repository is configured.
type AddCartItemCommand struct {
	SessionID           string
	ProductID           int64
	Quantity            int
	Parameters          map[string]int
	AddOns              map[int64]int
	Product             *Product
	AddOnCatalog        AddOnCatalog
	ExtraChargesPerUnit float64
}

// UpdateDraftCommand replaces the customer and delivery inputs of a session.
type UpdateDraftCommand struct {
	SessionID       string
	CustomerName    string
	Phone           string
	ZoneID          string
	SpecificAddress string
	Timing          DeliveryTiming
}
