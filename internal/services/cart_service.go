package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	domain "github.com/menuboard/api/internal/domain"
	"github.com/menuboard/api/internal/repositories"
)

const (
	metricNamespace        = "github.com/menuboard/api/internal/services"
	defaultMaxLineQuantity = 99
)

var errCartSessionsRequired = errors.New("cart service: sessions are required")

// ErrCartInvalidInput indicates the caller supplied invalid input.
var ErrCartInvalidInput = errors.New("cart service: invalid input")

// ErrCartUnavailable indicates the cart backend could not serve the request.
var ErrCartUnavailable = errors.New("cart service: unavailable")

// ErrCartNotFound indicates the requested cart or product does not exist.
var ErrCartNotFound = errors.New("cart service: not found")

type productLookup interface {
	GetProductDetail(ctx context.Context, productID int64) (ProductDetail, error)
}

// CartServiceDeps wires the session store, optional catalog and pricing.
type CartServiceDeps struct {
	Sessions        *CartSessions
	Catalog         productLookup
	Pricer          *CartPricingEngine
	MaxLineQuantity int
	Meter           metric.Meter
	Logger          func(context.Context, string, map[string]any)
}

type cartService struct {
	sessions *CartSessions
	catalog  productLookup
	pricer   *CartPricingEngine
	maxQty   int
	logger   func(context.Context, string, map[string]any)

	adds        metric.Int64Counter
	addsEnabled bool
}

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Sessions == nil {
		return nil, errCartSessionsRequired
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	pricer := deps.Pricer
	if pricer == nil {
		pricer = NewCartPricingEngine(CartPricingEngineDeps{Logger: logger})
	}
	maxQty := deps.MaxLineQuantity
	if maxQty <= 0 {
		maxQty = defaultMaxLineQuantity
	}
	meter := deps.Meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(metricNamespace)
	}
	adds, err := meter.Int64Counter(
		"menu.cart.items_added",
		metric.WithDescription("Units added to carts"),
	)
	if err != nil {
		logger(context.Background(), "cart_metric_register_failed", map[string]any{"error": err.Error()})
	}

	return &cartService{
		sessions:    deps.Sessions,
		catalog:     deps.Catalog,
		pricer:      pricer,
		maxQty:      maxQty,
		logger:      logger,
		adds:        adds,
		addsEnabled: err == nil,
	}, nil
}

func (s *cartService) NewSessionID() string {
	return s.sessions.NewID()
}

func (s *cartService) GetCart(ctx context.Context, sessionID string) (CartView, error) {
	var view CartView
	err := s.view(ctx, sessionID, func(sess *CartSession) error {
		var err error
		view, err = s.buildView(ctx, sess)
		return err
	})
	return view, err
}

func (s *cartService) AddItem(ctx context.Context, cmd AddCartItemCommand) (CartView, error) {
	if err := checkSessionID(cmd.SessionID); err != nil {
		return CartView{}, err
	}
	product, sel, source, err := s.resolveItem(ctx, cmd)
	if err != nil {
		return CartView{}, err
	}
	quantity, err := s.resolveQuantity(product, cmd.Quantity, sel.Parameters)
	if err != nil {
		return CartView{}, err
	}

	var view CartView
	err = s.sessions.Update(ctx, cmd.SessionID, func(sess *CartSession) (bool, error) {
		if err := s.checkMergedLine(sess.Cart.State().Items, product, quantity, sel.Parameters, source == "catalog"); err != nil {
			return false, err
		}
		sess.Cart.AddToCart(product, quantity, sel)
		var err error
		view, err = s.buildView(ctx, sess)
		return true, err
	})
	if err != nil {
		return CartView{}, err
	}

	if s.addsEnabled {
		s.adds.Add(ctx, int64(quantity), metric.WithAttributes(attribute.String("source", source)))
	}
	s.logger(ctx, "cart_item_added", map[string]any{
		"sessionId": cmd.SessionID,
		"productId": product.ID,
		"quantity":  quantity,
		"source":    source,
	})
	return view, nil
}

func (s *cartService) RemoveItem(ctx context.Context, sessionID string, productID int64) (CartView, error) {
	if productID <= 0 {
		return CartView{}, fmt.Errorf("%w: product id must be positive", ErrCartInvalidInput)
	}
	return s.mutate(ctx, sessionID, func(sess *CartSession) (bool, error) {
		return sess.Cart.RemoveFromCart(productID) > 0, nil
	})
}

func (s *cartService) ClearCart(ctx context.Context, sessionID string) (CartView, error) {
	return s.mutate(ctx, sessionID, func(sess *CartSession) (bool, error) {
		sess.Cart.ClearCart()
		return true, nil
	})
}

func (s *cartService) ToggleCart(ctx context.Context, sessionID string) (CartView, error) {
	return s.mutate(ctx, sessionID, func(sess *CartSession) (bool, error) {
		sess.Cart.ToggleCart()
		return true, nil
	})
}

func (s *cartService) SetStep(ctx context.Context, sessionID string, step CheckoutStep) (CartView, error) {
	return s.mutate(ctx, sessionID, func(sess *CartSession) (bool, error) {
		if err := sess.Cart.SetStep(step); err != nil {
			return false, fmt.Errorf("%w: %w", ErrCartInvalidInput, err)
		}
		return true, nil
	})
}

// AdvanceStep moves forward when the current screen is complete: review needs at
// least one line and delivery needs every required draft field.
func (s *cartService) AdvanceStep(ctx context.Context, sessionID string) (StepTransition, error) {
	if err := checkSessionID(sessionID); err != nil {
		return StepTransition{}, err
	}
	var result StepTransition
	err := s.sessions.Update(ctx, sessionID, func(sess *CartSession) (bool, error) {
		missing := advanceBlockers(sess)
		advanced := false
		if len(missing) == 0 {
			before := sess.Cart.Step()
			advanced = sess.Cart.Advance() != before
		}
		view, err := s.buildView(ctx, sess)
		if err != nil {
			return false, err
		}
		result = StepTransition{Cart: view, Advanced: advanced, Missing: missing}
		return advanced, nil
	})
	return result, err
}

func (s *cartService) RetreatStep(ctx context.Context, sessionID string) (CartView, error) {
	return s.mutate(ctx, sessionID, func(sess *CartSession) (bool, error) {
		before := sess.Cart.Step()
		return sess.Cart.Retreat() != before, nil
	})
}

func (s *cartService) mutate(ctx context.Context, sessionID string, fn func(*CartSession) (bool, error)) (CartView, error) {
	if err := checkSessionID(sessionID); err != nil {
		return CartView{}, err
	}
	var view CartView
	err := s.sessions.Update(ctx, sessionID, func(sess *CartSession) (bool, error) {
		changed, err := fn(sess)
		if err != nil {
			return false, err
		}
		view, err = s.buildView(ctx, sess)
		return changed, err
	})
	return view, err
}

func (s *cartService) view(ctx context.Context, sessionID string, fn func(*CartSession) error) error {
	if err := checkSessionID(sessionID); err != nil {
		return err
	}
	return s.sessions.View(ctx, sessionID, fn)
}

func (s *cartService) buildView(ctx context.Context, sess *CartSession) (CartView, error) {
	return buildCartView(ctx, s.pricer, sess)
}

func buildCartView(ctx context.Context, pricer *CartPricingEngine, sess *CartSession) (CartView, error) {
	state := sess.Cart.State()
	pricing, err := pricer.Calculate(ctx, PriceCartCommand{Items: state.Items, Zone: sess.Draft.Zone})
	if err != nil {
		return CartView{}, fmt.Errorf("%w: %v", ErrCartInvalidInput, err)
	}
	return CartView{
		SessionID: sess.ID,
		State:     state,
		ItemCount: pricing.ItemCount,
		Pricing:   pricing,
	}, nil
}

func advanceBlockers(sess *CartSession) []string {
	switch sess.Cart.Step() {
	case domain.StepReview:
		if sess.Cart.Len() == 0 {
			return []string{"items"}
		}
	case domain.StepDelivery:
		return ValidateDraft(sess.Draft)
	}
	return nil
}

// resolveItem builds the product snapshot and selection for an add. With a catalog
// the product, add-ons and extra charges come from it; otherwise the client
// snapshot is used as sent.
func (s *cartService) resolveItem(ctx context.Context, cmd AddCartItemCommand) (Product, Selection, string, error) {
	for id, qty := range cmd.AddOns {
		if qty < 0 {
			return Product{}, Selection{}, "", fmt.Errorf("%w: add-on %d quantity must not be negative", ErrCartInvalidInput, id)
		}
	}
	for name, qty := range cmd.Parameters {
		if qty < 0 {
			return Product{}, Selection{}, "", fmt.Errorf("%w: parameter %q quantity must not be negative", ErrCartInvalidInput, name)
		}
	}
	params := NormalizeParameters(cmd.Parameters)

	if s.catalog != nil {
		if cmd.ProductID <= 0 {
			return Product{}, Selection{}, "", fmt.Errorf("%w: product id must be positive", ErrCartInvalidInput)
		}
		detail, err := s.catalog.GetProductDetail(ctx, cmd.ProductID)
		if err != nil {
			var repoErr repositories.RepositoryError
			if errors.As(err, &repoErr) && repoErr.IsNotFound() {
				return Product{}, Selection{}, "", fmt.Errorf("%w: product %d", ErrCartNotFound, cmd.ProductID)
			}
			return Product{}, Selection{}, "", translateRepoError(err)
		}
		sel, err := catalogSelection(detail, params, cmd.AddOns)
		if err != nil {
			return Product{}, Selection{}, "", err
		}
		return detail.Product, sel, "catalog", nil
	}

	if cmd.Product == nil {
		return Product{}, Selection{}, "", fmt.Errorf("%w: product snapshot is required", ErrCartInvalidInput)
	}
	product := *cmd.Product
	if cmd.ProductID != 0 && cmd.ProductID != product.ID {
		return Product{}, Selection{}, "", fmt.Errorf("%w: product id mismatch", ErrCartInvalidInput)
	}
	if product.ID <= 0 || strings.TrimSpace(product.Name) == "" {
		return Product{}, Selection{}, "", fmt.Errorf("%w: product id and name are required", ErrCartInvalidInput)
	}
	if !validAmount(product.Price) || !validAmount(cmd.ExtraChargesPerUnit) {
		return Product{}, Selection{}, "", fmt.Errorf("%w: prices must be non-negative", ErrCartInvalidInput)
	}
	for id, info := range cmd.AddOnCatalog {
		if !validAmount(info.UnitPrice) {
			return Product{}, Selection{}, "", fmt.Errorf("%w: add-on %d price must be non-negative", ErrCartInvalidInput, id)
		}
	}
	return product, Selection{
		Parameters:          params,
		AddOns:              cmd.AddOns,
		AddOnCatalog:        cmd.AddOnCatalog,
		ExtraChargesPerUnit: cmd.ExtraChargesPerUnit,
	}, "client", nil
}

func catalogSelection(detail ProductDetail, params map[string]int, addOns map[int64]int) (Selection, error) {
	product := detail.Product
	if product.Stock <= 0 {
		return Selection{}, fmt.Errorf("%w: product %d is not available", ErrCartInvalidInput, product.ID)
	}

	if !product.HasParameters && len(params) > 0 {
		return Selection{}, fmt.Errorf("%w: product %d takes no parameters", ErrCartInvalidInput, product.ID)
	}
	if product.HasParameters {
		available := make(map[string]int, len(product.Parameters))
		for _, p := range product.Parameters {
			available[NormalizeParameterName(p.Name)] = p.AvailableQuantity
		}
		for name, qty := range params {
			limit, ok := available[name]
			if !ok {
				return Selection{}, fmt.Errorf("%w: unknown parameter %q", ErrCartInvalidInput, name)
			}
			if qty > limit {
				return Selection{}, fmt.Errorf("%w: parameter %q exceeds available quantity %d", ErrCartInvalidInput, name, limit)
			}
		}
	}

	var catalog AddOnCatalog
	if len(detail.AddOns) > 0 {
		catalog = make(AddOnCatalog, len(detail.AddOns))
		for _, a := range detail.AddOns {
			catalog[a.ID] = AddOnInfo{Name: a.Name, UnitPrice: a.Price}
		}
	}
	for id, qty := range addOns {
		if qty == 0 {
			continue
		}
		if _, ok := catalog[id]; !ok {
			return Selection{}, fmt.Errorf("%w: unknown add-on %d", ErrCartInvalidInput, id)
		}
	}

	var extra float64
	if product.HasExtraCharges {
		for _, c := range detail.ExtraCharges {
			extra += c.Price
		}
	}

	return Selection{
		Parameters:          params,
		AddOns:              addOns,
		AddOnCatalog:        catalog,
		ExtraChargesPerUnit: extra,
	}, nil
}

// resolveQuantity applies the quantity rules: a parameterized add must carry
// quantity equal to the parameter sum (zero means "use the sum"), and every add
// is bounded by the per-line maximum.
func (s *cartService) resolveQuantity(product Product, quantity int, params map[string]int) (int, error) {
	if quantity < 0 {
		return 0, fmt.Errorf("%w: quantity must not be negative", ErrCartInvalidInput)
	}
	sum := parameterQuantity(params)
	if product.HasParameters || sum > 0 {
		if sum == 0 {
			return 0, fmt.Errorf("%w: select at least one option", ErrCartInvalidInput)
		}
		if quantity == 0 {
			quantity = sum
		}
		if quantity != sum {
			return 0, fmt.Errorf("%w: quantity %d does not match selected options %d", ErrCartInvalidInput, quantity, sum)
		}
	}
	if quantity == 0 {
		return 0, fmt.Errorf("%w: quantity must be at least 1", ErrCartInvalidInput)
	}
	if quantity > s.maxQty {
		return 0, fmt.Errorf("%w: quantity exceeds %d", ErrCartInvalidInput, s.maxQty)
	}
	return quantity, nil
}

// checkMergedLine bounds the line an add merges into by the per-line maximum. For
// catalog products it also bounds each parameter, summed over every line of the
// product, by its available quantity.
func (s *cartService) checkMergedLine(items []LineItem, product Product, quantity int, params map[string]int, stocked bool) error {
	key := LineItemKey(product.ID, params)
	committed := make(map[string]int)
	for _, item := range items {
		if item.ProductID != product.ID {
			continue
		}
		if LineItemKey(item.ProductID, item.SelectedParameters) == key && item.Quantity+quantity > s.maxQty {
			return fmt.Errorf("%w: line quantity would exceed %d", ErrCartInvalidInput, s.maxQty)
		}
		for name, units := range parameterUnits(item) {
			committed[name] += units
		}
	}
	if !stocked || !product.HasParameters {
		return nil
	}
	for _, p := range product.Parameters {
		name := NormalizeParameterName(p.Name)
		qty := params[name]
		if qty == 0 {
			continue
		}
		if committed[name]+qty > p.AvailableQuantity {
			return fmt.Errorf("%w: parameter %q exceeds available quantity %d", ErrCartInvalidInput, name, p.AvailableQuantity)
		}
	}
	return nil
}

// parameterUnits spreads a line's quantity over its parameters. A merged line
// keeps the selection of its first add, so every repeat adds the same split.
func parameterUnits(item LineItem) map[string]int {
	sum := parameterQuantity(item.SelectedParameters)
	if sum == 0 {
		return nil
	}
	units := make(map[string]int, len(item.SelectedParameters))
	for name, qty := range item.SelectedParameters {
		if qty > 0 {
			units[name] = qty * item.Quantity / sum
		}
	}
	return units
}

func checkSessionID(sessionID string) error {
	if !ValidSessionID(sessionID) {
		return fmt.Errorf("%w: invalid session id", ErrCartInvalidInput)
	}
	return nil
}

func validAmount(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
