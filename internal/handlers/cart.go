package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/menuboard/api/internal/platform/httpx"
	"github.com/menuboard/api/internal/services"
)

// CartHandlers exposes the session cart endpoints.
type CartHandlers struct {
	carts   services.CartService
	session sessionConfig
}

// NewCartHandlers constructs cart handlers. Requests without a session header start a new session.
func NewCartHandlers(carts services.CartService, opts ...SessionOption) *CartHandlers {
	return &CartHandlers{
		carts:   carts,
		session: newSessionConfig(opts),
	}
}

// Routes wires the cart endpoints onto the API router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/cart", h.getCart)
	r.Delete("/cart", h.clearCart)
	r.Post("/cart/items", h.addItem)
	r.Delete("/cart/items/{productID}", h.removeItem)
	r.Post("/cart:toggle", h.toggleCart)
	r.Put("/cart/step", h.setStep)
	r.Post("/cart/step:advance", h.advanceStep)
	r.Post("/cart/step:retreat", h.retreatStep)
}

type addItemRequest struct {
	ProductID           int64            `json:"productId"`
	Quantity            int              `json:"quantity"`
	Parameters          map[string]int   `json:"parameters"`
	AddOns              map[string]int   `json:"addOns"`
	Product             *productSnapshot `json:"product"`
	AddOnCatalog        []addOnPayload   `json:"addOnCatalog"`
	ExtraChargesPerUnit float64          `json:"extraChargesPerUnit"`
}

// productSnapshot is the product as the client saw it; used only without a catalog.
type productSnapshot struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	ImageURL      string  `json:"imageUrl"`
	Section       string  `json:"section"`
	HasParameters bool    `json:"hasParameters"`
}

type setStepRequest struct {
	Step int `json:"step"`
}

type stepTransitionResponse struct {
	Cart     cartPayload `json:"cart"`
	Advanced bool        `json:"advanced"`
	Missing  []string    `json:"missing"`
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(ctx context.Context, sessionID string) (services.CartView, error) {
		return h.carts.GetCart(ctx, sessionID)
	})
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(ctx context.Context, sessionID string) (services.CartView, error) {
		return h.carts.ClearCart(ctx, sessionID)
	})
}

func (h *CartHandlers) toggleCart(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(ctx context.Context, sessionID string) (services.CartView, error) {
		return h.carts.ToggleCart(ctx, sessionID)
	})
}

func (h *CartHandlers) retreatStep(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(ctx context.Context, sessionID string) (services.CartView, error) {
		return h.carts.RetreatStep(ctx, sessionID)
	})
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "productID")), 10, 64)
	if err != nil || productID <= 0 {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "productID must be a positive integer", http.StatusBadRequest))
		return
	}
	h.respond(w, r, func(ctx context.Context, sessionID string) (services.CartView, error) {
		return h.carts.RemoveItem(ctx, sessionID, productID)
	})
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}
	r, sessionID, ok := h.session.resolve(w, r, h.carts.NewSessionID)
	if !ok {
		return
	}
	ctx := r.Context()

	var req addItemRequest
	if !decodeJSONBody(w, r, h.session.maxBodyBytes, &req) {
		return
	}
	cmd, err := req.command(sessionID)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	view, err := h.carts.AddItem(ctx, cmd)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(view)})
}

func (h *CartHandlers) setStep(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}
	r, sessionID, ok := h.session.resolve(w, r, h.carts.NewSessionID)
	if !ok {
		return
	}
	ctx := r.Context()

	var req setStepRequest
	if !decodeJSONBody(w, r, h.session.maxBodyBytes, &req) {
		return
	}
	view, err := h.carts.SetStep(ctx, sessionID, services.CheckoutStep(req.Step))
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(view)})
}

func (h *CartHandlers) advanceStep(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}
	r, sessionID, ok := h.session.resolve(w, r, h.carts.NewSessionID)
	if !ok {
		return
	}
	ctx := r.Context()

	transition, err := h.carts.AdvanceStep(ctx, sessionID)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, stepTransitionResponse{
		Cart:     buildCartPayload(transition.Cart),
		Advanced: transition.Advanced,
		Missing:  append([]string{}, transition.Missing...),
	})
}

func (h *CartHandlers) respond(w http.ResponseWriter, r *http.Request, call func(context.Context, string) (services.CartView, error)) {
	if !h.available(w, r) {
		return
	}
	r, sessionID, ok := h.session.resolve(w, r, h.carts.NewSessionID)
	if !ok {
		return
	}
	ctx := r.Context()

	view, err := call(ctx, sessionID)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(view)})
}

func (h *CartHandlers) available(w http.ResponseWriter, r *http.Request) bool {
	if h == nil || h.carts == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return false
	}
	return true
}

func (req addItemRequest) command(sessionID string) (services.AddCartItemCommand, error) {
	cmd := services.AddCartItemCommand{
		SessionID:           sessionID,
		ProductID:           req.ProductID,
		Quantity:            req.Quantity,
		Parameters:          req.Parameters,
		ExtraChargesPerUnit: req.ExtraChargesPerUnit,
	}
	if len(req.AddOns) > 0 {
		cmd.AddOns = make(map[int64]int, len(req.AddOns))
		for raw, qty := range req.AddOns {
			id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
			if err != nil || id <= 0 {
				return services.AddCartItemCommand{}, errors.New("addOns keys must be positive integer ids")
			}
			if _, dup := cmd.AddOns[id]; dup {
				return services.AddCartItemCommand{}, fmt.Errorf("addOns lists id %d more than once", id)
			}
			cmd.AddOns[id] = qty
		}
	}
	if req.Product != nil {
		cmd.Product = &services.Product{
			ID:            req.Product.ID,
			Name:          req.Product.Name,
			Price:         req.Product.Price,
			ImageURL:      req.Product.ImageURL,
			Section:       req.Product.Section,
			HasParameters: req.Product.HasParameters,
		}
	}
	if len(req.AddOnCatalog) > 0 {
		cmd.AddOnCatalog = make(services.AddOnCatalog, len(req.AddOnCatalog))
		for _, entry := range req.AddOnCatalog {
			cmd.AddOnCatalog[entry.ID] = services.AddOnInfo{Name: entry.Name, UnitPrice: entry.UnitPrice}
		}
	}
	return cmd, nil
}

func writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCartNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCartUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
	case errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("timeout", "request timed out", http.StatusGatewayTimeout))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("cart_error", "failed to update cart", http.StatusInternalServerError))
	}
}
