package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/menuboard/api/internal/platform/httpx"
	"github.com/menuboard/api/internal/services"
)

// CheckoutHandlers exposes the order draft, preview and hand-off endpoints.
type CheckoutHandlers struct {
	checkout services.CheckoutService
	session  sessionConfig
}

// NewCheckoutHandlers constructs checkout handlers. Every request must name an existing session.
func NewCheckoutHandlers(checkout services.CheckoutService, opts ...SessionOption) *CheckoutHandlers {
	return &CheckoutHandlers{
		checkout: checkout,
		session:  newSessionConfig(opts),
	}
}

// Routes wires the checkout endpoints onto the API router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/checkout/draft", h.getDraft)
	r.Put("/checkout/draft", h.updateDraft)
	r.Get("/checkout/preview", h.preview)
	r.Post("/checkout:submit", h.submit)
}

type updateDraftRequest struct {
	CustomerName    string         `json:"customerName"`
	Phone           string         `json:"phone"`
	ZoneID          string         `json:"zoneId"`
	SpecificAddress string         `json:"specificAddress"`
	Timing          *timingPayload `json:"timing"`
}

type previewResponse struct {
	Summary summaryPayload `json:"summary"`
}

type submitResponse struct {
	Summary summaryPayload `json:"summary"`
	Cart    cartPayload    `json:"cart"`
}

func (h *CheckoutHandlers) getDraft(w http.ResponseWriter, r *http.Request) {
	r, sessionID, ok := h.begin(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	view, err := h.checkout.GetDraft(ctx, sessionID)
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"draft": buildDraftPayload(view)})
}

func (h *CheckoutHandlers) updateDraft(w http.ResponseWriter, r *http.Request) {
	r, sessionID, ok := h.begin(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	var req updateDraftRequest
	if !decodeJSONBody(w, r, h.session.maxBodyBytes, &req) {
		return
	}
	cmd := services.UpdateDraftCommand{
		SessionID:       sessionID,
		CustomerName:    req.CustomerName,
		Phone:           req.Phone,
		ZoneID:          req.ZoneID,
		SpecificAddress: req.SpecificAddress,
	}
	if req.Timing != nil {
		cmd.Timing = services.DeliveryTiming{
			Mode: services.DeliveryMode(strings.ToLower(strings.TrimSpace(req.Timing.Mode))),
			Time: strings.TrimSpace(req.Timing.Time),
		}
	}

	view, err := h.checkout.UpdateDraft(ctx, cmd)
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"draft": buildDraftPayload(view)})
}

func (h *CheckoutHandlers) preview(w http.ResponseWriter, r *http.Request) {
	r, sessionID, ok := h.begin(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	summary, err := h.checkout.Preview(ctx, sessionID)
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, previewResponse{Summary: buildSummaryPayload(summary)})
}

func (h *CheckoutHandlers) submit(w http.ResponseWriter, r *http.Request) {
	r, sessionID, ok := h.begin(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	result, err := h.checkout.Submit(ctx, sessionID)
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, submitResponse{
		Summary: buildSummaryPayload(result.Summary),
		Cart:    buildCartPayload(result.Cart),
	})
}

func (h *CheckoutHandlers) begin(w http.ResponseWriter, r *http.Request) (*http.Request, string, bool) {
	if h == nil || h.checkout == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("checkout_service_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
		return r, "", false
	}
	return h.session.resolve(w, r, nil)
}

func writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCheckoutInvalidInput), errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutIncomplete):
		apiErr := httpx.NewError("order_incomplete", err.Error(), http.StatusConflict)
		var incomplete *services.IncompleteOrderError
		if errors.As(err, &incomplete) {
			apiErr = apiErr.WithMissing(incomplete.Missing...)
		}
		httpx.WriteError(ctx, w, apiErr)
	case errors.Is(err, services.ErrHandoffFailed):
		httpx.WriteError(ctx, w, httpx.NewError("handoff_failed", "order could not be handed off", http.StatusBadGateway))
	case errors.Is(err, services.ErrCartUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_service_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
	case errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("timeout", "request timed out", http.StatusGatewayTimeout))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_error", "failed to process checkout", http.StatusInternalServerError))
	}
}
