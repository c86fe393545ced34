package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/menuboard/api/internal/platform/httpx"
	"github.com/menuboard/api/internal/services"
)

const maxSectionFilterLength = 120

// MenuHandlers serves the read-only catalog: products, sections and delivery zones.
type MenuHandlers struct {
	catalog services.CatalogService
}

// NewMenuHandlers constructs menu handlers backed by the catalog service.
func NewMenuHandlers(catalog services.CatalogService) *MenuHandlers {
	return &MenuHandlers{catalog: catalog}
}

// Routes wires the catalog endpoints onto the API router.
func (h *MenuHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/menu", h.listProducts)
	r.Get("/sections", h.listSections)
	r.Get("/products/{productID}", h.getProduct)
	r.Get("/zones", h.listZones)
}

func (h *MenuHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	section := strings.TrimSpace(r.URL.Query().Get("section"))
	if len(section) > maxSectionFilterLength {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "section filter is too long", http.StatusBadRequest))
		return
	}

	products, err := h.catalog.ListProducts(ctx, section)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	items := make([]productPayload, 0, len(products))
	for _, p := range products {
		items = append(items, buildProductPayload(p))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"products": items})
}

func (h *MenuHandlers) listSections(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	sections, err := h.catalog.ListSections(ctx)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	names := make([]string, 0, len(sections))
	for _, s := range sections {
		names = append(names, s.Name)
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"sections": names})
}

func (h *MenuHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	productID, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "productID")), 10, 64)
	if err != nil || productID <= 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "productID must be a positive integer", http.StatusBadRequest))
		return
	}

	detail, err := h.catalog.GetProduct(ctx, productID)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildProductDetailPayload(detail))
}

func (h *MenuHandlers) listZones(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	zones, err := h.catalog.ListZones(ctx)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	items := make([]zonePayload, 0, len(zones))
	for _, z := range zones {
		items = append(items, buildZonePayload(z))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"zones": items})
}

func (h *MenuHandlers) available(w http.ResponseWriter, r *http.Request) bool {
	if h == nil || h.catalog == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("catalog_unavailable", "catalog is unavailable", http.StatusServiceUnavailable))
		return false
	}
	return true
}

func writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCatalogNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCatalogUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog is unavailable", http.StatusServiceUnavailable))
	case errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("timeout", "request timed out", http.StatusGatewayTimeout))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "failed to load catalog", http.StatusInternalServerError))
	}
}
