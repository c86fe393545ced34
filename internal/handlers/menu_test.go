package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/menuboard/api/internal/services"
)

type stubCatalogService struct {
	products map[int64]services.ProductDetail
	sections []services.Section
	err      error
	section  string
}

func (s *stubCatalogService) ListProducts(_ context.Context, section string) ([]services.Product, error) {
	s.section = section
	if s.err != nil {
		return nil, s.err
	}
	out := make([]services.Product, 0, len(s.products))
	for _, detail := range s.products {
		out = append(out, detail.Product)
	}
	return out, nil
}

func (s *stubCatalogService) ListSections(context.Context) ([]services.Section, error) {
	return s.sections, s.err
}

func (s *stubCatalogService) GetProduct(_ context.Context, productID int64) (services.ProductDetail, error) {
	if s.err != nil {
		return services.ProductDetail{}, s.err
	}
	detail, ok := s.products[productID]
	if !ok {
		return services.ProductDetail{}, services.ErrCatalogNotFound
	}
	return detail, nil
}

func (s *stubCatalogService) ListZones(context.Context) ([]services.DeliveryZone, error) {
	return nil, s.err
}

func newMenuRouter(svc services.CatalogService) chi.Router {
	router := chi.NewRouter()
	NewMenuHandlers(svc).Routes(router)
	return router
}

func sampleCatalog() *stubCatalogService {
	return &stubCatalogService{
		products: map[int64]services.ProductDetail{
			4: {
				Product: services.Product{
					ID: 4, Name: "Batido", Price: 180, Section: "Bebidas", Stock: 3,
					HasParameters: true, HasAddOns: true,
					Parameters: []services.ProductParameter{{Name: "Mango", AvailableQuantity: 2}},
				},
				AddOns: []services.AddOn{{ID: 11, Name: "Leche condensada", Price: 30}},
			},
		},
		sections: []services.Section{{Name: "Bebidas", Order: 1}, {Name: "Postres", Order: 2}},
	}
}

func TestMenuHandlersListProductsPassesSection(t *testing.T) {
	catalog := sampleCatalog()
	rr := httptest.NewRecorder()
	newMenuRouter(catalog).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/menu?section=+Bebidas+", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if catalog.section != "Bebidas" {
		t.Fatalf("expected trimmed section filter, got %q", catalog.section)
	}
	body := decodeBody[struct {
		Products []productPayload `json:"products"`
	}](t, rr)
	if len(body.Products) != 1 || body.Products[0].Parameters[0].AvailableQuantity != 2 {
		t.Fatalf("unexpected products %+v", body.Products)
	}
}

func TestMenuHandlersSectionsInOrder(t *testing.T) {
	rr := httptest.NewRecorder()
	newMenuRouter(sampleCatalog()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/sections", nil))

	body := decodeBody[struct {
		Sections []string `json:"sections"`
	}](t, rr)
	if len(body.Sections) != 2 || body.Sections[0] != "Bebidas" {
		t.Fatalf("unexpected sections %v", body.Sections)
	}
}

func TestMenuHandlersProductDetail(t *testing.T) {
	router := newMenuRouter(sampleCatalog())

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/products/4", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	detail := decodeBody[productDetailPayload](t, rr)
	if detail.Product.Name != "Batido" || len(detail.AddOns) != 1 || detail.ExtraCharges == nil {
		t.Fatalf("unexpected detail %+v", detail)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/products/99", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/products/-1", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestMenuHandlersUnavailableCatalog(t *testing.T) {
	catalog := &stubCatalogService{err: services.ErrCatalogUnavailable}
	rr := httptest.NewRecorder()
	newMenuRouter(catalog).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/menu", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}
