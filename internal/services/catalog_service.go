package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/menuboard/api/internal/repositories"
)

var errCatalogZonesRequired = errors.New("catalog service: zones are required")

// ErrCatalogUnavailable indicates no product database is configured or it failed.
var ErrCatalogUnavailable = errors.New("catalog service: unavailable")

// ErrCatalogNotFound indicates the product or zone does not exist.
var ErrCatalogNotFound = errors.New("catalog service: not found")

// ErrCatalogInvalidInput indicates a malformed lookup.
var ErrCatalogInvalidInput = errors.New("catalog service: invalid input")

// CatalogServiceDeps wires the read-only product and zone sources. Products may be nil.
type CatalogServiceDeps struct {
	Products repositories.CatalogRepository
	Zones    repositories.ZoneRepository
	Logger   func(context.Context, string, map[string]any)
}

type catalogService struct {
	products repositories.CatalogRepository
	zones    repositories.ZoneRepository
	logger   func(context.Context, string, map[string]any)
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Zones == nil {
		return nil, errCatalogZonesRequired
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &catalogService{products: deps.Products, zones: deps.Zones, logger: logger}, nil
}

func (s *catalogService) ListProducts(ctx context.Context, section string) ([]Product, error) {
	if s.products == nil {
		return nil, ErrCatalogUnavailable
	}
	products, err := s.products.ListProducts(ctx, strings.TrimSpace(section))
	if err != nil {
		return nil, s.translate(ctx, "list_products", err)
	}
	return products, nil
}

func (s *catalogService) ListSections(ctx context.Context) ([]Section, error) {
	if s.products == nil {
		return nil, ErrCatalogUnavailable
	}
	sections, err := s.products.ListSections(ctx)
	if err != nil {
		return nil, s.translate(ctx, "list_sections", err)
	}
	return sections, nil
}

func (s *catalogService) GetProduct(ctx context.Context, productID int64) (ProductDetail, error) {
	if productID <= 0 {
		return ProductDetail{}, fmt.Errorf("%w: product id must be positive", ErrCatalogInvalidInput)
	}
	if s.products == nil {
		return ProductDetail{}, ErrCatalogUnavailable
	}
	detail, err := s.products.GetProductDetail(ctx, productID)
	if err != nil {
		return ProductDetail{}, s.translate(ctx, "get_product", err)
	}
	return detail, nil
}

func (s *catalogService) ListZones(ctx context.Context) ([]DeliveryZone, error) {
	zones, err := s.zones.ListZones(ctx)
	if err != nil {
		return nil, s.translate(ctx, "list_zones", err)
	}
	return zones, nil
}

func (s *catalogService) translate(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return ErrCatalogNotFound
	}
	s.logger(ctx, "catalog_query_failed", map[string]any{"op": op, "error": err.Error()})
	return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
}
