package repositories

import (
	"context"

	domain "github.com/menuboard/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CartRepository persists per-session cart snapshots.
type CartRepository interface {
	GetCart(ctx context.Context, sessionID string) (domain.CartSnapshot, error)
	SaveCart(ctx context.Context, snapshot domain.CartSnapshot) error
	DeleteCart(ctx context.Context, sessionID string) error
}

// CatalogRepository reads products and sections from the menu database.
type CatalogRepository interface {
	ListProducts(ctx context.Context, section string) ([]domain.Product, error)
	ListSections(ctx context.Context) ([]domain.Section, error)
	GetProductDetail(ctx context.Context, productID int64) (domain.ProductDetail, error)
	Ping(ctx context.Context) error
}

// ZoneRepository exposes the static delivery zone table.
type ZoneRepository interface {
	ListZones(ctx context.Context) ([]domain.DeliveryZone, error)
	GetZone(ctx context.Context, zoneID string) (domain.DeliveryZone, error)
}
