// Package postgres reads the menu catalog from the storefront database.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	domain "github.com/menuboard/api/internal/domain"
	"github.com/menuboard/api/internal/repositories"
)

const defaultQueryTimeout = 5 * time.Second

const productColumns = `
  p.id, p.nombre, p.precio, COALESCE(up.cantidad, 0), COALESCE(p.foto, ''),
  p.tiene_parametros, COALESCE(p.seccion, ''), p.tiene_costo, p.tiene_agrego`

const listProductsQuery = `
SELECT` + productColumns + `
FROM productos p
JOIN usuario_productos up ON p.id = up.producto_id
WHERE up.cantidad > 0
  AND ($1 = '' OR p.seccion = $1)
ORDER BY p.nombre`

const productQuery = `
SELECT` + productColumns + `
FROM productos p
LEFT JOIN usuario_productos up ON p.id = up.producto_id
WHERE p.id = $1`

const parametersQuery = `
SELECT pp.producto_id, pp.nombre, upp.cantidad
FROM producto_parametros pp
JOIN usuario_producto_parametros upp
  ON pp.producto_id = upp.producto_id AND pp.nombre = upp.nombre
WHERE pp.producto_id = ANY($1) AND upp.cantidad > 0
ORDER BY pp.producto_id, pp.nombre`

const sectionsQuery = `
SELECT p.seccion, COALESCE(os.orden, 999)
FROM productos p
JOIN usuario_productos up ON p.id = up.producto_id
LEFT JOIN orden_seccion os ON os.seccion = p.seccion
WHERE up.cantidad > 0 AND COALESCE(p.seccion, '') <> ''
GROUP BY p.seccion, os.orden
ORDER BY COALESCE(os.orden, 999), p.seccion`

const addOnsQuery = `
SELECT id, nombre, precio FROM agregos WHERE producto_id = $1 ORDER BY id`

const extraChargesQuery = `
SELECT id, nombre, precio FROM costos WHERE producto_id = $1 ORDER BY id`

// CatalogRepository implements repositories.CatalogRepository on database/sql.
type CatalogRepository struct {
	db      *sql.DB
	timeout time.Duration
}

// Option customises the repository.
type Option func(*CatalogRepository)

// WithQueryTimeout bounds every catalog query.
func WithQueryTimeout(d time.Duration) Option {
	return func(r *CatalogRepository) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// Open connects to the catalog database and verifies the connection.
func Open(ctx context.Context, dsn string, maxOpenConns int) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return db, nil
}

// NewCatalogRepository wraps an open database handle.
func NewCatalogRepository(db *sql.DB, opts ...Option) *CatalogRepository {
	r := &CatalogRepository{db: db, timeout: defaultQueryTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// ListProducts returns in-stock products ordered by name, optionally for one section.
func (r *CatalogRepository) ListProducts(ctx context.Context, section string) ([]domain.Product, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, listProductsQuery, strings.TrimSpace(section))
	if err != nil {
		return nil, wrapError("catalog.ListProducts", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, wrapError("catalog.ListProducts", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("catalog.ListProducts", err)
	}
	if err := r.attachParameters(ctx, products); err != nil {
		return nil, err
	}
	if products == nil {
		products = []domain.Product{}
	}
	return products, nil
}

// ListSections returns non-empty sections in display order.
func (r *CatalogRepository) ListSections(ctx context.Context) ([]domain.Section, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, sectionsQuery)
	if err != nil {
		return nil, wrapError("catalog.ListSections", err)
	}
	defer rows.Close()

	sections := []domain.Section{}
	for rows.Next() {
		var s domain.Section
		if err := rows.Scan(&s.Name, &s.Order); err != nil {
			return nil, wrapError("catalog.ListSections", err)
		}
		sections = append(sections, s)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("catalog.ListSections", err)
	}
	return sections, nil
}

// GetProductDetail loads a product with its parameters, add-ons and extra charges.
func (r *CatalogRepository) GetProductDetail(ctx context.Context, productID int64) (domain.ProductDetail, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	product, err := scanProduct(r.db.QueryRowContext(ctx, productQuery, productID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ProductDetail{}, repositories.NewNotFoundError("catalog.GetProductDetail", fmt.Errorf("product %d not found", productID))
		}
		return domain.ProductDetail{}, wrapError("catalog.GetProductDetail", err)
	}
	products := []domain.Product{product}
	if err := r.attachParameters(ctx, products); err != nil {
		return domain.ProductDetail{}, err
	}

	detail := domain.ProductDetail{Product: products[0]}
	if product.HasAddOns {
		detail.AddOns, err = listPricedRows(ctx, r.db, addOnsQuery, productID, func(id int64, name string, price float64) domain.AddOn {
			return domain.AddOn{ID: id, Name: name, Price: price}
		})
		if err != nil {
			return domain.ProductDetail{}, wrapError("catalog.addOns", err)
		}
	}
	if product.HasExtraCharges {
		detail.ExtraCharges, err = listPricedRows(ctx, r.db, extraChargesQuery, productID, func(id int64, name string, price float64) domain.ExtraCharge {
			return domain.ExtraCharge{ID: id, Name: name, Price: price}
		})
		if err != nil {
			return domain.ProductDetail{}, wrapError("catalog.extraCharges", err)
		}
	}
	return detail, nil
}

// Ping checks connectivity.
func (r *CatalogRepository) Ping(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	var one int
	if err := r.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return wrapError("catalog.Ping", err)
	}
	return nil
}

func (r *CatalogRepository) attachParameters(ctx context.Context, products []domain.Product) error {
	ids := make([]int64, 0, len(products))
	index := make(map[int64][]int, len(products))
	for i, p := range products {
		if !p.HasParameters {
			continue
		}
		if _, seen := index[p.ID]; !seen {
			ids = append(ids, p.ID)
		}
		index[p.ID] = append(index[p.ID], i)
	}
	if len(ids) == 0 {
		return nil
	}

	rows, err := r.db.QueryContext(ctx, parametersQuery, pq.Array(ids))
	if err != nil {
		return wrapError("catalog.parameters", err)
	}
	defer rows.Close()

	for rows.Next() {
		var productID int64
		var param domain.ProductParameter
		if err := rows.Scan(&productID, &param.Name, &param.AvailableQuantity); err != nil {
			return wrapError("catalog.parameters", err)
		}
		for _, i := range index[productID] {
			products[i].Parameters = append(products[i].Parameters, param)
		}
	}
	if err := rows.Err(); err != nil {
		return wrapError("catalog.parameters", err)
	}
	return nil
}

func (r *CatalogRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Price, &p.Stock, &p.ImageURL,
		&p.HasParameters, &p.Section, &p.HasExtraCharges, &p.HasAddOns,
	)
	return p, err
}

func listPricedRows[T any](ctx context.Context, db *sql.DB, query string, productID int64, build func(int64, string, float64) T) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		var (
			id    int64
			name  string
			price float64
		)
		if err := rows.Scan(&id, &name, &price); err != nil {
			return nil, err
		}
		out = append(out, build(id, name, price))
	}
	return out, rows.Err()
}

var _ repositories.CatalogRepository = (*CatalogRepository)(nil)
