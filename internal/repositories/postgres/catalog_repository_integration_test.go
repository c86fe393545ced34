//go:build integration

package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/menuboard/api/internal/repositories"
	"github.com/menuboard/api/internal/repositories/postgres"
)

const schema = `
CREATE TEMP TABLE productos (
  id BIGINT PRIMARY KEY, nombre TEXT NOT NULL, precio DOUBLE PRECISION NOT NULL,
  foto TEXT, tiene_parametros BOOLEAN NOT NULL DEFAULT false, seccion TEXT,
  tiene_costo BOOLEAN NOT NULL DEFAULT false, tiene_agrego BOOLEAN NOT NULL DEFAULT false
);
CREATE TEMP TABLE usuario_productos (producto_id BIGINT, cantidad INT);
CREATE TEMP TABLE producto_parametros (producto_id BIGINT, nombre TEXT);
CREATE TEMP TABLE usuario_producto_parametros (producto_id BIGINT, nombre TEXT, cantidad INT);
CREATE TEMP TABLE orden_seccion (seccion TEXT, orden INT);
CREATE TEMP TABLE agregos (id BIGINT, producto_id BIGINT, nombre TEXT, precio DOUBLE PRECISION);
CREATE TEMP TABLE costos (id BIGINT, producto_id BIGINT, nombre TEXT, precio DOUBLE PRECISION);

INSERT INTO productos VALUES
  (1, 'Coffee', 100, 'coffee.jpg', false, 'Drinks', true, true),
  (2, 'Latte', 150, NULL, true, 'Drinks', false, false),
  (3, 'Muffin', 80, NULL, false, 'Bakery', false, false),
  (4, 'Sold out', 10, NULL, false, 'Bakery', false, false);
INSERT INTO usuario_productos VALUES (1, 5), (2, 3), (3, 2), (4, 0);
INSERT INTO producto_parametros VALUES (2, 'Large'), (2, 'Small'), (2, 'Medium');
INSERT INTO usuario_producto_parametros VALUES (2, 'Large', 2), (2, 'Small', 1), (2, 'Medium', 0);
INSERT INTO orden_seccion VALUES ('Bakery', 1);
INSERT INTO agregos VALUES (9, 1, 'Extra shot', 20);
INSERT INTO costos VALUES (1, 1, 'Cup', 3), (2, 1, 'Lid', 2);
`

func TestCatalogRepositoryIntegration(t *testing.T) {
	dsn := os.Getenv("MENU_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("MENU_TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// temp tables are per connection
	db, err := postgres.Open(ctx, dsn, 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.ExecContext(ctx, schema)
	require.NoError(t, err)

	repo := postgres.NewCatalogRepository(db, postgres.WithQueryTimeout(5*time.Second))
	require.NoError(t, repo.Ping(ctx))

	products, err := repo.ListProducts(ctx, "")
	require.NoError(t, err)
	require.Len(t, products, 3)
	require.Equal(t, "Coffee", products[0].Name)
	require.Equal(t, "Latte", products[1].Name)
	require.Len(t, products[1].Parameters, 2)
	require.Equal(t, "Large", products[1].Parameters[0].Name)

	drinks, err := repo.ListProducts(ctx, "Drinks")
	require.NoError(t, err)
	require.Len(t, drinks, 2)

	sections, err := repo.ListSections(ctx)
	require.NoError(t, err)
	require.Equal(t, "Bakery", sections[0].Name)
	require.Equal(t, "Drinks", sections[1].Name)
	require.Equal(t, 999, sections[1].Order)

	detail, err := repo.GetProductDetail(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 5, detail.Stock)
	require.Len(t, detail.AddOns, 1)
	require.Len(t, detail.ExtraCharges, 2)

	_, err = repo.GetProductDetail(ctx, 404)
	var repoErr repositories.RepositoryError
	require.ErrorAs(t, err, &repoErr)
	require.True(t, repoErr.IsNotFound())
}
