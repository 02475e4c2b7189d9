package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-catalog/pkg/catalog"
)

func TestProductListQueries(t *testing.T) {
	pageSQL, pageArgs, countSQL, countArgs := productListQueries(catalog.ProductFilter{Category: "shoes", Offset: 20, Limit: 10})

	assert.Contains(t, pageSQL, "SELECT id, name, description, price, category, image_url, created_at, updated_at FROM products")
	assert.Contains(t, pageSQL, "WHERE category = $1")
	assert.Contains(t, pageSQL, "ORDER BY id ASC")
	assert.Contains(t, pageSQL, "LIMIT")
	assert.Contains(t, pageSQL, "OFFSET")
	assert.Equal(t, "shoes", pageArgs[0])

	assert.Equal(t, "SELECT COUNT(*) FROM products WHERE category = $1", countSQL)
	assert.Equal(t, []interface{}{"shoes"}, countArgs)

	pageSQL, _, countSQL, countArgs = productListQueries(catalog.ProductFilter{})
	assert.NotContains(t, pageSQL, "WHERE")
	assert.NotContains(t, pageSQL, "LIMIT")
	assert.Equal(t, "SELECT COUNT(*) FROM products", countSQL)
	assert.Empty(t, countArgs)
}

func TestHandlePostgresError_ForeignKeys(t *testing.T) {
	r := &Repository{}
	fk := &pgconn.PgError{Code: "23503", ConstraintName: "order_items_product_id_fkey"}

	err := r.handlePostgresError("delete product", fk)
	assert.ErrorIs(t, err, catalog.ErrProductInUse)
	assert.NotErrorIs(t, err, catalog.ErrProductNotFound)

	err = r.handlePostgresError("create order", fk)
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
}

// newTestRepository connects to TEST_DATABASE_URL and applies the schema in
// a throwaway schema. Tests are skipped when the variable is unset.
func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	schema := fmt.Sprintf("catalog_test_%d", time.Now().UnixNano())
	cfg, err := pgxpool.ParseConfig(dsn)
	require.NoError(t, err)
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", schema))
		return err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA %s", schema))
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), fmt.Sprintf("DROP SCHEMA %s CASCADE", schema))
		pool.Close()
	})

	require.NoError(t, Migrate(ctx, pool))
	require.NoError(t, Migrate(ctx, pool), "migration is idempotent")
	return NewWithPool(pool)
}

func TestRepository_Products(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	for _, p := range []*catalog.Product{
		{Name: "Trail Shoe", Category: "shoes", Price: decimal.RequireFromString("89.90"), ImageURL: "shoe1.png", CreatedAt: now, UpdatedAt: now},
		{Name: "Hat", Category: "hats", Price: decimal.RequireFromString("19"), CreatedAt: now, UpdatedAt: now},
		{Name: "Road Shoe", Category: "shoes", Price: decimal.RequireFromString("120"), CreatedAt: now, UpdatedAt: now},
	} {
		require.NoError(t, repo.CreateProduct(ctx, p))
		assert.NotZero(t, p.ID)
	}

	products, total, err := repo.ListProducts(ctx, catalog.ProductFilter{Category: "shoes", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, products, 1)
	assert.Equal(t, "Trail Shoe", products[0].Name)
	assert.True(t, decimal.RequireFromString("89.9").Equal(products[0].Price))

	products, _, err = repo.ListProducts(ctx, catalog.ProductFilter{Category: "shoes", Offset: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Road Shoe", products[0].Name)

	categories, err := repo.ListCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"hats", "shoes"}, categories)

	p := products[0]
	p.Name = "Road Shoe 2"
	require.NoError(t, repo.UpdateProduct(ctx, p))
	got, err := repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Road Shoe 2", got.Name)

	require.NoError(t, repo.DeleteProduct(ctx, p.ID))
	_, err = repo.GetProduct(ctx, p.ID)
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
	assert.ErrorIs(t, repo.DeleteProduct(ctx, p.ID), catalog.ErrProductNotFound)
	assert.ErrorIs(t, repo.UpdateProduct(ctx, p), catalog.ErrProductNotFound)
}

func TestRepository_Orders(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	product := &catalog.Product{Name: "Shoe", Price: decimal.RequireFromString("10"), CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.CreateProduct(ctx, product))

	order := &catalog.Order{
		UserID:    "alice",
		Total:     decimal.RequireFromString("20"),
		CreatedAt: now,
		Items:     []catalog.OrderItem{{ProductID: product.ID, Quantity: 2, UnitPrice: decimal.RequireFromString("10")}},
	}
	require.NoError(t, repo.CreateOrder(ctx, order))
	assert.NotZero(t, order.ID)
	assert.NotZero(t, order.Items[0].ID)

	got, err := repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.UserID)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 2, got.Items[0].Quantity)

	orders, err := repo.ListOrdersByUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Len(t, orders[0].Items, 1)

	orders, err = repo.ListOrdersByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, orders)

	_, err = repo.GetOrder(ctx, 999999)
	assert.ErrorIs(t, err, catalog.ErrOrderNotFound)

	bad := &catalog.Order{UserID: "alice", CreatedAt: now, Items: []catalog.OrderItem{{ProductID: 999999, Quantity: 1}}}
	assert.ErrorIs(t, repo.CreateOrder(ctx, bad), catalog.ErrProductNotFound)

	assert.ErrorIs(t, repo.DeleteProduct(ctx, product.ID), catalog.ErrProductInUse)
	_, err = repo.GetProduct(ctx, product.ID)
	assert.NoError(t, err)
}
