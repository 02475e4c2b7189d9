package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-catalog/pkg/catalog"
)

//go:embed schema.sql
var schemaSQL string

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// TxBeginner is implemented by *pgxpool.Pool and pgx.Tx
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository implements catalog.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// Migrate creates the catalog tables and change-notification triggers
// in the current search_path. It is idempotent.
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply catalog schema: %w", err)
	}
	return nil
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: duplicate entry (%s)", operation, pgErr.ConstraintName)
		case "23503": // foreign_key_violation
			// On delete the violating row is the referencing one, so the
			// target still exists.
			if strings.HasPrefix(operation, "delete") {
				return fmt.Errorf("%s: %w", operation, catalog.ErrProductInUse)
			}
			if strings.Contains(pgErr.ConstraintName, "product") {
				return fmt.Errorf("%s: %w", operation, catalog.ErrProductNotFound)
			}
			return fmt.Errorf("%s: referenced record not found", operation)
		case "23502": // not_null_violation
			return fmt.Errorf("%s: required field %s is missing", operation, pgErr.ColumnName)
		case "23514": // check_violation
			return fmt.Errorf("%s: %w: %s", operation, catalog.ErrInvalidOrder, pgErr.ConstraintName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

var productColumns = []string{"id", "name", "description", "price", "category", "image_url", "created_at", "updated_at"}

func scanProduct(row pgx.Row) (*catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Category, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Product operations

func (r *Repository) CreateProduct(ctx context.Context, product *catalog.Product) error {
	query := `
		INSERT INTO products (name, description, price, category, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		product.Name, product.Description, product.Price, product.Category,
		product.ImageURL, product.CreatedAt, product.UpdatedAt).Scan(&product.ID)
	if err != nil {
		return r.handlePostgresError("create product", err)
	}
	return nil
}

func (r *Repository) GetProduct(ctx context.Context, id int64) (*catalog.Product, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(productColumns...).From("products").Where(sb.Equal("id", id))
	query, args := sb.Build()

	product, err := scanProduct(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, r.handlePostgresError("get product", err)
	}
	return product, nil
}

func (r *Repository) UpdateProduct(ctx context.Context, product *catalog.Product) error {
	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("products").
		Set(
			ub.Assign("name", product.Name),
			ub.Assign("description", product.Description),
			ub.Assign("price", product.Price),
			ub.Assign("category", product.Category),
			ub.Assign("image_url", product.ImageURL),
			ub.Assign("updated_at", product.UpdatedAt),
		).
		Where(ub.Equal("id", product.ID))
	query, args := ub.Build()

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return r.handlePostgresError("update product", err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrProductNotFound
	}
	return nil
}

func (r *Repository) DeleteProduct(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete product", err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrProductNotFound
	}
	return nil
}

// productListQueries builds the page and count queries for a filter
func productListQueries(filter catalog.ProductFilter) (string, []interface{}, string, []interface{}) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(productColumns...).From("products")
	if filter.Category != "" {
		sb.Where(sb.Equal("category", filter.Category))
	}
	sb.OrderBy("id").Asc()
	if filter.Limit > 0 {
		sb.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		sb.Offset(filter.Offset)
	}
	pageSQL, pageArgs := sb.Build()

	cb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	cb.Select("COUNT(*)").From("products")
	if filter.Category != "" {
		cb.Where(cb.Equal("category", filter.Category))
	}
	countSQL, countArgs := cb.Build()

	return pageSQL, pageArgs, countSQL, countArgs
}

func (r *Repository) ListProducts(ctx context.Context, filter catalog.ProductFilter) ([]*catalog.Product, int, error) {
	pageSQL, pageArgs, countSQL, countArgs := productListQueries(filter)

	var total int
	if err := r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, r.handlePostgresError("count products", err)
	}

	rows, err := r.db.Query(ctx, pageSQL, pageArgs...)
	if err != nil {
		return nil, 0, r.handlePostgresError("list products", err)
	}
	defer rows.Close()

	products := []*catalog.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, r.handlePostgresError("scan product", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, r.handlePostgresError("list products", err)
	}
	return products, total, nil
}

func (r *Repository) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT category FROM products ORDER BY category`)
	if err != nil {
		return nil, r.handlePostgresError("list categories", err)
	}
	categories, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, r.handlePostgresError("list categories", err)
	}
	return categories, nil
}

// Order operations

// CreateOrder inserts the order and its items in one transaction when the
// underlying DBTX can begin one.
func (r *Repository) CreateOrder(ctx context.Context, order *catalog.Order) error {
	if beginner, ok := r.db.(TxBeginner); ok {
		tx, err := beginner.Begin(ctx)
		if err != nil {
			return r.handlePostgresError("begin create order", err)
		}
		defer tx.Rollback(ctx)

		if err := insertOrder(ctx, tx, order); err != nil {
			return r.handlePostgresError("create order", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return r.handlePostgresError("commit create order", err)
		}
		return nil
	}

	if err := insertOrder(ctx, r.db, order); err != nil {
		return r.handlePostgresError("create order", err)
	}
	return nil
}

func insertOrder(ctx context.Context, db DBTX, order *catalog.Order) error {
	err := db.QueryRow(ctx,
		`INSERT INTO orders (user_id, total, created_at) VALUES ($1, $2, $3) RETURNING id`,
		order.UserID, order.Total, order.CreatedAt).Scan(&order.ID)
	if err != nil {
		return err
	}

	for i := range order.Items {
		item := &order.Items[i]
		err := db.QueryRow(ctx,
			`INSERT INTO order_items (order_id, product_id, quantity, unit_price) VALUES ($1, $2, $3, $4) RETURNING id`,
			order.ID, item.ProductID, item.Quantity, item.UnitPrice).Scan(&item.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) GetOrder(ctx context.Context, id int64) (*catalog.Order, error) {
	var order catalog.Order
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, total, created_at FROM orders WHERE id = $1`, id).
		Scan(&order.ID, &order.UserID, &order.Total, &order.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrOrderNotFound
		}
		return nil, r.handlePostgresError("get order", err)
	}

	items, err := r.orderItems(ctx, []int64{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]
	if order.Items == nil {
		order.Items = []catalog.OrderItem{}
	}
	return &order, nil
}

func (r *Repository) ListOrdersByUser(ctx context.Context, userID string) ([]*catalog.Order, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, total, created_at FROM orders WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, r.handlePostgresError("list orders", err)
	}
	defer rows.Close()

	orders := []*catalog.Order{}
	var ids []int64
	for rows.Next() {
		var o catalog.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.Total, &o.CreatedAt); err != nil {
			return nil, r.handlePostgresError("scan order", err)
		}
		orders = append(orders, &o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list orders", err)
	}
	if len(ids) == 0 {
		return orders, nil
	}

	items, err := r.orderItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		o.Items = items[o.ID]
		if o.Items == nil {
			o.Items = []catalog.OrderItem{}
		}
	}
	return orders, nil
}

func (r *Repository) orderItems(ctx context.Context, orderIDs []int64) (map[int64][]catalog.OrderItem, error) {
	rows, err := r.db.Query(ctx,
		`SELECT order_id, id, product_id, quantity, unit_price FROM order_items WHERE order_id = ANY($1) ORDER BY id`,
		orderIDs)
	if err != nil {
		return nil, r.handlePostgresError("list order items", err)
	}
	defer rows.Close()

	items := make(map[int64][]catalog.OrderItem, len(orderIDs))
	for rows.Next() {
		var orderID int64
		var item catalog.OrderItem
		if err := rows.Scan(&orderID, &item.ID, &item.ProductID, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, r.handlePostgresError("scan order item", err)
		}
		items[orderID] = append(items[orderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list order items", err)
	}
	return items, nil
}

var _ catalog.Repository = (*Repository)(nil)
