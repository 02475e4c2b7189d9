package catalog

import (
	"context"
	"time"

	"github.com/tendant/simple-catalog/pkg/catalog/media"
	"github.com/tendant/simple-catalog/pkg/catalog/storage"
)

// BlobStore is the object storage contract, re-exported for callers that
// only import this package.
type BlobStore = storage.BlobStore

// Repository defines the interface for product and order persistence
type Repository interface {
	// Product operations. CreateProduct assigns product.ID.
	CreateProduct(ctx context.Context, product *Product) error
	GetProduct(ctx context.Context, id int64) (*Product, error)
	UpdateProduct(ctx context.Context, product *Product) error
	DeleteProduct(ctx context.Context, id int64) error
	ListProducts(ctx context.Context, filter ProductFilter) ([]*Product, int, error)
	ListCategories(ctx context.Context) ([]string, error)

	// Order operations. CreateOrder assigns ids to the order and its items
	// when they are zero.
	CreateOrder(ctx context.Context, order *Order) error
	GetOrder(ctx context.Context, id int64) (*Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]*Order, error)
}

// MediaResolver turns stored image references into client URLs.
// *media.Resolver implements it.
type MediaResolver interface {
	Resolve(ctx context.Context, imageReference string, now time.Time) (*media.Resolution, error)
	ResolveAll(ctx context.Context, refs []string, now time.Time) ([]*media.Resolution, error)
}

// EventSink defines the interface for catalog change notifications
type EventSink interface {
	// ProductChanged is fired when a product is created or updated
	ProductChanged(ctx context.Context, product *Product) error

	// ProductDeleted is fired when a product is deleted
	ProductDeleted(ctx context.Context, productID int64) error

	// OrderCreated is fired when an order is placed
	OrderCreated(ctx context.Context, order *Order) error
}
