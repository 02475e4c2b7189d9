package catalog

import "context"

// Service defines the catalog operations exposed to the API layer
type Service interface {
	// Product operations
	ListProducts(ctx context.Context, params QueryParameters) (*PagedResult[ProductView], error)
	GetProduct(ctx context.Context, id int64) (*ProductView, error)
	ListCategories(ctx context.Context) ([]string, error)
	CreateProduct(ctx context.Context, req CreateProductRequest) (*Product, error)
	CreateProducts(ctx context.Context, reqs []CreateProductRequest) ([]*Product, error)
	UpdateProduct(ctx context.Context, req UpdateProductRequest) (*Product, error)
	DeleteProduct(ctx context.Context, id int64) error

	// Image operations
	UploadProductImages(ctx context.Context, images []ProductImage) ([]UploadedImage, error)

	// Order operations
	ListOrders(ctx context.Context, userID string) ([]*Order, error)
	GetOrder(ctx context.Context, id int64, userID string) (*Order, error)
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error)
}
