package catalog

import "github.com/shopspring/decimal"

// Request DTOs

// CreateProductRequest contains parameters for creating a product
type CreateProductRequest struct {
	Name        string          `json:"name" csv:"name"`
	Description string          `json:"description" csv:"description"`
	Price       decimal.Decimal `json:"price" csv:"price"`
	Category    string          `json:"category" csv:"category"`
	ImageURL    string          `json:"imageUrl" csv:"image_url"`
}

// UpdateProductRequest contains parameters for updating a product. Category
// is not updatable.
type UpdateProductRequest struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"imageUrl"`
}

// CreateOrderRequest contains parameters for creating an order. A zero
// Total is computed from the items.
type CreateOrderRequest struct {
	UserID string                   `json:"userId"`
	Total  decimal.Decimal          `json:"total"`
	Items  []CreateOrderItemRequest `json:"items"`
}

// CreateOrderItemRequest is one line of a CreateOrderRequest
type CreateOrderItemRequest struct {
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}
