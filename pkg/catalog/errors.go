package catalog

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrProductNotFound indicates a product was not found
	ErrProductNotFound = errors.New("product not found")

	// ErrProductInUse indicates a product is still referenced by an order
	ErrProductInUse = errors.New("product is referenced by an order")

	// ErrOrderNotFound indicates an order was not found or belongs to another user
	ErrOrderNotFound = errors.New("order not found")

	// ErrInvalidProduct indicates a product failed validation
	ErrInvalidProduct = errors.New("invalid product")

	// ErrInvalidOrder indicates an order failed validation
	ErrInvalidOrder = errors.New("invalid order")

	// ErrNoImages indicates an upload request carried no images
	ErrNoImages = errors.New("no images provided for upload")

	// ErrInvalidImage indicates an image payload was empty
	ErrInvalidImage = errors.New("invalid image")

	// ErrUploadFailed indicates an image could not be written to storage
	ErrUploadFailed = errors.New("upload failed")
)

// ProductError represents an error related to product operations
type ProductError struct {
	ProductID int64
	Op        string
	Err       error
}

func (e *ProductError) Error() string {
	return fmt.Sprintf("product operation %s failed for product %d: %v", e.Op, e.ProductID, e.Err)
}

func (e *ProductError) Unwrap() error {
	return e.Err
}

// OrderError represents an error related to order operations
type OrderError struct {
	OrderID int64
	Op      string
	Err     error
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("order operation %s failed for order %d: %v", e.Op, e.OrderID, e.Err)
}

func (e *OrderError) Unwrap() error {
	return e.Err
}

// ValidationError names the offending field
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
