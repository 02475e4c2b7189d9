package catalog

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tendant/simple-catalog/pkg/catalog/media"
)

// Pagination bounds applied by QueryParameters.Normalize.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Product is a catalog entry. ImageURL holds the storage object key of the
// product image, not a URL a client can fetch.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	ImageURL    string          `json:"imageUrl"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// ProductView is the client representation of a Product with ImageURL
// resolved to a signed URL.
type ProductView struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Price          decimal.Decimal `json:"price"`
	Category       string          `json:"category"`
	ImageURL       string          `json:"imageUrl"`
	ImageKey       string          `json:"imageKey,omitempty"`
	ImageKind      media.Kind      `json:"imageKind,omitempty"`
	ImageExpiresAt *time.Time      `json:"imageExpiresAt,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Order is a user's purchase.
type Order struct {
	ID        int64           `json:"id"`
	UserID    string          `json:"userId"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"createdAt"`
	Items     []OrderItem     `json:"items"`
}

// OrderItem is one product line of an Order.
type OrderItem struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// PagedResult is one page of a listing.
type PagedResult[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"totalCount"`
	PageSize   int `json:"pageSize"`
	PageNumber int `json:"pageNumber"`
}

// QueryParameters select a page of products. FilterText matches the
// category exactly; an empty filter matches every product.
type QueryParameters struct {
	StartIndex int    `json:"startIndex"`
	PageSize   int    `json:"pageSize"`
	PageNumber int    `json:"pageNumber"`
	FilterText string `json:"filterText"`
}

// Normalize applies the pagination defaults and bounds. A zero StartIndex
// is derived from PageNumber.
func (q QueryParameters) Normalize() QueryParameters {
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	if q.PageNumber <= 0 {
		q.PageNumber = 1
	}
	if q.StartIndex < 0 {
		q.StartIndex = 0
	}
	if q.StartIndex == 0 {
		q.StartIndex = (q.PageNumber - 1) * q.PageSize
	}
	return q
}

// ProductFilter is what the service asks of a Repository when listing.
type ProductFilter struct {
	Category string
	Offset   int
	Limit    int
}

// ProductImage is an image to upload. ImageURL is the client-side file name
// or URL; only its extension is kept.
type ProductImage struct {
	ImageURL string `json:"imageUrl"`
	Image    []byte `json:"image"`
}

// UploadedImage describes a stored product image.
type UploadedImage struct {
	Key         string    `json:"key"`
	SourceName  string    `json:"sourceName"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	ReleaseDate time.Time `json:"releaseDate"`
}
