// Package client is a typed HTTP client for the catalog API, used by web
// front ends and tooling.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"golang.org/x/oauth2"

	"github.com/tendant/simple-catalog/pkg/catalog"
)

// APIError is a non-2xx response
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("catalog api: %d %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the API
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client calls the catalog API
type Client struct {
	baseURL    string
	httpClient *http.Client
	source     oauth2.TokenSource
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets the http.Client whose transport AuthTransport wraps
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTokenSource authenticates requests that carry no session token
func WithTokenSource(src oauth2.TokenSource) Option {
	return func(c *Client) {
		c.source = src
	}
}

// New creates a client for the API at baseURL
func New(baseURL string, opts ...Option) (*Client, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}

	hc := *c.httpClient
	hc.Transport = &AuthTransport{Source: c.source, Base: hc.Transport}
	c.httpClient = &hc
	return c, nil
}

// Products

func (c *Client) ListProducts(ctx context.Context, params catalog.QueryParameters) (*catalog.PagedResult[catalog.ProductView], error) {
	q := url.Values{}
	if params.StartIndex > 0 {
		q.Set("start", strconv.Itoa(params.StartIndex))
	}
	if params.PageNumber > 0 {
		q.Set("page", strconv.Itoa(params.PageNumber))
	}
	if params.PageSize > 0 {
		q.Set("size", strconv.Itoa(params.PageSize))
	}
	if params.FilterText != "" {
		q.Set("category", params.FilterText)
	}
	var page catalog.PagedResult[catalog.ProductView]
	if err := c.do(ctx, http.MethodGet, "/products?"+q.Encode(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) GetProduct(ctx context.Context, id int64) (*catalog.ProductView, error) {
	var view catalog.ProductView
	if err := c.do(ctx, http.MethodGet, "/products/"+strconv.FormatInt(id, 10), nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *Client) ListCategories(ctx context.Context) ([]string, error) {
	var categories []string
	if err := c.do(ctx, http.MethodGet, "/products/categories", nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

func (c *Client) CreateProduct(ctx context.Context, req catalog.CreateProductRequest) (*catalog.Product, error) {
	var product catalog.Product
	if err := c.do(ctx, http.MethodPost, "/products/create", req, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (c *Client) CreateProducts(ctx context.Context, reqs []catalog.CreateProductRequest) ([]*catalog.Product, error) {
	var products []*catalog.Product
	if err := c.do(ctx, http.MethodPost, "/products/create/bulk", reqs, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// ImportProductsCSV sends reqs as a CSV document to the bulk endpoint
func (c *Client) ImportProductsCSV(ctx context.Context, reqs []catalog.CreateProductRequest) ([]*catalog.Product, error) {
	body, err := gocsv.MarshalBytes(&reqs)
	if err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	var products []*catalog.Product
	if err := c.send(ctx, http.MethodPost, "/products/create/bulk", "text/csv", bytes.NewReader(body), &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *Client) UpdateProduct(ctx context.Context, req catalog.UpdateProductRequest) (*catalog.Product, error) {
	var product catalog.Product
	if err := c.do(ctx, http.MethodPut, "/products", req, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (c *Client) DeleteProduct(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/products/"+strconv.FormatInt(id, 10), nil, nil)
}

func (c *Client) UploadImages(ctx context.Context, images []catalog.ProductImage) ([]catalog.UploadedImage, error) {
	var uploaded []catalog.UploadedImage
	if err := c.do(ctx, http.MethodPost, "/products/upload/images", images, &uploaded); err != nil {
		return nil, err
	}
	return uploaded, nil
}

// Orders

func (c *Client) ListOrders(ctx context.Context) ([]*catalog.Order, error) {
	var orders []*catalog.Order
	if err := c.do(ctx, http.MethodGet, "/orders", nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *Client) GetOrder(ctx context.Context, id int64) (*catalog.Order, error) {
	var order catalog.Order
	if err := c.do(ctx, http.MethodGet, "/orders/"+strconv.FormatInt(id, 10), nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) CreateOrder(ctx context.Context, req catalog.CreateOrderRequest) (*catalog.Order, error) {
	var order catalog.Order
	if err := c.do(ctx, http.MethodPost, "/orders", req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.send(ctx, method, path, contentType, body, out)
}

func (c *Client) send(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		apiErr.Message = body.Error
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}
