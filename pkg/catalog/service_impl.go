package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/shopspring/decimal"

	"github.com/tendant/simple-catalog/pkg/catalog/media"
	"github.com/tendant/simple-catalog/pkg/catalog/objectkey"
	"github.com/tendant/simple-catalog/pkg/catalog/storage"
)

// DefaultReleaseDelay is how long a freshly uploaded image stays behind the placeholder.
const DefaultReleaseDelay = 5 * 24 * time.Hour

// service implements the Service interface
type service struct {
	repository   Repository
	resolver     MediaResolver
	images       BlobStore
	eventSink    EventSink
	hooks        *HookRunner
	keyGen       objectkey.Generator
	now          func() time.Time
	logger       *slog.Logger
	releaseDelay time.Duration
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithMediaResolver sets the resolver used to build ProductView image URLs
func WithMediaResolver(resolver MediaResolver) Option {
	return func(s *service) {
		s.resolver = resolver
	}
}

// WithBlobStore sets the primary image store used by uploads
func WithBlobStore(store BlobStore) Option {
	return func(s *service) {
		s.images = store
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithHooks installs lifecycle hooks
func WithHooks(hooks *Hooks) Option {
	return func(s *service) {
		s.hooks = NewHookRunner(hooks)
	}
}

// WithKeyGenerator overrides how uploaded image keys are built
func WithKeyGenerator(gen objectkey.Generator) Option {
	return func(s *service) {
		s.keyGen = gen
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithReleaseDelay sets how far in the future uploaded images are released
func WithReleaseDelay(d time.Duration) Option {
	return func(s *service) {
		s.releaseDelay = d
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		eventSink:    NewNoopEventSink(),
		hooks:        NewHookRunner(nil),
		keyGen:       objectkey.NewFlatGenerator(),
		now:          func() time.Time { return time.Now().UTC() },
		logger:       slog.Default(),
		releaseDelay: DefaultReleaseDelay,
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.eventSink == nil {
		s.eventSink = NewNoopEventSink()
	}

	return s, nil
}

// Product operations

func (s *service) ListProducts(ctx context.Context, params QueryParameters) (*PagedResult[ProductView], error) {
	q := params.Normalize()

	products, total, err := s.repository.ListProducts(ctx, ProductFilter{
		Category: q.FilterText,
		Offset:   q.StartIndex,
		Limit:    q.PageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	views, err := s.toViews(ctx, products)
	if err != nil {
		return nil, err
	}

	return &PagedResult[ProductView]{
		Items:      views,
		TotalCount: total,
		PageSize:   q.PageSize,
		PageNumber: q.PageNumber,
	}, nil
}

func (s *service) GetProduct(ctx context.Context, id int64) (*ProductView, error) {
	product, err := s.repository.GetProduct(ctx, id)
	if err != nil {
		return nil, &ProductError{ProductID: id, Op: "get", Err: err}
	}

	views, err := s.toViews(ctx, []*Product{product})
	if err != nil {
		return nil, &ProductError{ProductID: id, Op: "resolve image", Err: err}
	}
	return &views[0], nil
}

func (s *service) ListCategories(ctx context.Context) ([]string, error) {
	categories, err := s.repository.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	sort.Strings(categories)
	return categories, nil
}

func (s *service) CreateProduct(ctx context.Context, req CreateProductRequest) (*Product, error) {
	if err := validateProduct("", req.Name, req.Price); err != nil {
		return nil, err
	}
	return s.insertProduct(ctx, req)
}

func (s *service) CreateProducts(ctx context.Context, reqs []CreateProductRequest) ([]*Product, error) {
	if len(reqs) == 0 {
		return nil, &ValidationError{Field: "products", Message: "at least one product is required", Err: ErrInvalidProduct}
	}
	for i, req := range reqs {
		if err := validateProduct(fmt.Sprintf("products[%d].", i), req.Name, req.Price); err != nil {
			return nil, err
		}
	}

	created := make([]*Product, 0, len(reqs))
	for _, req := range reqs {
		product, err := s.insertProduct(ctx, req)
		if err != nil {
			return created, err
		}
		created = append(created, product)
	}
	return created, nil
}

func (s *service) insertProduct(ctx context.Context, req CreateProductRequest) (*Product, error) {
	now := s.now()
	product := &Product{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Price:       req.Price,
		Category:    strings.TrimSpace(req.Category),
		ImageURL:    req.ImageURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repository.CreateProduct(ctx, product); err != nil {
		s.hooks.RunOnError(ctx, "create product", err)
		return nil, &ProductError{Op: "create", Err: err}
	}

	if err := s.hooks.RunAfterProductCreate(ctx, product); err != nil {
		s.logger.WarnContext(ctx, "after product create hook failed", "id", product.ID, "err", err)
	}
	s.notify(ctx, "product changed", func() error { return s.eventSink.ProductChanged(ctx, product) })

	return product, nil
}

func (s *service) UpdateProduct(ctx context.Context, req UpdateProductRequest) (*Product, error) {
	if err := validateProduct("", req.Name, req.Price); err != nil {
		return nil, err
	}

	existing, err := s.repository.GetProduct(ctx, req.ID)
	if err != nil {
		return nil, &ProductError{ProductID: req.ID, Op: "update", Err: err}
	}

	existing.Name = strings.TrimSpace(req.Name)
	existing.Description = req.Description
	existing.Price = req.Price
	if existing.ImageURL != req.ImageURL {
		existing.ImageURL = req.ImageURL
	}
	existing.UpdatedAt = s.now()

	if err := s.repository.UpdateProduct(ctx, existing); err != nil {
		s.hooks.RunOnError(ctx, "update product", err)
		return nil, &ProductError{ProductID: req.ID, Op: "update", Err: err}
	}

	s.notify(ctx, "product changed", func() error { return s.eventSink.ProductChanged(ctx, existing) })
	return existing, nil
}

func (s *service) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.repository.DeleteProduct(ctx, id); err != nil {
		return &ProductError{ProductID: id, Op: "delete", Err: err}
	}
	s.notify(ctx, "product deleted", func() error { return s.eventSink.ProductDeleted(ctx, id) })
	return nil
}

// Image operations

func (s *service) UploadProductImages(ctx context.Context, images []ProductImage) ([]UploadedImage, error) {
	if len(images) == 0 {
		return nil, ErrNoImages
	}
	if s.images == nil {
		return nil, fmt.Errorf("%w: no image store configured", ErrUploadFailed)
	}
	for i, img := range images {
		if len(img.Image) == 0 {
			return nil, &ValidationError{Field: fmt.Sprintf("images[%d].image", i), Message: "image data is empty", Err: ErrInvalidImage}
		}
	}

	uploaded := make([]UploadedImage, 0, len(images))
	for _, img := range images {
		contentType := mimetype.Detect(img.Image).String()
		key := s.keyGen.GenerateKey(uuid.New(), &objectkey.KeyMetadata{
			FileName:    img.ImageURL,
			ContentType: contentType,
		})
		releaseDate := s.now().Add(s.releaseDelay)

		err := s.images.Upload(ctx, bytes.NewReader(img.Image), storage.UploadParams{
			ObjectKey: key,
			MimeType:  contentType,
			Metadata:  map[string]string{media.ReleaseDateKey: media.FormatReleaseDate(releaseDate)},
		})
		if err != nil {
			s.hooks.RunOnError(ctx, "upload image", err)
			return uploaded, fmt.Errorf("%w: %s: %w", ErrUploadFailed, key, err)
		}

		result := UploadedImage{
			Key:         key,
			SourceName:  img.ImageURL,
			ContentType: contentType,
			Size:        int64(len(img.Image)),
			ReleaseDate: releaseDate,
		}
		uploaded = append(uploaded, result)

		if err := s.hooks.RunAfterImageUpload(ctx, result); err != nil {
			s.logger.WarnContext(ctx, "after image upload hook failed", "key", key, "err", err)
		}
	}

	return uploaded, nil
}

// Order operations

func (s *service) ListOrders(ctx context.Context, userID string) ([]*Order, error) {
	if userID == "" {
		return nil, &ValidationError{Field: "userId", Message: "user is required", Err: ErrInvalidOrder}
	}
	orders, err := s.repository.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (s *service) GetOrder(ctx context.Context, id int64, userID string) (*Order, error) {
	order, err := s.repository.GetOrder(ctx, id)
	if err != nil {
		return nil, &OrderError{OrderID: id, Op: "get", Err: err}
	}
	if order.UserID != userID {
		return nil, &OrderError{OrderID: id, Op: "get", Err: ErrOrderNotFound}
	}
	return order, nil
}

func (s *service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if req.UserID == "" {
		return nil, &ValidationError{Field: "userId", Message: "user is required", Err: ErrInvalidOrder}
	}

	order := &Order{
		UserID:    req.UserID,
		Total:     req.Total,
		CreatedAt: s.now(),
		Items:     make([]OrderItem, 0, len(req.Items)),
	}

	sum := decimal.Zero
	for i, item := range req.Items {
		field := fmt.Sprintf("items[%d]", i)
		if item.Quantity <= 0 {
			return nil, &ValidationError{Field: field + ".quantity", Message: "must be positive", Err: ErrInvalidOrder}
		}
		product, err := s.repository.GetProduct(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, ErrProductNotFound) {
				return nil, &ValidationError{Field: field + ".productId", Message: "product does not exist", Err: ErrInvalidOrder}
			}
			return nil, fmt.Errorf("create order: %w", err)
		}

		unitPrice := item.Price
		if unitPrice.IsZero() {
			unitPrice = product.Price
		}
		order.Items = append(order.Items, OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: unitPrice,
		})
		sum = sum.Add(unitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	if order.Total.IsZero() {
		order.Total = sum
	}

	if err := s.repository.CreateOrder(ctx, order); err != nil {
		s.hooks.RunOnError(ctx, "create order", err)
		return nil, &OrderError{Op: "create", Err: err}
	}

	s.notify(ctx, "order created", func() error { return s.eventSink.OrderCreated(ctx, order) })
	return order, nil
}

// Helpers

// toViews maps products to views and resolves their images in one batch.
// Products without an image reference keep an empty ImageURL.
func (s *service) toViews(ctx context.Context, products []*Product) ([]ProductView, error) {
	views := make([]ProductView, len(products))
	refs := make([]string, 0, len(products))
	idx := make([]int, 0, len(products))

	for i, p := range products {
		if err := copier.Copy(&views[i], p); err != nil {
			return nil, fmt.Errorf("map product %d: %w", p.ID, err)
		}
		if p.ImageURL != "" {
			refs = append(refs, p.ImageURL)
			idx = append(idx, i)
		}
	}

	if s.resolver == nil || len(refs) == 0 {
		return views, nil
	}

	resolved, err := s.resolver.ResolveAll(ctx, refs, s.now())
	if err != nil {
		return nil, err
	}
	for j, res := range resolved {
		v := &views[idx[j]]
		expiresAt := res.ExpiresAt
		v.ImageKey = res.Key
		v.ImageURL = res.URL
		v.ImageKind = res.Kind
		v.ImageExpiresAt = &expiresAt
	}
	return views, nil
}

func (s *service) notify(ctx context.Context, event string, fire func() error) {
	if err := fire(); err != nil {
		s.logger.ErrorContext(ctx, "event sink failed", "event", event, "err", err)
	}
}

func validateProduct(prefix, name string, price decimal.Decimal) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Field: prefix + "name", Message: "name is required", Err: ErrInvalidProduct}
	}
	if price.IsNegative() {
		return &ValidationError{Field: prefix + "price", Message: "price must not be negative", Err: ErrInvalidProduct}
	}
	return nil
}
