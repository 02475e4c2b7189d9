package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/tendant/simple-catalog/pkg/catalog"
)

// Repository implements catalog.Repository using in-memory storage
type Repository struct {
	mu            sync.RWMutex
	products      map[int64]*catalog.Product
	orders        map[int64]*catalog.Order
	nextProductID int64
	nextOrderID   int64
	nextItemID    int64
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		products: make(map[int64]*catalog.Product),
		orders:   make(map[int64]*catalog.Order),
	}
}

// Product operations

func (r *Repository) CreateProduct(ctx context.Context, product *catalog.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if product.ID == 0 {
		r.nextProductID++
		product.ID = r.nextProductID
	} else if product.ID > r.nextProductID {
		r.nextProductID = product.ID
	}

	// Store a copy to avoid external modifications
	productCopy := *product
	r.products[product.ID] = &productCopy
	return nil
}

func (r *Repository) GetProduct(ctx context.Context, id int64) (*catalog.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, exists := r.products[id]
	if !exists {
		return nil, catalog.ErrProductNotFound
	}
	productCopy := *product
	return &productCopy, nil
}

func (r *Repository) UpdateProduct(ctx context.Context, product *catalog.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.products[product.ID]; !exists {
		return catalog.ErrProductNotFound
	}
	productCopy := *product
	r.products[product.ID] = &productCopy
	return nil
}

func (r *Repository) DeleteProduct(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.products[id]; !exists {
		return catalog.ErrProductNotFound
	}
	for _, o := range r.orders {
		for _, item := range o.Items {
			if item.ProductID == id {
				return catalog.ErrProductInUse
			}
		}
	}
	delete(r.products, id)
	return nil
}

// ListProducts returns products ordered by id
func (r *Repository) ListProducts(ctx context.Context, filter catalog.ProductFilter) ([]*catalog.Product, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*catalog.Product
	for _, p := range r.products {
		if filter.Category == "" || p.Category == filter.Category {
			matched = append(matched, p)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := len(matched)
	start := min(max(filter.Offset, 0), total)
	end := total
	if filter.Limit > 0 {
		end = min(start+filter.Limit, total)
	}

	page := make([]*catalog.Product, 0, end-start)
	for _, p := range matched[start:end] {
		productCopy := *p
		page = append(page, &productCopy)
	}
	return page, total, nil
}

func (r *Repository) ListCategories(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	categories := []string{}
	for _, p := range r.products {
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		categories = append(categories, p.Category)
	}
	sort.Strings(categories)
	return categories, nil
}

// Order operations

func (r *Repository) CreateOrder(ctx context.Context, order *catalog.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if order.ID == 0 {
		r.nextOrderID++
		order.ID = r.nextOrderID
	}
	for i := range order.Items {
		if order.Items[i].ID == 0 {
			r.nextItemID++
			order.Items[i].ID = r.nextItemID
		}
	}

	r.orders[order.ID] = copyOrder(order)
	return nil
}

func (r *Repository) GetOrder(ctx context.Context, id int64) (*catalog.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, exists := r.orders[id]
	if !exists {
		return nil, catalog.ErrOrderNotFound
	}
	return copyOrder(order), nil
}

// ListOrdersByUser returns the user's orders, oldest first
func (r *Repository) ListOrdersByUser(ctx context.Context, userID string) ([]*catalog.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orders := []*catalog.Order{}
	for _, o := range r.orders {
		if o.UserID == userID {
			orders = append(orders, copyOrder(o))
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
	return orders, nil
}

func copyOrder(o *catalog.Order) *catalog.Order {
	orderCopy := *o
	orderCopy.Items = append([]catalog.OrderItem(nil), o.Items...)
	return &orderCopy
}

var _ catalog.Repository = (*Repository)(nil)
