package api

import (
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/gocarina/gocsv"

	"github.com/tendant/simple-catalog/pkg/catalog"
)

// ProductHandler handles HTTP requests for products and their images
type ProductHandler struct {
	service catalog.Service
	logger  *slog.Logger
}

// NewProductHandler creates a new product handler
func NewProductHandler(service catalog.Service, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{service: service, logger: logger}
}

// ListProducts reads start, page, size and category from the query string
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var params catalog.QueryParameters
	var err error
	if params.StartIndex, err = intParam(q.Get("start")); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid start")
		return
	}
	if params.PageNumber, err = intParam(q.Get("page")); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid page")
		return
	}
	if params.PageSize, err = intParam(q.Get("size")); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid size")
		return
	}
	params.FilterText = q.Get("category")

	h.list(w, r, params)
}

// QueryProducts takes QueryParameters as a JSON body
func (h *ProductHandler) QueryProducts(w http.ResponseWriter, r *http.Request) {
	var params catalog.QueryParameters
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			writeError(w, r, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	h.list(w, r, params)
}

func (h *ProductHandler) list(w http.ResponseWriter, r *http.Request, params catalog.QueryParameters) {
	page, err := h.service.ListProducts(r.Context(), params)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	render.JSON(w, r, page)
}

// ListCategories returns the distinct product categories
func (h *ProductHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if categories == nil {
		categories = []string{}
	}
	render.JSON(w, r, categories)
}

// GetProduct retrieves a product by ID
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "Invalid product ID")
	if !ok {
		return
	}
	view, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	render.JSON(w, r, view)
}

// CreateProduct creates a single product
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req catalog.CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	product, err := h.service.CreateProduct(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, product)
}

// CreateProducts creates products from a JSON array or a CSV document with
// a name,description,price,category,image_url header.
func (h *ProductHandler) CreateProducts(w http.ResponseWriter, r *http.Request) {
	var reqs []catalog.CreateProductRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "text/csv":
		if err := gocsv.Unmarshal(r.Body, &reqs); err != nil {
			writeError(w, r, http.StatusBadRequest, "Invalid CSV body")
			return
		}
	default:
		if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
			writeError(w, r, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	products, err := h.service.CreateProducts(r.Context(), reqs)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, products)
}

// UpdateProduct replaces name, description, price and image of a product.
// A missing product is a bad request here, not a 404.
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req catalog.UpdateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	product, err := h.service.UpdateProduct(r.Context(), req)
	if err != nil {
		status, msg := statusFor(err)
		if status == http.StatusNotFound {
			status = http.StatusBadRequest
		}
		if status >= http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "update product failed", "id", req.ID, "err", err)
		}
		writeError(w, r, status, msg)
		return
	}
	render.JSON(w, r, product)
}

// DeleteProduct deletes a product by ID
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "Invalid product ID")
	if !ok {
		return
	}
	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadImages stores base64 images sent as [{imageUrl, image}]
func (h *ProductHandler) UploadImages(w http.ResponseWriter, r *http.Request) {
	var images []catalog.ProductImage
	if err := json.NewDecoder(r.Body).Decode(&images); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	uploaded, err := h.service.UploadProductImages(r.Context(), images)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	render.JSON(w, r, uploaded)
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func idParam(w http.ResponseWriter, r *http.Request, msg string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, msg)
		return 0, false
	}
	return id, true
}
