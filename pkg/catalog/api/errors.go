package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/tendant/simple-catalog/pkg/catalog"
	"github.com/tendant/simple-catalog/pkg/catalog/media"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: msg})
}

// statusFor maps service errors to a status and a client-safe message.
func statusFor(err error) (int, string) {
	var verr *catalog.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Error()
	case errors.Is(err, catalog.ErrProductNotFound):
		return http.StatusNotFound, "Product not found"
	case errors.Is(err, catalog.ErrProductInUse):
		return http.StatusConflict, "Product is referenced by an order"
	case errors.Is(err, catalog.ErrOrderNotFound):
		return http.StatusNotFound, "Order not found"
	case errors.Is(err, media.ErrNotFound):
		return http.StatusNotFound, "Image not found"
	case errors.Is(err, catalog.ErrNoImages):
		return http.StatusBadRequest, "No images provided for upload."
	case errors.Is(err, catalog.ErrInvalidProduct), errors.Is(err, catalog.ErrInvalidOrder), errors.Is(err, catalog.ErrInvalidImage):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeError(w, r, status, msg)
}
