package httpapi

import (
	"encoding/json"
	"net/http"

	"upscaled/internal/catalog"
	"upscaled/internal/engine"
	"upscaled/internal/fetch"
	"upscaled/internal/tile"
	"upscaled/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// mapError translates a service error to an HTTP status and a stable
// reason token clients can switch on.
func mapError(err error) (int, string) {
	switch {
	case engine.IsInvalidImage(err):
		return http.StatusBadRequest, "invalid_image"
	case catalog.IsModelNotFound(err):
		return http.StatusNotFound, "model_not_found"
	case engine.IsModelNotLoaded(err):
		return http.StatusNotFound, "model_not_loaded"
	case catalog.IsModelUnusable(err):
		return http.StatusConflict, "model_unusable"
	case engine.IsModelBusy(err):
		return http.StatusConflict, "model_busy"
	case engine.IsImageTooLarge(err):
		return http.StatusRequestEntityTooLarge, "image_too_large"
	case engine.IsScaleMismatch(err):
		return http.StatusUnprocessableEntity, "scale_mismatch"
	case catalog.IsModelNotReady(err):
		return http.StatusUnprocessableEntity, "model_not_ready"
	case fetch.IsUnsupportedSource(err):
		return http.StatusUnprocessableEntity, "unsupported_source"
	case engine.IsTooBusy(err):
		return http.StatusTooManyRequests, "too_busy"
	case catalog.IsCatalogUnavailable(err):
		return http.StatusBadGateway, "catalog_unavailable"
	case fetch.IsChecksumMismatch(err):
		return http.StatusBadGateway, "checksum_mismatch"
	case engine.IsAcceleratorExhausted(err):
		return http.StatusInsufficientStorage, "accelerator_exhausted"
	case engine.IsBudgetExceeded(err):
		return http.StatusInsufficientStorage, "budget_exceeded"
	case tile.IsPlanViolation(err):
		return http.StatusInternalServerError, "plan_violation"
	}
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode(), "error"
	}
	return http.StatusInternalServerError, "internal"
}

// writeServiceError maps err and writes the JSON payload, returning
// the status and reason it chose so handlers can log them.
func writeServiceError(w http.ResponseWriter, err error) (int, string) {
	status, reason := mapError(err)
	writeJSONError(w, status, reason, err.Error())
	return status, reason
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, reason, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status, Reason: reason})
}
