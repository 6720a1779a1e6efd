package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleServiceError converts an error returned by a service into a response.
// Internal errors are logged and their text is not exposed.
func handleServiceError(w http.ResponseWriter, log *zap.Logger, err error) {
	kind := apperr.KindOf(err)
	status := statusForKind(kind)

	if kind == apperr.KindInternal {
		log.Error("request failed", zap.Error(err))
		respondError(w, status, "internal_error", "internal server error")
		return
	}
	if kind == apperr.KindDependency {
		log.Warn("dependency failure", zap.Error(err))
	}

	resp := ErrorResponse{Error: err.Error(), Code: apperr.CodeOf(err)}
	var pe *checkout.ProductError
	if errors.As(err, &pe) {
		resp.Details = map[string]any{"product_id": pe.ProductID}
	}
	respondJSON(w, status, resp)
}

func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindDependency:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
