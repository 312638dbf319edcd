package httpx

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/ariefcatur/marketplace-core/internal/domain"
)

type ErrorResponse struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

var errUnauthorized = errors.New("unauthorized")

// writeError maps a service error onto a status code and error code.
// Unclassified errors are logged and reported without their text.
func writeError(w http.ResponseWriter, r *http.Request, logger *log.Entry, err error) {
	var (
		short *domain.StockShortageError
		verr  *domain.ValidationError
	)
	switch {
	case errors.As(err, &short):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "INSUFFICIENT_STOCK",
			Message: err.Error(),
			Details: map[string]any{
				"productId": short.ProductID,
				"requested": short.Requested,
				"available": short.Available,
			},
		})
	case errors.As(err, &verr):
		resp := ErrorResponse{Error: "VALIDATION_ERROR", Message: err.Error()}
		if verr.Field != "" {
			resp.Details = map[string]any{"field": verr.Field}
		}
		writeJSON(w, http.StatusBadRequest, resp)
	case errors.Is(err, errInvalidJSON):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "INVALID_JSON", Message: "request body is not valid JSON"})
	case errors.Is(err, errUnauthorized):
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "UNAUTHORIZED", Message: err.Error()})
	case errors.Is(err, domain.ErrValidation):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "VALIDATION_ERROR", Message: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "NOT_FOUND", Message: err.Error()})
	case errors.Is(err, domain.ErrInsufficientStock):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "INSUFFICIENT_STOCK", Message: err.Error()})
	case errors.Is(err, domain.ErrForbidden):
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "FORBIDDEN", Message: "not allowed to access this resource"})
	case errors.Is(err, domain.ErrInvalidTransition):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "INVALID_TRANSITION", Message: err.Error()})
	case errors.Is(err, domain.ErrEmptyCart):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "EMPTY_CART", Message: err.Error()})
	default:
		if logger != nil {
			logger.WithError(err).WithFields(log.Fields{
				"path":       r.URL.Path,
				"request_id": middleware.GetReqID(r.Context()),
			}).Error("request failed")
		}
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "INTERNAL", Message: "internal server error"})
	}
}
