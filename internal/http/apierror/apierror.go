// Package apierror maps domain errors to HTTP responses.
package apierror

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/MrJamesThe3rd/labelhub/internal/credit"
	"github.com/MrJamesThe3rd/labelhub/internal/label"
	"github.com/MrJamesThe3rd/labelhub/internal/ledger"
	"github.com/MrJamesThe3rd/labelhub/internal/order"
	"github.com/MrJamesThe3rd/labelhub/internal/pricing"
	"github.com/MrJamesThe3rd/labelhub/internal/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

// Status returns the HTTP status for err. Order matters: ErrNotStartable
// wraps ErrInvalidTransition.
func Status(err error) int {
	switch {
	case errors.Is(err, order.ErrNotFound), errors.Is(err, ledger.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, order.ErrNotStartable),
		errors.Is(err, store.ErrConflict),
		errors.Is(err, ledger.ErrDuplicateReference),
		errors.Is(err, ledger.ErrUserExists):
		return http.StatusConflict
	case errors.Is(err, order.ErrInvalidInput),
		errors.Is(err, order.ErrDuplicateTracking),
		errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, pricing.ErrUnknownService),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidChange),
		errors.Is(err, credit.ErrInvalidAdjustment),
		errors.Is(err, label.ErrNoHeader),
		errors.Is(err, label.ErrEmptyManifest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Write sends err as a JSON error body. Internal errors are logged and their
// message is not exposed.
func Write(w http.ResponseWriter, r *http.Request, err error) {
	status := Status(err)
	msg := err.Error()

	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "internal error"
	}

	JSON(w, status, errorResponse{Error: msg})
}

// BadRequest reports a malformed request.
func BadRequest(w http.ResponseWriter, msg string) {
	JSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
