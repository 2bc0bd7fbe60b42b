package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/commonstack/trusthub/internal/platformconfig"
	"github.com/commonstack/trusthub/internal/store"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

// respondError maps domain errors to HTTP statuses. Internal failures never
// leak detail to the caller; the full error is logged server-side.
func respondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, store.ErrUserNotFound),
		errors.Is(err, store.ErrConfigNotFound),
		errors.Is(err, store.ErrLogNotFound),
		errors.Is(err, store.ErrSubscriptionNotFound):
		respondJSON(w, http.StatusNotFound, errorBody(err.Error()))
	default:
		var verr *platformconfig.ValidationError
		if errors.As(err, &verr) {
			respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":      "validation failed",
				"validation": verr.Result,
			})
			return
		}
		logger.Error("request failed", "error", err)
		respondJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
