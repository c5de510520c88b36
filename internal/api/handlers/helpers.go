package handlers

import (
	"collection-route-service/internal/domain"
	"collection-route-service/internal/platform/obs"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"time"
)

type errorResponse struct {
	Error string   `json:"error"`
	Field string   `json:"field,omitempty"`
	Hints []string `json:"hints,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode failed: method=%s path=%s err=%v", r.Method, r.URL.Path, err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errorResponse{Error: msg})
}

// writeServiceError maps the domain error taxonomy onto HTTP statuses.
// Unexpected errors are logged and hidden behind a generic message.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		dve        *domain.DataValidationError
		infeasible *domain.InfeasibleInstanceError
		provider   *domain.ProviderUnavailableError
	)
	switch {
	case errors.As(err, &dve):
		writeJSON(w, r, http.StatusUnprocessableEntity, errorResponse{Error: dve.Error(), Field: dve.Field})
	case errors.As(err, &infeasible):
		writeJSON(w, r, http.StatusConflict, errorResponse{Error: infeasible.Error(), Hints: infeasible.Hints})
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidState):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.As(err, &provider):
		obs.Infof(r.Context(), "op=api.error path=%s err=%q", r.URL.Path, err)
		writeError(w, r, http.StatusServiceUnavailable, "routing provider unavailable")
	default:
		obs.Infof(r.Context(), "op=api.error path=%s err=%q", r.URL.Path, err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON reads exactly one JSON object into dst and rejects unknown
// fields. It writes the 400 response itself and reports false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid json body: %v", err))
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, r, http.StatusBadRequest, "body must contain only one JSON object")
		return false
	}
	return true
}

// seconds converts an optional positive number of seconds. Nil means zero,
// which leaves the planner default in place.
func seconds(field string, v *float64) (time.Duration, error) {
	if v == nil {
		return 0, nil
	}
	if *v <= 0 || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, fmt.Errorf("%s must be a positive number", field)
	}
	return time.Duration(*v * float64(time.Second)), nil
}
