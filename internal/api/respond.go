package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/MikeSquared-Agency/veilmatch/internal/reveal"
	"github.com/MikeSquared-Agency/veilmatch/internal/sentinel"
)

type errorBody struct {
	Error     string `json:"error"`
	Field     string `json:"field,omitempty"`
	Attempted *int   `json:"attempted,omitempty"`
	Allowed   *int   `json:"allowed,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP statuses. Unclassified errors are
// logged and reported as 500 without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *sentinel.ValidationError
		denied     *reveal.DeniedError
	)
	switch {
	case errors.As(err, &denied):
		writeJSON(w, http.StatusForbidden, errorBody{
			Error:     denied.Error(),
			Attempted: &denied.Attempted,
			Allowed:   &denied.Allowed,
		})
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: validation.Error(), Field: validation.Field})
	case errors.Is(err, sentinel.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, sentinel.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, sentinel.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, sentinel.ErrDenied):
		writeJSON(w, http.StatusForbidden, errorBody{Error: err.Error()})
	default:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

// decodeJSON reads a request body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return sentinel.Invalid("body", "invalid JSON: %v", err)
	}
	return nil
}

// queryInt reads an optional integer query parameter.
func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, sentinel.Invalid(key, "not an integer: %q", raw)
	}
	return n, nil
}
