package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"homedrive/internal/drive"
)

// errorResponse is the JSON body for every failed request.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("failed to encode response", "error", err)
	}
}

// writeError maps an error's kind to a status code. Internal failures get a
// generic message; client errors carry the error text.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var status int
	message := err.Error()

	switch {
	case errors.Is(err, drive.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, drive.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, drive.ErrUnauthorized):
		status = http.StatusUnauthorized
	default:
		status = http.StatusInternalServerError
		message = "internal error"
		s.log.Error("request failed", "error", err)
	}

	s.writeJSON(w, status, errorResponse{Error: message})
}

// bearerToken extracts the token from an Authorization: Bearer header, or ""
// when absent or malformed.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// decodeJSON decodes a request body into v, classifying failures as invalid
// input.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding request body: %w", drive.ErrInvalidInput)
	}
	return nil
}
