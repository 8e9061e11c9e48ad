package shared

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// Ack is the body returned by operations that only acknowledge success.
type Ack struct {
	Message string `json:"message"`
}

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError is the centralized translator from the error taxonomy to a
// uniform {error, status} JSON response. Every handler funnels failures
// through here; nothing is retried or recovered locally.
func WriteError(w http.ResponseWriter, err error) {
	WriteJSON(w, StatusForError(err), map[string]string{"error": userMessage(err)})
}

// StatusForError maps a taxonomy error to its HTTP status class.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, ErrObjectDoesNotExist):
		return http.StatusNotFound
	case errors.Is(err, ErrNoPermission):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrObjectAlreadyExists),
		errors.Is(err, ErrInvalidData),
		errors.Is(err, ErrInvalidPatch):
		return http.StatusBadRequest
	case errors.Is(err, ErrEndpointNotImplemented):
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

func userMessage(err error) string {
	for _, sentinel := range []error{
		ErrObjectDoesNotExist,
		ErrNoPermission,
		ErrInvalidCredentials,
		ErrObjectAlreadyExists,
		ErrInvalidData,
		ErrInvalidPatch,
		ErrEndpointNotImplemented,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "internal server error"
}

// DecodeJSON reads the request body into dst. A malformed body maps to
// ErrInvalidData so the translator produces a 400.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrInvalidData
		}
		return errors.Join(ErrInvalidData, err)
	}
	return nil
}
