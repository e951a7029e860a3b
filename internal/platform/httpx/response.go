package httpx

import (
	"context"
	"encoding/json"
	"net/http"
)

// envelope is the success payload shape shared by every endpoint.
type envelope struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// WriteJSON writes a success envelope with the supplied message and data.
func WriteJSON(ctx context.Context, w http.ResponseWriter, status int, message string, data any) {
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{
		Message: sanitize(message, 512),
		Data:    data,
	})
}

// DecodeJSON decodes the request body into dst, rejecting unknown fields.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
