package utils

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the wire shape of every error response the API emits.
// Clients decode it to surface the message alongside the status code.
type ErrorBody struct {
	Error string `json:"error"`
}

// JSONError writes an ErrorBody with the given status code and message.
func JSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorBody{Error: message})
}

// JSONWrite writes the provided value as JSON with the given status code.
// A zero status leaves the implicit 200 in place.
func JSONWrite(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	return json.NewEncoder(w).Encode(v)
}
