// Package httputil provides HTTP response helpers and request-scoped
// middleware shared by every admission component.
package httputil

import (
	"encoding/json"
	"net/http"
)

// Rejection is the uniform body returned whenever the admission layer
// refuses a request.
type Rejection struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteRejection writes the structured rejection envelope
func WriteRejection(w http.ResponseWriter, status int, message, errDetail, code string) {
	_ = WriteJSON(w, status, Rejection{
		Success: false,
		Message: message,
		Error:   errDetail,
		Code:    code,
	})
}

// WriteUnauthorized writes a 401 rejection
func WriteUnauthorized(w http.ResponseWriter, message, code string) {
	WriteRejection(w, http.StatusUnauthorized, message, "", code)
}

// WriteForbidden writes a 403 rejection
func WriteForbidden(w http.ResponseWriter, message, code string) {
	WriteRejection(w, http.StatusForbidden, message, "", code)
}

// WriteInternalFault writes a 500 rejection for internal-consistency
// defects. The message stays generic; the detail belongs in logs.
func WriteInternalFault(w http.ResponseWriter, code string) {
	WriteRejection(w, http.StatusInternalServerError, "internal server error", "", code)
}
