package response

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the uniform error body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// JSON encodes data with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// The status line is already on the wire; nothing left to do.
			http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		}
	}
}

// Error writes an error body with the given status code.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// Success writes data with a 200 status.
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}
