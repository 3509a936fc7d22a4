package handler

import (
	"encoding/json"
	"net/http"

	"github.com/dialogkit/dialogkit/internal/model"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes the structured error envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, model.StatusResponse{
		Status:  "error",
		Message: message,
	})
}
