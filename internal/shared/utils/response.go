package utils

import (
	"encoding/json"
	"net/http"
)

// WriteJSON writes v as a JSON body with the given status code
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes {"error": message, "details": err} with the given status code
func WriteError(w http.ResponseWriter, status int, message string, err error) {
	body := map[string]string{"error": message}
	if err != nil {
		body["details"] = err.Error()
	}
	WriteJSON(w, status, body)
}
