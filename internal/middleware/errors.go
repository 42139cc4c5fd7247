package middleware

import (
	"encoding/json"
	"net/http"
	"time"
)

// errorBody matches the API error shape served by the task handlers.
type errorBody struct {
	Timestamp time.Time `json:"timestamp"`
	Errors    string    `json:"errors"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Timestamp: time.Now().UTC(), Errors: msg})
}
