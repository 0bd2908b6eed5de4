package middleware

import (
	"encoding/json"
	"net/http"
)

type errorBody struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// writeJSONError writes the standard error envelope with the correct Content-Type.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeEnvelope(w, status, errorBody{Message: msg})
}

func writeEnvelope(w http.ResponseWriter, status int, body errorBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
