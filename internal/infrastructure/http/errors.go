package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorResponse is the error envelope every endpoint of this service
// returns: a short message plus the individual problems, so a client
// posting a malformed burst sees all its rejections at once.
type ErrorResponse struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
}

// WriteError writes the error envelope with the given status. Encoding
// failures are only logged; the status line is already on the wire.
func WriteError(w http.ResponseWriter, statusCode int, message string, errors []string, log *slog.Logger) {
	response := ErrorResponse{
		Message: message,
		Errors:  errors,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		if log != nil {
			log.Error("failed to encode error response", "error", err)
		}
	}
}
