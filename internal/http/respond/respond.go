package respond

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/hongminglow/streamhub-be/internal/apperr"
)

// Envelope is the standard success wrapper used across handlers.
type Envelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// ErrorEnvelope is the standard failure wrapper.
type ErrorEnvelope struct {
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Success    bool     `json:"success"`
	Errors     []string `json:"errors"`
}

// JSON writes a success response using the common envelope.
func JSON(w http.ResponseWriter, status int, message string, data any) {
	if data == nil {
		data = struct{}{}
	}
	write(w, status, Envelope{StatusCode: status, Data: data, Message: message, Success: true})
}

// Error writes err using the failure envelope. Unclassified errors and
// internal errors are logged with their cause and rendered generically.
func Error(w http.ResponseWriter, log *zap.Logger, err error) {
	appErr := apperr.As(err)
	status := appErr.Status()
	if status >= http.StatusInternalServerError && log != nil {
		log.Error("request failed", zap.String("kind", string(appErr.Kind)), zap.Error(err))
	}
	details := appErr.Details
	if details == nil {
		details = []string{}
	}
	write(w, status, ErrorEnvelope{StatusCode: status, Message: appErr.Message, Success: false, Errors: details})
}

func write(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
