// internal/app/features/errors/write.go
package errors

import (
	"encoding/json"
	"net/http"

	"github.com/dalemusser/giftexchange/internal/app/exchange"
	"go.uber.org/zap"
)

// ErrorLogger writes error responses and logs their diagnostics.
type ErrorLogger struct {
	log *zap.Logger
}

// NewErrorLogger builds an ErrorLogger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorLogger{log: logger}
}

// Fail logs err under msg and writes the categorized JSON response.
// Store and auth failures are logged as errors; the rest are expected
// outcomes and logged at debug.
func (el *ErrorLogger) Fail(w http.ResponseWriter, r *http.Request, msg string, err error, fields ...zap.Field) {
	c := exchange.Classify(err)
	fields = append(fields,
		zap.String("category", string(c)),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	switch c {
	case exchange.CategoryStoreUnavailable, exchange.CategoryAuthFailure:
		el.log.Error(msg, fields...)
	default:
		el.log.Debug(msg, fields...)
	}
	WriteJSON(w, Status(c), BodyFor(err))
}

// BadRequest writes the response for a request body that cannot be decoded.
func (el *ErrorLogger) BadRequest(w http.ResponseWriter, r *http.Request, err error) {
	el.log.Debug("malformed request", zap.String("path", r.URL.Path), zap.Error(err))
	writeCategory(w, CategoryMalformedRequest)
}

// TooManyRequests writes the rate-limit response.
func (el *ErrorLogger) TooManyRequests(w http.ResponseWriter, r *http.Request) {
	el.log.Debug("rate limited", zap.String("path", r.URL.Path))
	writeCategory(w, CategoryRateLimited)
}

func writeCategory(w http.ResponseWriter, c exchange.Category) {
	WriteJSON(w, Status(c), Body{Error: string(c), Message: Message(c)})
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
