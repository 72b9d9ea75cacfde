package errors

import (
	"encoding/json"
	"net/http"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	"github.com/sitecheck/sitecheck/internal/metrics"
	"github.com/sitecheck/sitecheck/internal/observability"
	"github.com/sitecheck/sitecheck/internal/server/middleware"
)

// HTTPErrorDetail is the error object of a response body.
type HTTPErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// HTTPErrorResponse is the JSON body of every API error. Message repeats
// error.message for clients that only read the top-level field.
type HTTPErrorResponse struct {
	Message string          `json:"message"`
	Error   HTTPErrorDetail `json:"error"`
}

// RespondWithError classifies err, then logs, counts and writes it.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	if w == nil {
		return
	}

	var envelope *errors.ErrorEnvelope
	switch {
	case err == nil:
		envelope = EnsureEnvelope(nil)
	case r != nil:
		envelope = Classify(r.Context(), err)
	default:
		envelope = EnsureEnvelope(err)
	}

	if envelope.CorrelationID == "" {
		var id string
		if r != nil {
			id = middleware.GetRequestID(r.Context())
		}
		if id == "" {
			id = "fallback-" + errors.GenerateCorrelationID()
		}
		envelope = envelope.WithCorrelationID(id)
	}

	status := HTTPStatusFromEnvelope(envelope)
	logEnvelope(envelope, status)
	endpoint := ""
	if r != nil {
		endpoint = r.URL.Path
	}
	metrics.RecordError(envelope.Code, status, endpoint)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(HTTPErrorResponse{
		Message: envelope.Message,
		Error: HTTPErrorDetail{
			Code:      envelope.Code,
			Message:   envelope.Message,
			Details:   responseDetails(envelope),
			RequestID: envelope.CorrelationID,
		},
	})
}

// responseDetails merges Details over Context; nil when both are empty.
func responseDetails(envelope *errors.ErrorEnvelope) map[string]interface{} {
	details := make(map[string]interface{}, len(envelope.Details)+len(envelope.Context))
	for key, value := range envelope.Context {
		details[key] = value
	}
	for key, value := range envelope.Details {
		details[key] = value
	}
	if len(details) == 0 {
		return nil
	}
	return details
}

func logEnvelope(envelope *errors.ErrorEnvelope, status int) {
	logger := observability.ServerLogger
	if logger == nil {
		return
	}

	fields := []zap.Field{
		zap.String("error_code", envelope.Code),
		zap.Int("http_status", status),
		zap.String("request_id", envelope.CorrelationID),
	}
	if envelope.Severity != "" {
		fields = append(fields, zap.String("severity", string(envelope.Severity)))
	}
	for key, value := range envelope.Context {
		fields = append(fields, zap.Any(key, value))
	}

	switch {
	case envelope.Severity == errors.SeverityCritical, envelope.Severity == errors.SeverityHigh, status >= http.StatusInternalServerError:
		logger.Error(envelope.Message, fields...)
	case envelope.Severity == errors.SeverityMedium, status == http.StatusTooManyRequests:
		logger.Warn(envelope.Message, fields...)
	default:
		logger.Info(envelope.Message, fields...)
	}
}
