// Package errors builds gofulmen error envelopes for the check API and maps
// them to HTTP responses.
package errors

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/google/uuid"

	"github.com/sitecheck/sitecheck/internal/core"
	"github.com/sitecheck/sitecheck/internal/core/ingest"
	"github.com/sitecheck/sitecheck/internal/server/middleware"
)

// Envelope codes.
const (
	CodeInvalidInput       = "INVALID_INPUT"
	CodeNotFound           = "NOT_FOUND"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeValidation         = "VALIDATION_FAILED"
	CodeRateLimited        = "RATE_LIMITED"
	CodeInternal           = "INTERNAL_ERROR"
	CodeDatabase           = "DATABASE_ERROR"
	CodeExternalService    = "EXTERNAL_SERVICE_ERROR"
	CodeTimeout            = "TIMEOUT"
	CodeDataProcessing     = "DATA_PROCESSING_ERROR"
	CodeConfigInvalid      = "CONFIG_INVALID"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

var codeStatus = map[string]int{
	CodeInvalidInput:       http.StatusBadRequest,
	CodeValidation:         http.StatusBadRequest,
	CodeNotFound:           http.StatusNotFound,
	CodeMethodNotAllowed:   http.StatusMethodNotAllowed,
	CodeDataProcessing:     http.StatusUnprocessableEntity,
	CodeRateLimited:        http.StatusTooManyRequests,
	CodeTimeout:            http.StatusGatewayTimeout,
	CodeExternalService:    http.StatusBadGateway,
	CodeServiceUnavailable: http.StatusServiceUnavailable,
}

// HTTPStatusFromEnvelope maps an envelope's code to a status; unknown codes
// and nil are 500.
func HTTPStatusFromEnvelope(envelope *errors.ErrorEnvelope) int {
	if envelope == nil {
		return http.StatusInternalServerError
	}
	if status, ok := codeStatus[envelope.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func NewInvalidInputError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeInvalidInput, message)
}

func NewNotFoundError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeNotFound, message)
}

func NewMethodNotAllowedError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeMethodNotAllowed, message)
}

func NewValidationError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeValidation, message)
}

func NewInternalError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeInternal, message)
}

func NewConfigInvalidError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeConfigInvalid, message)
}

// WrapInternal wraps err as INTERNAL_ERROR, correlated with ctx's request ID.
func WrapInternal(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return Wrap(ctx, CodeInternal, err, message)
}

// WrapDatabaseError wraps a store failure.
func WrapDatabaseError(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return Wrap(ctx, CodeDatabase, err, message)
}

// Wrap builds an envelope for err. The request ID in ctx, or a fresh UUID,
// becomes both correlation and trace ID; there is no tracer.
func Wrap(ctx context.Context, code string, err error, message string) *errors.ErrorEnvelope {
	id := correlationID(ctx)
	envelope := errors.NewErrorEnvelope(code, message).WithCorrelationID(id).WithTraceID(id)
	if err == nil {
		return envelope
	}
	envelope.Original = err
	if updated, ctxErr := envelope.WithContext(map[string]interface{}{"wrapped_error": err.Error()}); ctxErr == nil {
		envelope = updated
	}
	return envelope
}

func correlationID(ctx context.Context) string {
	if ctx != nil {
		if id := middleware.GetRequestID(ctx); id != "" {
			return id
		}
	}
	return uuid.New().String()
}

type classification struct {
	targets []error
	code    string
	// message is the client-facing text; empty echoes err.Error().
	message string
}

// classifications are tried in order; the first target err matches wins.
var classifications = []classification{
	{[]error{ingest.ErrFileTooLarge}, CodeValidation, "file too large"},
	{[]error{ingest.ErrUnsupportedFormat}, CodeValidation, "unsupported file type; use .csv, .xlsx or .xls"},
	{[]error{ingest.ErrParse}, CodeDataProcessing, "could not parse file"},
	{[]error{core.ErrRateLimited}, CodeRateLimited, "rate limited"},
	{[]error{core.ErrTimeout, context.DeadlineExceeded}, CodeTimeout, "request timed out"},
	{[]error{core.ErrUnreachable}, CodeExternalService, "cannot connect to server"},
	{[]error{core.ErrBadResponse}, CodeExternalService, ""},
}

// Classify maps check, ingest and rate-limit failures to envelopes. An
// envelope anywhere in err's chain is returned as is; anything unrecognised
// becomes INTERNAL_ERROR.
func Classify(ctx context.Context, err error) *errors.ErrorEnvelope {
	if err == nil {
		return nil
	}
	var envelope *errors.ErrorEnvelope
	if stderrors.As(err, &envelope) && envelope != nil {
		return envelope
	}

	for _, c := range classifications {
		for _, target := range c.targets {
			if !stderrors.Is(err, target) {
				continue
			}
			message := c.message
			if message == "" {
				message = err.Error()
			}
			return Wrap(ctx, c.code, err, message)
		}
	}
	return Wrap(ctx, CodeInternal, err, "unexpected error")
}

// EnsureEnvelope classifies err without a request context. Unclassified
// failures are high severity; a nil error is critical.
func EnsureEnvelope(err error) *errors.ErrorEnvelope {
	if err == nil {
		envelope, _ := errors.NewErrorEnvelope(CodeInternal, "unexpected nil error").WithSeverity(errors.SeverityCritical)
		return envelope
	}
	envelope := Classify(context.Background(), err)
	if envelope.Code == CodeInternal && envelope.Severity == "" {
		envelope, _ = envelope.WithSeverity(errors.SeverityHigh)
	}
	return envelope
}
