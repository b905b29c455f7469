package http

import (
	"errors"
	"fmt"
	"net/http"

	"caja/internal/core"
	"caja/internal/log"
	"caja/internal/middleware/trace"
)

func requestID(r *http.Request) string {
	return trace.GetRequestID(r.Context())
}

// requestError is a malformed request detected before reaching a service.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidCategory),
		errors.Is(err, core.ErrEmptyAccount),
		errors.Is(err, core.ErrZeroDate),
		errors.Is(err, core.ErrDateOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrDataUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrReadOnly):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func errorType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return log.ErrorTypeValidation
	case http.StatusNotFound:
		return log.ErrorTypeNotFound
	case http.StatusServiceUnavailable:
		return log.ErrorTypeUnavailable
	default:
		return log.ErrorTypeInternal
	}
}

// writeError logs err and answers with its mapped status. Server side
// failures never leak their cause to the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	fields := log.NewFields().
		WithRequestID(requestID(r)).
		WithErrorType(errorType(status))

	msg := err.Error()
	switch status {
	case http.StatusServiceUnavailable:
		msg = "data temporarily unavailable, try again later"
		s.structured.LogError(r.Context(), "Request failed", err, op, fields)
	case http.StatusInternalServerError:
		msg = "internal error"
		s.structured.LogError(r.Context(), "Request failed", err, op, fields)
	default:
		log.FromContext(r.Context()).WarnContext(r.Context(), "Request rejected",
			fields.WithError(err).WithOperation(op).ToSlice()...)
	}
	ErrorResponse(status, msg).Write(w)
}
