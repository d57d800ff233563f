package handlers

import (
	"errors"
	"net/http"

	"service-dispatcher/internal/apperr"
	"service-dispatcher/internal/logx"
)

// statusFor maps the error taxonomy onto HTTP. The message of client errors is
// returned as is; server errors get a generic one.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, apperr.ErrInvalid):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, apperr.ErrInvalidTransition):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, apperr.ErrNoDriverAvailable):
		return http.StatusConflict, apperr.ErrNoDriverAvailable.Error()
	case errors.Is(err, apperr.ErrTooMuchContention):
		return http.StatusTooManyRequests, "resource busy, retry later"
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict, err.Error()
	case errors.Is(err, apperr.ErrUnavailable):
		return http.StatusServiceUnavailable, "service unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeDomainError(logger logx.Logger, w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	switch status {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", "1")
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			logx.String("req_id", reqID(r.Context())),
			logx.String("path", r.URL.Path),
			logx.Err(err),
		)
	}
	writeError(logger, w, r, status, msg)
}
