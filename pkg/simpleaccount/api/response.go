package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/tendant/simple-account/pkg/simpleaccount"
)

// Error codes that are not account error kinds
const (
	CodeInvalidRequest     = "invalid_request"
	CodeUnauthorized       = "unauthorized"
	CodeInvalidCredentials = "invalid_credentials"
	CodeRateLimited        = "rate_limited"
	CodeInternal           = "internal_error"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
	RequestID string `json:"requestId,omitempty"`
}

// writeError renders err using the status and code of its kind. Messages of
// server-side failures are generic; details only go to the log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := classify(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", requestIDFrom(r),
			"error_code", code,
			"err", err,
		)
	}
	renderError(w, r, status, code, message)
}

func renderError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{
		Success:   false,
		Error:     message,
		ErrorCode: code,
		RequestID: requestIDFrom(r),
	})
}

func classify(err error) (status int, code, message string) {
	var ve *simpleaccount.ValidationError
	var ae *simpleaccount.AccountError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, CodeInvalidRequest, ve.Error()
	case errors.As(err, &ae):
		return ae.Kind.HTTPStatus(), string(ae.Kind), ae.PublicMessage()
	case errors.Is(err, simpleaccount.ErrInvalidToken):
		return http.StatusUnauthorized, CodeUnauthorized, "authentication required"
	case errors.Is(err, simpleaccount.ErrInvalidCredentials):
		return http.StatusUnauthorized, CodeInvalidCredentials, simpleaccount.ErrInvalidCredentials.Error()
	case errors.Is(err, simpleaccount.ErrInvalidBlobKey):
		return http.StatusBadRequest, CodeInvalidRequest, simpleaccount.ErrInvalidBlobKey.Error()
	}
	return http.StatusInternalServerError, string(simpleaccount.KindUnexpected), "internal error"
}
