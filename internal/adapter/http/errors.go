package http

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/sessiongate/internal/domain"
)

// ErrorBody is the payload of every failed request.
type ErrorBody struct {
	Code    string `json:"code" doc:"Error kind" enum:"unauthorized,forbidden,not_found,validation,conflict,internal"`
	Message string `json:"message" doc:"Human readable description"`
}

// ErrorResponse wraps ErrorBody as {"error": {...}}.
type ErrorResponse struct {
	status int
	Body   ErrorBody `json:"error"`
}

func (e *ErrorResponse) Error() string { return e.Body.Message }

// GetStatus implements huma.StatusError.
func (e *ErrorResponse) GetStatus() int { return e.status }

func init() {
	// Schema and parameter failures detected by huma share the envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		if len(errs) > 0 && errs[0] != nil {
			msg += ": " + errs[0].Error()
		}
		return &ErrorResponse{
			status: status,
			Body:   ErrorBody{Code: string(kindForStatus(status)), Message: msg},
		}
	}
}

var statusByKind = map[domain.Kind]int{
	domain.KindUnauthorized: http.StatusUnauthorized,
	domain.KindForbidden:    http.StatusForbidden,
	domain.KindNotFound:     http.StatusNotFound,
	domain.KindValidation:   http.StatusUnprocessableEntity,
	domain.KindConflict:     http.StatusConflict,
	domain.KindInternal:     http.StatusInternalServerError,
}

func kindForStatus(status int) domain.Kind {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return domain.KindValidation
	case http.StatusUnauthorized:
		return domain.KindUnauthorized
	case http.StatusForbidden:
		return domain.KindForbidden
	case http.StatusNotFound:
		return domain.KindNotFound
	case http.StatusConflict:
		return domain.KindConflict
	}
	return domain.KindInternal
}

// toHumaError translates domain errors to the HTTP error envelope.
// Internal messages are never echoed.
func toHumaError(err error) error {
	kind := domain.KindOf(err)
	status, ok := statusByKind[kind]
	if !ok || kind == domain.KindInternal {
		return huma.NewError(http.StatusInternalServerError, "internal server error")
	}

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return huma.NewError(status, verr.Error())
	}
	return huma.NewError(status, err.Error())
}
