package httpadapter

import (
	"net/http"

	"github.com/kirillkom/patent-pod-intake/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput), domain.IsKind(err, domain.ErrMalformedRequest):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrCorpusTooShort), domain.IsKind(err, domain.ErrInsufficientPods):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case domain.IsKind(err, domain.ErrInvalidState):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrApplicationNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrClassificationTimeout):
		return http.StatusGatewayTimeout
	case domain.IsKind(err, domain.ErrClassificationParse):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorCode is the stable machine-readable kind sent next to the message.
func errorCode(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrMalformedRequest):
		return "malformed_request"
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "invalid_input"
	case domain.IsKind(err, domain.ErrCorpusTooShort):
		return "corpus_too_short"
	case domain.IsKind(err, domain.ErrInsufficientPods):
		return "insufficient_pods"
	case domain.IsKind(err, domain.ErrUnsupportedFormat):
		return "unsupported_format"
	case domain.IsKind(err, domain.ErrInvalidState):
		return "invalid_state"
	case domain.IsKind(err, domain.ErrUnauthorized):
		return "unauthorized"
	case domain.IsKind(err, domain.ErrApplicationNotFound):
		return "not_found"
	case domain.IsKind(err, domain.ErrClassificationTimeout):
		return "classification_timeout"
	case domain.IsKind(err, domain.ErrClassificationParse):
		return "classification_parse"
	case domain.IsKind(err, domain.ErrTemporary):
		return "temporarily_unavailable"
	default:
		return "internal"
	}
}
