package api

import (
	"errors"
	"net/http"

	"runqueue/internal/domain"
)

// httpStatusFromDomainError maps domain errors to HTTP status codes.
func httpStatusFromDomainError(err error) int {
	var notFound *domain.NotFoundError
	var validation *domain.ValidationError
	var conflict *domain.ConflictError
	var unavailable *domain.StorageUnavailableError
	var launch *domain.LaunchError

	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &conflict):
		return http.StatusConflict
	case errors.As(err, &unavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &launch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
