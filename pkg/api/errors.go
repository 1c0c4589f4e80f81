package api

import (
	"errors"
	"net/http"

	"github.com/haivivi/noisemap/pkg/errs"
	"github.com/haivivi/noisemap/pkg/records"
	"github.com/haivivi/noisemap/pkg/storage"
)

// ErrorBody describes a failed request.
type ErrorBody struct {
	Kind    errs.Kind `json:"kind"`
	Message string    `json:"message"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// NewErrorResponse renders err.
func NewErrorResponse(err error) ErrorResponse {
	return ErrorResponse{Error: ErrorBody{Kind: errs.KindOf(err), Message: errs.Message(err)}}
}

// StatusOf maps err to an HTTP status.
func StatusOf(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, records.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	}
	return errs.KindOf(err).HTTPStatus()
}
