package server

import (
	"errors"
	"net/http"

	"github.com/lferraz/leadscout/internal/pipeline"
	"github.com/lferraz/leadscout/internal/store"
)

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrRunActive):
		return http.StatusConflict
	case errors.Is(err, pipeline.ErrRunNotActive):
		return http.StatusConflict
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
