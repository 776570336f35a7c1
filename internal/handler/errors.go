package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/classpulse-backend/internal/response"
	"github.com/stemsi/classpulse-backend/internal/service"
	"github.com/stemsi/classpulse-backend/internal/session"
)

// classify maps domain errors onto an HTTP status and API error code.
func classify(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, session.ErrValidation):
		return http.StatusUnprocessableEntity, response.ErrValidation
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, response.ErrSessionNotFound
	case errors.Is(err, session.ErrNotEligible):
		return http.StatusForbidden, response.ErrSessionNotEligible
	case errors.Is(err, session.ErrAlreadySubmitted):
		return http.StatusConflict, response.ErrAlreadySubmitted
	case errors.Is(err, session.ErrPersistence):
		return http.StatusServiceUnavailable, response.ErrServiceUnavailable
	case errors.Is(err, service.ErrNotSessionOwner):
		return http.StatusForbidden, response.ErrNotSessionOwner
	case errors.Is(err, service.ErrInvalidTransition):
		return http.StatusConflict, response.ErrInvalidTransition
	case errors.Is(err, service.ErrUnknownQuestions):
		return http.StatusUnprocessableEntity, response.ErrUnknownQuestions
	case errors.Is(err, service.ErrQuestionKindMismatch):
		return http.StatusUnprocessableEntity, response.ErrQuestionKindMismatch
	case errors.Is(err, service.ErrInvalidQuestion):
		return http.StatusUnprocessableEntity, response.ErrInvalidQuestion
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}

// fail writes err in the standard envelope. Unclassified errors are logged
// and reported as internal.
func fail(c *gin.Context, log zerolog.Logger, err error) {
	status, code := classify(err)
	if code == response.ErrInternal || code == response.ErrServiceUnavailable {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	}
	if fields := session.FieldsOf(err); len(fields) > 0 {
		response.FailWithFields(c, status, code, fields)
		return
	}
	if code == response.ErrInvalidQuestion {
		response.FailWithMessage(c, status, code, err.Error())
		return
	}
	response.Fail(c, status, code)
}
