package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/semuinside/exam-backend/internal/model"
	"github.com/semuinside/exam-backend/internal/response"
	"github.com/semuinside/exam-backend/internal/runner"
	"github.com/semuinside/exam-backend/internal/service"
)

type errMapping struct {
	err    error
	status int
	code   response.ErrCode
}

var errMappings = []errMapping{
	{service.ErrSessionNotFound, http.StatusNotFound, response.ErrSessionNotFound},
	{service.ErrNotSessionOwner, http.StatusForbidden, response.ErrNotSessionOwner},
	{service.ErrResultNotReady, http.StatusConflict, response.ErrResultNotReady},
	{service.ErrExamNotFound, http.StatusNotFound, response.ErrExamNotFound},
	{service.ErrNoQuestions, http.StatusUnprocessableEntity, response.ErrNoQuestions},
	{runner.ErrInputLocked, http.StatusConflict, response.ErrInputLocked},
	{runner.ErrAlreadySubmitting, http.StatusConflict, response.ErrAlreadySubmitting},
	{runner.ErrAlreadySubmitted, http.StatusConflict, response.ErrAlreadySubmitted},
	{runner.ErrNotFailed, http.StatusConflict, response.ErrNotFailed},
	{runner.ErrSessionFinished, http.StatusConflict, response.ErrSessionFinished},
	{runner.ErrUnknownQuestion, http.StatusNotFound, response.ErrQuestionUnknown},
	{runner.ErrQuestionUnusable, http.StatusUnprocessableEntity, response.ErrQuestionUnusable},
	{model.ErrAnswerShape, http.StatusBadRequest, response.ErrInvalidAnswer},
}

// classify maps a domain error to an HTTP status and error code.
// Unknown errors are internal.
func classify(err error) (int, response.ErrCode) {
	for _, m := range errMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, response.ErrInternal
}

// fail writes the envelope for err, logging only unexpected failures.
func fail(c *gin.Context, log zerolog.Logger, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	}
	response.Fail(c, status, code)
}
