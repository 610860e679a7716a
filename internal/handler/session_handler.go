package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/semuinside/exam-backend/internal/middleware"
	"github.com/semuinside/exam-backend/internal/model"
	"github.com/semuinside/exam-backend/internal/response"
	"github.com/semuinside/exam-backend/internal/runner"
	"github.com/semuinside/exam-backend/internal/service"
	"github.com/semuinside/exam-backend/internal/validator"
)

// SessionHandler serves the respondent-facing exam session endpoints.
type SessionHandler struct {
	sessionService *service.ExamSessionService
	log            zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService *service.ExamSessionService, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "session_handler").Logger(),
	}
}

// StartSession godoc
// POST /api/v1/exams/:exam_id/sessions
// Starts a new attempt or resumes the caller's open one.
func (h *SessionHandler) StartSession(c *gin.Context) {
	respondentID, ok := middleware.GetRespondentID(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.StartSessionRequest
	if fields := validator.BindOptional(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	started, err := h.sessionService.StartOrResume(c.Request.Context(), examID, respondentID)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	if req.ClientTime != nil {
		h.log.Debug().
			Str("session_id", started.Session.ID.String()).
			Dur("client_skew", started.Session.StartedAt.Sub(*req.ClientTime)).
			Msg("Client clock skew")
	}

	status := http.StatusCreated
	if started.Resumed {
		status = http.StatusOK
	}
	response.Success(c, status, started)
}

// GetState godoc
// GET /api/v1/sessions/:session_id/state
func (h *SessionHandler) GetState(c *gin.Context) {
	rn, ok := h.runner(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, rn.Snapshot())
}

// GetUnanswered godoc
// GET /api/v1/sessions/:session_id/unanswered
// Backs the confirmation dialog shown before an explicit submit.
func (h *SessionHandler) GetUnanswered(c *gin.Context) {
	rn, ok := h.runner(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"unanswered_count":  rn.Unanswered(),
		"remaining_seconds": rn.Remaining(),
	})
}

// SetAnswer godoc
// PUT /api/v1/sessions/:session_id/answers/:question_id
func (h *SessionHandler) SetAnswer(c *gin.Context) {
	questionID, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SetAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	rn, ok := h.runner(c)
	if !ok {
		return
	}

	kind, found := rn.QuestionType(questionID)
	if !found {
		response.Fail(c, http.StatusNotFound, response.ErrQuestionUnknown)
		return
	}
	value, err := req.Value(kind)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	if err := rn.OnAnswerChanged(questionID, value); err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"question_id":      questionID,
		"unanswered_count": rn.Unanswered(),
	})
}

// Submit godoc
// POST /api/v1/sessions/:session_id/submit
// Submits the session. A previously failed submission is retried.
func (h *SessionHandler) Submit(c *gin.Context) {
	rn, ok := h.runner(c)
	if !ok {
		return
	}

	var (
		res *model.SubmissionResult
		err error
	)
	if rn.State() == runner.StateFailed {
		res, err = rn.Retry(c.Request.Context())
	} else {
		res, err = rn.OnSubmitRequested(c.Request.Context())
	}

	switch {
	case err == nil:
		response.Success(c, http.StatusOK, res)
	case errors.Is(err, runner.ErrAlreadySubmitted):
		response.FailWithData(c, http.StatusConflict, response.ErrAlreadySubmitted, res)
	case rn.State() == runner.StateFailed:
		h.log.Warn().Err(err).Str("session_id", rn.SessionID().String()).Msg("Submission failed")
		response.FailWithData(c, http.StatusServiceUnavailable, response.ErrSubmitFailed, rn.Snapshot())
	default:
		fail(c, h.log, err)
	}
}

// Leave godoc
// POST /api/v1/sessions/:session_id/leave
// Reports a navigation attempt. While the session is open the attempt is
// recorded and refused.
func (h *SessionHandler) Leave(c *gin.Context) {
	respondentID, ok := middleware.GetRespondentID(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	rn, err := h.sessionService.Runner(c.Request.Context(), middleware.GetSessionID(c), respondentID)
	switch {
	case errors.Is(err, runner.ErrSessionFinished):
		response.Success(c, http.StatusOK, gin.H{"guard_armed": false})
		return
	case err != nil:
		fail(c, h.log, err)
		return
	}

	if rn.OnLeaveRequested() {
		response.FailWithData(c, http.StatusConflict, response.ErrLeaveBlocked, gin.H{
			"unanswered_count": rn.Unanswered(),
		})
		return
	}
	response.Success(c, http.StatusOK, gin.H{"guard_armed": false})
}

// GetResult godoc
// GET /api/v1/sessions/:session_id/result
func (h *SessionHandler) GetResult(c *gin.Context) {
	respondentID, ok := middleware.GetRespondentID(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	res, err := h.sessionService.Result(c.Request.Context(), middleware.GetSessionID(c), respondentID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

// runner resolves the caller's runner for :session_id and writes the error
// response when there is none.
func (h *SessionHandler) runner(c *gin.Context) (*runner.ExamSessionRunner, bool) {
	respondentID, ok := middleware.GetRespondentID(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, false
	}

	rn, err := h.sessionService.Runner(c.Request.Context(), middleware.GetSessionID(c), respondentID)
	if err != nil {
		fail(c, h.log, err)
		return nil, false
	}
	return rn, true
}
