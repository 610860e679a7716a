package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/semuinside/exam-backend/internal/middleware"
	"github.com/semuinside/exam-backend/internal/model"
	"github.com/semuinside/exam-backend/internal/response"
	"github.com/semuinside/exam-backend/internal/runner"
	"github.com/semuinside/exam-backend/internal/service"
	"github.com/semuinside/exam-backend/internal/validator"
	ws "github.com/semuinside/exam-backend/internal/websocket"
)

const (
	wsEventBuffer  = 64
	wsSubmitWait   = 30 * time.Second
	wsOutboxBuffer = 16
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams runner events to the respondent and accepts actions.
type WSHandler struct {
	sessionService *service.ExamSessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.ExamSessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/sessions/:session_id/stream?token=
// Pushes clock, autosave and submission events and accepts answer, text,
// submit, retry, leave and ping actions.
func (h *WSHandler) SessionStream(c *gin.Context) {
	respondentID, ok := middleware.GetRespondentID(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	rn, err := h.sessionService.Runner(c.Request.Context(), middleware.GetSessionID(c), respondentID)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Str("session_id", rn.SessionID().String()).
		Str("respondent_id", respondentID.String()).
		Logger()
	wsLog.Info().Msg("Respondent connected")

	events, unsubscribe := rn.Subscribe(wsEventBuffer)
	defer unsubscribe()

	outbox := make(chan any, wsOutboxBuffer)
	done := make(chan struct{})
	go h.writePump(conn, wsLog, events, outbox, done)

	outbox <- ws.StateResponse{Event: ws.EventState, State: rn.Snapshot()}

	ws.PrepareRead(conn)
	for {
		data, err := ws.ReadMessage(conn)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		reply := h.dispatch(rn, data)
		if reply == nil {
			continue
		}
		select {
		case outbox <- reply:
		case <-done:
			return
		}
	}
	close(outbox)
	<-done
}

// dispatch handles one client frame and returns the direct reply, if any.
func (h *WSHandler) dispatch(rn *runner.ExamSessionRunner, data []byte) any {
	var env ws.RequestEnvelope
	if fields := validator.Decode(data, &env); fields != nil {
		return wsError("INVALID_PAYLOAD", "malformed message")
	}

	switch env.Action {
	case ws.ActionPing:
		return ws.PongResponse{Event: ws.EventPong}

	case ws.ActionAnswer:
		var req ws.AnswerRequest
		if fields := validator.Decode(data, &req); fields != nil {
			return wsError("VALIDATION_ERROR", joinFields(fields))
		}
		qid := uuid.MustParse(req.QuestionID)
		kind, ok := rn.QuestionType(qid)
		if !ok {
			return wsErr(runner.ErrUnknownQuestion)
		}
		value, err := model.DecodeAnswer(kind, req.Value)
		if err != nil {
			return wsErr(err)
		}
		if err := rn.OnAnswerChanged(qid, value); err != nil {
			return wsErr(err)
		}
		return ws.SavedResponse{Event: ws.EventSaved, QuestionID: req.QuestionID, Unanswered: rn.Unanswered()}

	case ws.ActionText:
		var req ws.TextRequest
		if fields := validator.Decode(data, &req); fields != nil {
			return wsError("VALIDATION_ERROR", joinFields(fields))
		}
		if err := rn.OnTextChanged(uuid.MustParse(req.QuestionID), req.Text); err != nil {
			return wsErr(err)
		}
		return nil

	case ws.ActionSubmit, ws.ActionRetry:
		ctx, cancel := context.WithTimeout(context.Background(), wsSubmitWait)
		defer cancel()
		var err error
		if env.Action == ws.ActionRetry {
			_, err = rn.Retry(ctx)
		} else {
			_, err = rn.OnSubmitRequested(ctx)
		}
		// Success and failure are reported through graded / submit_failed events.
		if err != nil && rn.State() != runner.StateFailed {
			return wsErr(err)
		}
		return nil

	case ws.ActionLeave:
		if rn.OnLeaveRequested() {
			return ws.LeaveResponse{Event: ws.EventBlocked, Unanswered: rn.Unanswered()}
		}
		return ws.LeaveResponse{Event: ws.EventLeave}
	}

	return wsError("UNKNOWN_ACTION", "unknown action: "+string(env.Action))
}

// writePump is the only goroutine that writes to conn.
func (h *WSHandler) writePump(conn *websocket.Conn, log zerolog.Logger, events <-chan runner.Event, outbox <-chan any, done chan<- struct{}) {
	defer close(done)
	ping := time.NewTicker(ws.PingPeriod)
	defer ping.Stop()

	for {
		var err error
		select {
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
					time.Now().Add(time.Second))
				conn.Close()
				return
			}
			err = ws.WriteTyped(conn, ev)
		case msg, ok := <-outbox:
			if !ok {
				return
			}
			err = ws.WriteTyped(conn, msg)
		case <-ping.C:
			err = ws.WritePing(conn)
		}
		if err != nil {
			log.Debug().Err(err).Msg("Write failed")
			conn.Close()
			return
		}
	}
}

func wsErr(err error) ws.ErrorResponse {
	_, code := classify(err)
	return wsError(string(code), err.Error())
}

func wsError(code, msg string) ws.ErrorResponse {
	return ws.ErrorResponse{Event: ws.EventError, Code: code, Error: msg}
}

func joinFields(fields map[string]string) string {
	parts := make([]string, 0, len(fields))
	for k, v := range fields {
		parts = append(parts, k+": "+v)
	}
	return strings.Join(parts, "; ")
}
