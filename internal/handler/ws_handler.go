package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/classpulse-backend/internal/middleware"
	"github.com/stemsi/classpulse-backend/internal/model"
	"github.com/stemsi/classpulse-backend/internal/response"
	"github.com/stemsi/classpulse-backend/internal/service"
	"github.com/stemsi/classpulse-backend/internal/session"
	ws "github.com/stemsi/classpulse-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
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

// WSHandler streams a live attempt: countdown ticks out, autosave and submit in.
type WSHandler struct {
	participationService *service.ParticipationService
	log                  zerolog.Logger
	upgrader             websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(participationService *service.ParticipationService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		participationService: participationService,
		log:                  log.With().Str("component", "ws_handler").Logger(),
		upgrader:             buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/student/sessions/:id/stream
// Runs one attempt for the lifetime of the connection. Leaving before
// submitting cancels the attempt; the countdown reaching zero auto-submits.
func (h *WSHandler) SessionStream(c *gin.Context) {
	student, ok := middleware.GetStudent(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	rawConn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.Wrap(rawConn)
	defer conn.Close()

	wsLog := h.log.With().
		Str("student_id", student.ID).
		Str("session_id", sessionID.String()).
		Logger()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	attempt, err := h.participationService.Open(ctx, student, sessionID)
	if err != nil {
		writeSessionError(conn, err)
		_ = ws.WriteClose(conn, "not joined")
		return
	}

	if err := ws.WriteTyped(conn, readyResponse(attempt)); err != nil {
		attempt.Leave()
		return
	}

	events, err := attempt.Begin(ctx)
	if err != nil {
		writeSessionError(conn, err)
		return
	}

	wsLog.Info().Msg("Student connected")

	writerDone := make(chan struct{})
	go h.forwardEvents(conn, events, writerDone)

	h.readActions(ctx, conn, attempt, wsLog)

	attempt.Leave()
	cancel()
	<-writerDone

	wsLog.Info().Str("state", string(attempt.State())).Msg("Student disconnected")
}

func readyResponse(attempt *service.Attempt) ws.ReadyResponse {
	sess := attempt.Joined.Session
	questions := make([]model.QuestionForStudent, 0, len(attempt.Joined.Questions))
	for i := range attempt.Joined.Questions {
		questions = append(questions, attempt.Joined.Questions[i].ForStudent())
	}
	return ws.ReadyResponse{
		Event: ws.EventReady,
		Session: ws.SessionInfo{
			ID:    sess.ID.String(),
			Kind:  sess.Kind,
			Title: sess.Title,
			Timed: sess.EndTime != nil,
		},
		Questions: questions,
		Answers:   attempt.Answers(),
	}
}

// forwardEvents writes countdown events until the attempt stops running. An
// expiry-driven end closes the connection.
func (h *WSHandler) forwardEvents(conn *ws.Conn, events <-chan session.Event, done chan<- struct{}) {
	defer close(done)

	finished := false
	for ev := range events {
		switch ev.Type {
		case session.EventTick:
			_ = ws.WriteTyped(conn, ws.TickResponse{Event: ws.EventTick, Remaining: ev.Remaining})
		case session.EventSubmitted:
			finished = true
			_ = ws.WriteTyped(conn, ws.SubmittedResponse{Event: ws.EventSubmitted, Receipt: ev.Receipt})
		case session.EventExpired:
			finished = true
			_, code := classify(ev.Err)
			_ = ws.WriteTyped(conn, ws.ErrorResponse{
				Event:  ws.EventExpired,
				Code:   string(code),
				Error:  "time is up and the submission could not be recorded",
				Fields: session.FieldsOf(ev.Err),
			})
		}
	}

	if finished {
		_ = ws.WriteClose(conn, "finished")
		conn.Close()
	}
}

func (h *WSHandler) readActions(ctx context.Context, conn *ws.Conn, attempt *service.Attempt, wsLog zerolog.Logger) {
	for {
		var raw json.RawMessage
		if err := ws.ReadJSON(conn, &raw); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		var env ws.RequestEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			_ = ws.WriteError(conn, string(response.ErrInvalidPayload), "malformed message", nil)
			continue
		}

		switch env.Action {
		case ws.ActionAutosave:
			var req ws.AutosaveRequest
			if err := json.Unmarshal(raw, &req); err != nil {
				_ = ws.WriteError(conn, string(response.ErrInvalidPayload), "malformed autosave", nil)
				continue
			}
			if err := attempt.Autosave(ctx, req.QID, req.Answer); err != nil {
				writeSessionError(conn, err)
				continue
			}
			_ = ws.WriteTyped(conn, ws.SavedResponse{Event: ws.EventSaved, QID: req.QID})

		case ws.ActionSubmit:
			receipt, err := attempt.Submit(ctx)
			if err != nil {
				writeSessionError(conn, err)
				if errors.Is(err, session.ErrAlreadySubmitted) {
					return
				}
				continue
			}
			_ = ws.WriteTyped(conn, ws.SubmittedResponse{Event: ws.EventSubmitted, Receipt: receipt})
			_ = ws.WriteClose(conn, "submitted")
			return

		case ws.ActionPing:
			_ = ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})

		default:
			wsLog.Warn().Str("action", string(env.Action)).Msg("Unknown action")
			_ = ws.WriteError(conn, string(response.ErrInvalidPayload), "unknown action: "+string(env.Action), nil)
		}
	}
}

func writeSessionError(conn *ws.Conn, err error) {
	_, code := classify(err)
	_ = ws.WriteError(conn, string(code), response.GetMessage(code), session.FieldsOf(err))
}
