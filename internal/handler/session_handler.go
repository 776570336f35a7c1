package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/classpulse-backend/internal/middleware"
	"github.com/stemsi/classpulse-backend/internal/model"
	"github.com/stemsi/classpulse-backend/internal/response"
	"github.com/stemsi/classpulse-backend/internal/service"
	"github.com/stemsi/classpulse-backend/internal/validator"
)

// SessionHandler handles the teacher's session endpoints.
type SessionHandler struct {
	sessionService *service.SessionService
	log            zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService *service.SessionService, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "session_handler").Logger(),
	}
}

// ListSessions godoc
// GET /api/v1/teacher/sessions
func (h *SessionHandler) ListSessions(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessions, err := h.sessionService.List(c.Request.Context(), claims.UserID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"sessions": sessions})
}

// CreateSession godoc
// POST /api/v1/teacher/sessions
// Creates a DRAFT session with a fresh join code.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sess, err := h.sessionService.Create(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"session": sess})
}

// GetSession godoc
// GET /api/v1/teacher/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	h.withSession(c, func(teacherID string, id uuid.UUID) (interface{}, error) {
		sess, err := h.sessionService.Get(c.Request.Context(), teacherID, id)
		return gin.H{"session": sess}, err
	})
}

// StartSession godoc
// POST /api/v1/teacher/sessions/:id/start
// Moves DRAFT -> ACTIVE and fixes the end time.
func (h *SessionHandler) StartSession(c *gin.Context) {
	h.withSession(c, func(teacherID string, id uuid.UUID) (interface{}, error) {
		sess, err := h.sessionService.Start(c.Request.Context(), teacherID, id)
		return gin.H{"session": sess}, err
	})
}

// EndSession godoc
// POST /api/v1/teacher/sessions/:id/end
func (h *SessionHandler) EndSession(c *gin.Context) {
	h.withSession(c, func(teacherID string, id uuid.UUID) (interface{}, error) {
		sess, err := h.sessionService.End(c.Request.Context(), teacherID, id)
		return gin.H{"session": sess}, err
	})
}

// GetResults godoc
// GET /api/v1/teacher/sessions/:id/results
func (h *SessionHandler) GetResults(c *gin.Context) {
	h.withSession(c, func(teacherID string, id uuid.UUID) (interface{}, error) {
		results, err := h.sessionService.Results(c.Request.Context(), teacherID, id)
		return gin.H{"results": results}, err
	})
}

func (h *SessionHandler) withSession(c *gin.Context, fn func(teacherID string, id uuid.UUID) (interface{}, error)) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	data, err := fn(claims.UserID, id)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, data)
}
