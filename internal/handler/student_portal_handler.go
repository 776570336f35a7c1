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

// StudentPortalHandler handles the student's join, state and submit endpoints.
type StudentPortalHandler struct {
	participationService *service.ParticipationService
	log                  zerolog.Logger
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(participationService *service.ParticipationService, log zerolog.Logger) *StudentPortalHandler {
	return &StudentPortalHandler{
		participationService: participationService,
		log:                  log.With().Str("component", "student_portal_handler").Logger(),
	}
}

// JoinSession godoc
// POST /api/v1/student/join
// Resolves a join code to the session and its questions.
func (h *StudentPortalHandler) JoinSession(c *gin.Context) {
	student, ok := middleware.GetStudent(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.JoinSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	view, err := h.participationService.Join(c.Request.Context(), student, req.Code)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// GetState godoc
// GET /api/v1/student/sessions/:id/state
func (h *StudentPortalHandler) GetState(c *gin.Context) {
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

	view, err := h.participationService.State(c.Request.Context(), student, sessionID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// SubmitAnswers godoc
// POST /api/v1/student/sessions/:id/submit
// Records the student's answers. At most one submission per student is kept.
func (h *StudentPortalHandler) SubmitAnswers(c *gin.Context) {
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

	var req model.SubmitAnswersRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	receipt, err := h.participationService.Submit(c.Request.Context(), student, sessionID, &req)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"receipt": receipt})
}
