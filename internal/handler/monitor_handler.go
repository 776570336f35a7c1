package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/classpulse-backend/internal/middleware"
	"github.com/stemsi/classpulse-backend/internal/response"
	"github.com/stemsi/classpulse-backend/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

type MonitorHandler struct {
	sessionService *service.SessionService
	bus            service.EventBus
	log            zerolog.Logger
}

func NewMonitorHandler(sessionService *service.SessionService, bus service.EventBus, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		sessionService: sessionService,
		bus:            bus,
		log:            log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorSessionSSE godoc
// GET /api/v1/teacher/sessions/:id/monitor
// Streams join and submit events, with periodic aggregated results.
func (h *MonitorHandler) MonitorSessionSSE(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	reqCtx := c.Request.Context()

	results, err := h.sessionService.Results(reqCtx, claims.UserID, sessionID)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	events, unsubscribe, err := h.bus.Subscribe(reqCtx, sessionID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	defer unsubscribe()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.SSEvent("message", gin.H{"type": "snapshot", "data": results})
	c.Writer.Flush()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	// Only re-aggregate after something happened.
	dirty := false

	h.log.Info().Str("session_id", sessionID.String()).Msg("Teacher attached to live monitor SSE")

	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("session_id", sessionID.String()).Msg("Teacher disconnected from live monitor SSE")
			return

		case payload, ok := <-events:
			if !ok {
				return
			}
			// Forward raw JSON directly
			c.Writer.Write([]byte("data: "))
			c.Writer.Write(payload)
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
			dirty = true

		case <-refreshTicker.C:
			if !dirty {
				continue
			}
			dirty = false
			h.sendRefresh(c, reqCtx, claims.UserID, sessionID)

		case <-keepAliveTicker.C:
			c.Writer.Write([]byte("data: "))
			c.Writer.Write(pingPayload)
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		}
	}
}

// sendRefresh re-aggregates results and sends them as a refresh event.
func (h *MonitorHandler) sendRefresh(c *gin.Context, parentCtx context.Context, teacherID string, sessionID uuid.UUID) {
	ctx, cancel := context.WithTimeout(parentCtx, refreshTimeout)
	defer cancel()

	results, err := h.sessionService.Results(ctx, teacherID, sessionID)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to aggregate results for refresh")
		return
	}

	c.SSEvent("message", gin.H{"type": "refresh", "data": results})
	c.Writer.Flush()
}
