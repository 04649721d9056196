// Package server exposes the conversation runner over HTTP.
package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/athletedesk/athletedesk/pkg/agent"
	"github.com/athletedesk/athletedesk/pkg/agent/state"
)

// ChatRequest is the POST /api/chat body.
type ChatRequest struct {
	ConversationID string          `json:"conversationId"`
	Messages       []state.Message `json:"messages" binding:"required"`
}

// Handler routes HTTP requests into the agent runner.
type Handler struct {
	runner *agent.Runner
}

// NewHandler wraps a runner.
func NewHandler(runner *agent.Runner) *Handler {
	return &Handler{runner: runner}
}

// Router builds the gin engine with CORS and all routes registered.
func (h *Handler) Router(allowOrigins []string) *gin.Engine {
	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:  allowOrigins,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
	}))

	r.GET("/healthz", h.Health)
	api := r.Group("/api")
	api.POST("/chat", h.Chat)
	api.POST("/chat/:runId/resume", h.Resume)
	return r
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Chat runs one conversation turn. The runner absorbs pipeline
// failures, so this only rejects malformed requests.
func (h *Handler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "messages are required"})
		return
	}
	if len(req.Messages) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "messages are required"})
		return
	}

	result := h.runner.Invoke(c.Request.Context(), agent.Request{
		ConversationID: req.ConversationID,
		Messages:       req.Messages,
	})
	c.JSON(http.StatusOK, result)
}

// Resume replays an interrupted run from its latest checkpoint.
func (h *Handler) Resume(c *gin.Context) {
	result, err := h.runner.Resume(c.Request.Context(), c.Param("runId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no resumable run with that id"})
		return
	}
	c.JSON(http.StatusOK, result)
}
