// Package server exposes the chatbot over a web UI and JSON API.
package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"ragchat/internal/apperr"
	"ragchat/internal/chatbot"
)

// Handler serves the chat UI and the document/ask endpoints.
type Handler struct {
	bot *chatbot.Chatbot
}

func NewHandler(bot *chatbot.Chatbot) *Handler {
	return &Handler{bot: bot}
}

// Router builds the gin engine with all routes registered.
func (h *Handler) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/", h.Index)
	api := router.Group("/api")
	{
		api.GET("/status", h.Status)
		api.POST("/documents", h.UploadDocuments)
		api.POST("/ask", h.Ask)
		api.GET("/history", h.History)
		api.DELETE("/history", h.ClearHistory)
		api.POST("/reset", h.Reset)
		api.POST("/rebuild", h.Rebuild)
	}
	return router
}

// Run starts the HTTP server on the given port and blocks.
func (h *Handler) Run(port int) error {
	return h.Router().Run(fmt.Sprintf(":%d", port))
}

// Index serves the single-page chat UI.
// GET /
func (h *Handler) Index(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(indexHTML))
}

// Status reports provider and index state.
// GET /api/status
func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"provider":  h.bot.Provider(),
		"documents": h.bot.Records(),
		"ready":     h.bot.Ready(),
	})
}

// UploadDocuments ingests one or more uploaded files.
// POST /api/documents (multipart, field "files")
func (h *Handler) UploadDocuments(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expected multipart form upload"})
		return
	}
	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files provided"})
		return
	}

	var files []chatbot.UploadedFile
	for _, fh := range fileHeaders {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("failed to open %s", fh.Filename)})
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("failed to read %s", fh.Filename)})
			return
		}
		files = append(files, chatbot.UploadedFile{Name: fh.Filename, Data: data})
	}

	report := h.bot.IngestFiles(c.Request.Context(), files)
	status := http.StatusOK
	if report.Failed == len(files) {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, report)
}

// AskRequest is the body of an ask call.
type AskRequest struct {
	Question string `json:"question" binding:"required"`
}

// Ask answers a question from the indexed documents.
// POST /api/ask
func (h *Handler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	answer, err := h.bot.Ask(c.Request.Context(), req.Question)
	if err != nil {
		log.Error().Err(err).Msg("Ask failed")
		c.JSON(statusFor(err), gin.H{"error": userMessage(err)})
		return
	}

	sources := make([]gin.H, 0, len(answer.Chunks))
	for _, r := range answer.Chunks {
		sources = append(sources, gin.H{
			"id":     r.Chunk.ID,
			"source": r.Chunk.Source,
			"score":  r.Score,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"answer":  answer.Text,
		"sources": sources,
	})
}

// History returns the conversation so far.
// GET /api/history
func (h *Handler) History(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"turns": h.bot.History()})
}

// ClearHistory resets the conversation without touching the index.
// DELETE /api/history
func (h *Handler) ClearHistory(c *gin.Context) {
	h.bot.ClearHistory()
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// Reset clears the index, history and retained uploads.
// POST /api/reset
func (h *Handler) Reset(c *gin.Context) {
	if err := h.bot.Reset(c.Request.Context()); err != nil {
		log.Error().Err(err).Msg("Reset failed")
		c.JSON(statusFor(err), gin.H{"error": userMessage(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

// Rebuild re-ingests every retained upload into a fresh index.
// POST /api/rebuild
func (h *Handler) Rebuild(c *gin.Context) {
	if err := h.bot.Rebuild(c.Request.Context()); err != nil {
		log.Error().Err(err).Msg("Rebuild failed")
		c.JSON(statusFor(err), gin.H{"error": userMessage(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rebuilt", "documents": h.bot.Records()})
}

// statusFor maps taxonomy errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrUnreadableDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrRateLimited):
		return http.StatusServiceUnavailable
	case errors.Is(err, apperr.ErrProviderUnreachable),
		errors.Is(err, apperr.ErrModelNotFound),
		errors.Is(err, apperr.ErrAuthentication):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// userMessage translates taxonomy errors into a user-facing message so
// raw low-level errors never reach the presentation layer.
func userMessage(err error) string {
	switch {
	case errors.Is(err, apperr.ErrUnreadableDocument):
		return "The document could not be read. It may be a scanned PDF with no text layer."
	case errors.Is(err, apperr.ErrProviderUnreachable):
		return "The LLM provider could not be reached. Check that it is running and try again."
	case errors.Is(err, apperr.ErrModelNotFound):
		return "The configured model is not available on the inference server."
	case errors.Is(err, apperr.ErrAuthentication):
		return "The provider rejected the configured credentials."
	case errors.Is(err, apperr.ErrRateLimited):
		return "The provider is rate limiting requests. Try again shortly."
	case errors.Is(err, apperr.ErrCorruptIndex):
		return "The vector index is unreadable. Use rebuild to restore it from retained documents."
	default:
		return "An internal error occurred."
	}
}
