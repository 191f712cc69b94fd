// Package handler contains the HTTP handlers for the link importer.
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/northlink/link-importer/internal/domain"
	"github.com/northlink/link-importer/internal/logger"
	"github.com/northlink/link-importer/internal/metrics"
	"github.com/northlink/link-importer/internal/queue"
	"github.com/northlink/link-importer/internal/storage"
)

// Dispatcher runs one import invocation for a verified job message.
type Dispatcher interface {
	Run(ctx context.Context, msg domain.JobMessage) error
}

// ImportHandler is the trigger endpoint the queue transport delivers job
// messages to.
type ImportHandler struct {
	dispatcher Dispatcher
	signer     *queue.Signer
	repo       *storage.Repository
	production bool
	logger     logger.Logger
	metrics    *metrics.Metrics
}

// NewImportHandler creates the import trigger handler. Signature
// verification only runs when production is true.
func NewImportHandler(
	dispatcher Dispatcher,
	signer *queue.Signer,
	repo *storage.Repository,
	production bool,
	log logger.Logger,
	m *metrics.Metrics,
) *ImportHandler {
	return &ImportHandler{
		dispatcher: dispatcher,
		signer:     signer,
		repo:       repo,
		production: production,
		logger:     log,
		metrics:    m,
	}
}

// HandleImport verifies the message's authenticity, parses the body, and
// dispatches into the pipeline. A non-2xx response lets the queue transport
// apply its redelivery policy for transport-level failures; page-level
// continuation is the pipeline's own explicit re-enqueue, never redelivery.
func (h *ImportHandler) HandleImport(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	if h.production {
		signature := c.GetHeader(queue.SignatureHeader)
		if err := h.signer.Verify(body, signature); err != nil {
			h.logger.Warn("Rejected job message with bad signature",
				logger.Error(err),
			)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid message signature"})
			return
		}
	}

	var msg domain.JobMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed job message"})
		return
	}
	if msg.WorkspaceID == "" || msg.Provider == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "workspaceId and provider are required"})
		return
	}

	if err := h.dispatcher.Run(c.Request.Context(), msg); err != nil {
		h.metrics.ImportErrors.Inc()
		h.logImportFailure(c.Request.Context(), msg, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"response": "success"})
}

// logImportFailure emits the operator-facing error log, resolving the
// workspace slug when it can so the alert is human-readable.
func (h *ImportHandler) logImportFailure(ctx context.Context, msg domain.JobMessage, importErr error) {
	slug := msg.WorkspaceID
	if ws, err := h.repo.Workspace(ctx, msg.WorkspaceID); err == nil {
		slug = ws.Slug
	}

	h.logger.Error("Import invocation failed",
		logger.String("workspace", slug),
		logger.String("provider", msg.Provider),
		logger.Int64("count", msg.Count),
		logger.Error(importErr),
	)
}
