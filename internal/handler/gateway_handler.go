package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-insights-api/internal/dto"
	appErrors "github.com/noah-isme/attendance-insights-api/pkg/errors"
	"github.com/noah-isme/attendance-insights-api/pkg/response"
)

type completionStreamer interface {
	Stream(ctx context.Context, req dto.CompletionRequest) (io.ReadCloser, error)
}

// GatewayHandler relays chat completion streams for the assistant bridge.
type GatewayHandler struct {
	service completionStreamer
	logger  *zap.Logger
}

// NewGatewayHandler constructs the handler.
func NewGatewayHandler(service completionStreamer, logger *zap.Logger) *GatewayHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GatewayHandler{service: service, logger: logger}
}

// Insights godoc
// @Summary Stream an attendance insight completion
// @Tags Gateway
// @Accept json
// @Produce text/event-stream
// @Param payload body dto.CompletionRequest true "Question and filters"
// @Success 200 {string} string "event stream"
// @Failure 400 {object} response.Envelope
// @Failure 402 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /ai-insights [post]
func (h *GatewayHandler) Insights(c *gin.Context) {
	var req dto.CompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "Invalid JSON in request body"))
		return
	}
	body, err := h.service.Stream(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer body.Close() //nolint:errcheck

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Header().Set("Content-Type", "text/event-stream")

	buf := make([]byte, 4096)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, err := c.Writer.Write(buf[:n]); err != nil {
				h.logger.Debug("client went away during relay", zap.Error(err))
				return
			}
			c.Writer.Flush()
		}
		if readErr != nil {
			if !errors.Is(readErr, io.EOF) && !errors.Is(readErr, context.Canceled) {
				h.logger.Warn("completion relay interrupted", zap.Error(readErr))
			}
			return
		}
	}
}
