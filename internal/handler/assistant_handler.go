package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-insights-api/internal/assistant"
	"github.com/noah-isme/attendance-insights-api/internal/dto"
	appErrors "github.com/noah-isme/attendance-insights-api/pkg/errors"
	"github.com/noah-isme/attendance-insights-api/pkg/response"
)

type questionAnswerer interface {
	Ask(ctx context.Context, q assistant.Question, onUpdate func(string)) assistant.Answer
}

// AssistantHandler streams answers to natural language questions about the
// filtered attendance data.
type AssistantHandler struct {
	bridge questionAnswerer
	logger *zap.Logger
}

// NewAssistantHandler constructs the handler.
func NewAssistantHandler(bridge questionAnswerer, logger *zap.Logger) *AssistantHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssistantHandler{bridge: bridge, logger: logger}
}

// Ask godoc
// @Summary Ask the attendance assistant
// @Description Streams "delta" events carrying the accumulated answer followed by one "done" event.
// @Tags Assistant
// @Accept json
// @Produce text/event-stream
// @Param payload body dto.AskRequest true "Question and active filters"
// @Success 200 {string} string "event stream"
// @Failure 400 {object} response.Envelope
// @Router /ai/ask [post]
func (h *AssistantHandler) Ask(c *gin.Context) {
	if h.bridge == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "assistant not configured"))
		return
	}
	var req dto.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	filters, err := dto.FiltersFromSnapshot(req.Filters)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid filters"))
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	answer := h.bridge.Ask(c.Request.Context(), assistant.Question{
		Text:        req.Question,
		Filters:     filters,
		AccessToken: bearerToken(c),
	}, func(text string) {
		c.SSEvent("delta", dto.AnswerDelta{Text: text})
		c.Writer.Flush()
	})

	c.SSEvent("done", dto.AnswerDone{
		Outcome: string(answer.Outcome),
		Message: answer.Message,
		Text:    answer.Text,
	})
	c.Writer.Flush()
	h.logger.Debug("assistant answer streamed", zap.String("outcome", string(answer.Outcome)), zap.Int("length", len(answer.Text)))
}
