package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-insights-api/internal/dto"
	"github.com/noah-isme/attendance-insights-api/internal/models"
	appErrors "github.com/noah-isme/attendance-insights-api/pkg/errors"
)

const completionSystemPrompt = `You are a university attendance analytics copilot.

RESPONSE RULES (must follow):
- Max 3 bullet points
- Max 2 short sentences per bullet
- No methodology explanations
- No assumptions unless explicitly asked
- No repeating filters back to the user
- Use plain English, executive tone

VISUALIZATION TRIGGER RULE:
If the user asks "Which", "Compare", "Trend", "Worst", "Best", "Highest", "Lowest":
- Always recommend a chart type (bar or line)
- Do not ask follow-up questions
- Do not explain calculations

ATTENDANCE RATE CALCULATION:
(present + late) / total sessions

INSIGHT CARD FORMAT (preferred):
**Bold headline**
One supporting metric
One implication

DATA CONTEXT:
- Schools, Programmes, Courses, Class Sessions, Students, Attendance Records
- Status values: present, late, excused, absent
- Delivery modes: online, in-person

Current filters: %s

If data is insufficient, respond only: "Not enough data with current filters."`

// CompletionConfig configures the upstream chat completion provider.
type CompletionConfig struct {
	UpstreamURL string
	APIKey      string
	Model       string
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// CompletionService validates questions and opens streaming completions upstream.
type CompletionService struct {
	cfg       CompletionConfig
	client    *http.Client
	validator *validator.Validate
	logger    *zap.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// NewCompletionService constructs a CompletionService.
func NewCompletionService(cfg CompletionConfig, validate *validator.Validate, logger *zap.Logger) *CompletionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &CompletionService{cfg: cfg, client: client, validator: validate, logger: logger}
}

// Stream validates req and returns the upstream event stream body. The caller
// owns the returned body and must close it.
func (s *CompletionService) Stream(ctx context.Context, req dto.CompletionRequest) (io.ReadCloser, error) {
	req.Question = sanitizeQuestion(req.Question)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	filters, err := dto.FiltersFromSnapshot(req.Filters)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid filters")
	}
	if s.cfg.APIKey == "" {
		return nil, appErrors.Clone(appErrors.ErrInternal, "completion provider is not configured")
	}

	prompt, err := systemPrompt(filters.Snapshot())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build prompt")
	}
	payload, err := json.Marshal(chatCompletionRequest{
		Model: s.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: prompt},
			{Role: "user", Content: req.Question},
		},
		Stream: true,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode completion request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.UpstreamURL, bytes.NewReader(payload))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build completion request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		s.logger.Error("completion upstream unreachable", zap.Error(err))
		return nil, appErrors.Within(appErrors.ErrUpstream, err, "")
	}
	if resp.StatusCode == http.StatusOK {
		return resp.Body, nil
	}
	defer resp.Body.Close() //nolint:errcheck

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return nil, appErrors.ErrRateLimited
	case http.StatusPaymentRequired:
		return nil, appErrors.ErrCreditsExhausted
	}
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	s.logger.Error("completion upstream error", zap.Int("status", resp.StatusCode), zap.ByteString("body", detail))
	return nil, appErrors.Within(appErrors.ErrUpstream, fmt.Errorf("upstream status %d", resp.StatusCode), "")
}

func systemPrompt(snap models.FilterSnapshot) (string, error) {
	raw, err := json.Marshal(snap)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(completionSystemPrompt, raw), nil
}

func sanitizeQuestion(raw string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, strings.TrimSpace(raw))
}
