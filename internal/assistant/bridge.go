package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/noah-isme/attendance-insights-api/internal/models"
	"github.com/noah-isme/attendance-insights-api/pkg/middleware/requestid"
)

// Outcome classifies how a question was resolved.
type Outcome string

const (
	OutcomeCompleted        Outcome = "completed"
	OutcomeSkipped          Outcome = "skipped"
	OutcomeInvalid          Outcome = "invalid"
	OutcomeSessionExpired   Outcome = "session_expired"
	OutcomeRateLimited      Outcome = "rate_limited"
	OutcomeCreditsExhausted Outcome = "credits_exhausted"
	OutcomeCanceled         Outcome = "canceled"
	OutcomeFailed           Outcome = "failed"
)

// User facing messages for each failure outcome.
const (
	MessageSessionExpired   = "Your session has expired. Please sign in again."
	MessageRateLimited      = "Too many requests right now. Please wait a moment and try again."
	MessageCreditsExhausted = "AI credits are exhausted. Please add credits to continue."
	MessageFailed           = "Sorry, something went wrong while analysing the data. Please try again."
	MessageCanceled         = "The request was cancelled."
	MessageTooLong          = "Your question is too long. Please shorten it and try again."
)

// Answer is the final state of an Ask call. Text holds everything decoded so
// far, even when the stream failed part way through.
type Answer struct {
	Text    string  `json:"text"`
	Outcome Outcome `json:"outcome"`
	Message string  `json:"message,omitempty"`
}

// Question is one request to the insights gateway.
type Question struct {
	Text    string
	Filters models.DashboardFilters
	// AccessToken is forwarded as the bearer credential; the bridge API key is
	// used when empty.
	AccessToken string
}

// OutcomeObserver receives one observation per Ask call.
type OutcomeObserver interface {
	ObserveAssistantOutcome(outcome string, duration time.Duration)
}

// Config configures a Bridge.
type Config struct {
	Endpoint          string
	APIKey            string
	Timeout           time.Duration
	MaxQuestionLength int
	HTTPClient        *http.Client
	Logger            *zap.Logger
	Observer          OutcomeObserver
}

// Bridge streams answers from the insights gateway. It never returns an error:
// every failure is mapped to an Outcome and a user facing message.
type Bridge struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// NewBridge constructs a Bridge.
func NewBridge(cfg Config) *Bridge {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if cfg.MaxQuestionLength <= 0 {
		cfg.MaxQuestionLength = 500
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{cfg: cfg, client: client, logger: logger}
}

type askPayload struct {
	Question string                `json:"question"`
	Filters  models.FilterSnapshot `json:"filters"`
}

// Ask sends q and streams the answer. onUpdate, when non-nil, is called with the
// full accumulated text after every decoded increment, so callers observe a
// monotonically growing string.
func (b *Bridge) Ask(ctx context.Context, q Question, onUpdate func(string)) Answer {
	start := time.Now()
	answer := b.ask(ctx, q, onUpdate)
	if answer.Outcome != OutcomeSkipped && b.cfg.Observer != nil {
		b.cfg.Observer.ObserveAssistantOutcome(string(answer.Outcome), time.Since(start))
	}
	return answer
}

func (b *Bridge) ask(ctx context.Context, q Question, onUpdate func(string)) Answer {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return Answer{Outcome: OutcomeSkipped}
	}
	if utf8.RuneCountInString(text) > b.cfg.MaxQuestionLength {
		return Answer{Outcome: OutcomeInvalid, Message: MessageTooLong}
	}

	body, err := json.Marshal(askPayload{Question: text, Filters: q.Filters.Snapshot()})
	if err != nil {
		b.logger.Error("encode assistant payload", zap.Error(err))
		return Answer{Outcome: OutcomeFailed, Message: MessageFailed}
	}

	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		b.logger.Error("build assistant request", zap.Error(err))
		return Answer{Outcome: OutcomeFailed, Message: MessageFailed}
	}
	token := q.AccessToken
	if token == "" {
		token = b.cfg.APIKey
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if id := requestid.FromContext(ctx); id != "" {
		req.Header.Set(requestid.HeaderKey, id)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return b.failure(ctx, "", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return Answer{Outcome: OutcomeSessionExpired, Message: MessageSessionExpired}
	case http.StatusTooManyRequests:
		return Answer{Outcome: OutcomeRateLimited, Message: MessageRateLimited}
	case http.StatusPaymentRequired:
		return Answer{Outcome: OutcomeCreditsExhausted, Message: MessageCreditsExhausted}
	default:
		b.logger.Warn("assistant gateway returned error status", zap.Int("status", resp.StatusCode))
		return Answer{Outcome: OutcomeFailed, Message: MessageFailed}
	}

	return b.consume(ctx, resp.Body, onUpdate)
}

func (b *Bridge) consume(ctx context.Context, body io.Reader, onUpdate func(string)) Answer {
	var (
		decoder StreamDecoder
		acc     strings.Builder
		chunk   = make([]byte, 4096)
	)
	emit := func(deltas []string) {
		for _, d := range deltas {
			acc.WriteString(d)
			if onUpdate != nil {
				onUpdate(acc.String())
			}
		}
	}

	for {
		n, err := body.Read(chunk)
		if n > 0 {
			deltas, done := decoder.Feed(chunk[:n])
			emit(deltas)
			if done {
				return Answer{Text: acc.String(), Outcome: OutcomeCompleted}
			}
		}
		if errors.Is(err, io.EOF) {
			emit(decoder.Flush())
			return Answer{Text: acc.String(), Outcome: OutcomeCompleted}
		}
		if err != nil {
			return b.failure(ctx, acc.String(), err)
		}
	}
}

func (b *Bridge) failure(ctx context.Context, partial string, err error) Answer {
	if errors.Is(ctx.Err(), context.Canceled) {
		return Answer{Text: partial, Outcome: OutcomeCanceled, Message: MessageCanceled}
	}
	b.logger.Warn("assistant request failed", zap.Error(err), zap.Int("partial_length", len(partial)))
	return Answer{Text: partial, Outcome: OutcomeFailed, Message: MessageFailed}
}
