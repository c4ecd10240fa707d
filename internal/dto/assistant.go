package dto

import "github.com/noah-isme/attendance-insights-api/internal/models"

// AskRequest is the POST /ai/ask payload. The length limit is enforced by the
// bridge so that an oversized question yields an outcome rather than a 400.
type AskRequest struct {
	Question string                `json:"question"`
	Filters  models.FilterSnapshot `json:"filters"`
}

// AnswerDelta is streamed as an SSE "delta" event carrying the full text so far.
type AnswerDelta struct {
	Text string `json:"text"`
}

// AnswerDone closes an answer stream.
type AnswerDone struct {
	Outcome string `json:"outcome"`
	Message string `json:"message,omitempty"`
	Text    string `json:"text"`
}

// CompletionRequest is the insights gateway payload.
type CompletionRequest struct {
	Question string                `json:"question" validate:"required,max=500"`
	Filters  models.FilterSnapshot `json:"filters"`
}
