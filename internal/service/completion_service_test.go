package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-insights-api/internal/dto"
	"github.com/noah-isme/attendance-insights-api/internal/models"
	appErrors "github.com/noah-isme/attendance-insights-api/pkg/errors"
)

func TestCompletionServiceStreamsUpstreamBody(t *testing.T) {
	var received chatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer upstream-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\n\ndata: [DONE]\n\n")
	}))
	defer server.Close()

	svc := NewCompletionService(CompletionConfig{UpstreamURL: server.URL, APIKey: "upstream-key", Model: "gpt-4o-mini"}, nil, nil)
	school := "Business"
	body, err := svc.Stream(context.Background(), dto.CompletionRequest{
		Question: "  Which school\x07 is worst?\n",
		Filters:  models.FilterSnapshot{School: &school},
	})
	require.NoError(t, err)
	defer body.Close()

	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "[DONE]")

	assert.Equal(t, "gpt-4o-mini", received.Model)
	assert.True(t, received.Stream)
	require.Len(t, received.Messages, 2)
	assert.Equal(t, "user", received.Messages[1].Role)
	assert.Equal(t, "Which school is worst?", received.Messages[1].Content)
	assert.Contains(t, received.Messages[0].Content, `Current filters: {"school":"Business"}`)
}

func TestCompletionServiceValidation(t *testing.T) {
	svc := NewCompletionService(CompletionConfig{UpstreamURL: "http://127.0.0.1:0", APIKey: "key"}, nil, nil)
	badStatus := "missing"
	badDate := "2024/10/01"

	cases := map[string]dto.CompletionRequest{
		"empty":        {Question: " \t "},
		"too long":     {Question: strings.Repeat("a", 501)},
		"bad status":   {Question: "why?", Filters: models.FilterSnapshot{Status: &badStatus}},
		"bad date":     {Question: "why?", Filters: models.FilterSnapshot{DateFrom: &badDate}},
		"control only": {Question: "\x01\x02"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Stream(context.Background(), req)
			require.ErrorIs(t, err, appErrors.ErrValidation)
		})
	}
}

func TestCompletionServiceMapsUpstreamStatus(t *testing.T) {
	cases := []struct {
		status int
		want   *appErrors.Error
	}{
		{http.StatusTooManyRequests, appErrors.ErrRateLimited},
		{http.StatusPaymentRequired, appErrors.ErrCreditsExhausted},
		{http.StatusBadGateway, appErrors.ErrUpstream},
	}
	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		svc := NewCompletionService(CompletionConfig{UpstreamURL: server.URL, APIKey: "key"}, nil, nil)
		_, err := svc.Stream(context.Background(), dto.CompletionRequest{Question: "trend?"})
		require.ErrorIs(t, err, tc.want)
		server.Close()
	}
}

func TestCompletionServiceRequiresAPIKey(t *testing.T) {
	svc := NewCompletionService(CompletionConfig{UpstreamURL: "http://127.0.0.1:0"}, nil, nil)
	_, err := svc.Stream(context.Background(), dto.CompletionRequest{Question: "trend?"})
	require.ErrorIs(t, err, appErrors.ErrInternal)
}
