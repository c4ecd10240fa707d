package handler

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-insights-api/internal/dto"
	appErrors "github.com/noah-isme/attendance-insights-api/pkg/errors"
)

type fakeStreamer struct {
	req  dto.CompletionRequest
	body string
	err  error
}

func (f *fakeStreamer) Stream(_ context.Context, req dto.CompletionRequest) (io.ReadCloser, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.body)), nil
}

func TestGatewayHandlerRelaysStream(t *testing.T) {
	frames := "data: {\"choices\":[{\"delta\":{\"content\":\"**Law**\"}}]}\n\ndata: [DONE]\n\n"
	streamer := &fakeStreamer{body: frames}
	handler := NewGatewayHandler(streamer, nil)

	c, rec := newJSONContext(http.MethodPost, "/ai-insights", `{"question":"Worst school?","filters":{"status":"absent"}}`)
	handler.Insights(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, frames, rec.Body.String())
	assert.Equal(t, "Worst school?", streamer.req.Question)
}

func TestGatewayHandlerMapsErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{appErrors.Clone(appErrors.ErrValidation, "invalid payload"), http.StatusBadRequest},
		{appErrors.ErrRateLimited, http.StatusTooManyRequests},
		{appErrors.ErrCreditsExhausted, http.StatusPaymentRequired},
		{appErrors.ErrUpstream, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		handler := NewGatewayHandler(&fakeStreamer{err: tc.err}, nil)
		c, rec := newJSONContext(http.MethodPost, "/ai-insights", `{"question":"trend?"}`)
		handler.Insights(c)
		assert.Equal(t, tc.status, rec.Code)
		assert.Contains(t, rec.Body.String(), `"error"`)
	}
}

func TestGatewayHandlerRejectsInvalidJSON(t *testing.T) {
	streamer := &fakeStreamer{}
	handler := NewGatewayHandler(streamer, nil)
	c, rec := newJSONContext(http.MethodPost, "/ai-insights", `not json`)
	handler.Insights(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, streamer.req.Question)
}
