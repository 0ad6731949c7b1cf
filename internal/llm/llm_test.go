package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bizchat-ai/bizchat/internal/config"
	apperr "github.com/bizchat-ai/bizchat/internal/errors"
)

// fakeEndpoint records chat-completion request bodies and replays canned
// responses in order, repeating the last one.
type fakeEndpoint struct {
	mu        sync.Mutex
	bodies    []string
	responses []fakeResponse
}

type fakeResponse struct {
	status int
	body   string
}

func completionBody(content string) string {
	return `{"id":"1","object":"chat.completion","created":1,"model":"test",` +
		`"choices":[{"index":0,"message":{"role":"assistant","content":` + mustJSON(content) + `},"finish_reason":"stop"}],` +
		`"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`
}

func apiErrorBody(message string) string {
	return `{"error":{"message":` + mustJSON(message) + `,"type":"invalid_request_error"}}`
}

func mustJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func (f *fakeEndpoint) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		f.mu.Lock()
		f.bodies = append(f.bodies, string(body))
		i := len(f.bodies) - 1
		if i >= len(f.responses) {
			i = len(f.responses) - 1
		}
		resp := f.responses[i]
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.status)
		_, _ = w.Write([]byte(resp.body))
	})
	mux.HandleFunc("GET /v1/models", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"test","object":"model"}]}`))
	})
	return mux
}

func (f *fakeEndpoint) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bodies)
}

func (f *fakeEndpoint) body(i int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[i]
}

func newTestClient(t *testing.T, f *fakeEndpoint) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	return NewClient(config.LLMConfig{
		BaseURL:    srv.URL + "/v1",
		APIKey:     "test",
		Model:      "test",
		MaxTokens:  100,
		TimeoutSec: 5,
	}, zap.NewNop())
}

func imageConversation() []Message {
	return []Message{
		{Role: RoleSystem, Text: "assistant"},
		{Role: RoleUser, Text: "what is on this receipt?", Images: []ImagePart{{MIME: "image/png", Base64: "aGk="}}},
	}
}

func TestCompleteReturnsReply(t *testing.T) {
	f := &fakeEndpoint{responses: []fakeResponse{{200, completionBody("  the answer  ")}}}
	c := newTestClient(t, f)

	reply, err := c.Complete(context.Background(), []Message{{Role: RoleUser, Text: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "the answer", reply)
	assert.Equal(t, 1, f.calls())
}

func TestCompleteRetriesWithoutImagesOnBadRequest(t *testing.T) {
	f := &fakeEndpoint{responses: []fakeResponse{
		{400, apiErrorBody("image input is not supported")},
		{200, completionBody("text-only answer")},
	}}
	c := newTestClient(t, f)

	reply, err := c.Complete(context.Background(), imageConversation())
	require.NoError(t, err)
	assert.Equal(t, degradedNote+"text-only answer", reply)

	require.Equal(t, 2, f.calls())
	assert.Contains(t, f.body(0), "image_url")
	assert.NotContains(t, f.body(1), "image_url")
	assert.Contains(t, f.body(1), "what is on this receipt?")
}

func TestCompleteContextOverflowIsNotRetried(t *testing.T) {
	f := &fakeEndpoint{responses: []fakeResponse{
		{400, apiErrorBody("this model's maximum context length is exceeded")},
	}}
	c := newTestClient(t, f)

	_, err := c.Complete(context.Background(), imageConversation())
	require.Error(t, err)
	assert.Equal(t, 1, f.calls(), "overflow must not trigger the image retry")

	var appErr *apperr.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.CodeModelContextOverflow, appErr.Code)
	assert.Equal(t, apperr.CategoryPermanent, apperr.GetCategory(err))
}

func TestCompleteBadRequestWithoutImagesFailsOnce(t *testing.T) {
	f := &fakeEndpoint{responses: []fakeResponse{{400, apiErrorBody("bad request")}}}
	c := newTestClient(t, f)

	_, err := c.Complete(context.Background(), []Message{{Role: RoleUser, Text: "hi"}})
	require.Error(t, err)
	assert.Equal(t, 1, f.calls())

	var appErr *apperr.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.CodeModelInvalidResponse, appErr.Code)
}

func TestHealth(t *testing.T) {
	f := &fakeEndpoint{responses: []fakeResponse{{200, completionBody("x")}}}
	c := newTestClient(t, f)
	assert.NoError(t, c.Health(context.Background()))

	down := NewClient(config.LLMConfig{
		BaseURL:    "http://127.0.0.1:1/v1",
		Model:      "test",
		TimeoutSec: 1,
	}, zap.NewNop())
	err := down.Health(context.Background())
	require.Error(t, err)

	var appErr *apperr.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.CodeModelUnavailable, appErr.Code)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     string
		category apperr.Category
	}{
		{
			name:     "timeout is temporary",
			err:      context.DeadlineExceeded,
			code:     apperr.CodeModelTimeout,
			category: apperr.CategoryTemporary,
		},
		{
			name:     "context overflow is permanent",
			err:      &openai.APIError{HTTPStatusCode: 400, Message: "context length exceeded"},
			code:     apperr.CodeModelContextOverflow,
			category: apperr.CategoryPermanent,
		},
		{
			name:     "token overflow wording is permanent",
			err:      &openai.APIError{HTTPStatusCode: 400, Message: "too many tokens in the request"},
			code:     apperr.CodeModelContextOverflow,
			category: apperr.CategoryPermanent,
		},
		{
			name:     "plain bad request is permanent",
			err:      &openai.APIError{HTTPStatusCode: 400, Message: "unsupported content"},
			code:     apperr.CodeModelInvalidResponse,
			category: apperr.CategoryPermanent,
		},
		{
			name:     "anything else is temporary",
			err:      errors.New("connection refused"),
			code:     apperr.CodeModelUnavailable,
			category: apperr.CategoryTemporary,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(tt.err)
			var appErr *apperr.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.code, appErr.Code)
			assert.Equal(t, tt.category, apperr.GetCategory(err))
		})
	}

	assert.NoError(t, classify(nil))
}

func TestIsContextOverflow(t *testing.T) {
	assert.True(t, isContextOverflow(&openai.APIError{HTTPStatusCode: 400, Message: "Maximum context length reached"}))
	assert.True(t, isContextOverflow(&openai.APIError{HTTPStatusCode: 400, Message: "context_length_exceeded"}))
	assert.False(t, isContextOverflow(&openai.APIError{HTTPStatusCode: 400, Message: "image not supported"}))
	assert.False(t, isContextOverflow(&openai.APIError{HTTPStatusCode: 500, Message: "context length"}))
	assert.False(t, isContextOverflow(errors.New("context length")))
}

func TestStripImages(t *testing.T) {
	in := imageConversation()
	out := stripImages(in)

	require.Len(t, out, len(in))
	for _, m := range out {
		assert.Empty(t, m.Images)
	}
	assert.Equal(t, in[1].Text, out[1].Text)

	// The originals keep their images.
	assert.NotEmpty(t, in[1].Images)
	assert.True(t, hasImages(in))
	assert.False(t, hasImages(out))
}
