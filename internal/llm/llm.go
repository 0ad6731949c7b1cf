// Package llm provides the language model client.
//
// The backend talks to any endpoint speaking the OpenAI chat-completions
// protocol; in the default deployment that is a local LM Studio instance
// serving a small vision model.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/bizchat-ai/bizchat/internal/config"
	apperr "github.com/bizchat-ai/bizchat/internal/errors"
)

// Message is one chat turn handed to the model. Images ride alongside the
// text as base64 payloads and become data-URI image parts on the wire.
type Message struct {
	Role   string
	Text   string
	Images []ImagePart
}

// ImagePart is one image attachment for a vision-capable model.
type ImagePart struct {
	MIME   string
	Base64 string
}

// Roles mirror the wire protocol.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Model is the completion interface the pipeline depends on.
type Model interface {
	// Complete runs one chat completion and returns the assistant reply.
	Complete(ctx context.Context, messages []Message) (string, error)

	// Health checks whether the endpoint is reachable.
	Health(ctx context.Context) error

	// Name returns the configured model identifier.
	Name() string
}

// degradedNote is prepended to a reply produced without the attached
// images after the model rejected them.
const degradedNote = "[Note: attached images could not be processed; the answer is based on text only.]\n\n"

// Client implements Model against an OpenAI-compatible endpoint.
type Client struct {
	api         *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	limiter     *rate.Limiter
	log         *zap.Logger
}

// NewClient builds a Client from configuration.
func NewClient(cfg config.LLMConfig, log *zap.Logger) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = cfg.BaseURL

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), cfg.RequestsPerMinute)
	}

	return &Client{
		api:         openai.NewClientWithConfig(apiCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     time.Duration(cfg.TimeoutSec) * time.Second,
		limiter:     limiter,
		log:         log,
	}
}

// Name returns the configured model identifier.
func (c *Client) Name() string { return c.model }

// Complete runs one chat completion. A 400 caused by image content is
// retried once with the images stripped; a context-length 400 is permanent.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	reply, err := c.complete(ctx, messages)
	if err == nil {
		return reply, nil
	}

	if isBadRequest(err) && hasImages(messages) && !isContextOverflow(err) {
		c.log.Warn("model rejected request with images, retrying without them",
			zap.String("model", c.model), zap.Error(err))
		reply, retryErr := c.complete(ctx, stripImages(messages))
		if retryErr != nil {
			return "", classify(retryErr)
		}
		return degradedNote + reply, nil
	}

	return "", classify(err)
}

func (c *Client) complete(ctx context.Context, messages []Message) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toWire(messages),
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", apperr.Permanent(apperr.CodeModelInvalidResponse, "model returned no choices")
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	c.log.Debug("completion finished",
		zap.String("model", c.model),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens))

	return reply, nil
}

// Health probes the endpoint by listing models.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := c.api.ListModels(ctx); err != nil {
		return apperr.Wrap(err, apperr.CodeModelUnavailable,
			"model endpoint is unreachable", apperr.CategoryTemporary)
	}
	return nil
}

// ============================================================
// Wire Conversion
// ============================================================

func toWire(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		if len(m.Images) == 0 {
			out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Text})
			continue
		}

		parts := make([]openai.ChatMessagePart, 0, len(m.Images)+1)
		if m.Text != "" {
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: m.Text,
			})
		}
		for _, img := range m.Images {
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: fmt.Sprintf("data:%s;base64,%s", img.MIME, img.Base64),
				},
			})
		}
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, MultiContent: parts})
	}
	return out
}

func hasImages(messages []Message) bool {
	for _, m := range messages {
		if len(m.Images) > 0 {
			return true
		}
	}
	return false
}

func stripImages(messages []Message) []Message {
	out := make([]Message, len(messages))
	for i, m := range messages {
		m.Images = nil
		out[i] = m
	}
	return out
}

// ============================================================
// Error Classification
// ============================================================

func isBadRequest(err error) bool {
	var apiErr *openai.APIError
	return errors.As(err, &apiErr) && apiErr.HTTPStatusCode == 400
}

func isContextOverflow(err error) bool {
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) || apiErr.HTTPStatusCode != 400 {
		return false
	}
	msg := strings.ToLower(apiErr.Message)
	return strings.Contains(msg, "context length") || strings.Contains(msg, "context_length") ||
		strings.Contains(msg, "too many tokens")
}

// classify maps transport and API failures onto application errors.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return apperr.Wrap(err, apperr.CodeModelTimeout, "model call timed out", apperr.CategoryTemporary)
	case isContextOverflow(err):
		return apperr.Wrap(err, apperr.CodeModelContextOverflow,
			"request exceeds the model context window", apperr.CategoryPermanent)
	case isBadRequest(err):
		return apperr.Wrap(err, apperr.CodeModelInvalidResponse, "model rejected the request", apperr.CategoryPermanent)
	default:
		return apperr.Wrap(err, apperr.CodeModelUnavailable, "model call failed", apperr.CategoryTemporary)
	}
}
