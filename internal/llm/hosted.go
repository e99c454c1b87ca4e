package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/patchlens/patchlens/internal/config"
	"github.com/patchlens/patchlens/pkg/errors"
	"github.com/patchlens/patchlens/pkg/logger"
	"github.com/patchlens/patchlens/pkg/telemetry"
)

// hostedChatClient talks to an OpenAI-compatible chat completions endpoint
type hostedChatClient struct {
	cfg        *config.LLMConfig
	httpClient *http.Client
	logger     *zap.Logger
}

func newHostedChatClient(cfg *config.LLMConfig) *hostedChatClient {
	return &hostedChatClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		logger:     logger.Named("llm.hosted_chat"),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Provider returns the configured provider identifier
func (c *hostedChatClient) Provider() string {
	return config.ProviderHostedChat
}

// Model returns the configured model identifier
func (c *hostedChatClient) Model() string {
	return c.cfg.Model
}

// ReviewDiff sends the rendered prompt as a single user message and returns
// the first choice's content
func (c *hostedChatClient) ReviewDiff(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	text, err := c.complete(ctx, prompt)
	duration := time.Since(start)
	telemetry.GetMetrics().RecordLLMRequest(ctx, c.Provider(), c.Model(), err == nil, duration.Seconds())

	if err != nil {
		c.logger.Error("Chat completion failed",
			zap.String("model", c.cfg.Model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return "", err
	}

	c.logger.Debug("Chat completion succeeded",
		zap.String("model", c.cfg.Model),
		zap.Int("response_length", len(text)),
		zap.Duration("duration", duration),
	)
	return text, nil
}

func (c *hostedChatClient) complete(ctx context.Context, prompt string) (string, error) {
	payload := chatRequest{
		Model:       c.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: c.cfg.Temperature,
	}

	body, err := postJSON(ctx, c.httpClient, c.cfg.Endpoint, c.cfg.APIKey, payload)
	if err != nil {
		return "", err
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", errors.Wrap(errors.KindMalformed, "failed to parse chat completion response", err)
	}

	if len(parsed.Choices) == 0 {
		return "", errors.New(errors.KindEmptyResponse, "provider returned no choices")
	}
	text := parsed.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return "", errors.New(errors.KindEmptyResponse, "provider returned an empty message")
	}
	return text, nil
}

// Probe checks connectivity with a minimal chat request
func (c *hostedChatClient) Probe(ctx context.Context) ProbeResult {
	result := ProbeResult{
		Provider: c.Provider(),
		Model:    c.Model(),
	}
	if _, err := c.complete(ctx, probePrompt); err != nil {
		result.Detail = err.Error()
		return result
	}
	result.OK = true
	return result
}
