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

// localModelClient talks to an Ollama-compatible generation endpoint
type localModelClient struct {
	cfg        *config.LLMConfig
	httpClient *http.Client
	logger     *zap.Logger
}

func newLocalModelClient(cfg *config.LLMConfig) *localModelClient {
	return &localModelClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		logger:     logger.Named("llm.local_model_server"),
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Provider returns the configured provider identifier
func (c *localModelClient) Provider() string {
	return config.ProviderLocalModel
}

// Model returns the configured model identifier
func (c *localModelClient) Model() string {
	return c.cfg.Model
}

// ReviewDiff sends the rendered prompt as a non-streaming generation request
// and returns the flat response field
func (c *localModelClient) ReviewDiff(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	text, err := c.generate(ctx, prompt)
	duration := time.Since(start)
	telemetry.GetMetrics().RecordLLMRequest(ctx, c.Provider(), c.Model(), err == nil, duration.Seconds())

	if err != nil {
		c.logger.Error("Generation failed",
			zap.String("model", c.cfg.Model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return "", err
	}

	c.logger.Debug("Generation succeeded",
		zap.String("model", c.cfg.Model),
		zap.Int("response_length", len(text)),
		zap.Duration("duration", duration),
	)
	return text, nil
}

func (c *localModelClient) generate(ctx context.Context, prompt string) (string, error) {
	payload := generateRequest{
		Model:  c.cfg.Model,
		Prompt: prompt,
		Stream: false,
	}

	body, err := postJSON(ctx, c.httpClient, c.cfg.Endpoint, "", payload)
	if err != nil {
		return "", err
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", errors.Wrap(errors.KindMalformed, "failed to parse generation response", err)
	}

	if strings.TrimSpace(parsed.Response) == "" {
		return "", errors.New(errors.KindEmptyResponse, "model returned an empty response")
	}
	return parsed.Response, nil
}

// Probe checks connectivity with a minimal generation request
func (c *localModelClient) Probe(ctx context.Context) ProbeResult {
	result := ProbeResult{
		Provider: c.Provider(),
		Model:    c.Model(),
	}
	if _, err := c.generate(ctx, probePrompt); err != nil {
		result.Detail = err.Error()
		return result
	}
	result.OK = true
	return result
}
