// Package llm provides a unified client for LLM review providers.
// The two wire variants (hosted chat and local model server) sit behind one
// interface so the review pipeline never branches on provider.
package llm

import (
	"context"

	"github.com/patchlens/patchlens/internal/config"
	"github.com/patchlens/patchlens/pkg/errors"
)

// ProbeResult reports provider connectivity for health checks
type ProbeResult struct {
	OK       bool
	Provider string
	Model    string
	Detail   string
}

// Client defines the provider surface the review pipeline uses
type Client interface {
	// ReviewDiff sends a fully rendered prompt and returns the review text.
	ReviewDiff(ctx context.Context, prompt string) (string, error)

	// Probe checks connectivity with a minimal round trip. The result is
	// informational; Probe never panics or blocks past the client timeout.
	Probe(ctx context.Context) ProbeResult

	// Provider returns the configured provider identifier.
	Provider() string

	// Model returns the configured model identifier.
	Model() string
}

// probePrompt keeps connectivity checks cheap
const probePrompt = "Reply with the single word OK."

// NewClient selects the provider implementation from configuration.
// The provider set is closed; config validation rejects anything else
// before this runs.
func NewClient(cfg *config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case config.ProviderHostedChat:
		return newHostedChatClient(cfg), nil
	case config.ProviderLocalModel:
		return newLocalModelClient(cfg), nil
	default:
		return nil, errors.Newf(errors.KindConfigInvalid, "unknown llm provider %q", cfg.Provider)
	}
}
