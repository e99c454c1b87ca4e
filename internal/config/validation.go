// Package config provides configuration management for the application.
// This file contains validation functions for configuration values.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/patchlens/patchlens/pkg/errors"
	"github.com/patchlens/patchlens/pkg/logger"
)

// MinJWTSecretLength is the minimum required length for JWT secret (256 bits for HS256)
const MinJWTSecretLength = 32

// Validate checks the configuration for startup-blocking problems.
// The first violation found is returned with kind ConfigInvalid.
func Validate(cfg *Config) *errors.AppError {
	if err := validateSCM(&cfg.SCM); err != nil {
		return err
	}
	if err := validateLLM(&cfg.LLM); err != nil {
		return err
	}
	if err := validateReview(&cfg.Review); err != nil {
		return err
	}
	if err := validateNotifier(&cfg.Notifier); err != nil {
		return err
	}
	if err := validateStore(&cfg.Store); err != nil {
		return err
	}
	if err := validateServer(&cfg.Server); err != nil {
		return err
	}
	if err := validateEngine(&cfg.Engine); err != nil {
		return err
	}
	if err := validateOperator(&cfg.Operator); err != nil {
		return err
	}
	return nil
}

func validateSCM(cfg *SCMConfig) *errors.AppError {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return errors.New(errors.KindConfigInvalid, "SCM_BASE_URL is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New(errors.KindConfigInvalid,
			fmt.Sprintf("SCM_BASE_URL is not a valid URL: %s", cfg.BaseURL))
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return errors.New(errors.KindConfigInvalid, "SCM_TOKEN is required")
	}
	if cfg.CABundlePath != "" {
		if _, err := os.Stat(cfg.CABundlePath); err != nil {
			return errors.New(errors.KindConfigInvalid,
				fmt.Sprintf("SCM_CA_BUNDLE_PATH does not exist: %s", cfg.CABundlePath))
		}
	}
	if cfg.TimeoutSeconds <= 0 {
		return errors.New(errors.KindConfigInvalid, "SCM_TIMEOUT_SECONDS must be positive")
	}
	if !cfg.SSLVerify {
		logger.Warn("TLS certificate verification is disabled for the source-control server")
	}
	return nil
}

func validateLLM(cfg *LLMConfig) *errors.AppError {
	switch cfg.Provider {
	case ProviderHostedChat:
		if strings.TrimSpace(cfg.APIKey) == "" {
			return errors.New(errors.KindConfigInvalid,
				"LLM_API_KEY is required when LLM_PROVIDER is hosted_chat")
		}
	case ProviderLocalModel:
	default:
		return errors.New(errors.KindConfigInvalid,
			fmt.Sprintf("LLM_PROVIDER must be %s or %s, got %q",
				ProviderHostedChat, ProviderLocalModel, cfg.Provider))
	}
	if u, err := url.Parse(cfg.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New(errors.KindConfigInvalid,
			fmt.Sprintf("LLM_ENDPOINT is not a valid URL: %s", cfg.Endpoint))
	}
	if cfg.TimeoutSeconds <= 0 {
		return errors.New(errors.KindConfigInvalid, "LLM_TIMEOUT_SECONDS must be positive")
	}
	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		return errors.New(errors.KindConfigInvalid, "LLM_TEMPERATURE must be between 0 and 2")
	}
	return nil
}

func validateReview(cfg *ReviewConfig) *errors.AppError {
	if _, err := ParseLanguage(cfg.Language); err != nil {
		return errors.New(errors.KindConfigInvalid,
			fmt.Sprintf("REVIEW_LANGUAGE is not a valid BCP-47 tag: %s", cfg.Language))
	}
	if cfg.PromptFile != "" {
		if _, err := os.Stat(cfg.PromptFile); err != nil {
			return errors.New(errors.KindConfigInvalid,
				fmt.Sprintf("REVIEW_PROMPT_FILE does not exist: %s", cfg.PromptFile))
		}
	}
	return nil
}

func validateNotifier(cfg *NotifierConfig) *errors.AppError {
	if cfg.Endpoint != "" {
		if u, err := url.Parse(cfg.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New(errors.KindConfigInvalid,
				fmt.Sprintf("NOTIFIER_ENDPOINT is not a valid URL: %s", cfg.Endpoint))
		}
	}
	if cfg.TimeoutSeconds <= 0 {
		return errors.New(errors.KindConfigInvalid, "NOTIFIER_TIMEOUT_SECONDS must be positive")
	}
	return nil
}

func validateStore(cfg *StoreConfig) *errors.AppError {
	if strings.TrimSpace(cfg.URL) == "" {
		return errors.New(errors.KindConfigInvalid, "STORE_URL cannot be empty")
	}
	if cfg.TimeoutSeconds <= 0 {
		return errors.New(errors.KindConfigInvalid, "STORE_TIMEOUT_SECONDS must be positive")
	}
	if cfg.RetentionDays < 0 {
		return errors.New(errors.KindConfigInvalid, "STORE_RETENTION_DAYS cannot be negative")
	}
	return nil
}

func validateServer(cfg *ServerConfig) *errors.AppError {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return errors.New(errors.KindConfigInvalid,
			fmt.Sprintf("SERVER_BIND_PORT must be between 1 and 65535, got %d", cfg.Port))
	}
	return nil
}

func validateEngine(cfg *EngineConfig) *errors.AppError {
	if cfg.Workers < 1 {
		return errors.New(errors.KindConfigInvalid, "ENGINE_WORKERS must be at least 1")
	}
	if cfg.QueueSize < 1 {
		return errors.New(errors.KindConfigInvalid, "ENGINE_QUEUE_SIZE must be at least 1")
	}
	return nil
}

func validateOperator(cfg *OperatorConfig) *errors.AppError {
	if cfg.TokenHash == "" {
		return nil
	}
	if !IsValidBcryptHash(cfg.TokenHash) {
		return errors.New(errors.KindConfigInvalid,
			"OPERATOR_TOKEN_HASH is not a valid bcrypt hash")
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return errors.New(errors.KindConfigInvalid,
			"OPERATOR_JWT_SECRET is required when OPERATOR_TOKEN_HASH is set")
	}
	if len(cfg.JWTSecret) < MinJWTSecretLength {
		return errors.New(errors.KindConfigInvalid,
			fmt.Sprintf("OPERATOR_JWT_SECRET must be at least %d characters long (HS256 requires 256 bits)", MinJWTSecretLength))
	}
	if cfg.TokenExpiryHours < 1 {
		return errors.New(errors.KindConfigInvalid, "OPERATOR_TOKEN_EXPIRY_HOURS must be at least 1")
	}
	return nil
}

// IsValidBcryptHash checks if a string is a valid bcrypt hash
// Bcrypt hashes start with $2a$, $2b$, or $2y$ followed by cost factor
func IsValidBcryptHash(hash string) bool {
	if len(hash) < 60 {
		return false
	}
	// Bcrypt hash format: $2a$XX$... or $2b$XX$... or $2y$XX$...
	// where XX is the cost factor (2 digits)
	if !strings.HasPrefix(hash, "$2a$") && !strings.HasPrefix(hash, "$2b$") && !strings.HasPrefix(hash, "$2y$") {
		return false
	}
	return true
}
