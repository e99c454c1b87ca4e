// Package config provides configuration management for the application.
// This file renders configuration snapshots as .env files for the init wizard.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// envFileHeader is the comment header written at the top of generated .env files
const envFileHeader = `# PatchLens configuration
# Every option can also be set directly in the process environment;
# real environment variables always take precedence over this file.
#
# Commented lines show optional settings with their defaults.

`

// EnvFileExists checks if an env file exists at the given path
func EnvFileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// WriteEnvFile renders the configuration and writes it to path.
// The file is created with mode 0600 since it carries credentials.
func WriteEnvFile(path string, cfg *Config) error {
	content := RenderEnvFile(cfg)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write env file: %w", err)
	}
	return nil
}

// RenderEnvFile renders the configuration as .env file content
func RenderEnvFile(cfg *Config) string {
	var b strings.Builder
	b.WriteString(envFileHeader)

	b.WriteString("# Source-control server\n")
	writeVar(&b, "SCM_BASE_URL", cfg.SCM.BaseURL, true)
	writeVar(&b, "SCM_TOKEN", cfg.SCM.Token, true)
	writeVar(&b, "SCM_SSL_VERIFY", strconv.FormatBool(cfg.SCM.SSLVerify), true)
	writeVar(&b, "SCM_CA_BUNDLE_PATH", cfg.SCM.CABundlePath, true)
	writeVar(&b, "SCM_TIMEOUT_SECONDS", strconv.Itoa(cfg.SCM.TimeoutSeconds), true)
	b.WriteString("\n")

	b.WriteString("# LLM provider\n")
	writeVar(&b, "LLM_PROVIDER", cfg.LLM.Provider, true)
	writeVar(&b, "LLM_ENDPOINT", cfg.LLM.Endpoint, true)
	writeVar(&b, "LLM_API_KEY", cfg.LLM.APIKey, cfg.LLM.Provider == ProviderHostedChat)
	writeVar(&b, "LLM_MODEL", cfg.LLM.Model, true)
	writeVar(&b, "LLM_TIMEOUT_SECONDS", strconv.Itoa(cfg.LLM.TimeoutSeconds), true)
	writeVar(&b, "LLM_TEMPERATURE", strconv.FormatFloat(cfg.LLM.Temperature, 'g', -1, 64), true)
	b.WriteString("\n")

	b.WriteString("# Review output\n")
	writeVar(&b, "REVIEW_LANGUAGE", cfg.Review.Language, true)
	writeVar(&b, "REVIEW_PROMPT_FILE", cfg.Review.PromptFile, true)
	b.WriteString("\n")

	b.WriteString("# Webhook ingress\n")
	writeVar(&b, "WEBHOOK_SECRET", cfg.Webhook.Secret, true)
	b.WriteString("\n")

	b.WriteString("# Email notifier\n")
	writeVar(&b, "NOTIFIER_ENDPOINT", cfg.Notifier.Endpoint, true)
	writeVar(&b, "NOTIFIER_FROM_ADDRESS", cfg.Notifier.FromAddress, true)
	writeVar(&b, "NOTIFIER_CC_ADDRESS", cfg.Notifier.CCAddress, true)
	writeVar(&b, "NOTIFIER_OPT_OUT", strconv.FormatBool(cfg.Notifier.OptOut), cfg.Notifier.OptOut)
	writeVar(&b, "NOTIFIER_TIMEOUT_SECONDS", strconv.Itoa(cfg.Notifier.TimeoutSeconds), true)
	b.WriteString("\n")

	b.WriteString("# Persistence\n")
	writeVar(&b, "STORE_URL", cfg.Store.URL, true)
	writeVar(&b, "STORE_TIMEOUT_SECONDS", strconv.Itoa(cfg.Store.TimeoutSeconds), true)
	writeVar(&b, "STORE_RETENTION_DAYS", strconv.Itoa(cfg.Store.RetentionDays), cfg.Store.RetentionDays > 0)
	b.WriteString("\n")

	b.WriteString("# HTTP server\n")
	writeVar(&b, "SERVER_HOST", cfg.Server.Host, true)
	writeVar(&b, "SERVER_BIND_PORT", strconv.Itoa(cfg.Server.Port), true)
	writeVar(&b, "SERVER_DEBUG", strconv.FormatBool(cfg.Server.Debug), cfg.Server.Debug)
	b.WriteString("\n")

	b.WriteString("# Review pipeline\n")
	writeVar(&b, "ENGINE_WORKERS", strconv.Itoa(cfg.Engine.Workers), true)
	writeVar(&b, "ENGINE_QUEUE_SIZE", strconv.Itoa(cfg.Engine.QueueSize), true)
	b.WriteString("\n")

	b.WriteString("# Operator endpoints\n")
	writeVar(&b, "OPERATOR_TOKEN_HASH", cfg.Operator.TokenHash, true)
	writeVar(&b, "OPERATOR_JWT_SECRET", cfg.Operator.JWTSecret, true)
	writeVar(&b, "OPERATOR_TOKEN_EXPIRY_HOURS", strconv.Itoa(cfg.Operator.TokenExpiryHours), cfg.Operator.TokenHash != "")
	b.WriteString("\n")

	b.WriteString("# Logging\n")
	writeVar(&b, "LOG_LEVEL", cfg.Logging.Level, true)
	writeVar(&b, "LOG_FORMAT", cfg.Logging.Format, true)
	writeVar(&b, "LOG_FILE", cfg.Logging.File, true)
	b.WriteString("\n")

	b.WriteString("# Telemetry\n")
	writeVar(&b, "TELEMETRY_ENABLED", strconv.FormatBool(cfg.Telemetry.Enabled), cfg.Telemetry.Enabled)
	writeVar(&b, "TELEMETRY_OTLP_ENABLED", strconv.FormatBool(cfg.Telemetry.OTLP.Enabled), cfg.Telemetry.OTLP.Enabled)
	writeVar(&b, "TELEMETRY_OTLP_ENDPOINT", cfg.Telemetry.OTLP.Endpoint, cfg.Telemetry.OTLP.Enabled)
	writeVar(&b, "TELEMETRY_PROMETHEUS_ENABLED", strconv.FormatBool(cfg.Telemetry.Prometheus.Enabled), cfg.Telemetry.Prometheus.Enabled)
	writeVar(&b, "TELEMETRY_PROMETHEUS_PORT", strconv.Itoa(cfg.Telemetry.Prometheus.Port), cfg.Telemetry.Prometheus.Enabled)

	return b.String()
}

// writeVar writes a KEY=value line; unset or inactive options are written
// as commented placeholders so the file documents the full surface.
func writeVar(b *strings.Builder, key, value string, active bool) {
	if !active || value == "" {
		fmt.Fprintf(b, "# %s=%s\n", key, quoteEnvValue(value))
		return
	}
	fmt.Fprintf(b, "%s=%s\n", key, quoteEnvValue(value))
}

// quoteEnvValue quotes a value when it contains characters that would
// confuse a dotenv parser. Single quotes suppress $ expansion, which
// matters for bcrypt hashes.
func quoteEnvValue(v string) string {
	if v == "" {
		return v
	}
	if !strings.ContainsAny(v, " #\"'$\t") {
		return v
	}
	if !strings.Contains(v, "'") {
		return "'" + v + "'"
	}
	return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
}
