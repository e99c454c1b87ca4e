// Package config provides configuration management for the application.
// Environment variables are the sole configuration source; an optional
// .env file can seed the environment before loading.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/patchlens/patchlens/consts"
	"github.com/patchlens/patchlens/pkg/logger"
	"github.com/patchlens/patchlens/pkg/telemetry"
)

// Default configuration values
const (
	defaultSCMTimeoutSeconds      = 30
	defaultLLMTimeoutSeconds      = 60
	defaultLLMTemperature         = 0.3
	defaultNotifierTimeoutSeconds = 15
	defaultStoreTimeoutSeconds    = 5
	defaultStoreURL               = "data/patchlens.db"
	defaultServerHost             = "0.0.0.0"
	defaultServerPort             = 8080
	defaultEngineWorkers          = 4
	defaultEngineQueueSize        = 128
	defaultTokenExpiryHours       = 24
	defaultReviewLanguage         = "en"
	defaultOTLPEndpoint           = "localhost:4317"
	defaultPrometheusPort         = 9090
)

// LLM provider identifiers
const (
	// ProviderHostedChat is an OpenAI-compatible chat completions endpoint
	ProviderHostedChat = "hosted_chat"
	// ProviderLocalModel is an Ollama-compatible local generation endpoint
	ProviderLocalModel = "local_model_server"
)

// Provider defaults applied when the corresponding option is unset
const (
	defaultHostedChatEndpoint = "https://api.openai.com/v1/chat/completions"
	defaultHostedChatModel    = "gpt-4o-mini"
	defaultLocalModelEndpoint = "http://localhost:11434/api/generate"
	defaultLocalModelModel    = "codellama"
)

// Config represents the complete application configuration
type Config struct {
	SCM       SCMConfig
	LLM       LLMConfig
	Review    ReviewConfig
	Webhook   WebhookConfig
	Notifier  NotifierConfig
	Store     StoreConfig
	Server    ServerConfig
	Engine    EngineConfig
	Operator  OperatorConfig
	Logging   logger.Config
	Telemetry telemetry.Config
}

// SCMConfig holds source-control server settings
type SCMConfig struct {
	BaseURL        string // Base URL of the source-control server
	Token          string // Bearer token for REST calls
	SSLVerify      bool   // Verify TLS certificates (default true)
	CABundlePath   string // Optional CA bundle for self-signed certificates
	TimeoutSeconds int    // Per-request timeout in seconds
}

// LLMConfig holds LLM provider settings
type LLMConfig struct {
	Provider       string  // hosted_chat or local_model_server
	Endpoint       string  // Provider endpoint URL
	APIKey         string  // Bearer token (hosted chat only)
	Model          string  // Model identifier
	TimeoutSeconds int     // Per-request timeout in seconds
	Temperature    float64 // Sampling temperature (hosted chat only)
}

// ReviewConfig holds review output settings
type ReviewConfig struct {
	Language   string // Output language for review text (BCP-47 tag)
	PromptFile string // Optional YAML prompt profile path
}

// WebhookConfig holds webhook ingress settings
type WebhookConfig struct {
	Secret string // Shared secret for signature verification; empty disables it
}

// NotifierConfig holds email notification settings
type NotifierConfig struct {
	Endpoint       string // External email endpoint URL
	FromAddress    string // Sender address
	CCAddress      string // Optional cc address
	OptOut         bool   // Render notifications but never send them
	TimeoutSeconds int    // Per-request timeout in seconds
}

// StoreConfig holds persistence settings
type StoreConfig struct {
	URL            string // SQLite database file path
	TimeoutSeconds int    // Per-operation timeout in seconds
	RetentionDays  int    // Purge resolved failures older than N days; 0 disables
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host  string
	Port  int
	Debug bool
}

// EngineConfig holds review pipeline concurrency settings
type EngineConfig struct {
	Workers   int // Number of worker goroutines
	QueueSize int // Bounded queue capacity
}

// OperatorConfig holds operator endpoint authentication settings
type OperatorConfig struct {
	TokenHash        string // bcrypt hash of the operator token; empty leaves endpoints open
	JWTSecret        string // JWT signing secret
	TokenExpiryHours int    // Issued token lifetime in hours
}

// Default returns a default configuration
func Default() *Config {
	return &Config{
		SCM: SCMConfig{
			SSLVerify:      true,
			TimeoutSeconds: defaultSCMTimeoutSeconds,
		},
		LLM: LLMConfig{
			Provider:       ProviderHostedChat,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			Temperature:    defaultLLMTemperature,
		},
		Review: ReviewConfig{
			Language: defaultReviewLanguage,
		},
		Notifier: NotifierConfig{
			TimeoutSeconds: defaultNotifierTimeoutSeconds,
		},
		Store: StoreConfig{
			URL:            defaultStoreURL,
			TimeoutSeconds: defaultStoreTimeoutSeconds,
		},
		Server: ServerConfig{
			Host:  defaultServerHost,
			Port:  defaultServerPort,
			Debug: false,
		},
		Engine: EngineConfig{
			Workers:   defaultEngineWorkers,
			QueueSize: defaultEngineQueueSize,
		},
		Operator: OperatorConfig{
			TokenExpiryHours: defaultTokenExpiryHours,
		},
		Logging: logger.Config{
			Level:      "info",
			Format:     "text",
			File:       "",
			MaxSize:    100,
			MaxAge:     7,
			MaxBackups: 5,
			Compress:   false,
		},
		Telemetry: telemetry.Config{
			Enabled:     false,
			ServiceName: consts.ServiceName,
			OTLP: telemetry.OTLPConfig{
				Enabled:  false,
				Endpoint: defaultOTLPEndpoint,
				Insecure: true,
			},
			Prometheus: telemetry.PrometheusConfig{
				Enabled: false,
				Port:    defaultPrometheusPort,
			},
		},
	}
}

// Load builds the configuration from environment variables. If envFile is
// non-empty and exists it is loaded first; variables already present in the
// environment always win.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, err
			}
		}
	}

	cfg := Default()
	applyEnv(cfg)
	applyProviderDefaults(&cfg.LLM)
	return cfg, nil
}

// applyEnv overlays environment variables onto the configuration
func applyEnv(cfg *Config) {
	// SCM
	setString(&cfg.SCM.BaseURL, "SCM_BASE_URL")
	setString(&cfg.SCM.Token, "SCM_TOKEN")
	setBool(&cfg.SCM.SSLVerify, "SCM_SSL_VERIFY")
	setString(&cfg.SCM.CABundlePath, "SCM_CA_BUNDLE_PATH")
	setInt(&cfg.SCM.TimeoutSeconds, "SCM_TIMEOUT_SECONDS")

	// LLM
	setString(&cfg.LLM.Provider, "LLM_PROVIDER")
	setString(&cfg.LLM.Endpoint, "LLM_ENDPOINT")
	setString(&cfg.LLM.APIKey, "LLM_API_KEY")
	setString(&cfg.LLM.Model, "LLM_MODEL")
	setInt(&cfg.LLM.TimeoutSeconds, "LLM_TIMEOUT_SECONDS")
	setFloat(&cfg.LLM.Temperature, "LLM_TEMPERATURE")

	// Review
	setString(&cfg.Review.Language, "REVIEW_LANGUAGE")
	setString(&cfg.Review.PromptFile, "REVIEW_PROMPT_FILE")

	// Webhook
	setString(&cfg.Webhook.Secret, "WEBHOOK_SECRET")

	// Notifier
	setString(&cfg.Notifier.Endpoint, "NOTIFIER_ENDPOINT")
	setString(&cfg.Notifier.FromAddress, "NOTIFIER_FROM_ADDRESS")
	setString(&cfg.Notifier.CCAddress, "NOTIFIER_CC_ADDRESS")
	setBool(&cfg.Notifier.OptOut, "NOTIFIER_OPT_OUT")
	setInt(&cfg.Notifier.TimeoutSeconds, "NOTIFIER_TIMEOUT_SECONDS")

	// Store
	setString(&cfg.Store.URL, "STORE_URL")
	setInt(&cfg.Store.TimeoutSeconds, "STORE_TIMEOUT_SECONDS")
	setInt(&cfg.Store.RetentionDays, "STORE_RETENTION_DAYS")

	// Server
	setString(&cfg.Server.Host, "SERVER_HOST")
	setInt(&cfg.Server.Port, "SERVER_BIND_PORT")
	setBool(&cfg.Server.Debug, "SERVER_DEBUG")

	// Engine
	setInt(&cfg.Engine.Workers, "ENGINE_WORKERS")
	setInt(&cfg.Engine.QueueSize, "ENGINE_QUEUE_SIZE")

	// Operator
	setString(&cfg.Operator.TokenHash, "OPERATOR_TOKEN_HASH")
	setString(&cfg.Operator.JWTSecret, "OPERATOR_JWT_SECRET")
	setInt(&cfg.Operator.TokenExpiryHours, "OPERATOR_TOKEN_EXPIRY_HOURS")

	// Logging
	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")
	setString(&cfg.Logging.File, "LOG_FILE")
	setInt(&cfg.Logging.MaxSize, "LOG_MAX_SIZE_MB")
	setInt(&cfg.Logging.MaxAge, "LOG_MAX_AGE_DAYS")
	setInt(&cfg.Logging.MaxBackups, "LOG_MAX_BACKUPS")
	setBool(&cfg.Logging.Compress, "LOG_COMPRESS")
	setBool(&cfg.Logging.AccessLog, "LOG_ACCESS")

	// Telemetry
	setBool(&cfg.Telemetry.Enabled, "TELEMETRY_ENABLED")
	setBool(&cfg.Telemetry.OTLP.Enabled, "TELEMETRY_OTLP_ENABLED")
	setString(&cfg.Telemetry.OTLP.Endpoint, "TELEMETRY_OTLP_ENDPOINT")
	setBool(&cfg.Telemetry.OTLP.Insecure, "TELEMETRY_OTLP_INSECURE")
	setBool(&cfg.Telemetry.Prometheus.Enabled, "TELEMETRY_PROMETHEUS_ENABLED")
	setInt(&cfg.Telemetry.Prometheus.Port, "TELEMETRY_PROMETHEUS_PORT")
}

// applyProviderDefaults fills endpoint and model defaults for the selected provider
func applyProviderDefaults(cfg *LLMConfig) {
	switch cfg.Provider {
	case ProviderLocalModel:
		if cfg.Endpoint == "" {
			cfg.Endpoint = defaultLocalModelEndpoint
		}
		if cfg.Model == "" {
			cfg.Model = defaultLocalModelModel
		}
	default:
		if cfg.Endpoint == "" {
			cfg.Endpoint = defaultHostedChatEndpoint
		}
		if cfg.Model == "" {
			cfg.Model = defaultHostedChatModel
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = parseBool(v)
	}
}

// parseBool parses a boolean string value
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

// Address returns the server address string
func (c *ServerConfig) Address() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Timeout returns the per-request timeout as a duration
func (c *SCMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Timeout returns the per-request timeout as a duration
func (c *LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Timeout returns the per-request timeout as a duration
func (c *NotifierConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Timeout returns the per-operation timeout as a duration
func (c *StoreConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TokenExpiry returns the issued token lifetime as a duration
func (c *OperatorConfig) TokenExpiry() time.Duration {
	return time.Duration(c.TokenExpiryHours) * time.Hour
}

// AuthEnabled reports whether operator endpoints require authentication
func (c *OperatorConfig) AuthEnabled() bool {
	return c.TokenHash != ""
}
