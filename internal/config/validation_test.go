package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/patchlens/patchlens/pkg/errors"
)

// validBcryptHash is a structurally valid bcrypt hash for tests
const validBcryptHash = "$2a$10$YtJ6lCmNwS7g9IpuaR7nPOE/M/3.G6VdMBm7eJdLpSfnLdG/CvxMq"

// validTestConfig returns a configuration that passes validation
func validTestConfig() *Config {
	cfg := Default()
	cfg.SCM.BaseURL = "https://git.example.com"
	cfg.SCM.Token = "token"
	cfg.LLM.APIKey = "api-key"
	applyProviderDefaults(&cfg.LLM)
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(cfg *Config) {},
			wantErr: false,
		},
		{
			name:    "missing SCM base URL",
			mutate:  func(cfg *Config) { cfg.SCM.BaseURL = "" },
			wantErr: true,
		},
		{
			name:    "invalid SCM base URL",
			mutate:  func(cfg *Config) { cfg.SCM.BaseURL = "not a url" },
			wantErr: true,
		},
		{
			name:    "missing SCM token",
			mutate:  func(cfg *Config) { cfg.SCM.Token = "" },
			wantErr: true,
		},
		{
			name:    "nonexistent CA bundle",
			mutate:  func(cfg *Config) { cfg.SCM.CABundlePath = "/nonexistent/ca.pem" },
			wantErr: true,
		},
		{
			name:    "zero SCM timeout",
			mutate:  func(cfg *Config) { cfg.SCM.TimeoutSeconds = 0 },
			wantErr: true,
		},
		{
			name:    "unknown LLM provider",
			mutate:  func(cfg *Config) { cfg.LLM.Provider = "mystery_box" },
			wantErr: true,
		},
		{
			name:    "hosted chat without API key",
			mutate:  func(cfg *Config) { cfg.LLM.APIKey = "" },
			wantErr: true,
		},
		{
			name: "local model without API key",
			mutate: func(cfg *Config) {
				cfg.LLM.Provider = ProviderLocalModel
				cfg.LLM.APIKey = ""
				cfg.LLM.Endpoint = "http://localhost:11434/api/generate"
			},
			wantErr: false,
		},
		{
			name:    "invalid LLM endpoint",
			mutate:  func(cfg *Config) { cfg.LLM.Endpoint = "not-a-url" },
			wantErr: true,
		},
		{
			name:    "temperature too high",
			mutate:  func(cfg *Config) { cfg.LLM.Temperature = 2.5 },
			wantErr: true,
		},
		{
			name:    "temperature negative",
			mutate:  func(cfg *Config) { cfg.LLM.Temperature = -0.1 },
			wantErr: true,
		},
		{
			name:    "invalid notifier endpoint",
			mutate:  func(cfg *Config) { cfg.Notifier.Endpoint = "mail.example.com" },
			wantErr: true,
		},
		{
			name:    "empty notifier endpoint is allowed",
			mutate:  func(cfg *Config) { cfg.Notifier.Endpoint = "" },
			wantErr: false,
		},
		{
			name:    "zero notifier timeout",
			mutate:  func(cfg *Config) { cfg.Notifier.TimeoutSeconds = 0 },
			wantErr: true,
		},
		{
			name:    "empty store URL",
			mutate:  func(cfg *Config) { cfg.Store.URL = "" },
			wantErr: true,
		},
		{
			name:    "negative retention days",
			mutate:  func(cfg *Config) { cfg.Store.RetentionDays = -1 },
			wantErr: true,
		},
		{
			name:    "port zero",
			mutate:  func(cfg *Config) { cfg.Server.Port = 0 },
			wantErr: true,
		},
		{
			name:    "port out of range",
			mutate:  func(cfg *Config) { cfg.Server.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "zero workers",
			mutate:  func(cfg *Config) { cfg.Engine.Workers = 0 },
			wantErr: true,
		},
		{
			name:    "zero queue size",
			mutate:  func(cfg *Config) { cfg.Engine.QueueSize = 0 },
			wantErr: true,
		},
		{
			name: "operator token hash with valid secret",
			mutate: func(cfg *Config) {
				cfg.Operator.TokenHash = validBcryptHash
				cfg.Operator.JWTSecret = "12345678901234567890123456789012"
			},
			wantErr: false,
		},
		{
			name: "operator token hash not bcrypt",
			mutate: func(cfg *Config) {
				cfg.Operator.TokenHash = "plaintext-token"
				cfg.Operator.JWTSecret = "12345678901234567890123456789012"
			},
			wantErr: true,
		},
		{
			name: "operator token hash without JWT secret",
			mutate: func(cfg *Config) {
				cfg.Operator.TokenHash = validBcryptHash
				cfg.Operator.JWTSecret = ""
			},
			wantErr: true,
		},
		{
			name: "operator JWT secret too short",
			mutate: func(cfg *Config) {
				cfg.Operator.TokenHash = validBcryptHash
				cfg.Operator.JWTSecret = "short-secret"
			},
			wantErr: true,
		},
		{
			name: "operator zero token expiry",
			mutate: func(cfg *Config) {
				cfg.Operator.TokenHash = validBcryptHash
				cfg.Operator.JWTSecret = "12345678901234567890123456789012"
				cfg.Operator.TokenExpiryHours = 0
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err != nil && err.Kind != errors.KindConfigInvalid {
				t.Errorf("Validate() kind = %v, want %v", err.Kind, errors.KindConfigInvalid)
			}
		})
	}
}

// TestValidate_CABundleExists tests CA bundle path validation with a real file
func TestValidate_CABundleExists(t *testing.T) {
	tmpDir := t.TempDir()
	caPath := filepath.Join(tmpDir, "ca.pem")
	if err := os.WriteFile(caPath, []byte("dummy cert"), 0600); err != nil {
		t.Fatalf("Failed to write test CA file: %v", err)
	}

	cfg := validTestConfig()
	cfg.SCM.CABundlePath = caPath

	if err := Validate(cfg); err != nil {
		t.Errorf("Validate() unexpected error with existing CA bundle: %v", err)
	}
}

// TestIsValidBcryptHash tests bcrypt hash format detection
func TestIsValidBcryptHash(t *testing.T) {
	tests := []struct {
		name  string
		hash  string
		valid bool
	}{
		{
			name:  "valid 2a hash",
			hash:  validBcryptHash,
			valid: true,
		},
		{
			name:  "valid 2b hash",
			hash:  "$2b$12$YtJ6lCmNwS7g9IpuaR7nPOE/M/3.G6VdMBm7eJdLpSfnLdG/CvxMq",
			valid: true,
		},
		{
			name:  "valid 2y hash",
			hash:  "$2y$10$YtJ6lCmNwS7g9IpuaR7nPOE/M/3.G6VdMBm7eJdLpSfnLdG/CvxMq",
			valid: true,
		},
		{
			name:  "too short",
			hash:  "$2a$10$short",
			valid: false,
		},
		{
			name:  "wrong prefix",
			hash:  "$1a$10$YtJ6lCmNwS7g9IpuaR7nPOE/M/3.G6VdMBm7eJdLpSfnLdG/CvxMq",
			valid: false,
		},
		{
			name:  "plain text",
			hash:  "this-is-not-a-hash-at-all-but-it-is-long-enough-to-pass-len",
			valid: false,
		},
		{
			name:  "empty string",
			hash:  "",
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidBcryptHash(tt.hash); got != tt.valid {
				t.Errorf("IsValidBcryptHash(%q) = %v, want %v", tt.hash, got, tt.valid)
			}
		})
	}
}
