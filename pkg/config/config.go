// Package config provides unified configuration for chatbridge.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (CHATBRIDGE_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Provider transport identifiers.
const (
	ProviderOpenAICompat = "openaicompat"
	ProviderOpenAISDK    = "openai-sdk"
)

// Config holds all configuration for chatbridge.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Provider      ProviderConfig      `yaml:"provider"`
	Settings      Settings            `yaml:"settings"`
	Secrets       SecretsConfig       `yaml:"secrets"`
	Auth          AuthConfig          `yaml:"auth"`
	MCP           MCPConfig           `yaml:"mcp"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 0 (streams are unbounded)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 15s
}

// ProviderConfig selects and configures the upstream chat API.
type ProviderConfig struct {
	Type         string          `yaml:"type"`          // "openaicompat" or "openai-sdk"
	BaseURL      string          `yaml:"base_url"`      // default: https://openrouter.ai/api/v1
	APIKey       string          `yaml:"api_key"`       // optional, takes precedence over the secret store
	APIKeyFile   string          `yaml:"api_key_file"`  // _file variant for api_key
	ModelPrefix  string          `yaml:"model_prefix"`  // default: "openrouter/"
	Timeout      time.Duration   `yaml:"timeout"`       // non-streaming calls, default: 120s
	Referer      string          `yaml:"referer"`       // HTTP-Referer attribution header
	Title        string          `yaml:"title"`         // X-Title attribution header
	IncludeUsage bool            `yaml:"include_usage"` // default: true
	Reasoning    ReasoningConfig `yaml:"reasoning"`
}

// ReasoningConfig controls the reasoning directive sent upstream.
type ReasoningConfig struct {
	Enabled   bool   `yaml:"enabled"`    // default: true
	Effort    string `yaml:"effort"`     // "low", "medium", "high" or empty
	MaxTokens int    `yaml:"max_tokens"` // optional token budget
	Exclude   bool   `yaml:"exclude"`    // ask the upstream to reason without returning it
}

// Settings is the user-facing settings provider.
type Settings struct {
	// SystemPrompt replaces every system message when set.
	SystemPrompt string `yaml:"system_prompt"`

	// AllowedModels restricts the model listing. Entries may be host ids
	// or provider-native ids. Empty means all models.
	AllowedModels []string `yaml:"allowed_models"`

	// DefaultModel is used by the CLI when --model is not given.
	DefaultModel string `yaml:"default_model"`

	// MaxTurns bounds the CLI tool-calling loop. Default: 10.
	MaxTurns int `yaml:"max_turns"`
}

// SecretsConfig selects where the provider API key is stored.
type SecretsConfig struct {
	Type     string         `yaml:"type"` // "memory", "file" or "postgres", default: "file"
	Path     string         `yaml:"path"` // file store location, default: user config dir
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 4
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: true
}

// AuthConfig holds authentication settings for the HTTP surface.
type AuthConfig struct {
	Type    string         `yaml:"type"`     // "none", "apikey" or "jwt", default: "none"
	APIKeys []APIKeyConfig `yaml:"api_keys"` // entries for type=apikey
	JWT     JWTConfig      `yaml:"jwt"`

	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig caps requests per authenticated subject. Zero disables
// the limit.
type RateLimitConfig struct {
	RequestsPerMinute int            `yaml:"requests_per_minute"`
	Tiers             map[string]int `yaml:"tiers"` // per-tier requests per minute
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key     string   `yaml:"key" json:"key"`
	KeyFile string   `yaml:"key_file" json:"key_file"` // _file variant for key
	Subject string   `yaml:"subject" json:"subject"`
	Tier    string   `yaml:"tier" json:"tier"`
	Scopes  []string `yaml:"scopes" json:"scopes"` // empty grants every scope
}

// JWTConfig holds settings for HMAC-signed bearer tokens.
type JWTConfig struct {
	Secret     string `yaml:"secret"`
	SecretFile string `yaml:"secret_file"` // _file variant for secret
	Issuer     string `yaml:"issuer"`
	Audience   string `yaml:"audience"`
	UserClaim  string `yaml:"user_claim"` // default: "sub"
}

// MCPConfig holds MCP (Model Context Protocol) server settings.
type MCPConfig struct {
	Servers []MCPServerConfig `yaml:"servers"`

	// AllowedTools limits the tools offered to the model. Empty allows all.
	AllowedTools []string `yaml:"allowed_tools"`
}

// MCPServerConfig describes a single MCP server connection.
type MCPServerConfig struct {
	Name      string            `yaml:"name" json:"name"`
	Transport string            `yaml:"transport" json:"transport"` // "sse" or "streamable-http"
	URL       string            `yaml:"url" json:"url"`
	Headers   map[string]string `yaml:"headers" json:"headers"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// LoggingConfig configures slog and debug categories.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // TRACE, DEBUG, INFO, WARN, ERROR; default: INFO
	Format string `yaml:"format"` // "text" or "json", default: "text"
	Debug  string `yaml:"debug"`  // comma separated debug categories
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Provider: ProviderConfig{
			Type:         ProviderOpenAICompat,
			BaseURL:      "https://openrouter.ai/api/v1",
			ModelPrefix:  "openrouter/",
			Timeout:      120 * time.Second,
			IncludeUsage: true,
			Reasoning: ReasoningConfig{
				Enabled: true,
			},
		},
		Settings: Settings{
			MaxTurns: 10,
		},
		Secrets: SecretsConfig{
			Type: "file",
			Postgres: PostgresConfig{
				MaxConns:       4,
				MigrateOnStart: true,
			},
		},
		Auth: AuthConfig{
			Type: "none",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
		},
	}
}
