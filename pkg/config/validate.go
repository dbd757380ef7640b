package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}

	switch c.Provider.Type {
	case ProviderOpenAICompat, ProviderOpenAISDK:
	default:
		errs = append(errs, fmt.Errorf("provider.type must be %q or %q, got %q", ProviderOpenAICompat, ProviderOpenAISDK, c.Provider.Type))
	}

	if c.Provider.BaseURL == "" {
		errs = append(errs, fmt.Errorf("provider.base_url is required"))
	} else if u, err := url.Parse(c.Provider.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("provider.base_url must be an absolute URL, got %q", c.Provider.BaseURL))
	}

	switch c.Provider.Reasoning.Effort {
	case "", "low", "medium", "high":
	default:
		errs = append(errs, fmt.Errorf("provider.reasoning.effort must be \"low\", \"medium\" or \"high\", got %q", c.Provider.Reasoning.Effort))
	}

	if c.Settings.MaxTurns < 1 {
		errs = append(errs, fmt.Errorf("settings.max_turns must be >= 1, got %d", c.Settings.MaxTurns))
	}

	switch c.Secrets.Type {
	case "memory", "file":
	case "postgres":
		if c.Secrets.Postgres.DSN == "" && c.Secrets.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("secrets.postgres.dsn or secrets.postgres.dsn_file is required when secrets.type is \"postgres\""))
		}
	default:
		errs = append(errs, fmt.Errorf("secrets.type must be \"memory\", \"file\" or \"postgres\", got %q", c.Secrets.Type))
	}

	switch c.Auth.Type {
	case "none":
	case "apikey":
		if len(c.Auth.APIKeys) == 0 {
			errs = append(errs, fmt.Errorf("auth.api_keys must not be empty when auth.type is \"apikey\""))
		}
	case "jwt":
		if c.Auth.JWT.Secret == "" && c.Auth.JWT.SecretFile == "" {
			errs = append(errs, fmt.Errorf("auth.jwt.secret or auth.jwt.secret_file is required when auth.type is \"jwt\""))
		}
	default:
		errs = append(errs, fmt.Errorf("auth.type must be \"none\", \"apikey\", or \"jwt\", got %q", c.Auth.Type))
	}

	if c.Auth.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("auth.rate_limit.requests_per_minute must not be negative"))
	}

	for i, s := range c.MCP.Servers {
		if s.URL == "" {
			errs = append(errs, fmt.Errorf("mcp.servers[%d].url is required", i))
		}
		switch s.Transport {
		case "", "sse", "streamable-http":
		default:
			errs = append(errs, fmt.Errorf("mcp.servers[%d].transport must be \"sse\" or \"streamable-http\", got %q", i, s.Transport))
		}
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}
