package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, CHATBRIDGE_CONFIG env, ./config.yaml, /etc/chatbridge/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. CHATBRIDGE_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/chatbridge/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("CHATBRIDGE_CONFIG"); envPath != "" {
		return envPath
	}
	for _, path := range []string{"config.yaml", "/etc/chatbridge/config.yaml"} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps CHATBRIDGE_* environment variables to config
// fields. Malformed numeric or JSON values are reported rather than
// silently ignored.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("CHATBRIDGE_PROVIDER"); v != "" {
		cfg.Provider.Type = v
	}
	if v := os.Getenv("CHATBRIDGE_BASE_URL"); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := os.Getenv("CHATBRIDGE_API_KEY"); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := os.Getenv("CHATBRIDGE_MODEL_PREFIX"); v != "" {
		cfg.Provider.ModelPrefix = v
	}
	if v := os.Getenv("CHATBRIDGE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CHATBRIDGE_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("CHATBRIDGE_SYSTEM_PROMPT"); v != "" {
		cfg.Settings.SystemPrompt = v
	}
	if v := os.Getenv("CHATBRIDGE_ALLOWED_MODELS"); v != "" {
		cfg.Settings.AllowedModels = splitList(v)
	}
	if v := os.Getenv("CHATBRIDGE_MODEL"); v != "" {
		cfg.Settings.DefaultModel = v
	}
	if v := os.Getenv("CHATBRIDGE_SECRETS"); v != "" {
		cfg.Secrets.Type = v
	}
	if v := os.Getenv("CHATBRIDGE_SECRETS_PATH"); v != "" {
		cfg.Secrets.Path = v
	}
	if v := os.Getenv("CHATBRIDGE_AUTH_TYPE"); v != "" {
		cfg.Auth.Type = v
	}

	// CHATBRIDGE_API_KEYS: JSON array of API key configs.
	if v := os.Getenv("CHATBRIDGE_API_KEYS"); v != "" {
		var keys []APIKeyConfig
		if err := json.Unmarshal([]byte(v), &keys); err != nil {
			return fmt.Errorf("CHATBRIDGE_API_KEYS: %w", err)
		}
		cfg.Auth.APIKeys = keys
	}

	// CHATBRIDGE_MCP_SERVERS: JSON array of MCP server configs.
	if v := os.Getenv("CHATBRIDGE_MCP_SERVERS"); v != "" {
		var servers []MCPServerConfig
		if err := json.Unmarshal([]byte(v), &servers); err != nil {
			return fmt.Errorf("CHATBRIDGE_MCP_SERVERS: %w", err)
		}
		cfg.MCP.Servers = servers
	}

	if v := os.Getenv("CHATBRIDGE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	return nil
}

// resolveFileReferences reads _file fields and populates the corresponding
// value fields. An explicitly set value wins over its _file variant.
func resolveFileReferences(cfg *Config) error {
	if err := resolve(&cfg.Provider.APIKey, cfg.Provider.APIKeyFile, "provider.api_key_file"); err != nil {
		return err
	}
	if err := resolve(&cfg.Secrets.Postgres.DSN, cfg.Secrets.Postgres.DSNFile, "secrets.postgres.dsn_file"); err != nil {
		return err
	}
	if err := resolve(&cfg.Auth.JWT.Secret, cfg.Auth.JWT.SecretFile, "auth.jwt.secret_file"); err != nil {
		return err
	}
	for i := range cfg.Auth.APIKeys {
		k := &cfg.Auth.APIKeys[i]
		if err := resolve(&k.Key, k.KeyFile, fmt.Sprintf("auth.api_keys[%d].key_file", i)); err != nil {
			return err
		}
	}
	return nil
}

func resolve(value *string, path, field string) error {
	if path == "" || *value != "" {
		return nil
	}
	val, err := readSecretFile(path)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	*value = val
	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
