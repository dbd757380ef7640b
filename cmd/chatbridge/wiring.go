package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/rhuss/chatbridge/pkg/auth"
	"github.com/rhuss/chatbridge/pkg/auth/apikey"
	"github.com/rhuss/chatbridge/pkg/auth/jwt"
	"github.com/rhuss/chatbridge/pkg/auth/noop"
	"github.com/rhuss/chatbridge/pkg/chat"
	"github.com/rhuss/chatbridge/pkg/config"
	"github.com/rhuss/chatbridge/pkg/provider"
	"github.com/rhuss/chatbridge/pkg/provider/openaicompat"
	"github.com/rhuss/chatbridge/pkg/provider/openaisdk"
	"github.com/rhuss/chatbridge/pkg/secrets"
	"github.com/rhuss/chatbridge/pkg/secrets/file"
	"github.com/rhuss/chatbridge/pkg/secrets/memory"
	"github.com/rhuss/chatbridge/pkg/secrets/postgres"
	"github.com/rhuss/chatbridge/pkg/tools/mcp"
)

// components holds everything built from the configuration. close
// releases them in reverse order of construction.
type components struct {
	service *chat.Service
	store   secrets.Store

	// healthCheck is nil unless the secret store supports a health check.
	healthCheck func(context.Context) error
}

func (c *components) close() {
	if c.service != nil {
		c.service.Close()
	}
	if c.store != nil {
		c.store.Close()
	}
}

// buildComponents creates the provider transport, the secret store and
// the chat service described by c.
func buildComponents(ctx context.Context, c *config.Config) (*components, error) {
	store, err := newSecretStore(ctx, c.Secrets)
	if err != nil {
		return nil, err
	}
	out := &components{store: store}
	if pg, ok := store.(*postgres.Store); ok {
		out.healthCheck = pg.HealthCheck
	}

	keys := &secrets.Resolver{Static: c.Provider.APIKey, Store: store}
	svc, err := chat.New(newTransport(c.Provider), keys, chat.StaticSettings(chatSettings(c.Settings)), chat.Options{
		ModelPrefix:  c.Provider.ModelPrefix,
		Reasoning:    reasoningDirective(c.Provider.Reasoning),
		IncludeUsage: c.Provider.IncludeUsage,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating chat service: %w", err)
	}
	out.service = svc
	return out, nil
}

func newTransport(p config.ProviderConfig) provider.Transport {
	pcfg := provider.Config{
		BaseURL: p.BaseURL,
		Timeout: p.Timeout,
		Referer: p.Referer,
		Title:   p.Title,
	}
	if p.Type == config.ProviderOpenAISDK {
		return openaisdk.NewClient(pcfg)
	}
	return openaicompat.NewClient(pcfg)
}

func newSecretStore(ctx context.Context, s config.SecretsConfig) (secrets.Store, error) {
	switch s.Type {
	case "memory":
		slog.Info("secret store", "type", "memory")
		return memory.New(), nil
	case "postgres":
		store, err := postgres.New(ctx, postgres.Config{
			DSN:            s.Postgres.DSN,
			MaxConns:       s.Postgres.MaxConns,
			MigrateOnStart: s.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, fmt.Errorf("creating postgres secret store: %w", err)
		}
		slog.Info("secret store", "type", "postgres")
		return store, nil
	default:
		path := s.Path
		if path == "" {
			p, err := file.DefaultPath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		store, err := file.New(path)
		if err != nil {
			return nil, fmt.Errorf("creating file secret store: %w", err)
		}
		slog.Info("secret store", "type", "file", "path", path)
		return store, nil
	}
}

func chatSettings(s config.Settings) chat.Settings {
	return chat.Settings{
		SystemPrompt:  s.SystemPrompt,
		AllowedModels: s.AllowedModels,
		DefaultModel:  s.DefaultModel,
	}
}

// reasoningDirective returns nil when reasoning is disabled. Without an
// effort or budget the directive just switches reasoning on.
func reasoningDirective(r config.ReasoningConfig) *provider.ReasoningDirective {
	if !r.Enabled {
		return nil
	}
	d := &provider.ReasoningDirective{
		Effort:    r.Effort,
		MaxTokens: r.MaxTokens,
		Exclude:   r.Exclude,
	}
	if d.Effort == "" && d.MaxTokens == 0 {
		enabled := true
		d.Enabled = &enabled
	}
	return d
}

// newAuthChain builds the authenticator chain for the HTTP surface.
func newAuthChain(a config.AuthConfig) (*auth.Chain, error) {
	switch a.Type {
	case "", "none":
		return &auth.Chain{Authenticators: []auth.Authenticator{noop.Authenticator{}}}, nil
	case "apikey":
		entries := make([]apikey.RawKeyEntry, 0, len(a.APIKeys))
		for i, k := range a.APIKeys {
			scopes, err := keyScopes(k.Scopes)
			if err != nil {
				return nil, fmt.Errorf("auth.api_keys[%d]: %w", i, err)
			}
			entries = append(entries, apikey.RawKeyEntry{
				Key:      k.Key,
				Identity: auth.Identity{Subject: k.Subject, Tier: k.Tier, Scopes: scopes},
			})
		}
		authn := apikey.New(entries)
		if authn.Len() == 0 {
			return nil, errors.New("auth.api_keys contains no usable key")
		}
		return &auth.Chain{Authenticators: []auth.Authenticator{authn}}, nil
	case "jwt":
		authn, err := newJWT(a.JWT)
		if err != nil {
			return nil, err
		}
		return &auth.Chain{Authenticators: []auth.Authenticator{authn}}, nil
	default:
		return nil, fmt.Errorf("unknown auth type %q", a.Type)
	}
}

// keyScopes checks configured scope names. No scopes means unrestricted.
func keyScopes(names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	for _, n := range names {
		if !slices.Contains(auth.AllScopes, n) {
			return nil, fmt.Errorf("unknown scope %q (want one of %v)", n, auth.AllScopes)
		}
	}
	return names, nil
}

func newJWT(j config.JWTConfig) (*jwt.Authenticator, error) {
	return jwt.New(jwt.Config{
		Secret:    j.Secret,
		Issuer:    j.Issuer,
		Audience:  j.Audience,
		UserClaim: j.UserClaim,
	})
}

// newRateLimiter returns nil when no tier has a budget.
func newRateLimiter(r config.RateLimitConfig) auth.RateLimiter {
	limits := auth.Limits{PerMinute: r.RequestsPerMinute, Tiers: r.Tiers}
	if !limits.Enabled() {
		return nil
	}
	return auth.NewInProcessLimiter(limits)
}

func mcpServers(servers []config.MCPServerConfig) []mcp.ServerConfig {
	out := make([]mcp.ServerConfig, 0, len(servers))
	for _, s := range servers {
		out = append(out, mcp.ServerConfig{
			Name:      s.Name,
			Transport: s.Transport,
			URL:       s.URL,
			Headers:   s.Headers,
		})
	}
	return out
}
