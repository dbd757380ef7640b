package main

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rhuss/chatbridge/pkg/config"
	"github.com/rhuss/chatbridge/pkg/mockbackend"
)

const testKey = "sk-or-test"

// useMockConfig points the package-level config at a fresh mock backend
// and restores the previous config afterwards.
func useMockConfig(t *testing.T) *mockbackend.Server {
	t.Helper()
	mock := mockbackend.New(mockbackend.WithAPIKey(testKey), mockbackend.WithDelay(time.Millisecond))
	srv := httptest.NewServer(mock.Handler())
	t.Cleanup(srv.Close)

	c := config.Defaults()
	c.Provider.BaseURL = srv.URL
	c.Provider.APIKey = testKey
	c.Secrets.Type = "memory"
	c.Settings.DefaultModel = "openrouter/openai/gpt-4o-mini"

	prev := cfg
	cfg = &c
	t.Cleanup(func() { cfg = prev })
	return mock
}
