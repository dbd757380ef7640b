package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rhuss/chatbridge/pkg/config"
	transporthttp "github.com/rhuss/chatbridge/pkg/transport/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP chat provider surface",
	Long: `Serve the model listing, streaming chat and API key endpoints over HTTP.

Streams are sent as server-sent events. The server stops gracefully on
SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, comps, err := newServer(ctx, cfg)
	if err != nil {
		return err
	}
	defer comps.close()

	slog.Info("chatbridge starting",
		"provider", cfg.Provider.Type,
		"base_url", cfg.Provider.BaseURL,
		"auth", cfg.Auth.Type,
		"secrets", cfg.Secrets.Type,
	)
	return srv.Run(ctx)
}

// newServer wires the HTTP server for c. The caller owns the returned
// components.
func newServer(ctx context.Context, c *config.Config) (*transporthttp.Server, *components, error) {
	comps, err := buildComponents(ctx, c)
	if err != nil {
		return nil, nil, err
	}

	chain, err := newAuthChain(c.Auth)
	if err != nil {
		comps.close()
		return nil, nil, fmt.Errorf("configuring auth: %w", err)
	}

	opts := []transporthttp.ServerOption{
		transporthttp.WithAddr(fmt.Sprintf(":%d", c.Server.Port)),
		transporthttp.WithTimeouts(c.Server.ReadTimeout, c.Server.WriteTimeout),
		transporthttp.WithShutdownTimeout(c.Server.ShutdownTimeout),
		transporthttp.WithAuth(chain, newRateLimiter(c.Auth.RateLimit)),
		transporthttp.WithLogger(slog.Default()),
	}
	if c.Observability.Metrics.Enabled {
		opts = append(opts, transporthttp.WithMetrics(c.Observability.Metrics.Path))
	}
	if comps.healthCheck != nil {
		opts = append(opts, transporthttp.WithHealthCheck(comps.healthCheck))
	}

	return transporthttp.NewServer(comps.service, opts...), comps, nil
}
