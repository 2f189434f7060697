package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Seann-Moser/integrations"
	"github.com/Seann-Moser/integrations/config"
	"github.com/Seann-Moser/integrations/items"
	"github.com/Seann-Moser/integrations/oauth/oclient"
	"github.com/Seann-Moser/integrations/session"
)

const (
	sessionTTL      = 24 * time.Hour
	shutdownTimeout = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServe,
}

var listenAddr string

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "addr", "", "listen address (overrides INTEGRATIONS_LISTEN_ADDR)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := b.Close(closeCtx); err != nil {
			logger.Warn("closing backend", "error", err)
		}
	}()

	opts := []integrations.Option{
		integrations.WithLogger(logger),
		integrations.WithHealthCheck(b.health),
	}
	if cfg.SessionSecret != "" {
		opts = append(opts, integrations.WithSessions(session.NewClient([]byte(cfg.SessionSecret), sessionTTL, logger)))
	}
	srv := integrations.NewServer(buildProviders(cfg, b, logger), opts...)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr, "providers", srv.Providers())
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func buildProviders(cfg *config.Config, b *backend, logger *slog.Logger) []integrations.Provider {
	static := oclient.StaticIntegrations{}
	for _, p := range cfg.Providers {
		static[p.Name] = p.Integration()
	}
	var source oclient.IntegrationSource = static
	if cfg.MongoIntegrations && b.mongoDB != nil {
		source = oclient.ChainIntegrations{oclient.NewMongoIntegrationStore(b.mongoDB), static}
	}

	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	providers := make([]integrations.Provider, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		flow := oclient.NewFlow(p.Name, p.Endpoint(), source, b.cache,
			oclient.WithTTL(cfg.StateTTL, cfg.CredentialsTTL),
			oclient.WithHTTPClient(httpClient),
			oclient.WithLogger(logger),
		)
		provider := integrations.Provider{Name: p.Name, OAuth: flow}
		if len(p.Collections) > 0 {
			provider.Items = items.NewAggregator(p.Name, p.APIBaseURL, p.ItemCollections(),
				items.WithPageSize(p.PageSize),
				items.WithRateLimit(p.RateLimit, p.RateBurst),
				items.WithTimeout(cfg.RequestTimeout),
				items.WithLogger(logger),
			)
		}
		providers = append(providers, provider)
	}
	return providers
}
