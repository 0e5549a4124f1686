// Command reframe serves the guided thought-reframing exercise.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hperssn/reframe/internal/auth"
	"github.com/hperssn/reframe/internal/config"
	"github.com/hperssn/reframe/internal/domain"
	httpapi "github.com/hperssn/reframe/internal/http"
	"github.com/hperssn/reframe/internal/identity"
	"github.com/hperssn/reframe/internal/metrics"
	"github.com/hperssn/reframe/internal/runner"
	"github.com/hperssn/reframe/internal/storage"
	"github.com/hperssn/reframe/internal/web"
)

const (
	Version = "0.1.0"
	appName = "reframe"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		httpAddr string
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Guided thought-reframing exercise",
		Long: `Reframe serves a five-step thought-reframing exercise.

Visitors arrive through a link carrying a one-time token, which is exchanged
once for a user id and cached in a browser-session cookie. Settings come from
REFRAME_* environment variables.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), httpAddr, logLevel)
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides REFRAME_LOG_LEVEL")
	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "HTTP listen address; overrides REFRAME_HTTP_ADDR")

	cmd.AddCommand(entriesCmd(&logLevel))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
		},
	})

	return cmd
}

func newLogger(level string) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}

func serve(ctx context.Context, httpAddr, logLevel string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if httpAddr != "" {
		cfg.HTTPAddr = httpAddr
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	if cfg.TestUserID != 0 {
		logger.Warn("Test mode enabled: token handshake is bypassed", "user_id", cfg.TestUserID)
	}

	repo, err := storage.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open thought log store: %w", err)
	}
	defer repo.Close()

	wizards := runner.NewWizardManager(cfg.WizardIdleTTL)
	defer wizards.Close()

	renderer, err := web.NewRenderer(nil)
	if err != nil {
		return err
	}

	idClient := identity.NewClient(cfg.IdentityEndpoint, &http.Client{Timeout: cfg.IdentityTimeout})
	resolver := auth.NewResolver(idClient, auth.Config{
		ErrorPath:  cfg.ErrorPath(),
		TestUserID: cfg.TestUserID,
		Logger:     logger,
	})

	server, err := httpapi.NewServer(httpapi.Config{
		BasePath:          cfg.BasePath,
		ExitURL:           cfg.ExitURL,
		ExitLabel:         cfg.ExitLabel,
		SessionSecret:     cfg.SessionSecret,
		SecureCookies:     cfg.SecureCookies,
		WizardOptions:     domain.Options{AllowBack: cfg.AllowBack, AllowRetry: cfg.AllowRetry},
		PersistOnComplete: cfg.PersistOnComplete,
	}, httpapi.Deps{
		Resolver: resolver,
		Wizards:  wizards,
		Entries:  repo,
		Renderer: renderer,
		Metrics:  metrics.New(wizards.Len),
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("init http server: %w", err)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Reframe ready", "version", Version, "addr", cfg.HTTPAddr, "base_path", cfg.BasePath)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
