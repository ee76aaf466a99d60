package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"
	"github.com/spf13/cobra"

	"github.com/userforge/userforge/internal/account"
	"github.com/userforge/userforge/internal/account/postgres"
	"github.com/userforge/userforge/internal/config"
	"github.com/userforge/userforge/internal/httpapi"
	"github.com/userforge/userforge/internal/logging"
	"github.com/userforge/userforge/internal/mail"
	"github.com/userforge/userforge/internal/observability"
)

// Database connect retry policy. Startup tolerates a briefly unavailable
// Postgres (fresh compose stacks, rolling restarts).
const (
	dbRetryBase   = 1 * time.Second
	dbRetryMax    = 5
	shutdownGrace = 5 * time.Second
	serviceName   = "userforge"
)

// ServeDeps contains injectable dependencies for the serve command.
// Nil fields use their default implementations.
type ServeDeps struct {
	// ConfigLoader loads the runtime configuration.
	// Default: config.Load with the serve command's flags.
	ConfigLoader func() (*config.Config, error)

	// PoolFactory opens the Postgres connection pool.
	// Default: pgxpool.New.
	PoolFactory func(ctx context.Context, url string) (*pgxpool.Pool, error)

	// SenderFactory builds the outbound mail sender.
	// Default: mail.NewSMTPSender.
	SenderFactory func(cfg mail.SMTPConfig) (mail.Sender, error)

	// DatabaseURLGetter returns the database URL.
	// Default: the value loaded from the environment by config.Load.
	DatabaseURLGetter func(cfg *config.Config) string
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the user account API server",
		Long: `Start the HTTP server exposing registration, authentication,
profile management, and password recovery endpoints.`,
	}

	config.RegisterFlags(cmd.Flags())

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context(), cmd, nil)
	}

	return cmd
}

// runServe starts the server with injectable dependencies.
// If deps is nil, default implementations are used.
func runServe(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.ConfigLoader == nil {
		deps.ConfigLoader = func() (*config.Config, error) {
			return config.Load(configFile, cmd.Flags())
		}
	}
	if deps.PoolFactory == nil {
		deps.PoolFactory = pgxpool.New
	}
	if deps.SenderFactory == nil {
		deps.SenderFactory = func(cfg mail.SMTPConfig) (mail.Sender, error) {
			return mail.NewSMTPSender(cfg)
		}
	}
	if deps.DatabaseURLGetter == nil {
		deps.DatabaseURLGetter = func(cfg *config.Config) string {
			return cfg.Database.URL
		}
	}

	cfg, err := deps.ConfigLoader()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logging.SetDefault(serviceName, version, cfg.Log.Format)
	logger := slog.Default()

	logger.Info("starting userforge",
		"http_addr", cfg.HTTP.Addr,
		"log_format", cfg.Log.Format,
	)

	databaseURL := deps.DatabaseURLGetter(cfg)
	if databaseURL == "" {
		return fmt.Errorf("%s environment variable is required", config.EnvDatabaseURL)
	}

	pool, err := connectDatabase(ctx, deps.PoolFactory, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	logger.Info("connected to database")

	repo := postgres.NewAccountRepository(pool)
	hasher := account.NewArgon2idHasher()

	accounts, err := account.NewServiceWithLogger(repo, hasher, logger)
	if err != nil {
		return fmt.Errorf("failed to create account service: %w", err)
	}

	sender, err := deps.SenderFactory(mail.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
	if err != nil {
		return fmt.Errorf("failed to create mail sender: %w", err)
	}

	resets, err := account.NewResetServiceWithLogger(repo, hasher, mail.NewRecoveryMailer(sender), logger)
	if err != nil {
		return fmt.Errorf("failed to create reset service: %w", err)
	}

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Start observability server if configured
	var obsServer *observability.Server
	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		obsServer = observability.NewServer(cfg.Metrics.Addr, func() bool {
			return pool.Ping(ctx) == nil
		})
		metrics = obsServer.Metrics()

		obsErrChan, obsErr := obsServer.Start()
		if obsErr != nil {
			return fmt.Errorf("failed to start observability server: %w", obsErr)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
	}

	apiOpts := []httpapi.Option{
		httpapi.WithLogger(logger),
		httpapi.WithRequestTimeout(cfg.HTTP.Timeout),
	}
	if metrics != nil {
		apiOpts = append(apiOpts, httpapi.WithMetrics(metrics))
	}

	apiServer, err := httpapi.NewServer(cfg.HTTP.Addr, accounts, resets, apiOpts...)
	if err != nil {
		return fmt.Errorf("failed to create api server: %w", err)
	}
	apiErrChan, err := apiServer.Start()
	if err != nil {
		return fmt.Errorf("failed to start api server: %w", err)
	}
	go monitorServerErrors(ctx, cancel, apiErrChan, "api")

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Userforge started")
	logger.Info("userforge ready", "api_addr", apiServer.Addr())

	// Wait for shutdown signal or server failure
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	// Graceful shutdown
	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping api server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// connectDatabase opens the pool and verifies connectivity, retrying
// transient failures with exponential backoff.
func connectDatabase(ctx context.Context, factory func(context.Context, string) (*pgxpool.Pool, error), url string) (*pgxpool.Pool, error) {
	pool, err := factory(ctx, url)
	if err != nil {
		return nil, err
	}

	backoff := retry.WithMaxRetries(dbRetryMax, retry.NewExponential(dbRetryBase))
	if err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if pingErr := pool.Ping(ctx); pingErr != nil {
			return retry.RetryableError(pingErr)
		}
		return nil
	}); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// monitorServerErrors watches a server's error channel and cancels the
// context on failure so the whole process shuts down together. It exits
// when an error arrives, the channel closes, or the context ends.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
