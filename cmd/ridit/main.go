package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/naveenvaja/ridit-webapp/internal/api"
	"github.com/naveenvaja/ridit-webapp/internal/auth"
	"github.com/naveenvaja/ridit-webapp/internal/config"
	"github.com/naveenvaja/ridit-webapp/internal/events"
	"github.com/naveenvaja/ridit-webapp/internal/market"
	"github.com/naveenvaja/ridit-webapp/internal/metrics"
	"github.com/naveenvaja/ridit-webapp/internal/store"
)

func main() {
	fs := flag.NewFlagSet("ridit", flag.ContinueOnError)

	var configPath string
	fs.StringVar(&configPath, "config", "", "")
	fs.StringVar(&configPath, "c", "", "")

	var dbPath string
	fs.StringVar(&dbPath, "db", "", "")
	fs.StringVar(&dbPath, "d", "", "")

	var addr string
	fs.StringVar(&addr, "addr", "", "")
	fs.StringVar(&addr, "a", "", "")

	var adminEmail string
	fs.StringVar(&adminEmail, "admin-email", "", "")
	fs.StringVar(&adminEmail, "e", "", "")

	var logPath string
	fs.StringVar(&logPath, "log", "", "")
	fs.StringVar(&logPath, "l", "", "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: ridit [flags]

Flags:
  -c, -config <path>        config file (default: ./config.yaml if present)
  -d, -db <path>            SQLite database path (default: ridit.sqlite3)
  -a, -addr <host:port>     listen address (default: :8000)
  -e, -admin-email <email>  admin email on first run (default: admin@ridit.local)
  -l, -log <path>           log file path (default: no file, stdout/stderr only)
  -h, -help                 show this help and exit

Flags override config file and RIDIT_* environment values.
`)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", fs.Arg(0))
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if dbPath != "" {
		cfg.Store.SQLitePath = dbPath
	}
	if addr != "" {
		cfg.Addr = addr
	}
	if adminEmail != "" {
		cfg.Admin.Email = adminEmail
	}
	if logPath != "" {
		cfg.Log.Path = logPath
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid config: %v\n", err)
		os.Exit(1)
	}

	// Set up structured logging: INFO/WARN → stdout, ERROR → stderr.
	// Optionally also write to a log file.
	closeLog, err := setupLogger(cfg.Log.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if closeLog != nil {
		defer closeLog()
	}

	if err := run(cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	db, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()

	password, err := ensureAdmin(ctx, db, cfg.Admin.Email)
	if err != nil {
		return err
	}
	if password != "" {
		printAdminCreated(cfg.Admin.Email, password)
	}

	if err := store.PurgeRevokedTokens(ctx, db, time.Now()); err != nil {
		slog.Warn("purging revoked tokens", "error", err)
	}

	// The configured secret wins; otherwise one is generated and kept in the store.
	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		jwtSecret, err = store.GetJWTSecret(ctx, db)
		if err != nil {
			return fmt.Errorf("getting JWT secret: %w", err)
		}
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.NATS.URL != "" {
		nc, err := events.NewNATSPublisher(cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("connecting to nats: %w", err)
		}
		publisher = nc
		slog.Info("publishing item events", "nats", cfg.NATS.URL)
	}
	defer publisher.Close()

	// Google sign-in stays disabled until a client ID is configured.
	var verifier auth.IdentityVerifier
	if cfg.Auth.GoogleClientID != "" {
		verifier = auth.NewGoogleVerifier(cfg.Auth.GoogleClientID)
		slog.Info("google sign-in enabled")
	}

	m := metrics.New()
	handler := api.NewRouter(api.Options{
		DB:                 db,
		Service:            market.NewService(db, publisher, m),
		Metrics:            m,
		JWTSecret:          jwtSecret,
		TokenTTL:           cfg.Auth.TokenTTL,
		Verifier:           verifier,
		LoginRatePerMinute: cfg.Auth.LoginRatePerMinute,
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Addr, "store", cfg.Store.Driver)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	slog.Info("server stopped, closing store")
	return nil
}
