package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smsfilter/config"
	"smsfilter/internal/bootstrap"
	"smsfilter/pkg/logger"

	"github.com/joho/godotenv"
)

const (
	shutdownTimeout = 30 * time.Second // Maximum time to wait for graceful shutdown
)

func main() {
	mode := flag.String("mode", "api", "Run mode: extension, api, sync, import, token")
	file := flag.String("file", "", "Import file (import mode)")
	format := flag.String("format", "", "Import format: csv or json, detected when empty")
	subject := flag.String("subject", "settings", "Token subject (token mode)")
	ttl := flag.Duration("ttl", 24*time.Hour, "Token lifetime (token mode)")
	flag.Parse()

	// The extension writes its answer to stdout, so logs go to stderr there.
	logOut := os.Stdout
	if *mode == string(bootstrap.ModeExtension) || *mode == "token" {
		logOut = os.Stderr
	}
	logger.Init(logger.Config{
		Level:   logger.LevelInfo,
		Output:  logOut,
		Service: "smsfilter",
	})

	// Load .env file if exists (for local development)
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		if *mode == string(bootstrap.ModeExtension) {
			// the host still needs an answer
			logger.Error("Failed to load config: %v", err)
			_ = bootstrap.WriteAllow(os.Stdout)
			return
		}
		logger.Fatal("Failed to load config: %v", err)
	}

	logger.Init(logger.Config{
		Level:   logger.ParseLevel(cfg.LogLevel),
		Output:  logOut,
		Service: "smsfilter-" + *mode,
		Console: cfg.IsDevelopment() && *mode != string(bootstrap.ModeExtension),
	})

	switch *mode {
	case string(bootstrap.ModeExtension):
		if err := bootstrap.RunExtension(cfg, os.Stdin, os.Stdout); err != nil {
			logger.Error("Extension failed: %v", err)
		}
	case string(bootstrap.ModeAPI):
		runAPI(cfg)
	case string(bootstrap.ModeSync):
		runOnce(func(ctx context.Context) error { return bootstrap.RunSync(ctx, cfg) })
	case string(bootstrap.ModeImport):
		runOnce(func(ctx context.Context) error { return bootstrap.RunImport(ctx, cfg, *file, *format) })
	case "token":
		if err := bootstrap.RunToken(cfg, *subject, *ttl, os.Stdout); err != nil {
			logger.Fatal("%v", err)
		}
	default:
		logger.Fatal("Unknown mode: %s", *mode)
	}
}

func runAPI(cfg *config.Config) {
	app, cleanup, err := bootstrap.NewAPI(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize API: %v", err)
	}
	defer cleanup()

	// Graceful shutdown with timeout
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down API server (timeout: %v)...", shutdownTimeout)
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Error("Error shutting down: %v", err)
		} else {
			logger.Info("API server shut down gracefully")
		}
	}()

	addr := ":" + cfg.Port
	logger.Info("Starting API server on %s", addr)
	if err := app.Listen(addr); err != nil {
		logger.Fatal("Failed to start server: %v", err)
	}
}

// runOnce runs a one-shot foreground task; SIGINT/SIGTERM cancel it.
func runOnce(task func(ctx context.Context) error) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := task(ctx); err != nil {
		stop()
		logger.Fatal("%v", err)
	}
}
