package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"smsfilter/config"
	"smsfilter/infra/middleware"
	"smsfilter/pkg/logger"
)

// RunSync pulls the shared classification history into the saved working set,
// reclassifies it and persists the result.
func RunSync(ctx context.Context, cfg *config.Config) error {
	deps, cleanup, err := NewDependencies(ctx, cfg, ModeSync)
	if err != nil {
		return err
	}
	defer cleanup()

	start := time.Now()
	added, err := deps.MessageService.SyncAndReclassify(ctx)
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	logger.Info("Sync completed: %d new messages, %d total (%v)",
		added, len(deps.MessageService.Messages()), time.Since(start).Round(time.Millisecond))
	return nil
}

// RunImport merges a CSV or JSON export into the saved working set. An empty
// format is detected from the content. The file is parsed completely before
// anything is merged.
func RunImport(ctx context.Context, cfg *config.Config, path, format string) error {
	if path == "" {
		return fmt.Errorf("import: -file is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}

	deps, cleanup, err := NewDependencies(ctx, cfg, ModeImport)
	if err != nil {
		return err
	}
	defer cleanup()

	parsed, err := deps.Importer.Parse(format, data)
	if err != nil {
		return err
	}
	added := deps.MessageService.Import(ctx, parsed)
	logger.Info("Imported %s: %d parsed, %d new, %d total",
		path, len(parsed), added, len(deps.MessageService.Messages()))
	return nil
}

// RunToken prints a bearer token for the settings API.
func RunToken(cfg *config.Config, subject string, ttl time.Duration, w io.Writer) error {
	if cfg.JWTSecret == "" {
		return fmt.Errorf("token: JWT_SECRET is not set")
	}
	token, err := middleware.IssueToken(cfg.JWTSecret, subject, ttl)
	if err != nil {
		return fmt.Errorf("token: %w", err)
	}
	_, err = fmt.Fprintln(w, token)
	return err
}
