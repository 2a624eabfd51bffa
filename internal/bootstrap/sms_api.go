package bootstrap

import (
	"context"
	"strings"
	"time"

	"smsfilter/adapter/in/http"
	"smsfilter/config"
	"smsfilter/infra/middleware"
	"smsfilter/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

const (
	bodyLimit       = 10 * 1024 * 1024 // imports can be large
	filterBodyLimit = 64 * 1024
	startupSyncWait = 30 * time.Second
)

func NewAPI(cfg *config.Config) (*fiber.App, func(), error) {
	deps, cleanup, err := NewDependencies(context.Background(), cfg, ModeAPI)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize dependencies")
		return nil, nil, err
	}

	app := newApp(cfg, deps)

	if cfg.SyncOnStart {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), startupSyncWait)
			defer cancel()
			added, err := deps.MessageService.SyncAndReclassify(ctx)
			if err != nil {
				logger.Warn("Startup sync failed: %v", err)
				return
			}
			logger.Info("Startup sync completed: %d new messages", added)
		}()
	}

	logger.Info("API server initialized successfully")
	return app, cleanup, nil
}

func newApp(cfg *config.Config, deps *Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		BodyLimit:             bodyLimit,
		ServerHeader:          "",
		DisableDefaultDate:    true,
	})

	// Global middleware stack (order matters)
	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.SecurityHeaders())
	app.Use(middleware.PreventPathTraversal())
	app.Use(middleware.RequestLogger())
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	allowCredentials := true
	if allowOrigins == "" || allowOrigins == "*" {
		// credentials are never combined with a wildcard origin
		allowOrigins = "*"
		allowCredentials = false
		if cfg.IsProduction() {
			allowOrigins = ""
		}
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Request-ID,If-None-Match",
		ExposeHeaders:    "X-Request-ID,ETag,X-RateLimit-Limit,X-RateLimit-Remaining,X-RateLimit-Reset",
		AllowCredentials: allowCredentials,
		MaxAge:           86400,
	}))

	// Health and metrics (no auth required)
	http.NewHealthHandler(deps.Remote, deps.Local).Register(app)

	api := app.Group("/api/v1")

	// Filter host routes are registered before the settings middleware so the
	// host never needs a token.
	api.Use("/filter", middleware.NoCache(), middleware.MaxBodySize(filterBodyLimit))
	api.Use("/classify", middleware.NoCache(), middleware.MaxBodySize(filterBodyLimit))
	http.NewFilterHandler(deps.FilterService, deps.Classifier, deps.Extractor).Register(api)

	var audit middleware.AuditSink = middleware.NewLogAuditSink(deps.Log)
	if deps.Redis != nil {
		audit = middleware.NewRedisAuditSink(deps.Redis, cfg.KeyPrefix+":audit")
	}

	settings := api.Group("",
		middleware.BearerAuth(cfg.JWTSecret),
		middleware.NewRateLimiter(cfg.SettingsRateLimit, time.Minute).Handler(),
		middleware.Audit(audit),
		middleware.ETag("/import/template"),
	)
	http.NewMessageHandler(deps.MessageService, deps.Importer).Register(settings)
	http.NewRulesHandler(deps.RulesService, deps.MessageService).Register(settings)
	http.NewHistoryHandler(deps.HistoryRepo).Register(settings)

	return app
}
