// Package bootstrap wires stores, services and transports for each run mode.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"smsfilter/adapter/out/kvstore"
	"smsfilter/adapter/out/persistence"
	"smsfilter/config"
	"smsfilter/core/port/out"
	"smsfilter/core/service/classification"
	"smsfilter/core/service/filter"
	"smsfilter/core/service/importer"
	"smsfilter/core/service/message"
	syncer "smsfilter/core/service/sync"
	"smsfilter/infra/database"
	"smsfilter/pkg/logger"
	"smsfilter/pkg/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Mode selects which process is being wired.
type Mode string

const (
	ModeExtension Mode = "extension" // one filter request over stdin/stdout
	ModeAPI       Mode = "api"
	ModeSync      Mode = "sync"
	ModeImport    Mode = "import"
)

// Foreground modes own a local fallback store; the extension does not.
func (m Mode) foreground() bool {
	return m != ModeExtension
}

type Dependencies struct {
	Config *config.Config
	Log    zerolog.Logger

	// Stores
	Shared out.KeyValueStore // what services read and write through (may be a FallbackStore)
	Remote out.KeyValueStore // the shared backend itself, for health checks
	Local  out.KeyValueStore // nil in extension mode
	Redis  *redis.Client     // nil unless the redis backend is selected

	// Repositories
	HistoryRepo *persistence.HistoryAdapter
	RulesRepo   *persistence.RulesAdapter
	MessageRepo *persistence.MessageAdapter

	// Classification
	Extractor  *classification.SignatureExtractor
	Classifier *classification.Classifier

	// Services
	FilterService  *filter.Service
	RulesService   *filter.RulesService
	SyncEngine     *syncer.Engine
	MessageService *message.Service
	Importer       *importer.Importer
}

func NewDependencies(ctx context.Context, cfg *config.Config, mode Mode) (*Dependencies, func(), error) {
	log := logger.Default().Component("bootstrap")

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	remote, redisClient, err := openShared(ctx, cfg, mode, log)
	if err != nil {
		return nil, nil, err
	}

	deps := &Dependencies{
		Config: cfg,
		Log:    log,
		Remote: remote,
		Shared: remote,
		Redis:  redisClient,
	}

	if mode.foreground() && cfg.StoreBackend != config.BackendMemory {
		local, err := kvstore.OpenSQLStore(ctx, cfg.LocalStoreDSN)
		if err != nil {
			remote.Close()
			return nil, nil, fmt.Errorf("open local store %s: %w", cfg.LocalStoreDSN, err)
		}
		deps.Local = local
		deps.Shared = kvstore.NewFallbackStore(remote, local, kvstore.FallbackConfig{
			Name:    cfg.StoreBackend,
			Timeout: cfg.BreakerTimeout(),
		}, logger.Default().Component("store"))
		log.Info().Str("dsn", cfg.LocalStoreDSN).Msg("local fallback store ready")
	}
	// FallbackStore closes both; otherwise only the shared store is open.
	cleanups = append(cleanups, func() {
		if err := deps.Shared.Close(); err != nil {
			log.Warn().Err(err).Msg("close store")
		}
	})

	if mode == ModeAPI {
		registerPoolMetrics(deps, log)
	}

	svcLog := logger.Default().Zerolog()

	// Repositories
	deps.HistoryRepo = persistence.NewHistoryAdapter(deps.Shared, svcLog)
	deps.RulesRepo = persistence.NewRulesAdapter(deps.Shared, svcLog)
	deps.MessageRepo = persistence.NewMessageAdapter(deps.Shared, deps.Local, svcLog)

	// Classification is stateless and shared by every service.
	deps.Extractor = classification.NewSignatureExtractor()
	deps.Classifier = classification.NewClassifier(nil)

	deps.FilterService = filter.NewService(&filter.ServiceDeps{
		Extractor:  deps.Extractor,
		Classifier: deps.Classifier,
		RulesRepo:  deps.RulesRepo,
		History:    deps.HistoryRepo,
		Deadline:   cfg.FilterDeadline(),
	}, svcLog)

	if mode.foreground() {
		deps.RulesService = filter.NewRulesService(deps.RulesRepo, svcLog)
		deps.SyncEngine = syncer.NewEngine(deps.HistoryRepo, deps.Extractor, deps.Classifier, svcLog)
		deps.MessageService = message.NewService(deps.MessageRepo, deps.SyncEngine, deps.Classifier, svcLog)
		deps.Importer = importer.New(time.Local)

		if err := deps.MessageService.Load(ctx); err != nil {
			// an empty inbox is usable; the next save recreates the key
			log.Warn().Err(err).Msg("failed to load saved messages")
		}
	}

	log.Info().
		Str("mode", string(mode)).
		Str("backend", cfg.StoreBackend).
		Msg("dependencies initialized")

	return deps, cleanup, nil
}

// openShared returns the shared store for cfg.StoreBackend. A backend that is
// down at startup is not fatal: the returned store reports ErrStoreUnavailable
// and callers degrade.
func openShared(ctx context.Context, cfg *config.Config, mode Mode, log zerolog.Logger) (out.KeyValueStore, *redis.Client, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return kvstore.NewMemoryStore(), nil, nil

	case config.BackendSQL:
		s, err := kvstore.OpenSQLStore(ctx, cfg.SharedDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open shared sql store: %w", err)
		}
		return s, nil, nil

	case config.BackendRedis:
		redisCfg := database.DefaultRedisConfig()
		if mode == ModeExtension {
			redisCfg = database.ExtensionRedisConfig(cfg.FilterDeadline())
		}
		client, err := database.NewRedisWithConfig(ctx, cfg.RedisURL, redisCfg)
		if client == nil {
			return nil, nil, fmt.Errorf("redis url: %w", err)
		}
		if err != nil {
			log.Warn().Err(err).Msg("redis unreachable at startup, continuing degraded")
		}
		return kvstore.NewRedisStore(client, cfg.KeyPrefix), client, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

// registerPoolMetrics exports connection pool statistics on /metrics.
func registerPoolMetrics(deps *Dependencies, log zerolog.Logger) {
	var err error
	if deps.Redis != nil {
		err = errors.Join(err, metrics.RegisterRedisPool("shared", deps.Redis))
	}
	if s, ok := deps.Remote.(*kvstore.SQLStore); ok {
		err = errors.Join(err, metrics.RegisterDBPool("shared", s.DB()))
	}
	if s, ok := deps.Local.(*kvstore.SQLStore); ok {
		err = errors.Join(err, metrics.RegisterDBPool("local", s.DB()))
	}
	if err != nil {
		log.Warn().Err(err).Msg("pool metrics not registered")
	}
}
