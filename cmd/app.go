package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"spinnergy/config"
	"spinnergy/database"
	"spinnergy/events"
	"spinnergy/infrastructure"
	"spinnergy/observability"
	"spinnergy/ranking"
	"spinnergy/repository"
	"spinnergy/repository/filestore"
	"spinnergy/repository/memory"
	"spinnergy/service"

	log "github.com/sirupsen/logrus"
)

// App holds the wired components of one process
type App struct {
	Config      *config.Config
	Bus         *events.Bus
	Metrics     *observability.MetricsProvider
	Ledger      service.LedgerService
	Leaderboard service.Leaderboard
	Cached      *service.CachedLeaderboard // nil under the recompute strategy
	Cache       rankingCache               // nil under the recompute strategy
	Chat        service.ChatHistoryService
	Meals       service.MealLogService
	Janitor     *service.RetentionJanitor

	closers []func()
}

// rankingCache is a service.RankingCache that can also be emptied
type rankingCache interface {
	service.RankingCache
	Clear(ctx context.Context) error
}

// ConfigureLogging applies the configured level and formatter to logrus
func ConfigureLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetOutput(os.Stdout)

	if cfg.Environment == "production" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

// Build wires storage, services, the leaderboard and the event sinks. Close releases them.
func Build(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	app := &App{
		Config: cfg,
		Bus:    events.NewBus(),
	}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	// Initialize metrics
	app.Metrics = observability.NewMetricsProvider(cfg)
	if err := app.Metrics.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	app.onClose(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.Metrics.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("Failed to shut down metrics provider")
		}
	})

	uowFactory, err := app.openBackend(ctx)
	if err != nil {
		return nil, err
	}

	app.Ledger = service.NewLedgerService(uowFactory, service.LedgerOptions{
		StorageTimeout:    cfg.StorageTimeout,
		MaxAttempts:       cfg.LedgerMaxAttempts,
		HistoryWindowDays: cfg.HistoryWindowDays,
		Metrics:           app.Metrics,
	})
	app.Chat = service.NewChatHistoryService(uowFactory, cfg.ChatWindowDays, app.Metrics, nil)
	app.Meals = service.NewMealLogService(uowFactory, cfg.MealWindowDays, nil)
	app.Janitor = service.NewRetentionJanitor(uowFactory, cfg.ChatWindowDays, cfg.MealWindowDays, app.Metrics, nil)

	if err := app.buildLeaderboard(ctx); err != nil {
		return nil, err
	}

	if err := app.attachSink(ctx); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"backend":     cfg.StoreBackend,
		"leaderboard": cfg.LeaderboardStrategy,
		"sink":        cfg.EventSink,
	}).Info("Application wired")

	return app, nil
}

func (a *App) openBackend(ctx context.Context) (service.UnitOfWorkFactory, error) {
	switch a.Config.StoreBackend {
	case config.BackendFile:
		store, err := filestore.Open(a.Config.DataFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open data file: %w", err)
		}
		a.onClose(func() {
			if err := store.Close(); err != nil {
				log.WithError(err).Error("Failed to close data file")
			}
		})
		log.WithField("path", store.Path()).Info("File store opened")
		return store.UnitOfWorkFactory(a.Bus), nil

	case config.BackendPostgres:
		log.Info("Connecting to database...")
		db, err := database.NewConnection(ctx, a.Config.GetDatabaseURL())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.onClose(func() {
			log.Info("Closing database connection...")
			db.Close()
		})
		log.Info("Database connection established successfully")
		return repository.NewUnitOfWorkFactory(db, a.Bus), nil

	default:
		log.Warn("Using the in-memory store; balances are lost on exit")
		return memory.NewUnitOfWorkFactory(memory.NewStore(), a.Bus), nil
	}
}

func (a *App) buildLeaderboard(ctx context.Context) error {
	if a.Config.LeaderboardStrategy != config.LeaderboardCached {
		a.Leaderboard = service.NewRecomputeLeaderboard(a.Ledger)
		return nil
	}

	switch a.Config.LeaderboardCache {
	case config.CacheRedis:
		client, err := ranking.NewRedisClient(ctx, a.Config.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.onClose(func() {
			if err := client.Close(); err != nil {
				log.WithError(err).Error("Failed to close redis client")
			}
		})
		a.Cache = ranking.NewRedisCache(client, a.Config.LeaderboardKey)
	default:
		a.Cache = ranking.NewMemoryCache()
	}

	a.Cached = service.NewCachedLeaderboard(a.Cache, a.Ledger, a.Metrics)
	a.Cached.Attach(a.Bus)
	a.Leaderboard = a.Cached
	return nil
}

func (a *App) attachSink(ctx context.Context) error {
	var publisher infrastructure.MessagePublisher

	switch a.Config.EventSink {
	case config.SinkNATS:
		client := infrastructure.NewNATSClient(a.Config.NATSServers)
		if err := client.Connect(ctx); err != nil {
			return err
		}
		if err := client.EnsureLedgerStream(); err != nil {
			client.Close()
			return err
		}
		publisher = client
	case config.SinkKafka:
		publisher = infrastructure.NewKafkaPublisher(a.Config.KafkaBrokers, a.Config.KafkaTopic)
	default:
		return nil
	}

	a.onClose(func() {
		if err := publisher.Close(); err != nil {
			log.WithError(err).Error("Failed to close event sink")
		}
	})
	infrastructure.NewEventForwarder(publisher, a.Config.EventSink, a.Metrics).Attach(a.Bus)
	return nil
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close waits for in-flight event handlers and releases resources in reverse order
func (a *App) Close() {
	a.Bus.Wait()
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
