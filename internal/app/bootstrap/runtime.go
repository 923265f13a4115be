package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	eventadapter "github.com/viralforge/procindex/internal/adapters/events"
	"github.com/viralforge/procindex/internal/adapters/memory"
	"github.com/viralforge/procindex/internal/adapters/postgres"
	"github.com/viralforge/procindex/internal/adapters/redisstore"
	"github.com/viralforge/procindex/internal/application"
	"github.com/viralforge/procindex/internal/domain"
	"github.com/viralforge/procindex/internal/engine"
	"github.com/viralforge/procindex/internal/ports"
)

type Runtime struct {
	cfg       Config
	logger    *slog.Logger
	service   *application.Service
	consumer  *eventadapter.ConsumerWorker
	cleanupFn func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With("service", cfg.ServiceID)
	slog.SetDefault(logger)

	var stores ports.Stores
	var closers []func()
	switch cfg.Backend {
	case BackendPostgres:
		db, err := postgres.Open(ctx, postgres.Config{
			URL:          cfg.DatabaseURL,
			MaxOpenConns: cfg.MaxDBConns,
		})
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
		stores = postgres.NewStores(db, cfg.QueryPageSize)
		closers = append(closers, func() { _ = sqlDB.Close() })
	case BackendRedis:
		client, err := redisstore.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		stores = redisstore.NewStores(client, cfg.QueryPageSize)
		closers = append(closers, func() { _ = client.Close() })
	default:
		stores = memory.NewStores(cfg.QueryPageSize)
	}

	notifier := engine.NewNotifier(cfg.NotifyBuffer)
	eng := engine.New(logger, stores, notifier, engine.Config{
		MaxAttempts:          cfg.UpsertMaxAttempts,
		RetryInitialInterval: cfg.RetryInitialInterval,
		RetryMaxInterval:     cfg.RetryMaxInterval,
	})
	service := application.NewService(application.Dependencies{
		Logger: logger,
		Stores: stores,
		Engine: eng,
	})

	topics := map[string]domain.EntityKind{
		cfg.KafkaTopicProcessEvents:  domain.KindProcessInstance,
		cfg.KafkaTopicUserTaskEvents: domain.KindUserTaskInstance,
		cfg.KafkaTopicJobEvents:      domain.KindJob,
	}
	consumerAdapter := ports.Consumer(eventadapter.NewNoopConsumer())
	if len(cfg.KafkaBrokers) > 0 {
		kafkaConsumer, conErr := eventadapter.NewKafkaConsumer(eventadapter.ConsumerConfig{
			Brokers: cfg.KafkaBrokers,
			GroupID: cfg.KafkaConsumerGroup,
			Topics:  []string{cfg.KafkaTopicProcessEvents, cfg.KafkaTopicUserTaskEvents, cfg.KafkaTopicJobEvents},
		})
		if conErr != nil {
			logger.WarnContext(ctx, "kafka consumer disabled, using noop consumer", "error", conErr)
		} else {
			consumerAdapter = kafkaConsumer
			closers = append(closers, func() { _ = kafkaConsumer.Close() })
		}
	}
	consumer := eventadapter.NewConsumerWorker(logger, consumerAdapter, service, topics, cfg.ConsumerPollInterval)

	return &Runtime{
		cfg:      cfg,
		logger:   logger,
		service:  service,
		consumer: consumer,
		cleanupFn: func(context.Context) {
			for _, closeFn := range closers {
				closeFn()
			}
		},
	}, nil
}

func Build(ctx context.Context, configPath string) (*Runtime, error) {
	return NewRuntime(ctx, configPath)
}

func (r *Runtime) Service() *application.Service {
	return r.service
}

// Run drives the consumer worker until a signal or context cancellation.
func (r *Runtime) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.logger.InfoContext(ctx, "index runtime started",
		"module", "bootstrap",
		"backend", r.cfg.Backend,
	)
	err := r.consumer.Run(ctx)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	r.cleanupFn(shutdownCtx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
