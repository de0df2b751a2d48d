package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/dedupe"
	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/graph"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/merging"
	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/processor"
	"github.com/Ramsey-B/clover/pkg/redis"
	dedupehandler "github.com/Ramsey-B/clover/pkg/routes/dedupe"
	"github.com/Ramsey-B/clover/pkg/routes/health"
	"github.com/Ramsey-B/clover/pkg/scheduler"
	"github.com/Ramsey-B/clover/pkg/startup"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const normalizeCursorKey = "clover:normalize:cursor"

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, pair-request consumer and normalization scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg, logger)
		},
	}
}

// server holds everything started by the startup runner. Fields are set as
// their dependency starts.
type server struct {
	cfg    *config.Config
	logger ectologger.Logger

	db        database.DB
	redis     *redis.Client
	graph     *graph.Client
	producer  *kafka.Producer
	consumer  *kafka.PairConsumer
	scheduler *scheduler.Scheduler
	core      *core
	recorder  *merging.Recorder
	echo      *echo.Echo
	checker   *health.Checker
}

func runServer(cmdCtx context.Context, cfg *config.Config, logger ectologger.Logger) error {
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := tracing.Setup(signalCtx, cfg.Tracing())
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	s := &server{
		cfg:     cfg,
		logger:  logger,
		checker: health.NewChecker(cfg.Version),
	}

	runner := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	s.register(signalCtx, runner)

	if err := runner.Start(signalCtx); err != nil {
		_ = runner.Stop(context.Background())
		return err
	}
	s.checker.SetReady(true)
	logger.WithField("port", cfg.Port).Info("clover is ready")

	<-signalCtx.Done()
	s.checker.SetReady(false)
	logger.Info("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second)
	defer shutdownCancel()

	stopErr := runner.Stop(shutdownCtx)
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Failed to flush traces")
	}
	return stopErr
}

func (s *server) register(ctx context.Context, runner *startup.Startup) {
	cfg := s.cfg

	runner.AddDependency(&startup.Dependency{
		Name: "database",
		StartFunc: func(ctx context.Context) error {
			db, err := database.Open(ctx, cfg.Database(), s.logger)
			if err != nil {
				return err
			}
			s.db = db
			s.checker.AddCheck("database", db.PingContext)
			return nil
		},
		StopFunc: func(context.Context) error { return s.db.Close() },
	})

	runner.AddDependency(&startup.Dependency{
		Name:      "migrations",
		Requires:  []string{"database"},
		StartFunc: func(context.Context) error { return runMigrations(s.db, cfg, s.logger) },
	})

	coreDeps := []string{"migrations"}

	if cfg.KafkaProducerEnabled {
		runner.AddDependency(&startup.Dependency{
			Name: "kafka-producer",
			StartFunc: func(context.Context) error {
				s.producer = kafka.NewProducer(cfg.Producer(), s.logger)
				return nil
			},
			StopFunc: func(context.Context) error { return s.producer.Close() },
		})
		coreDeps = append(coreDeps, "kafka-producer")
	}

	if cfg.GraphDBEnabled {
		runner.AddDependency(&startup.Dependency{
			Name: "graph",
			StartFunc: func(ctx context.Context) error {
				client, err := graph.NewClient(cfg.Graph(), s.logger)
				if err != nil {
					return err
				}
				if err := client.VerifyConnectivity(ctx); err != nil {
					_ = client.Close(ctx)
					return err
				}
				s.graph = client
				s.checker.AddCheck("graph", client.VerifyConnectivity)
				return nil
			},
			StopFunc: func(ctx context.Context) error { return s.graph.Close(ctx) },
		})
		coreDeps = append(coreDeps, "graph")
	}

	runner.AddDependency(&startup.Dependency{
		Name:      "core",
		Requires:  coreDeps,
		StartFunc: func(context.Context) error { return s.startCore() },
	})

	if cfg.SchedulerEnabled {
		runner.AddDependency(&startup.Dependency{
			Name: "redis",
			StartFunc: func(ctx context.Context) error {
				client, err := redis.NewClient(ctx, cfg.Redis(), s.logger)
				if err != nil {
					return err
				}
				s.redis = client
				s.checker.AddCheck("redis", client.Ping)
				return nil
			},
			StopFunc: func(context.Context) error { return s.redis.Close() },
		})

		runner.AddDependency(&startup.Dependency{
			Name:     "scheduler",
			Requires: []string{"core", "redis"},
			StartFunc: func(context.Context) error {
				s.scheduler = scheduler.NewScheduler(
					s.core.service,
					scheduler.NewRedisLocker(redis.NewLocker(s.redis, "")),
					redis.NewCursor(s.redis, normalizeCursorKey),
					cfg.Scheduler(),
					s.logger,
				)
				return s.scheduler.Start(ctx)
			},
			StopFunc: func(ctx context.Context) error { return s.scheduler.Stop(ctx) },
		})
	}

	if cfg.KafkaConsumerEnabled {
		runner.AddDependency(&startup.Dependency{
			Name:     "kafka-consumer",
			Requires: []string{"core"},
			StartFunc: func(context.Context) error {
				pairs := processor.NewPairProcessor(s.logger, s.core.service)
				s.consumer = kafka.NewPairConsumer(cfg.Consumer(), s.logger, pairs.HandleBatch)
				return s.consumer.Start(ctx)
			},
			StopFunc: func(context.Context) error { return s.consumer.Stop() },
		})
	}

	runner.AddDependency(&startup.Dependency{
		Name:      "http",
		Requires:  []string{"core"},
		StartFunc: func(context.Context) error { return s.startHTTP() },
		StopFunc:  func(ctx context.Context) error { return s.echo.Shutdown(ctx) },
	})
}

func (s *server) startCore() error {
	var candidateEvents dedupe.EventEmitter
	var mergeEvents merging.MergeEmitter
	if s.producer != nil {
		emitter := events.NewEmitter(s.producer, s.logger)
		candidateEvents = emitter
		mergeEvents = emitter
	}

	var projector merging.GraphProjector
	if s.graph != nil {
		projector = graph.NewMergeProjector(s.graph, s.logger)
	}

	c, err := newCore(s.db, s.cfg, s.logger, candidateEvents)
	if err != nil {
		return err
	}
	s.core = c
	s.recorder = merging.NewRecorder(s.logger, c.merges, c.candidates, mergeEvents, projector).
		WithTransactor(database.NewTxRunner(s.db))
	return nil
}

func (s *server) startHTTP() error {
	cfg := s.cfg

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(s.logger)
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(s.logger))

	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.Server.ReadHeaderTimeout = time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second
	e.Server.MaxHeaderBytes = cfg.MaxHeaderBytes

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.checker.RegisterRoutes(e)
	dedupehandler.NewHandler(s.core.service, s.recorder).Register(e.Group("/api/v1/dedupe"))

	s.echo = e
	go func() {
		if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("HTTP server stopped")
		}
	}()
	return nil
}
