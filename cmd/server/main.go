package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	auditHandler "kontrakpro/internal/audit/handler"
	auditMetrics "kontrakpro/internal/audit/metrics"
	auditService "kontrakpro/internal/audit/service"
	auditSink "kontrakpro/internal/audit/sink"
	auditStore "kontrakpro/internal/audit/store"
	httpapi "kontrakpro/internal/http"
	jwttoken "kontrakpro/internal/jwt_token"
	notificationHandler "kontrakpro/internal/notification/handler"
	notificationMetrics "kontrakpro/internal/notification/metrics"
	notificationService "kontrakpro/internal/notification/service"
	notificationStore "kontrakpro/internal/notification/store"
	"kontrakpro/internal/platform/config"
	"kontrakpro/internal/platform/httpserver"
	"kontrakpro/internal/platform/kafka"
	"kontrakpro/internal/platform/logger"
	"kontrakpro/internal/platform/middleware"
	httpMetrics "kontrakpro/internal/platform/metrics"
	"kontrakpro/internal/platform/postgres"
	"kontrakpro/internal/platform/redis"
	reminderHandler "kontrakpro/internal/reminder/handler"
	reminderMetrics "kontrakpro/internal/reminder/metrics"
	reminderService "kontrakpro/internal/reminder/service"
	reminderStore "kontrakpro/internal/reminder/store"
	"kontrakpro/internal/reminder/sweeper"
	"kontrakpro/pkg/clock"
	"kontrakpro/pkg/platform/circuit"
)

const (
	jwtIssuer   = "kontrakpro"
	jwtAudience = "kontrakpro-dashboard"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "optional YAML config file")
	flag.Parse()

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config:", err)
		}
		os.Exit(2)
	}

	log := logger.New(cfg.Server.LogLevel, cfg.IsDevelopment())
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// infra holds the optional backing connections. Nil fields are not configured.
type infra struct {
	db    *sql.DB
	redis *redis.Client
}

func (i *infra) close(log *slog.Logger) {
	if i.db != nil {
		if err := i.db.Close(); err != nil {
			log.Warn("failed to close postgres", "error", err)
		}
	}
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			log.Warn("failed to close redis", "error", err)
		}
	}
}

func connect(ctx context.Context, cfg *config.Config) (*infra, error) {
	in := &infra{}
	if cfg.Storage.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		in.db = db
	}
	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		in.close(slog.Default())
		return nil, err
	}
	in.redis = client
	return in, nil
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	in, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer in.close(log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	clk := clock.Real()

	nStore, err := selectNotificationStore(cfg, in)
	if err != nil {
		return err
	}
	notifications := notificationService.New(nStore, clk,
		notificationService.WithLogger(log),
		notificationService.WithMetrics(notificationMetrics.New(reg)),
		notificationService.WithStoreTimeout(cfg.Storage.Timeout),
		notificationService.WithMarkAllConcurrency(cfg.Notification.MarkAllReadConcurrency),
	)

	var remindersStore reminderService.Store = reminderStore.NewInMemory()
	var eventStore auditService.Store = auditStore.NewInMemory()
	if in.db != nil {
		remindersStore = reminderStore.NewPostgres(in.db)
		eventStore = auditStore.NewPostgres(in.db)
	}

	rMetrics := reminderMetrics.New(reg)
	reminders := reminderService.New(remindersStore, clk,
		reminderService.WithLogger(log),
		reminderService.WithMetrics(rMetrics),
		reminderService.WithStoreTimeout(cfg.Storage.Timeout),
	)

	sinks := []auditService.Sink{auditSink.NewNotifications(notifications)}
	producer, err := kafka.New(ctx, cfg.Audit)
	if err != nil {
		return err
	}
	if producer != nil {
		defer producer.Close()
		sinks = append(sinks, auditSink.NewKafka(producer, circuit.New("kafka"), log))
		log.Info("kafka audit sink enabled", "topic", cfg.Audit.KafkaTopic)
	}
	audit := auditService.New(eventStore, clk,
		auditService.WithLogger(log),
		auditService.WithMetrics(auditMetrics.New(reg)),
		auditService.WithStoreTimeout(cfg.Storage.Timeout),
		auditService.WithMaxPageSize(cfg.Audit.MaxPageSize),
		auditService.WithMaxExportRows(cfg.Audit.MaxExportRows),
		auditService.WithSinks(sinks...),
	)

	var auth *jwttoken.JWTService
	if cfg.Server.JWTSigningKey != "" {
		auth = jwttoken.NewJWTService(cfg.Server.JWTSigningKey, jwtIssuer, jwtAudience)
	} else {
		log.Warn("JWT_SIGNING_KEY not set, bearer tokens are ignored")
	}

	var auditOpts []auditHandler.Option
	deps := httpapi.Dependencies{
		Logger:         log,
		Metrics:        httpMetrics.New(reg),
		Gatherer:       reg,
		AllowedOrigins: cfg.Server.CORSAllowedOrigins,
		HealthChecks:   healthChecks(in),
	}
	if auth != nil {
		deps.Auth = auth
		auditOpts = append(auditOpts, auditHandler.WithWriteGuard(middleware.RequireAuth(auth, log)))
	}
	router := httpapi.NewRouter(deps,
		auditHandler.New(audit, log, auditOpts...),
		notificationHandler.New(notifications, log),
		reminderHandler.New(reminders, log),
	)

	sw := sweeper.New(reminders, notifications, clk,
		sweeper.WithInterval(cfg.Reminder.SweepInterval),
		sweeper.WithLogger(log),
		sweeper.WithMetrics(rMetrics),
	)

	log.Info("starting kontrakpro",
		"addr", cfg.Server.Addr,
		"env", cfg.Server.Env,
		"notification_backend", cfg.Storage.NotificationBackend,
		"postgres", in.db != nil,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(ctx, httpserver.New(cfg.Server.Addr, router), log)
	})
	g.Go(func() error {
		if err := sw.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	return g.Wait()
}

func selectNotificationStore(cfg *config.Config, in *infra) (notificationService.Store, error) {
	switch cfg.Storage.NotificationBackend {
	case config.BackendPostgres:
		return notificationStore.NewPostgres(in.db), nil
	case config.BackendRedis:
		if in.redis == nil {
			return nil, config.ErrMissingRedisURL
		}
		return notificationStore.NewRedis(in.redis.Client), nil
	default:
		return notificationStore.NewInMemory(), nil
	}
}

func healthChecks(in *infra) map[string]httpapi.HealthCheck {
	checks := map[string]httpapi.HealthCheck{}
	if in.db != nil {
		checks["postgres"] = in.db.PingContext
	}
	if in.redis != nil {
		checks["redis"] = in.redis.Health
	}
	return checks
}
