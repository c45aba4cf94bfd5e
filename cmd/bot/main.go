// Command bot runs the membership gate: it verifies candidates against the
// enrollment directory in private conversations and evicts unverified
// members from the monitored group.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"gatebot/internal/admin"
	"gatebot/internal/audit"
	"gatebot/internal/directory"
	"gatebot/internal/gatekeeper"
	"gatebot/internal/lockout"
	"gatebot/internal/platform/config"
	"gatebot/internal/platform/httpserver"
	"gatebot/internal/platform/logger"
	"gatebot/internal/platform/metrics"
	"gatebot/internal/platform/postgres"
	platformredis "gatebot/internal/platform/redis"
	"gatebot/internal/router"
	"gatebot/internal/telegram"
	"gatebot/internal/verify"
)

func main() {
	// Local development convenience; the file is optional.
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Crash-and-restart is the only top-level recovery mechanism: a broken
	// store or platform session renders every operation meaningless, so the
	// run is torn down and rebuilt after a fixed delay.
	for {
		if err := run(ctx, cfg, log, m); err != nil {
			if ctx.Err() != nil {
				log.Info("shutting down")
				return
			}
			log.Error("run failed, restarting", "error", err, "delay", cfg.RestartDelay)
		}
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return
		case <-time.After(cfg.RestartDelay):
		}
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger, m *metrics.Metrics) error {
	log.Info("starting gate bot", "group", cfg.GroupID, "admins", len(cfg.AdminIDs))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Directory store: Postgres when configured, in-memory otherwise.
	var store directory.Store
	pool, err := postgres.Connect(runCtx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
		pg := directory.NewPostgres(pool)
		if err := pg.EnsureSchema(runCtx); err != nil {
			return err
		}
		store = pg
		log.Info("connected to postgres directory store")
	} else {
		store = directory.NewInMemoryStore()
		log.Warn("DATABASE_URL not set, using in-memory directory store")
	}

	// Lockout store: Redis when configured, in-memory otherwise.
	var lockoutStore lockout.Store = lockout.NewInMemoryStore()
	redisClient, err := platformredis.Connect(runCtx, cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		lockoutStore = lockout.NewRedisStore(redisClient)
		log.Info("connected to redis lockout store")
	}
	lockouts, err := lockout.New(lockoutStore,
		lockout.WithLogger(log),
		lockout.WithConfig(lockout.Config{
			MaxFailures: cfg.LockoutMaxFailures,
			Window:      cfg.LockoutWindow,
			Cooldown:    cfg.LockoutCooldown,
		}),
	)
	if err != nil {
		return err
	}

	// Audit trail, optionally published to Kafka.
	auditOpts := []audit.Option{audit.WithLogger(log)}
	if len(cfg.AuditBrokers) > 0 {
		publisher, err := audit.NewKafkaPublisher(cfg.AuditBrokers, cfg.AuditTopic)
		if err != nil {
			return err
		}
		defer publisher.Close()
		auditOpts = append(auditOpts, audit.WithPublisher(publisher))
		log.Info("audit events published to kafka", "topic", cfg.AuditTopic)
	}
	trail := audit.NewTrail(audit.NewInMemoryStore(), auditOpts...)
	go func() {
		if err := trail.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("audit worker stopped", "error", err)
		}
	}()

	client, err := telegram.NewBotClient(cfg.BotToken, log)
	if err != nil {
		return err
	}

	dialogue, err := verify.NewEngine(store, client,
		verify.Matcher{RequireSuffix: cfg.RequireSuffix},
		cfg.InviteLink,
		verify.WithLockouts(lockouts),
		verify.WithAuditTrail(trail),
		verify.WithMetrics(m),
		verify.WithLogger(log),
	)
	if err != nil {
		return err
	}

	keeper, err := gatekeeper.New(store, client,
		gatekeeper.WithUnban(cfg.EvictionUnban),
		gatekeeper.WithAuditTrail(trail),
		gatekeeper.WithMetrics(m),
		gatekeeper.WithLogger(log),
	)
	if err != nil {
		return err
	}

	admins, err := admin.New(store, client,
		admin.WithAuditTrail(trail),
		admin.WithLogger(log),
	)
	if err != nil {
		return err
	}

	r := router.New(cfg.GroupID, cfg.AdminIDs,
		router.WithLogger(log),
		router.WithMetrics(m),
	)
	r.Register(router.RouteAdminCommand, admins)
	r.Register(router.RoutePrivateDialogue, dialogue)
	r.Register(router.RouteGroupJoin, keeper)

	// Operational surface: liveness and Prometheus metrics.
	checks := map[string]httpserver.HealthChecker{}
	if pool != nil {
		checks["postgres"] = pool.Ping
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	ops := httpserver.New(cfg.OpsAddr, httpserver.NewOpsRouter(checks))
	go func() {
		if err := ops.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("ops server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = ops.Shutdown(shutdownCtx)
	}()

	err = client.Poll(runCtx, func(event telegram.Event) {
		r.Dispatch(runCtx, event)
	})
	r.Wait()
	return err
}
