package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/rdevan/crypto-dashboard-backend/internal/alerts"
	"github.com/rdevan/crypto-dashboard-backend/internal/auth"
	"github.com/rdevan/crypto-dashboard-backend/internal/config"
	"github.com/rdevan/crypto-dashboard-backend/internal/history"
	"github.com/rdevan/crypto-dashboard-backend/internal/pricesource"
	"github.com/rdevan/crypto-dashboard-backend/pkg/database"
	"github.com/rdevan/crypto-dashboard-backend/pkg/messaging"
	"github.com/rdevan/crypto-dashboard-backend/pkg/observability"
)

type server struct {
	cfg          *config.Config
	logger       *observability.Logger
	metrics      *observability.MetricsCollector
	health       *observability.HealthChecker
	source       pricesource.Source
	monitor      *alerts.Monitor
	store        history.Store
	sink         alerts.Sink
	authProvider auth.Provider
	sessions     *auth.SessionManager
	db           *pgxpool.Pool
	rdb          *redis.Client
	nc           *nats.Conn
	upgrader     websocket.Upgrader
	rateLimiter  *rateLimiter
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		observability.NewLogger("dashboard", "production", observability.LevelInfo).
			Fatal("Failed to load configuration", err)
	}

	logger := observability.NewLogger("dashboard", cfg.App.Environment, observability.ParseLevel(cfg.Logging.Level))
	logger.Info("Starting dashboard service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	srv, err := bootstrap(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to bootstrap dashboard", err)
	}
	defer srv.shutdown()

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Infof("Dashboard listening on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", err)
	}
	logger.Info("Dashboard service stopped")
}

func bootstrap(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*server, error) {
	metrics := observability.GetCollector()
	health := observability.NewHealthChecker()

	var source pricesource.Source = pricesource.NewClient(
		cfg.Upstream.BaseURL, cfg.Upstream.RequestTimeout, logger.Zerolog())

	// Optional Redis price cache
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		logger.WithField("addr", cfg.Redis.Addr).Info("Connecting to Redis")
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.WithField("error", err.Error()).Warn("Failed to connect to Redis, price cache disabled")
			rdb.Close()
			rdb = nil
		} else {
			health.AddCheck("redis", func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			})
			source = pricesource.NewCachedSource(source, rdb, cfg.Redis.CacheTTL, logger.Zerolog())
		}
	}

	monitor := alerts.NewMonitor(cfg.Alert.Watch, cfg.Alert.DefaultThreshold, logger.Zerolog())

	// History store: Postgres when configured, seeded in-memory degraded mode
	// otherwise.
	var store history.Store
	var db *pgxpool.Pool
	if cfg.History.DSN != "" {
		pool, err := database.NewPool(ctx, cfg.History.DSN)
		if err != nil {
			if rdb != nil {
				rdb.Close()
			}
			return nil, err
		}
		db = pool
		health.AddCheck("postgres", func(ctx context.Context) error {
			return db.Ping(ctx)
		})
		store = history.NewPostgresStore(db, logger.Zerolog())
	} else {
		logger.Warn("No history DSN configured, serving reference data from memory")
		store = history.NewSeededMemoryStore()
	}

	// Notification sinks: NATS topic and/or webhooks, both optional.
	var sinks alerts.MultiSink
	var nc *nats.Conn
	if cfg.Messaging.URL != "" {
		conn, err := messaging.NewConn(messaging.Config{URL: cfg.Messaging.URL})
		if err != nil {
			if db != nil {
				db.Close()
			}
			if rdb != nil {
				rdb.Close()
			}
			return nil, err
		}
		nc = conn
		health.AddCheck("nats", func(ctx context.Context) error {
			if nc.IsClosed() {
				return fmt.Errorf("NATS connection closed")
			}
			return nil
		})
		sinks = append(sinks, alerts.NewNATSSink(nc, cfg.Messaging.Subject, logger.Zerolog()))
	}
	if len(cfg.Notify.WebhookURLs) > 0 {
		sinks = append(sinks, alerts.NewWebhookSink(cfg.Notify.WebhookURLs, logger.Zerolog()))
	}

	var provider auth.Provider
	var sessions *auth.SessionManager
	if cfg.Auth.Enabled {
		provider = auth.NewStaticProvider(cfg.Auth.Users)
		sessions = auth.NewSessionManager(cfg.Auth.SessionTTL)
	}

	return &server{
		cfg:          cfg,
		logger:       logger,
		metrics:      metrics,
		health:       health,
		source:       source,
		monitor:      monitor,
		store:        store,
		sink:         sinks,
		authProvider: provider,
		sessions:     sessions,
		db:           db,
		rdb:          rdb,
		nc:           nc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		rateLimiter: newRateLimiter(100, time.Minute),
	}, nil
}

func (s *server) shutdown() {
	if s.store != nil {
		s.store.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	if s.rdb != nil {
		s.rdb.Close()
	}
	messaging.Close(s.nc)
}
