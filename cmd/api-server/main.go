package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"geochat/database"
	"geochat/internal/config"
	"geochat/internal/geo"
	"geochat/internal/microservices/http-api/dto"
	"geochat/internal/microservices/http-api/handler"
	"geochat/internal/microservices/http-api/repository"
	"geochat/internal/microservices/http-api/service"
	"geochat/internal/microservices/websocket"
	"geochat/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("could not load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server_exited", "error", err)
		os.Exit(1)
	}
	logger.Info("server_stopped_gracefully")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectDB(cfg, logger)
	if err != nil {
		return err
	}
	defer database.Close(db)

	rdb, err := connectRedis(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	users := repository.NewUserRepository(db)
	refreshTokens := repository.NewRefreshTokenRepository(db)
	channels := repository.NewChannelRepository(db)
	messages := repository.NewMessageRepository(db)

	var authors repository.AuthorStore = repository.NewAuthorStore(users)
	if rdb != nil {
		authors = repository.NewCachedAuthorStore(authors, rdb, cfg.CacheDuration(), logger)
	}

	g, gctx := errgroup.WithContext(ctx)

	broker, err := newBroker(gctx, g, cfg, rdb, logger)
	if err != nil {
		return err
	}
	defer broker.Close()

	authSvc := service.NewAuthService(users, refreshTokens, cfg, logger)
	channelSvc := service.NewChannelService(channels, cfg.NearbyRadiusKm)
	messageSvc := service.NewMessageService(messages, channels, broker, service.MessageServiceOptions{
		GroupWindow:  cfg.GroupWindow,
		HistoryLimit: cfg.HistoryLimit,
		RatePerSec:   cfg.MessageRatePerSec,
		RateBurst:    cfg.MessageRateBurst,
		Logger:       logger,
	})
	userSvc := service.NewUserService(users, authors, logger)

	hub := websocket.NewHub(broker, logger)
	g.Go(func() error { return hub.Run(gctx) })

	router := handler.NewRouter(handler.RouterDeps{
		Auth:      authSvc,
		Channels:  channelSvc,
		Messages:  messageSvc,
		Users:     userSvc,
		WebSocket: websocket.WSHandler(hub, authSvc, channelSvc, cfg.CORSOrigins),
		Health: func(ctx context.Context) error {
			return database.Ping(ctx, db)
		},
		ClientConfig: dto.ClientConfigResponse{
			DefaultCenter:      geo.Coordinates{Lat: cfg.DefaultLat, Lng: cfg.DefaultLng},
			NearbyRadiusKm:     cfg.NearbyRadiusKm,
			GroupWindowSeconds: cfg.GroupWindow.Seconds(),
			MapProviderKey:     cfg.MapProviderKey,
		},
		Metrics:     cfg.PrometheusEnabled,
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Info("http_server_listening",
			"addr", srv.Addr,
			"env", cfg.GoEnv,
			"notify_backend", cfg.NotifyBackend,
			"group_window", cfg.GroupWindow.String(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("received_shutdown_signal")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// connectRedis returns nil when redis is optional and unreachable
func connectRedis(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	if cfg.RedisPassword != "" {
		opts.Password = cfg.RedisPassword
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		if cfg.NotifyBackend == config.NotifyRedis {
			return nil, fmt.Errorf("redis required by NOTIFY_BACKEND=redis: %w", err)
		}
		logger.Warn("redis_unavailable_cache_disabled", "addr", opts.Addr, "error", err)
		return nil, nil
	}
	logger.Info("redis_connected", "addr", opts.Addr)
	return rdb, nil
}

// newBroker picks the notification backend. Relaying brokers run inside g
func newBroker(ctx context.Context, g *errgroup.Group, cfg *config.Config, rdb *redis.Client, logger *slog.Logger) (realtime.Broker, error) {
	local := realtime.NewMemoryBroker(cfg.NotifyBuffer, logger)

	switch cfg.NotifyBackend {
	case config.NotifyMemory:
		return local, nil
	case config.NotifyRedis:
		b := realtime.NewRedisBroker(rdb, local, logger)
		g.Go(func() error { return b.Run(ctx) })
		return b, nil
	case config.NotifyPostgres:
		b := realtime.NewPostgresBroker(cfg.DatabaseURL, local, logger)
		g.Go(func() error { return b.Run(ctx) })
		return b, nil
	default:
		return nil, fmt.Errorf("unknown notify backend %q", cfg.NotifyBackend)
	}
}
