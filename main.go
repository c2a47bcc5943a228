package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"support_chat/internal/api"
	"support_chat/internal/middleware"
	"support_chat/internal/repository"
	"support_chat/internal/service"
	"support_chat/internal/storage"
	"support_chat/pkg/config"
	"support_chat/pkg/utils"
)

func main() {
	// 載入應用程式配置
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 初始化資料庫連接並遷移資料表
	db, err := storage.Open(ctx, cfg.DB, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.Close()

	if err := storage.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to auto migrate database")
	}

	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid redis url")
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
	}

	hub := service.NewHub(log)
	publisher := newPublisher(ctx, cfg.Realtime.Mode, hub, rdb, log)

	// 初始化 repositories 與 services
	repos := repository.NewRepositories(db)
	services := service.NewServices(repos, hub, publisher, cfg.Realtime.PublishTimeout, log)

	if cfg.Admin.Username != "" && cfg.Admin.Password != "" {
		admin, err := services.User.EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Password)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to seed admin account")
		}
		log.Info().Uint("user_id", admin.ID).Str("username", admin.Username).Msg("admin account ready")
	}

	var limiter middleware.Limiter = middleware.NewMemoryLimiter()
	if rdb != nil {
		limiter = middleware.NewRedisLimiter(rdb)
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))
	api.SetupRoutes(r, services, api.RouteOptions{
		JWT:        utils.NewJWT(cfg.JWT.Secret, cfg.JWT.TTL),
		Limiter:    limiter,
		ReadLimit:  cfg.RateLimit.ReadLimit,
		WriteLimit: cfg.RateLimit.WriteLimit,
		Window:     cfg.RateLimit.Window,
		Log:        log,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Address).Str("realtime", cfg.Realtime.Mode).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to run server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var log zerolog.Logger
	if cfg.IsDevelopment() {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		log = zerolog.New(os.Stderr)
	}
	return log.Level(level).With().Timestamp().Str("service", "support_chat").Logger()
}

// newPublisher 依設定選擇推送方式；redis 模式但沒有 redis 時退回單機 hub
func newPublisher(ctx context.Context, mode string, hub *service.Hub, rdb *redis.Client, log zerolog.Logger) service.Publisher {
	switch mode {
	case "off":
		return service.NewNoopPublisher(log)
	case "redis":
		if rdb == nil {
			log.Warn().Msg("realtime.mode=redis without redis.url, falling back to local hub")
			return hub
		}
		relay := service.NewRelay(rdb, hub, log)
		go func() {
			if err := relay.Run(ctx); err != nil {
				log.Error().Err(err).Msg("relay stopped")
			}
		}()
		return service.NewRedisPublisher(rdb)
	default:
		return hub
	}
}
