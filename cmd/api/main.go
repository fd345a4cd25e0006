package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sanosuguru/campus-events/internal/api/handler"
	"github.com/sanosuguru/campus-events/internal/application"
	"github.com/sanosuguru/campus-events/internal/config"
	"github.com/sanosuguru/campus-events/internal/domain/auth"
	"github.com/sanosuguru/campus-events/internal/domain/event"
	"github.com/sanosuguru/campus-events/internal/infrastructure/lru"
	"github.com/sanosuguru/campus-events/internal/infrastructure/memory"
	"github.com/sanosuguru/campus-events/internal/infrastructure/postgres"
	redisinfra "github.com/sanosuguru/campus-events/internal/infrastructure/redis"
	"github.com/sanosuguru/campus-events/internal/pkg/logger"
	"github.com/sanosuguru/campus-events/internal/pkg/metrics"
	"github.com/sanosuguru/campus-events/internal/server"
	"github.com/sanosuguru/campus-events/internal/worker"
)

func main() {
	// .env があれば読み込む（環境変数が優先）
	_ = godotenv.Load()

	cfg := config.Load()

	logger.Set(logger.NewLogger(cfg.App.Env))
	defer logger.Sync()

	m := metrics.Init()
	checks := map[string]handler.CheckFunc{}

	// イベントストア
	var repo event.Repository
	switch cfg.Store.Driver {
	case "memory":
		memRepo := memory.NewEventRepository()
		checks["store"] = memRepo.Ping
		repo = memRepo
		logger.Warn("インメモリストアを使用します（再起動でデータは消えます）")
	default:
		db, err := postgres.NewConnection(&cfg.Database)
		if err != nil {
			logger.Fatal("データベース接続エラー", zap.Error(err))
		}
		defer db.Close()

		if cfg.Store.AutoMigrate {
			if err := postgres.RunMigrations(db.DB, cfg.Store.MigrationsPath); err != nil {
				logger.Fatal("マイグレーションエラー", zap.Error(err))
			}
			logger.Info("マイグレーションが完了しました")
		}
		checks["database"] = postgres.Checker(db)
		repo = postgres.NewEventRepository(db)
	}

	// Redis は画像キャッシュと更新ロックで共有する
	var redisClient *goredis.Client
	if cfg.Cache.Driver == "redis" {
		redisClient = redisinfra.NewClient(&cfg.Redis)
		defer redisClient.Close()

		if err := redisinfra.Ping(context.Background(), redisClient); err != nil {
			logger.Fatal("Redis接続エラー", zap.Error(err))
		}
		checks["redis"] = redisinfra.Checker(redisClient)
	}

	// 画像キャッシュ
	var imageCache event.ImageCache
	switch cfg.Cache.Driver {
	case "redis":
		imageCache = redisinfra.NewImageCache(redisClient, cfg.Cache.TTL, m)
	case "memory":
		imageCache = lru.NewImageCache(cfg.Cache.Size, cfg.Cache.TTL, m)
	}

	var locker event.Locker
	if redisClient != nil {
		locker = redisinfra.NewEventLocker(redisClient)
	}

	eventService := application.NewEventService(repo, imageCache, locker, m)
	authService := application.NewAuthService(auth.Admin{
		Username:     cfg.Admin.Username,
		Password:     cfg.Admin.Password,
		PasswordHash: cfg.Admin.PasswordHash,
	}, m)

	// イベント数の集計ワーカー
	var collector *worker.EventStatsCollector
	if cfg.Metrics.StatsInterval > 0 {
		collector = worker.NewEventStatsCollector(eventService, m, cfg.Metrics.StatsInterval)
		go collector.Start(context.Background())
	}

	e := server.New(server.Deps{
		EventService: eventService,
		AuthService:  authService,
		Checks:       checks,
		Server:       &cfg.Server,
		MetricsCfg:   cfg.Metrics,
		LoginRate:    cfg.Admin.LoginRate,
		LoginBurst:   cfg.Admin.LoginBurst,
		Metrics:      m,
	})
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	// Graceful shutdown
	go func() {
		logger.Info("サーバーを起動します",
			zap.String("port", cfg.Server.Port),
			zap.String("store", cfg.Store.Driver),
			zap.String("image_cache", cfg.Cache.Driver),
		)
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("サーバー起動エラー", zap.Error(err))
		}
	}()

	// シグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("サーバーをシャットダウンしています...")

	if collector != nil {
		collector.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Error("サーバーシャットダウンエラー", zap.Error(err))
		return
	}

	logger.Info("サーバーが正常にシャットダウンしました")
}
