package main

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"

	"github.com/harborchat/harbor-backend/internal/cache"
	"github.com/harborchat/harbor-backend/internal/config"
	"github.com/harborchat/harbor-backend/internal/handlers"
	"github.com/harborchat/harbor-backend/internal/logger"
	"github.com/harborchat/harbor-backend/internal/middleware"
	"github.com/harborchat/harbor-backend/internal/queue"
	"github.com/harborchat/harbor-backend/internal/realtime"
	"github.com/harborchat/harbor-backend/internal/repository"
	"github.com/harborchat/harbor-backend/internal/service"
	"github.com/harborchat/harbor-backend/internal/throttle"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	logger.Init(cfg.Env)

	db, err := repository.InitDB(cfg.DSN())
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis connection failed")
	}

	// Caches
	redisCache := cache.NewRedisCache(redisClient)
	chatListCache := cache.NewChatListCache(redisCache)

	// Repositories
	chatRepo := repository.NewChatRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	readRepo := repository.NewMessageReadRepository(db)

	// Services
	chatService := service.NewChatService(chatRepo, messageRepo, readRepo, chatListCache)
	readService := service.NewReadReceiptService(chatRepo, messageRepo, readRepo)
	digestService := service.NewDigestService(chatRepo, messageRepo, queue.NewStreamPublisher(redisClient))

	// Realtime fanout across instances via the Redis backplane.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fanout := realtime.NewFanout(realtime.NewHub(), realtime.NewRedisBackplane(redisClient))
	if err := fanout.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("backplane subscription failed")
	}

	// One throttler, one counter store, both transports.
	throttler := throttle.NewThrottler(throttle.NewRedisStore(redisClient), throttle.Policy{
		Name:          "default",
		Window:        time.Duration(cfg.RateLimitWindowSeconds) * time.Second,
		Limit:         cfg.RateLimitMax,
		BlockDuration: time.Duration(cfg.RateLimitBlockSeconds) * time.Second,
	})

	scheduler := service.NewDigestScheduler(digestService, cfg.DigestHourUTC)
	scheduler.Start(ctx)

	app := fiber.New(fiber.Config{
		AppName: "Harbor Chat Backend",
	})

	app.Use(requestid.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1", middleware.Throttle(throttler), middleware.Auth(cfg.JWTSecret))
	handlers.NewChatHandler(chatService, readService, fanout).RegisterRoutes(api)

	wsHandler := handlers.NewWebSocketHandler(fanout, throttler, chatService, readService, cfg.JWTSecret)
	wsHandler.RegisterRoutes(app)

	logger.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server starting")
	if err := app.Listen(":" + cfg.Port); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}
