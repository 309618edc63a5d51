package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"daycare_messaging_service/internal/messaging/app"
	"daycare_messaging_service/internal/messaging/domain"
	"daycare_messaging_service/internal/messaging/repository"
	"daycare_messaging_service/internal/messaging/router"
	"daycare_messaging_service/pkg/config"
	"daycare_messaging_service/pkg/database"
	"daycare_messaging_service/pkg/logger"
	"daycare_messaging_service/pkg/token"
	testtool "daycare_messaging_service/pkg/test_tool"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.MessagingService, config.EnvConfig.MessagingServiceLogPath)
	defer logger.Log.Sync()
	cfg := config.LoadConfig[config.Messaging](config.EnvConfig.MessagingService, config.EnvConfig.MessagingServiceYAMLPath)
	token.SetSecret(config.EnvConfig.JWTSecret)
	testtool.StartPprof(":6060")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Mongo：訊息與 tenant 時鐘
	mongo, err := database.NewMongoDB(ctx,
		database.Connection{
			ConnectStr:    cfg.MongoSQL.MongoURI(),
			RetryCount:    cfg.MongoSQL.RetryCount,
			RetryInterval: time.Duration(cfg.MongoSQL.RetryInterval),
		},
		cfg.MongoSQL.Database)
	if err != nil {
		logger.Log.Fatal("Unable to connect to mongoDB database after retries",
			zap.String("address", fmt.Sprintf("[%s:%d]", cfg.MongoSQL.Host, cfg.MongoSQL.Port)),
			zap.Error(err),
		)
	}
	defer mongo.Close(context.Background())
	if err := repository.EnsureMessageIndexes(ctx, mongo.Database); err != nil {
		logger.Log.Fatal("create message indexes", zap.Error(err))
	}

	// 2. PostgreSQL：gorm 存 read state，pgx 讀 directory
	pgConn := database.Connection{
		ConnectStr:    cfg.PostgreSQL.PostgresDSN(),
		RetryCount:    cfg.PostgreSQL.RetryCount,
		RetryInterval: time.Duration(cfg.PostgreSQL.RetryInterval),
	}
	gormDB, err := database.NewPGConnection(pgConn)
	if err != nil {
		logger.Log.Fatal("Unable to connect to postgres (gorm)", zap.Error(err))
	}
	pool, err := database.NewDatabaseConnection(pgConn)
	if err != nil {
		logger.Log.Fatal("Unable to connect to postgres (pgx)", zap.Error(err))
	}
	defer pool.Close()

	readRepo := repository.NewReadStateRepo(gormDB)
	if err := readRepo.AutoMigrate(); err != nil {
		logger.Log.Fatal("migrate read states", zap.Error(err))
	}
	msgRepo := repository.NewMongoMessageRepository(mongo.Database)
	dir := repository.NewPGDirectory(pool)

	// 3. Realtime hub，redis 啟用時透過 pub/sub 跨 instance 廣播
	hub := app.NewHub(cfg.Realtime.WriteWait)
	var notifier app.ThreadNotifier = hub
	var opts []app.SendOption

	if cfg.Redis.Enabled {
		masterName, sentinel := config.GetRedisSetting()
		redisClient, err := database.NewRedisClient(masterName, sentinel, cfg.Redis.RedisDB)
		if err != nil {
			logger.Log.Fatal(fmt.Sprintf("connect redis err : %v", err))
		}
		defer redisClient.Close()

		pub := repository.NewRedisPubSub(redisClient)
		if err := pub.SubscribeThreadEvents(ctx, func(ctx context.Context, ev domain.ThreadEvent) {
			_ = hub.NotifyThread(ctx, ev)
		}); err != nil {
			logger.Log.Fatal("subscribe thread events", zap.Error(err))
		}
		notifier = pub

		// 4. e-mail 通知：redis cooldown + RabbitMQ
		if cfg.Notification.Enabled {
			rabbitConn, err := database.ConnectRabbitMQWithRetry(database.Connection{
				ConnectStr:    cfg.RabbitMQ.URL(),
				RetryCount:    cfg.RabbitMQ.RetryCount,
				RetryInterval: time.Duration(cfg.RabbitMQ.RetryInterval),
			})
			if err != nil {
				logger.Log.Fatal("connect rabbitmq", zap.Error(err))
			}
			defer rabbitConn.Close()

			channel, err := database.GetRabbitMQChannelWithRetry(rabbitConn, cfg.RabbitMQ.Queue, cfg.RabbitMQ.RetryCount, time.Duration(cfg.RabbitMQ.RetryInterval))
			if err != nil {
				logger.Log.Fatal("open rabbitmq channel", zap.Error(err))
			}
			defer channel.Close()

			opts = append(opts, app.WithNotificationQueue(
				repository.NewNotificationQueue(redisClient, channel, cfg.RabbitMQ.Queue, cfg.Notification.Cooldown),
			))
		}
	} else if cfg.Notification.Enabled {
		logger.Log.Warn("e-mail notifications need redis for the cooldown, disabled")
	}

	// 5. Kafka：message.created 事件
	if cfg.Kafka.Enabled {
		writer, err := database.NewKafkaWriterWithRetry(database.KafkaConnection{
			Brokers:       cfg.Kafka.Brokers,
			Topic:         cfg.Kafka.Topic,
			RetryCount:    cfg.Kafka.RetryCount,
			RetryInterval: time.Duration(cfg.Kafka.RetryInterval),
		})
		if err != nil {
			logger.Log.Fatal("connect kafka", zap.Error(err))
		}
		defer writer.Close()
		opts = append(opts, app.WithEventPublisher(repository.NewKafkaEventPublisher(writer)))
	}

	// 6. 初始化 UseCases
	resolver := app.NewThreadResolver(dir, msgRepo)
	sendUC := app.NewSendMessageUseCase(resolver, msgRepo, notifier, opts...)
	threadUC := app.NewThreadUseCase(resolver, msgRepo, readRepo, dir, cfg.Pagination.DefaultPerPage, cfg.Pagination.MaxPerPage)
	convUC := app.NewConversationUseCase(resolver, msgRepo, readRepo, dir, app.InboxOptions{
		BroadcastName:  cfg.Inbox.BroadcastName,
		StaffInboxName: cfg.Inbox.StaffInboxName,
		PreviewLength:  cfg.Inbox.PreviewLength,
	})

	// 7. 啟動 Fiber
	r := fiber.New()
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.MessagingServiceLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	r.Use(recover.New())
	r.Use(fiber_log.New(fiber_log.Config{
		Output: file, // 將 access log 輸出到檔案
	}))

	router.RegisterRoutes(r,
		app.NewHTTPHandler(sendUC, threadUC, convUC),
		app.NewWebsocketHandler(hub, cfg.Realtime.PingPeriod, cfg.Realtime.WriteWait),
	)

	go func() {
		<-ctx.Done()
		logger.Log.Info("shutting down messaging service")
		if err := r.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Log.Warn("fiber shutdown", zap.Error(err))
		}
	}()

	port := ":" + cfg.Port
	if config.EnvConfig.MessagingServicePort != "" {
		port = ":" + config.EnvConfig.MessagingServicePort
	}
	logger.Log.Info("Messaging Service listening", zap.String("port", port))
	if err := r.Listen(port); err != nil {
		logger.Log.Fatal("Failed to start Fiber", zap.Error(err))
	}

	// 等待背景通知送完
	sendUC.Wait()
	hub.Wait()
}
