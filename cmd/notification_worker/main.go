package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"daycare_messaging_service/internal/messaging/app"
	"daycare_messaging_service/internal/messaging/repository"
	"daycare_messaging_service/pkg/config"
	"daycare_messaging_service/pkg/database"
	"daycare_messaging_service/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.NotificationWorker, config.EnvConfig.NotificationWorkerLogPath)
	defer logger.Log.Sync()
	cfg := config.LoadConfig[config.NotificationWorker](config.EnvConfig.NotificationWorker, config.EnvConfig.NotificationWorkerYAMLPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Mongo：讀取訊息內容
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

	// 2. PostgreSQL：收件人與群組
	pool, err := database.NewDatabaseConnection(database.Connection{
		ConnectStr:    cfg.PostgreSQL.PostgresDSN(),
		RetryCount:    cfg.PostgreSQL.RetryCount,
		RetryInterval: time.Duration(cfg.PostgreSQL.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal("Unable to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// 3. RabbitMQ
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

	// 一次只取一個 job，處理完才 Ack
	if err := channel.Qos(1, 0, false); err != nil {
		logger.Log.Fatal("set rabbitmq qos", zap.Error(err))
	}

	deliveries, err := channel.Consume(
		cfg.RabbitMQ.Queue, // queue
		"",                 // consumer tag，留空由系統分配
		false,              // autoAck 為 false，使用手動確認
		false,              // exclusive
		false,              // noLocal
		false,              // noWait
		nil,                // arguments
	)
	if err != nil {
		logger.Log.Fatal("consume notification queue", zap.Error(err))
	}

	msgRepo := repository.NewMongoMessageRepository(mongo.Database)
	dir := repository.NewPGDirectory(pool)
	worker := app.NewNotificationWorker(app.NewThreadResolver(dir, msgRepo), dir, msgRepo, app.LogMailer{From: cfg.Mail.From}, cfg.Mail.BaseURL)

	logger.Log.Info("notification worker consuming", zap.String("queue", cfg.RabbitMQ.Queue))
	worker.Consume(ctx, deliveries)
}
