package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"daycare_messaging_service/internal/messaging/domain"
	"daycare_messaging_service/pkg/logger"

	"github.com/go-redis/redis/v8"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// DefaultNotificationCooldown minimum gap between two e-mails for the same thread
const DefaultNotificationCooldown = 15 * time.Minute

// AMQPPublisher subset of *amqp.Channel used to publish jobs
type AMQPPublisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// CooldownKey redis key guarding e-mails of one thread
func CooldownKey(tenantID string, key domain.ThreadKey) string {
	return fmt.Sprintf("notif_cooldown:%s:%s", tenantID, key.String())
}

// NotificationQueue publish e-mail jobs to RabbitMQ, at most once per thread per cooldown
type NotificationQueue struct {
	redis    *redis.Client
	channel  AMQPPublisher
	queue    string
	cooldown time.Duration
}

// NewNotificationQueue create NotificationQueue
func NewNotificationQueue(client *redis.Client, channel AMQPPublisher, queue string, cooldown time.Duration) *NotificationQueue {
	if cooldown <= 0 {
		cooldown = DefaultNotificationCooldown
	}
	return &NotificationQueue{redis: client, channel: channel, queue: queue, cooldown: cooldown}
}

// Enqueue publish job unless the thread is cooling down, reports whether a job was published
func (q *NotificationQueue) Enqueue(ctx context.Context, job domain.NotificationJob) (bool, error) {
	key := CooldownKey(job.TenantID, job.Thread)
	// SET NX EX：只有第一個拿到 key 的請求會發信
	ok, err := q.redis.SetNX(ctx, key, job.MessageID, q.cooldown).Result()
	if err != nil {
		return false, fmt.Errorf("cooldown key: %w", err)
	}
	if !ok {
		return false, nil
	}

	data, err := json.Marshal(job)
	if err != nil {
		q.release(ctx, key)
		return false, err
	}
	err = q.channel.Publish(
		"",      // 預設 exchange
		q.queue, // queue 名稱
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         data,
		},
	)
	if err != nil {
		q.release(ctx, key)
		return false, fmt.Errorf("publish notification job: %w", err)
	}
	return true, nil
}

// release 沒發出去就歸還 cooldown，下一則訊息可以再試
func (q *NotificationQueue) release(ctx context.Context, key string) {
	if err := q.redis.Del(context.WithoutCancel(ctx), key).Err(); err != nil {
		logger.Log.Warn("release notification cooldown", zap.String("key", key), zap.Error(err))
	}
}
