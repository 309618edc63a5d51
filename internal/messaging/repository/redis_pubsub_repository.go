package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"daycare_messaging_service/internal/messaging/domain"
	"daycare_messaging_service/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const tenantChannelPattern = "tenant:*:messages"

// TenantChannel redis channel of a tenant's thread events
func TenantChannel(tenantID string) string {
	return fmt.Sprintf("tenant:%s:messages", tenantID)
}

// RedisPubSub relay thread events between service instances
type RedisPubSub struct {
	client *redis.Client
}

// NewRedisPubSub create RedisPubSub
func NewRedisPubSub(client *redis.Client) *RedisPubSub {
	return &RedisPubSub{client: client}
}

// Publish 將 message 序列化後，發布到指定 channel
func (r *RedisPubSub) Publish(ctx context.Context, channel string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, channel, data).Err()
}

// NotifyThread publish the event on the tenant channel, every instance delivers it to its own hub
func (r *RedisPubSub) NotifyThread(ctx context.Context, ev domain.ThreadEvent) error {
	return r.Publish(ctx, TenantChannel(ev.TenantID), ev)
}

// SubscribeThreadEvents 訂閱所有 tenant channel，收到事件後呼叫 handler，ctx 結束時關閉訂閱
func (r *RedisPubSub) SubscribeThreadEvents(ctx context.Context, handler func(ctx context.Context, ev domain.ThreadEvent)) error {
	sub := r.client.PSubscribe(ctx, tenantChannelPattern)
	// 確認訂閱成功
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return fmt.Errorf("psubscribe %s: %w", tenantChannelPattern, err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()

		for {
			select {
			case m, ok := <-ch:
				if !ok {
					return
				}

				var ev domain.ThreadEvent
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					logger.Log.Warn("drop malformed thread event", zap.String("channel", m.Channel), zap.Error(err))
					continue
				}
				// channel 上的 tenant 才是可信的
				if tenant := tenantFromChannel(m.Channel); tenant == "" || tenant != ev.TenantID {
					logger.Log.Warn("drop thread event with mismatched tenant", zap.String("channel", m.Channel))
					continue
				}
				handler(ctx, ev)
			case <-ctx.Done():
				logger.Log.Info("thread event subscription closed", zap.String("pattern", tenantChannelPattern))
				return
			}
		}
	}()
	return nil
}

func tenantFromChannel(channel string) string {
	const prefix, suffix = "tenant:", ":messages"
	if !strings.HasPrefix(channel, prefix) || !strings.HasSuffix(channel, suffix) || len(channel) < len(prefix)+len(suffix) {
		return ""
	}
	return strings.TrimSuffix(strings.TrimPrefix(channel, prefix), suffix)
}
