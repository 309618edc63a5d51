package repository

import (
	"context"
	"encoding/json"

	"daycare_messaging_service/internal/messaging/domain"

	"github.com/segmentio/kafka-go"
)

// EventMessageCreated event name published after a send
const EventMessageCreated = "message.created"

// KafkaWriter subset of *kafka.Writer
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaEventPublisher publish message events keyed by tenant so a tenant's events stay ordered
type KafkaEventPublisher struct {
	writer KafkaWriter
}

// NewKafkaEventPublisher create KafkaEventPublisher
func NewKafkaEventPublisher(writer KafkaWriter) *KafkaEventPublisher {
	return &KafkaEventPublisher{writer: writer}
}

// PublishMessageCreated write a message.created event
func (p *KafkaEventPublisher) PublishMessageCreated(ctx context.Context, msg domain.Message) error {
	ev := domain.MessageEvent{
		Event:     EventMessageCreated,
		Message:   msg,
		ThreadKey: msg.Thread().String(),
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.TenantID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(EventMessageCreated)},
		},
	})
}
