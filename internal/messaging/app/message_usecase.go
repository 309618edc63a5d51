package app

import (
	"context"
	"sync"
	"time"

	"daycare_messaging_service/internal/messaging/domain"
	"daycare_messaging_service/internal/messaging/repository"
	errprocess "daycare_messaging_service/pkg/err"
	"daycare_messaging_service/pkg/logger"
	"daycare_messaging_service/pkg/metrics"

	"go.uber.org/zap"
)

const defaultSideEffectTimeout = 5 * time.Second

// ThreadNotifier deliver a thread event to live connections
type ThreadNotifier interface {
	NotifyThread(ctx context.Context, ev domain.ThreadEvent) error
}

// NotificationEnqueuer queue an e-mail notification job
type NotificationEnqueuer interface {
	Enqueue(ctx context.Context, job domain.NotificationJob) (bool, error)
}

// EventPublisher publish message events for external consumers
type EventPublisher interface {
	PublishMessageCreated(ctx context.Context, msg domain.Message) error
}

// SendMessageUseCase append a message and fan out the side effects
type SendMessageUseCase struct {
	resolver *ThreadResolver
	msgRepo  repository.MessageRepository
	notifier ThreadNotifier
	mailer   NotificationEnqueuer
	events   EventPublisher

	timeout time.Duration
	pending sync.WaitGroup
}

// SendOption configure optional collaborators
type SendOption func(*SendMessageUseCase)

// WithNotificationQueue enable e-mail notification jobs
func WithNotificationQueue(q NotificationEnqueuer) SendOption {
	return func(uc *SendMessageUseCase) { uc.mailer = q }
}

// WithEventPublisher enable message.created events
func WithEventPublisher(p EventPublisher) SendOption {
	return func(uc *SendMessageUseCase) { uc.events = p }
}

// NewSendMessageUseCase create SendMessageUseCase
func NewSendMessageUseCase(resolver *ThreadResolver, msgRepo repository.MessageRepository, notifier ThreadNotifier, opts ...SendOption) *SendMessageUseCase {
	uc := &SendMessageUseCase{
		resolver: resolver,
		msgRepo:  msgRepo,
		notifier: notifier,
		timeout:  defaultSideEffectTimeout,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Execute 驗證、寫入訊息，寫入成功後才觸發通知；通知失敗不影響回傳
func (uc *SendMessageUseCase) Execute(ctx context.Context, p domain.Principal, req domain.ComposeRequest) (*domain.Message, error) {
	key, err := uc.resolver.ResolveAuthoring(ctx, p, req)
	if err != nil {
		return nil, err
	}

	msg := &domain.Message{
		TenantID:    p.TenantID,
		SenderID:    p.UserID,
		MessageType: req.MessageType,
		Content:     req.Content,
	}
	switch key.Kind {
	case domain.MessageTypeGroup:
		msg.GroupID = key.ID
	case domain.MessageTypeIndividual:
		if p.Role.IsStaff() {
			msg.RecipientID = key.ID
		}
	}

	if err := uc.msgRepo.Append(ctx, msg); err != nil {
		return nil, errprocess.Internal("append message", err)
	}
	metrics.MessagesSent.WithLabelValues(p.TenantID).Inc()

	uc.pending.Add(1)
	go uc.afterAppend(*msg, key)

	return msg, nil
}

// afterAppend best-effort side effects, detached from the request context
func (uc *SendMessageUseCase) afterAppend(msg domain.Message, key domain.ThreadKey) {
	defer uc.pending.Done()

	ctx, cancel := context.WithTimeout(context.Background(), uc.timeout)
	defer cancel()

	fields := []zap.Field{
		zap.String("tenant", msg.TenantID),
		zap.String("message", msg.ID),
		zap.String("thread", key.String()),
	}

	viewers, err := uc.resolver.Viewers(ctx, msg.TenantID, key)
	if err != nil {
		logger.Log.Warn("resolve viewers", append(fields, zap.Error(err))...)
	} else if err := uc.notifier.NotifyThread(ctx, domain.ThreadEvent{TenantID: msg.TenantID, Thread: key, Viewers: viewers}); err != nil {
		logger.Log.Warn("notify thread", append(fields, zap.Error(err))...)
	}

	if uc.mailer != nil {
		queued, err := uc.mailer.Enqueue(ctx, domain.NotificationJob{
			TenantID:  msg.TenantID,
			Thread:    key,
			MessageID: msg.ID,
			SenderID:  msg.SenderID,
		})
		switch {
		case err != nil:
			metrics.EmailsQueued.WithLabelValues("failed").Inc()
			logger.Log.Warn("enqueue e-mail notification", append(fields, zap.Error(err))...)
		case queued:
			metrics.EmailsQueued.WithLabelValues("queued").Inc()
		default:
			metrics.EmailsQueued.WithLabelValues("cooldown").Inc()
		}
	}

	if uc.events != nil {
		if err := uc.events.PublishMessageCreated(ctx, msg); err != nil {
			logger.Log.Warn("publish message event", append(fields, zap.Error(err))...)
		}
	}
}

// Wait block until every pending side effect finished, used on shutdown
func (uc *SendMessageUseCase) Wait() {
	uc.pending.Wait()
}
