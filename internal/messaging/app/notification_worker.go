package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"daycare_messaging_service/internal/messaging/domain"
	"daycare_messaging_service/internal/messaging/repository"
	"daycare_messaging_service/pkg"
	"daycare_messaging_service/pkg/logger"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

const defaultRequeueDelay = 10 * time.Second

// Email one outgoing notification e-mail
type Email struct {
	To      string
	Subject string
	Body    string
}

// Mailer deliver e-mails
type Mailer interface {
	Send(ctx context.Context, mail Email) error
}

// LogMailer write e-mails to the log instead of sending them
type LogMailer struct {
	From string
}

// Send log the e-mail
func (m LogMailer) Send(_ context.Context, mail Email) error {
	logger.Log.Info("notification e-mail",
		zap.String("from", m.From),
		zap.String("to", mail.To),
		zap.String("subject", mail.Subject),
	)
	return nil
}

// NotificationWorker consume e-mail notification jobs
type NotificationWorker struct {
	resolver *ThreadResolver
	dir      repository.Directory
	msgRepo  repository.MessageRepository
	mailer   Mailer

	baseURL       string
	previewLength int
	requeueDelay  time.Duration
}

// NewNotificationWorker create NotificationWorker
func NewNotificationWorker(resolver *ThreadResolver, dir repository.Directory, msgRepo repository.MessageRepository, mailer Mailer, baseURL string) *NotificationWorker {
	return &NotificationWorker{
		resolver:      resolver,
		dir:           dir,
		msgRepo:       msgRepo,
		mailer:        mailer,
		baseURL:       strings.TrimRight(baseURL, "/"),
		previewLength: DefaultPreviewLength,
		requeueDelay:  defaultRequeueDelay,
	}
}

// Consume 持續處理 deliveries 直到 channel 關閉或 ctx 結束
func (w *NotificationWorker) Consume(ctx context.Context, deliveries <-chan amqp.Delivery) {
	logger.Log.Info("notification worker started")
	for {
		select {
		case d, ok := <-deliveries:
			if !ok {
				logger.Log.Info("notification channel closed")
				return
			}
			w.handleDelivery(ctx, d)
		case <-ctx.Done():
			logger.Log.Info("notification worker stopped")
			return
		}
	}
}

func (w *NotificationWorker) handleDelivery(ctx context.Context, d amqp.Delivery) {
	var job domain.NotificationJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		logger.Log.Warn("drop malformed notification job", zap.Error(err))
		// 格式錯誤重送也不會成功，直接丟棄
		if err := d.Nack(false, false); err != nil {
			logger.Log.Warn("nack notification job", zap.Error(err))
		}
		return
	}

	fields := []zap.Field{
		zap.String("tenant", job.TenantID),
		zap.String("thread", job.Thread.String()),
		zap.String("message", job.MessageID),
	}

	err := w.Process(ctx, job)
	switch {
	case err == nil:
		if err := d.Ack(false); err != nil {
			logger.Log.Warn("ack notification job", append(fields, zap.Error(err))...)
		}
	case errors.Is(err, domain.ErrNotFound):
		logger.Log.Warn("drop notification job for missing message", fields...)
		if err := d.Nack(false, false); err != nil {
			logger.Log.Warn("nack notification job", append(fields, zap.Error(err))...)
		}
	default:
		logger.Log.Error("process notification job", append(fields, zap.Error(err))...)
		select {
		case <-time.After(w.requeueDelay):
		case <-ctx.Done():
		}
		if err := d.Nack(false, true); err != nil {
			logger.Log.Warn("nack notification job", append(fields, zap.Error(err))...)
		}
	}
}

// Process e-mail the other side of the thread about one message
func (w *NotificationWorker) Process(ctx context.Context, job domain.NotificationJob) error {
	msg, err := w.msgRepo.Get(ctx, job.TenantID, job.MessageID)
	if err != nil {
		return err
	}

	viewers, err := w.resolver.Viewers(ctx, job.TenantID, job.Thread)
	if err != nil {
		return fmt.Errorf("resolve viewers: %w", err)
	}
	ids := make([]string, 0, len(viewers)+1)
	ids = append(ids, viewers...)
	ids = append(ids, msg.SenderID)

	users, err := w.dir.GetUsers(ctx, job.TenantID, ids)
	if err != nil {
		return fmt.Errorf("lookup recipients: %w", err)
	}
	sender, ok := users[msg.SenderID]
	if !ok {
		return domain.ErrNotFound
	}

	for _, id := range pkg.Without(viewers, msg.SenderID) {
		u, ok := users[id]
		if !ok || u.Email == "" {
			continue
		}
		// staff 寄給家長，家長寄給 staff
		if u.Role.IsStaff() == sender.Role.IsStaff() {
			continue
		}
		if err := w.mailer.Send(ctx, w.render(u, sender, msg)); err != nil {
			return fmt.Errorf("send to %s: %w", u.ID, err)
		}
	}
	return nil
}

func (w *NotificationWorker) render(to, sender domain.User, msg *domain.Message) Email {
	from := sender.FullName()
	if sender.Role.IsStaff() {
		from = DefaultStaffInboxName
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Bonjour %s,\n\n", to.FirstName)
	fmt.Fprintf(&b, "%s vous a envoyé un nouveau message :\n\n", from)
	fmt.Fprintf(&b, "%s\n\n", preview(msg.Content, w.previewLength))
	if w.baseURL != "" {
		fmt.Fprintf(&b, "%s/messages\n", w.baseURL)
	}

	return Email{
		To:      to.Email,
		Subject: "Nouveau message de " + from,
		Body:    b.String(),
	}
}
