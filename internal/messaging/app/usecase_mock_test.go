package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"daycare_messaging_service/internal/messaging/domain"

	"github.com/stretchr/testify/mock"
)

// MockThreadNotifier mock ThreadNotifier
type MockThreadNotifier struct {
	mock.Mock
}

// NotifyThread mock notify thread
func (m *MockThreadNotifier) NotifyThread(ctx context.Context, ev domain.ThreadEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

// MockNotificationEnqueuer mock NotificationEnqueuer
type MockNotificationEnqueuer struct {
	mock.Mock
}

// Enqueue mock enqueue e-mail job
func (m *MockNotificationEnqueuer) Enqueue(ctx context.Context, job domain.NotificationJob) (bool, error) {
	args := m.Called(ctx, job)
	return args.Bool(0), args.Error(1)
}

// MockEventPublisher mock EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

// PublishMessageCreated mock publish event
func (m *MockEventPublisher) PublishMessageCreated(ctx context.Context, msg domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// MockMailer mock Mailer
type MockMailer struct {
	mock.Mock
}

// Send mock send mail
func (m *MockMailer) Send(ctx context.Context, mail Email) error {
	args := m.Called(ctx, mail)
	return args.Error(0)
}

var errBrokenPipe = errors.New("broken pipe")

// fakeConn 記錄寫入的 frame，fail 時模擬斷線
type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	pings  int
	fail   bool
	closed bool
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errBrokenPipe
	}
	if data == nil {
		c.pings++
		return nil
	}
	c.frames = append(c.frames, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error {
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) Frames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.frames))
	for i, f := range c.frames {
		out[i] = string(f)
	}
	return out
}
