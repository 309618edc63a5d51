package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"daycare_messaging_service/internal/messaging/domain"
	"daycare_messaging_service/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goodToken = "good-token"

// notifyServer 驗證 token 後送出一個 new_message，dropFirst 時第一條連線立即斷開
type notifyServer struct {
	upgrader  websocket.Upgrader
	attempts  atomic.Int32
	accepted  atomic.Int32
	dropFirst bool
}

func (s *notifyServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.attempts.Add(1)
	if r.URL.Query().Get("token") != goodToken {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	n := s.accepted.Add(1)
	if s.dropFirst && n == 1 {
		conn.Close()
		return
	}
	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"new_message"}`))

	// 保持連線直到 client 關閉
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			conn.Close()
			return
		}
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestConnectionManagerDeliversNotifications(t *testing.T) {
	logger.SetNewNop()
	srv := httptest.NewServer(&notifyServer{})
	defer srv.Close()

	m := NewConnectionManager(wsURL(srv), WithRetryInterval(10*time.Millisecond))
	got := make(chan domain.Notification, 1)
	m.OnNotify(func(n domain.Notification) { got <- n })

	require.NoError(t, m.Connect(context.Background(), goodToken))

	select {
	case n := <-got:
		assert.Equal(t, domain.NotificationNewMessage, n.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("notification not delivered")
	}
	assert.Equal(t, StateOpen, m.State())

	require.NoError(t, m.Close())
	assert.Equal(t, StateClosed, m.State())
}

func TestConnectionManagerAuthFailureIsTerminal(t *testing.T) {
	logger.SetNewNop()
	s := &notifyServer{}
	srv := httptest.NewServer(s)
	defer srv.Close()

	m := NewConnectionManager(wsURL(srv), WithRetryInterval(10*time.Millisecond))
	require.NoError(t, m.Connect(context.Background(), "expired"))

	assert.Eventually(t, func() bool { return m.State() == StateAuthFailed }, 2*time.Second, 5*time.Millisecond)

	// 不會再重試
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), s.attempts.Load())
	require.NoError(t, m.Close())
}

func TestConnectionManagerMissingCredential(t *testing.T) {
	m := NewConnectionManager("ws://127.0.0.1:1/ws")
	assert.ErrorIs(t, m.Connect(context.Background(), ""), ErrMissingCredential)
	assert.Equal(t, StateAuthFailed, m.State())
}

func TestConnectionManagerFreshCredentialAfterAuthFailure(t *testing.T) {
	logger.SetNewNop()
	s := &notifyServer{}
	srv := httptest.NewServer(s)
	defer srv.Close()

	m := NewConnectionManager(wsURL(srv), WithRetryInterval(10*time.Millisecond))
	got := make(chan domain.Notification, 1)
	m.OnNotify(func(n domain.Notification) { got <- n })

	require.NoError(t, m.Connect(context.Background(), "expired"))
	assert.Eventually(t, func() bool { return m.State() == StateAuthFailed }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, m.Connect(context.Background(), goodToken))
	select {
	case n := <-got:
		assert.Equal(t, domain.NotificationNewMessage, n.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("notification not delivered with the fresh credential")
	}
	assert.Equal(t, StateOpen, m.State())
	assert.ErrorIs(t, m.Connect(context.Background(), goodToken), ErrAlreadyConnected)

	require.NoError(t, m.Close())
}

func TestConnectionManagerEmptyCredentialKeepsLiveConnection(t *testing.T) {
	logger.SetNewNop()
	srv := httptest.NewServer(&notifyServer{})
	defer srv.Close()

	m := NewConnectionManager(wsURL(srv), WithRetryInterval(10*time.Millisecond))
	got := make(chan domain.Notification, 1)
	m.OnNotify(func(n domain.Notification) { got <- n })
	require.NoError(t, m.Connect(context.Background(), goodToken))

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("notification not delivered")
	}

	assert.ErrorIs(t, m.Connect(context.Background(), ""), ErrMissingCredential)
	assert.Equal(t, StateOpen, m.State())
	require.NoError(t, m.Close())
}

func TestConnectionManagerReconnectsAfterDrop(t *testing.T) {
	logger.SetNewNop()
	s := &notifyServer{dropFirst: true}
	srv := httptest.NewServer(s)
	defer srv.Close()

	m := NewConnectionManager(wsURL(srv), WithRetryInterval(10*time.Millisecond))

	var wg sync.WaitGroup
	wg.Add(1)
	var once sync.Once
	m.OnReconnect(func() { once.Do(wg.Done) })

	got := make(chan domain.Notification, 1)
	m.OnNotify(func(n domain.Notification) {
		select {
		case got <- n:
		default:
		}
	})

	require.NoError(t, m.Connect(context.Background(), goodToken))

	reconnected := make(chan struct{})
	go func() {
		wg.Wait()
		close(reconnected)
	}()
	select {
	case <-reconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("reconnect handler not called")
	}

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("notification not delivered after reconnect")
	}
	assert.GreaterOrEqual(t, s.accepted.Load(), int32(2))
	require.NoError(t, m.Close())
}

func TestConnectionManagerRetriesUnreachableServer(t *testing.T) {
	logger.SetNewNop()
	s := &notifyServer{}
	srv := httptest.NewServer(s)
	target := wsURL(srv)
	srv.Close()

	m := NewConnectionManager(target, WithRetryInterval(10*time.Millisecond))
	require.NoError(t, m.Connect(context.Background(), goodToken))

	assert.Eventually(t, func() bool {
		st := m.State()
		return st == StateReconnecting || st == StateConnecting
	}, time.Second, 5*time.Millisecond)
	assert.NotEqual(t, StateAuthFailed, m.State())

	require.NoError(t, m.Close())
	assert.Equal(t, StateClosed, m.State())
	assert.ErrorIs(t, m.Connect(context.Background(), goodToken), ErrAlreadyConnected)
}
