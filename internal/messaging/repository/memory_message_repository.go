package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"daycare_messaging_service/internal/messaging/domain"
)

// MemoryMessageRepository in-process MessageRepository
type MemoryMessageRepository struct {
	mu       sync.RWMutex
	now      func() time.Time
	clocks   map[string]int64
	messages map[string][]domain.Message
}

// NewMemoryMessageRepository create a MemoryMessageRepository, now defaults to time.Now
func NewMemoryMessageRepository(now func() time.Time) *MemoryMessageRepository {
	if now == nil {
		now = time.Now
	}
	return &MemoryMessageRepository{
		now:      now,
		clocks:   make(map[string]int64),
		messages: make(map[string][]domain.Message),
	}
}

func (r *MemoryMessageRepository) tick(tenantID string) time.Time {
	ms := r.now().UnixMilli()
	if last := r.clocks[tenantID]; ms <= last {
		ms = last + 1
	}
	r.clocks[tenantID] = ms
	return time.UnixMilli(ms).UTC()
}

// Tick next value of the tenant clock
func (r *MemoryMessageRepository) Tick(_ context.Context, tenantID string) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tick(tenantID), nil
}

// Append 在同一把鎖內取時間並寫入，tenant log 維持時間順序
func (r *MemoryMessageRepository) Append(_ context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prepare(msg, r.tick(msg.TenantID))
	r.messages[msg.TenantID] = append(r.messages[msg.TenantID], *msg)
	return nil
}

func (r *MemoryMessageRepository) thread(tenantID string, key domain.ThreadKey) []domain.Message {
	var out []domain.Message
	for _, m := range r.messages[tenantID] {
		if m.MessageType == key.Kind && m.ThreadID == key.ID {
			out = append(out, m)
		}
	}
	return out
}

// ListThread see MessageRepository
func (r *MemoryMessageRepository) ListThread(_ context.Context, tenantID string, key domain.ThreadKey, page domain.Page) ([]domain.Message, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.thread(tenantID, key)
	total := int64(len(all))

	end := total - page.Offset()
	if end <= 0 {
		return []domain.Message{}, total, nil
	}
	start := end - int64(page.PerPage)
	if start < 0 {
		start = 0
	}

	out := make([]domain.Message, end-start)
	copy(out, all[start:end])
	return out, total, nil
}

// LastMessage see MessageRepository
func (r *MemoryMessageRepository) LastMessage(_ context.Context, tenantID string, key domain.ThreadKey) (*domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.thread(tenantID, key)
	if len(all) == 0 {
		return nil, nil
	}
	last := all[len(all)-1]
	return &last, nil
}

// CountUnread see MessageRepository
func (r *MemoryMessageRepository) CountUnread(_ context.Context, tenantID string, key domain.ThreadKey, userID string, after time.Time) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, m := range r.thread(tenantID, key) {
		if m.CreatedAt.After(after) && m.SenderID != userID {
			n++
		}
	}
	return n, nil
}

// HasMessages see MessageRepository
func (r *MemoryMessageRepository) HasMessages(_ context.Context, tenantID string, key domain.ThreadKey) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.thread(tenantID, key)) > 0, nil
}

// Get see MessageRepository
func (r *MemoryMessageRepository) Get(_ context.Context, tenantID, messageID string) (*domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.messages[tenantID] {
		if m.ID == messageID {
			found := m
			return &found, nil
		}
	}
	return nil, domain.ErrNotFound
}

// IndividualAnchors see MessageRepository
func (r *MemoryMessageRepository) IndividualAnchors(_ context.Context, tenantID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, m := range r.messages[tenantID] {
		if m.MessageType == domain.MessageTypeIndividual {
			seen[m.ThreadID] = struct{}{}
		}
	}
	anchors := make([]string, 0, len(seen))
	for id := range seen {
		anchors = append(anchors, id)
	}
	sort.Strings(anchors)
	return anchors, nil
}
