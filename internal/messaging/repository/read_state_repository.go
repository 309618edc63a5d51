package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"daycare_messaging_service/internal/messaging/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReadStateRepository per (user, thread) read watermark
type ReadStateRepository interface {
	// Get nil when the user never read the thread
	Get(ctx context.Context, tenantID, userID string, key domain.ThreadKey) (*domain.ReadState, error)
	// ListForUser watermarks of every thread the user read, keyed by ThreadKey.String()
	ListForUser(ctx context.Context, tenantID, userID string) (map[string]time.Time, error)
	// Set 無條件覆寫 watermark (mark-read)
	Set(ctx context.Context, tenantID, userID string, key domain.ThreadKey, at time.Time) error
}

// ReadStateRepo gorm ReadStateRepository
type ReadStateRepo struct {
	db *gorm.DB
}

// NewReadStateRepo create ReadStateRepo
func NewReadStateRepo(db *gorm.DB) *ReadStateRepo {
	return &ReadStateRepo{db: db}
}

// AutoMigrate create or update the read state table
func (r *ReadStateRepo) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.ReadState{})
}

// Get see ReadStateRepository
func (r *ReadStateRepo) Get(ctx context.Context, tenantID, userID string, key domain.ThreadKey) (*domain.ReadState, error) {
	var rs domain.ReadState
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ? AND thread_key = ?", tenantID, userID, key.String()).
		Take(&rs).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rs, nil
}

// ListForUser see ReadStateRepository
func (r *ReadStateRepo) ListForUser(ctx context.Context, tenantID, userID string) (map[string]time.Time, error) {
	var rows []domain.ReadState
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make(map[string]time.Time, len(rows))
	for _, rs := range rows {
		out[rs.ThreadKey] = rs.LastReadAt
	}
	return out, nil
}

func conflictColumns() []clause.Column {
	return []clause.Column{{Name: "tenant_id"}, {Name: "user_id"}, {Name: "thread_key"}}
}

// Set see ReadStateRepository
func (r *ReadStateRepo) Set(ctx context.Context, tenantID, userID string, key domain.ThreadKey, at time.Time) error {
	rs := domain.ReadState{TenantID: tenantID, UserID: userID, ThreadKey: key.String(), LastReadAt: at}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   conflictColumns(),
		DoUpdates: clause.AssignmentColumns([]string{"last_read_at", "updated_at"}),
	}).Create(&rs).Error
}

// MemoryReadStateRepository in-process ReadStateRepository
type MemoryReadStateRepository struct {
	mu    sync.RWMutex
	marks map[string]time.Time
}

// NewMemoryReadStateRepository create a MemoryReadStateRepository
func NewMemoryReadStateRepository() *MemoryReadStateRepository {
	return &MemoryReadStateRepository{marks: make(map[string]time.Time)}
}

func readStateKey(tenantID, userID, thread string) string {
	return tenantID + "|" + userID + "|" + thread
}

// Get see ReadStateRepository
func (r *MemoryReadStateRepository) Get(_ context.Context, tenantID, userID string, key domain.ThreadKey) (*domain.ReadState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	at, ok := r.marks[readStateKey(tenantID, userID, key.String())]
	if !ok {
		return nil, nil
	}
	return &domain.ReadState{TenantID: tenantID, UserID: userID, ThreadKey: key.String(), LastReadAt: at, UpdatedAt: at}, nil
}

// ListForUser see ReadStateRepository
func (r *MemoryReadStateRepository) ListForUser(_ context.Context, tenantID, userID string) (map[string]time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	prefix := readStateKey(tenantID, userID, "")
	out := make(map[string]time.Time)
	for k, at := range r.marks {
		if strings.HasPrefix(k, prefix) {
			out[strings.TrimPrefix(k, prefix)] = at
		}
	}
	return out, nil
}

// Set see ReadStateRepository
func (r *MemoryReadStateRepository) Set(_ context.Context, tenantID, userID string, key domain.ThreadKey, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.marks[readStateKey(tenantID, userID, key.String())] = at
	return nil
}
