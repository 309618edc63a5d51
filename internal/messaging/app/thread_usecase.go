package app

import (
	"context"
	"errors"
	"time"

	"daycare_messaging_service/internal/messaging/domain"
	"daycare_messaging_service/internal/messaging/repository"
	errprocess "daycare_messaging_service/pkg/err"
)

const (
	// DefaultPerPage thread page size when none is requested
	DefaultPerPage = 20
	// MaxPerPage upper bound of a thread page
	MaxPerPage = 100
)

// ThreadUseCase thread reads and the read-state tracker
type ThreadUseCase struct {
	resolver *ThreadResolver
	msgRepo  repository.MessageRepository
	readRepo repository.ReadStateRepository
	dir      repository.Directory

	defaultPerPage int
	maxPerPage     int
}

// NewThreadUseCase create ThreadUseCase, zero page sizes fall back to 20/100
func NewThreadUseCase(resolver *ThreadResolver, msgRepo repository.MessageRepository, readRepo repository.ReadStateRepository, dir repository.Directory, defaultPerPage, maxPerPage int) *ThreadUseCase {
	if defaultPerPage <= 0 {
		defaultPerPage = DefaultPerPage
	}
	if maxPerPage <= 0 {
		maxPerPage = MaxPerPage
	}
	return &ThreadUseCase{
		resolver:       resolver,
		msgRepo:        msgRepo,
		readRepo:       readRepo,
		dir:            dir,
		defaultPerPage: defaultPerPage,
		maxPerPage:     maxPerPage,
	}
}

// ListThread one page of a visible thread, page 1 holds the newest messages, oldest first
func (uc *ThreadUseCase) ListThread(ctx context.Context, p domain.Principal, key domain.ThreadKey, page domain.Page) ([]domain.Message, domain.PageInfo, error) {
	if err := uc.resolver.CheckVisible(ctx, p, key); err != nil {
		return nil, domain.PageInfo{}, err
	}

	page = page.Normalize(uc.defaultPerPage, uc.maxPerPage)
	msgs, total, err := uc.msgRepo.ListThread(ctx, p.TenantID, key, page)
	if err != nil {
		return nil, domain.PageInfo{}, errprocess.Internal("list thread", err)
	}
	return msgs, domain.NewPageInfo(page, total), nil
}

// MarkRead set the watermark to now, idempotent
func (uc *ThreadUseCase) MarkRead(ctx context.Context, p domain.Principal, key domain.ThreadKey) error {
	if err := uc.resolver.CheckVisible(ctx, p, key); err != nil {
		return err
	}

	// 取 tenant 時鐘，之後寫入的訊息一定晚於這個 watermark
	now, err := uc.msgRepo.Tick(ctx, p.TenantID)
	if err != nil {
		return errprocess.Internal("tenant clock", err)
	}
	if err := uc.readRepo.Set(ctx, p.TenantID, p.UserID, key, now); err != nil {
		return errprocess.Internal("mark read", err)
	}
	return nil
}

// UnreadCount messages after the watermark not sent by p
func (uc *ThreadUseCase) UnreadCount(ctx context.Context, p domain.Principal, key domain.ThreadKey) (int64, error) {
	if err := uc.resolver.CheckVisible(ctx, p, key); err != nil {
		return 0, err
	}

	rs, err := uc.readRepo.Get(ctx, p.TenantID, p.UserID, key)
	if err != nil {
		return 0, errprocess.Internal("read state", err)
	}

	var after time.Time
	if rs != nil {
		after = rs.LastReadAt
	} else if after, err = accountCreatedAt(ctx, uc.dir, p); err != nil {
		return 0, err
	}

	n, err := uc.msgRepo.CountUnread(ctx, p.TenantID, key, p.UserID, after)
	if err != nil {
		return 0, errprocess.Internal("count unread", err)
	}
	return n, nil
}

// accountCreatedAt default watermark: everything before the account existed counts as read
func accountCreatedAt(ctx context.Context, dir repository.Directory, p domain.Principal) (time.Time, error) {
	u, err := dir.GetUser(ctx, p.TenantID, p.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, errprocess.Internal("lookup user", err)
	}
	return u.CreatedAt, nil
}
