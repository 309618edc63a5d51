package app

import (
	"context"
	"sort"
	"strings"

	"daycare_messaging_service/internal/messaging/domain"
	"daycare_messaging_service/internal/messaging/repository"
	errprocess "daycare_messaging_service/pkg/err"
)

const (
	// DefaultBroadcastName display name of the broadcast thread
	DefaultBroadcastName = "Tous les parents"
	// DefaultStaffInboxName how a parent sees their individual thread
	DefaultStaffInboxName = "Garderie"
	// DefaultPreviewLength preview length in runes
	DefaultPreviewLength = 120
)

// InboxOptions display settings of the conversation list
type InboxOptions struct {
	BroadcastName  string
	StaffInboxName string
	PreviewLength  int
}

func (o InboxOptions) withDefaults() InboxOptions {
	if o.BroadcastName == "" {
		o.BroadcastName = DefaultBroadcastName
	}
	if o.StaffInboxName == "" {
		o.StaffInboxName = DefaultStaffInboxName
	}
	if o.PreviewLength <= 0 {
		o.PreviewLength = DefaultPreviewLength
	}
	return o
}

// ConversationUseCase fold the message log into one user's inbox
type ConversationUseCase struct {
	resolver *ThreadResolver
	msgRepo  repository.MessageRepository
	readRepo repository.ReadStateRepository
	dir      repository.Directory
	opts     InboxOptions
}

// NewConversationUseCase create ConversationUseCase
func NewConversationUseCase(resolver *ThreadResolver, msgRepo repository.MessageRepository, readRepo repository.ReadStateRepository, dir repository.Directory, opts InboxOptions) *ConversationUseCase {
	return &ConversationUseCase{
		resolver: resolver,
		msgRepo:  msgRepo,
		readRepo: readRepo,
		dir:      dir,
		opts:     opts.withDefaults(),
	}
}

// List conversations visible to p, most recent first.
// Broadcast and group threads are listed even when empty; empty individual threads are omitted.
func (uc *ConversationUseCase) List(ctx context.Context, p domain.Principal) ([]domain.Conversation, error) {
	candidates, err := uc.resolver.VisibleThreads(ctx, p)
	if err != nil {
		return nil, err
	}

	marks, err := uc.readRepo.ListForUser(ctx, p.TenantID, p.UserID)
	if err != nil {
		return nil, errprocess.Internal("read states", err)
	}
	defaultMark, err := accountCreatedAt(ctx, uc.dir, p)
	if err != nil {
		return nil, err
	}

	names, err := uc.parentNames(ctx, p, candidates)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Conversation, 0, len(candidates))
	for _, cand := range candidates {
		last, err := uc.msgRepo.LastMessage(ctx, p.TenantID, cand.key)
		if err != nil {
			return nil, errprocess.Internal("last message", err)
		}
		if last == nil && !cand.structural {
			continue
		}

		conv := domain.Conversation{
			Kind:        cand.key.Kind,
			ID:          cand.key.ID,
			DisplayName: uc.displayName(p, cand, names),
		}
		if cand.group != nil {
			conv.Color = cand.group.Color
		}

		if last != nil {
			at := last.CreatedAt
			conv.LastMessageAt = &at
			conv.LastMessagePreview = preview(last.Content, uc.opts.PreviewLength)

			after, ok := marks[cand.key.String()]
			if !ok {
				after = defaultMark
			}
			if conv.UnreadCount, err = uc.msgRepo.CountUnread(ctx, p.TenantID, cand.key, p.UserID, after); err != nil {
				return nil, errprocess.Internal("count unread", err)
			}
		}
		out = append(out, conv)
	}

	sortConversations(out)
	return out, nil
}

// parentNames 只有 staff 需要顯示家長姓名
func (uc *ConversationUseCase) parentNames(ctx context.Context, p domain.Principal, candidates []candidateThread) (map[string]domain.User, error) {
	if !p.Role.IsStaff() {
		return nil, nil
	}
	var ids []string
	for _, c := range candidates {
		if c.key.Kind == domain.MessageTypeIndividual {
			ids = append(ids, c.key.ID)
		}
	}
	users, err := uc.dir.GetUsers(ctx, p.TenantID, ids)
	if err != nil {
		return nil, errprocess.Internal("lookup parents", err)
	}
	return users, nil
}

func (uc *ConversationUseCase) displayName(p domain.Principal, cand candidateThread, names map[string]domain.User) string {
	switch cand.key.Kind {
	case domain.MessageTypeBroadcast:
		return uc.opts.BroadcastName
	case domain.MessageTypeGroup:
		if cand.group != nil {
			return cand.group.Name
		}
		return cand.key.ID
	default:
		if p.Role.IsParent() {
			return uc.opts.StaffInboxName
		}
		if u, ok := names[cand.key.ID]; ok && u.FullName() != "" {
			return u.FullName()
		}
		return cand.key.ID
	}
}

// sortConversations last_message_at desc, empty threads keep candidate order at the end
func sortConversations(convs []domain.Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		a, b := convs[i].LastMessageAt, convs[j].LastMessageAt
		switch {
		case a != nil && b != nil:
			return a.After(*b)
		case a != nil:
			return true
		default:
			return false
		}
	})
}

func preview(content string, limit int) string {
	content = strings.Join(strings.Fields(content), " ")
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return string(runes[:limit]) + "…"
}
