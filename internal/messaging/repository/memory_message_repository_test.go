package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"daycare_messaging_service/internal/messaging/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() func() time.Time {
	t := time.Date(2025, 3, 7, 9, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func appendN(t *testing.T, repo MessageRepository, tenant string, n int, build func(i int) *domain.Message) []*domain.Message {
	t.Helper()
	out := make([]*domain.Message, 0, n)
	for i := 0; i < n; i++ {
		m := build(i)
		m.TenantID = tenant
		require.NoError(t, repo.Append(context.Background(), m))
		out = append(out, m)
	}
	return out
}

func groupMsg(i int) *domain.Message {
	return &domain.Message{
		SenderID:    "s1",
		MessageType: domain.MessageTypeGroup,
		GroupID:     "G1",
		Content:     fmt.Sprintf("msg %d", i),
	}
}

func TestMemoryAppendAssignsMonotonicTimestamps(t *testing.T) {
	repo := NewMemoryMessageRepository(fixedClock())

	msgs := appendN(t, repo, "t1", 5, groupMsg)

	for i := 1; i < len(msgs); i++ {
		assert.True(t, msgs[i].CreatedAt.After(msgs[i-1].CreatedAt), "created_at must strictly increase within a tenant")
		assert.NotEmpty(t, msgs[i].ID)
		assert.Equal(t, "G1", msgs[i].ThreadID)
	}

	// 另一個 tenant 有自己的時鐘
	other := appendN(t, repo, "t2", 1, groupMsg)
	assert.Equal(t, msgs[0].CreatedAt, other[0].CreatedAt)
}

func TestMemoryTickInterleavesWithAppend(t *testing.T) {
	repo := NewMemoryMessageRepository(fixedClock())
	ctx := context.Background()

	before := appendN(t, repo, "t1", 1, groupMsg)[0]
	mark, err := repo.Tick(ctx, "t1")
	require.NoError(t, err)
	after := appendN(t, repo, "t1", 1, groupMsg)[0]

	assert.True(t, mark.After(before.CreatedAt))
	assert.True(t, after.CreatedAt.After(mark))
}

func TestMemoryListThreadPagination(t *testing.T) {
	repo := NewMemoryMessageRepository(fixedClock())
	ctx := context.Background()
	appendN(t, repo, "t1", 5, groupMsg)

	// page 1 = 最新兩則，頁內由舊到新
	page1, total, err := repo.ListThread(ctx, "t1", domain.GroupThread("G1"), domain.Page{Page: 1, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page1, 2)
	assert.Equal(t, "msg 3", page1[0].Content)
	assert.Equal(t, "msg 4", page1[1].Content)

	page3, _, err := repo.ListThread(ctx, "t1", domain.GroupThread("G1"), domain.Page{Page: 3, PerPage: 2})
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Equal(t, "msg 0", page3[0].Content)

	page4, _, err := repo.ListThread(ctx, "t1", domain.GroupThread("G1"), domain.Page{Page: 4, PerPage: 2})
	require.NoError(t, err)
	assert.Empty(t, page4)
}

func TestMemoryThreadIsolation(t *testing.T) {
	repo := NewMemoryMessageRepository(nil)
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, &domain.Message{TenantID: "t1", SenderID: "p1", MessageType: domain.MessageTypeIndividual, Content: "hello"}))
	require.NoError(t, repo.Append(ctx, &domain.Message{TenantID: "t1", SenderID: "s1", MessageType: domain.MessageTypeIndividual, RecipientID: "p1", Content: "hi"}))
	require.NoError(t, repo.Append(ctx, &domain.Message{TenantID: "t1", SenderID: "s2", MessageType: domain.MessageTypeIndividual, RecipientID: "p2", Content: "hey"}))
	require.NoError(t, repo.Append(ctx, &domain.Message{TenantID: "t2", SenderID: "p9", MessageType: domain.MessageTypeIndividual, Content: "other tenant"}))

	msgs, total, err := repo.ListThread(ctx, "t1", domain.IndividualThread("p1"), domain.Page{Page: 1, PerPage: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, "hi", msgs[1].Content)

	anchors, err := repo.IndividualAnchors(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, anchors)

	has, err := repo.HasMessages(ctx, "t1", domain.IndividualThread("p9"))
	require.NoError(t, err)
	assert.False(t, has)
}

func TestMemoryLastMessageAndCountUnread(t *testing.T) {
	repo := NewMemoryMessageRepository(fixedClock())
	ctx := context.Background()
	key := domain.GroupThread("G1")

	last, err := repo.LastMessage(ctx, "t1", key)
	require.NoError(t, err)
	assert.Nil(t, last)

	msgs := appendN(t, repo, "t1", 4, func(i int) *domain.Message {
		m := groupMsg(i)
		if i%2 == 1 {
			m.SenderID = "s2"
		}
		return m
	})

	last, err = repo.LastMessage(ctx, "t1", key)
	require.NoError(t, err)
	assert.Equal(t, msgs[3].ID, last.ID)

	// s1 自己的訊息不算未讀
	n, err := repo.CountUnread(ctx, "t1", key, "s1", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = repo.CountUnread(ctx, "t1", key, "p1", msgs[1].CreatedAt)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestMemoryConcurrentAppendKeepsTotalOrder(t *testing.T) {
	repo := NewMemoryMessageRepository(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				_ = repo.Append(ctx, &domain.Message{TenantID: "t1", SenderID: "s1", MessageType: domain.MessageTypeBroadcast, Content: "x"})
			}
		}()
	}
	wg.Wait()

	msgs, total, err := repo.ListThread(ctx, "t1", domain.BroadcastThread, domain.Page{Page: 1, PerPage: 500})
	require.NoError(t, err)
	assert.Equal(t, int64(200), total)
	for i := 1; i < len(msgs); i++ {
		assert.True(t, msgs[i].CreatedAt.After(msgs[i-1].CreatedAt))
	}
}

func TestMemoryGetIsTenantScoped(t *testing.T) {
	repo := NewMemoryMessageRepository(nil)
	ctx := context.Background()

	msgs := appendN(t, repo, "t1", 1, groupMsg)

	got, err := repo.Get(ctx, "t1", msgs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, msgs[0].Content, got.Content)

	_, err = repo.Get(ctx, "t2", msgs[0].ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
