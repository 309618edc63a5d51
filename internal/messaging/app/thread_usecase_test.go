package app

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"daycare_messaging_service/internal/messaging/domain"
	errprocess "daycare_messaging_service/pkg/err"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListThreadPagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 45; i++ {
		f.post(t, educatorA, toGroup("G1", fmt.Sprintf("msg %02d", i)))
	}
	f.settle()

	msgs, info, err := f.threads.ListThread(ctx, parentA, domain.GroupThread("G1"), domain.Page{})
	require.NoError(t, err)
	assert.Equal(t, domain.PageInfo{Page: 1, PerPage: DefaultPerPage, Total: 45, TotalPages: 3}, info)
	require.Len(t, msgs, 20)
	// page 1 為最新的 20 則，由舊到新
	assert.Equal(t, "msg 25", msgs[0].Content)
	assert.Equal(t, "msg 44", msgs[19].Content)

	msgs, _, err = f.threads.ListThread(ctx, parentA, domain.GroupThread("G1"), domain.Page{Page: 3})
	require.NoError(t, err)
	require.Len(t, msgs, 5)
	assert.Equal(t, "msg 00", msgs[0].Content)

	msgs, info, err = f.threads.ListThread(ctx, parentA, domain.GroupThread("G1"), domain.Page{Page: 1, PerPage: 500})
	require.NoError(t, err)
	assert.Equal(t, MaxPerPage, info.PerPage)
	assert.Len(t, msgs, 45)
	for i := 1; i < len(msgs); i++ {
		assert.True(t, msgs[i].CreatedAt.After(msgs[i-1].CreatedAt))
	}

	msgs, _, err = f.threads.ListThread(ctx, parentA, domain.GroupThread("G1"), domain.Page{Page: 9})
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestListThreadRequiresVisibility(t *testing.T) {
	f := newFixture(t)
	f.post(t, educatorA, toGroup("G2", "Lutins seulement"))
	f.settle()

	_, _, err := f.threads.ListThread(context.Background(), parentA, domain.GroupThread("G2"), domain.Page{})
	assert.Equal(t, errprocess.KindPermissionDenied, errprocess.KindOf(err))

	// 不存在與沒有權限回傳相同的錯誤
	_, _, missing := f.threads.ListThread(context.Background(), parentA, domain.GroupThread("G404"), domain.Page{})
	assert.Equal(t, errprocess.PublicMessage(err), errprocess.PublicMessage(missing))
	assert.Equal(t, errprocess.HTTPStatus(err), errprocess.HTTPStatus(missing))
}

func TestMarkReadResetsUnreadAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := domain.IndividualThread(parentA.UserID)

	f.post(t, educatorA, toParent(parentA.UserID, "Votre enfant a bien mangé"))
	f.post(t, adminA, toParent(parentA.UserID, "Facture disponible"))
	f.settle()

	n, err := f.threads.UnreadCount(ctx, parentA, key)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, f.threads.MarkRead(ctx, parentA, key))
	require.NoError(t, f.threads.MarkRead(ctx, parentA, key))
	n, err = f.threads.UnreadCount(ctx, parentA, key)
	require.NoError(t, err)
	assert.Zero(t, n)

	// 自己的訊息不算未讀
	f.post(t, parentA, toStaff("Merci!"))
	f.settle()
	n, err = f.threads.UnreadCount(ctx, parentA, key)
	require.NoError(t, err)
	assert.Zero(t, n)

	// shared staff inbox: 兩位 staff 各自有 watermark
	n, err = f.threads.UnreadCount(ctx, educatorA, key)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	n, err = f.threads.UnreadCount(ctx, adminA, key)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

// 發送訊息不等於已讀，只有 mark-read 會移動 watermark
func TestSendingDoesNotMarkThreadRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inbox := domain.IndividualThread(parentA.UserID)

	f.post(t, parentA, toStaff("Absent demain"))
	f.settle()
	n, err := f.threads.UnreadCount(ctx, educatorA, inbox)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	f.post(t, educatorA, toParent(parentA.UserID, "Bien noté"))
	f.settle()
	n, err = f.threads.UnreadCount(ctx, educatorA, inbox)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	f.post(t, adminA, toGroup("G1", "Sortie au parc"))
	f.post(t, educatorA, toGroup("G1", "Prévoir des bottes"))
	f.settle()
	n, err = f.threads.UnreadCount(ctx, educatorA, domain.GroupThread("G1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rs, err := f.reads.Get(ctx, tenantA, educatorA.UserID, inbox)
	require.NoError(t, err)
	assert.Nil(t, rs)

	require.NoError(t, f.threads.MarkRead(ctx, educatorA, inbox))
	n, err = f.threads.UnreadCount(ctx, educatorA, inbox)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMarkReadDeniedOnInvisibleThread(t *testing.T) {
	f := newFixture(t)
	err := f.threads.MarkRead(context.Background(), parentB, domain.IndividualThread(parentA.UserID))
	assert.Equal(t, errprocess.KindPermissionDenied, errprocess.KindOf(err))

	rs, err := f.reads.Get(context.Background(), tenantA, parentB.UserID, domain.IndividualThread(parentA.UserID))
	require.NoError(t, err)
	assert.Nil(t, rs)
}

func TestUnreadDefaultsToAccountCreation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	before := f.post(t, adminA, broadcast("Bienvenue à la garderie"))
	f.dir.AddUser(domain.User{ID: "parent-new", TenantID: tenantA, Role: domain.RoleParent, FirstName: "Nora", CreatedAt: before.CreatedAt})
	f.post(t, adminA, broadcast("Fermé vendredi"))
	f.settle()

	newcomer := domain.Principal{UserID: "parent-new", TenantID: tenantA, Role: domain.RoleParent}
	n, err := f.threads.UnreadCount(ctx, newcomer, domain.BroadcastThread)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = f.threads.UnreadCount(ctx, parentA, domain.BroadcastThread)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

// 並行寫入與已讀後，未讀數仍等於 watermark 之後他人訊息的數量
func TestUnreadInvariantUnderConcurrentWriters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := domain.GroupThread("G1")

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			author := educatorA
			if w%2 == 0 {
				author = adminA
			}
			for i := 0; i < 25; i++ {
				_, err := f.send.Execute(ctx, author, toGroup("G1", fmt.Sprintf("w%d-%d", w, i)))
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 10; i++ {
			assert.NoError(t, f.threads.MarkRead(ctx, parentA, key))
		}
	}()
	wg.Wait()
	f.settle()

	rs, err := f.reads.Get(ctx, tenantA, parentA.UserID, key)
	require.NoError(t, err)
	require.NotNil(t, rs)

	msgs, _, err := f.msgs.ListThread(ctx, tenantA, key, domain.Page{Page: 1, PerPage: 1000})
	require.NoError(t, err)
	require.Len(t, msgs, 100)

	var want int64
	for _, m := range msgs {
		if m.CreatedAt.After(rs.LastReadAt) && m.SenderID != parentA.UserID {
			want++
		}
	}
	got, err := f.threads.UnreadCount(ctx, parentA, key)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// 之後的 mark-read 清空
	require.NoError(t, f.threads.MarkRead(ctx, parentA, key))
	got, err = f.threads.UnreadCount(ctx, parentA, key)
	require.NoError(t, err)
	assert.Zero(t, got)
}
