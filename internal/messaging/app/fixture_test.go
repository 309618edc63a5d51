package app

import (
	"context"
	"sort"
	"testing"
	"time"

	"daycare_messaging_service/internal/messaging/domain"
	"daycare_messaging_service/internal/messaging/repository"
	"daycare_messaging_service/pkg/logger"

	"github.com/stretchr/testify/require"
)

const tenantA = "garderie-soleil"

var (
	adminA    = domain.Principal{UserID: "admin-1", TenantID: tenantA, Role: domain.RoleAdmin}
	educatorA = domain.Principal{UserID: "edu-1", TenantID: tenantA, Role: domain.RoleEducator}
	parentA   = domain.Principal{UserID: "parent-a", TenantID: tenantA, Role: domain.RoleParent}
	parentB   = domain.Principal{UserID: "parent-b", TenantID: tenantA, Role: domain.RoleParent}
	otherTen  = domain.Principal{UserID: "parent-x", TenantID: "garderie-lune", Role: domain.RoleParent}
)

// fixture 兩個群組、兩位家長、兩位 staff，另一個 tenant 有一位家長
type fixture struct {
	dir      *repository.MemoryDirectory
	msgs     *repository.MemoryMessageRepository
	reads    *repository.MemoryReadStateRepository
	resolver *ThreadResolver
	hub      *Hub
	send     *SendMessageUseCase
	threads  *ThreadUseCase
	convs    *ConversationUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return buildFixture()
}

func buildFixture() *fixture {
	logger.SetNewNop()

	joined := time.Now().Add(-24 * time.Hour).UTC()

	dir := repository.NewMemoryDirectory()
	dir.AddUser(domain.User{ID: adminA.UserID, TenantID: tenantA, Role: domain.RoleAdmin, FirstName: "Claire", LastName: "Roy", CreatedAt: joined})
	dir.AddUser(domain.User{ID: educatorA.UserID, TenantID: tenantA, Role: domain.RoleEducator, FirstName: "Marc", LastName: "Lefebvre", CreatedAt: joined})
	dir.AddUser(domain.User{ID: parentA.UserID, TenantID: tenantA, Role: domain.RoleParent, FirstName: "Julie", LastName: "Tremblay", Email: "julie@example.com", CreatedAt: joined})
	dir.AddUser(domain.User{ID: parentB.UserID, TenantID: tenantA, Role: domain.RoleParent, FirstName: "Karim", LastName: "Haddad", Email: "karim@example.com", CreatedAt: joined})
	dir.AddUser(domain.User{ID: otherTen.UserID, TenantID: otherTen.TenantID, Role: domain.RoleParent, FirstName: "Lina", LastName: "Nguyen", CreatedAt: joined})

	dir.AddGroup(domain.Group{ID: "G1", TenantID: tenantA, Name: "Poussins", Color: "#ffcc00"})
	dir.AddGroup(domain.Group{ID: "G2", TenantID: tenantA, Name: "Lutins", Color: "#3366ff"})

	dir.PlaceChild(tenantA, "child-a", "G1")
	dir.LinkParent(tenantA, "child-a", parentA.UserID)
	dir.PlaceChild(tenantA, "child-b", "G2")
	dir.LinkParent(tenantA, "child-b", parentB.UserID)

	msgs := repository.NewMemoryMessageRepository(nil)
	reads := repository.NewMemoryReadStateRepository()
	resolver := NewThreadResolver(dir, msgs)
	hub := NewHub(time.Second)

	return &fixture{
		dir:      dir,
		msgs:     msgs,
		reads:    reads,
		resolver: resolver,
		hub:      hub,
		send:     NewSendMessageUseCase(resolver, msgs, hub),
		threads:  NewThreadUseCase(resolver, msgs, reads, dir, 0, 0),
		convs:    NewConversationUseCase(resolver, msgs, reads, dir, InboxOptions{}),
	}
}

func (f *fixture) post(t *testing.T, p domain.Principal, req domain.ComposeRequest) *domain.Message {
	t.Helper()
	msg, err := f.send.Execute(context.Background(), p, req)
	require.NoError(t, err)
	return msg
}

// settle 等待背景通知完成
func (f *fixture) settle() {
	f.send.Wait()
	f.hub.Wait()
}

func broadcast(content string) domain.ComposeRequest {
	return domain.ComposeRequest{MessageType: domain.MessageTypeBroadcast, Content: content}
}

func toGroup(groupID, content string) domain.ComposeRequest {
	return domain.ComposeRequest{MessageType: domain.MessageTypeGroup, GroupID: groupID, Content: content}
}

func toParent(parentID, content string) domain.ComposeRequest {
	return domain.ComposeRequest{MessageType: domain.MessageTypeIndividual, RecipientID: parentID, Content: content}
}

func toStaff(content string) domain.ComposeRequest {
	return domain.ComposeRequest{MessageType: domain.MessageTypeIndividual, Content: content}
}

func findConversation(convs []domain.Conversation, key domain.ThreadKey) (domain.Conversation, bool) {
	for _, c := range convs {
		if c.Thread() == key {
			return c, true
		}
	}
	return domain.Conversation{}, false
}

func sameSet(want, got []string) bool {
	if len(want) != len(got) {
		return false
	}
	a := append([]string(nil), want...)
	b := append([]string(nil), got...)
	sort.Strings(a)
	sort.Strings(b)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func principalByID(id string) (domain.Principal, bool) {
	for _, p := range []domain.Principal{adminA, educatorA, parentA, parentB, otherTen} {
		if p.UserID == id {
			return p, true
		}
	}
	return domain.Principal{}, false
}
