package repository

import (
	"context"
	"testing"
	"time"

	"daycare_messaging_service/internal/messaging/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryReadStateSet(t *testing.T) {
	repo := NewMemoryReadStateRepository()
	ctx := context.Background()
	key := domain.GroupThread("G1")
	t0 := time.Date(2025, 3, 7, 9, 0, 0, 0, time.UTC)

	rs, err := repo.Get(ctx, "t1", "p1", key)
	require.NoError(t, err)
	assert.Nil(t, rs)

	require.NoError(t, repo.Set(ctx, "t1", "p1", key, t0.Add(time.Minute)))
	rs, err = repo.Get(ctx, "t1", "p1", key)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Minute), rs.LastReadAt)

	// Set 無條件覆寫
	require.NoError(t, repo.Set(ctx, "t1", "p1", key, t0))
	rs, err = repo.Get(ctx, "t1", "p1", key)
	require.NoError(t, err)
	assert.Equal(t, t0, rs.LastReadAt)

	require.NoError(t, repo.Set(ctx, "t1", "p1", domain.BroadcastThread, t0))
	require.NoError(t, repo.Set(ctx, "t2", "p1", domain.BroadcastThread, t0))
	marks, err := repo.ListForUser(ctx, "t1", "p1")
	require.NoError(t, err)
	assert.Equal(t, map[string]time.Time{"group:G1": t0, "broadcast": t0}, marks)
}

func TestMemoryDirectoryMembershipIsLive(t *testing.T) {
	dir := NewMemoryDirectory()
	ctx := context.Background()

	dir.AddUser(domain.User{ID: "s1", TenantID: "t1", Role: domain.RoleEducator})
	dir.AddUser(domain.User{ID: "a1", TenantID: "t1", Role: domain.RoleAdmin})
	dir.AddUser(domain.User{ID: "p1", TenantID: "t1", Role: domain.RoleParent})
	dir.AddUser(domain.User{ID: "p2", TenantID: "t2", Role: domain.RoleParent})
	dir.AddGroup(domain.Group{ID: "G1", TenantID: "t1", Name: "Poussins", Color: "#ffcc00"})
	dir.AddGroup(domain.Group{ID: "G2", TenantID: "t1", Name: "Abeilles"})
	dir.LinkParent("t1", "c1", "p1")

	groups, err := dir.GroupIDsOfParent(ctx, "t1", "p1")
	require.NoError(t, err)
	assert.Empty(t, groups)

	dir.PlaceChild("t1", "c1", "G1")
	groups, err = dir.GroupIDsOfParent(ctx, "t1", "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"G1"}, groups)

	parents, err := dir.ParentIDsOfGroup(ctx, "t1", "G1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, parents)

	dir.PlaceChild("t1", "c1", "G2")
	parents, err = dir.ParentIDsOfGroup(ctx, "t1", "G1")
	require.NoError(t, err)
	assert.Empty(t, parents)

	staff, err := dir.StaffIDs(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "s1"}, staff)

	all, err := dir.ListGroups(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Abeilles", all[0].Name)

	_, err = dir.GetGroup(ctx, "t2", "G1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = dir.GetUser(ctx, "t1", "p2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
