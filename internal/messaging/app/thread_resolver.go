package app

import (
	"context"
	"errors"

	"daycare_messaging_service/internal/messaging/domain"
	"daycare_messaging_service/internal/messaging/repository"
	"daycare_messaging_service/pkg"
	errprocess "daycare_messaging_service/pkg/err"
)

// ThreadResolver gate authoring and visibility, compute viewer sets.
// Group membership is read from the directory on every call.
type ThreadResolver struct {
	dir  repository.Directory
	msgs repository.MessageRepository
}

// NewThreadResolver create ThreadResolver
func NewThreadResolver(dir repository.Directory, msgs repository.MessageRepository) *ThreadResolver {
	return &ThreadResolver{dir: dir, msgs: msgs}
}

// candidateThread thread the Aggregator considers for one user
type candidateThread struct {
	key   domain.ThreadKey
	group *domain.Group
	// structural threads are listed even without messages
	structural bool
}

// lookupErr 不存在一律視為沒有權限，避免探測
func lookupErr(err error, what string) error {
	if errors.Is(err, domain.ErrNotFound) {
		return errprocess.PermissionDenied(what + " not available")
	}
	return errprocess.Internal("lookup "+what, err)
}

// ResolveAuthoring validate req for p and return the thread it lands in
func (r *ThreadResolver) ResolveAuthoring(ctx context.Context, p domain.Principal, req domain.ComposeRequest) (domain.ThreadKey, error) {
	if err := domain.CheckComposeShape(p.Role, req); err != nil {
		return domain.ThreadKey{}, err
	}
	if !domain.CanAuthor(p.Role, req.MessageType) {
		return domain.ThreadKey{}, errprocess.PermissionDenied("role " + string(p.Role) + " cannot post " + string(req.MessageType) + " messages")
	}

	key := domain.AuthoringThread(p, req)
	switch key.Kind {
	case domain.MessageTypeGroup:
		if _, err := r.dir.GetGroup(ctx, p.TenantID, key.ID); err != nil {
			return domain.ThreadKey{}, lookupErr(err, "group")
		}
	case domain.MessageTypeIndividual:
		if p.Role.IsStaff() {
			u, err := r.dir.GetUser(ctx, p.TenantID, key.ID)
			if err != nil {
				return domain.ThreadKey{}, lookupErr(err, "recipient")
			}
			if !u.Role.IsParent() {
				return domain.ThreadKey{}, errprocess.PermissionDenied("recipient not available")
			}
		}
	}
	return key, nil
}

func (r *ThreadResolver) facts(ctx context.Context, p domain.Principal, key domain.ThreadKey) (domain.VisibilityFacts, error) {
	var facts domain.VisibilityFacts

	switch key.Kind {
	case domain.MessageTypeGroup:
		_, err := r.dir.GetGroup(ctx, p.TenantID, key.ID)
		if errors.Is(err, domain.ErrNotFound) {
			return facts, nil
		}
		if err != nil {
			return facts, errprocess.Internal("lookup group", err)
		}
		facts.GroupExists = true

		if p.Role.IsParent() {
			groups, err := r.dir.GroupIDsOfParent(ctx, p.TenantID, p.UserID)
			if err != nil {
				return facts, errprocess.Internal("lookup parent groups", err)
			}
			facts.HasChildInGroup = pkg.Contains(groups, key.ID)
		}
	case domain.MessageTypeIndividual:
		if p.Role.IsStaff() {
			has, err := r.msgs.HasMessages(ctx, p.TenantID, key)
			if err != nil {
				return facts, errprocess.Internal("lookup thread", err)
			}
			facts.ThreadHasMessages = has
		}
	}
	return facts, nil
}

// CheckVisible PermissionDenied unless p can currently see key
func (r *ThreadResolver) CheckVisible(ctx context.Context, p domain.Principal, key domain.ThreadKey) error {
	facts, err := r.facts(ctx, p, key)
	if err != nil {
		return err
	}
	if !domain.CanView(p, key, facts) {
		return errprocess.PermissionDenied("thread not available")
	}
	return nil
}

// Viewers user ids allowed to see key right now
func (r *ThreadResolver) Viewers(ctx context.Context, tenantID string, key domain.ThreadKey) ([]string, error) {
	staff, err := r.dir.StaffIDs(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var parents []string
	switch key.Kind {
	case domain.MessageTypeBroadcast:
		parents, err = r.dir.ParentIDs(ctx, tenantID)
	case domain.MessageTypeGroup:
		parents, err = r.dir.ParentIDsOfGroup(ctx, tenantID, key.ID)
	case domain.MessageTypeIndividual:
		parents = []string{key.ID}
	}
	if err != nil {
		return nil, err
	}

	return pkg.Unique(append(staff, parents...)), nil
}

// VisibleThreads candidate threads for p: broadcast, visible groups, individual threads
func (r *ThreadResolver) VisibleThreads(ctx context.Context, p domain.Principal) ([]candidateThread, error) {
	if !p.Role.Valid() {
		return nil, nil
	}

	out := []candidateThread{{key: domain.BroadcastThread, structural: true}}

	groups, err := r.dir.ListGroups(ctx, p.TenantID)
	if err != nil {
		return nil, errprocess.Internal("list groups", err)
	}
	var allowed []string
	if p.Role.IsParent() {
		if allowed, err = r.dir.GroupIDsOfParent(ctx, p.TenantID, p.UserID); err != nil {
			return nil, errprocess.Internal("lookup parent groups", err)
		}
	}
	for i := range groups {
		if p.Role.IsParent() && !pkg.Contains(allowed, groups[i].ID) {
			continue
		}
		out = append(out, candidateThread{key: domain.GroupThread(groups[i].ID), group: &groups[i], structural: true})
	}

	if p.Role.IsParent() {
		return append(out, candidateThread{key: domain.IndividualThread(p.UserID)}), nil
	}

	anchors, err := r.msgs.IndividualAnchors(ctx, p.TenantID)
	if err != nil {
		return nil, errprocess.Internal("list individual threads", err)
	}
	for _, parentID := range anchors {
		out = append(out, candidateThread{key: domain.IndividualThread(parentID)})
	}
	return out, nil
}
