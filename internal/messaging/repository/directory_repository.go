package repository

import (
	"context"
	"errors"

	"daycare_messaging_service/internal/messaging/domain"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Directory read-only lookup of users, groups and child placement, scoped by tenant
type Directory interface {
	GetUser(ctx context.Context, tenantID, userID string) (*domain.User, error)
	GetUsers(ctx context.Context, tenantID string, ids []string) (map[string]domain.User, error)
	StaffIDs(ctx context.Context, tenantID string) ([]string, error)
	ParentIDs(ctx context.Context, tenantID string) ([]string, error)
	GetGroup(ctx context.Context, tenantID, groupID string) (*domain.Group, error)
	ListGroups(ctx context.Context, tenantID string) ([]domain.Group, error)
	// GroupIDsOfParent groups currently holding at least one of the parent's children
	GroupIDsOfParent(ctx context.Context, tenantID, parentID string) ([]string, error)
	// ParentIDsOfGroup parents of the children currently in the group
	ParentIDsOfGroup(ctx context.Context, tenantID, groupID string) ([]string, error)
}

type pgDirectory struct {
	db *pgxpool.Pool
}

// NewPGDirectory create a Directory backed by the daycare tables
func NewPGDirectory(db *pgxpool.Pool) Directory {
	return &pgDirectory{db: db}
}

const userColumns = "id, tenant_id, role, first_name, last_name, COALESCE(email, ''), created_at"

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	var role string
	err := row.Scan(&u.ID, &u.TenantID, &role, &u.FirstName, &u.LastName, &u.Email, &u.CreatedAt)
	u.Role = domain.Role(role)
	return u, err
}

func (r *pgDirectory) GetUser(ctx context.Context, tenantID, userID string) (*domain.User, error) {
	row := r.db.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE tenant_id = $1 AND id = $2 AND is_active",
		tenantID, userID)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *pgDirectory) GetUsers(ctx context.Context, tenantID string, ids []string) (map[string]domain.User, error) {
	out := make(map[string]domain.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.db.Query(ctx,
		"SELECT "+userColumns+" FROM users WHERE tenant_id = $1 AND id = ANY($2)",
		tenantID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out[u.ID] = u
	}
	return out, rows.Err()
}

func (r *pgDirectory) collectIDs(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *pgDirectory) StaffIDs(ctx context.Context, tenantID string) ([]string, error) {
	return r.collectIDs(ctx,
		"SELECT id FROM users WHERE tenant_id = $1 AND is_active AND role <> $2 ORDER BY id",
		tenantID, string(domain.RoleParent))
}

func (r *pgDirectory) ParentIDs(ctx context.Context, tenantID string) ([]string, error) {
	return r.collectIDs(ctx,
		"SELECT id FROM users WHERE tenant_id = $1 AND is_active AND role = $2 ORDER BY id",
		tenantID, string(domain.RoleParent))
}

func (r *pgDirectory) GetGroup(ctx context.Context, tenantID, groupID string) (*domain.Group, error) {
	var g domain.Group
	err := r.db.QueryRow(ctx,
		"SELECT id, tenant_id, name, COALESCE(color, '') FROM groups WHERE tenant_id = $1 AND id = $2",
		tenantID, groupID).Scan(&g.ID, &g.TenantID, &g.Name, &g.Color)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &g, nil
}

func (r *pgDirectory) ListGroups(ctx context.Context, tenantID string) ([]domain.Group, error) {
	rows, err := r.db.Query(ctx,
		"SELECT id, tenant_id, name, COALESCE(color, '') FROM groups WHERE tenant_id = $1 ORDER BY name, id",
		tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []domain.Group
	for rows.Next() {
		var g domain.Group
		if err := rows.Scan(&g.ID, &g.TenantID, &g.Name, &g.Color); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (r *pgDirectory) GroupIDsOfParent(ctx context.Context, tenantID, parentID string) ([]string, error) {
	return r.collectIDs(ctx, `
		SELECT DISTINCT c.group_id
		FROM children c
		JOIN child_parents cp ON cp.child_id = c.id AND cp.tenant_id = c.tenant_id
		WHERE c.tenant_id = $1 AND cp.parent_id = $2 AND c.is_active AND c.group_id IS NOT NULL
		ORDER BY c.group_id`,
		tenantID, parentID)
}

func (r *pgDirectory) ParentIDsOfGroup(ctx context.Context, tenantID, groupID string) ([]string, error) {
	return r.collectIDs(ctx, `
		SELECT DISTINCT cp.parent_id
		FROM children c
		JOIN child_parents cp ON cp.child_id = c.id AND cp.tenant_id = c.tenant_id
		WHERE c.tenant_id = $1 AND c.group_id = $2 AND c.is_active
		ORDER BY cp.parent_id`,
		tenantID, groupID)
}
