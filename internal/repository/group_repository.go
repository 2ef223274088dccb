package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/thesisflow-api/internal/models"
)

// GroupRepository provides database access for thesis groups.
type GroupRepository struct {
	db *sqlx.DB
}

// NewGroupRepository constructs the repository.
func NewGroupRepository(db *sqlx.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// Create inserts a group and its membership rows.
func (r *GroupRepository) Create(ctx context.Context, group *models.Group) error {
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if group.CreatedAt.IsZero() {
		group.CreatedAt = now
	}
	group.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create group: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insert = `INSERT INTO thesis_groups (id, name, course, section, leader_id, adviser_id, created_at, updated_at)
	VALUES (:id, :name, :course, :section, :leader_id, :adviser_id, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insert, group); err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	if err := r.replaceMembers(ctx, tx, group.ID, group.LeaderID, group.MemberIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create group: %w", err)
	}
	return nil
}

// Update updates group metadata and replaces membership.
func (r *GroupRepository) Update(ctx context.Context, group *models.Group) error {
	group.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update group: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const update = `UPDATE thesis_groups SET name = :name, course = :course, section = :section,
	leader_id = :leader_id, adviser_id = :adviser_id, updated_at = :updated_at WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, update, group); err != nil {
		return fmt.Errorf("update group: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = $1`, group.ID); err != nil {
		return fmt.Errorf("clear group members: %w", err)
	}
	if err := r.replaceMembers(ctx, tx, group.ID, group.LeaderID, group.MemberIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update group: %w", err)
	}
	return nil
}

// GetByID returns a group with member ids loaded.
func (r *GroupRepository) GetByID(ctx context.Context, id string) (*models.Group, error) {
	const query = `SELECT id, name, course, section, leader_id, adviser_id, created_at, updated_at
	FROM thesis_groups WHERE id = $1`
	var group models.Group
	if err := r.db.GetContext(ctx, &group, query, id); err != nil {
		return nil, err
	}
	members, err := r.memberIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	group.MemberIDs = members
	return &group, nil
}

// List returns groups matching the filter with a total count.
func (r *GroupRepository) List(ctx context.Context, filter models.GroupFilter) ([]models.Group, int, error) {
	baseQuery := `FROM thesis_groups WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Course != "" {
		conditions = append(conditions, fmt.Sprintf("course = $%d", len(args)+1))
		args = append(args, filter.Course)
	}
	if filter.Section != "" {
		conditions = append(conditions, fmt.Sprintf("section = $%d", len(args)+1))
		args = append(args, filter.Section)
	}
	if filter.AdviserID != "" {
		conditions = append(conditions, fmt.Sprintf("adviser_id = $%d", len(args)+1))
		args = append(args, filter.AdviserID)
	}
	if filter.MemberID != "" {
		conditions = append(conditions, fmt.Sprintf("id IN (SELECT group_id FROM group_members WHERE user_id = $%d)", len(args)+1))
		args = append(args, filter.MemberID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT id, name, course, section, leader_id, adviser_id, created_at, updated_at %s ORDER BY created_at DESC LIMIT %d OFFSET %d", baseQuery, pageSize, offset)

	var groups []models.Group
	if err := r.db.SelectContext(ctx, &groups, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list groups: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count groups: %w", err)
	}

	return groups, total, nil
}

// IsMember reports whether the user belongs to the group.
func (r *GroupRepository) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, groupID, userID); err != nil {
		return false, fmt.Errorf("check group membership: %w", err)
	}
	return exists, nil
}

// MemberIDs returns the ids of all members of a group.
func (r *GroupRepository) MemberIDs(ctx context.Context, groupID string) ([]string, error) {
	return r.memberIDs(ctx, groupID)
}

// UsersByRole returns ids of active users holding the given role, used for
// reviewer fan-out.
func (r *GroupRepository) UsersByRole(ctx context.Context, role models.UserRole) ([]string, error) {
	const query = `SELECT id FROM users WHERE role = $1 AND active = TRUE`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, role); err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	return ids, nil
}

func (r *GroupRepository) memberIDs(ctx context.Context, groupID string) ([]string, error) {
	const query = `SELECT user_id FROM group_members WHERE group_id = $1 ORDER BY user_id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, groupID); err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	return ids, nil
}

func (r *GroupRepository) replaceMembers(ctx context.Context, tx *sqlx.Tx, groupID, leaderID string, memberIDs []string) error {
	seen := map[string]struct{}{}
	ids := append([]string{leaderID}, memberIDs...)
	const insert = `INSERT INTO group_members (group_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if _, err := tx.ExecContext(ctx, insert, groupID, id); err != nil {
			return fmt.Errorf("add group member: %w", err)
		}
	}
	return nil
}
