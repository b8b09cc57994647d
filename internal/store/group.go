package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/splitbook/internal/model"
)

// GroupStore persists groups. The denormalized Group.Members list is backed
// by the group_members relation and always rewritten with the group row.
type GroupStore struct {
	db DBTX
}

func NewGroupStore(db DBTX) *GroupStore {
	return &GroupStore{db: db}
}

func scanGroup(scanner interface{ Scan(...any) error }) (*model.Group, error) {
	var g model.Group
	err := scanner.Scan(&g.ID, &g.Name, &g.IsDirect, &g.OwnerAccountID, &g.OwnerEmail, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

const groupCols = `g.id, g.name, g.is_direct, g.owner_account_id, g.owner_email, g.created_at, g.updated_at`

// Upsert inserts the group or updates it in place, then replaces its
// members with g.Members.
func (s *GroupStore) Upsert(ctx context.Context, g *model.Group) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO groups (id, name, is_direct, owner_account_id, owner_email) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   name = excluded.name,
		   is_direct = excluded.is_direct,
		   updated_at = CURRENT_TIMESTAMP`,
		g.ID, g.Name, g.IsDirect, g.OwnerAccountID, g.OwnerEmail,
	)
	if err != nil {
		return fmt.Errorf("upsert group: %w", err)
	}
	return s.SetMembers(ctx, g.ID, g.Members)
}

func (s *GroupStore) SetMembers(ctx context.Context, groupID string, members []model.GroupMember) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = ?`, groupID); err != nil {
		return fmt.Errorf("clear group members: %w", err)
	}
	for i, m := range members {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO group_members (group_id, member_id, name, position) VALUES (?, ?, ?, ?)`,
			groupID, m.ID, m.Name, i,
		); err != nil {
			return fmt.Errorf("insert group member %q: %w", m.ID, err)
		}
	}
	return nil
}

func (s *GroupStore) GetByID(ctx context.Context, id string) (*model.Group, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+groupCols+` FROM groups g WHERE g.id = ?`, id)
	g, err := scanGroup(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	if g.Members, err = s.listMembers(ctx, g.ID); err != nil {
		return nil, err
	}
	return g, nil
}

// ListOwnedBy returns every group owned by accountID.
func (s *GroupStore) ListOwnedBy(ctx context.Context, accountID string) ([]model.Group, error) {
	return s.query(ctx, "list owned groups",
		`SELECT `+groupCols+` FROM groups g WHERE g.owner_account_id = ? ORDER BY g.name, g.id`,
		accountID,
	)
}

// ListWithMembers returns every group containing at least one of memberIDs.
func (s *GroupStore) ListWithMembers(ctx context.Context, memberIDs []string) ([]model.Group, error) {
	if len(memberIDs) == 0 {
		return nil, nil
	}
	in, args := inClause(memberIDs)
	return s.query(ctx, "list groups by member",
		`SELECT `+groupCols+` FROM groups g
		 WHERE g.id IN (SELECT group_id FROM group_members WHERE member_id IN `+in+`)
		 ORDER BY g.name, g.id`,
		args...,
	)
}

// ListVisible returns the groups an account can see: the ones it owns plus
// the ones listing any of its member ids.
func (s *GroupStore) ListVisible(ctx context.Context, accountID string, memberIDs []string) ([]model.Group, error) {
	if len(memberIDs) == 0 {
		return s.ListOwnedBy(ctx, accountID)
	}
	in, args := inClause(memberIDs)
	return s.query(ctx, "list visible groups",
		`SELECT `+groupCols+` FROM groups g
		 WHERE g.owner_account_id = ?
		    OR g.id IN (SELECT group_id FROM group_members WHERE member_id IN `+in+`)
		 ORDER BY g.name, g.id`,
		append([]any{accountID}, args...)...,
	)
}

func (s *GroupStore) RemoveMember(ctx context.Context, groupID, memberID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM group_members WHERE group_id = ? AND member_id = ?`,
		groupID, memberID,
	)
	if err != nil {
		return fmt.Errorf("remove group member: %w", err)
	}
	return nil
}

// Delete removes the group. Its expenses, splits and visibility rows go
// with it through ON DELETE CASCADE.
func (s *GroupStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM groups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return nil
}

func (s *GroupStore) query(ctx context.Context, op, query string, args ...any) ([]model.Group, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var groups []model.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, *g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range groups {
		if groups[i].Members, err = s.listMembers(ctx, groups[i].ID); err != nil {
			return nil, err
		}
	}
	return groups, nil
}

func (s *GroupStore) listMembers(ctx context.Context, groupID string) ([]model.GroupMember, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT member_id, name FROM group_members WHERE group_id = ? ORDER BY position`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	defer rows.Close()

	members := []model.GroupMember{}
	for rows.Next() {
		var m model.GroupMember
		if err := rows.Scan(&m.ID, &m.Name); err != nil {
			return nil, fmt.Errorf("scan group member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
