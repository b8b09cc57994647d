package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dukerupert/splitbook/internal/model"
)

type FriendStore struct {
	db DBTX
}

func NewFriendStore(db DBTX) *FriendStore {
	return &FriendStore{db: db}
}

func scanFriend(scanner interface{ Scan(...any) error }) (*model.Friend, error) {
	var f model.Friend
	var linkedID, linkedEmail sql.NullString
	err := scanner.Scan(
		&f.ID, &f.AccountEmail, &f.MemberID, &f.Name, &f.Email,
		&f.HasLinkedAccount, &linkedID, &linkedEmail, &f.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if linkedID.Valid {
		f.LinkedAccountID = &linkedID.String
	}
	if linkedEmail.Valid {
		f.LinkedAccountEmail = &linkedEmail.String
	}
	return &f, nil
}

const friendCols = `id, account_email, member_id, name, email, has_linked_account, linked_account_id, linked_account_email, created_at`

func (s *FriendStore) Create(ctx context.Context, f *model.Friend) (*model.Friend, error) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO account_friends (id, account_email, member_id, name, email, has_linked_account, linked_account_id, linked_account_email)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.AccountEmail, f.MemberID, f.Name, f.Email, f.HasLinkedAccount, f.LinkedAccountID, f.LinkedAccountEmail,
	)
	if err != nil {
		return nil, fmt.Errorf("insert friend: %w", err)
	}
	return s.Get(ctx, f.AccountEmail, f.MemberID)
}

// Get returns the friend with memberID in accountEmail's list, or nil.
func (s *FriendStore) Get(ctx context.Context, accountEmail, memberID string) (*model.Friend, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+friendCols+` FROM account_friends WHERE account_email = ? AND member_id = ?`,
		accountEmail, memberID,
	)
	f, err := scanFriend(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get friend: %w", err)
	}
	return f, nil
}

func (s *FriendStore) List(ctx context.Context, accountEmail string) ([]model.Friend, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+friendCols+` FROM account_friends WHERE account_email = ? ORDER BY name, member_id`,
		accountEmail,
	)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	return collectFriends(rows)
}

// ListLinkedTo returns friend rows in any account's list that are linked to
// accountID.
func (s *FriendStore) ListLinkedTo(ctx context.Context, accountID string) ([]model.Friend, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+friendCols+` FROM account_friends WHERE linked_account_id = ?`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("list friends linked to account: %w", err)
	}
	return collectFriends(rows)
}

// LinkedAccountIDs maps member ids in accountEmail's friend list to the
// account each one is linked to. Unlinked friends are omitted.
func (s *FriendStore) LinkedAccountIDs(ctx context.Context, accountEmail string, memberIDs []string) (map[string]string, error) {
	out := make(map[string]string)
	if len(memberIDs) == 0 {
		return out, nil
	}
	in, args := inClause(memberIDs)
	rows, err := s.db.QueryContext(ctx,
		`SELECT member_id, linked_account_id FROM account_friends
		 WHERE account_email = ? AND has_linked_account = 1 AND linked_account_id IS NOT NULL
		   AND member_id IN `+in,
		append([]any{accountEmail}, args...)...,
	)
	if err != nil {
		return nil, fmt.Errorf("list linked friends: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var memberID, accountID string
		if err := rows.Scan(&memberID, &accountID); err != nil {
			return nil, fmt.Errorf("scan linked friend: %w", err)
		}
		out[memberID] = accountID
	}
	return out, rows.Err()
}

func (s *FriendStore) Link(ctx context.Context, id, accountID, accountEmail string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE account_friends SET has_linked_account = 1, linked_account_id = ?, linked_account_email = ? WHERE id = ?`,
		accountID, accountEmail, id,
	)
	if err != nil {
		return fmt.Errorf("link friend: %w", err)
	}
	return nil
}

func (s *FriendStore) Unlink(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE account_friends SET has_linked_account = 0, linked_account_id = NULL, linked_account_email = NULL WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("unlink friend: %w", err)
	}
	return nil
}

func (s *FriendStore) Delete(ctx context.Context, accountEmail, memberID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM account_friends WHERE account_email = ? AND member_id = ?`,
		accountEmail, memberID,
	)
	if err != nil {
		return fmt.Errorf("delete friend: %w", err)
	}
	return nil
}

func (s *FriendStore) DeleteAll(ctx context.Context, accountEmail string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM account_friends WHERE account_email = ?`, accountEmail)
	if err != nil {
		return 0, fmt.Errorf("delete friends: %w", err)
	}
	return result.RowsAffected()
}

func collectFriends(rows *sql.Rows) ([]model.Friend, error) {
	defer rows.Close()
	var friends []model.Friend
	for rows.Next() {
		f, err := scanFriend(rows)
		if err != nil {
			return nil, fmt.Errorf("scan friend: %w", err)
		}
		friends = append(friends, *f)
	}
	return friends, rows.Err()
}

// ListUnlinked returns unlinked friend rows in any account's list whose
// member id is one of memberIDs or whose email is email.
func (s *FriendStore) ListUnlinked(ctx context.Context, memberIDs []string, email string) ([]model.Friend, error) {
	var conds []string
	var args []any
	if email != "" {
		conds = append(conds, "email = ?")
		args = append(args, email)
	}
	if len(memberIDs) > 0 {
		in, ids := inClause(memberIDs)
		conds = append(conds, "member_id IN "+in)
		args = append(args, ids...)
	}
	if len(conds) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+friendCols+` FROM account_friends
		 WHERE has_linked_account = 0 AND (`+strings.Join(conds, " OR ")+`)
		 ORDER BY account_email, member_id`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list unlinked friends: %w", err)
	}
	return collectFriends(rows)
}
