package store

import (
	"context"
	"fmt"
	"sort"
)

// VisibilityStore maintains the user_expenses index.
type VisibilityStore struct {
	db DBTX
}

func NewVisibilityStore(db DBTX) *VisibilityStore {
	return &VisibilityStore{db: db}
}

// ListUsers returns the account ids that can see expenseID, sorted.
func (s *VisibilityStore) ListUsers(ctx context.Context, expenseID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM user_expenses WHERE expense_id = ? ORDER BY user_id`,
		expenseID,
	)
	if err != nil {
		return nil, fmt.Errorf("list expense users: %w", err)
	}
	users, err := scanStrings(rows)
	if err != nil {
		return nil, fmt.Errorf("scan expense user: %w", err)
	}
	return users, nil
}

func (s *VisibilityStore) Has(ctx context.Context, userID, expenseID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_expenses WHERE user_id = ? AND expense_id = ?`,
		userID, expenseID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check visibility: %w", err)
	}
	return n > 0, nil
}

func (s *VisibilityStore) Add(ctx context.Context, userID, expenseID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO user_expenses (user_id, expense_id) VALUES (?, ?)`,
		userID, expenseID,
	)
	if err != nil {
		return fmt.Errorf("add visibility: %w", err)
	}
	return nil
}

// Replace makes userIDs the exact set of accounts that can see expenseID
// and reports which rows were added and removed.
func (s *VisibilityStore) Replace(ctx context.Context, expenseID string, userIDs []string) (added, removed []string, err error) {
	current, err := s.ListUsers(ctx, expenseID)
	if err != nil {
		return nil, nil, err
	}
	want := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		want[id] = true
	}
	have := make(map[string]bool, len(current))
	for _, id := range current {
		have[id] = true
		if !want[id] {
			if _, err := s.db.ExecContext(ctx,
				`DELETE FROM user_expenses WHERE user_id = ? AND expense_id = ?`, id, expenseID,
			); err != nil {
				return nil, nil, fmt.Errorf("remove visibility: %w", err)
			}
			removed = append(removed, id)
		}
	}
	for id := range want {
		if !have[id] {
			if err := s.Add(ctx, id, expenseID); err != nil {
				return nil, nil, err
			}
			added = append(added, id)
		}
	}
	sort.Strings(added)
	return added, removed, nil
}

func (s *VisibilityStore) DeleteForUser(ctx context.Context, userID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM user_expenses WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete user visibility: %w", err)
	}
	return result.RowsAffected()
}
