package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/dukerupert/splitbook/internal/model"
)

// ExpenseStore persists expenses together with their splits, participant
// ids and participant emails. Derived fields are computed by the caller and
// written here verbatim.
type ExpenseStore struct {
	db DBTX
}

func NewExpenseStore(db DBTX) *ExpenseStore {
	return &ExpenseStore{db: db}
}

func scanExpense(scanner interface{ Scan(...any) error }) (*model.Expense, error) {
	var e model.Expense
	err := scanner.Scan(
		&e.ID, &e.GroupID, &e.Description, &e.Amount, &e.Currency,
		&e.PaidByMemberID, &e.IsSettled, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

const expenseCols = `e.id, e.group_id, e.description, e.amount, e.currency, e.paid_by_member_id, e.is_settled, e.created_at, e.updated_at`

// Save inserts or replaces the expense and all of its child rows.
func (s *ExpenseStore) Save(ctx context.Context, e *model.Expense) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO expenses (id, group_id, description, amount, currency, paid_by_member_id, is_settled)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   group_id = excluded.group_id,
		   description = excluded.description,
		   amount = excluded.amount,
		   currency = excluded.currency,
		   paid_by_member_id = excluded.paid_by_member_id,
		   is_settled = excluded.is_settled,
		   updated_at = CURRENT_TIMESTAMP`,
		e.ID, e.GroupID, e.Description, e.Amount.String(), e.Currency, e.PaidByMemberID, e.IsSettled,
	)
	if err != nil {
		return fmt.Errorf("upsert expense: %w", err)
	}

	for _, table := range []string{"expense_splits", "expense_participants", "expense_participant_emails"} {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE expense_id = ?`, e.ID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for i := range e.Splits {
		sp := &e.Splits[i]
		if sp.ID == "" {
			sp.ID = uuid.NewString()
		}
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO expense_splits (id, expense_id, member_id, amount, is_settled, position) VALUES (?, ?, ?, ?, ?, ?)`,
			sp.ID, e.ID, sp.MemberID, sp.Amount.String(), sp.IsSettled, i,
		); err != nil {
			return fmt.Errorf("insert split for %q: %w", sp.MemberID, err)
		}
	}
	for i, memberID := range e.ParticipantMemberIDs {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO expense_participants (expense_id, member_id, position) VALUES (?, ?, ?)`,
			e.ID, memberID, i,
		); err != nil {
			return fmt.Errorf("insert participant %q: %w", memberID, err)
		}
	}
	for _, email := range e.ParticipantEmails {
		if _, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO expense_participant_emails (expense_id, email) VALUES (?, ?)`,
			e.ID, email,
		); err != nil {
			return fmt.Errorf("insert participant email: %w", err)
		}
	}
	return nil
}

func (s *ExpenseStore) GetByID(ctx context.Context, id string) (*model.Expense, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+expenseCols+` FROM expenses e WHERE e.id = ?`, id)
	e, err := scanExpense(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get expense: %w", err)
	}
	if err := s.loadChildren(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *ExpenseStore) ListByGroup(ctx context.Context, groupID string) ([]model.Expense, error) {
	return s.query(ctx, "list expenses by group",
		`SELECT `+expenseCols+` FROM expenses e WHERE e.group_id = ? ORDER BY e.created_at, e.id`,
		groupID,
	)
}

// ListOwnedBy returns expenses in groups owned by accountID.
func (s *ExpenseStore) ListOwnedBy(ctx context.Context, accountID string) ([]model.Expense, error) {
	return s.query(ctx, "list owned expenses",
		`SELECT `+expenseCols+` FROM expenses e
		 JOIN groups g ON g.id = e.group_id
		 WHERE g.owner_account_id = ?
		 ORDER BY e.created_at, e.id`,
		accountID,
	)
}

// ListByParticipants returns expenses in which any of memberIDs takes part,
// optionally restricted to groups owned by ownerAccountID.
func (s *ExpenseStore) ListByParticipants(ctx context.Context, memberIDs []string, ownerAccountID string) ([]model.Expense, error) {
	if len(memberIDs) == 0 {
		return nil, nil
	}
	in, args := inClause(memberIDs)
	query := `SELECT ` + expenseCols + ` FROM expenses e
		 JOIN groups g ON g.id = e.group_id
		 WHERE e.id IN (SELECT expense_id FROM expense_participants WHERE member_id IN ` + in + `)`
	if ownerAccountID != "" {
		query += ` AND g.owner_account_id = ?`
		args = append(args, ownerAccountID)
	}
	return s.query(ctx, "list expenses by participant", query+` ORDER BY e.created_at, e.id`, args...)
}

// ListForUser returns the expenses indexed as visible to userID.
func (s *ExpenseStore) ListForUser(ctx context.Context, userID string) ([]model.Expense, error) {
	return s.query(ctx, "list expenses for user",
		`SELECT `+expenseCols+` FROM expenses e
		 JOIN user_expenses ue ON ue.expense_id = e.id
		 WHERE ue.user_id = ?
		 ORDER BY e.created_at, e.id`,
		userID,
	)
}

func (s *ExpenseStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return nil
}

func (s *ExpenseStore) CountByGroup(ctx context.Context, groupID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM expenses WHERE group_id = ?`, groupID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count expenses: %w", err)
	}
	return n, nil
}

func (s *ExpenseStore) query(ctx context.Context, op, query string, args ...any) ([]model.Expense, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var expenses []model.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, *e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range expenses {
		if err := s.loadChildren(ctx, &expenses[i]); err != nil {
			return nil, err
		}
	}
	return expenses, nil
}

func (s *ExpenseStore) loadChildren(ctx context.Context, e *model.Expense) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, member_id, amount, is_settled FROM expense_splits WHERE expense_id = ? ORDER BY position`,
		e.ID,
	)
	if err != nil {
		return fmt.Errorf("list splits: %w", err)
	}
	e.Splits = []model.Split{}
	for rows.Next() {
		var sp model.Split
		if err := rows.Scan(&sp.ID, &sp.MemberID, &sp.Amount, &sp.IsSettled); err != nil {
			rows.Close()
			return fmt.Errorf("scan split: %w", err)
		}
		e.Splits = append(e.Splits, sp)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT member_id FROM expense_participants WHERE expense_id = ? ORDER BY position`, e.ID)
	if err != nil {
		return fmt.Errorf("list participants: %w", err)
	}
	if e.ParticipantMemberIDs, err = scanStrings(rows); err != nil {
		return fmt.Errorf("scan participant: %w", err)
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT email FROM expense_participant_emails WHERE expense_id = ? ORDER BY email`, e.ID)
	if err != nil {
		return fmt.Errorf("list participant emails: %w", err)
	}
	if e.ParticipantEmails, err = scanStrings(rows); err != nil {
		return fmt.Errorf("scan participant email: %w", err)
	}
	if e.ParticipantMemberIDs == nil {
		e.ParticipantMemberIDs = []string{}
	}
	if e.ParticipantEmails == nil {
		e.ParticipantEmails = []string{}
	}
	return nil
}
