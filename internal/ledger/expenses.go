package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/dukerupert/splitbook/internal/auth"
	"github.com/dukerupert/splitbook/internal/guard"
	"github.com/dukerupert/splitbook/internal/model"
)

// CreateExpense adds an expense to a group the caller owns.
func (s *Service) CreateExpense(ctx context.Context, caller auth.Caller, in model.ExpenseInput) (*model.Expense, error) {
	if strings.TrimSpace(in.ID) == "" {
		in.ID = uuid.NewString()
	}
	var out *model.Expense
	err := s.run(ctx, "create_expense", func(t *tx) error {
		existing, err := t.q.Expenses.GetByID(ctx, in.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return invalid("expense", in.ID, "already exists")
		}
		g, err := t.ownedGroup(ctx, caller, strings.TrimSpace(in.GroupID))
		if err != nil {
			return err
		}
		if g == nil {
			return ErrNotFound
		}
		e, err := t.buildExpense(ctx, g, in)
		if err != nil {
			return err
		}
		out = e
		return t.saveExpense(ctx, g, e)
	})
	if err != nil {
		return nil, fmt.Errorf("create expense: %w", err)
	}
	return out, nil
}

func (s *Service) GetExpense(ctx context.Context, caller auth.Caller, id string) (*model.Expense, error) {
	e, err := s.store.Expenses.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, ErrNotFound
	}
	g, err := s.store.Groups.GetByID(ctx, e.GroupID)
	if err != nil {
		return nil, err
	}
	visible, err := s.store.Visibility.Has(ctx, caller.AccountID, e.ID)
	if err != nil {
		return nil, err
	}
	if err := guard.RequireExpenseAccess(guard.IsGroupOwner(caller, g), visible); err != nil {
		return nil, err
	}
	return e, nil
}

// ListExpenses returns the expenses in groups the caller owns plus the ones
// indexed as visible to the caller, oldest first.
func (s *Service) ListExpenses(ctx context.Context, caller auth.Caller) ([]model.Expense, error) {
	owned, err := s.store.Expenses.ListOwnedBy(ctx, caller.AccountID)
	if err != nil {
		return nil, err
	}
	visible, err := s.store.Expenses.ListForUser(ctx, caller.AccountID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(owned))
	out := make([]model.Expense, 0, len(owned)+len(visible))
	for _, e := range append(owned, visible...) {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// DeleteExpense removes an expense from a group the caller owns.
func (s *Service) DeleteExpense(ctx context.Context, caller auth.Caller, id string) error {
	err := s.run(ctx, "delete_expense", func(t *tx) error {
		e, g, isOwner, err := t.expenseFor(ctx, caller, id)
		if err != nil {
			return err
		}
		if !isOwner {
			return guard.ErrForbidden
		}
		return t.deleteExpense(ctx, g, e)
	})
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return nil
}
