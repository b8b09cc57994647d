package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/splitbook/internal/auth"
	"github.com/dukerupert/splitbook/internal/guard"
	"github.com/dukerupert/splitbook/internal/model"
)

// ExpensePatch is a partial update. Nil fields are left as they are.
// Settled toggles splits by member id.
type ExpensePatch struct {
	Description    *string          `json:"description,omitempty"`
	Amount         *decimal.Decimal `json:"amount,omitempty"`
	Currency       *string          `json:"currency,omitempty"`
	PaidByMemberID *string          `json:"paid_by_member_id,omitempty"`
	Splits         []model.Split    `json:"splits,omitempty"`
	Settled        map[string]bool  `json:"settled,omitempty"`
}

// SettleSplit sets the settled state of memberID's split. The group owner
// may settle any split; a participant only the splits linked to them.
// is_settled is recomputed from the splits.
func (s *Service) SettleSplit(ctx context.Context, caller auth.Caller, expenseID, memberID string, settled bool) (*model.Expense, error) {
	var out *model.Expense
	err := s.run(ctx, "settle_split", func(t *tx) error {
		e, g, isOwner, err := t.expenseFor(ctx, caller, expenseID)
		if err != nil {
			return err
		}
		id, err := t.resolver.Resolve(ctx, g.OwnerEmail, memberID)
		if err != nil {
			return err
		}
		split := e.SplitFor(id)
		if split == nil {
			return ErrNotFound
		}
		own, err := t.idsLinkedTo(ctx, g.OwnerEmail, caller.AccountID, e.ParticipantMemberIDs)
		if err != nil {
			return err
		}
		if err := guard.AuthorizeExpenseEdit(isOwner, own, guard.ExpenseEdit{Settle: []string{id}}); err != nil {
			return err
		}
		out = e
		if split.IsSettled == settled {
			return nil
		}
		split.IsSettled = settled
		return t.saveExpense(ctx, g, e)
	})
	if err != nil {
		return nil, fmt.Errorf("settle split: %w", err)
	}
	s.logger.InfoContext(ctx, "split settled",
		"expense_id", out.ID,
		"account_id", caller.AccountID,
		"settled", settled,
		"expense_settled", out.IsSettled,
	)
	return out, nil
}

// UpdateExpense applies patch as one edit. Only the group owner may change
// description, amount, currency, payer or splits; participants may toggle
// their own splits. A rejected edit changes nothing.
func (s *Service) UpdateExpense(ctx context.Context, caller auth.Caller, expenseID string, patch ExpensePatch) (*model.Expense, error) {
	var out *model.Expense
	err := s.run(ctx, "update_expense", func(t *tx) error {
		e, g, isOwner, err := t.expenseFor(ctx, caller, expenseID)
		if err != nil {
			return err
		}

		in := model.ExpenseInput{
			ID:             e.ID,
			GroupID:        g.ID,
			Description:    e.Description,
			Amount:         e.Amount,
			Currency:       e.Currency,
			PaidByMemberID: e.PaidByMemberID,
			Splits:         append([]model.Split(nil), e.Splits...),
		}
		if patch.Description != nil {
			in.Description = *patch.Description
		}
		if patch.Amount != nil {
			in.Amount = *patch.Amount
		}
		if patch.Currency != nil {
			in.Currency = *patch.Currency
		}
		if patch.PaidByMemberID != nil {
			in.PaidByMemberID = *patch.PaidByMemberID
		}
		if patch.Splits != nil {
			in.Splits = patch.Splits
		}
		next, err := t.buildExpense(ctx, g, in)
		if err != nil {
			return err
		}
		for memberID, settled := range patch.Settled {
			id, err := t.resolver.Resolve(ctx, g.OwnerEmail, memberID)
			if err != nil {
				return err
			}
			split := next.SplitFor(id)
			if split == nil {
				return invalid("expense", e.ID, "no split for member %q", memberID)
			}
			split.IsSettled = settled
		}

		edit := diffExpense(e, next)
		own, err := t.idsLinkedTo(ctx, g.OwnerEmail, caller.AccountID, e.ParticipantMemberIDs)
		if err != nil {
			return err
		}
		if err := guard.AuthorizeExpenseEdit(isOwner, own, edit); err != nil {
			return err
		}
		if !edit.Structural && len(edit.Settle) == 0 {
			out = e
			return nil
		}
		if !edit.Structural {
			// keep stored split ids when only settled flags moved
			for _, id := range edit.Settle {
				e.SplitFor(id).IsSettled = next.SplitFor(id).IsSettled
			}
			next = e
		}
		out = next
		return t.saveExpense(ctx, g, next)
	})
	if err != nil {
		return nil, fmt.Errorf("update expense: %w", err)
	}
	return out, nil
}

// diffExpense describes how next differs from cur.
func diffExpense(cur, next *model.Expense) guard.ExpenseEdit {
	var edit guard.ExpenseEdit
	if cur.Description != next.Description ||
		!cur.Amount.Equal(next.Amount) ||
		!strings.EqualFold(cur.Currency, next.Currency) ||
		cur.PaidByMemberID != next.PaidByMemberID ||
		len(cur.Splits) != len(next.Splits) {
		edit.Structural = true
	}
	for _, sp := range next.Splits {
		old := cur.SplitFor(sp.MemberID)
		if old == nil || !old.Amount.Equal(sp.Amount) {
			edit.Structural = true
			continue
		}
		if old.IsSettled != sp.IsSettled {
			edit.Settle = append(edit.Settle, sp.MemberID)
		}
	}
	return edit
}

// expenseFor loads an expense with its group and reports whether the caller
// owns it. Callers that can neither own nor see it get ErrNotFound.
func (t *tx) expenseFor(ctx context.Context, caller auth.Caller, id string) (*model.Expense, *model.Group, bool, error) {
	e, err := t.q.Expenses.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, nil, false, err
	}
	if e == nil {
		return nil, nil, false, ErrNotFound
	}
	g, err := t.q.Groups.GetByID(ctx, e.GroupID)
	if err != nil {
		return nil, nil, false, err
	}
	if g == nil {
		return nil, nil, false, ErrNotFound
	}
	isOwner := guard.IsGroupOwner(caller, g)
	visible, err := t.q.Visibility.Has(ctx, caller.AccountID, e.ID)
	if err != nil {
		return nil, nil, false, err
	}
	if err := guard.RequireExpenseAccess(isOwner, visible); err != nil {
		return nil, nil, false, err
	}
	return e, g, isOwner, nil
}
