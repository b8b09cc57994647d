package ledger

import (
	"context"
	"net/mail"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/splitbook/internal/auth"
	"github.com/dukerupert/splitbook/internal/guard"
	"github.com/dukerupert/splitbook/internal/model"
)

// buildGroup validates in and resolves its member ids in the caller's
// scope. The returned group is owned by the caller.
func (t *tx) buildGroup(ctx context.Context, caller auth.Caller, in model.GroupInput) (*model.Group, error) {
	id := strings.TrimSpace(in.ID)
	if id == "" {
		return nil, invalid("group", "", "id is required")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("group", id, "name is required")
	}

	members := make([]model.GroupMember, 0, len(in.Members))
	seen := make(map[string]bool, len(in.Members))
	hasCaller := false
	for _, m := range in.Members {
		resolved, err := t.resolver.Resolve(ctx, caller.Email, m.ID)
		if err != nil {
			return nil, err
		}
		if resolved == "" {
			return nil, invalid("group", id, "member id is required")
		}
		if seen[resolved] {
			continue
		}
		seen[resolved] = true
		if caller.Is(resolved) {
			hasCaller = true
		}
		memberName := strings.TrimSpace(m.Name)
		if memberName == "" {
			memberName = resolved
		}
		members = append(members, model.GroupMember{ID: resolved, Name: memberName})
	}
	if len(members) == 0 {
		return nil, invalid("group", id, "at least one member is required")
	}
	if in.IsDirect && (len(members) != 2 || !hasCaller) {
		return nil, invalid("group", id, "a direct group has exactly two members, one of them you")
	}

	return &model.Group{
		ID:             id,
		Name:           name,
		IsDirect:       in.IsDirect,
		OwnerAccountID: caller.AccountID,
		OwnerEmail:     caller.Email,
		Members:        members,
	}, nil
}

// ownedGroup loads group id for a structural change. A missing group yields
// (nil, nil); a group owned by someone else yields guard.ErrForbidden when
// the caller is a member and ErrNotFound otherwise.
func (t *tx) ownedGroup(ctx context.Context, caller auth.Caller, id string) (*model.Group, error) {
	g, err := t.q.Groups.GetByID(ctx, id)
	if err != nil || g == nil {
		return nil, err
	}
	if err := guard.RequireGroupOwner(caller, g); err != nil {
		return nil, err
	}
	return g, nil
}

// buildExpense validates in and resolves every member id in the scope of
// g's owner. Splits whose ids collapse onto one canonical id are merged.
// Without splits, the participant ids share the amount equally.
func (t *tx) buildExpense(ctx context.Context, g *model.Group, in model.ExpenseInput) (*model.Expense, error) {
	scope := g.OwnerEmail
	id := strings.TrimSpace(in.ID)
	if id == "" {
		return nil, invalid("expense", "", "id is required")
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return nil, invalid("expense", id, "description is required")
	}
	if in.Amount.IsNegative() {
		return nil, invalid("expense", id, "amount must not be negative")
	}
	payer, err := t.resolver.Resolve(ctx, scope, in.PaidByMemberID)
	if err != nil {
		return nil, err
	}
	if payer == "" {
		return nil, invalid("expense", id, "paid_by_member_id is required")
	}

	var splits []model.Split
	index := make(map[string]int)
	for _, sp := range in.Splits {
		memberID, err := t.resolver.Resolve(ctx, scope, sp.MemberID)
		if err != nil {
			return nil, err
		}
		if memberID == "" {
			return nil, invalid("expense", id, "split member_id is required")
		}
		if sp.Amount.IsNegative() {
			return nil, invalid("expense", id, "split amount must not be negative")
		}
		if i, ok := index[memberID]; ok {
			splits[i].Amount = splits[i].Amount.Add(sp.Amount)
			splits[i].IsSettled = splits[i].IsSettled && sp.IsSettled
			continue
		}
		index[memberID] = len(splits)
		splits = append(splits, model.Split{
			ID:        strings.TrimSpace(sp.ID),
			MemberID:  memberID,
			Amount:    sp.Amount,
			IsSettled: sp.IsSettled,
		})
	}
	if len(splits) == 0 {
		ids := append(append([]string{}, in.ParticipantMemberIDs...), in.InvolvedMemberIDs...)
		resolved, err := t.resolver.ResolveAll(ctx, scope, ids)
		if err != nil {
			return nil, err
		}
		splits = equalSplits(in.Amount, resolved)
	}

	e := &model.Expense{
		ID:             id,
		GroupID:        g.ID,
		Description:    description,
		Amount:         in.Amount,
		Currency:       strings.ToUpper(strings.TrimSpace(in.Currency)),
		PaidByMemberID: payer,
		Splits:         splits,
	}
	syncParticipants(e)
	if len(e.ParticipantMemberIDs) < 2 {
		return nil, invalid("expense", id, "needs the payer and at least one other participant")
	}
	return e, nil
}

// equalSplits divides amount between ids to the cent. The first split
// absorbs the rounding remainder.
func equalSplits(amount decimal.Decimal, ids []string) []model.Split {
	if len(ids) == 0 {
		return nil
	}
	share := amount.DivRound(decimal.NewFromInt(int64(len(ids))), 2)
	first := amount.Sub(share.Mul(decimal.NewFromInt(int64(len(ids) - 1))))
	splits := make([]model.Split, len(ids))
	for i, id := range ids {
		splits[i] = model.Split{MemberID: id, Amount: share}
	}
	splits[0].Amount = first
	return splits
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == strings.TrimSpace(email)
}
