package ledger

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/splitbook/internal/model"
)

// linkedAccounts maps participant ids of an expense owned by ownerEmail to
// the registered account each one is linked to. An id is linked to X when it
// is X's member id or legacy alias, or when the owner's friend row for that
// id is linked to X.
func (t *tx) linkedAccounts(ctx context.Context, ownerEmail string, memberIDs []string) (map[string]*model.Account, error) {
	out, err := t.q.Accounts.ListByMemberIDs(ctx, memberIDs)
	if err != nil {
		return nil, err
	}
	var rest []string
	for _, id := range memberIDs {
		if _, ok := out[id]; !ok {
			rest = append(rest, id)
		}
	}
	links, err := t.q.Friends.LinkedAccountIDs(ctx, ownerEmail, rest)
	if err != nil {
		return nil, err
	}
	for memberID, accountID := range links {
		a, err := t.q.Accounts.GetByID(ctx, accountID)
		if err != nil {
			return nil, err
		}
		if a != nil {
			out[memberID] = a
		}
	}
	return out, nil
}

// idsLinkedTo returns the subset of memberIDs that are linked to accountID.
func (t *tx) idsLinkedTo(ctx context.Context, ownerEmail, accountID string, memberIDs []string) ([]string, error) {
	linked, err := t.linkedAccounts(ctx, ownerEmail, memberIDs)
	if err != nil {
		return nil, err
	}
	var own []string
	for _, id := range memberIDs {
		if a := linked[id]; a != nil && a.ID == accountID {
			own = append(own, id)
		}
	}
	return own, nil
}

// syncParticipants makes the participant list the ordered split member ids,
// giving the payer a zero, settled split when they have none.
func syncParticipants(e *model.Expense) {
	if e.PaidByMemberID != "" && e.SplitFor(e.PaidByMemberID) == nil {
		e.Splits = append(e.Splits, model.Split{MemberID: e.PaidByMemberID, Amount: decimal.Zero, IsSettled: true})
	}
	e.ParticipantMemberIDs = make([]string, 0, len(e.Splits))
	for _, sp := range e.Splits {
		e.ParticipantMemberIDs = append(e.ParticipantMemberIDs, sp.MemberID)
	}
}

// saveExpense recomputes every derived field of e, writes it and makes the
// visibility index match its participants.
func (t *tx) saveExpense(ctx context.Context, g *model.Group, e *model.Expense) error {
	e.GroupID = g.ID
	syncParticipants(e)
	e.IsSettled = e.AllSettled()

	linked, err := t.linkedAccounts(ctx, g.OwnerEmail, e.ParticipantMemberIDs)
	if err != nil {
		return err
	}
	emails := make(map[string]bool)
	users := make(map[string]bool)
	for _, id := range e.ParticipantMemberIDs {
		if a := linked[id]; a != nil {
			emails[a.Email] = true
			users[a.ID] = true
		}
	}
	e.ParticipantEmails = sortedKeys(emails)

	if err := t.q.Expenses.Save(ctx, e); err != nil {
		return err
	}
	userIDs := sortedKeys(users)
	_, removed, err := t.q.Visibility.Replace(ctx, e.ID, userIDs)
	if err != nil {
		return err
	}
	t.changes.add("expense", "updated", e.ID, append(userIDs, g.OwnerAccountID)...)
	t.changes.add("expense", "deleted", e.ID, removed...)
	return nil
}

func (t *tx) deleteExpense(ctx context.Context, g *model.Group, e *model.Expense) error {
	users, err := t.q.Visibility.ListUsers(ctx, e.ID)
	if err != nil {
		return err
	}
	if err := t.q.Expenses.Delete(ctx, e.ID); err != nil {
		return err
	}
	t.changes.add("expense", "deleted", e.ID, append(users, g.OwnerAccountID)...)
	return nil
}

// deleteGroup removes g with its expenses and their visibility rows and
// returns how many expenses went with it.
func (t *tx) deleteGroup(ctx context.Context, g *model.Group) (int, error) {
	expenses, err := t.q.Expenses.ListByGroup(ctx, g.ID)
	if err != nil {
		return 0, err
	}
	for _, e := range expenses {
		users, err := t.q.Visibility.ListUsers(ctx, e.ID)
		if err != nil {
			return 0, err
		}
		t.changes.add("expense", "deleted", e.ID, users...)
	}
	members, err := t.linkedAccounts(ctx, g.OwnerEmail, g.MemberIDs())
	if err != nil {
		return 0, err
	}
	for _, a := range members {
		t.changes.add("group", "deleted", g.ID, a.ID)
	}
	t.changes.add("group", "deleted", g.ID, g.OwnerAccountID)

	if err := t.q.Groups.Delete(ctx, g.ID); err != nil {
		return 0, err
	}
	return len(expenses), nil
}

// saveGroup writes g and notifies the owner and every linked member.
func (t *tx) saveGroup(ctx context.Context, g *model.Group) error {
	if err := t.q.Groups.Upsert(ctx, g); err != nil {
		return err
	}
	members, err := t.linkedAccounts(ctx, g.OwnerEmail, g.MemberIDs())
	if err != nil {
		return err
	}
	for _, a := range members {
		t.changes.add("group", "updated", g.ID, a.ID)
	}
	t.changes.add("group", "updated", g.ID, g.OwnerAccountID)
	return nil
}

// pruneSplits removes the splits of ids from e. drop is set when the
// expense can no longer stand: its payer was removed or fewer than two
// participants remain.
func pruneSplits(e *model.Expense, ids map[string]bool) (changed, drop bool) {
	kept := make([]model.Split, 0, len(e.Splits))
	for _, sp := range e.Splits {
		if ids[sp.MemberID] {
			changed = true
			continue
		}
		kept = append(kept, sp)
	}
	if ids[e.PaidByMemberID] {
		return true, true
	}
	e.Splits = kept
	return changed, len(kept) < 2
}

// pruneExpense applies pruneSplits and persists the outcome.
func (t *tx) pruneExpense(ctx context.Context, e *model.Expense, ids map[string]bool) (changed, deleted bool, err error) {
	changed, drop := pruneSplits(e, ids)
	if !changed {
		return false, false, nil
	}
	g, err := t.q.Groups.GetByID(ctx, e.GroupID)
	if err != nil {
		return false, false, err
	}
	if g == nil {
		return false, false, fmt.Errorf("expense %q: group %q missing", e.ID, e.GroupID)
	}
	if drop {
		return true, true, t.deleteExpense(ctx, g, e)
	}
	return true, false, t.saveExpense(ctx, g, e)
}

// pruneMembers removes ids from g's member list and reports whether any
// member was removed.
func pruneMembers(g *model.Group, ids map[string]bool) bool {
	kept := make([]model.GroupMember, 0, len(g.Members))
	for _, m := range g.Members {
		if !ids[m.ID] {
			kept = append(kept, m)
		}
	}
	changed := len(kept) != len(g.Members)
	g.Members = kept
	return changed
}

func idSet(ids ...string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id != "" {
			set[id] = true
		}
	}
	return set
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
