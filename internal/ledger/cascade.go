package ledger

import (
	"context"
	"fmt"

	"github.com/dukerupert/splitbook/internal/alias"
	"github.com/dukerupert/splitbook/internal/auth"
	"github.com/dukerupert/splitbook/internal/model"
)

type DeleteLinkedFriendResult struct {
	Success         bool `json:"success"`
	ExpensesDeleted int  `json:"expenses_deleted"`
}

// DeleteLinkedFriend removes a friend who has a registered account along
// with every direct group between the caller and that friend, whichever of
// the two owns it. Shared groups are left alone.
func (s *Service) DeleteLinkedFriend(ctx context.Context, caller auth.Caller, friendMemberID, accountEmail string) (DeleteLinkedFriendResult, error) {
	if !s.checkClaim(ctx, "delete_linked_friend", caller, accountEmail) {
		return DeleteLinkedFriendResult{}, nil
	}

	var res DeleteLinkedFriendResult
	err := s.run(ctx, "delete_linked_friend", func(t *tx) error {
		res = DeleteLinkedFriendResult{}
		f, err := t.friend(ctx, caller, friendMemberID)
		if err != nil {
			return err
		}
		if !f.HasLinkedAccount || f.LinkedAccountID == nil {
			return invalid("friend", f.MemberID, "friend has no linked account")
		}

		friendIDs := []string{f.MemberID}
		var friendAccountID string
		friendAccount, err := t.q.Accounts.GetByID(ctx, *f.LinkedAccountID)
		if err != nil {
			return err
		}
		if friendAccount != nil {
			friendAccountID = friendAccount.ID
			friendIDs = append(friendIDs, friendAccount.Identities()...)
		}

		groups, err := t.q.Groups.ListWithMembers(ctx, friendIDs)
		if err != nil {
			return err
		}
		for i := range groups {
			g := &groups[i]
			if !g.IsDirect {
				continue
			}
			mine := g.OwnerAccountID == caller.AccountID
			theirs := friendAccountID != "" && g.OwnerAccountID == friendAccountID && g.HasMember(caller.Identities()...)
			if !mine && !theirs {
				continue
			}
			n, err := t.deleteGroup(ctx, g)
			if err != nil {
				return err
			}
			res.ExpensesDeleted += n
		}

		if _, err := t.q.Aliases.DeletePointingAt(ctx, caller.Email, f.MemberID); err != nil {
			return err
		}
		if err := t.q.Friends.Delete(ctx, caller.Email, f.MemberID); err != nil {
			return err
		}
		// Shared expenses keep the friend's id but lose the link to their
		// account.
		if err := t.rebuildForFriend(ctx, *f); err != nil {
			return err
		}
		t.changes.add("friend", "deleted", f.MemberID, caller.AccountID)
		return nil
	})
	if err != nil {
		return DeleteLinkedFriendResult{}, fmt.Errorf("delete linked friend: %w", err)
	}
	res.Success = true
	s.metrics.CascadeDeleted("expense", res.ExpensesDeleted)
	s.logger.InfoContext(ctx, "linked friend deleted",
		"account_id", caller.AccountID,
		"expenses_deleted", res.ExpensesDeleted,
	)
	return res, nil
}

// DeleteUnlinkedFriend removes a friend without a registered account. The
// caller's aliases for that friend go with it, and the friend's id is pruned
// from every group and expense the caller owns. Expenses left without their
// payer or with a single participant are deleted.
func (s *Service) DeleteUnlinkedFriend(ctx context.Context, caller auth.Caller, friendMemberID, accountEmail string) (Result, error) {
	if !s.checkClaim(ctx, "delete_unlinked_friend", caller, accountEmail) {
		return Result{}, nil
	}

	var pruned pruneCounts
	err := s.run(ctx, "delete_unlinked_friend", func(t *tx) error {
		f, err := t.friend(ctx, caller, friendMemberID)
		if err != nil {
			return err
		}
		if f.HasLinkedAccount {
			return invalid("friend", f.MemberID, "friend has a linked account")
		}
		if _, err := t.q.Aliases.DeletePointingAt(ctx, caller.Email, f.MemberID); err != nil {
			return err
		}
		if pruned, err = t.pruneOwned(ctx, caller.AccountID, idSet(f.MemberID)); err != nil {
			return err
		}
		if err := t.q.Friends.Delete(ctx, caller.Email, f.MemberID); err != nil {
			return err
		}
		t.changes.add("friend", "deleted", f.MemberID, caller.AccountID)
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("delete unlinked friend: %w", err)
	}
	pruned.record(s)
	return Result{Success: true}, nil
}

type SelfDeleteResult struct {
	Success              bool `json:"success"`
	OwnedGroupsDeleted   int  `json:"owned_groups_deleted"`
	OwnedExpensesDeleted int  `json:"owned_expenses_deleted"`
}

// SelfDeleteAccount removes the caller's account. Owned groups and expenses
// are deleted; groups and expenses owned by others lose the caller's
// membership. Friend rows in other accounts that were linked to the caller
// become unlinked and the expenses using them are rebuilt.
func (s *Service) SelfDeleteAccount(ctx context.Context, caller auth.Caller) (SelfDeleteResult, error) {
	var res SelfDeleteResult
	var pruned pruneCounts
	err := s.run(ctx, "self_delete_account", func(t *tx) error {
		res = SelfDeleteResult{}
		account, err := t.q.Accounts.GetByID(ctx, caller.AccountID)
		if err != nil {
			return err
		}
		if account == nil {
			return ErrNotFound
		}
		ids := idSet(account.Identities()...)

		owned, err := t.q.Groups.ListOwnedBy(ctx, account.ID)
		if err != nil {
			return err
		}
		for i := range owned {
			n, err := t.deleteGroup(ctx, &owned[i])
			if err != nil {
				return err
			}
			res.OwnedGroupsDeleted++
			res.OwnedExpensesDeleted += n
		}

		if pruned, err = t.pruneParticipation(ctx, account.ID, ids, nil, true); err != nil {
			return err
		}

		if _, err := t.q.Friends.DeleteAll(ctx, account.Email); err != nil {
			return err
		}
		if _, err := t.q.Aliases.DeleteAll(ctx, account.Email); err != nil {
			return err
		}

		linked, err := t.q.Friends.ListLinkedTo(ctx, account.ID)
		if err != nil {
			return err
		}
		for _, f := range linked {
			if err := t.q.Friends.Unlink(ctx, f.ID); err != nil {
				return err
			}
			if err := t.rebuildForFriend(ctx, f); err != nil {
				return err
			}
		}

		return t.q.Accounts.Delete(ctx, account.ID)
	})
	if err != nil {
		return SelfDeleteResult{}, fmt.Errorf("self delete account: %w", err)
	}
	res.Success = true
	pruned.record(s)
	s.metrics.CascadeDeleted("group", res.OwnedGroupsDeleted)
	s.metrics.CascadeDeleted("expense", res.OwnedExpensesDeleted)
	s.logger.InfoContext(ctx, "account deleted",
		"account_id", caller.AccountID,
		"groups_deleted", res.OwnedGroupsDeleted,
		"expenses_deleted", res.OwnedExpensesDeleted,
	)
	return res, nil
}

type ClearResult struct {
	Success bool `json:"success"`
	Deleted int  `json:"deleted"`
	Left    int  `json:"left"`
}

// ClearGroupsForUser deletes every group the caller owns and takes the
// caller out of the groups it only belongs to, including the caller's splits
// in their expenses.
func (s *Service) ClearGroupsForUser(ctx context.Context, caller auth.Caller) (ClearResult, error) {
	var res ClearResult
	var pruned pruneCounts
	err := s.run(ctx, "clear_groups", func(t *tx) error {
		res, pruned = ClearResult{}, pruneCounts{}
		owned, err := t.q.Groups.ListOwnedBy(ctx, caller.AccountID)
		if err != nil {
			return err
		}
		for i := range owned {
			n, err := t.deleteGroup(ctx, &owned[i])
			if err != nil {
				return err
			}
			res.Deleted++
			pruned.expensesDeleted += n
		}
		viaFriends, err := t.linkedFriendIDs(ctx, caller.AccountID)
		if err != nil {
			return err
		}
		left, err := t.pruneParticipation(ctx, caller.AccountID, idSet(caller.Identities()...), viaFriends, true)
		if err != nil {
			return err
		}
		pruned.add(left)
		res.Left = left.groupsLeft
		return nil
	})
	if err != nil {
		return ClearResult{}, fmt.Errorf("clear groups: %w", err)
	}
	res.Success = true
	pruned.record(s)
	s.metrics.CascadeDeleted("group", res.Deleted)
	return res, nil
}

// ClearExpensesForUser deletes every expense in groups the caller owns and
// removes the caller's split from expenses owned by others. Groups are kept.
func (s *Service) ClearExpensesForUser(ctx context.Context, caller auth.Caller) (ClearResult, error) {
	var res ClearResult
	var pruned pruneCounts
	err := s.run(ctx, "clear_expenses", func(t *tx) error {
		res = ClearResult{}
		owned, err := t.q.Expenses.ListOwnedBy(ctx, caller.AccountID)
		if err != nil {
			return err
		}
		groups := make(map[string]*model.Group)
		for i := range owned {
			e := &owned[i]
			g, ok := groups[e.GroupID]
			if !ok {
				if g, err = t.q.Groups.GetByID(ctx, e.GroupID); err != nil {
					return err
				}
				groups[e.GroupID] = g
			}
			if err := t.deleteExpense(ctx, g, e); err != nil {
				return err
			}
			res.Deleted++
		}
		viaFriends, err := t.linkedFriendIDs(ctx, caller.AccountID)
		if err != nil {
			return err
		}
		pruned, err = t.pruneParticipation(ctx, caller.AccountID, idSet(caller.Identities()...), viaFriends, false)
		res.Left = pruned.expensesPruned
		return err
	})
	if err != nil {
		return ClearResult{}, fmt.Errorf("clear expenses: %w", err)
	}
	res.Success = true
	pruned.record(s)
	s.metrics.CascadeDeleted("expense", res.Deleted)
	return res, nil
}

// friend loads the caller's friend row for memberID, resolving aliases.
func (t *tx) friend(ctx context.Context, caller auth.Caller, memberID string) (*model.Friend, error) {
	id, err := t.resolver.Resolve(ctx, caller.Email, memberID)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, invalid("friend", "", "member_id is required")
	}
	f, err := t.q.Friends.Get(ctx, caller.Email, id)
	if err != nil {
		return nil, err
	}
	if f == nil {
		if id != alias.Normalize(memberID) {
			return nil, fmt.Errorf("friend %q -> %q: %w", memberID, id, alias.ErrDanglingAlias)
		}
		return nil, ErrNotFound
	}
	return f, nil
}

type pruneCounts struct {
	groupsDeleted   int
	groupsLeft      int
	expensesPruned  int
	expensesDeleted int
}

func (p *pruneCounts) add(o pruneCounts) {
	p.groupsDeleted += o.groupsDeleted
	p.groupsLeft += o.groupsLeft
	p.expensesPruned += o.expensesPruned
	p.expensesDeleted += o.expensesDeleted
}

func (p *pruneCounts) count(changed, deleted bool) {
	switch {
	case deleted:
		p.expensesDeleted++
	case changed:
		p.expensesPruned++
	}
}

func (p pruneCounts) record(s *Service) {
	s.metrics.CascadeDeleted("group", p.groupsDeleted)
	s.metrics.CascadeDeleted("expense", p.expensesDeleted)
	s.metrics.CascadeDeleted("group_membership", p.groupsLeft)
	s.metrics.CascadeDeleted("split", p.expensesPruned)
}

// pruneOwned removes ids from the groups and expenses ownerID owns. Direct
// groups containing any of ids are deleted outright.
func (t *tx) pruneOwned(ctx context.Context, ownerID string, ids map[string]bool) (pruneCounts, error) {
	var c pruneCounts
	groups, err := t.q.Groups.ListOwnedBy(ctx, ownerID)
	if err != nil {
		return c, err
	}
	for i := range groups {
		g := &groups[i]
		if !g.HasMember(sortedKeys(ids)...) {
			continue
		}
		if g.IsDirect {
			n, err := t.deleteGroup(ctx, g)
			if err != nil {
				return c, err
			}
			c.groupsDeleted++
			c.expensesDeleted += n
			continue
		}
		pruneMembers(g, ids)
		if err := t.saveGroup(ctx, g); err != nil {
			return c, err
		}
		c.groupsLeft++
	}

	expenses, err := t.q.Expenses.ListByParticipants(ctx, sortedKeys(ids), ownerID)
	if err != nil {
		return c, err
	}
	if err := t.pruneExpenses(ctx, expenses, ids, &c); err != nil {
		return c, err
	}
	return c, nil
}

// pruneParticipation removes accountID from groups and expenses it does not
// own. ids are the account's own member ids; viaFriends maps an owner email
// to the ids that owner's friend rows link to the account, and those ids are
// pruned only from that owner's data. Groups are only touched when
// withGroups is set; a group is never deleted because a member left it.
func (t *tx) pruneParticipation(ctx context.Context, accountID string, ids map[string]bool, viaFriends map[string]map[string]bool, withGroups bool) (pruneCounts, error) {
	var c pruneCounts
	all := idSet(sortedKeys(ids)...)
	for _, linked := range viaFriends {
		for id := range linked {
			all[id] = true
		}
	}
	list := sortedKeys(all)
	if len(list) == 0 {
		return c, nil
	}
	scoped := func(ownerEmail string) map[string]bool {
		out := idSet(sortedKeys(ids)...)
		for id := range viaFriends[ownerEmail] {
			out[id] = true
		}
		return out
	}

	if withGroups {
		groups, err := t.q.Groups.ListWithMembers(ctx, list)
		if err != nil {
			return c, err
		}
		for i := range groups {
			g := &groups[i]
			if g.OwnerAccountID == accountID || !pruneMembers(g, scoped(g.OwnerEmail)) {
				continue
			}
			if err := t.saveGroup(ctx, g); err != nil {
				return c, err
			}
			c.groupsLeft++
		}
	}

	byMember, err := t.q.Expenses.ListByParticipants(ctx, list, "")
	if err != nil {
		return c, err
	}
	visible, err := t.q.Expenses.ListForUser(ctx, accountID)
	if err != nil {
		return c, err
	}
	seen := make(map[string]bool)
	for _, e := range append(byMember, visible...) {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		g, err := t.q.Groups.GetByID(ctx, e.GroupID)
		if err != nil {
			return c, err
		}
		if g == nil || g.OwnerAccountID == accountID {
			continue
		}
		changed, deleted, err := t.pruneExpense(ctx, &e, scoped(g.OwnerEmail))
		if err != nil {
			return c, err
		}
		c.count(changed, deleted)
	}
	return c, nil
}

// linkedFriendIDs maps each owner email to the member ids of that owner's
// friend rows linked to accountID.
func (t *tx) linkedFriendIDs(ctx context.Context, accountID string) (map[string]map[string]bool, error) {
	rows, err := t.q.Friends.ListLinkedTo(ctx, accountID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string]bool)
	for _, f := range rows {
		if out[f.AccountEmail] == nil {
			out[f.AccountEmail] = make(map[string]bool)
		}
		out[f.AccountEmail][f.MemberID] = true
	}
	return out, nil
}

func (t *tx) pruneExpenses(ctx context.Context, expenses []model.Expense, ids map[string]bool, c *pruneCounts) error {
	for i := range expenses {
		changed, deleted, err := t.pruneExpense(ctx, &expenses[i], ids)
		if err != nil {
			return err
		}
		c.count(changed, deleted)
	}
	return nil
}

// rebuildForFriend recomputes the expenses of f's owner that use f's member
// id, after the friend row's link changed.
func (t *tx) rebuildForFriend(ctx context.Context, f model.Friend) error {
	owner, err := t.q.Accounts.GetByEmail(ctx, f.AccountEmail)
	if err != nil || owner == nil {
		return err
	}
	expenses, err := t.q.Expenses.ListByParticipants(ctx, []string{f.MemberID}, owner.ID)
	if err != nil {
		return err
	}
	for i := range expenses {
		e := &expenses[i]
		g, err := t.q.Groups.GetByID(ctx, e.GroupID)
		if err != nil {
			return err
		}
		if err := t.saveExpense(ctx, g, e); err != nil {
			return err
		}
	}
	return nil
}
