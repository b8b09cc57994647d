package ledger

import (
	"context"
	"fmt"

	"github.com/dukerupert/splitbook/internal/alias"
	"github.com/dukerupert/splitbook/internal/auth"
	"github.com/dukerupert/splitbook/internal/model"
)

// MergeMemberIDs records that sourceID is another name for targetID in the
// caller's scope. The alias is always written under the caller's email;
// accountEmail is only logged. Aliases that pointed at sourceID are moved to
// targetID so no chain forms, and the caller's own groups and expenses are
// rewritten to use targetID, and the source friend row is dropped. A source
// that is already an alias of another id is rejected; merging it into the
// same target again is a no-op.
func (s *Service) MergeMemberIDs(ctx context.Context, caller auth.Caller, sourceID, targetID, accountEmail string) (*model.MemberAlias, error) {
	if claimed := alias.NormalizeEmail(accountEmail); claimed != "" && claimed != caller.Email {
		s.metrics.SoftDenied("merge")
		s.logger.WarnContext(ctx, "merge account claim ignored", "account_id", caller.AccountID)
	}

	src, dst := alias.Normalize(sourceID), alias.Normalize(targetID)
	if src == "" || dst == "" {
		return nil, invalid("merge", "", "source and target ids are required")
	}
	if src == dst {
		return nil, invalid("merge", src, "cannot merge a member id into itself")
	}
	if caller.Is(src) {
		return nil, invalid("merge", src, "cannot alias your own member id")
	}

	var out *model.MemberAlias
	err := s.run(ctx, "merge", func(t *tx) error {
		scope := caller.Email
		current, isAlias, err := t.q.Aliases.Lookup(ctx, scope, src)
		if err != nil {
			return err
		}
		if isAlias && current != dst {
			return invalid("merge", src, "already an alias of %q", current)
		}
		canonical, isAlias, err := t.q.Aliases.Lookup(ctx, scope, dst)
		if err != nil {
			return err
		}
		if isAlias && canonical != dst {
			return &alias.AliasCycleError{Scope: scope, Path: []string{src, dst, canonical}}
		}
		if !caller.Is(dst) {
			target, err := t.q.Friends.Get(ctx, scope, dst)
			if err != nil {
				return err
			}
			if target == nil {
				return fmt.Errorf("merge %q -> %q: %w", src, dst, alias.ErrDanglingAlias)
			}
		}

		if _, err := t.q.Aliases.Repoint(ctx, scope, src, dst); err != nil {
			return err
		}
		if out, err = t.q.Aliases.Create(ctx, scope, src, dst); err != nil {
			return err
		}
		if err := t.rewriteOwned(ctx, caller.AccountID, src, dst); err != nil {
			return err
		}

		source, err := t.q.Friends.Get(ctx, scope, src)
		if err != nil || source == nil {
			return err
		}
		t.changes.add("friend", "merged", src, caller.AccountID)
		return t.q.Friends.Delete(ctx, scope, src)
	})
	if err != nil {
		return nil, fmt.Errorf("merge member ids: %w", err)
	}
	s.logger.InfoContext(ctx, "member ids merged",
		"account_id", caller.AccountID,
		"source", src,
		"target", dst,
	)
	return out, nil
}

// rewriteOwned replaces src with dst in every group and expense ownerID
// owns. Entries that collapse onto dst are merged.
func (t *tx) rewriteOwned(ctx context.Context, ownerID, src, dst string) error {
	groups, err := t.q.Groups.ListOwnedBy(ctx, ownerID)
	if err != nil {
		return err
	}
	for i := range groups {
		g := &groups[i]
		if !g.HasMember(src) {
			continue
		}
		hasTarget := g.HasMember(dst)
		members := make([]model.GroupMember, 0, len(g.Members))
		for _, m := range g.Members {
			if m.ID == src {
				if hasTarget {
					continue
				}
				m.ID = dst
			}
			members = append(members, m)
		}
		g.Members = members
		if err := t.saveGroup(ctx, g); err != nil {
			return err
		}
	}

	expenses, err := t.q.Expenses.ListByParticipants(ctx, []string{src}, ownerID)
	if err != nil {
		return err
	}
	for i := range expenses {
		e := &expenses[i]
		if e.PaidByMemberID == src {
			e.PaidByMemberID = dst
		}
		splits := make([]model.Split, 0, len(e.Splits))
		for _, sp := range e.Splits {
			if sp.MemberID == src {
				sp.MemberID = dst
			}
			if existing := findSplit(splits, sp.MemberID); existing != nil {
				existing.Amount = existing.Amount.Add(sp.Amount)
				existing.IsSettled = existing.IsSettled && sp.IsSettled
				continue
			}
			splits = append(splits, sp)
		}
		e.Splits = splits
		g, err := t.q.Groups.GetByID(ctx, e.GroupID)
		if err != nil {
			return err
		}
		if len(e.Splits) < 2 {
			if err := t.deleteExpense(ctx, g, e); err != nil {
				return err
			}
			continue
		}
		if err := t.saveExpense(ctx, g, e); err != nil {
			return err
		}
	}
	return nil
}

func findSplit(splits []model.Split, memberID string) *model.Split {
	for i := range splits {
		if splits[i].MemberID == memberID {
			return &splits[i]
		}
	}
	return nil
}
