package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dukerupert/splitbook/internal/alias"
	"github.com/dukerupert/splitbook/internal/auth"
	"github.com/dukerupert/splitbook/internal/guard"
	"github.com/dukerupert/splitbook/internal/model"
)

type ImportResult struct {
	Success          bool              `json:"success"`
	FriendsCreated   int               `json:"friends_created"`
	FriendsSkipped   int               `json:"friends_skipped"`
	GroupsUpserted   int               `json:"groups_upserted"`
	ExpensesUpserted int               `json:"expenses_upserted"`
	Errors           []ValidationError `json:"errors,omitempty"`
}

// ImportBatch ingests a client's friends, groups and expenses.
//
// Member ids are normalized and resolved through the caller's aliases. A
// friend whose resolved id is already known is skipped; friends are never
// matched by name. Groups and expenses are upserted by their stable ids, so
// re-running a payload creates nothing new. Malformed records are reported
// in Errors and skipped. Overwriting another account's group or expense, or
// an alias whose canonical id is gone, aborts the whole batch.
func (s *Service) ImportBatch(ctx context.Context, caller auth.Caller, batch model.ImportBatch) (ImportResult, error) {
	if !s.checkClaim(ctx, "import", caller, batch.AccountEmail) {
		return ImportResult{}, nil
	}

	var res ImportResult
	err := s.run(ctx, "import", func(t *tx) error {
		res = ImportResult{}
		imp := &importer{tx: t, caller: caller, res: &res}
		for _, f := range batch.Friends {
			if err := imp.friend(ctx, f); err != nil {
				return err
			}
		}
		for _, g := range batch.Groups {
			if err := imp.group(ctx, g); err != nil {
				return err
			}
		}
		for _, e := range batch.Expenses {
			if err := imp.expense(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, fmt.Errorf("import batch: %w", err)
	}
	res.Success = true

	s.metrics.ImportRecords("friend", "created", res.FriendsCreated)
	s.metrics.ImportRecords("friend", "skipped", res.FriendsSkipped)
	s.metrics.ImportRecords("group", "upserted", res.GroupsUpserted)
	s.metrics.ImportRecords("expense", "upserted", res.ExpensesUpserted)
	s.metrics.ImportRecords("record", "rejected", len(res.Errors))
	s.logger.InfoContext(ctx, "import applied",
		"account_id", caller.AccountID,
		"friends_created", res.FriendsCreated,
		"friends_skipped", res.FriendsSkipped,
		"groups", res.GroupsUpserted,
		"expenses", res.ExpensesUpserted,
		"rejected", len(res.Errors),
	)
	return res, nil
}

type importer struct {
	*tx
	caller auth.Caller
	res    *ImportResult
}

// reject records err against the batch when it is a validation error and
// returns every other error unchanged.
func (imp *importer) reject(err error) error {
	var verr *ValidationError
	if errors.As(err, &verr) {
		imp.res.Errors = append(imp.res.Errors, *verr)
		return nil
	}
	return err
}

func (imp *importer) friend(ctx context.Context, in model.FriendInput) error {
	raw := alias.Normalize(in.MemberID)
	if raw == "" {
		return imp.reject(invalid("friend", "", "member_id is required"))
	}
	email := alias.NormalizeEmail(in.Email)
	if email != "" && !validEmail(email) {
		return imp.reject(invalid("friend", raw, "malformed email %q", in.Email))
	}

	scope := imp.caller.Email
	id, err := imp.resolver.Resolve(ctx, scope, raw)
	if err != nil {
		return err
	}
	if imp.caller.Is(id) {
		imp.res.FriendsSkipped++
		return nil
	}
	existing, err := imp.q.Friends.Get(ctx, scope, id)
	if err != nil {
		return err
	}
	if existing != nil {
		imp.res.FriendsSkipped++
		return nil
	}
	if id != raw {
		return fmt.Errorf("friend %q -> %q: %w", raw, id, alias.ErrDanglingAlias)
	}

	if _, err := imp.createFriend(ctx, imp.caller, id, in.Name, email, false); err != nil {
		return err
	}
	imp.res.FriendsCreated++
	return nil
}

func (imp *importer) group(ctx context.Context, in model.GroupInput) error {
	if _, err := imp.ownedGroup(ctx, imp.caller, strings.TrimSpace(in.ID)); err != nil {
		if errors.Is(err, guard.ErrForbidden) || errors.Is(err, guard.ErrNotFound) {
			return fmt.Errorf("group %q: %w", in.ID, guard.ErrForbidden)
		}
		return err
	}
	g, err := imp.buildGroup(ctx, imp.caller, in)
	if err != nil {
		return imp.reject(err)
	}
	if err := imp.saveGroup(ctx, g); err != nil {
		return err
	}
	imp.res.GroupsUpserted++
	return nil
}

func (imp *importer) expense(ctx context.Context, in model.ExpenseInput) error {
	id := strings.TrimSpace(in.ID)
	if id != "" {
		existing, err := imp.q.Expenses.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if existing != nil {
			if _, err := imp.ownedGroup(ctx, imp.caller, existing.GroupID); err != nil {
				return fmt.Errorf("expense %q: %w", id, guard.ErrForbidden)
			}
		}
	}

	groupID := strings.TrimSpace(in.GroupID)
	if groupID == "" {
		return imp.reject(invalid("expense", id, "group_id is required"))
	}
	g, err := imp.q.Groups.GetByID(ctx, groupID)
	if err != nil {
		return err
	}
	if g == nil {
		return imp.reject(invalid("expense", id, "unknown group %q", groupID))
	}
	if g.OwnerAccountID != imp.caller.AccountID {
		return fmt.Errorf("expense %q: %w", id, guard.ErrForbidden)
	}

	e, err := imp.buildExpense(ctx, g, in)
	if err != nil {
		return imp.reject(err)
	}
	if err := imp.saveExpense(ctx, g, e); err != nil {
		return err
	}
	imp.res.ExpensesUpserted++
	return nil
}
