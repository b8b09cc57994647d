package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dukerupert/splitbook/internal/alias"
	"github.com/dukerupert/splitbook/internal/auth"
	"github.com/dukerupert/splitbook/internal/model"
	"github.com/dukerupert/splitbook/internal/store"
)

var ErrConflict = errors.New("already in use")

// ErrMemberIDImmutable is returned when an account tries to change a member
// id that is already set.
var ErrMemberIDImmutable = store.ErrMemberIDImmutable

// Register creates an account. Friend rows in other accounts that refer to
// the new member id or email become linked to it, and their expenses are
// rebuilt so the new account sees them.
func (s *Service) Register(ctx context.Context, email, name, memberID, passwordHash string) (*model.Account, error) {
	email = alias.NormalizeEmail(email)
	if !validEmail(email) {
		return nil, invalid("account", "", "malformed email")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("account", email, "name is required")
	}
	memberID = alias.Normalize(memberID)

	var out *model.Account
	err := s.run(ctx, "register", func(t *tx) error {
		existing, err := t.q.Accounts.GetByEmail(ctx, email)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("email: %w", ErrConflict)
		}
		if err := t.memberIDFree(ctx, memberID, ""); err != nil {
			return err
		}
		if out, err = t.q.Accounts.Create(ctx, email, name, memberID, passwordHash); err != nil {
			return err
		}
		return t.linkAccount(ctx, out)
	})
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	s.logger.InfoContext(ctx, "account registered", "account_id", out.ID)
	return out, nil
}

// SetMemberID sets the caller's member id once. Setting the same value again
// succeeds; any other change fails with ErrMemberIDImmutable.
func (s *Service) SetMemberID(ctx context.Context, caller auth.Caller, memberID string) (*model.Account, error) {
	memberID = alias.Normalize(memberID)
	if memberID == "" {
		return nil, invalid("account", "", "member_id is required")
	}
	var out *model.Account
	err := s.run(ctx, "set_member_id", func(t *tx) error {
		if err := t.memberIDFree(ctx, memberID, caller.AccountID); err != nil {
			return err
		}
		if err := t.q.Accounts.SetMemberID(ctx, caller.AccountID, memberID); err != nil {
			return err
		}
		var err error
		if out, err = t.q.Accounts.GetByID(ctx, caller.AccountID); err != nil {
			return err
		}
		if out == nil {
			return ErrNotFound
		}
		return t.linkAccount(ctx, out)
	})
	if err != nil {
		return nil, fmt.Errorf("set member id: %w", err)
	}
	return out, nil
}

// memberIDFree fails with ErrConflict when memberID already belongs to an
// account other than self.
func (t *tx) memberIDFree(ctx context.Context, memberID, self string) error {
	if memberID == "" {
		return nil
	}
	owner, err := t.q.Accounts.GetByMemberID(ctx, memberID)
	if err != nil {
		return err
	}
	if owner != nil && owner.ID != self {
		return fmt.Errorf("member id: %w", ErrConflict)
	}
	return nil
}

// linkAccount links every unlinked friend row in other accounts' lists that
// names a, then rebuilds the expenses that use those rows.
func (t *tx) linkAccount(ctx context.Context, a *model.Account) error {
	friends, err := t.q.Friends.ListUnlinked(ctx, a.Identities(), a.Email)
	if err != nil {
		return err
	}
	for _, f := range friends {
		if f.AccountEmail == a.Email {
			continue
		}
		if err := t.q.Friends.Link(ctx, f.ID, a.ID, a.Email); err != nil {
			return err
		}
		if err := t.rebuildForFriend(ctx, f); err != nil {
			return err
		}
		t.changes.add("friend", "linked", f.MemberID, a.ID)
	}
	return nil
}
