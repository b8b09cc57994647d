package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/dukerupert/splitbook/internal/alias"
	"github.com/dukerupert/splitbook/internal/auth"
	"github.com/dukerupert/splitbook/internal/model"
)

// AddFriend adds a friend to the caller's list, or returns the existing row
// when the id (or an alias of it) is already there. The friend is linked to
// a registered account with the same member id or, failing that, the same
// email.
func (s *Service) AddFriend(ctx context.Context, caller auth.Caller, in model.FriendInput) (*model.Friend, error) {
	raw := alias.Normalize(in.MemberID)
	if raw == "" {
		return nil, invalid("friend", "", "member_id is required")
	}
	email := alias.NormalizeEmail(in.Email)
	if email != "" && !validEmail(email) {
		return nil, invalid("friend", raw, "malformed email %q", in.Email)
	}

	var out *model.Friend
	err := s.run(ctx, "add_friend", func(t *tx) error {
		id, err := t.resolver.Resolve(ctx, caller.Email, raw)
		if err != nil {
			return err
		}
		if caller.Is(id) {
			return invalid("friend", raw, "that member id is your own")
		}
		if out, err = t.q.Friends.Get(ctx, caller.Email, id); err != nil || out != nil {
			return err
		}
		if id != raw {
			return fmt.Errorf("friend %q -> %q: %w", raw, id, alias.ErrDanglingAlias)
		}
		out, err = t.createFriend(ctx, caller, id, in.Name, email, true)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("add friend: %w", err)
	}
	return out, nil
}

func (s *Service) ListFriends(ctx context.Context, caller auth.Caller) ([]model.Friend, error) {
	return s.store.Friends.List(ctx, caller.Email)
}

func (s *Service) ListAliases(ctx context.Context, caller auth.Caller) ([]model.MemberAlias, error) {
	return s.store.Aliases.List(ctx, caller.Email)
}

// createFriend writes a new friend row under the caller's email. Linking
// never trusts client claims: it looks up the registered account by member
// id and, when byEmail is set, by the friend's email.
func (t *tx) createFriend(ctx context.Context, caller auth.Caller, memberID, name, email string, byEmail bool) (*model.Friend, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = memberID
	}
	f := &model.Friend{AccountEmail: caller.Email, MemberID: memberID, Name: name, Email: email}

	account, err := t.q.Accounts.GetByMemberID(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if account == nil && byEmail && email != "" {
		if account, err = t.q.Accounts.GetByEmail(ctx, email); err != nil {
			return nil, err
		}
	}
	if account != nil && account.ID != caller.AccountID {
		f.HasLinkedAccount = true
		f.LinkedAccountID = &account.ID
		f.LinkedAccountEmail = &account.Email
	}

	created, err := t.q.Friends.Create(ctx, f)
	if err != nil {
		return nil, err
	}
	t.changes.add("friend", "created", memberID, caller.AccountID)
	return created, nil
}
