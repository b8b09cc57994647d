package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dukerupert/splitbook/internal/auth"
	"github.com/dukerupert/splitbook/internal/guard"
	"github.com/dukerupert/splitbook/internal/model"
)

func (s *Service) CreateGroup(ctx context.Context, caller auth.Caller, in model.GroupInput) (*model.Group, error) {
	if strings.TrimSpace(in.ID) == "" {
		in.ID = uuid.NewString()
	}
	var out *model.Group
	err := s.run(ctx, "create_group", func(t *tx) error {
		existing, err := t.q.Groups.GetByID(ctx, strings.TrimSpace(in.ID))
		if err != nil {
			return err
		}
		if existing != nil {
			return invalid("group", in.ID, "already exists")
		}
		g, err := t.buildGroup(ctx, caller, in)
		if err != nil {
			return err
		}
		out = g
		return t.saveGroup(ctx, g)
	})
	if err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	return markCurrentUser(caller, out), nil
}

// UpdateGroup replaces name, kind and members of a group the caller owns.
// Expenses keep their participants.
func (s *Service) UpdateGroup(ctx context.Context, caller auth.Caller, id string, in model.GroupInput) (*model.Group, error) {
	in.ID = id
	var out *model.Group
	err := s.run(ctx, "update_group", func(t *tx) error {
		existing, err := t.ownedGroup(ctx, caller, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return ErrNotFound
		}
		g, err := t.buildGroup(ctx, caller, in)
		if err != nil {
			return err
		}
		out = g
		return t.saveGroup(ctx, g)
	})
	if err != nil {
		return nil, fmt.Errorf("update group: %w", err)
	}
	return markCurrentUser(caller, out), nil
}

// DeleteGroup removes a group the caller owns with all of its expenses and
// returns how many expenses were removed.
func (s *Service) DeleteGroup(ctx context.Context, caller auth.Caller, id string) (int, error) {
	var n int
	err := s.run(ctx, "delete_group", func(t *tx) error {
		g, err := t.ownedGroup(ctx, caller, id)
		if err != nil {
			return err
		}
		if g == nil {
			return ErrNotFound
		}
		n, err = t.deleteGroup(ctx, g)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("delete group: %w", err)
	}
	s.metrics.CascadeDeleted("expense", n)
	return n, nil
}

func (s *Service) GetGroup(ctx context.Context, caller auth.Caller, id string) (*model.Group, error) {
	g, err := s.store.Groups.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guard.RequireGroupAccess(caller, g); err != nil {
		return nil, err
	}
	return markCurrentUser(caller, g), nil
}

func (s *Service) ListGroups(ctx context.Context, caller auth.Caller) ([]model.Group, error) {
	groups, err := s.store.Groups.ListVisible(ctx, caller.AccountID, caller.Identities())
	if err != nil {
		return nil, err
	}
	for i := range groups {
		markCurrentUser(caller, &groups[i])
	}
	return groups, nil
}

// markCurrentUser flags the members that are the caller.
func markCurrentUser(caller auth.Caller, g *model.Group) *model.Group {
	for i := range g.Members {
		g.Members[i].IsCurrentUser = caller.Is(g.Members[i].ID)
	}
	return g
}
