// Package alias resolves member identifiers to their canonical form inside
// one account's namespace.
//
// Aliases always point directly at a canonical id, so resolution is a single
// lookup. A canonical id that is itself an alias in the same scope means the
// data is corrupt; the resolver reports it as an *AliasCycleError instead of
// following the chain.
package alias

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrDanglingAlias is returned when an alias points at a canonical id that
// no longer exists in the scope.
var ErrDanglingAlias = errors.New("alias points to a nonexistent canonical member id")

// AliasCycleError reports a multi-hop alias chain (or a cycle) in a scope.
type AliasCycleError struct {
	Scope string
	Path  []string
}

func (e *AliasCycleError) Error() string {
	return fmt.Sprintf("alias chain in scope %s: %s", e.Scope, strings.Join(e.Path, " -> "))
}

// Lookup finds the canonical id an alias maps to in a scope.
type Lookup interface {
	Lookup(ctx context.Context, accountEmail, memberID string) (canonical string, ok bool, err error)
}

type Resolver struct {
	lookup Lookup
}

func NewResolver(l Lookup) *Resolver {
	return &Resolver{lookup: l}
}

// Normalize case-folds and trims a member id.
func Normalize(memberID string) string {
	return strings.ToLower(strings.TrimSpace(memberID))
}

// NormalizeEmail case-folds and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Resolve returns the canonical id for memberID in accountEmail's scope, or
// the normalized id itself when no alias exists.
func (r *Resolver) Resolve(ctx context.Context, accountEmail, memberID string) (string, error) {
	scope := NormalizeEmail(accountEmail)
	id := Normalize(memberID)
	if id == "" {
		return "", nil
	}

	canonical, ok, err := r.lookup.Lookup(ctx, scope, id)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", id, err)
	}
	if !ok || canonical == id {
		return id, nil
	}

	next, chained, err := r.lookup.Lookup(ctx, scope, canonical)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", canonical, err)
	}
	if chained && next != canonical {
		return "", &AliasCycleError{Scope: scope, Path: []string{id, canonical, next}}
	}
	return canonical, nil
}

// ResolveAll resolves ids in order, dropping empty ids and duplicates that
// collapse onto the same canonical id.
func (r *Resolver) ResolveAll(ctx context.Context, accountEmail string, ids []string) ([]string, error) {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		resolved, err := r.Resolve(ctx, accountEmail, id)
		if err != nil {
			return nil, err
		}
		if resolved == "" || seen[resolved] {
			continue
		}
		seen[resolved] = true
		out = append(out, resolved)
	}
	return out, nil
}

// IsAlias reports whether memberID is an alias key in the scope.
func (r *Resolver) IsAlias(ctx context.Context, accountEmail, memberID string) (bool, error) {
	canonical, ok, err := r.lookup.Lookup(ctx, NormalizeEmail(accountEmail), Normalize(memberID))
	if err != nil {
		return false, err
	}
	return ok && canonical != Normalize(memberID), nil
}
