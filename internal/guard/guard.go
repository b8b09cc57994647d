// Package guard holds the ownership and authorization rules for ledger
// mutations. Every check is a pure function of the authenticated caller and
// a snapshot of the entity; nothing here reads the store.
//
// Two failure styles exist. Entity checks return ErrForbidden when the
// caller already knows the entity exists (owner or participant), and
// ErrNotFound otherwise. Account-claim checks never fail loudly: a forged
// account email yields false and the caller answers {success: false}.
package guard

import (
	"errors"
	"strings"

	"github.com/dukerupert/splitbook/internal/auth"
	"github.com/dukerupert/splitbook/internal/model"
)

var (
	ErrForbidden = errors.New("forbidden")
	ErrNotFound  = errors.New("not found")
)

// CheckAccountClaim reports whether a client-supplied account email may be
// honored. An empty claim always passes because the effective scope is the
// caller's own.
func CheckAccountClaim(c auth.Caller, claimedEmail string) bool {
	claimed := strings.ToLower(strings.TrimSpace(claimedEmail))
	return claimed == "" || claimed == strings.ToLower(c.Email)
}

func IsGroupOwner(c auth.Caller, g *model.Group) bool {
	return g != nil && c.AccountID != "" && g.OwnerAccountID == c.AccountID
}

// RequireGroupOwner allows structural changes to g only for its owner.
// Members get ErrForbidden; everyone else ErrNotFound.
func RequireGroupOwner(c auth.Caller, g *model.Group) error {
	if err := RequireGroupAccess(c, g); err != nil {
		return err
	}
	if !IsGroupOwner(c, g) {
		return ErrForbidden
	}
	return nil
}

// RequireGroupAccess allows reads of g for its owner and its members.
func RequireGroupAccess(c auth.Caller, g *model.Group) error {
	if g == nil {
		return ErrNotFound
	}
	if IsGroupOwner(c, g) || g.HasMember(c.Identities()...) {
		return nil
	}
	return ErrNotFound
}

// RequireExpenseAccess allows reads of an expense for the owner of its group
// and for accounts indexed as able to see it.
func RequireExpenseAccess(isOwner, visible bool) error {
	if isOwner || visible {
		return nil
	}
	return ErrNotFound
}

// ExpenseEdit describes what a mutation would change on an expense.
type ExpenseEdit struct {
	// Structural is set when description, amount, currency, payer, splits
	// or participants change.
	Structural bool
	// Settle lists the split member ids whose settled state is toggled.
	Settle []string
}

// AuthorizeExpenseEdit decides whether the caller may apply edit. Owners may
// do anything. A participant may only toggle splits whose member id is one of
// own, the participant ids linked to the caller. The decision covers the
// whole edit, so a rejected edit is never partially applied.
func AuthorizeExpenseEdit(isOwner bool, own []string, edit ExpenseEdit) error {
	if isOwner {
		return nil
	}
	if edit.Structural {
		return ErrForbidden
	}
	mine := make(map[string]bool, len(own))
	for _, id := range own {
		mine[id] = true
	}
	for _, id := range edit.Settle {
		if !mine[id] {
			return ErrForbidden
		}
	}
	return nil
}
