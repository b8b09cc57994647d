// Package ledger implements the mutations that keep groups, expenses,
// splits, participant lists and the visibility index consistent: bulk
// import, cascade cleanup, member merges and settlement.
//
// Every exported mutation runs in one store transaction. Derived expense
// fields (participants, participant emails, is_settled, visibility rows) are
// always recomputed here and never taken from the client.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/dukerupert/splitbook/internal/alias"
	"github.com/dukerupert/splitbook/internal/auth"
	"github.com/dukerupert/splitbook/internal/guard"
	"github.com/dukerupert/splitbook/internal/metrics"
	"github.com/dukerupert/splitbook/internal/store"
)

// ErrNotFound is returned when the target entity does not exist or the
// caller is not allowed to know that it does.
var ErrNotFound = guard.ErrNotFound

// ValidationError rejects one record or request because of malformed input.
type ValidationError struct {
	Kind    string `json:"kind"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("invalid %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Kind, e.ID, e.Message)
}

func invalid(kind, id, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, ID: id, Message: fmt.Sprintf(format, args...)}
}

// Notifier is told which accounts saw data change after a commit.
type Notifier interface {
	Notify(accountIDs []string, entity, action, id string)
}

// Result is the body of mutations that only report success.
type Result struct {
	Success bool `json:"success"`
}

type Service struct {
	store    *store.Store
	metrics  *metrics.Metrics
	notifier Notifier
	logger   *slog.Logger
}

func NewService(st *store.Store, m *metrics.Metrics, n Notifier, logger *slog.Logger) *Service {
	return &Service{
		store:    st,
		metrics:  m,
		notifier: n,
		logger:   logger.With("component", "ledger"),
	}
}

// checkClaim applies the soft-denial rule for client-supplied account emails.
func (s *Service) checkClaim(ctx context.Context, op string, caller auth.Caller, claimed string) bool {
	if guard.CheckAccountClaim(caller, claimed) {
		return true
	}
	s.metrics.SoftDenied(op)
	s.logger.WarnContext(ctx, "account claim mismatch",
		"op", op,
		"account_id", caller.AccountID,
	)
	return false
}

// tx is the per-mutation state: the transactional stores, a resolver bound
// to them and the set of accounts to notify after commit.
type tx struct {
	q        *store.Queries
	resolver *alias.Resolver
	changes  *changeSet
}

// run executes fn in a transaction, records the outcome and notifies
// affected accounts once the transaction has committed.
func (s *Service) run(ctx context.Context, op string, fn func(t *tx) error) error {
	var changes *changeSet
	err := s.store.InTx(ctx, func(q *store.Queries) error {
		changes = newChangeSet()
		return fn(&tx{q: q, resolver: alias.NewResolver(q.Aliases), changes: changes})
	})
	s.metrics.LedgerOp(op, err)
	if err != nil {
		return err
	}
	changes.flush(s.notifier)
	return nil
}

type change struct {
	entity, action, id string
}

type changeSet struct {
	events map[change]map[string]bool
	order  []change
}

func newChangeSet() *changeSet {
	return &changeSet{events: make(map[change]map[string]bool)}
}

func (c *changeSet) add(entity, action, id string, accountIDs ...string) {
	key := change{entity, action, id}
	set, ok := c.events[key]
	if !ok {
		set = make(map[string]bool)
		c.events[key] = set
		c.order = append(c.order, key)
	}
	for _, a := range accountIDs {
		if a != "" {
			set[a] = true
		}
	}
}

func (c *changeSet) flush(n Notifier) {
	if n == nil {
		return
	}
	for _, key := range c.order {
		ids := make([]string, 0, len(c.events[key]))
		for id := range c.events[key] {
			ids = append(ids, id)
		}
		if len(ids) == 0 {
			continue
		}
		sort.Strings(ids)
		n.Notify(ids, key.entity, key.action, key.id)
	}
}
