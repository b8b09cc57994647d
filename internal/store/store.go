package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so every entity store can
// run inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries bundles the entity stores bound to one DBTX.
type Queries struct {
	Accounts   *AccountStore
	Friends    *FriendStore
	Aliases    *AliasStore
	Groups     *GroupStore
	Expenses   *ExpenseStore
	Visibility *VisibilityStore
}

func newQueries(db DBTX) *Queries {
	return &Queries{
		Accounts:   NewAccountStore(db),
		Friends:    NewFriendStore(db),
		Aliases:    NewAliasStore(db),
		Groups:     NewGroupStore(db),
		Expenses:   NewExpenseStore(db),
		Visibility: NewVisibilityStore(db),
	}
}

// Store is the entry point to persistence. Its embedded Queries run outside
// a transaction and are meant for reads; mutations go through InTx.
type Store struct {
	*Queries
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{Queries: newQueries(db), db: db}
}

// InTx runs fn inside a single transaction. Any error returned by fn (or a
// panic) rolls back every write fn made.
func (s *Store) InTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(newQueries(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// inClause returns "(?, ?, ?)" and the matching args.
func inClause(values []string) (string, []any) {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return "(" + strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ") + ")", args
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
