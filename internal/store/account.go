package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dukerupert/splitbook/internal/model"
)

// ErrMemberIDImmutable is returned when an account's member id has already
// been set to a different value.
var ErrMemberIDImmutable = errors.New("member_id is immutable once set")

type AccountStore struct {
	db DBTX
}

func NewAccountStore(db DBTX) *AccountStore {
	return &AccountStore{db: db}
}

func scanAccount(scanner interface{ Scan(...any) error }) (*model.Account, error) {
	var a model.Account
	err := scanner.Scan(&a.ID, &a.Email, &a.Name, &a.MemberID, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

const accountCols = `id, email, name, member_id, password_hash, created_at, updated_at`

func (s *AccountStore) Create(ctx context.Context, email, name, memberID, passwordHash string) (*model.Account, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, email, name, member_id, password_hash) VALUES (?, ?, ?, ?, ?)`,
		id, strings.ToLower(strings.TrimSpace(email)), name, memberID, passwordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *AccountStore) GetByID(ctx context.Context, id string) (*model.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountCols+` FROM accounts WHERE id = ?`, id)
	return s.load(ctx, row, "get account")
}

func (s *AccountStore) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountCols+` FROM accounts WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email)),
	)
	return s.load(ctx, row, "get account by email")
}

// GetByMemberID returns the account whose member id or legacy alias equals
// memberID.
func (s *AccountStore) GetByMemberID(ctx context.Context, memberID string) (*model.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountCols+` FROM accounts
		 WHERE member_id = ?1
		    OR id IN (SELECT account_id FROM account_aliases WHERE member_id = ?1)
		 LIMIT 1`,
		memberID,
	)
	return s.load(ctx, row, "get account by member id")
}

func (s *AccountStore) load(ctx context.Context, row *sql.Row, op string) (*model.Account, error) {
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	aliases, err := s.ListAliases(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	a.AliasMemberIDs = aliases
	return a, nil
}

// SetMemberID assigns the account's member id. Assigning the current value
// again is a no-op; any other change to a non-empty member id fails with
// ErrMemberIDImmutable.
func (s *AccountStore) SetMemberID(ctx context.Context, id, memberID string) error {
	var current string
	err := s.db.QueryRowContext(ctx, `SELECT member_id FROM accounts WHERE id = ?`, id).Scan(&current)
	if err == sql.ErrNoRows {
		return fmt.Errorf("account not found")
	}
	if err != nil {
		return fmt.Errorf("get member id: %w", err)
	}
	if current == memberID {
		return nil
	}
	if current != "" {
		return ErrMemberIDImmutable
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE accounts SET member_id = ? WHERE id = ?`, memberID, id); err != nil {
		return fmt.Errorf("set member id: %w", err)
	}
	return nil
}

func (s *AccountStore) AddAlias(ctx context.Context, accountID, memberID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO account_aliases (account_id, member_id) VALUES (?, ?)`,
		accountID, memberID,
	)
	if err != nil {
		return fmt.Errorf("add account alias: %w", err)
	}
	return nil
}

func (s *AccountStore) ListAliases(ctx context.Context, accountID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT member_id FROM account_aliases WHERE account_id = ? ORDER BY member_id`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("list account aliases: %w", err)
	}
	aliases, err := scanStrings(rows)
	if err != nil {
		return nil, fmt.Errorf("scan account alias: %w", err)
	}
	return aliases, nil
}

// ListByMemberIDs maps each of memberIDs that belongs to a registered
// account (directly or through a legacy alias) to that account.
func (s *AccountStore) ListByMemberIDs(ctx context.Context, memberIDs []string) (map[string]*model.Account, error) {
	out := make(map[string]*model.Account)
	if len(memberIDs) == 0 {
		return out, nil
	}
	in, args := inClause(memberIDs)
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.member_id, a.id FROM accounts a WHERE a.member_id IN `+in+`
		 UNION
		 SELECT aa.member_id, aa.account_id FROM account_aliases aa WHERE aa.member_id IN `+in,
		append(args, args...)...,
	)
	if err != nil {
		return nil, fmt.Errorf("list accounts by member ids: %w", err)
	}
	defer rows.Close()

	byMember := make(map[string]string)
	for rows.Next() {
		var memberID, accountID string
		if err := rows.Scan(&memberID, &accountID); err != nil {
			return nil, fmt.Errorf("scan account member: %w", err)
		}
		byMember[memberID] = accountID
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	cache := make(map[string]*model.Account)
	for memberID, accountID := range byMember {
		a, ok := cache[accountID]
		if !ok {
			if a, err = s.GetByID(ctx, accountID); err != nil {
				return nil, err
			}
			cache[accountID] = a
		}
		if a != nil {
			out[memberID] = a
		}
	}
	return out, nil
}

func (s *AccountStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}
