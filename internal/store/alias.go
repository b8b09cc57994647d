package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/splitbook/internal/model"
)

type AliasStore struct {
	db DBTX
}

func NewAliasStore(db DBTX) *AliasStore {
	return &AliasStore{db: db}
}

func scanAlias(scanner interface{ Scan(...any) error }) (*model.MemberAlias, error) {
	var a model.MemberAlias
	err := scanner.Scan(&a.AccountEmail, &a.AliasMemberID, &a.CanonicalMemberID, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

const aliasCols = `account_email, alias_member_id, canonical_member_id, created_at`

// Lookup returns the canonical id memberID maps to inside accountEmail's
// scope. Explicit MemberAlias rows win; otherwise a legacy alias of the
// scope's own account maps to that account's member id.
func (s *AliasStore) Lookup(ctx context.Context, accountEmail, memberID string) (string, bool, error) {
	var canonical string
	err := s.db.QueryRowContext(ctx,
		`SELECT canonical_member_id FROM member_aliases WHERE account_email = ? AND alias_member_id = ?`,
		accountEmail, memberID,
	).Scan(&canonical)
	if err == nil {
		return canonical, true, nil
	}
	if err != sql.ErrNoRows {
		return "", false, fmt.Errorf("lookup alias: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT a.member_id FROM accounts a
		 JOIN account_aliases aa ON aa.account_id = a.id
		 WHERE a.email = ? AND aa.member_id = ? AND a.member_id != ''`,
		accountEmail, memberID,
	).Scan(&canonical)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup account alias: %w", err)
	}
	return canonical, true, nil
}

// Create writes the alias. An existing alias with the same id is re-pointed
// at canonicalID; callers check for that case first.
func (s *AliasStore) Create(ctx context.Context, accountEmail, aliasID, canonicalID string) (*model.MemberAlias, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO member_aliases (account_email, alias_member_id, canonical_member_id) VALUES (?, ?, ?)
		 ON CONFLICT (account_email, alias_member_id) DO UPDATE SET canonical_member_id = excluded.canonical_member_id`,
		accountEmail, aliasID, canonicalID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert alias: %w", err)
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+aliasCols+` FROM member_aliases WHERE account_email = ? AND alias_member_id = ?`,
		accountEmail, aliasID,
	)
	return scanAlias(row)
}

func (s *AliasStore) List(ctx context.Context, accountEmail string) ([]model.MemberAlias, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+aliasCols+` FROM member_aliases WHERE account_email = ? ORDER BY alias_member_id`,
		accountEmail,
	)
	if err != nil {
		return nil, fmt.Errorf("list aliases: %w", err)
	}
	defer rows.Close()

	var aliases []model.MemberAlias
	for rows.Next() {
		a, err := scanAlias(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alias: %w", err)
		}
		aliases = append(aliases, *a)
	}
	return aliases, rows.Err()
}

// Repoint moves every alias targeting from so it targets to instead.
func (s *AliasStore) Repoint(ctx context.Context, accountEmail, from, to string) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE member_aliases SET canonical_member_id = ? WHERE account_email = ? AND canonical_member_id = ?`,
		to, accountEmail, from,
	)
	if err != nil {
		return 0, fmt.Errorf("repoint aliases: %w", err)
	}
	return result.RowsAffected()
}

// DeletePointingAt removes accountEmail's aliases whose canonical id is
// canonicalID. Other accounts' aliases are never touched.
func (s *AliasStore) DeletePointingAt(ctx context.Context, accountEmail, canonicalID string) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM member_aliases WHERE account_email = ? AND canonical_member_id = ?`,
		accountEmail, canonicalID,
	)
	if err != nil {
		return 0, fmt.Errorf("delete aliases: %w", err)
	}
	return result.RowsAffected()
}

func (s *AliasStore) DeleteAll(ctx context.Context, accountEmail string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM member_aliases WHERE account_email = ?`, accountEmail)
	if err != nil {
		return 0, fmt.Errorf("delete all aliases: %w", err)
	}
	return result.RowsAffected()
}
