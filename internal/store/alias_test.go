package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAliasLookup(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.Aliases.Create(ctx, "ann@example.com", "bobby", "bob")
	require.NoError(t, err)

	canonical, ok, err := s.Aliases.Lookup(ctx, "ann@example.com", "bobby")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "bob", canonical)

	_, ok, err = s.Aliases.Lookup(ctx, "carl@example.com", "bobby")
	require.NoError(t, err)
	assert.False(t, ok, "aliases are scoped to one account")

	_, err = s.Aliases.Create(ctx, "ann@example.com", "bob", "bob")
	assert.Error(t, err, "an alias never maps to itself")
}

func TestAliasLookupAccountLegacyID(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	a := createAccount(t, s, "ann@example.com", "ann")
	require.NoError(t, s.Accounts.AddAlias(ctx, a.ID, "ann-old"))

	canonical, ok, err := s.Aliases.Lookup(ctx, "ann@example.com", "ann-old")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ann", canonical)
}

func TestAliasRepointAndDelete(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	for _, alias := range []string{"b1", "b2"} {
		_, err := s.Aliases.Create(ctx, "ann@example.com", alias, "bob")
		require.NoError(t, err)
	}
	_, err := s.Aliases.Create(ctx, "carl@example.com", "b1", "bob")
	require.NoError(t, err)

	n, err := s.Aliases.Repoint(ctx, "ann@example.com", "bob", "robert")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	list, err := s.Aliases.List(ctx, "ann@example.com")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "robert", list[0].CanonicalMemberID)

	n, err = s.Aliases.DeletePointingAt(ctx, "ann@example.com", "robert")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	other, err := s.Aliases.List(ctx, "carl@example.com")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, "bob", other[0].CanonicalMemberID)
}
