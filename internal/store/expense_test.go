package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpenseSaveAndLoad(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	ann := createAccount(t, s, "ann@example.com", "ann")
	createGroup(t, s, ann, "trip", "ann", "bob", "carl")
	e := createExpense(t, s, "trip", "fuel", "ann", "ann", "bob", "carl")

	got, err := s.Expenses.GetByID(ctx, "fuel")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"ann", "bob", "carl"}, got.ParticipantMemberIDs)
	require.Len(t, got.Splits, 3)
	assert.Equal(t, e.Splits[1].ID, got.Splits[1].ID, "split ids survive a reload")
	assert.True(t, got.Amount.Equal(e.Amount))

	// Saving again replaces the child rows.
	got.Splits = got.Splits[:2]
	got.ParticipantMemberIDs = []string{"ann", "bob"}
	require.NoError(t, s.Expenses.Save(ctx, got))
	again, err := s.Expenses.GetByID(ctx, "fuel")
	require.NoError(t, err)
	assert.Equal(t, []string{"ann", "bob"}, again.ParticipantMemberIDs)
	assert.Len(t, again.Splits, 2)

	missing, err := s.Expenses.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestExpenseQueries(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	ann := createAccount(t, s, "ann@example.com", "ann")
	bob := createAccount(t, s, "bob@example.com", "bob")
	createGroup(t, s, ann, "trip", "ann", "bob")
	createGroup(t, s, bob, "flat", "bob", "carl")
	createExpense(t, s, "trip", "fuel", "ann", "ann", "bob")
	createExpense(t, s, "flat", "rent", "bob", "bob", "carl")

	owned, err := s.Expenses.ListOwnedBy(ctx, ann.ID)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, "fuel", owned[0].ID)

	withBob, err := s.Expenses.ListByParticipants(ctx, []string{"bob"}, "")
	require.NoError(t, err)
	assert.Len(t, withBob, 2)

	inAnnsGroups, err := s.Expenses.ListByParticipants(ctx, []string{"bob"}, ann.ID)
	require.NoError(t, err)
	require.Len(t, inAnnsGroups, 1)

	n, err := s.Expenses.CountByGroup(ctx, "flat")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.Groups.Delete(ctx, "flat"))
	n, err = s.Expenses.CountByGroup(ctx, "flat")
	require.NoError(t, err)
	assert.Zero(t, n, "expenses go with their group")
}

func TestVisibilityReplace(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	ann := createAccount(t, s, "ann@example.com", "ann")
	bob := createAccount(t, s, "bob@example.com", "bob")
	carl := createAccount(t, s, "carl@example.com", "carl")
	createGroup(t, s, ann, "trip", "ann", "bob", "carl")
	createExpense(t, s, "trip", "fuel", "ann", "ann", "bob", "carl")

	added, removed, err := s.Visibility.Replace(ctx, "fuel", []string{ann.ID, bob.ID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{ann.ID, bob.ID}, added)
	assert.Empty(t, removed)

	added, removed, err = s.Visibility.Replace(ctx, "fuel", []string{ann.ID, carl.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{carl.ID}, added)
	assert.Equal(t, []string{bob.ID}, removed)

	ok, err := s.Visibility.Has(ctx, bob.ID, "fuel")
	require.NoError(t, err)
	assert.False(t, ok)

	forCarl, err := s.Expenses.ListForUser(ctx, carl.ID)
	require.NoError(t, err)
	require.Len(t, forCarl, 1)

	require.NoError(t, s.Accounts.Delete(ctx, carl.ID))
	users, err := s.Visibility.ListUsers(ctx, "fuel")
	require.NoError(t, err)
	assert.Equal(t, []string{ann.ID}, users)
}

func TestGroupListVisible(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	ann := createAccount(t, s, "ann@example.com", "ann")
	bob := createAccount(t, s, "bob@example.com", "bob")
	createGroup(t, s, ann, "a-trip", "ann", "bob")
	createGroup(t, s, ann, "b-solo", "ann", "carl")
	createGroup(t, s, bob, "c-flat", "bob", "dana")

	visible, err := s.Groups.ListVisible(ctx, bob.ID, []string{"bob"})
	require.NoError(t, err)
	var ids []string
	for _, g := range visible {
		ids = append(ids, g.ID)
	}
	assert.Equal(t, []string{"a-trip", "c-flat"}, ids)
	assert.Equal(t, []string{"ann", "bob"}, visible[0].MemberIDs())

	require.NoError(t, s.Groups.RemoveMember(ctx, "a-trip", "bob"))
	g, err := s.Groups.GetByID(ctx, "a-trip")
	require.NoError(t, err)
	assert.Equal(t, []string{"ann"}, g.MemberIDs())
}
