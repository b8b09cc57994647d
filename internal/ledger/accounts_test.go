package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/splitbook/internal/model"
)

func TestRegisterRejectsDuplicates(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()
	f.register(t, "owner@test.com", "owner_member")

	_, err := f.svc.Register(ctx, "OWNER@test.com", "Other", "other_member", "hash")
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.svc.Register(ctx, "new@test.com", "New", "Owner_Member", "hash")
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.svc.Register(ctx, "broken", "Broken", "", "hash")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestRegisterLinksExistingFriendRows(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()
	owner := f.register(t, "owner@test.com", "owner_member")
	f.friend(t, owner, "pal_member")
	_, err := f.svc.AddFriend(ctx, owner, model.FriendInput{MemberID: "pal_by_email", Email: "pal@test.com"})
	require.NoError(t, err)
	f.group(t, owner, "pair", false, "owner_member", "pal_member")
	f.expense(t, owner, "coffee", "pair", "owner_member", "6", "owner_member", "pal_member")

	pal := f.register(t, "pal@test.com", "pal_member")

	byID, err := f.st.Friends.Get(ctx, owner.Email, "pal_member")
	require.NoError(t, err)
	assert.True(t, byID.HasLinkedAccount)
	byEmail, err := f.st.Friends.Get(ctx, owner.Email, "pal_by_email")
	require.NoError(t, err)
	assert.True(t, byEmail.HasLinkedAccount)

	assert.ElementsMatch(t, []string{owner.AccountID, pal.AccountID}, f.visibleTo(t, "coffee"))
}

func TestSetMemberIDOnce(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()
	late := f.register(t, "late@test.com", "")
	f.register(t, "taken@test.com", "taken_member")

	_, err := f.svc.SetMemberID(ctx, late, "taken_member")
	assert.ErrorIs(t, err, ErrConflict)

	a, err := f.svc.SetMemberID(ctx, late, "Late_Member")
	require.NoError(t, err)
	assert.Equal(t, "late_member", a.MemberID)

	_, err = f.svc.SetMemberID(ctx, late, "late_member")
	assert.NoError(t, err, "setting the same value again is a no-op")

	_, err = f.svc.SetMemberID(ctx, late, "another")
	assert.ErrorIs(t, err, ErrMemberIDImmutable)
}

func TestAddFriend(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()
	owner := f.register(t, "owner@test.com", "owner_member")

	first, err := f.svc.AddFriend(ctx, owner, model.FriendInput{MemberID: "Dana", Name: "Dana"})
	require.NoError(t, err)
	again, err := f.svc.AddFriend(ctx, owner, model.FriendInput{MemberID: "dana"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	_, err = f.svc.AddFriend(ctx, owner, model.FriendInput{MemberID: "owner_member"})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = f.svc.AddFriend(ctx, owner, model.FriendInput{MemberID: "erin", Email: "nope"})
	assert.ErrorAs(t, err, &verr)
}
