package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dukerupert/splitbook/internal/auth"
	"github.com/dukerupert/splitbook/internal/model"
)

var (
	owner   = auth.Caller{AccountID: "acct-owner", Email: "owner@test.com", MemberID: "owner_member"}
	member  = auth.Caller{AccountID: "acct-member", Email: "member@test.com", MemberID: "member_id", AliasMemberIDs: []string{"old_member"}}
	outside = auth.Caller{AccountID: "acct-outside", Email: "outside@test.com", MemberID: "outside_member"}
)

func testGroup() *model.Group {
	return &model.Group{
		ID:             "g1",
		OwnerAccountID: "acct-owner",
		OwnerEmail:     "owner@test.com",
		Members: []model.GroupMember{
			{ID: "owner_member", Name: "Owner"},
			{ID: "old_member", Name: "Member"},
		},
	}
}

func TestCheckAccountClaim(t *testing.T) {
	tests := []struct {
		name  string
		claim string
		want  bool
	}{
		{"empty claim", "", true},
		{"own email", "owner@test.com", true},
		{"own email different case", " Owner@Test.COM ", true},
		{"forged email", "victim@test.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckAccountClaim(owner, tt.claim))
		})
	}
}

func TestRequireGroupOwner(t *testing.T) {
	g := testGroup()

	assert.NoError(t, RequireGroupOwner(owner, g))
	assert.ErrorIs(t, RequireGroupOwner(member, g), ErrForbidden)
	assert.ErrorIs(t, RequireGroupOwner(outside, g), ErrNotFound)
	assert.ErrorIs(t, RequireGroupOwner(owner, nil), ErrNotFound)
}

func TestRequireGroupAccessMatchesAliases(t *testing.T) {
	g := testGroup()

	assert.NoError(t, RequireGroupAccess(member, g), "legacy alias in members should grant access")
	assert.ErrorIs(t, RequireGroupAccess(outside, g), ErrNotFound)
}

func TestRequireExpenseAccess(t *testing.T) {
	assert.NoError(t, RequireExpenseAccess(true, false))
	assert.NoError(t, RequireExpenseAccess(false, true))
	assert.ErrorIs(t, RequireExpenseAccess(false, false), ErrNotFound)
}

func TestAuthorizeExpenseEdit(t *testing.T) {
	tests := []struct {
		name    string
		isOwner bool
		own     []string
		edit    ExpenseEdit
		wantErr error
	}{
		{"owner structural", true, nil, ExpenseEdit{Structural: true}, nil},
		{"owner settles anyone", true, nil, ExpenseEdit{Settle: []string{"x", "y"}}, nil},
		{"participant own split", false, []string{"me"}, ExpenseEdit{Settle: []string{"me"}}, nil},
		{"participant other split", false, []string{"me"}, ExpenseEdit{Settle: []string{"me", "you"}}, ErrForbidden},
		{"participant structural", false, []string{"me"}, ExpenseEdit{Structural: true, Settle: []string{"me"}}, ErrForbidden},
		{"participant no-op", false, []string{"me"}, ExpenseEdit{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := AuthorizeExpenseEdit(tt.isOwner, tt.own, tt.edit)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
