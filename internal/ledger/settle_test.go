package ledger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/splitbook/internal/auth"
	"github.com/dukerupert/splitbook/internal/guard"
	"github.com/dukerupert/splitbook/internal/model"
)

func settleFixture(t *testing.T) (*fixture, *model.Expense) {
	t.Helper()
	f := setupLedger(t)
	owner := f.register(t, "owner@test.com", "owner_member")
	f.register(t, "watcher@test.com", "watcher_member")
	f.register(t, "other@test.com", "other_member")
	f.group(t, owner, "house", false, "owner_member", "watcher_member", "other_member")
	e := f.expense(t, owner, "rent", "house", "owner_member", "90", "owner_member", "watcher_member", "other_member")
	return f, e
}

func caller(t *testing.T, f *fixture, email string) auth.Caller {
	t.Helper()
	a, err := f.st.Accounts.GetByEmail(context.Background(), email)
	require.NoError(t, err)
	require.NotNil(t, a)
	return auth.Caller{AccountID: a.ID, Email: a.Email, MemberID: a.MemberID}
}

func TestSettleSplitRecomputesIsSettled(t *testing.T) {
	f, e := settleFixture(t)
	ctx := context.Background()
	owner := caller(t, f, "owner@test.com")

	for _, m := range []string{"owner_member", "watcher_member"} {
		got, err := f.svc.SettleSplit(ctx, owner, e.ID, m, true)
		require.NoError(t, err)
		assert.False(t, got.IsSettled)
	}
	got, err := f.svc.SettleSplit(ctx, owner, e.ID, "OTHER_MEMBER", true)
	require.NoError(t, err)
	assert.True(t, got.IsSettled)

	stored, err := f.st.Expenses.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsSettled)
	assert.Equal(t, stored.AllSettled(), stored.IsSettled)

	got, err = f.svc.SettleSplit(ctx, owner, e.ID, "watcher_member", false)
	require.NoError(t, err)
	assert.False(t, got.IsSettled)
}

func TestSettleSplitParticipantOwnSplitOnly(t *testing.T) {
	f, e := settleFixture(t)
	ctx := context.Background()
	watcher := caller(t, f, "watcher@test.com")

	got, err := f.svc.SettleSplit(ctx, watcher, e.ID, "watcher_member", true)
	require.NoError(t, err)
	assert.True(t, got.SplitFor("watcher_member").IsSettled)

	_, err = f.svc.SettleSplit(ctx, watcher, e.ID, "other_member", true)
	assert.ErrorIs(t, err, guard.ErrForbidden)

	stored, err := f.st.Expenses.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.False(t, stored.SplitFor("other_member").IsSettled)
}

func TestSettleSplitOutsiderGetsNotFound(t *testing.T) {
	f, e := settleFixture(t)
	outsider := f.register(t, "outsider@test.com", "outsider_member")

	_, err := f.svc.SettleSplit(context.Background(), outsider, e.ID, "outsider_member", true)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.SettleSplit(context.Background(), outsider, "no-such-expense", "x", true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSettleSplitUnknownMember(t *testing.T) {
	f, e := settleFixture(t)
	owner := caller(t, f, "owner@test.com")

	_, err := f.svc.SettleSplit(context.Background(), owner, e.ID, "stranger", true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateExpenseStructuralEditsOwnerOnly(t *testing.T) {
	f, e := settleFixture(t)
	ctx := context.Background()
	watcher := caller(t, f, "watcher@test.com")
	owner := caller(t, f, "owner@test.com")

	desc := "stolen"
	_, err := f.svc.UpdateExpense(ctx, watcher, e.ID, ExpensePatch{
		Description: &desc,
		Settled:     map[string]bool{"watcher_member": true},
	})
	assert.ErrorIs(t, err, guard.ErrForbidden)

	stored, err := f.st.Expenses.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "rent", stored.Description)
	assert.False(t, stored.SplitFor("watcher_member").IsSettled, "a rejected edit applies nothing")

	amount := decimal.RequireFromString("120")
	desc = "rent + utilities"
	got, err := f.svc.UpdateExpense(ctx, owner, e.ID, ExpensePatch{
		Description: &desc,
		Amount:      &amount,
		Splits: []model.Split{
			{MemberID: "owner_member", Amount: decimal.RequireFromString("40")},
			{MemberID: "watcher_member", Amount: decimal.RequireFromString("80")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "rent + utilities", got.Description)
	assert.Equal(t, []string{"owner_member", "watcher_member"}, got.ParticipantMemberIDs)

	users := f.visibleTo(t, e.ID)
	other := caller(t, f, "other@test.com")
	assert.NotContains(t, users, other.AccountID)
}

func TestUpdateExpenseParticipantSettleOnly(t *testing.T) {
	f, e := settleFixture(t)
	watcher := caller(t, f, "watcher@test.com")

	got, err := f.svc.UpdateExpense(context.Background(), watcher, e.ID, ExpensePatch{
		Settled: map[string]bool{"watcher_member": true},
	})
	require.NoError(t, err)
	assert.True(t, got.SplitFor("watcher_member").IsSettled)
	assert.Equal(t, e.SplitFor("watcher_member").ID, got.SplitFor("watcher_member").ID)
}
