package ledger

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/splitbook/internal/auth"
	"github.com/dukerupert/splitbook/internal/database"
	"github.com/dukerupert/splitbook/internal/metrics"
	"github.com/dukerupert/splitbook/internal/model"
	"github.com/dukerupert/splitbook/internal/store"
)

type notification struct {
	accountIDs []string
	entity     string
	action     string
	id         string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *recordingNotifier) Notify(accountIDs []string, entity, action, id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{accountIDs, entity, action, id})
}

func (n *recordingNotifier) find(entity, action, id string) *notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := range n.sent {
		if n.sent[i].entity == entity && n.sent[i].action == action && n.sent[i].id == id {
			return &n.sent[i]
		}
	}
	return nil
}

type fixture struct {
	svc      *Service
	st       *store.Store
	notifier *recordingNotifier
}

func setupLedger(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	st := store.New(db)
	n := &recordingNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &fixture{svc: NewService(st, metrics.New(), n, logger), st: st, notifier: n}
}

func (f *fixture) register(t *testing.T, email, memberID string) auth.Caller {
	t.Helper()
	name := memberID
	if name == "" {
		name = email
	}
	a, err := f.svc.Register(context.Background(), email, name, memberID, "hash")
	require.NoError(t, err)
	return auth.Caller{AccountID: a.ID, Email: a.Email, MemberID: a.MemberID, AliasMemberIDs: a.AliasMemberIDs}
}

func (f *fixture) friend(t *testing.T, c auth.Caller, memberID string) *model.Friend {
	t.Helper()
	fr, err := f.svc.AddFriend(context.Background(), c, model.FriendInput{MemberID: memberID, Name: memberID})
	require.NoError(t, err)
	return fr
}

func (f *fixture) group(t *testing.T, c auth.Caller, id string, direct bool, members ...string) *model.Group {
	t.Helper()
	in := model.GroupInput{ID: id, Name: id, IsDirect: direct}
	for _, m := range members {
		in.Members = append(in.Members, model.GroupMember{ID: m, Name: m})
	}
	g, err := f.svc.CreateGroup(context.Background(), c, in)
	require.NoError(t, err)
	return g
}

// expense creates an expense paid by payer and split equally between
// members.
func (f *fixture) expense(t *testing.T, c auth.Caller, id, groupID, payer, amount string, members ...string) *model.Expense {
	t.Helper()
	e, err := f.svc.CreateExpense(context.Background(), c, model.ExpenseInput{
		ID:                   id,
		GroupID:              groupID,
		Description:          id,
		Amount:               decimal.RequireFromString(amount),
		PaidByMemberID:       payer,
		ParticipantMemberIDs: members,
	})
	require.NoError(t, err)
	return e
}

func (f *fixture) visibleTo(t *testing.T, expenseID string) []string {
	t.Helper()
	users, err := f.st.Visibility.ListUsers(context.Background(), expenseID)
	require.NoError(t, err)
	return users
}
