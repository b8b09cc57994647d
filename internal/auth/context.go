package auth

import "context"

type contextKey struct{}

// Caller is the authenticated account behind a request. It is always built
// server-side from the verified token and the accounts table, never from
// the request body.
type Caller struct {
	AccountID      string
	Email          string
	MemberID       string
	AliasMemberIDs []string
}

// Identities returns every member id that resolves to the caller.
func (c Caller) Identities() []string {
	ids := make([]string, 0, len(c.AliasMemberIDs)+1)
	if c.MemberID != "" {
		ids = append(ids, c.MemberID)
	}
	return append(ids, c.AliasMemberIDs...)
}

// Is reports whether memberID is one of the caller's identities.
func (c Caller) Is(memberID string) bool {
	if memberID == "" {
		return false
	}
	for _, id := range c.Identities() {
		if id == memberID {
			return true
		}
	}
	return false
}

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

func FromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(contextKey{}).(Caller)
	return c, ok
}

func AccountID(ctx context.Context) string {
	c, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return c.AccountID
}
