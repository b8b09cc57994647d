package model

import "time"

type Account struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	MemberID       string    `json:"member_id"`
	AliasMemberIDs []string  `json:"alias_member_ids,omitempty"`
	PasswordHash   string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Identities returns the member id and every legacy alias that resolves to
// this account.
func (a *Account) Identities() []string {
	ids := make([]string, 0, len(a.AliasMemberIDs)+1)
	if a.MemberID != "" {
		ids = append(ids, a.MemberID)
	}
	return append(ids, a.AliasMemberIDs...)
}
