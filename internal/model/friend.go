package model

import "time"

// Friend is an AccountFriend row: one person as seen from one account's
// friend list. MemberID is canonical and unique per AccountEmail.
type Friend struct {
	ID                 string    `json:"id"`
	AccountEmail       string    `json:"account_email"`
	MemberID           string    `json:"member_id"`
	Name               string    `json:"name"`
	Email              string    `json:"email,omitempty"`
	HasLinkedAccount   bool      `json:"has_linked_account"`
	LinkedAccountID    *string   `json:"linked_account_id,omitempty"`
	LinkedAccountEmail *string   `json:"linked_account_email,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

type MemberAlias struct {
	AccountEmail      string    `json:"account_email"`
	AliasMemberID     string    `json:"alias_member_id"`
	CanonicalMemberID string    `json:"canonical_member_id"`
	CreatedAt         time.Time `json:"created_at"`
}
