package model

import "github.com/shopspring/decimal"

// ImportBatch is the payload of a bulk import from a client's local data.
// Ids are client-stable; member ids are normalized and alias-resolved on the
// server before anything is persisted.
type ImportBatch struct {
	AccountEmail string         `json:"account_email,omitempty"`
	Friends      []FriendInput  `json:"friends"`
	Groups       []GroupInput   `json:"groups"`
	Expenses     []ExpenseInput `json:"expenses"`
}

type FriendInput struct {
	MemberID string `json:"member_id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	// Client claims about linking are accepted for compatibility and ignored.
	HasLinkedAccount   bool   `json:"has_linked_account,omitempty"`
	LinkedAccountEmail string `json:"linked_account_email,omitempty"`
}

type GroupInput struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	IsDirect bool          `json:"is_direct"`
	Members  []GroupMember `json:"members"`
}

type ExpenseInput struct {
	ID                   string          `json:"id"`
	GroupID              string          `json:"group_id"`
	Description          string          `json:"description"`
	Amount               decimal.Decimal `json:"amount"`
	Currency             string          `json:"currency,omitempty"`
	PaidByMemberID       string          `json:"paid_by_member_id"`
	Splits               []Split         `json:"splits"`
	InvolvedMemberIDs    []string        `json:"involved_member_ids,omitempty"`
	ParticipantMemberIDs []string        `json:"participant_member_ids,omitempty"`
	// Derived server-side; whatever the client sends here is discarded.
	ParticipantEmails  []string `json:"participant_emails,omitempty"`
	LinkedAccountEmail string   `json:"linked_account_email,omitempty"`
	IsSettled          bool     `json:"is_settled,omitempty"`
}
