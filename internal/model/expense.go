package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Expense struct {
	ID                   string          `json:"id"`
	GroupID              string          `json:"group_id"`
	Description          string          `json:"description"`
	Amount               decimal.Decimal `json:"amount"`
	Currency             string          `json:"currency,omitempty"`
	PaidByMemberID       string          `json:"paid_by_member_id"`
	Splits               []Split         `json:"splits"`
	ParticipantMemberIDs []string        `json:"participant_member_ids"`
	ParticipantEmails    []string        `json:"participant_emails"`
	IsSettled            bool            `json:"is_settled"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

type Split struct {
	ID        string          `json:"id"`
	MemberID  string          `json:"member_id"`
	Amount    decimal.Decimal `json:"amount"`
	IsSettled bool            `json:"is_settled"`
}

// UserExpense is a visibility index row.
type UserExpense struct {
	UserID    string `json:"user_id"`
	ExpenseID string `json:"expense_id"`
}

// AllSettled reports whether every split is settled. An expense without
// splits is never settled.
func (e *Expense) AllSettled() bool {
	if len(e.Splits) == 0 {
		return false
	}
	for _, s := range e.Splits {
		if !s.IsSettled {
			return false
		}
	}
	return true
}

// SplitFor returns the split for memberID, or nil.
func (e *Expense) SplitFor(memberID string) *Split {
	for i := range e.Splits {
		if e.Splits[i].MemberID == memberID {
			return &e.Splits[i]
		}
	}
	return nil
}
