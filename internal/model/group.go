package model

import "time"

type Group struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	IsDirect       bool          `json:"is_direct"`
	OwnerAccountID string        `json:"owner_account_id"`
	OwnerEmail     string        `json:"owner_email"`
	Members        []GroupMember `json:"members"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

type GroupMember struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	IsCurrentUser bool   `json:"is_current_user,omitempty"`
}

// MemberIDs returns the member ids in display order.
func (g *Group) MemberIDs() []string {
	ids := make([]string, len(g.Members))
	for i, m := range g.Members {
		ids[i] = m.ID
	}
	return ids
}

// HasMember reports whether any of ids is a member of the group.
func (g *Group) HasMember(ids ...string) bool {
	for _, m := range g.Members {
		for _, id := range ids {
			if m.ID == id {
				return true
			}
		}
	}
	return false
}
