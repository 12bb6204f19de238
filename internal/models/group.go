package models

import "time"

// Group is a named collection of recipients. Groups own their
// membership list and templates; deleting a group cascades to both and
// to the group's ledger rows.
type Group struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	MemberCount int       `json:"member_count"`
}
