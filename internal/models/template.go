package models

import "time"

// MessageTemplate is a saved, reusable set of per-recipient message
// bodies scoped to one group. Name is unique within the group. A
// template is soft-deleted by flipping IsActive; its rows are kept for
// audit until the owning group is deleted.
type MessageTemplate struct {
	ID          int64     `json:"id"`
	GroupID     int64     `json:"group_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TemplateMessage is one (template, recipient, body) row. Position
// defines display and send order. Rows are recreated wholesale on every
// template edit rather than diffed.
type TemplateMessage struct {
	ID          int64  `json:"id"`
	TemplateID  int64  `json:"template_id"`
	RecipientID int64  `json:"recipient_id"`
	Body        string `json:"body"`
	Position    int    `json:"position"`
}
