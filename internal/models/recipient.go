package models

import (
	"fmt"
	"time"

	"tgdispatch/pkg/telegram/types"
)

// Recipient is a locally cached Telegram identity a message can be sent
// to. TelegramID is the immutable natural key; everything else is a
// display attribute refreshed on sync. Recipients are never deleted,
// only deactivated.
type Recipient struct {
	ID              int64      `json:"id"`
	TelegramID      string     `json:"telegram_id"`
	Username        string     `json:"username"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	DisplayName     string     `json:"display_name"`
	IsActive        bool       `json:"is_active"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	LastInteraction *time.Time `json:"last_interaction,omitempty"`
}

// BestDisplayName resolves the name shown for this recipient, in
// priority order: explicit display name, first+last, first, @username,
// then a fallback built from the Telegram id.
func (r *Recipient) BestDisplayName() string {
	if r.DisplayName != "" {
		return r.DisplayName
	}
	if r.FirstName != "" && r.LastName != "" {
		return r.FirstName + " " + r.LastName
	}
	if r.FirstName != "" {
		return r.FirstName
	}
	if r.Username != "" {
		return "@" + r.Username
	}
	return fmt.Sprintf("User %s", r.TelegramID)
}

// FromTelegramUser fills the cached attributes from a provider identity
// snapshot. The computed display name only seeds new rows; updates of
// existing recipients leave the stored display name alone.
func (r *Recipient) FromTelegramUser(u *types.User) {
	r.TelegramID = fmt.Sprintf("%d", u.ID)
	r.Username = u.Username
	r.FirstName = u.FirstName
	r.LastName = u.LastName
	r.DisplayName = ""
	r.DisplayName = r.BestDisplayName()
}

// FromTelegramChat fills the cached attributes from a private chat
// lookup. Callers must have verified the chat type already.
func (r *Recipient) FromTelegramChat(c *types.Chat) {
	r.TelegramID = fmt.Sprintf("%d", c.ID)
	r.Username = c.Username
	r.FirstName = c.FirstName
	r.LastName = c.LastName
	r.DisplayName = ""
	r.DisplayName = r.BestDisplayName()
}
