package types

import "encoding/json"

// User is a Telegram user or bot identity as returned by the API.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// Chat describes a conversation the bot can see. Type is one of
// "private", "group", "supergroup" or "channel".
type Chat struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	Title     string `json:"title,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

const ChatTypePrivate = "private"

// Message is the subset of a Telegram message the dispatcher cares about.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text,omitempty"`
}

// CallbackQuery carries the originator of an inline-keyboard press.
type CallbackQuery struct {
	ID   string `json:"id"`
	From User   `json:"from"`
}

// InlineQuery carries the originator of an inline query.
type InlineQuery struct {
	ID   string `json:"id"`
	From User   `json:"from"`
}

// Update is one entry from getUpdates. Exactly one of the optional
// fields is set per update.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	EditedMessage *Message       `json:"edited_message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
	InlineQuery   *InlineQuery   `json:"inline_query,omitempty"`
}

// Originator returns the user that produced the update, or nil when the
// update type carries no sender.
func (u *Update) Originator() *User {
	switch {
	case u.Message != nil:
		return u.Message.From
	case u.EditedMessage != nil:
		return u.EditedMessage.From
	case u.CallbackQuery != nil:
		return &u.CallbackQuery.From
	case u.InlineQuery != nil:
		return &u.InlineQuery.From
	}
	return nil
}

// SendMessageRequest is the sendMessage POST body.
type SendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

// Envelope is the standard Telegram Bot API response wrapper.
// Result is left raw so each call can decode its own payload.
type Envelope struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
}

// SendResult is the tagged outcome of a sendMessage call. It is never
// collapsed to a bare boolean; callers keep the provider message id on
// success and the provider code and description on rejection.
type SendResult struct {
	OK          bool
	MessageID   string
	ErrorCode   int
	Description string
}
