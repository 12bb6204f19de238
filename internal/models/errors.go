package models

import "errors"

// ConfigError reports an invalid or incomplete configuration.
type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}

// Input errors rejected synchronously, before any ledger row is written.
var (
	ErrGroupNotFound        = errors.New("group not found")
	ErrGroupNameTaken       = errors.New("a group with this name already exists")
	ErrGroupHasNoMembers    = errors.New("group has no members")
	ErrRecipientNotFound    = errors.New("recipient not found")
	ErrRecipientExists      = errors.New("a recipient with this telegram id already exists")
	ErrTemplateNotFound     = errors.New("template not found")
	ErrTemplateNameTaken    = errors.New("a template with this name already exists in the group")
	ErrTemplateNameRequired = errors.New("template name is required")
	ErrTemplateNoBodies     = errors.New("template must contain at least one non-empty message body")
	ErrNotPrivateChat       = errors.New("chat id does not refer to a private conversation")
	ErrEntryAlreadyResolved = errors.New("ledger entry already resolved")
)
