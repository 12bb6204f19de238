package models

// RecipientMessage is one (recipient, body) pair submitted to a
// dispatch call.
type RecipientMessage struct {
	RecipientID int64  `json:"recipient_id"`
	Body        string `json:"body"`
}

// AttemptState is the delivery attempt state machine. Terminal states
// are Succeeded and FailedTerminal.
type AttemptState string

const (
	AttemptCreated        AttemptState = "created"
	AttemptSending        AttemptState = "sending"
	AttemptRetrying       AttemptState = "retrying"
	AttemptSucceeded      AttemptState = "succeeded"
	AttemptFailedTerminal AttemptState = "failed"
)

// AttemptDetail is the per-recipient line of a dispatch report.
type AttemptDetail struct {
	RecipientID       int64          `json:"recipient_id"`
	EntryID           int64          `json:"entry_id"`
	Status            DeliveryStatus `json:"status"`
	ProviderMessageID string         `json:"provider_message_id,omitempty"`
	ErrorText         string         `json:"error_text,omitempty"`
}

// DispatchReport summarizes one dispatch call. Skipped counts blank
// bodies, which never become attempts or ledger rows; Sent+Failed always
// equals the number of non-blank pairs, so a caller can tell "nothing to
// send" apart from "everything failed".
type DispatchReport struct {
	GroupID  int64           `json:"group_id"`
	Sent     int             `json:"sent"`
	Failed   int             `json:"failed"`
	Skipped  int             `json:"skipped"`
	Attempts []AttemptDetail `json:"attempts"`
}
