package models

import "time"

// DeliveryStatus is the lifecycle of one ledger entry. An entry starts
// pending and transitions exactly once to sent or failed.
type DeliveryStatus string

const (
	DeliveryStatusPending DeliveryStatus = "pending"
	DeliveryStatusSent    DeliveryStatus = "sent"
	DeliveryStatusFailed  DeliveryStatus = "failed"
)

// DeliveryEntry is the durable record of one delivery attempt. The row
// is inserted before the provider call so a crash mid-call still leaves
// an auditable pending entry.
type DeliveryEntry struct {
	ID                int64          `json:"id"`
	GroupID           int64          `json:"group_id"`
	RecipientID       int64          `json:"recipient_id"`
	Body              string         `json:"body"`
	Status            DeliveryStatus `json:"status"`
	ProviderMessageID string         `json:"provider_message_id,omitempty"`
	ErrorText         string         `json:"error_text,omitempty"`
	SentAt            time.Time      `json:"sent_at"`
}

// Outcome is the terminal result a delivery attempt hands back to the
// ledger. Exactly one of ProviderMessageID or ErrorText is meaningful.
type Outcome struct {
	Status            DeliveryStatus
	ProviderMessageID string
	ErrorCode         int
	ErrorText         string
}

// LedgerFilter narrows a ledger query. GroupID is required; Status and
// RecipientID are optional.
type LedgerFilter struct {
	GroupID     int64
	Status      DeliveryStatus
	RecipientID int64
}

// LedgerPage is one page of query results, newest first.
type LedgerPage struct {
	Entries  []DeliveryEntry `json:"entries"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
	Total    int             `json:"total"`
}

// LedgerStats aggregates delivery outcomes for a group. SuccessRate is
// sent/total*100 rounded to one decimal, and 0 when the group has no
// entries.
type LedgerStats struct {
	Total       int     `json:"total"`
	Sent        int     `json:"sent"`
	Failed      int     `json:"failed"`
	Pending     int     `json:"pending"`
	SuccessRate float64 `json:"success_rate"`
}
