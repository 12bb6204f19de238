package service

import (
	"context"

	"tgdispatch/internal/constants"
	"tgdispatch/internal/models"
)

// LedgerStore defines the database operations the ledger needs.
type LedgerStore interface {
	RecordDeliveryEntry(ctx context.Context, groupID, recipientID int64, body string) (int64, error)
	ResolveDeliveryEntry(ctx context.Context, entryID int64, outcome models.Outcome) error
	GetDeliveryEntry(ctx context.Context, entryID int64) (*models.DeliveryEntry, error)
	QueryDeliveryEntries(ctx context.Context, filter models.LedgerFilter, page, pageSize int) (*models.LedgerPage, error)
	DeliveryStats(ctx context.Context, groupID int64) (*models.LedgerStats, error)
}

// Ledger is the durable audit log of delivery attempts. Entries follow
// an append-before-send, update-after-result discipline: Record writes a
// pending row before the provider call, Resolve moves it to a terminal
// state exactly once.
type Ledger struct {
	store    LedgerStore
	pageSize int
}

func NewLedger(store LedgerStore, pageSize int) *Ledger {
	if pageSize <= 0 {
		pageSize = constants.DefaultLedgerPageSize
	}
	return &Ledger{store: store, pageSize: pageSize}
}

// Record appends a pending entry and returns its handle.
func (l *Ledger) Record(ctx context.Context, groupID, recipientID int64, body string) (int64, error) {
	return l.store.RecordDeliveryEntry(ctx, groupID, recipientID, body)
}

// Resolve finishes an entry. A second resolve of the same entry returns
// models.ErrEntryAlreadyResolved and leaves the row unchanged.
func (l *Ledger) Resolve(ctx context.Context, entryID int64, outcome models.Outcome) error {
	return l.store.ResolveDeliveryEntry(ctx, entryID, outcome)
}

// Get loads one entry, or nil when it does not exist.
func (l *Ledger) Get(ctx context.Context, entryID int64) (*models.DeliveryEntry, error) {
	return l.store.GetDeliveryEntry(ctx, entryID)
}

// Query returns one page of entries matching the filter, newest first.
func (l *Ledger) Query(ctx context.Context, filter models.LedgerFilter, page int) (*models.LedgerPage, error) {
	return l.store.QueryDeliveryEntries(ctx, filter, page, l.pageSize)
}

// Stats aggregates outcomes for a group.
func (l *Ledger) Stats(ctx context.Context, groupID int64) (*models.LedgerStats, error) {
	return l.store.DeliveryStats(ctx, groupID)
}
