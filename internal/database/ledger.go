package database

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"tgdispatch/internal/models"
)

// RecordDeliveryEntry appends a pending ledger row and returns its id.
// The row is written before the provider call so a crash mid-call still
// leaves an auditable pending entry.
func (d *Database) RecordDeliveryEntry(ctx context.Context, groupID, recipientID int64, body string) (int64, error) {
	encryptedBody, err := d.encryptor.Encrypt(body)
	if err != nil {
		return 0, fmt.Errorf("failed to encrypt message body: %w", err)
	}

	var entryID int64
	err = retryableDBOperation(ctx, func() error {
		res, execErr := d.db.ExecContext(ctx, insertDeliveryEntryQuery,
			groupID, recipientID, encryptedBody, time.Now().UTC())
		if execErr != nil {
			return execErr
		}
		entryID, execErr = res.LastInsertId()
		return execErr
	}, "record delivery entry")
	if err != nil {
		return 0, err
	}

	return entryID, nil
}

// ResolveDeliveryEntry moves a pending entry to its terminal state,
// exactly once. The update is guarded on status so a second resolve, or
// a resolve racing a concurrent one, fails instead of flipping a
// terminal state.
func (d *Database) ResolveDeliveryEntry(ctx context.Context, entryID int64, outcome models.Outcome) error {
	if outcome.Status != models.DeliveryStatusSent && outcome.Status != models.DeliveryStatusFailed {
		return fmt.Errorf("invalid terminal status %q", outcome.Status)
	}

	var messageID, errorText *string
	if outcome.ProviderMessageID != "" {
		messageID = &outcome.ProviderMessageID
	}
	if outcome.ErrorText != "" {
		errorText = &outcome.ErrorText
	}

	return retryableDBOperation(ctx, func() error {
		res, err := d.db.ExecContext(ctx, resolveDeliveryEntryQuery,
			outcome.Status, messageID, errorText, entryID)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return models.ErrEntryAlreadyResolved
		}
		return nil
	}, "resolve delivery entry")
}

// GetDeliveryEntry loads a single ledger row.
func (d *Database) GetDeliveryEntry(ctx context.Context, entryID int64) (*models.DeliveryEntry, error) {
	e := &models.DeliveryEntry{}
	var messageID, errorText sql.NullString

	err := d.db.QueryRowContext(ctx, selectDeliveryEntryQuery, entryID).Scan(
		&e.ID, &e.GroupID, &e.RecipientID, &e.Body, &e.Status, &messageID, &errorText, &e.SentAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan delivery entry: %w", err)
	}

	e.ProviderMessageID = messageID.String
	e.ErrorText = errorText.String

	body, err := d.encryptor.Decrypt(e.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt message body: %w", err)
	}
	e.Body = body

	return e, nil
}

// QueryDeliveryEntries returns one page of ledger rows matching the
// filter, newest first. page is 1-based.
func (d *Database) QueryDeliveryEntries(ctx context.Context, filter models.LedgerFilter, page, pageSize int) (*models.LedgerPage, error) {
	if page < 1 {
		page = 1
	}

	where := []string{"group_id = ?"}
	args := []interface{}{filter.GroupID}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.RecipientID != 0 {
		where = append(where, "recipient_id = ?")
		args = append(args, filter.RecipientID)
	}
	clause := strings.Join(where, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM delivery_log WHERE " + clause
	if err := d.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count delivery entries: %w", err)
	}

	query := `
		SELECT id, group_id, recipient_id, body, status, provider_message_id, error_text, sent_at
		FROM delivery_log
		WHERE ` + clause + `
		ORDER BY sent_at DESC, id DESC
		LIMIT ? OFFSET ?
	`
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query delivery entries: %w", err)
	}
	defer rows.Close()

	result := &models.LedgerPage{Page: page, PageSize: pageSize, Total: total}
	for rows.Next() {
		var e models.DeliveryEntry
		var messageID, errorText sql.NullString
		if err := rows.Scan(&e.ID, &e.GroupID, &e.RecipientID, &e.Body, &e.Status,
			&messageID, &errorText, &e.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan delivery entry: %w", err)
		}
		e.ProviderMessageID = messageID.String
		e.ErrorText = errorText.String

		body, err := d.encryptor.Decrypt(e.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt message body: %w", err)
		}
		e.Body = body

		result.Entries = append(result.Entries, e)
	}
	return result, rows.Err()
}

// DeliveryStats aggregates outcomes for a group. SuccessRate is rounded
// to one decimal and 0 when the group has no ledger rows.
func (d *Database) DeliveryStats(ctx context.Context, groupID int64) (*models.LedgerStats, error) {
	stats := &models.LedgerStats{}
	err := d.db.QueryRowContext(ctx, deliveryStatsQuery, groupID).Scan(
		&stats.Total, &stats.Sent, &stats.Failed, &stats.Pending)
	if err != nil {
		return nil, fmt.Errorf("failed to compute delivery stats: %w", err)
	}

	if stats.Total > 0 {
		rate := float64(stats.Sent) / float64(stats.Total) * 100
		stats.SuccessRate = math.Round(rate*10) / 10
	}

	return stats, nil
}

// PruneDeliveryEntries deletes ledger rows older than the retention
// window and returns how many were removed.
func (d *Database) PruneDeliveryEntries(ctx context.Context, retentionDays int) (int64, error) {
	res, err := d.db.ExecContext(ctx, pruneDeliveryEntriesQuery, retentionDays)
	if err != nil {
		return 0, fmt.Errorf("failed to prune delivery entries: %w", err)
	}
	return res.RowsAffected()
}
