package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"tgdispatch/internal/migrations"
	"tgdispatch/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

// Database is the sqlite-backed store for groups, recipients, templates
// and the delivery ledger. Message bodies are optionally encrypted at
// rest; everything else is stored in the clear.
type Database struct {
	db        *sql.DB
	encryptor *encryptor
}

func New(dbPath string) (*Database, error) {
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid database path")
	}

	if dbPath != ":memory:" {
		file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
		if err != nil {
			return nil, fmt.Errorf("failed to create database file: %w", err)
		}
		if err := file.Close(); err != nil {
			return nil, fmt.Errorf("failed to close database file: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	schema, err := migrations.GetInitialSchema()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to read schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	enc, err := newEncryptor()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize encryptor: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	return &Database{db: db, encryptor: enc}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// CreateGroup inserts a group with a unique name and returns it.
func (d *Database) CreateGroup(ctx context.Context, name, description string) (*models.Group, error) {
	res, err := d.db.ExecContext(ctx, insertGroupQuery, name, description)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, models.ErrGroupNameTaken
		}
		return nil, fmt.Errorf("failed to create group: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read group id: %w", err)
	}

	return d.GetGroup(ctx, id)
}

func (d *Database) GetGroup(ctx context.Context, id int64) (*models.Group, error) {
	return d.scanGroup(d.db.QueryRowContext(ctx, selectGroupByIDQuery, id))
}

func (d *Database) GetGroupByName(ctx context.Context, name string) (*models.Group, error) {
	return d.scanGroup(d.db.QueryRowContext(ctx, selectGroupByNameQuery, name))
}

func (d *Database) scanGroup(row *sql.Row) (*models.Group, error) {
	g := &models.Group{}
	err := row.Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt, &g.UpdatedAt, &g.MemberCount)
	if err == sql.ErrNoRows {
		return nil, models.ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan group: %w", err)
	}
	return g, nil
}

func (d *Database) ListGroups(ctx context.Context) ([]models.Group, error) {
	rows, err := d.db.QueryContext(ctx, selectGroupsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []models.Group
	for rows.Next() {
		var g models.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt, &g.UpdatedAt, &g.MemberCount); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// DeleteGroup removes a group and cascades to its membership rows,
// templates (with their messages) and delivery-ledger rows in one
// transaction.
func (d *Database) DeleteGroup(ctx context.Context, id int64) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// template_messages cascade from message_templates, which cascade
	// from groups; delivery_log and group_members cascade directly.
	res, err := tx.ExecContext(ctx, deleteGroupQuery, id)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return models.ErrGroupNotFound
	}

	return tx.Commit()
}

func (d *Database) AddGroupMember(ctx context.Context, groupID, recipientID int64) error {
	if _, err := d.GetGroup(ctx, groupID); err != nil {
		return err
	}
	if _, err := d.GetRecipient(ctx, recipientID); err != nil {
		return err
	}

	if _, err := d.db.ExecContext(ctx, insertGroupMemberQuery, groupID, recipientID); err != nil {
		return fmt.Errorf("failed to add group member: %w", err)
	}
	return nil
}

func (d *Database) RemoveGroupMember(ctx context.Context, groupID, recipientID int64) error {
	if _, err := d.db.ExecContext(ctx, deleteGroupMemberQuery, groupID, recipientID); err != nil {
		return fmt.Errorf("failed to remove group member: %w", err)
	}
	return nil
}

func (d *Database) GetGroupMembers(ctx context.Context, groupID int64) ([]models.Recipient, error) {
	rows, err := d.db.QueryContext(ctx, selectGroupMembersQuery, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list group members: %w", err)
	}
	defer rows.Close()

	return scanRecipients(rows)
}

// CreateRecipient inserts a recipient keyed by its Telegram id.
func (d *Database) CreateRecipient(ctx context.Context, r *models.Recipient) (*models.Recipient, error) {
	res, err := d.db.ExecContext(ctx, insertRecipientQuery,
		r.TelegramID, r.Username, r.FirstName, r.LastName, r.DisplayName, r.LastInteraction)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, models.ErrRecipientExists
		}
		return nil, fmt.Errorf("failed to create recipient: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read recipient id: %w", err)
	}
	return d.GetRecipient(ctx, id)
}

// UpdateRecipientAttributes refreshes the cached profile attributes of
// the recipient with the given Telegram id. Identity never changes,
// and neither does the stored display name: that is set at creation
// (possibly by hand) and a provider snapshot must not overwrite it.
func (d *Database) UpdateRecipientAttributes(ctx context.Context, r *models.Recipient) error {
	res, err := d.db.ExecContext(ctx, updateRecipientQuery,
		r.Username, r.FirstName, r.LastName, r.LastInteraction, r.TelegramID)
	if err != nil {
		return fmt.Errorf("failed to update recipient: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return models.ErrRecipientNotFound
	}
	return nil
}

func (d *Database) DeactivateRecipient(ctx context.Context, id int64) error {
	res, err := d.db.ExecContext(ctx, deactivateRecipientQuery, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate recipient: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return models.ErrRecipientNotFound
	}
	return nil
}

func (d *Database) GetRecipient(ctx context.Context, id int64) (*models.Recipient, error) {
	return scanRecipientRow(d.db.QueryRowContext(ctx, selectRecipientByIDQuery, id))
}

func (d *Database) GetRecipientByTelegramID(ctx context.Context, telegramID string) (*models.Recipient, error) {
	return scanRecipientRow(d.db.QueryRowContext(ctx, selectRecipientByTelegramIDQuery, telegramID))
}

func (d *Database) ListActiveRecipients(ctx context.Context) ([]models.Recipient, error) {
	rows, err := d.db.QueryContext(ctx, selectActiveRecipientsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	defer rows.Close()

	return scanRecipients(rows)
}

func scanRecipientRow(row *sql.Row) (*models.Recipient, error) {
	r := &models.Recipient{}
	err := row.Scan(&r.ID, &r.TelegramID, &r.Username, &r.FirstName, &r.LastName,
		&r.DisplayName, &r.IsActive, &r.CreatedAt, &r.UpdatedAt, &r.LastInteraction)
	if err == sql.ErrNoRows {
		return nil, models.ErrRecipientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan recipient: %w", err)
	}
	return r, nil
}

func scanRecipients(rows *sql.Rows) ([]models.Recipient, error) {
	var recipients []models.Recipient
	for rows.Next() {
		var r models.Recipient
		if err := rows.Scan(&r.ID, &r.TelegramID, &r.Username, &r.FirstName, &r.LastName,
			&r.DisplayName, &r.IsActive, &r.CreatedAt, &r.UpdatedAt, &r.LastInteraction); err != nil {
			return nil, fmt.Errorf("failed to scan recipient: %w", err)
		}
		recipients = append(recipients, r)
	}
	return recipients, rows.Err()
}
