package database

import (
	"context"
	"database/sql"
	"fmt"

	"tgdispatch/internal/models"
)

// CreateTemplate inserts a template and its message rows in one
// transaction. Validation (non-empty bodies, group existence) happens in
// the service layer; the unique (group_id, name) constraint is enforced
// here.
func (d *Database) CreateTemplate(ctx context.Context, template *models.MessageTemplate, messages []models.TemplateMessage) (*models.MessageTemplate, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, insertTemplateQuery, template.GroupID, template.Name, template.Description)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, models.ErrTemplateNameTaken
		}
		return nil, fmt.Errorf("failed to create template: %w", err)
	}

	templateID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read template id: %w", err)
	}

	if err := insertTemplateMessages(ctx, tx, d.encryptor, templateID, messages); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit template: %w", err)
	}

	return d.GetTemplate(ctx, templateID)
}

// ReplaceTemplateMessages swaps all rows of a template atomically:
// delete-all-then-reinsert inside one transaction, so a reader sees the
// old set or the new set but never a mix.
func (d *Database) ReplaceTemplateMessages(ctx context.Context, templateID int64, messages []models.TemplateMessage) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, deleteTemplateMessagesQuery, templateID); err != nil {
		return fmt.Errorf("failed to clear template messages: %w", err)
	}

	if err := insertTemplateMessages(ctx, tx, d.encryptor, templateID, messages); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, touchTemplateQuery, templateID); err != nil {
		return fmt.Errorf("failed to touch template: %w", err)
	}

	return tx.Commit()
}

func insertTemplateMessages(ctx context.Context, tx *sql.Tx, enc *encryptor, templateID int64, messages []models.TemplateMessage) error {
	for i, msg := range messages {
		body, err := enc.Encrypt(msg.Body)
		if err != nil {
			return fmt.Errorf("failed to encrypt template body: %w", err)
		}
		if _, err := tx.ExecContext(ctx, insertTemplateMessageQuery, templateID, msg.RecipientID, body, i); err != nil {
			return fmt.Errorf("failed to insert template message: %w", err)
		}
	}
	return nil
}

func (d *Database) GetTemplate(ctx context.Context, id int64) (*models.MessageTemplate, error) {
	t := &models.MessageTemplate{}
	err := d.db.QueryRowContext(ctx, selectTemplateByIDQuery, id).Scan(
		&t.ID, &t.GroupID, &t.Name, &t.Description, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, models.ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan template: %w", err)
	}
	return t, nil
}

func (d *Database) ListTemplatesByGroup(ctx context.Context, groupID int64) ([]models.MessageTemplate, error) {
	rows, err := d.db.QueryContext(ctx, selectTemplatesByGroupQuery, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var templates []models.MessageTemplate
	for rows.Next() {
		var t models.MessageTemplate
		if err := rows.Scan(&t.ID, &t.GroupID, &t.Name, &t.Description, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// DeactivateTemplate soft-deletes a template. Rows are retained for
// audit until the owning group is deleted.
func (d *Database) DeactivateTemplate(ctx context.Context, id int64) error {
	res, err := d.db.ExecContext(ctx, deactivateTemplateQuery, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate template: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return models.ErrTemplateNotFound
	}
	return nil
}

// GetTemplateMessages returns the template rows in position order.
func (d *Database) GetTemplateMessages(ctx context.Context, templateID int64) ([]models.TemplateMessage, error) {
	rows, err := d.db.QueryContext(ctx, selectTemplateMessagesQuery, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load template messages: %w", err)
	}
	defer rows.Close()

	var messages []models.TemplateMessage
	for rows.Next() {
		var m models.TemplateMessage
		if err := rows.Scan(&m.ID, &m.TemplateID, &m.RecipientID, &m.Body, &m.Position); err != nil {
			return nil, fmt.Errorf("failed to scan template message: %w", err)
		}
		body, err := d.encryptor.Decrypt(m.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt template body: %w", err)
		}
		m.Body = body
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
