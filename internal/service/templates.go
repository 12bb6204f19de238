package service

import (
	"context"
	"strings"

	"tgdispatch/internal/models"
)

// TemplateStore defines the database operations the template service
// needs.
type TemplateStore interface {
	GetGroup(ctx context.Context, id int64) (*models.Group, error)
	GetRecipient(ctx context.Context, id int64) (*models.Recipient, error)
	CreateTemplate(ctx context.Context, template *models.MessageTemplate, messages []models.TemplateMessage) (*models.MessageTemplate, error)
	ReplaceTemplateMessages(ctx context.Context, templateID int64, messages []models.TemplateMessage) error
	GetTemplate(ctx context.Context, id int64) (*models.MessageTemplate, error)
	ListTemplatesByGroup(ctx context.Context, groupID int64) ([]models.MessageTemplate, error)
	DeactivateTemplate(ctx context.Context, id int64) error
	GetTemplateMessages(ctx context.Context, templateID int64) ([]models.TemplateMessage, error)
}

// Templates manages saved per-recipient message sets. Bodies are
// validated here; storage enforces name uniqueness and atomic replace.
type Templates struct {
	store TemplateStore
}

func NewTemplates(store TemplateStore) *Templates {
	return &Templates{store: store}
}

// Create validates and saves a new template. At least one non-empty
// body is required; blank rows are dropped, and positions are assigned
// from the surviving submission order.
func (t *Templates) Create(ctx context.Context, groupID int64, name, description string, messages []models.TemplateMessage) (*models.MessageTemplate, error) {
	if _, err := t.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}

	rows, err := t.sanitize(ctx, messages)
	if err != nil {
		return nil, err
	}

	template := &models.MessageTemplate{
		GroupID:     groupID,
		Name:        strings.TrimSpace(name),
		Description: description,
	}
	if template.Name == "" {
		return nil, models.ErrTemplateNameRequired
	}

	return t.store.CreateTemplate(ctx, template, rows)
}

// Update replaces all bodies of an existing template atomically.
func (t *Templates) Update(ctx context.Context, templateID int64, messages []models.TemplateMessage) error {
	if _, err := t.store.GetTemplate(ctx, templateID); err != nil {
		return err
	}

	rows, err := t.sanitize(ctx, messages)
	if err != nil {
		return err
	}

	return t.store.ReplaceTemplateMessages(ctx, templateID, rows)
}

// Delete soft-deletes a template; its rows stay for audit.
func (t *Templates) Delete(ctx context.Context, templateID int64) error {
	return t.store.DeactivateTemplate(ctx, templateID)
}

func (t *Templates) Get(ctx context.Context, templateID int64) (*models.MessageTemplate, error) {
	return t.store.GetTemplate(ctx, templateID)
}

func (t *Templates) ListByGroup(ctx context.Context, groupID int64) ([]models.MessageTemplate, error) {
	if _, err := t.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	return t.store.ListTemplatesByGroup(ctx, groupID)
}

// Messages returns the template rows in position order.
func (t *Templates) Messages(ctx context.Context, templateID int64) ([]models.TemplateMessage, error) {
	if _, err := t.store.GetTemplate(ctx, templateID); err != nil {
		return nil, err
	}
	return t.store.GetTemplateMessages(ctx, templateID)
}

// Expand turns a template into dispatch pairs, preserving row order.
// Implements the dispatcher's TemplateExpander.
func (t *Templates) Expand(ctx context.Context, templateID int64) (int64, []models.RecipientMessage, error) {
	template, err := t.store.GetTemplate(ctx, templateID)
	if err != nil {
		return 0, nil, err
	}

	rows, err := t.store.GetTemplateMessages(ctx, templateID)
	if err != nil {
		return 0, nil, err
	}

	pairs := make([]models.RecipientMessage, 0, len(rows))
	for _, row := range rows {
		pairs = append(pairs, models.RecipientMessage{RecipientID: row.RecipientID, Body: row.Body})
	}

	return template.GroupID, pairs, nil
}

// sanitize drops blank rows, verifies every referenced recipient exists
// and requires at least one surviving body.
func (t *Templates) sanitize(ctx context.Context, messages []models.TemplateMessage) ([]models.TemplateMessage, error) {
	var rows []models.TemplateMessage
	for _, msg := range messages {
		if strings.TrimSpace(msg.Body) == "" {
			continue
		}
		if _, err := t.store.GetRecipient(ctx, msg.RecipientID); err != nil {
			return nil, err
		}
		rows = append(rows, msg)
	}

	if len(rows) == 0 {
		return nil, models.ErrTemplateNoBodies
	}
	return rows, nil
}
