package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tgdispatch/internal/constants"
	"tgdispatch/internal/models"
	"tgdispatch/pkg/telegram/types"

	"github.com/sirupsen/logrus"
)

// RecipientStore defines the database operations the directory needs.
type RecipientStore interface {
	GetRecipientByTelegramID(ctx context.Context, telegramID string) (*models.Recipient, error)
	CreateRecipient(ctx context.Context, r *models.Recipient) (*models.Recipient, error)
	UpdateRecipientAttributes(ctx context.Context, r *models.Recipient) error
}

// SyncReport summarizes one directory sync.
type SyncReport struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// Directory reconciles externally observed identities against the local
// recipient store.
//
// Known limitation: the provider exposes no full user list, so
// SyncFromEvents only discovers users who interacted with the bot
// recently. It is a best-effort import, not an inventory.
type Directory struct {
	store     RecipientStore
	client    types.Client
	logger    *logrus.Logger
	pageLimit int
}

func NewDirectory(store RecipientStore, client types.Client, logger *logrus.Logger) *Directory {
	return &Directory{
		store:     store,
		client:    client,
		logger:    logger,
		pageLimit: constants.DefaultUpdatesPageLimit,
	}
}

// SetPageLimit overrides the per-page getUpdates limit.
func (d *Directory) SetPageLimit(limit int) {
	if limit > 0 {
		d.pageLimit = limit
	}
}

// SyncFromEvents derives candidate identities from the events, skipping
// bot identities and deduplicating by provider id (the last event for a
// given id wins), then creates or updates each distinct recipient.
func (d *Directory) SyncFromEvents(ctx context.Context, events []types.Update) (*SyncReport, error) {
	candidates := make(map[int64]*types.User)
	order := make([]int64, 0, len(events))

	for i := range events {
		user := events[i].Originator()
		if user == nil || user.IsBot {
			continue
		}
		if _, seen := candidates[user.ID]; !seen {
			order = append(order, user.ID)
		}
		candidates[user.ID] = user
	}

	report := &SyncReport{}
	now := time.Now().UTC()

	for _, id := range order {
		user := candidates[id]
		candidate := &models.Recipient{LastInteraction: &now}
		candidate.FromTelegramUser(user)

		existing, err := d.store.GetRecipientByTelegramID(ctx, candidate.TelegramID)
		switch {
		case err == nil && existing != nil:
			if err := d.store.UpdateRecipientAttributes(ctx, candidate); err != nil {
				return report, fmt.Errorf("failed to update recipient %s: %w", candidate.TelegramID, err)
			}
			report.Updated++
		case errors.Is(err, models.ErrRecipientNotFound):
			if _, err := d.store.CreateRecipient(ctx, candidate); err != nil {
				return report, fmt.Errorf("failed to create recipient %s: %w", candidate.TelegramID, err)
			}
			report.Created++
		default:
			return report, fmt.Errorf("failed to look up recipient %s: %w", candidate.TelegramID, err)
		}
	}

	d.logger.WithFields(logrus.Fields{
		"events":  len(events),
		"created": report.Created,
		"updated": report.Updated,
	}).Info("Directory sync finished")

	return report, nil
}

// updateOffsets are the getUpdates offsets scanned by ImportRecent. The
// negative offsets ask for progressively older tails of the update
// queue without consuming it.
var updateOffsets = []int64{0, -100, -200, -300, -400, -500}

// ImportRecent scans several pages of recent provider events and syncs
// every identity found. Page fetch failures are logged and skipped so a
// partially unavailable history still imports what it can.
func (d *Directory) ImportRecent(ctx context.Context) (*SyncReport, error) {
	var all []types.Update

	for _, offset := range updateOffsets {
		var offsetArg *int64
		if offset != 0 {
			o := offset
			offsetArg = &o
		}

		updates, err := d.client.GetRecentEvents(ctx, d.pageLimit, offsetArg)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			d.logger.WithError(err).WithField("offset", offset).Warn("Failed to fetch updates page")
			continue
		}
		all = append(all, updates...)
	}

	return d.SyncFromEvents(ctx, all)
}

// AddByChatID looks one chat up by id and registers it as a recipient.
// Only private (one-to-one) conversations qualify; group and channel
// ids are rejected. If the recipient already exists its cached
// attributes are refreshed instead.
func (d *Directory) AddByChatID(ctx context.Context, chatID string) (*models.Recipient, error) {
	chat, err := d.client.GetChatInfo(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up chat %s: %w", chatID, err)
	}

	if chat.Type != types.ChatTypePrivate {
		return nil, models.ErrNotPrivateChat
	}

	now := time.Now().UTC()
	candidate := &models.Recipient{LastInteraction: &now}
	candidate.FromTelegramChat(chat)

	existing, err := d.store.GetRecipientByTelegramID(ctx, candidate.TelegramID)
	if err == nil && existing != nil {
		if err := d.store.UpdateRecipientAttributes(ctx, candidate); err != nil {
			return nil, fmt.Errorf("failed to refresh recipient %s: %w", candidate.TelegramID, err)
		}
		return d.store.GetRecipientByTelegramID(ctx, candidate.TelegramID)
	}
	if !errors.Is(err, models.ErrRecipientNotFound) {
		return nil, fmt.Errorf("failed to look up recipient %s: %w", candidate.TelegramID, err)
	}

	return d.store.CreateRecipient(ctx, candidate)
}
