package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tgdispatch/internal/constants"
	"tgdispatch/internal/models"
	"tgdispatch/internal/retry"
	"tgdispatch/pkg/telegram/types"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DirectoryStore defines the group and recipient lookups the dispatcher
// needs before it starts writing ledger rows.
type DirectoryStore interface {
	GetGroup(ctx context.Context, id int64) (*models.Group, error)
	GetGroupMembers(ctx context.Context, groupID int64) ([]models.Recipient, error)
	GetRecipient(ctx context.Context, id int64) (*models.Recipient, error)
}

// DispatcherConfig carries the batching and retry policy. Rate limiting
// is purely time-based: batch size plus inter-batch pause.
type DispatcherConfig struct {
	BatchSize      int
	BatchPause     time.Duration
	MaxAttempts    int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		BatchSize:      constants.DefaultBatchSize,
		BatchPause:     time.Duration(constants.DefaultBatchPauseSec) * time.Second,
		MaxAttempts:    constants.DefaultSendMaxAttempts,
		RetryBaseDelay: time.Duration(constants.DefaultRetryBaseDelaySec) * time.Second,
		RetryMaxDelay:  time.Duration(constants.DefaultRetryMaxDelaySec) * time.Second,
	}
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	def := DefaultDispatcherConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.BatchPause <= 0 {
		c.BatchPause = def.BatchPause
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = def.RetryBaseDelay
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = def.RetryMaxDelay
	}
	return c
}

// Dispatcher fans one dispatch call out into sequential delivery
// attempts, batch by batch, recording every attempt in the ledger.
// Per-attempt failures never abort the call; only input errors that
// make the call meaningless (missing group, no members, unknown
// recipient in the pair list) do.
type Dispatcher struct {
	store    DirectoryStore
	ledger   *Ledger
	client   types.Client
	cfg      DispatcherConfig
	logger   *logrus.Logger
	tracer   trace.Tracer
	backoff  retry.BackoffConfig
	template TemplateExpander
}

// TemplateExpander turns a stored template into dispatch pairs.
// Template-driven dispatch shares the ad hoc code path entirely; only
// the producer of the pair list differs.
type TemplateExpander interface {
	Expand(ctx context.Context, templateID int64) (int64, []models.RecipientMessage, error)
}

func NewDispatcher(store DirectoryStore, ledger *Ledger, client types.Client, cfg DispatcherConfig, logger *logrus.Logger) *Dispatcher {
	cfg = cfg.withDefaults()
	return &Dispatcher{
		store:  store,
		ledger: ledger,
		client: client,
		cfg:    cfg,
		logger: logger,
		tracer: otel.Tracer("tgdispatch/dispatcher"),
		backoff: retry.BackoffConfig{
			BaseDelay:   cfg.RetryBaseDelay,
			MaxDelay:    cfg.RetryMaxDelay,
			MaxAttempts: cfg.MaxAttempts,
		},
	}
}

// SetTemplateExpander wires the template service in after construction;
// the two depend on each other only through this narrow interface.
func (d *Dispatcher) SetTemplateExpander(t TemplateExpander) {
	d.template = t
}

// Dispatch delivers one message per non-blank pair, in input order,
// batch by batch, and returns the aggregated report.
func (d *Dispatcher) Dispatch(ctx context.Context, groupID int64, pairs []models.RecipientMessage) (*models.DispatchReport, error) {
	ctx, span := d.tracer.Start(ctx, "dispatch",
		trace.WithAttributes(attribute.Int64("group.id", groupID), attribute.Int("pairs", len(pairs))))
	defer span.End()

	group, err := d.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group.MemberCount == 0 {
		return nil, models.ErrGroupHasNoMembers
	}

	report := &models.DispatchReport{GroupID: groupID}

	// Blank bodies are skipped by policy: no attempt, no ledger row.
	var work []workItem
	for _, pair := range pairs {
		if strings.TrimSpace(pair.Body) == "" {
			report.Skipped++
			continue
		}
		recipient, err := d.store.GetRecipient(ctx, pair.RecipientID)
		if err != nil {
			// Unknown recipients invalidate the whole call before any
			// ledger row is written.
			return nil, fmt.Errorf("recipient %d: %w", pair.RecipientID, err)
		}
		work = append(work, workItem{recipient: recipient, body: pair.Body})
	}

	d.logger.WithFields(logrus.Fields{
		"groupId":  groupID,
		"group":    group.Name,
		"attempts": len(work),
		"skipped":  report.Skipped,
	}).Info("Starting dispatch")

	for start := 0; start < len(work); start += d.cfg.BatchSize {
		end := start + d.cfg.BatchSize
		if end > len(work) {
			end = len(work)
		}

		for _, item := range work[start:end] {
			detail := d.deliverOne(ctx, groupID, item)
			report.Attempts = append(report.Attempts, detail)
			// Tally as we go so a report cut short by cancellation
			// still accounts for every attempt it lists.
			if detail.Status == models.DeliveryStatusSent {
				report.Sent++
			} else {
				report.Failed++
			}
		}

		// Pause between batches only, never after the last one.
		if end < len(work) {
			select {
			case <-ctx.Done():
				return report, ctx.Err()
			case <-time.After(d.cfg.BatchPause):
			}
		}
	}

	span.SetAttributes(attribute.Int("sent", report.Sent), attribute.Int("failed", report.Failed))
	d.logger.WithFields(logrus.Fields{
		"groupId": groupID,
		"sent":    report.Sent,
		"failed":  report.Failed,
		"skipped": report.Skipped,
	}).Info("Dispatch finished")

	return report, nil
}

// DispatchTemplate expands a saved template into pairs and runs the
// same dispatch path.
func (d *Dispatcher) DispatchTemplate(ctx context.Context, templateID int64) (*models.DispatchReport, error) {
	if d.template == nil {
		return nil, fmt.Errorf("template dispatch is not configured")
	}

	groupID, pairs, err := d.template.Expand(ctx, templateID)
	if err != nil {
		return nil, err
	}

	return d.Dispatch(ctx, groupID, pairs)
}

type workItem struct {
	recipient *models.Recipient
	body      string
}

// deliverOne runs the record -> attempt -> resolve cycle for a single
// pair. The ledger entry is owned exclusively by this attempt until it
// is resolved.
func (d *Dispatcher) deliverOne(ctx context.Context, groupID int64, item workItem) models.AttemptDetail {
	detail := models.AttemptDetail{RecipientID: item.recipient.ID}

	entryID, err := d.ledger.Record(ctx, groupID, item.recipient.ID, item.body)
	if err != nil {
		d.logger.WithError(err).WithField("recipientId", item.recipient.ID).
			Error("Failed to record ledger entry")
		detail.Status = models.DeliveryStatusFailed
		detail.ErrorText = fmt.Sprintf("failed to record ledger entry: %v", err)
		return detail
	}
	detail.EntryID = entryID

	attempt := NewDeliveryAttempt(d.client, retry.NewBackoff(d.backoff), d.logger, item.recipient.TelegramID, item.body)
	outcome := attempt.Run(ctx)

	if err := d.ledger.Resolve(ctx, entryID, outcome); err != nil {
		d.logger.WithError(err).WithField("entryId", entryID).Error("Failed to resolve ledger entry")
	}

	detail.Status = outcome.Status
	detail.ProviderMessageID = outcome.ProviderMessageID
	detail.ErrorText = outcome.ErrorText

	if outcome.Status == models.DeliveryStatusFailed {
		d.logger.WithFields(logrus.Fields{
			"recipientId": item.recipient.ID,
			"calls":       attempt.Calls(),
			"error":       outcome.ErrorText,
		}).Warn("Delivery attempt failed")
	}

	return detail
}
