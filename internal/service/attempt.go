package service

import (
	"context"
	"errors"
	"fmt"

	"tgdispatch/internal/models"
	"tgdispatch/internal/retry"
	"tgdispatch/pkg/telegram/types"

	"github.com/sirupsen/logrus"
)

// DeliveryAttempt executes one (recipient, body) pair against the
// provider and produces a terminal outcome. It owns the retry policy:
// transport failures are retried with linear backoff, provider
// rejections terminate immediately.
//
// States: Created -> Sending -> Succeeded | Retrying -> Sending | FailedTerminal.
type DeliveryAttempt struct {
	client  types.Client
	backoff *retry.Backoff
	logger  *logrus.Logger

	chatID string
	body   string

	state    models.AttemptState
	calls    int
	resultID string
}

func NewDeliveryAttempt(client types.Client, backoff *retry.Backoff, logger *logrus.Logger, chatID, body string) *DeliveryAttempt {
	return &DeliveryAttempt{
		client:  client,
		backoff: backoff,
		logger:  logger,
		chatID:  chatID,
		body:    body,
		state:   models.AttemptCreated,
	}
}

// State returns the current attempt state; terminal after Run returns.
func (a *DeliveryAttempt) State() models.AttemptState {
	return a.state
}

// Calls returns how many provider calls were issued.
func (a *DeliveryAttempt) Calls() int {
	return a.calls
}

// Run drives the attempt to a terminal state and returns the outcome.
// It never returns a pending status: every failure mode, including a
// panic inside the provider call, converts to a terminal failed outcome
// so one recipient's error cannot stop delivery to the rest of the
// group.
func (a *DeliveryAttempt) Run(ctx context.Context) (outcome models.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			a.state = models.AttemptFailedTerminal
			a.logger.WithFields(logrus.Fields{
				"chatId": a.chatID,
				"panic":  r,
			}).Error("Delivery attempt panicked")
			outcome = models.Outcome{
				Status:    models.DeliveryStatusFailed,
				ErrorText: fmt.Sprintf("internal error: %v", r),
			}
		}
	}()

	err := a.backoff.RetryWithPredicate(ctx, func() error { return a.sendOnce(ctx) }, func(err error) bool {
		var apiErr *types.APIError
		if errors.As(err, &apiErr) {
			if apiErr.IsRetryable() {
				a.state = models.AttemptRetrying
				return true
			}
			return false
		}
		// Cancellation and unexpected errors are not retried.
		return false
	})

	if err != nil {
		a.state = models.AttemptFailedTerminal
		return a.failureOutcome(err)
	}

	a.state = models.AttemptSucceeded
	return models.Outcome{
		Status:            models.DeliveryStatusSent,
		ProviderMessageID: a.resultID,
	}
}

func (a *DeliveryAttempt) sendOnce(ctx context.Context) error {
	a.state = models.AttemptSending
	a.calls++

	result, err := a.client.SendMessage(ctx, a.chatID, a.body)
	if err != nil {
		return err
	}

	a.resultID = result.MessageID
	return nil
}

// failureOutcome builds the terminal failed outcome, preserving the
// provider error code where one exists and keeping the timeout vs
// connection distinction in the error text.
func (a *DeliveryAttempt) failureOutcome(err error) models.Outcome {
	outcome := models.Outcome{Status: models.DeliveryStatusFailed}

	var apiErr *types.APIError
	if errors.As(err, &apiErr) {
		outcome.ErrorCode = apiErr.Code
		switch apiErr.Kind {
		case types.FailureProvider:
			outcome.ErrorText = fmt.Sprintf("provider rejected message (code %d): %s", apiErr.Code, apiErr.Description)
		case types.FailureTimeout:
			outcome.ErrorText = fmt.Sprintf("request timed out after %d attempts", a.calls)
		case types.FailureConnection:
			outcome.ErrorText = fmt.Sprintf("connection failed after %d attempts: %v", a.calls, apiErr.Cause)
		default:
			outcome.ErrorText = apiErr.Error()
		}
		return outcome
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		outcome.ErrorText = fmt.Sprintf("dispatch cancelled: %v", err)
		return outcome
	}

	outcome.ErrorText = err.Error()
	return outcome
}
