package types

import "context"

// Client is the provider-facing surface consumed by the dispatch services.
// Implementations classify failures into APIError kinds and never retry;
// retry policy belongs to the delivery attempt.
type Client interface {
	SendMessage(ctx context.Context, chatID, text string) (*SendResult, error)
	GetChatInfo(ctx context.Context, chatID string) (*Chat, error)
	GetRecentEvents(ctx context.Context, limit int, offset *int64) ([]Update, error)
	CheckConnectivity(ctx context.Context) (*User, error)
}
