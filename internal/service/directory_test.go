package service

import (
	"context"
	"strconv"
	"testing"

	"tgdispatch/internal/models"
	"tgdispatch/pkg/telegram/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRecipientStore is an in-memory recipient directory keyed by
// telegram id.
type fakeRecipientStore struct {
	nextID  int64
	byTGID  map[string]*models.Recipient
	updates int
}

func newFakeRecipientStore() *fakeRecipientStore {
	return &fakeRecipientStore{byTGID: make(map[string]*models.Recipient)}
}

func (f *fakeRecipientStore) GetRecipientByTelegramID(ctx context.Context, telegramID string) (*models.Recipient, error) {
	r, ok := f.byTGID[telegramID]
	if !ok {
		return nil, models.ErrRecipientNotFound
	}
	return r, nil
}

func (f *fakeRecipientStore) CreateRecipient(ctx context.Context, r *models.Recipient) (*models.Recipient, error) {
	if _, exists := f.byTGID[r.TelegramID]; exists {
		return nil, models.ErrRecipientExists
	}
	f.nextID++
	created := *r
	created.ID = f.nextID
	created.IsActive = true
	f.byTGID[r.TelegramID] = &created
	return &created, nil
}

func (f *fakeRecipientStore) UpdateRecipientAttributes(ctx context.Context, r *models.Recipient) error {
	existing, ok := f.byTGID[r.TelegramID]
	if !ok {
		return models.ErrRecipientNotFound
	}
	// Mirrors the real store: the display name set at creation is
	// never overwritten by a refresh.
	existing.Username = r.Username
	existing.FirstName = r.FirstName
	existing.LastName = r.LastName
	f.updates++
	return nil
}

func messageUpdate(updateID, userID int64, firstName string) types.Update {
	return types.Update{
		UpdateID: updateID,
		Message: &types.Message{
			MessageID: updateID,
			From:      &types.User{ID: userID, FirstName: firstName},
			Chat:      types.Chat{ID: userID, Type: types.ChatTypePrivate},
		},
	}
}

func TestSyncFromEventsCreatesRecipients(t *testing.T) {
	store := newFakeRecipientStore()
	d := NewDirectory(store, &fakeClient{}, testLogger())

	report, err := d.SyncFromEvents(context.Background(), []types.Update{
		messageUpdate(1, 100, "Alice"),
		messageUpdate(2, 200, "Bob"),
	})

	require.NoError(t, err)
	assert.Equal(t, 2, report.Created)
	assert.Equal(t, 0, report.Updated)
	assert.Len(t, store.byTGID, 2)
}

func TestSyncFromEventsDeduplicatesLastWins(t *testing.T) {
	store := newFakeRecipientStore()
	d := NewDirectory(store, &fakeClient{}, testLogger())

	report, err := d.SyncFromEvents(context.Background(), []types.Update{
		messageUpdate(1, 100, "Alice"),
		messageUpdate(2, 100, "Alicia"),
	})

	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, "Alicia", store.byTGID["100"].FirstName)
}

func TestSyncFromEventsSkipsBots(t *testing.T) {
	store := newFakeRecipientStore()
	d := NewDirectory(store, &fakeClient{}, testLogger())

	bot := messageUpdate(1, 300, "HelperBot")
	bot.Message.From.IsBot = true

	report, err := d.SyncFromEvents(context.Background(), []types.Update{
		bot,
		messageUpdate(2, 100, "Alice"),
	})

	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	assert.NotContains(t, store.byTGID, "300")
}

func TestSyncFromEventsUpdatesExisting(t *testing.T) {
	store := newFakeRecipientStore()
	_, err := store.CreateRecipient(context.Background(), &models.Recipient{TelegramID: "100", FirstName: "Alice"})
	require.NoError(t, err)

	d := NewDirectory(store, &fakeClient{}, testLogger())
	report, err := d.SyncFromEvents(context.Background(), []types.Update{
		messageUpdate(1, 100, "Alicia"),
	})

	require.NoError(t, err)
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, "Alicia", store.byTGID["100"].FirstName)
}

func TestSyncFromEventsKeepsExplicitDisplayName(t *testing.T) {
	store := newFakeRecipientStore()
	_, err := store.CreateRecipient(context.Background(), &models.Recipient{
		TelegramID:  "100",
		FirstName:   "Ada",
		DisplayName: "The Boss",
	})
	require.NoError(t, err)

	d := NewDirectory(store, &fakeClient{}, testLogger())
	update := messageUpdate(1, 100, "Ada")
	update.Message.From.LastName = "Lovelace"

	report, err := d.SyncFromEvents(context.Background(), []types.Update{update})

	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, "Lovelace", store.byTGID["100"].LastName)
	assert.Equal(t, "The Boss", store.byTGID["100"].DisplayName)
}

func TestSyncFromEventsIgnoresSenderlessUpdates(t *testing.T) {
	store := newFakeRecipientStore()
	d := NewDirectory(store, &fakeClient{}, testLogger())

	report, err := d.SyncFromEvents(context.Background(), []types.Update{
		{UpdateID: 1},
	})

	require.NoError(t, err)
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 0, report.Updated)
}

func TestImportRecentScansAllOffsets(t *testing.T) {
	store := newFakeRecipientStore()

	var seenOffsets []*int64
	client := &fakeClient{
		eventFn: func(ctx context.Context, limit int, offset *int64) ([]types.Update, error) {
			seenOffsets = append(seenOffsets, offset)
			return []types.Update{messageUpdate(1, 100, "Alice")}, nil
		},
	}

	d := NewDirectory(store, client, testLogger())
	report, err := d.ImportRecent(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	require.Len(t, seenOffsets, len(updateOffsets))
	assert.Nil(t, seenOffsets[0])
	for i, offset := range updateOffsets[1:] {
		require.NotNil(t, seenOffsets[i+1])
		assert.Equal(t, offset, *seenOffsets[i+1])
	}
}

func TestImportRecentSkipsFailedPages(t *testing.T) {
	store := newFakeRecipientStore()

	page := 0
	client := &fakeClient{
		eventFn: func(ctx context.Context, limit int, offset *int64) ([]types.Update, error) {
			page++
			if page%2 == 0 {
				return nil, &types.APIError{Kind: types.FailureConnection}
			}
			return []types.Update{messageUpdate(int64(page), int64(100 + page), "User" + strconv.Itoa(page))}, nil
		},
	}

	d := NewDirectory(store, client, testLogger())
	report, err := d.ImportRecent(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, report.Created)
}

func TestAddByChatIDCreatesPrivateChat(t *testing.T) {
	store := newFakeRecipientStore()
	client := &fakeClient{
		chatFn: func(ctx context.Context, chatID string) (*types.Chat, error) {
			return &types.Chat{ID: 100, Type: types.ChatTypePrivate, FirstName: "Alice", Username: "alice"}, nil
		},
	}

	d := NewDirectory(store, client, testLogger())
	recipient, err := d.AddByChatID(context.Background(), "100")

	require.NoError(t, err)
	assert.Equal(t, "100", recipient.TelegramID)
	assert.Equal(t, "Alice", recipient.DisplayName)
	assert.True(t, recipient.IsActive)
}

func TestAddByChatIDRejectsGroupChat(t *testing.T) {
	client := &fakeClient{
		chatFn: func(ctx context.Context, chatID string) (*types.Chat, error) {
			return &types.Chat{ID: -100, Type: "supergroup", Title: "Some Group"}, nil
		},
	}

	d := NewDirectory(newFakeRecipientStore(), client, testLogger())
	_, err := d.AddByChatID(context.Background(), "-100")

	assert.ErrorIs(t, err, models.ErrNotPrivateChat)
}

func TestAddByChatIDRefreshesExisting(t *testing.T) {
	store := newFakeRecipientStore()
	_, err := store.CreateRecipient(context.Background(), &models.Recipient{TelegramID: "100", FirstName: "Alice"})
	require.NoError(t, err)

	client := &fakeClient{
		chatFn: func(ctx context.Context, chatID string) (*types.Chat, error) {
			return &types.Chat{ID: 100, Type: types.ChatTypePrivate, FirstName: "Alicia"}, nil
		},
	}

	d := NewDirectory(store, client, testLogger())
	recipient, err := d.AddByChatID(context.Background(), "100")

	require.NoError(t, err)
	assert.Equal(t, "Alicia", recipient.FirstName)
	assert.Equal(t, 1, store.updates)
}

func TestAddByChatIDLookupFailure(t *testing.T) {
	client := &fakeClient{
		chatFn: func(ctx context.Context, chatID string) (*types.Chat, error) {
			return nil, &types.APIError{Kind: types.FailureProvider, Code: 400, Description: "chat not found"}
		},
	}

	d := NewDirectory(newFakeRecipientStore(), client, testLogger())
	_, err := d.AddByChatID(context.Background(), "12345")

	require.Error(t, err)
	var apiErr *types.APIError
	assert.ErrorAs(t, err, &apiErr)
}
