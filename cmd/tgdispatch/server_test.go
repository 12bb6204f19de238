package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"tgdispatch/internal/database"
	"tgdispatch/internal/models"
	"tgdispatch/internal/service"
	"tgdispatch/pkg/telegram/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	sendErr error
}

func (s *stubClient) SendMessage(ctx context.Context, chatID, text string) (*types.SendResult, error) {
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	return &types.SendResult{OK: true, MessageID: "msg-" + chatID}, nil
}

func (s *stubClient) GetChatInfo(ctx context.Context, chatID string) (*types.Chat, error) {
	if chatID == "-100" {
		return &types.Chat{ID: -100, Type: "supergroup", Title: "A Group"}, nil
	}
	return &types.Chat{ID: 100, Type: types.ChatTypePrivate, FirstName: "Alice", Username: "alice"}, nil
}

func (s *stubClient) GetRecentEvents(ctx context.Context, limit int, offset *int64) ([]types.Update, error) {
	return nil, nil
}

func (s *stubClient) CheckConnectivity(ctx context.Context) (*types.User, error) {
	return &types.User{ID: 1, IsBot: true, Username: "dispatch_bot"}, nil
}

func newTestServer(t *testing.T, client types.Client) (*Server, *database.Database) {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	ledger := service.NewLedger(db, 50)
	dispatcher := service.NewDispatcher(db, ledger, client, service.DispatcherConfig{
		BatchSize:      5,
		BatchPause:     time.Millisecond,
		MaxAttempts:    1,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  time.Millisecond,
	}, logger)
	directory := service.NewDirectory(db, client, logger)
	templates := service.NewTemplates(db)
	dispatcher.SetTemplateExpander(templates)

	cfg := models.ServerConfig{Port: 0, ReadTimeoutSec: 15, WriteTimeoutSec: 15, IdleTimeoutSec: 60}
	return NewServer(cfg, db, client, dispatcher, ledger, directory, templates, logger), db
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t, &stubClient{})

	rec := doJSON(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestConnectivityEndpoint(t *testing.T) {
	s, _ := newTestServer(t, &stubClient{})

	rec := doJSON(t, s, http.MethodGet, "/api/v1/connectivity", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var bot types.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bot))
	assert.Equal(t, "dispatch_bot", bot.Username)
}

func TestGroupLifecycle(t *testing.T) {
	s, _ := newTestServer(t, &stubClient{})

	rec := doJSON(t, s, http.MethodPost, "/api/v1/groups", map[string]string{
		"name":        "announcements",
		"description": "weekly",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var group models.Group
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &group))
	assert.Equal(t, "announcements", group.Name)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/groups", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Duplicate name conflicts.
	rec = doJSON(t, s, http.MethodPost, "/api/v1/groups", map[string]string{"name": "announcements"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, s, http.MethodDelete, fmt.Sprintf("/api/v1/groups/%d", group.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/v1/groups/%d", group.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddMemberEndpoint(t *testing.T) {
	s, db := newTestServer(t, &stubClient{})
	ctx := context.Background()

	group, err := db.CreateGroup(ctx, "announcements", "")
	require.NoError(t, err)
	alice, err := db.CreateRecipient(ctx, &models.Recipient{TelegramID: "100", FirstName: "Alice", DisplayName: "Alice"})
	require.NoError(t, err)

	rec := doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/v1/groups/%d/members", group.ID), map[string]interface{}{
		"recipient_id": alice.ID,
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/v1/groups/%d/members", group.ID), map[string]interface{}{
		"recipient_id": int64(999),
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/groups/999/members", map[string]interface{}{
		"recipient_id": alice.ID,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddRecipientByChatID(t *testing.T) {
	s, _ := newTestServer(t, &stubClient{})

	rec := doJSON(t, s, http.MethodPost, "/api/v1/recipients", map[string]string{"chat_id": "100"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var recipient models.Recipient
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recipient))
	assert.Equal(t, "100", recipient.TelegramID)
	assert.Equal(t, "Alice", recipient.DisplayName)

	// Non-private chats are rejected.
	rec = doJSON(t, s, http.MethodPost, "/api/v1/recipients", map[string]string{"chat_id": "-100"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDispatchEndpoint(t *testing.T) {
	s, db := newTestServer(t, &stubClient{})
	ctx := context.Background()

	group, err := db.CreateGroup(ctx, "announcements", "")
	require.NoError(t, err)
	alice, err := db.CreateRecipient(ctx, &models.Recipient{TelegramID: "100", FirstName: "Alice", DisplayName: "Alice"})
	require.NoError(t, err)
	require.NoError(t, db.AddGroupMember(ctx, group.ID, alice.ID))

	rec := doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/v1/groups/%d/dispatch", group.ID), map[string]interface{}{
		"messages": []map[string]interface{}{
			{"recipient_id": alice.ID, "body": "hello"},
			{"recipient_id": alice.ID, "body": "  "},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var report models.DispatchReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 1, report.Skipped)

	// The ledger recorded the delivery.
	rec = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/v1/groups/%d/ledger", group.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var page models.LedgerPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Total)

	rec = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/v1/groups/%d/ledger/stats", group.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats models.LedgerStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Sent)
	assert.Equal(t, float64(100), stats.SuccessRate)
}

func TestDispatchEmptyGroupRejected(t *testing.T) {
	s, db := newTestServer(t, &stubClient{})

	group, err := db.CreateGroup(context.Background(), "empty", "")
	require.NoError(t, err)

	rec := doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/v1/groups/%d/dispatch", group.ID), map[string]interface{}{
		"messages": []map[string]interface{}{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDispatchUnknownGroup(t *testing.T) {
	s, _ := newTestServer(t, &stubClient{})

	rec := doJSON(t, s, http.MethodPost, "/api/v1/groups/999/dispatch", map[string]interface{}{
		"messages": []map[string]interface{}{},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTemplateEndpoints(t *testing.T) {
	s, db := newTestServer(t, &stubClient{})
	ctx := context.Background()

	group, err := db.CreateGroup(ctx, "announcements", "")
	require.NoError(t, err)
	alice, err := db.CreateRecipient(ctx, &models.Recipient{TelegramID: "100", FirstName: "Alice", DisplayName: "Alice"})
	require.NoError(t, err)
	require.NoError(t, db.AddGroupMember(ctx, group.ID, alice.ID))

	rec := doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/v1/groups/%d/templates", group.ID), map[string]interface{}{
		"name": "weekly",
		"messages": []map[string]interface{}{
			{"recipient_id": alice.ID, "body": "hello alice"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var template models.MessageTemplate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &template))

	rec = doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/v1/templates/%d/dispatch", template.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var report models.DispatchReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 1, report.Sent)

	rec = doJSON(t, s, http.MethodDelete, fmt.Sprintf("/api/v1/templates/%d", template.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/v1/templates/%d/dispatch", template.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTemplateCreateValidationErrors(t *testing.T) {
	s, db := newTestServer(t, &stubClient{})

	group, err := db.CreateGroup(context.Background(), "announcements", "")
	require.NoError(t, err)

	rec := doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/v1/groups/%d/templates", group.ID), map[string]interface{}{
		"name":     "empty",
		"messages": []map[string]interface{}{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
