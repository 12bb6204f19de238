package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"tgdispatch/internal/constants"
	"tgdispatch/pkg/telegram/types"

	"github.com/sirupsen/logrus"
)

// Client wraps the Telegram Bot API endpoints the dispatcher needs.
// It issues one HTTP request per call and converts every failure into a
// typed *types.APIError so callers can tell a provider rejection from an
// unreachable network.
type Client struct {
	baseURL    string
	token      string
	sendClient *http.Client
	metaClient *http.Client
	logger     *logrus.Logger
}

const defaultBaseURL = "https://api.telegram.org"

// NewClient builds a client for the given bot token. baseURL may be empty
// to use the production API host. A nil logger defaults to warn level.
func NewClient(baseURL, token string, logger *logrus.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		sendClient: &http.Client{Timeout: time.Duration(constants.DefaultSendTimeoutSec) * time.Second},
		metaClient: &http.Client{Timeout: time.Duration(constants.DefaultMetadataTimeoutSec) * time.Second},
		logger:     logger,
	}
}

func (c *Client) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}

// SendMessage delivers one HTML-formatted text message to a chat. The
// 30s send timeout applies. No retry happens here.
func (c *Client) SendMessage(ctx context.Context, chatID, text string) (*types.SendResult, error) {
	payload := types.SendMessageRequest{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sendMessage payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create sendMessage request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.WithFields(logrus.Fields{
		"chatId": chatID,
		"bytes":  len(text),
	}).Debug("Sending Telegram message")

	env, err := c.do(c.sendClient, req)
	if err != nil {
		var apiErr *types.APIError
		if errors.As(err, &apiErr) && apiErr.Kind == types.FailureProvider {
			// Rejections still produce a structured result so callers can
			// record the code without unwrapping the error chain.
			return &types.SendResult{OK: false, ErrorCode: apiErr.Code, Description: apiErr.Description}, err
		}
		return nil, err
	}

	var msg types.Message
	if err := json.Unmarshal(env.Result, &msg); err != nil {
		return nil, &types.APIError{Kind: types.FailureBadResponse, Cause: err}
	}

	return &types.SendResult{OK: true, MessageID: strconv.FormatInt(msg.MessageID, 10)}, nil
}

// GetChatInfo looks up a single chat. 10s metadata timeout.
func (c *Client) GetChatInfo(ctx context.Context, chatID string) (*types.Chat, error) {
	q := url.Values{}
	q.Set("chat_id", chatID)

	env, err := c.get(ctx, "getChat", q)
	if err != nil {
		return nil, err
	}

	var chat types.Chat
	if err := json.Unmarshal(env.Result, &chat); err != nil {
		return nil, &types.APIError{Kind: types.FailureBadResponse, Cause: err}
	}

	return &chat, nil
}

// GetRecentEvents fetches a page of getUpdates. offset may be nil; a
// negative offset asks for the tail of the update queue, which is the
// only way to scan history without consuming it.
func (c *Client) GetRecentEvents(ctx context.Context, limit int, offset *int64) ([]types.Update, error) {
	if limit <= 0 {
		limit = constants.DefaultUpdatesPageLimit
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("timeout", "0")
	if offset != nil {
		q.Set("offset", strconv.FormatInt(*offset, 10))
	}

	env, err := c.get(ctx, "getUpdates", q)
	if err != nil {
		return nil, err
	}

	var updates []types.Update
	if err := json.Unmarshal(env.Result, &updates); err != nil {
		return nil, &types.APIError{Kind: types.FailureBadResponse, Cause: err}
	}

	return updates, nil
}

// CheckConnectivity calls getMe and returns the bot's own identity.
func (c *Client) CheckConnectivity(ctx context.Context) (*types.User, error) {
	env, err := c.get(ctx, "getMe", nil)
	if err != nil {
		return nil, err
	}

	var self types.User
	if err := json.Unmarshal(env.Result, &self); err != nil {
		return nil, &types.APIError{Kind: types.FailureBadResponse, Cause: err}
	}

	c.logger.WithField("username", self.Username).Debug("Bot connectivity verified")
	return &self, nil
}

func (c *Client) get(ctx context.Context, method string, q url.Values) (*types.Envelope, error) {
	endpoint := c.endpoint(method)
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", method, err)
	}

	return c.do(c.metaClient, req)
}

func (c *Client) do(httpClient *http.Client, req *http.Request) (*types.Envelope, error) {
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	var env types.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, &types.APIError{Kind: types.FailureBadResponse, Cause: err}
	}

	if !env.OK {
		code := env.ErrorCode
		if code == 0 {
			code = resp.StatusCode
		}
		desc := env.Description
		if desc == "" {
			desc = resp.Status
		}
		return nil, &types.APIError{Kind: types.FailureProvider, Code: code, Description: desc}
	}

	return &env, nil
}

// classifyTransportError splits request failures into timeout vs
// connection kinds. The distinction is preserved up the stack because
// only transport failures are retried.
func classifyTransportError(err error) *types.APIError {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return &types.APIError{Kind: types.FailureTimeout, Cause: err}
	case errors.As(err, &netErr) && netErr.Timeout():
		return &types.APIError{Kind: types.FailureTimeout, Cause: err}
	default:
		return &types.APIError{Kind: types.FailureConnection, Cause: err}
	}
}
