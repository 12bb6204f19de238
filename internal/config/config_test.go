package config

import (
	"os"
	"path/filepath"
	"testing"

	"tgdispatch/internal/constants"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")

	path := writeConfig(t, `{"database": {"path": "/tmp/dispatch.db"}}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, constants.DefaultBatchSize, cfg.Dispatch.BatchSize)
	assert.Equal(t, constants.DefaultBatchPauseSec, cfg.Dispatch.BatchPauseSec)
	assert.Equal(t, constants.DefaultSendMaxAttempts, cfg.Dispatch.MaxAttempts)
	assert.Equal(t, constants.DefaultLedgerPageSize, cfg.Dispatch.LedgerPageSize)
	assert.Equal(t, constants.DefaultLedgerRetentionDays, cfg.Retention.Days)
	assert.Equal(t, constants.DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, "tgdispatch", cfg.Tracing.ServiceName)
}

func TestLoadConfigKeepsExplicitValues(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")

	path := writeConfig(t, `{
		"database": {"path": "/tmp/dispatch.db"},
		"dispatch": {"batchSize": 10, "batchPauseSec": 2, "maxAttempts": 5},
		"server": {"port": 9000}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Dispatch.BatchSize)
	assert.Equal(t, 2, cfg.Dispatch.BatchPauseSec)
	assert.Equal(t, 5, cfg.Dispatch.MaxAttempts)
	assert.Equal(t, 9000, cfg.Server.Port)
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_API_URL", "http://localhost:8081")
	t.Setenv("DB_PATH", "/tmp/override.db")
	t.Setenv("SERVER_PORT", "9100")

	path := writeConfig(t, `{
		"database": {"path": "/tmp/dispatch.db"},
		"telegram": {"apiBaseUrl": "https://api.telegram.org"},
		"server": {"port": 9000}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8081", cfg.Telegram.APIBaseURL)
	assert.Equal(t, "/tmp/override.db", cfg.Database.Path)
	assert.Equal(t, 9100, cfg.Server.Port)
}

func TestLoadConfigMissingDatabasePath(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("DB_PATH", "")

	path := writeConfig(t, `{}`)

	_, err := LoadConfig(path)
	assert.ErrorIs(t, err, ErrMissingDBPath)
}

func TestLoadConfigMissingToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")

	path := writeConfig(t, `{"database": {"path": "/tmp/dispatch.db"}}`)

	_, err := LoadConfig(path)
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")

	path := writeConfig(t, `{not json`)

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestBotToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	assert.Equal(t, "123:abc", BotToken())
}
