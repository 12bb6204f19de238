package config

import (
	"encoding/json"
	"os"
	"strconv"

	"tgdispatch/internal/constants"
	"tgdispatch/internal/models"

	"github.com/joho/godotenv"
)

var (
	ErrMissingDBPath = models.ConfigError{Message: "missing database path"}
	ErrMissingToken  = models.ConfigError{Message: "missing bot token (set TELEGRAM_BOT_TOKEN)"}
)

// LoadConfig reads the JSON configuration file, applies defaults and
// environment overrides, and validates the result. A .env file in the
// working directory is loaded first if present; real environment
// variables win over .env values.
func LoadConfig(path string) (*models.Config, error) {
	// Missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyDefaults(&config)
	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// BotToken returns the provider credential. It lives only in the
// environment so that config files can be committed without secrets.
func BotToken() string {
	return os.Getenv("TELEGRAM_BOT_TOKEN")
}

func applyDefaults(c *models.Config) {
	if c.Dispatch.BatchSize <= 0 {
		c.Dispatch.BatchSize = constants.DefaultBatchSize
	}
	if c.Dispatch.BatchPauseSec <= 0 {
		c.Dispatch.BatchPauseSec = constants.DefaultBatchPauseSec
	}
	if c.Dispatch.MaxAttempts <= 0 {
		c.Dispatch.MaxAttempts = constants.DefaultSendMaxAttempts
	}
	if c.Dispatch.RetryBaseDelaySec <= 0 {
		c.Dispatch.RetryBaseDelaySec = constants.DefaultRetryBaseDelaySec
	}
	if c.Dispatch.RetryMaxDelaySec <= 0 {
		c.Dispatch.RetryMaxDelaySec = constants.DefaultRetryMaxDelaySec
	}
	if c.Dispatch.LedgerPageSize <= 0 {
		c.Dispatch.LedgerPageSize = constants.DefaultLedgerPageSize
	}
	if c.Telegram.UpdatesLimit <= 0 {
		c.Telegram.UpdatesLimit = constants.DefaultUpdatesPageLimit
	}
	if c.Retention.Days <= 0 {
		c.Retention.Days = constants.DefaultLedgerRetentionDays
	}
	if c.Retention.IntervalHours <= 0 {
		c.Retention.IntervalHours = constants.CleanupSchedulerIntervalHours
	}
	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = constants.DefaultServerReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = constants.DefaultServerWriteTimeoutSec
	}
	if c.Server.IdleTimeoutSec <= 0 {
		c.Server.IdleTimeoutSec = constants.DefaultServerIdleTimeoutSec
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "tgdispatch"
	}
}

func applyEnvironmentOverrides(c *models.Config) {
	if url := os.Getenv("TELEGRAM_API_URL"); url != "" {
		c.Telegram.APIBaseURL = url
	}
	if path := os.Getenv("DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil && p > 0 {
			c.Server.Port = p
		}
	}
}

func validate(c *models.Config) error {
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}
	if BotToken() == "" {
		return ErrMissingToken
	}
	return nil
}
