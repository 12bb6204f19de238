package models

// Config is the application configuration, loaded from a JSON file with
// environment overrides. The bot token is intentionally absent: it only
// ever comes from the environment.
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Database  DatabaseConfig  `json:"database"`
	Dispatch  DispatchConfig  `json:"dispatch"`
	Retention RetentionConfig `json:"retention"`
	Server    ServerConfig    `json:"server"`
	Tracing   TracingConfig   `json:"tracing"`
	LogLevel  string          `json:"logLevel"`
}

type TelegramConfig struct {
	APIBaseURL   string `json:"apiBaseUrl"`
	UpdatesLimit int    `json:"updatesLimit"`
}

type DatabaseConfig struct {
	Path string `json:"path"`
}

// DispatchConfig carries the rate-limit and retry policy. The policy is
// purely time-based (batch size plus inter-batch pause), which keeps
// behavior deterministic but is not a guarantee against provider-side
// throttling.
type DispatchConfig struct {
	BatchSize         int `json:"batchSize"`
	BatchPauseSec     int `json:"batchPauseSec"`
	MaxAttempts       int `json:"maxAttempts"`
	RetryBaseDelaySec int `json:"retryBaseDelaySec"`
	RetryMaxDelaySec  int `json:"retryMaxDelaySec"`
	LedgerPageSize    int `json:"ledgerPageSize"`
}

type RetentionConfig struct {
	Enabled       bool `json:"enabled"`
	Days          int  `json:"days"`
	IntervalHours int  `json:"intervalHours"`
}

type ServerConfig struct {
	Port            int `json:"port"`
	ReadTimeoutSec  int `json:"readTimeoutSec"`
	WriteTimeoutSec int `json:"writeTimeoutSec"`
	IdleTimeoutSec  int `json:"idleTimeoutSec"`
}

type TracingConfig struct {
	Enabled      bool    `json:"enabled"`
	ServiceName  string  `json:"serviceName"`
	Environment  string  `json:"environment"`
	OTLPEndpoint string  `json:"otlpEndpoint"`
	SampleRate   float64 `json:"sampleRate"`
	UseStdout    bool    `json:"useStdout"`
}
