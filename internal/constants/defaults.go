package constants

// Default dispatch configuration values
const (
	DefaultBatchSize           = 5
	DefaultBatchPauseSec       = 1
	DefaultSendMaxAttempts     = 3
	DefaultRetryBaseDelaySec   = 1
	DefaultRetryMaxDelaySec    = 30
	DefaultLedgerPageSize      = 50
	DefaultLedgerRetentionDays = 90
)

// Default provider timeout values
const (
	DefaultSendTimeoutSec     = 30
	DefaultMetadataTimeoutSec = 10
	DefaultUpdatesPageLimit   = 100
)

// Default server values
const (
	DefaultServerPort            = 8082
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	DefaultGracefulShutdownSec   = 30
)

// Default maintenance values
const (
	CleanupSchedulerIntervalHours = 24
	DefaultDatabaseRetryAttempts  = 3
	DefaultRetryBackoffMs         = 1000
	DefaultMaxBackoffMs           = 60000
)
