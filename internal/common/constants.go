package common

// Environment variable keys
const (
	EnvConfigFile      = "CONFIG_FILE"
	EnvEnsemblePath    = "ENSEMBLE_PATH"
	EnvScalerPath      = "SCALER_PATH"
	EnvBundlePath      = "BUNDLE_PATH"
	EnvBundleVersion   = "BUNDLE_VERSION"
	EnvHTTPPort        = "HTTP_PORT"
	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"
	EnvLogLevel        = "LOG_LEVEL"
	EnvLogFormat       = "LOG_FORMAT"
	EnvMaxBodyBytes    = "MAX_BODY_BYTES"
	EnvRateLimit       = "RATE_LIMIT"
	EnvRateBurst       = "RATE_BURST"
)

// Configuration defaults
const (
	DefaultEnsemblePath    = "models/random_forest_compact.json"
	DefaultScalerPath      = "models/scaler_params.json"
	DefaultHTTPPort        = 8080
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "json"
	DefaultMaxBodyBytes    = 64 << 10
	DefaultReadTimeoutSec  = 10
	DefaultWriteTimeoutSec = 10
	DefaultShutdownSec     = 10
	DefaultRateLimit       = 0 // requests per second, 0 disables
	DefaultRateBurst       = 10
)

// Log formats
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

// Validation constants
const (
	MinHTTPPort     = 1024
	MaxHTTPPort     = 65535
	MinMaxBodyBytes = 1 << 10
	MaxMaxBodyBytes = 16 << 20
	MaxRateLimit    = 100000
	MaxRateBurst    = 100000
)
