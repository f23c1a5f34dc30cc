package cfg

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"churn-predictor/internal/common"
)

// DotEnvFile is loaded before the environment is read when it exists.
// Variables already present in the environment are never overwritten.
const DotEnvFile = ".env"

type Settings struct {
	EnsemblePath    string
	ScalerPath      string
	BundlePath      string
	BundleVersion   string
	HTTPPort        int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	LogLevel        string
	LogFormat       string
	MaxBodyBytes    int64
	RateLimit       float64
	RateBurst       int
}

// UseBundle reports whether artifacts come from the bundle store rather than
// from the two loose JSON files.
func (s Settings) UseBundle() bool {
	return s.BundlePath != ""
}

// Addr is the listen address for the HTTP server.
func (s Settings) Addr() string {
	return ":" + strconv.Itoa(s.HTTPPort)
}

type ConfigFile struct {
	Model struct {
		EnsemblePath  string `yaml:"ensemblePath"`
		ScalerPath    string `yaml:"scalerPath"`
		BundlePath    string `yaml:"bundlePath"`
		BundleVersion string `yaml:"bundleVersion"`
	} `yaml:"model"`

	Server struct {
		Port            int     `yaml:"port"`
		ReadTimeout     string  `yaml:"readTimeout"`
		WriteTimeout    string  `yaml:"writeTimeout"`
		ShutdownTimeout string  `yaml:"shutdownTimeout"`
		MaxBodyBytes    int64   `yaml:"maxBodyBytes"`
		RateLimit       float64 `yaml:"rateLimit"`
		RateBurst       int     `yaml:"rateBurst"`
	} `yaml:"server"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

func Load() (Settings, error) {
	if err := loadDotEnv(DotEnvFile); err != nil {
		return Settings{}, err
	}

	// Try to load from YAML file first
	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
	return loadFromEnv()
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	readTimeout, err := parseDurationOrDefault(config.Server.ReadTimeout, defaultReadTimeout())
	if err != nil {
		return Settings{}, fmt.Errorf("server.readTimeout: %w", err)
	}
	writeTimeout, err := parseDurationOrDefault(config.Server.WriteTimeout, defaultWriteTimeout())
	if err != nil {
		return Settings{}, fmt.Errorf("server.writeTimeout: %w", err)
	}
	shutdownTimeout, err := parseDurationOrDefault(config.Server.ShutdownTimeout, defaultShutdownTimeout())
	if err != nil {
		return Settings{}, fmt.Errorf("server.shutdownTimeout: %w", err)
	}

	// Override with environment variables if they exist
	settings := Settings{
		EnsemblePath:    getEnvOrDefault(common.EnvEnsemblePath, orDefault(config.Model.EnsemblePath, common.DefaultEnsemblePath)),
		ScalerPath:      getEnvOrDefault(common.EnvScalerPath, orDefault(config.Model.ScalerPath, common.DefaultScalerPath)),
		BundlePath:      getEnvOrDefault(common.EnvBundlePath, config.Model.BundlePath),
		BundleVersion:   getEnvOrDefault(common.EnvBundleVersion, config.Model.BundleVersion),
		HTTPPort:        getIntFromEnvOrConfig(common.EnvHTTPPort, config.Server.Port, common.DefaultHTTPPort),
		ReadTimeout:     getDurationOrDefault(common.EnvReadTimeout, readTimeout),
		WriteTimeout:    getDurationOrDefault(common.EnvWriteTimeout, writeTimeout),
		ShutdownTimeout: getDurationOrDefault(common.EnvShutdownTimeout, shutdownTimeout),
		LogLevel:        getEnvOrDefault(common.EnvLogLevel, orDefault(config.Logging.Level, common.DefaultLogLevel)),
		LogFormat:       getEnvOrDefault(common.EnvLogFormat, orDefault(config.Logging.Format, common.DefaultLogFormat)),
		MaxBodyBytes:    getInt64FromEnvOrConfig(common.EnvMaxBodyBytes, config.Server.MaxBodyBytes, common.DefaultMaxBodyBytes),
		RateLimit:       getFloatFromEnvOrConfig(common.EnvRateLimit, config.Server.RateLimit, common.DefaultRateLimit),
		RateBurst:       getIntFromEnvOrConfig(common.EnvRateBurst, config.Server.RateBurst, common.DefaultRateBurst),
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		EnsemblePath:    getEnvOrDefault(common.EnvEnsemblePath, common.DefaultEnsemblePath),
		ScalerPath:      getEnvOrDefault(common.EnvScalerPath, common.DefaultScalerPath),
		BundlePath:      os.Getenv(common.EnvBundlePath), // optional
		BundleVersion:   os.Getenv(common.EnvBundleVersion),
		HTTPPort:        getIntOrDefault(common.EnvHTTPPort, common.DefaultHTTPPort),
		ReadTimeout:     getDurationOrDefault(common.EnvReadTimeout, defaultReadTimeout()),
		WriteTimeout:    getDurationOrDefault(common.EnvWriteTimeout, defaultWriteTimeout()),
		ShutdownTimeout: getDurationOrDefault(common.EnvShutdownTimeout, defaultShutdownTimeout()),
		LogLevel:        getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		LogFormat:       getEnvOrDefault(common.EnvLogFormat, common.DefaultLogFormat),
		MaxBodyBytes:    getInt64OrDefault(common.EnvMaxBodyBytes, common.DefaultMaxBodyBytes),
		RateLimit:       getFloatOrDefault(common.EnvRateLimit, common.DefaultRateLimit),
		RateBurst:       getIntOrDefault(common.EnvRateBurst, common.DefaultRateBurst),
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func defaultReadTimeout() time.Duration {
	return common.DefaultReadTimeoutSec * time.Second
}

func defaultWriteTimeout() time.Duration {
	return common.DefaultWriteTimeoutSec * time.Second
}

func defaultShutdownTimeout() time.Duration {
	return common.DefaultShutdownSec * time.Second
}

func orDefault(v, defaultValue string) string {
	if v != "" {
		return v
	}
	return defaultValue
}

func parseDurationOrDefault(v string, defaultValue time.Duration) (time.Duration, error) {
	if v == "" {
		return defaultValue, nil
	}
	return time.ParseDuration(v)
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getInt64OrDefault(key string, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getFloatFromEnvOrConfig(key string, configValue, defaultValue float64) float64 {
	if configValue != 0 {
		defaultValue = configValue
	}
	return getFloatOrDefault(key, defaultValue)
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if configValue != 0 {
		defaultValue = configValue
	}
	return getIntOrDefault(key, defaultValue)
}

func getInt64FromEnvOrConfig(key string, configValue, defaultValue int64) int64 {
	if configValue != 0 {
		defaultValue = configValue
	}
	return getInt64OrDefault(key, defaultValue)
}

// validateSettings checks every value and reports the first violation.
func validateSettings(settings *Settings) error {
	// Artifact sources
	if !settings.UseBundle() {
		if settings.EnsemblePath == "" {
			return fmt.Errorf("ensemble path cannot be empty")
		}
		if settings.ScalerPath == "" {
			return fmt.Errorf("scaler path cannot be empty")
		}
	}
	if settings.BundleVersion != "" && !settings.UseBundle() {
		return fmt.Errorf("bundle version %q set without a bundle path", settings.BundleVersion)
	}

	if settings.HTTPPort < common.MinHTTPPort || settings.HTTPPort > common.MaxHTTPPort {
		return fmt.Errorf("HTTP port must be between %d and %d, got %d",
			common.MinHTTPPort, common.MaxHTTPPort, settings.HTTPPort)
	}

	// Validate time durations
	if settings.ReadTimeout < time.Second || settings.ReadTimeout > 5*time.Minute {
		return fmt.Errorf("read timeout must be between 1s and 5m, got %v", settings.ReadTimeout)
	}
	if settings.WriteTimeout < time.Second || settings.WriteTimeout > 5*time.Minute {
		return fmt.Errorf("write timeout must be between 1s and 5m, got %v", settings.WriteTimeout)
	}
	if settings.ShutdownTimeout < time.Second || settings.ShutdownTimeout > time.Minute {
		return fmt.Errorf("shutdown timeout must be between 1s and 1m, got %v", settings.ShutdownTimeout)
	}

	if settings.MaxBodyBytes < common.MinMaxBodyBytes || settings.MaxBodyBytes > common.MaxMaxBodyBytes {
		return fmt.Errorf("max body bytes must be between %d and %d, got %d",
			common.MinMaxBodyBytes, common.MaxMaxBodyBytes, settings.MaxBodyBytes)
	}

	// Rate limiting, zero disables
	if settings.RateLimit < 0 || settings.RateLimit > common.MaxRateLimit {
		return fmt.Errorf("rate limit must be between 0 and %d requests/s, got %f",
			common.MaxRateLimit, settings.RateLimit)
	}
	if settings.RateLimit > 0 && (settings.RateBurst < 1 || settings.RateBurst > common.MaxRateBurst) {
		return fmt.Errorf("rate burst must be between 1 and %d, got %d", common.MaxRateBurst, settings.RateBurst)
	}

	// Logging
	if _, err := zerolog.ParseLevel(settings.LogLevel); err != nil || settings.LogLevel == "" {
		return fmt.Errorf("invalid log level %q", settings.LogLevel)
	}
	switch strings.ToLower(settings.LogFormat) {
	case common.LogFormatJSON, common.LogFormatConsole:
	default:
		return fmt.Errorf("log format must be %q or %q, got %q",
			common.LogFormatJSON, common.LogFormatConsole, settings.LogFormat)
	}

	return nil
}
