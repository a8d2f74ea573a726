// Package config provides configuration loading from environment variables
// with defaults for the sshwatch monitor.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GetEnv returns the value of key from the environment, or defaultValue if unset or empty.
func GetEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return strings.TrimSpace(v)
	}
	return defaultValue
}

// GetEnvInt returns the integer value for key, or defaultValue if unset/invalid.
func GetEnvInt(key string, defaultValue int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return defaultValue
	}
	return n
}

// GetEnvBool returns the boolean value for key, or defaultValue if unset.
// Accepts 1/true/yes in any case; any other value is false.
func GetEnvBool(key string, defaultValue bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

// GetEnvDuration returns the duration for key, or defaultValue if unset/invalid.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultValue
	}
	return d
}

// Config holds all tunables for the monitor, the AI analysis backend, and
// the messaging transport.
type Config struct {
	LogPath           string
	WindowMinutes     int
	ThresholdAttempts int
	PollInterval      time.Duration
	SweepInterval     time.Duration

	NotifyOnSuccess bool
	// SuccessCooldown is the minimum gap between success notifications for
	// the same user@IP. Zero disables the cooldown (every success notifies).
	SuccessCooldown time.Duration

	GeminiAPIKey string
	GeminiAPIURL string

	FonnteToken    string
	FonnteDeviceNo string
	FonnteAPI      string

	HTTPAddr        string
	ShutdownTimeout time.Duration
}

// Default returns config from environment with defaults.
func Default() Config {
	return Config{
		LogPath:           GetEnv("LOG_PATH", "/var/log/auth.log"),
		WindowMinutes:     GetEnvInt("WINDOW_MINUTES", 5),
		ThresholdAttempts: GetEnvInt("THRESHOLD_ATTEMPTS", 5),
		PollInterval:      GetEnvDuration("POLL_INTERVAL", 500*time.Millisecond),
		SweepInterval:     GetEnvDuration("SWEEP_INTERVAL", time.Minute),
		NotifyOnSuccess:   GetEnvBool("NOTIFY_ON_SUCCESS", true),
		SuccessCooldown:   GetEnvDuration("SUCCESS_COOLDOWN", 0),
		GeminiAPIKey:      GetEnv("GEMINI_API_KEY", ""),
		GeminiAPIURL:      GetEnv("GEMINI_API_URL", "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent"),
		FonnteToken:       GetEnv("FONNTE_TOKEN", ""),
		FonnteDeviceNo:    GetEnv("FONNTE_DEVICE_NO", ""),
		FonnteAPI:         GetEnv("FONNTE_API", "https://api.fonnte.com/send"),
		HTTPAddr:          GetEnv("HTTP_ADDR", ":9090"),
		ShutdownTimeout:   GetEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

// Window returns the sliding-window length as a duration.
func (c Config) Window() time.Duration {
	return time.Duration(c.WindowMinutes) * time.Minute
}
