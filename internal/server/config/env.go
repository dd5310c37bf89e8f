package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variable names. They match the names the extension platform
// injects into hosted extensions.
const (
	EnvPort                = "FRONTEND_PORT"
	EnvStorageDriver       = "STORAGE_DRIVER"
	EnvDatabaseDSN         = "DATABASE_DSN"
	EnvKeyPrefix           = "STORAGE_KEY_PREFIX"
	EnvSweepInterval       = "SWEEP_INTERVAL"
	EnvSessionCookieName   = "SESSION_COOKIE_NAME"
	EnvSecretKey           = "SECRET_KEY"
	EnvInstallSessionTTL   = "INSTALL_SESSION_TTL"
	EnvExtensionBaseURL    = "EXTENSION_BASE_URL"
	EnvExtensionAPIKey     = "EXTENSION_API_KEY"
	EnvExtensionAPISecret  = "EXTENSION_API_SECRET"
	EnvExtensionClusterURL = "EXTENSION_CLUSTER_URL"
	EnvWebhookEmail        = "WEBHOOK_EMAIL"
	EnvLogLevel            = "LOG_LEVEL"
)

// dotEnvFile is loaded (without overriding already-set variables) before
// the environment is read. A missing file is not an error.
var dotEnvFile = ".env"

func parseEnv(config *Config) {
	_ = godotenv.Load(dotEnvFile)

	if port := envString(EnvPort); port != "" {
		if !strings.HasPrefix(port, ":") {
			port = ":" + port
		}
		config.EndpointAddrHTTP = port
	}

	overrideString(&config.StorageDriver, EnvStorageDriver)
	overrideString(&config.DatabaseDSN, EnvDatabaseDSN)
	overrideString(&config.KeyPrefix, EnvKeyPrefix)
	overrideString(&config.SessionCookieName, EnvSessionCookieName)
	overrideString(&config.SecretKey, EnvSecretKey)
	overrideString(&config.ExtensionBaseURL, EnvExtensionBaseURL)
	overrideString(&config.ExtensionAPIKey, EnvExtensionAPIKey)
	overrideString(&config.ExtensionAPISecret, EnvExtensionAPISecret)
	overrideString(&config.ExtensionClusterURL, EnvExtensionClusterURL)
	overrideString(&config.WebhookEmail, EnvWebhookEmail)
	overrideString(&config.LogLevel, EnvLogLevel)

	overrideDuration(&config.SweepInterval, EnvSweepInterval)
	overrideDuration(&config.InstallSessionTTL, EnvInstallSessionTTL)
}

func envString(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func overrideString(dst *string, key string) {
	if v := envString(key); v != "" {
		*dst = v
	}
}

// overrideDuration ignores unparsable values and keeps the previous setting.
func overrideDuration(dst *time.Duration, key string) {
	v := envString(key)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return
	}
	*dst = d
}
