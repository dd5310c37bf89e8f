package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/extsession/internal/flagx"
	"github.com/dmitrijs2005/extsession/internal/timex"
)

// JsonConfig is the on-disk shape of the optional JSON config file. Durations
// use timex.Duration so both "15m" and integer nanoseconds are accepted.
// Only keys present in the file override the current values.
type JsonConfig struct {
	EndpointAddrHTTP    *string         `json:"endpoint_addr_http"`
	StorageDriver       *string         `json:"storage_driver"`
	DatabaseDSN         *string         `json:"database_dsn"`
	KeyPrefix           *string         `json:"key_prefix"`
	SweepInterval       *timex.Duration `json:"sweep_interval"`
	SessionCookieName   *string         `json:"session_cookie_name"`
	SecretKey           *string         `json:"secret_key"`
	InstallSessionTTL   *timex.Duration `json:"install_session_ttl"`
	ExtensionBaseURL    *string         `json:"extension_base_url"`
	ExtensionAPIKey     *string         `json:"extension_api_key"`
	ExtensionAPISecret  *string         `json:"extension_api_secret"`
	ExtensionClusterURL *string         `json:"extension_cluster_url"`
	WebhookEmail        *string         `json:"webhook_email"`
	LogLevel            *string         `json:"log_level"`
}

// parseJson loads the file named by -c/-config (or CONFIG) into config.
// A missing path means nothing to load; an unreadable file or invalid JSON panics,
// since the process cannot start with a half-applied configuration.
func parseJson(config *Config) {
	path := flagx.ConfigPath()
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.StorageDriver, c.StorageDriver)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.KeyPrefix, c.KeyPrefix)
	setString(&config.SessionCookieName, c.SessionCookieName)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.ExtensionBaseURL, c.ExtensionBaseURL)
	setString(&config.ExtensionAPIKey, c.ExtensionAPIKey)
	setString(&config.ExtensionAPISecret, c.ExtensionAPISecret)
	setString(&config.ExtensionClusterURL, c.ExtensionClusterURL)
	setString(&config.WebhookEmail, c.WebhookEmail)
	setString(&config.LogLevel, c.LogLevel)

	if c.SweepInterval != nil {
		config.SweepInterval = c.SweepInterval.Duration
	}
	if c.InstallSessionTTL != nil {
		config.InstallSessionTTL = c.InstallSessionTTL.Duration
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
