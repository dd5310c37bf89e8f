// Package config handles configuration for the session service,
// including defaults, JSON overlay, environment variables and command-line flags.
package config

import "time"

// Config holds runtime settings for the extension session service.
//
// Fields:
//   - EndpointAddrHTTP: bind address for the HTTP server.
//   - StorageDriver: "sqlite", "postgres" or "redis".
//   - DatabaseDSN: file path (sqlite), pgx DSN (postgres) or redis URL.
//   - KeyPrefix: namespace prepended to every storage key.
//   - SweepInterval: how often expired rows are purged.
//   - SessionCookieName: base cookie name; the company id is appended per tenant.
//   - SecretKey: server secret the cookie-signing key is derived from.
//   - InstallSessionTTL: lifetime of a session between install and callback.
//   - Extension*: credentials and endpoints of the platform the extension runs on.
type Config struct {
	EndpointAddrHTTP    string
	StorageDriver       string
	DatabaseDSN         string
	KeyPrefix           string
	SweepInterval       time.Duration
	SessionCookieName   string
	SecretKey           string
	InstallSessionTTL   time.Duration
	ExtensionBaseURL    string
	ExtensionAPIKey     string
	ExtensionAPISecret  string
	ExtensionClusterURL string
	WebhookEmail        string
	LogLevel            string
}

// LoadDefaults populates Config with development defaults.
// NOTE: SecretKey in particular must be overridden in production.
func (c *Config) LoadDefaults() {
	c.EndpointAddrHTTP = ":3000"
	c.StorageDriver = "sqlite"
	c.DatabaseDSN = "session_storage.db"
	c.KeyPrefix = "sqlite_prefix"
	c.SweepInterval = 24 * time.Hour
	c.SessionCookieName = "ext_session"
	c.SecretKey = "your-secret-key"
	c.InstallSessionTTL = 15 * time.Minute
	c.ExtensionBaseURL = "http://localhost:3000"
	c.ExtensionAPIKey = ""
	c.ExtensionAPISecret = ""
	c.ExtensionClusterURL = "https://api.fynd.com"
	c.WebhookEmail = "dev@gofynd.com"
	c.LogLevel = "info"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, the environment and finally command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
