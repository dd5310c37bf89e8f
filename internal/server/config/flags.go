package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/extsession/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":3000")
//	-k string   storage driver: sqlite | postgres | redis
//	-d string   database DSN
//	-x string   storage key prefix
//	-w int      sweep interval, minutes
//	-n string   session cookie base name
//	-s string   cookie signing secret
//	-i int      install session lifetime, minutes
//	-b string   extension base URL
//	-u string   extension API key
//	-p string   extension API secret
//	-e string   extension cluster URL
//	-m string   webhook contact email
//	-l string   log level
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-k", "-d", "-x", "-w", "-n", "-s", "-i", "-b", "-u", "-p", "-e", "-m", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.StorageDriver, "k", config.StorageDriver, "storage driver (sqlite, postgres, redis)")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.KeyPrefix, "x", config.KeyPrefix, "storage key prefix")

	sweepInterval := fs.Int("w", int(config.SweepInterval.Minutes()), "sweep interval (in minutes)")

	fs.StringVar(&config.SessionCookieName, "n", config.SessionCookieName, "session cookie name")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "cookie signing secret")

	installTTL := fs.Int("i", int(config.InstallSessionTTL.Minutes()), "install session lifetime (in minutes)")

	fs.StringVar(&config.ExtensionBaseURL, "b", config.ExtensionBaseURL, "extension base URL")
	fs.StringVar(&config.ExtensionAPIKey, "u", config.ExtensionAPIKey, "extension API key")
	fs.StringVar(&config.ExtensionAPISecret, "p", config.ExtensionAPISecret, "extension API secret")
	fs.StringVar(&config.ExtensionClusterURL, "e", config.ExtensionClusterURL, "extension cluster URL")
	fs.StringVar(&config.WebhookEmail, "m", config.WebhookEmail, "webhook contact email")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	// Durations are only overwritten when their flag was given.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "w":
			config.SweepInterval = time.Duration(*sweepInterval) * time.Minute
		case "i":
			config.InstallSessionTTL = time.Duration(*installTTL) * time.Minute
		}
	})
}
