// Package config handles configuration for backupd, including defaults,
// a JSON or YAML file overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for backupd.
//
// Fields:
//   - ListenAddr: bind address for the HTTP API.
//   - DatabaseDSN: PostgreSQL DSN (pgx). Empty keeps blobs in memory.
//   - SecretKey: HMAC secret shared with the devices. Do not use the default in prod.
//   - Owner: namespace the blobs are stored under.
//   - MaxBlobBytes: upper bound for an uploaded blob.
//   - ShutdownTimeout: grace period for in-flight requests on shutdown.
type Config struct {
	ListenAddr      string
	DatabaseDSN     string
	SecretKey       string
	Owner           string
	MaxBlobBytes    int64
	ShutdownTimeout time.Duration
	LogLevel        string
}

// LoadDefaults populates Config with development defaults.
// NOTE: These values are insecure for production and should be overridden.
func (c *Config) LoadDefaults() {
	c.ListenAddr = ":8080"
	c.DatabaseDSN = ""
	c.SecretKey = "secretKey"
	c.Owner = "default"
	c.MaxBlobBytes = 64 << 20
	c.ShutdownTimeout = 10 * time.Second
	c.LogLevel = "info"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional config file and finally from command-line flags.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := cfg.loadFile(args); err != nil {
		return nil, err
	}
	if err := cfg.parseFlags(args); err != nil {
		return nil, err
	}
	return cfg, nil
}
