package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/daybook/internal/flagx"
	"github.com/dmitrijs2005/daybook/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of the config. timex.Duration accepts
// both "10s" and integer nanoseconds.
type FileConfig struct {
	ListenAddr      string         `json:"listen_addr" yaml:"listen_addr"`
	DatabaseDSN     string         `json:"database_dsn" yaml:"database_dsn"`
	SecretKey       string         `json:"secret_key" yaml:"secret_key"`
	Owner           string         `json:"owner" yaml:"owner"`
	MaxBlobBytes    int64          `json:"max_blob_bytes" yaml:"max_blob_bytes"`
	ShutdownTimeout timex.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel        string         `json:"log_level" yaml:"log_level"`
}

// loadFile overlays the file named by -c/-config onto c. Empty values in
// the file keep what c already has.
func (c *Config) loadFile(args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	fc := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fc)
	default:
		err = json.Unmarshal(data, fc)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if fc.ListenAddr != "" {
		c.ListenAddr = fc.ListenAddr
	}
	if fc.DatabaseDSN != "" {
		c.DatabaseDSN = fc.DatabaseDSN
	}
	if fc.SecretKey != "" {
		c.SecretKey = fc.SecretKey
	}
	if fc.Owner != "" {
		c.Owner = fc.Owner
	}
	if fc.MaxBlobBytes > 0 {
		c.MaxBlobBytes = fc.MaxBlobBytes
	}
	if fc.ShutdownTimeout.Duration > 0 {
		c.ShutdownTimeout = fc.ShutdownTimeout.Duration
	}
	if fc.LogLevel != "" {
		c.LogLevel = fc.LogLevel
	}
	return nil
}
