package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/daybook/internal/client/backup"
	"github.com/dmitrijs2005/daybook/internal/flagx"
	"github.com/dmitrijs2005/daybook/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk form. Empty values leave the current setting
// alone.
type FileConfig struct {
	DataDir      string        `json:"data_dir" yaml:"data_dir"`
	DBFile       string        `json:"db_file" yaml:"db_file"`
	Backup       backup.Config `json:"backup" yaml:"backup"`
	SyncPassword string        `json:"sync_password" yaml:"sync_password"`
	Sync         struct {
		Debounce       timex.Duration `json:"debounce" yaml:"debounce"`
		PollInterval   timex.Duration `json:"poll_interval" yaml:"poll_interval"`
		QuietPeriod    timex.Duration `json:"quiet_period" yaml:"quiet_period"`
		ConflictWindow timex.Duration `json:"conflict_window" yaml:"conflict_window"`
		AutoSync       *bool          `json:"auto_sync" yaml:"auto_sync"`
	} `json:"sync" yaml:"sync"`
	Log struct {
		File  string `json:"file" yaml:"file"`
		Level string `json:"level" yaml:"level"`
	} `json:"log" yaml:"log"`
}

func configPath(args []string) string {
	return flagx.ConfigPath(args)
}

// decodeFile reads path as YAML or JSON depending on its extension.
func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, v)
	default:
		err = json.Unmarshal(data, v)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadFile(path string) error {
	if path == "" {
		return nil
	}
	var fc FileConfig
	if err := decodeFile(path, &fc); err != nil {
		return err
	}

	setString(&c.DataDir, fc.DataDir)
	setString(&c.DBFile, fc.DBFile)
	setString(&c.SyncPassword, fc.SyncPassword)
	setString(&c.LogFile, fc.Log.File)
	setString(&c.LogLevel, fc.Log.Level)

	b := fc.Backup
	setString(&c.Backup.Kind, b.Kind)
	setString(&c.Backup.BlobName, b.BlobName)
	setString(&c.Backup.Dir, b.Dir)
	setString(&c.Backup.S3.Region, b.S3.Region)
	setString(&c.Backup.S3.Bucket, b.S3.Bucket)
	setString(&c.Backup.S3.Prefix, b.S3.Prefix)
	setString(&c.Backup.S3.BaseEndpoint, b.S3.BaseEndpoint)
	setString(&c.Backup.S3.AccessKey, b.S3.AccessKey)
	setString(&c.Backup.S3.SecretKey, b.S3.SecretKey)
	setString(&c.Backup.HTTP.URL, b.HTTP.URL)
	setString(&c.Backup.HTTP.Secret, b.HTTP.Secret)
	setString(&c.Backup.HTTP.DeviceID, b.HTTP.DeviceID)

	setDuration(&c.DebounceDelay, fc.Sync.Debounce)
	setDuration(&c.PollInterval, fc.Sync.PollInterval)
	setDuration(&c.PollQuietPeriod, fc.Sync.QuietPeriod)
	setDuration(&c.ConflictWindow, fc.Sync.ConflictWindow)
	if fc.Sync.AutoSync != nil {
		c.AutoSync = *fc.Sync.AutoSync
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
