package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/daybook/internal/client/backup"
	"github.com/dmitrijs2005/daybook/internal/client/syncer"
	"github.com/dmitrijs2005/daybook/internal/logging"
)

// Config holds runtime settings for the daybook client.
type Config struct {
	DataDir string
	// DBFile is relative to DataDir unless absolute.
	DBFile string

	Backup       backup.Config
	SyncPassword string

	DebounceDelay   time.Duration
	PollInterval    time.Duration
	PollQuietPeriod time.Duration
	ConflictWindow  time.Duration
	AutoSync        bool

	// LogFile is relative to DataDir unless absolute.
	LogFile  string
	LogLevel string
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "daybook")
	}
	return ".daybook"
}

// Default returns a Config with every field set to its default.
func Default() *Config {
	sc := syncer.DefaultConfig()
	return &Config{
		DataDir: defaultDataDir(),
		DBFile:  "daybook.db",
		Backup: backup.Config{
			Kind:     backup.KindDir,
			BlobName: backup.DefaultBlobName,
		},
		DebounceDelay:   sc.DebounceDelay,
		PollInterval:    sc.PollInterval,
		PollQuietPeriod: sc.PollQuietPeriod,
		ConflictWindow:  sc.ConflictWindow,
		AutoSync:        sc.AutoSync,
		LogFile:         "daybook.log",
		LogLevel:        "info",
	}
}

// Load applies defaults, then the config file named in args, then the
// flags in args.
func Load(args []string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(configPath(args)); err != nil {
		return nil, err
	}
	if err := cfg.parseFlags(args); err != nil {
		return nil, err
	}
	cfg.fillDerived()
	return cfg, nil
}

// fillDerived sets values that default from other fields.
func (c *Config) fillDerived() {
	if c.Backup.Kind == backup.KindDir && c.Backup.Dir == "" {
		c.Backup.Dir = filepath.Join(c.DataDir, "backup")
	}
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}

func (c *Config) DBPath() string { return c.resolve(c.DBFile) }

func (c *Config) LogPath() string { return c.resolve(c.LogFile) }

// SyncerConfig maps the sync settings onto the engine's config.
func (c *Config) SyncerConfig() syncer.Config {
	sc := syncer.DefaultConfig()
	sc.DebounceDelay = c.DebounceDelay
	sc.PollInterval = c.PollInterval
	sc.PollQuietPeriod = c.PollQuietPeriod
	sc.ConflictWindow = c.ConflictWindow
	sc.AutoSync = c.AutoSync
	sc.SyncOnStart = c.AutoSync
	if c.SyncPassword != "" {
		sc.Password = []byte(c.SyncPassword)
	}
	return sc
}

func (c *Config) LogOptions() logging.FileOptions {
	return logging.FileOptions{
		Path:       c.LogPath(),
		MaxSizeMB:  5,
		MaxBackups: 3,
		MaxAgeDays: 28,
		Level:      logging.ParseLevel(c.LogLevel),
	}
}
