package config

import (
	"flag"
	"io"
	"strconv"

	"github.com/dmitrijs2005/daybook/internal/flagx"
)

// flagSet binds every client flag to c.
//
//	-d string            data directory
//	-b string            backup kind: dir, s3, http or memory
//	-l string            log level
//	-blob string         remote blob name
//	-backup-dir string   directory for the dir backup kind
//	-s3-bucket, -s3-region, -s3-endpoint, -s3-prefix
//	-backupd-url, -backupd-secret, -device-id
//	-debounce, -poll, -quiet, -conflict-window   durations
//	-offline             disable automatic sync
func (c *Config) flagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("daybook", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&c.DataDir, "d", c.DataDir, "data directory")
	fs.StringVar(&c.Backup.Kind, "b", c.Backup.Kind, "backup kind (dir, s3, http, memory)")
	fs.StringVar(&c.LogLevel, "l", c.LogLevel, "log level")
	fs.StringVar(&c.Backup.BlobName, "blob", c.Backup.BlobName, "remote blob name")
	fs.StringVar(&c.Backup.Dir, "backup-dir", c.Backup.Dir, "backup directory")
	fs.StringVar(&c.Backup.S3.Bucket, "s3-bucket", c.Backup.S3.Bucket, "S3 bucket")
	fs.StringVar(&c.Backup.S3.Region, "s3-region", c.Backup.S3.Region, "S3 region")
	fs.StringVar(&c.Backup.S3.BaseEndpoint, "s3-endpoint", c.Backup.S3.BaseEndpoint, "S3-compatible endpoint")
	fs.StringVar(&c.Backup.S3.Prefix, "s3-prefix", c.Backup.S3.Prefix, "S3 key prefix")
	fs.StringVar(&c.Backup.HTTP.URL, "backupd-url", c.Backup.HTTP.URL, "backupd base URL")
	fs.StringVar(&c.Backup.HTTP.Secret, "backupd-secret", c.Backup.HTTP.Secret, "backupd shared secret")
	fs.StringVar(&c.Backup.HTTP.DeviceID, "device-id", c.Backup.HTTP.DeviceID, "device id presented to backupd")
	fs.DurationVar(&c.DebounceDelay, "debounce", c.DebounceDelay, "delay before pushing local changes")
	fs.DurationVar(&c.PollInterval, "poll", c.PollInterval, "remote poll interval")
	fs.DurationVar(&c.PollQuietPeriod, "quiet", c.PollQuietPeriod, "skip polls this long after a local change")
	fs.DurationVar(&c.ConflictWindow, "conflict-window", c.ConflictWindow, "edits closer than this conflict")

	fs.BoolFunc("offline", "disable automatic sync", func(s string) error {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		c.AutoSync = !v
		return nil
	})
	return fs
}

// flagNames lists every flag in both single and double dash form.
func flagNames(fs *flag.FlagSet) []string {
	var names []string
	fs.VisitAll(func(f *flag.Flag) {
		names = append(names, "-"+f.Name, "--"+f.Name)
	})
	return names
}

func (c *Config) parseFlags(args []string) error {
	fs := c.flagSet()
	return fs.Parse(flagx.FilterArgs(args, flagNames(fs)))
}

// Flags returns the client flag set bound to a throwaway Config, for
// registering the same flags with another parser (e.g. cobra).
func Flags() *flag.FlagSet {
	return Default().flagSet()
}
