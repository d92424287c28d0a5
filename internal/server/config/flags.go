package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/daybook/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-a string     HTTP bind address (e.g., ":8080")
//	-d string     PostgreSQL DSN
//	-s string     JWT HMAC secret key
//	-o string     blob owner namespace
//	-m int        max blob size in bytes
//	-t duration   shutdown timeout
//	-l string     log level
//
// Args are filtered through flagx.FilterArgs first, so -c and unknown
// flags do not trip the parser.
func (c *Config) parseFlags(args []string) error {
	filtered := flagx.FilterArgs(args, []string{"-a", "-d", "-s", "-o", "-m", "-t", "-l"})

	fs := flag.NewFlagSet("backupd", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&c.ListenAddr, "a", c.ListenAddr, "address and port to run server")
	fs.StringVar(&c.DatabaseDSN, "d", c.DatabaseDSN, "database DSN")
	fs.StringVar(&c.SecretKey, "s", c.SecretKey, "secret key")
	fs.StringVar(&c.Owner, "o", c.Owner, "blob owner namespace")
	fs.Int64Var(&c.MaxBlobBytes, "m", c.MaxBlobBytes, "max blob size in bytes")
	fs.DurationVar(&c.ShutdownTimeout, "t", c.ShutdownTimeout, "shutdown timeout")
	fs.StringVar(&c.LogLevel, "l", c.LogLevel, "log level")

	return fs.Parse(filtered)
}
