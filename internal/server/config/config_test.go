package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, ":8080", c.ListenAddr)
	assert.Equal(t, "", c.DatabaseDSN)
	assert.Equal(t, "secretKey", c.SecretKey)
	assert.Equal(t, "default", c.Owner)
	assert.Equal(t, int64(64<<20), c.MaxBlobBytes)
	assert.Equal(t, 10*time.Second, c.ShutdownTimeout)
	assert.Equal(t, "info", c.LogLevel)
}

func TestLoadConfig_NoArgsKeepsDefaults(t *testing.T) {
	c, err := LoadConfig(nil)
	require.NoError(t, err)

	var want Config
	want.LoadDefaults()
	assert.Equal(t, &want, c)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_JSONFileThenFlags(t *testing.T) {
	path := writeFile(t, "backupd.json", `{
		"listen_addr": ":9000",
		"database_dsn": "postgres://u:p@db/backupd",
		"secret_key": "from-file",
		"shutdown_timeout": "3s",
		"max_blob_bytes": 1024
	}`)

	c, err := LoadConfig([]string{"-c", path, "-s", "from-flag", "-unknown", "x"})
	require.NoError(t, err)

	assert.Equal(t, ":9000", c.ListenAddr)
	assert.Equal(t, "postgres://u:p@db/backupd", c.DatabaseDSN)
	assert.Equal(t, "from-flag", c.SecretKey, "flags override the file")
	assert.Equal(t, 3*time.Second, c.ShutdownTimeout)
	assert.Equal(t, int64(1024), c.MaxBlobBytes)
	assert.Equal(t, "default", c.Owner, "absent keys keep defaults")
}

func TestLoadConfig_YAMLFile(t *testing.T) {
	path := writeFile(t, "backupd.yaml", "owner: family\nshutdown_timeout: 2000000000\nlog_level: debug\n")

	c, err := LoadConfig([]string{"--config", path})
	require.NoError(t, err)
	assert.Equal(t, "family", c.Owner)
	assert.Equal(t, 2*time.Second, c.ShutdownTimeout)
	assert.Equal(t, "debug", c.LogLevel)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig([]string{"-c", filepath.Join(t.TempDir(), "missing.json")})
	assert.Error(t, err)

	_, err = LoadConfig([]string{"-c", writeFile(t, "bad.json", "{")})
	assert.Error(t, err)

	_, err = LoadConfig([]string{"-t", "soon"})
	assert.Error(t, err)
}
