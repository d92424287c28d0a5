package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirTransport(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "sync")

	d, err := NewDirTransport(dir, "blob.json")
	require.NoError(t, err)

	h, err := d.FindExisting(ctx)
	require.NoError(t, err)
	assert.Nil(t, h)

	h, err = d.Upload(ctx, []byte(`{"a":1}`), nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "blob.json"), h.ID)

	found, err := d.FindExisting(ctx)
	require.NoError(t, err)
	assert.Equal(t, h, found)

	data, err := d.Download(ctx, found)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(data))

	fi, err := os.Stat(h.ID)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())
}

func TestDirTransport_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := NewDirTransport(t.TempDir(), "../escape")
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = NewDirTransport(t.TempDir(), "")
	assert.ErrorIs(t, err, common.ErrValidation)

	d, err := NewDirTransport(t.TempDir(), "blob.json")
	require.NoError(t, err)

	_, err = d.Download(ctx, &Handle{ID: d.path()})
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, err, common.ErrTransport)

	_, err = d.Download(ctx, nil)
	assert.ErrorIs(t, err, common.ErrTransport)

	require.NoError(t, os.Mkdir(d.path(), 0o700))
	_, err = d.FindExisting(ctx)
	assert.ErrorIs(t, err, common.ErrTransport)
}
