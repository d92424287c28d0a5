package backup

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTransport_RoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryTransport()

	h, err := m.FindExisting(ctx)
	require.NoError(t, err)
	assert.Nil(t, h)

	h, err = m.Upload(ctx, []byte("v1"), nil)
	require.NoError(t, err)
	require.NotNil(t, h)

	found, err := m.FindExisting(ctx)
	require.NoError(t, err)
	assert.Equal(t, h, found)

	_, err = m.Upload(ctx, []byte("v2"), h)
	require.NoError(t, err)

	data, err := m.Download(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))

	finds, uploads, downloads := m.Calls()
	assert.Equal(t, 2, finds)
	assert.Equal(t, 2, uploads)
	assert.Equal(t, 1, downloads)
}

func TestMemoryTransport_Failures(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryTransport()
	boom := errors.New("offline")
	m.SetFailures(boom, boom, boom)

	_, err := m.FindExisting(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrTransport)
	assert.ErrorIs(t, err, boom)

	var be *Error
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "find", be.Op)

	_, err = m.Upload(ctx, []byte("x"), nil)
	assert.ErrorIs(t, err, common.ErrTransport)

	m.SetFailures(nil, nil, nil)
	_, err = m.Download(ctx, &Handle{ID: memoryHandleID})
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, err, common.ErrTransport)
}

func TestMemoryTransport_ContentIsCopied(t *testing.T) {
	m := NewMemoryTransport()
	src := []byte("abc")
	m.SetContent(src)
	src[0] = 'z'

	got, ok := m.Content()
	require.True(t, ok)
	assert.Equal(t, "abc", string(got))
}

func TestWrap_KeepsExistingError(t *testing.T) {
	inner := &Error{Op: "find", Err: errors.New("x")}
	err := wrap("download", inner)

	var be *Error
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "find", be.Op)
	assert.Nil(t, wrap("find", nil))
}
