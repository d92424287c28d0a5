package blobs

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, err := repo.Stat(ctx, "o", "b")
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = repo.Get(ctx, "o", "b")
	assert.ErrorIs(t, err, common.ErrNotFound)

	content := []byte("v1")
	m, err := repo.Put(ctx, "o", "b", "laptop", content)
	require.NoError(t, err)
	assert.Equal(t, int64(2), m.Size)

	content[0] = 'x'
	b, err := repo.Get(ctx, "o", "b")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), b.Content, "stored content must not alias the caller's slice")

	_, err = repo.Put(ctx, "o", "b", "phone", []byte("v2"))
	require.NoError(t, err)
	st, err := repo.Stat(ctx, "o", "b")
	require.NoError(t, err)
	assert.Equal(t, "phone", st.UpdatedBy)

	_, err = repo.Stat(ctx, "other", "b")
	assert.ErrorIs(t, err, common.ErrNotFound, "owners are separate namespaces")
}
