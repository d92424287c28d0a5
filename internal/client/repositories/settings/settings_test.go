package settings

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	Store
	data    map[string]any
	readErr error
}

func (f *fakeStore) GetSettings(ctx context.Context) (map[string]any, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	out := map[string]any{}
	for k, v := range f.data {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStore) PutSetting(ctx context.Context, key string, value any) error {
	f.data[key] = value
	return nil
}

func (f *fakeStore) DeleteSetting(ctx context.Context, key string) error {
	delete(f.data, key)
	return nil
}

type notifier struct{ n int }

func (n *notifier) NotifyLocalChange() { n.n++ }

func TestSettings(t *testing.T) {
	st := &fakeStore{data: map[string]any{}}
	n := &notifier{}
	repo := New(st, n)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "theme", "dark"))
	require.NoError(t, repo.Set(ctx, "weekStart", 1))
	assert.Equal(t, 2, n.n)

	v, ok, err := repo.Get(ctx, "theme")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "dark", v)

	s, err := repo.String(ctx, "theme", "light")
	require.NoError(t, err)
	assert.Equal(t, "dark", s)

	s, err = repo.String(ctx, "weekStart", "monday")
	require.NoError(t, err)
	assert.Equal(t, "monday", s, "non-string falls back to default")

	s, err = repo.String(ctx, "missing", "x")
	require.NoError(t, err)
	assert.Equal(t, "x", s)

	require.NoError(t, repo.Delete(ctx, "theme"))
	_, ok, err = repo.Get(ctx, "theme")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 3, n.n)

	assert.ErrorIs(t, repo.Set(ctx, "", 1), common.ErrValidation)

	st.readErr = errors.New("boom")
	_, err = repo.All(ctx)
	assert.EqualError(t, err, "boom")
}
