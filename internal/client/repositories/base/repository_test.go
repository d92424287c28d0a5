package base

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/client/store"
	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingNotifier struct{ n atomic.Int32 }

func (c *countingNotifier) NotifyLocalChange() { c.n.Add(1) }

func newStore(t *testing.T) *store.Handle {
	t.Helper()
	opts := store.DefaultOptions()
	opts.WatchSchema = false
	h, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "daybook.db"), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestCreate_AssignsIDAndTimestamps(t *testing.T) {
	s := newStore(t)
	n := &countingNotifier{}
	repo := New[models.Quote](s, models.CollectionQuotes, n)
	now := time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)
	repo.SetClock(func() time.Time { return now })

	q, err := repo.Create(context.Background(), models.Quote{Text: "Less is more"})
	require.NoError(t, err)
	assert.NotEmpty(t, q.ID)
	assert.True(t, q.CreatedAt.Equal(now))
	assert.True(t, q.UpdatedAt.Equal(now))
	assert.Equal(t, int32(1), n.n.Load())

	rec, err := s.Get(context.Background(), models.CollectionQuotes, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "2026-04-01T09:30:00.000Z", rec["updatedAt"])
}

func TestCreate_ValidationFailureWritesNothing(t *testing.T) {
	s := newStore(t)
	n := &countingNotifier{}
	repo := New[models.Quote](s, models.CollectionQuotes, n)

	_, err := repo.Create(context.Background(), models.Quote{Text: "  "})
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.Zero(t, n.n.Load())

	all, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestUpdate_MergesPatchAndKeepsTimestampsMonotonic(t *testing.T) {
	s := newStore(t)
	repo := New[models.Quote](s, models.CollectionQuotes, nil)
	ctx := context.Background()

	t0 := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	repo.SetClock(func() time.Time { return t0 })
	q, err := repo.Create(ctx, models.Quote{Text: "a", Author: "me"})
	require.NoError(t, err)

	// clock goes backwards: updatedAt must not
	repo.SetClock(func() time.Time { return t0.Add(-time.Hour) })
	q2, err := repo.Update(ctx, q.ID, map[string]any{"favorite": true})
	require.NoError(t, err)
	assert.True(t, q2.Favorite)
	assert.Equal(t, "me", q2.Author)
	assert.True(t, q2.UpdatedAt.Equal(t0))
	assert.True(t, q2.CreatedAt.Equal(t0))

	repo.SetClock(func() time.Time { return t0.Add(time.Minute) })
	q3, err := repo.Update(ctx, q.ID, map[string]any{"text": "b"})
	require.NoError(t, err)
	assert.True(t, q3.UpdatedAt.Equal(t0.Add(time.Minute)))
	assert.True(t, q3.CreatedAt.Equal(t0))
}

func TestUpdate_Errors(t *testing.T) {
	s := newStore(t)
	repo := New[models.Quote](s, models.CollectionQuotes, nil)
	ctx := context.Background()

	_, err := repo.Update(ctx, "missing", map[string]any{"text": "x"})
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = repo.Update(ctx, "", nil)
	assert.ErrorIs(t, err, common.ErrValidation)

	q, err := repo.Create(ctx, models.Quote{Text: "a"})
	require.NoError(t, err)

	_, err = repo.Update(ctx, q.ID, map[string]any{"id": "other"})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = repo.Update(ctx, q.ID, map[string]any{"text": ""})
	assert.ErrorIs(t, err, common.ErrValidation)

	got, err := repo.Get(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Text, "failed update must not be stored")
}

func TestSave_UpsertsByKeyField(t *testing.T) {
	s := newStore(t)
	repo := New[models.AuthToken](s, models.CollectionAuthTokens, nil)
	ctx := context.Background()

	_, err := repo.Save(ctx, models.AuthToken{Service: "github", AccessToken: "one"})
	require.NoError(t, err)
	_, err = repo.Save(ctx, models.AuthToken{Service: "github", AccessToken: "two"})
	require.NoError(t, err)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "two", all[0].AccessToken)

	_, err = repo.Save(ctx, models.AuthToken{AccessToken: "x"})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestReferenceCollectionHasNoTimestamps(t *testing.T) {
	s := newStore(t)
	repo := New[models.Space](s, models.CollectionSpaces, nil)

	sp, err := repo.Create(context.Background(), models.Space{Name: "Home"})
	require.NoError(t, err)

	rec, err := s.Get(context.Background(), models.CollectionSpaces, sp.ID)
	require.NoError(t, err)
	assert.NotContains(t, rec, "updatedAt")
	assert.NotContains(t, rec, "createdAt")
}

func TestDeleteAndFilter(t *testing.T) {
	s := newStore(t)
	n := &countingNotifier{}
	repo := New[models.Quote](s, models.CollectionQuotes, n)
	ctx := context.Background()

	a, err := repo.Create(ctx, models.Quote{Text: "a", Favorite: true})
	require.NoError(t, err)
	_, err = repo.Create(ctx, models.Quote{Text: "b"})
	require.NoError(t, err)

	favs, err := repo.Filter(ctx, func(q models.Quote) bool { return q.Favorite })
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, a.ID, favs[0].ID)

	require.NoError(t, repo.Delete(ctx, a.ID))
	require.NoError(t, repo.Delete(ctx, a.ID))
	assert.ErrorIs(t, repo.Delete(ctx, ""), common.ErrValidation)

	_, err = repo.Get(ctx, a.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Equal(t, int32(4), n.n.Load())
}

func TestNew_PanicsOnUndeclaredCollection(t *testing.T) {
	assert.Panics(t, func() { New[models.Quote](nil, "nope", nil) })
}
