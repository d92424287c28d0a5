package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, watch bool) *Handle {
	t.Helper()
	opts := DefaultOptions()
	opts.BaseDelay = time.Millisecond
	opts.WatchSchema = watch
	h, err := Open(context.Background(), filepath.Join(t.TempDir(), "data", "daybook.db"), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func item(id, title, updatedAt string) models.Record {
	return models.Record{"id": id, "title": title, "type": "task", "updatedAt": updatedAt}
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	h := openTestStore(t, false)
	ctx := context.Background()

	r := models.Record{
		"id":        "x",
		"title":     "Buy milk",
		"tags":      []any{"home", "shop"},
		"completed": false,
		"nested":    map[string]any{"n": float64(2)},
		"updatedAt": "2026-01-01T10:00:00.000Z",
	}
	require.NoError(t, h.Put(ctx, models.CollectionItems, r))

	got, err := h.Get(ctx, models.CollectionItems, "x")
	require.NoError(t, err)
	if diff := cmp.Diff(r, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_PutIsIdempotent(t *testing.T) {
	h := openTestStore(t, false)
	ctx := context.Background()

	r := item("x", "Buy milk", "2026-01-01T10:00:00.000Z")
	require.NoError(t, h.Put(ctx, models.CollectionItems, r))
	require.NoError(t, h.Put(ctx, models.CollectionItems, r))

	all, err := h.GetAll(ctx, models.CollectionItems)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, r.Equal(all[0]))
}

func TestStore_GetAllKeepsInsertionOrder(t *testing.T) {
	h := openTestStore(t, false)
	ctx := context.Background()

	empty, err := h.GetAll(ctx, models.CollectionQuotes)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, h.Put(ctx, models.CollectionItems, item(id, id, "")))
	}
	// replacing keeps the original position
	require.NoError(t, h.Put(ctx, models.CollectionItems, item("c", "changed", "")))

	all, err := h.GetAll(ctx, models.CollectionItems)
	require.NoError(t, err)
	var ids []string
	for _, r := range all {
		ids = append(ids, r.Key("id"))
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
	assert.Equal(t, "changed", all[0]["title"])
}

func TestStore_DeleteAndClear(t *testing.T) {
	h := openTestStore(t, false)
	ctx := context.Background()

	require.NoError(t, h.Put(ctx, models.CollectionItems, item("a", "a", "")))
	require.NoError(t, h.Put(ctx, models.CollectionItems, item("b", "b", "")))
	require.NoError(t, h.Put(ctx, models.CollectionQuotes, models.Record{"id": "q", "text": "t"}))

	require.NoError(t, h.Delete(ctx, models.CollectionItems, "a"))
	require.NoError(t, h.Delete(ctx, models.CollectionItems, "a"), "delete is idempotent")
	require.NoError(t, h.Delete(ctx, models.CollectionItems, "never-existed"))

	_, err := h.Get(ctx, models.CollectionItems, "a")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.NotErrorIs(t, err, common.ErrTransientStore)

	require.NoError(t, h.Clear(ctx, models.CollectionItems))
	n, err := h.Count(ctx, models.CollectionItems)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = h.Count(ctx, models.CollectionQuotes)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "clear only touches one collection")
}

func TestStore_ValidationErrors(t *testing.T) {
	h := openTestStore(t, false)
	ctx := context.Background()

	err := h.Put(ctx, "notes", models.Record{"id": "x"})
	assert.ErrorIs(t, err, common.ErrValidation)

	err = h.Put(ctx, models.CollectionItems, models.Record{"title": "no id"})
	assert.ErrorIs(t, err, common.ErrValidation)

	err = h.Put(ctx, models.CollectionAuthTokens, models.Record{"id": "x", "accessToken": "t"})
	assert.ErrorIs(t, err, common.ErrValidation, "auth tokens are keyed by service")

	_, err = h.Get(ctx, models.CollectionItems, "")
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = h.GetAll(ctx, "unknown")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestStore_ReplaceAll(t *testing.T) {
	h := openTestStore(t, false)
	ctx := context.Background()

	require.NoError(t, h.Put(ctx, models.CollectionItems, item("old", "old", "")))
	require.NoError(t, h.Put(ctx, models.CollectionQuotes, models.Record{"id": "q1", "text": "kept"}))

	err := h.ReplaceAll(ctx, map[string][]models.Record{
		models.CollectionItems:  {item("n1", "one", ""), item("n2", "two", "")},
		models.CollectionSpaces: {{"id": "s1", "name": "Home"}},
	})
	require.NoError(t, err)

	items, err := h.GetAll(ctx, models.CollectionItems)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "n1", items[0].Key("id"))

	quotes, err := h.GetAll(ctx, models.CollectionQuotes)
	require.NoError(t, err)
	assert.Len(t, quotes, 1)

	// a bad record aborts the whole call and leaves data intact
	err = h.ReplaceAll(ctx, map[string][]models.Record{
		models.CollectionItems: {item("n3", "three", ""), {"title": "missing id"}},
	})
	assert.ErrorIs(t, err, common.ErrValidation)

	items, err = h.GetAll(ctx, models.CollectionItems)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestStore_Settings(t *testing.T) {
	h := openTestStore(t, false)
	ctx := context.Background()

	settings, err := h.GetSettings(ctx)
	require.NoError(t, err)
	assert.Empty(t, settings)

	require.NoError(t, h.PutSetting(ctx, "theme", "dark"))
	require.NoError(t, h.PutSetting(ctx, "weekStart", float64(1)))
	require.NoError(t, h.PutSetting(ctx, "theme", "light"))

	settings, err = h.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"theme": "light", "weekStart": float64(1)}, settings)

	require.NoError(t, h.ReplaceSettings(ctx, map[string]any{"lang": "en"}))
	settings, err = h.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"lang": "en"}, settings)

	require.NoError(t, h.DeleteSetting(ctx, "lang"))
	settings, err = h.GetSettings(ctx)
	require.NoError(t, err)
	assert.Empty(t, settings)

	assert.ErrorIs(t, h.PutSetting(ctx, "", 1), common.ErrValidation)
}

func TestStore_Meta(t *testing.T) {
	h := openTestStore(t, false)
	ctx := context.Background()

	_, ok, err := h.GetMeta(ctx, "lastSyncTime")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, h.SetMeta(ctx, "lastSyncTime", "2026-01-01T00:00:00.000Z"))
	v, ok, err := h.GetMeta(ctx, "lastSyncTime")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2026-01-01T00:00:00.000Z", v)
}

func TestStore_ReopensClosedConnection(t *testing.T) {
	h := openTestStore(t, false)
	ctx := context.Background()
	require.NoError(t, h.Put(ctx, models.CollectionItems, item("a", "a", "")))

	h.mu.Lock()
	require.NoError(t, h.db.Close())
	h.mu.Unlock()

	all, err := h.GetAll(ctx, models.CollectionItems)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStore_DataSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daybook.db")
	ctx := context.Background()
	opts := DefaultOptions()
	opts.WatchSchema = false

	h, err := Open(ctx, path, opts)
	require.NoError(t, err)
	require.NoError(t, h.Put(ctx, models.CollectionItems, item("a", "a", "")))
	require.NoError(t, h.Close())
	require.NoError(t, h.Close(), "close is idempotent")

	_, err = h.GetAll(ctx, models.CollectionItems)
	assert.ErrorIs(t, err, common.ErrStorageUnavailable)

	h2, err := Open(ctx, path, opts)
	require.NoError(t, err)
	defer h2.Close()

	got, err := h2.Get(ctx, models.CollectionItems, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", got["title"])

	marker, err := readMarker(path + ".schema")
	require.NoError(t, err)
	assert.Equal(t, int64(SchemaVersion), marker)
}

func TestOpen_UnusablePath(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	_, err := Open(context.Background(), filepath.Join(blocker, "daybook.db"), DefaultOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrStorageUnavailable)
}

func TestOpen_RefusesNewerDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daybook.db")
	ctx := context.Background()
	opts := DefaultOptions()
	opts.WatchSchema = false

	h, err := Open(ctx, path, opts)
	require.NoError(t, err)
	require.NoError(t, h.Close())

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO goose_db_version (version_id, is_applied) VALUES (?, 1)`, SchemaVersion+1)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(ctx, path, opts)
	assert.ErrorIs(t, err, common.ErrSchemaVersionChanged)
}

func TestStore_FailsAfterExternalSchemaUpgrade(t *testing.T) {
	h := openTestStore(t, true)
	ctx := context.Background()
	require.NoError(t, h.Put(ctx, models.CollectionItems, item("a", "a", "")))

	require.NoError(t, writeMarker(h.markerPath(), SchemaVersion+1))

	require.Eventually(t, func() bool {
		_, err := h.GetAll(ctx, models.CollectionItems)
		return errors.Is(err, common.ErrSchemaVersionChanged)
	}, 2*time.Second, 10*time.Millisecond)

	err := h.Put(ctx, models.CollectionItems, item("b", "b", ""))
	assert.ErrorIs(t, err, common.ErrSchemaVersionChanged)
	assert.NotErrorIs(t, err, common.ErrTransientStore)
}

func TestWriteMarker_NeverLowers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.schema")
	require.NoError(t, writeMarker(path, 3))
	require.NoError(t, writeMarker(path, 2))

	v, err := readMarker(path)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)
}

func TestStore_PutManyIfUnchanged(t *testing.T) {
	h := openTestStore(t, false)
	ctx := context.Background()

	seen := item("a", "a", "")
	require.NoError(t, h.Put(ctx, models.CollectionItems, seen))
	base := map[string]map[string]models.Record{models.CollectionItems: {"a": seen}}

	err := h.PutManyIfUnchanged(ctx, map[string][]models.Record{
		models.CollectionItems:  {item("a", "merged", ""), item("b", "new", "")},
		models.CollectionSpaces: {{"id": "s", "name": "Work"}},
	}, base)
	require.NoError(t, err)
	n, err := h.Count(ctx, models.CollectionSpaces)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got, err := h.Get(ctx, models.CollectionItems, "a")
	require.NoError(t, err)
	assert.Equal(t, "merged", got["title"])

	// a concurrent edit of a
	require.NoError(t, h.Put(ctx, models.CollectionItems, item("a", "user edit", "")))
	err = h.PutManyIfUnchanged(ctx, map[string][]models.Record{
		models.CollectionItems: {item("c", "c", ""), item("a", "stale", "")},
	}, map[string]map[string]models.Record{models.CollectionItems: {"a": item("a", "merged", "")}})
	assert.ErrorIs(t, err, common.ErrStaleWrite)

	got, err = h.Get(ctx, models.CollectionItems, "a")
	require.NoError(t, err)
	assert.Equal(t, "user edit", got["title"])
	_, err = h.Get(ctx, models.CollectionItems, "c")
	assert.ErrorIs(t, err, common.ErrNotFound, "nothing is written on a mismatch")

	// a key expected to be absent that now exists
	err = h.PutManyIfUnchanged(ctx, map[string][]models.Record{
		models.CollectionItems: {item("b", "again", "")},
	}, nil)
	assert.ErrorIs(t, err, common.ErrStaleWrite)
}
