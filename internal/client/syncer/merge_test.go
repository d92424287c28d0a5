package syncer

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/daybook/internal/client/bundle"
	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0     = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	window = 60 * time.Minute
)

func item(id, title string, updated time.Time) models.Record {
	return models.Record{"id": id, "title": title, "updatedAt": models.FormatTime(updated)}
}

func bundleOf(data map[string][]models.Record) *bundle.DataBundle {
	b := bundle.New(t0)
	for k, v := range data {
		b.Data[k] = v
	}
	return b
}

func ids(recs []models.Record, keyField string) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Key(keyField))
	}
	return out
}

func TestMerge_DisjointIsCommutative(t *testing.T) {
	a := bundleOf(map[string][]models.Record{models.CollectionItems: {item("1", "a", t0), item("2", "b", t0)}})
	b := bundleOf(map[string][]models.Record{models.CollectionItems: {item("3", "c", t0), item("4", "d", t0)}})

	ab := Merge(a, b, window, t0)
	ba := Merge(b, a, window, t0)
	require.Empty(t, ab.Conflicts)
	require.Empty(t, ba.Conflicts)

	assert.ElementsMatch(t, []string{"1", "2", "3", "4"}, ids(ab.Bundle.Records(models.CollectionItems), "id"))
	assert.ElementsMatch(t, ids(ab.Bundle.Records(models.CollectionItems), "id"), ids(ba.Bundle.Records(models.CollectionItems), "id"))
}

func TestMerge_LastWriteWins(t *testing.T) {
	older := item("x", "old", t0)
	newer := item("x", "new", t0.Add(window+time.Minute))

	for name, tc := range map[string]struct{ local, remote models.Record }{
		"remote newer": {older, newer},
		"local newer":  {newer, older},
	} {
		t.Run(name, func(t *testing.T) {
			res := Merge(
				bundleOf(map[string][]models.Record{models.CollectionItems: {tc.local}}),
				bundleOf(map[string][]models.Record{models.CollectionItems: {tc.remote}}),
				window, t0)
			require.Empty(t, res.Conflicts)
			got := res.Bundle.Records(models.CollectionItems)
			require.Len(t, got, 1)
			assert.Equal(t, "new", got[0]["title"])
		})
	}
}

func TestMerge_ConflictWithinWindow(t *testing.T) {
	local := bundleOf(map[string][]models.Record{models.CollectionItems: {item("x", "Buy milk", t0)}})
	remote := bundleOf(map[string][]models.Record{models.CollectionItems: {item("x", "Buy milk and eggs", t0.Add(40*time.Minute))}})
	localBefore := local.Records(models.CollectionItems)[0].Clone()
	remoteBefore := remote.Records(models.CollectionItems)[0].Clone()

	now := t0.Add(time.Hour)
	res := Merge(local, remote, window, now)
	require.Len(t, res.Conflicts, 1)

	c := res.Conflicts[0]
	assert.Equal(t, models.CollectionItems, c.Collection)
	assert.Equal(t, "x", c.RecordID)
	assert.Equal(t, "Buy milk", c.Local["title"])
	assert.Equal(t, "Buy milk and eggs", c.Remote["title"])
	assert.Equal(t, now, c.DetectedAt)

	assert.True(t, localBefore.Equal(local.Records(models.CollectionItems)[0]))
	assert.True(t, remoteBefore.Equal(remote.Records(models.CollectionItems)[0]))
}

func TestMerge_EqualContentIsNotAConflict(t *testing.T) {
	r := item("x", "same", t0)
	res := Merge(
		bundleOf(map[string][]models.Record{models.CollectionItems: {r}}),
		bundleOf(map[string][]models.Record{models.CollectionItems: {r.Clone()}}),
		window, t0)
	assert.Empty(t, res.Conflicts)
	assert.Len(t, res.Bundle.Records(models.CollectionItems), 1)
}

func TestMerge_ResolvedIDKeepsLocal(t *testing.T) {
	local := bundleOf(map[string][]models.Record{models.CollectionItems: {item("x", "mine", t0)}})
	remote := bundleOf(map[string][]models.Record{models.CollectionItems: {item("x", "theirs", t0.Add(time.Minute))}})

	res := merge(local, remote, window, t0, resolved{models.CollectionItems: {"x": true}})
	require.Empty(t, res.Conflicts)
	assert.Equal(t, "mine", res.Bundle.Records(models.CollectionItems)[0]["title"])
}

func TestMerge_ReferenceCollectionsUnionLocalWins(t *testing.T) {
	local := bundleOf(map[string][]models.Record{models.CollectionSpaces: {
		{"id": "s1", "name": "Home (local)"},
	}})
	remote := bundleOf(map[string][]models.Record{models.CollectionSpaces: {
		{"id": "s1", "name": "Home (remote)"},
		{"id": "s2", "name": "Work"},
		{"name": "no id"},
	}})

	res := Merge(local, remote, window, t0)
	require.Empty(t, res.Conflicts)
	want := []models.Record{
		{"id": "s1", "name": "Home (local)"},
		{"id": "s2", "name": "Work"},
	}
	if diff := cmp.Diff(want, res.Bundle.Records(models.CollectionSpaces)); diff != "" {
		t.Errorf("spaces mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_AuthTokensKeyedByService(t *testing.T) {
	tok := func(svc, access string, at time.Time) models.Record {
		return models.Record{"service": svc, "accessToken": access, "updatedAt": models.FormatTime(at)}
	}
	local := bundleOf(map[string][]models.Record{models.CollectionAuthTokens: {tok("calendar", "a", t0)}})
	remote := bundleOf(map[string][]models.Record{models.CollectionAuthTokens: {
		tok("calendar", "b", t0.Add(2*window)),
		tok("mail", "c", t0),
	}})

	res := Merge(local, remote, window, t0)
	require.Empty(t, res.Conflicts)
	got := res.Bundle.Records(models.CollectionAuthTokens)
	assert.Equal(t, []string{"calendar", "mail"}, ids(got, "service"))
	assert.Equal(t, "b", got[0]["accessToken"])
}

func TestMerge_SettingsAndUnknownCollections(t *testing.T) {
	local := bundleOf(map[string][]models.Record{"legacy": {{"id": "1", "v": "local"}}})
	local.Settings = map[string]any{"theme": "dark"}
	remote := bundleOf(map[string][]models.Record{"legacy": {{"id": "1", "v": "remote"}, {"id": "2"}}})
	remote.Settings = map[string]any{"theme": "light", "lang": "lv"}

	res := Merge(local, remote, window, t0)
	assert.Equal(t, map[string]any{"theme": "dark", "lang": "lv"}, res.Bundle.Settings)
	got := res.Bundle.Records("legacy")
	assert.Equal(t, []string{"1", "2"}, ids(got, "id"))
	assert.Equal(t, "local", got[0]["v"])
	assert.Equal(t, models.SchemaVersion, res.Bundle.SchemaVersion)
}

func TestMerge_NilSides(t *testing.T) {
	res := Merge(nil, bundleOf(map[string][]models.Record{models.CollectionItems: {item("1", "a", t0)}}), window, t0)
	assert.Len(t, res.Bundle.Records(models.CollectionItems), 1)

	res = Merge(nil, nil, window, t0)
	assert.Zero(t, res.Bundle.Count())
}
