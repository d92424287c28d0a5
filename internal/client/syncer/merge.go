package syncer

import (
	"slices"
	"time"

	"github.com/dmitrijs2005/daybook/internal/client/bundle"
	"github.com/dmitrijs2005/daybook/internal/client/models"
)

// MergeResult is the outcome of merging two bundles. When Conflicts is not
// empty the merged bundle must not be applied anywhere.
type MergeResult struct {
	Bundle    *bundle.DataBundle
	Conflicts []models.Conflict
}

// Merge reconciles local against remote.
//
// Timestamped collections merge per id: one-sided records are kept, equal
// records are kept once, and differing records go to the newer updatedAt
// unless the two timestamps are closer than window, in which case a
// Conflict is reported. Reference collections, collections this build does
// not declare, and settings are unioned with local winning on collision.
func Merge(local, remote *bundle.DataBundle, window time.Duration, now time.Time) MergeResult {
	return merge(local, remote, window, now, nil)
}

// resolved lists ids per collection whose local value was chosen by the
// user and must win regardless of timestamps.
type resolved map[string]map[string]bool

func (r resolved) has(collection, id string) bool {
	return r != nil && r[collection][id]
}

func merge(local, remote *bundle.DataBundle, window time.Duration, now time.Time, res resolved) MergeResult {
	if local == nil {
		local = bundle.New(now)
	}
	if remote == nil {
		remote = bundle.New(now)
	}

	out := bundle.New(now)
	var conflicts []models.Conflict

	for _, c := range models.Collections {
		_, inLocal := local.Data[c.Name]
		_, inRemote := remote.Data[c.Name]
		if !inLocal && !inRemote {
			continue
		}
		var cs []models.Conflict
		if c.Timestamped {
			out.Data[c.Name], cs = mergeTimestamped(c, local.Data[c.Name], remote.Data[c.Name], window, now, res)
		} else {
			out.Data[c.Name] = mergeUnion(c.KeyField, local.Data[c.Name], remote.Data[c.Name], true)
		}
		conflicts = append(conflicts, cs...)
	}

	for _, name := range extraCollections(local, remote) {
		out.Data[name] = mergeUnion("id", local.Data[name], remote.Data[name], false)
	}

	for k, v := range remote.Settings {
		out.Settings[k] = v
	}
	for k, v := range local.Settings {
		out.Settings[k] = v
	}

	return MergeResult{Bundle: out, Conflicts: conflicts}
}

// extraCollections returns undeclared collection names from both sides,
// sorted.
func extraCollections(local, remote *bundle.DataBundle) []string {
	var names []string
	for _, b := range []*bundle.DataBundle{local, remote} {
		for name := range b.Data {
			if _, ok := models.LookupCollection(name); ok || slices.Contains(names, name) {
				continue
			}
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// index keys records by keyField preserving first-seen order. A later
// duplicate replaces the earlier value in place.
func index(recs []models.Record, keyField string) (order []string, byKey map[string]models.Record, keyless []models.Record) {
	byKey = make(map[string]models.Record, len(recs))
	for _, r := range recs {
		k := r.Key(keyField)
		if k == "" {
			keyless = append(keyless, r)
			continue
		}
		if _, seen := byKey[k]; !seen {
			order = append(order, k)
		}
		byKey[k] = r
	}
	return order, byKey, keyless
}

func mergeTimestamped(c models.Collection, local, remote []models.Record, window time.Duration, now time.Time, res resolved) ([]models.Record, []models.Conflict) {
	localOrder, localBy, _ := index(local, c.KeyField)
	remoteOrder, remoteBy, _ := index(remote, c.KeyField)

	out := make([]models.Record, 0, len(localOrder)+len(remoteOrder))
	var conflicts []models.Conflict

	for _, id := range localOrder {
		l := localBy[id]
		r, ok := remoteBy[id]
		if !ok || l.Equal(r) || res.has(c.Name, id) {
			out = append(out, l)
			continue
		}

		lt, _ := l.UpdatedAt()
		rt, _ := r.UpdatedAt()
		gap := lt.Sub(rt)
		if gap < 0 {
			gap = -gap
		}
		switch {
		case gap < window:
			conflicts = append(conflicts, models.Conflict{
				Collection: c.Name,
				RecordID:   id,
				Local:      l,
				Remote:     r,
				DetectedAt: now.UTC(),
			})
			out = append(out, l)
		case rt.After(lt):
			out = append(out, r)
		default:
			out = append(out, l)
		}
	}

	for _, id := range remoteOrder {
		if _, ok := localBy[id]; !ok {
			out = append(out, remoteBy[id])
		}
	}
	return out, conflicts
}

// mergeUnion keeps every local record and adds remote ones whose key is
// unknown locally. Keyless records are dropped for declared collections
// and passed through, deduplicated by content, otherwise.
func mergeUnion(keyField string, local, remote []models.Record, dropKeyless bool) []models.Record {
	localOrder, localBy, localKeyless := index(local, keyField)
	remoteOrder, remoteBy, remoteKeyless := index(remote, keyField)

	out := make([]models.Record, 0, len(localOrder)+len(remoteOrder))
	for _, id := range localOrder {
		out = append(out, localBy[id])
	}
	for _, id := range remoteOrder {
		if _, ok := localBy[id]; !ok {
			out = append(out, remoteBy[id])
		}
	}
	if dropKeyless {
		return out
	}

	keyless := localKeyless
	for _, r := range remoteKeyless {
		if !slices.ContainsFunc(keyless, r.Equal) {
			keyless = append(keyless, r)
		}
	}
	return append(out, keyless...)
}
