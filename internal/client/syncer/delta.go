package syncer

import (
	"github.com/dmitrijs2005/daybook/internal/client/bundle"
	"github.com/dmitrijs2005/daybook/internal/client/models"
)

// ComputeDelta compares two snapshots of one collection. Added and modified
// ids are listed in next's order, deleted ids in prev's order. Changes maps
// added and modified ids to their new value and deleted ids to the value
// they had in prev.
func ComputeDelta(prev, next []models.Record, keyField string) models.Delta {
	prevOrder, prevBy, _ := index(prev, keyField)
	nextOrder, nextBy, _ := index(next, keyField)

	d := models.Delta{Changes: map[string]models.Record{}}
	for _, id := range nextOrder {
		n := nextBy[id]
		p, ok := prevBy[id]
		switch {
		case !ok:
			d.Added = append(d.Added, id)
			d.Changes[id] = n
		case !p.Equal(n):
			d.Modified = append(d.Modified, id)
			d.Changes[id] = n
		}
	}
	for _, id := range prevOrder {
		if _, ok := nextBy[id]; !ok {
			d.Deleted = append(d.Deleted, id)
			d.Changes[id] = prevBy[id]
		}
	}
	return d
}

// BundleDelta runs ComputeDelta for every collection in either bundle and
// returns the non-empty results.
func BundleDelta(prev, next *bundle.DataBundle) map[string]models.Delta {
	out := map[string]models.Delta{}
	seen := map[string]bool{}
	for _, b := range []*bundle.DataBundle{prev, next} {
		if b == nil {
			continue
		}
		for name := range b.Data {
			if seen[name] {
				continue
			}
			seen[name] = true

			keyField := "id"
			if c, ok := models.LookupCollection(name); ok {
				keyField = c.KeyField
			}
			d := ComputeDelta(prev.Records(name), next.Records(name), keyField)
			if !d.Empty() {
				out[name] = d
			}
		}
	}
	return out
}
