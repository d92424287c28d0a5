package models

// Collection describes one named partition of records.
type Collection struct {
	Name     string
	KeyField string
	// Timestamped collections carry updatedAt and merge last-write-wins;
	// the others are reference data merged by union.
	Timestamped bool
}

const (
	CollectionItems            = "items"
	CollectionSpaces           = "spaces"
	CollectionFeeds            = "feeds"
	CollectionQuotes           = "quotes"
	CollectionWorkoutSessions  = "workoutSessions"
	CollectionWorkoutTemplates = "workoutTemplates"
	CollectionBodyWeights      = "bodyWeights"
	CollectionAuthTokens       = "authTokens"
)

// Collections lists every declared collection in processing order.
var Collections = []Collection{
	{Name: CollectionItems, KeyField: "id", Timestamped: true},
	{Name: CollectionSpaces, KeyField: "id"},
	{Name: CollectionFeeds, KeyField: "id"},
	{Name: CollectionQuotes, KeyField: "id", Timestamped: true},
	{Name: CollectionWorkoutSessions, KeyField: "id", Timestamped: true},
	{Name: CollectionWorkoutTemplates, KeyField: "id", Timestamped: true},
	{Name: CollectionBodyWeights, KeyField: "id", Timestamped: true},
	{Name: CollectionAuthTokens, KeyField: "service", Timestamped: true},
}

// LookupCollection finds a declared collection by name.
func LookupCollection(name string) (Collection, bool) {
	for _, c := range Collections {
		if c.Name == name {
			return c, true
		}
	}
	return Collection{}, false
}
