package models

import "time"

// Conflict is a record both sides changed within the conflict window.
type Conflict struct {
	Collection string    `json:"collection"`
	RecordID   string    `json:"recordId"`
	Local      Record    `json:"local"`
	Remote     Record    `json:"remote"`
	DetectedAt time.Time `json:"detectedAt"`
}

// Delta is the difference between two snapshots of one collection.
// Changes holds the new value for added and modified ids and the last known
// value for deleted ones.
type Delta struct {
	Added    []string          `json:"added"`
	Modified []string          `json:"modified"`
	Deleted  []string          `json:"deleted"`
	Changes  map[string]Record `json:"changes"`
}

func (d Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Modified) == 0 && len(d.Deleted) == 0
}
