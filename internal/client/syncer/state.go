package syncer

import (
	"time"

	"github.com/dmitrijs2005/daybook/internal/client/models"
)

type Status string

const (
	StatusIdle     Status = "idle"
	StatusSyncing  Status = "syncing"
	StatusConflict Status = "conflict"
	StatusError    Status = "error"
)

// State is a read-only snapshot of the engine.
type State struct {
	Status        Status    `json:"status"`
	LastSyncTime  time.Time `json:"lastSyncTime,omitzero"`
	LastError     string    `json:"lastError,omitempty"`
	ConflictCount int       `json:"conflictCount"`
	// SyncingSince is set while Status is syncing. A value far in the past
	// means a pass is stuck on a remote call.
	SyncingSince time.Time `json:"syncingSince,omitzero"`
	// Changes are the per-collection changes the last pass applied to the
	// local store. Subscribers must not modify them.
	Changes map[string]models.Delta `json:"-"`

	Err error `json:"-"`
}

// Stalled reports whether a pass has been running longer than d.
func (s State) Stalled(now time.Time, d time.Duration) bool {
	return s.Status == StatusSyncing && !s.SyncingSince.IsZero() && now.Sub(s.SyncingSince) > d
}

type Choice int

const (
	ResolveLocal Choice = iota + 1
	ResolveRemote
	ResolveMerged
)

func (c Choice) String() string {
	switch c {
	case ResolveLocal:
		return "local"
	case ResolveRemote:
		return "remote"
	case ResolveMerged:
		return "merged"
	default:
		return "unknown"
	}
}

// Resolution settles one conflict. Value is used only with ResolveMerged.
type Resolution struct {
	Choice Choice
	Value  models.Record
}
