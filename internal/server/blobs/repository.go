// Package blobs stores the whole-content backup blobs served by backupd.
package blobs

import (
	"context"
	"time"
)

// Meta describes a stored blob without its content.
type Meta struct {
	Owner     string
	Name      string
	Size      int64
	UpdatedBy string
	UpdatedAt time.Time
}

type Blob struct {
	Meta
	Content []byte
}

// Repository reads and replaces blobs. Missing blobs are reported with
// common.ErrNotFound.
type Repository interface {
	Stat(ctx context.Context, owner, name string) (*Meta, error)
	Get(ctx context.Context, owner, name string) (*Blob, error)
	Put(ctx context.Context, owner, name, updatedBy string, content []byte) (*Meta, error)
}
