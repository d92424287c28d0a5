package blobs

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/daybook/internal/common"
)

// MemoryRepository keeps blobs in process memory. backupd uses it when no
// database DSN is configured.
type MemoryRepository struct {
	mu    sync.RWMutex
	blobs map[[2]string]*Blob
	now   func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{blobs: map[[2]string]*Blob{}, now: time.Now}
}

func (r *MemoryRepository) Stat(ctx context.Context, owner, name string) (*Meta, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.blobs[[2]string{owner, name}]
	if !ok {
		return nil, fmt.Errorf("blob %s/%s: %w", owner, name, common.ErrNotFound)
	}
	m := b.Meta
	return &m, nil
}

func (r *MemoryRepository) Get(ctx context.Context, owner, name string) (*Blob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.blobs[[2]string{owner, name}]
	if !ok {
		return nil, fmt.Errorf("blob %s/%s: %w", owner, name, common.ErrNotFound)
	}
	return &Blob{Meta: b.Meta, Content: bytes.Clone(b.Content)}, nil
}

func (r *MemoryRepository) Put(ctx context.Context, owner, name, updatedBy string, content []byte) (*Meta, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := &Blob{
		Meta: Meta{
			Owner:     owner,
			Name:      name,
			Size:      int64(len(content)),
			UpdatedBy: updatedBy,
			UpdatedAt: r.now().UTC(),
		},
		Content: bytes.Clone(content),
	}
	r.blobs[[2]string{owner, name}] = b
	m := b.Meta
	return &m, nil
}

var _ Repository = (*MemoryRepository)(nil)
