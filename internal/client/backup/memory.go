package backup

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/daybook/internal/common"
)

// MemoryTransport keeps the blob in process memory. It backs offline runs
// and tests; SetFailures injects errors.
type MemoryTransport struct {
	mu     sync.Mutex
	data   []byte
	exists bool

	failFind     error
	failUpload   error
	failDownload error

	finds, uploads, downloads int
}

const memoryHandleID = "memory"

func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{}
}

func (m *MemoryTransport) FindExisting(ctx context.Context) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finds++
	if m.failFind != nil {
		return nil, wrap("find", m.failFind)
	}
	if !m.exists {
		return nil, nil
	}
	return &Handle{ID: memoryHandleID}, nil
}

func (m *MemoryTransport) Upload(ctx context.Context, data []byte, h *Handle) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads++
	if m.failUpload != nil {
		return nil, wrap("upload", m.failUpload)
	}
	m.data = append([]byte(nil), data...)
	m.exists = true
	return &Handle{ID: memoryHandleID}, nil
}

func (m *MemoryTransport) Download(ctx context.Context, h *Handle) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloads++
	if m.failDownload != nil {
		return nil, wrap("download", m.failDownload)
	}
	if h == nil {
		return nil, wrap("download", errNoHandle)
	}
	if !m.exists {
		return nil, wrap("download", fmt.Errorf("blob %s: %w", h.ID, common.ErrNotFound))
	}
	return append([]byte(nil), m.data...), nil
}

// Content returns a copy of the blob and whether it exists.
func (m *MemoryTransport) Content() ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...), m.exists
}

// SetContent seeds the blob as if another device had uploaded it.
func (m *MemoryTransport) SetContent(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	m.exists = true
}

// Calls reports how many times each operation ran.
func (m *MemoryTransport) Calls() (finds, uploads, downloads int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finds, m.uploads, m.downloads
}

// SetFailures replaces the injected errors under the lock.
func (m *MemoryTransport) SetFailures(find, upload, download error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failFind, m.failUpload, m.failDownload = find, upload, download
}
