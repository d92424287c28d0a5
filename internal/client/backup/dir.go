package backup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/filex"
)

// DirTransport stores the blob as a file in a directory, typically one a
// desktop sync client mirrors.
type DirTransport struct {
	dir  string
	name string
}

func NewDirTransport(dir, name string) (*DirTransport, error) {
	if name == "" || name != filepath.Base(name) {
		return nil, fmt.Errorf("%w: invalid blob name %q", common.ErrValidation, name)
	}
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, wrap("init", err)
	}
	return &DirTransport{dir: abs, name: name}, nil
}

func (d *DirTransport) path() string { return filepath.Join(d.dir, d.name) }

func (d *DirTransport) FindExisting(ctx context.Context) (*Handle, error) {
	fi, err := os.Stat(d.path())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("find", err)
	}
	if fi.IsDir() {
		return nil, wrap("find", fmt.Errorf("%s is a directory", d.path()))
	}
	return &Handle{ID: d.path()}, nil
}

func (d *DirTransport) Upload(ctx context.Context, data []byte, h *Handle) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap("upload", err)
	}
	if err := filex.WriteFileAtomic(d.path(), data, 0o600); err != nil {
		return nil, wrap("upload", err)
	}
	return &Handle{ID: d.path()}, nil
}

func (d *DirTransport) Download(ctx context.Context, h *Handle) ([]byte, error) {
	if h == nil {
		return nil, wrap("download", errNoHandle)
	}
	data, err := os.ReadFile(h.ID)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, wrap("download", fmt.Errorf("%s: %w", h.ID, common.ErrNotFound))
	}
	if err != nil {
		return nil, wrap("download", err)
	}
	return data, nil
}
