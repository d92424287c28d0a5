// Package backup moves the sync bundle to and from one named remote blob.
//
// A Transport does three things: find the blob, replace its content, read
// its content. The sync engine depends only on that interface; providers
// (S3-compatible storage, the backupd HTTP service, a local directory, an
// in-memory blob) are picked by configuration.
//
// Every provider failure comes back as a *Error, which matches
// common.ErrTransport under errors.Is. Transports never retry; the next
// sync trigger does.
package backup

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/daybook/internal/common"
)

// Handle identifies an existing blob.
type Handle struct {
	ID string
}

type Transport interface {
	// FindExisting returns nil, nil when no blob exists yet.
	FindExisting(ctx context.Context) (*Handle, error)
	// Upload creates the blob when h is nil, else replaces its content.
	Upload(ctx context.Context, data []byte, h *Handle) (*Handle, error)
	Download(ctx context.Context, h *Handle) ([]byte, error)
}

// Error is a failed transport call.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("backup %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{common.ErrTransport, e.Err}
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var be *Error
	if errors.As(err, &be) {
		return err
	}
	return &Error{Op: op, Err: err}
}

var errNoHandle = errors.New("no handle")
