// Package common contains sentinel errors and small helpers shared by the
// daybook client and the backupd service.
package common

import "errors"

var (
	// store specific errors
	ErrNotFound             = errors.New("not found")
	ErrValidation           = errors.New("validation error")
	ErrTransientStore       = errors.New("transient store error")
	ErrStorageUnavailable   = errors.New("storage unavailable")
	ErrSchemaVersionChanged = errors.New("schema version changed by another process")
	ErrStaleWrite           = errors.New("record changed since it was read")

	// backup specific errors
	ErrTransport = errors.New("transport error")

	// bundle specific errors
	ErrPasswordRequired = errors.New("password required")
	ErrInvalidPassword  = errors.New("invalid password")

	// auth specific errors
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
