package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAuthRequired is returned when a write operation is attempted
// without an authenticated identity. No remote call is made.
var ErrAuthRequired = errors.New("authentication required")

// ValidationError reports the fields of a draft or record that violate
// the product shape (missing name, negative price or quantity, bad id).
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid fields: %s", strings.Join(e.Fields, ", "))
}

// WriteFailedError wraps a remote rejection or network failure during a
// user-initiated write. The local store is left untouched.
type WriteFailedError struct {
	Op  string
	Err error
}

func (e *WriteFailedError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *WriteFailedError) Unwrap() error {
	return e.Err
}

// SyncError reports a failed snapshot fetch. Non-fatal: the controller
// degrades to a live-only view.
type SyncError struct {
	Collection string
	Err        error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s failed: %v", e.Collection, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}
