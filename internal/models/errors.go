package models

import "fmt"

// ValidationError marks a malformed or missing required field in caller
// input. Optional fields never raise it; they default silently.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// UpstreamError marks the ledger collaborator being unreachable or
// returning unusable data. The whole read fails; no partial ledger is
// ever returned.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("ledger upstream %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// StorageError marks an event store I/O failure. It aborts the specific
// write or query that hit it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("event store %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
