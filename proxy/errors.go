package proxy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Proxy and registry errors.
var (
	// ErrInvalidation is returned when invalidating a DIRTY proxy without
	// force.
	ErrInvalidation = errors.New("cannot invalidate a dirty proxy without force")
	// ErrErrorState is returned for any operation attempted on a proxy
	// already in ERROR state.
	ErrErrorState = errors.New("proxy is in error state")
	// ErrNotFound is matched by not-found errors from the remote service.
	ErrNotFound = errors.New("entity not found")
	// ErrNotPresent is returned when reading or deleting an optional field
	// that has no value.
	ErrNotPresent = errors.New("field is not present")
	// ErrReadOnly is returned when setting a non-updatable field.
	ErrReadOnly = errors.New("field is read-only")
	// ErrNotOptional is returned when deleting a non-optional field.
	ErrNotOptional = errors.New("field is not optional")
	// ErrNilIdentifier is returned when the reserved all-zero UUID is used
	// as a registry lookup key. It is legal only on pending proxies.
	ErrNilIdentifier = errors.New("the all-zero UUID is reserved for pending proxies")
)

// EntityError reports a malformed entity payload from the remote service,
// e.g. a missing required wire field.
type EntityError struct {
	Schema    string
	WireField string
	Err       error
}

func (e *EntityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed %s entity, field %q: %v", e.Schema, e.WireField, e.Err)
	}
	return fmt.Sprintf("malformed %s entity: missing field %q", e.Schema, e.WireField)
}

func (e *EntityError) Unwrap() error { return e.Err }

// ConversionError reports a field validator that failed to convert a stored
// value to or from wire form.
type ConversionError struct {
	Field     string
	Direction string // "to_wire", "from_wire" or "validate"
	Err       error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("conversion failed for field %q (%s): %v", e.Field, e.Direction, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// ConflictError reports a registry-level identity collision: a server
// snapshot arriving for a proxy with unsynced local edits, or a duplicate
// registration attempt. It carries the conflicting proxy and the new entity
// payload for diagnosis.
type ConflictError struct {
	Proxy  *Proxy
	Entity Entity
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s: %s", e.Proxy.describe(), e.Reason)
}

// OperationError reports a remote service call rejected by the server. It
// carries the entity type, identifier and attempted operation.
type OperationError struct {
	Schema string
	ID     uuid.UUID
	Op     Operation
	Err    error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s %s %s: %v", e.Op, e.Schema, e.ID, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// NotFoundError signals a 404-equivalent from the remote service. Purged
// distinguishes "never existed / already purged" from a transient
// not-found.
type NotFoundError struct {
	Schema string
	ID     uuid.UUID
	Op     Operation
	Purged bool
}

func (e *NotFoundError) Error() string {
	if e.Purged {
		return fmt.Sprintf("%s %s %s: entity is purged", e.Op, e.Schema, e.ID)
	}
	return fmt.Sprintf("%s %s %s: entity not found", e.Op, e.Schema, e.ID)
}

// Is makes errors.Is(err, ErrNotFound) match.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// SyncFailure names one proxy whose sync failed inside a deferred-sync
// scope, with its cause.
type SyncFailure struct {
	Proxy *Proxy
	Err   error
}

// DeferredSyncError aggregates the individual sync failures of a
// deferred-sync scope. The proxies named here were reset; all others
// synced successfully.
type DeferredSyncError struct {
	Failures []SyncFailure
}

func (e *DeferredSyncError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s: %v", f.Proxy.describe(), f.Err)
	}
	return fmt.Sprintf("deferred sync failed for %d of the tracked proxies: %s",
		len(e.Failures), strings.Join(parts, "; "))
}

// Unwrap exposes the individual causes to errors.Is/As.
func (e *DeferredSyncError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}
