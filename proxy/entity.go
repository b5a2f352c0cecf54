package proxy

import (
	"context"

	"github.com/google/uuid"
)

// Entity is the wire-format representation of a record: a JSON-like object
// of nested maps, lists and scalars.
type Entity = map[string]any

// absentMarker is the deletion sentinel. It is distinct from nil: nil means
// "this field is null", the marker means "this optional field has no value
// at all". It bypasses validation entirely.
type absentMarker struct{}

func (absentMarker) String() string { return "<absent>" }

// Absent denotes a deleted or never-set optional field.
var Absent any = absentMarker{}

// IsAbsent reports whether v is the deletion sentinel.
func IsAbsent(v any) bool {
	_, ok := v.(absentMarker)
	return ok
}

// Operation identifies one of the remote service calls.
type Operation string

const (
	OpShow   Operation = "show"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpPatch  Operation = "patch"
	OpDelete Operation = "delete"
	OpPurge  Operation = "purge"
	OpList   Operation = "list"
	OpFetch  Operation = "fetch"
)

// Service is the abstract remote entity service consumed by the core, one
// per entity type. Implementations own transport, authentication, retries
// and endpoint layout. Not-found conditions must be reported with an error
// matching ErrNotFound (NotFoundError qualifies).
type Service interface {
	Show(ctx context.Context, id uuid.UUID) (Entity, error)
	Create(ctx context.Context, fields Entity) (Entity, error)
	Update(ctx context.Context, id uuid.UUID, fields Entity) (Entity, error)
	Patch(ctx context.Context, id uuid.UUID, changed Entity) (Entity, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Purge(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]string, error)
	Fetch(ctx context.Context, limit, offset int) ([]Entity, error)
}
