package proxy

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/remoraproj/remora/internal/pubsub"
)

// MaxFetch caps the page size of List and Fetch.
const MaxFetch = 1000

// Cursor is the collection-level API of one entity type: create, lookup,
// enumeration. It complements the instance-level API on Proxy.
type Cursor struct {
	registry *Registry
}

// Cursor returns the collection-level API for this registry's type.
func (r *Registry) Cursor() *Cursor { return &Cursor{registry: r} }

// Registry returns the backing registry.
func (c *Cursor) Registry() *Registry { return c.registry }

// Create makes a new entity from a field map in one server round trip and
// returns its CLEAN proxy. Referents of trigger-sync reference fields
// named in the map are re-synced afterwards.
func (c *Cursor) Create(ctx context.Context, fields Entity) (*Proxy, error) {
	r := c.registry
	ctx, span := tracer.Start(ctx, "cursor.Create", trace.WithAttributes(
		attribute.String("entity.type", r.schema.name),
	))
	defer span.End()

	psl := &Synclist{}
	psl.CollectFields(r, fields)

	payload := Entity{}
	for _, f := range r.schema.Fields() {
		if err := f.ConvertToCreate(ctx, r.catalog, fields, payload); err != nil {
			return nil, err
		}
	}
	entity, err := r.service.Create(ctx, payload)
	if err != nil {
		return nil, &OperationError{Schema: r.schema.name, Op: OpCreate, Err: err}
	}
	p, err := r.FetchProxyForEntity(ctx, entity)
	if err != nil {
		return nil, err
	}
	r.publish(pubsub.CreatedEvent, p.ID())
	if err := psl.Sync(ctx); err != nil {
		return p, err
	}
	return p, nil
}

// Get fetches the entity with the given identifier and returns its proxy.
// A missing entity yields (nil, nil), not an error.
func (c *Cursor) Get(ctx context.Context, id uuid.UUID) (*Proxy, error) {
	p, err := c.registry.FetchProxy(id)
	if err != nil {
		return nil, err
	}
	if p.State() == StateEmpty {
		if err := p.Sync(ctx, nil); err != nil {
			return nil, err
		}
	}
	if p.State() == StateError {
		return nil, nil
	}
	return p, nil
}

// Exists reports whether the entity with the given identifier exists on
// the server, without caching anything.
func (c *Cursor) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, err := c.registry.service.Show(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, &OperationError{Schema: c.registry.schema.name, ID: id, Op: OpShow, Err: err}
	}
	return true, nil
}

// List returns a page of entity identifiers (or name identifiers,
// depending on the service). The page size is capped at MaxFetch.
func (c *Cursor) List(ctx context.Context, limit, offset int) ([]string, error) {
	limit = clampLimit(limit)
	ids, err := c.registry.service.List(ctx, limit, offset)
	if err != nil {
		return nil, &OperationError{Schema: c.registry.schema.name, Op: OpList, Err: err}
	}
	return ids, nil
}

// Fetch returns a page of entities as CLEAN proxies. The page size is
// capped at MaxFetch.
func (c *Cursor) Fetch(ctx context.Context, limit, offset int) ([]*Proxy, error) {
	limit = clampLimit(limit)
	entities, err := c.registry.service.Fetch(ctx, limit, offset)
	if err != nil {
		return nil, &OperationError{Schema: c.registry.schema.name, Op: OpFetch, Err: err}
	}
	out := make([]*Proxy, 0, len(entities))
	for _, e := range entities {
		p, err := c.registry.FetchProxyForEntity(ctx, e)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > MaxFetch {
		return MaxFetch
	}
	return limit
}
