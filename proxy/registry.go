package proxy

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/remoraproj/remora/internal/log"
	"github.com/remoraproj/remora/internal/pubsub"
)

// Registry is the per-type proxy cache. It guarantees the core identity
// invariant: at most one live proxy exists per entity identifier, so two
// fetches of the same entity return the same pointer.
//
// Registry methods are safe for concurrent use; the proxies they return
// are not.
type Registry struct {
	catalog  *Catalog
	schema   *Schema
	service  Service
	updateOp Operation
	autosync bool

	mu    sync.Mutex
	cache map[uuid.UUID]*Proxy
}

// RegistryOption configures a registry at Catalog.Register time.
type RegistryOption func(*Registry)

// WithUpdateOperation selects how DIRTY proxies push their changes:
// OpPatch sends only the changed fields, OpUpdate sends the full entity.
func WithUpdateOperation(op Operation) RegistryOption {
	return func(r *Registry) {
		if op == OpUpdate || op == OpPatch {
			r.updateOp = op
		}
	}
}

// WithAutosync sets whether proxies created by this registry commit
// attribute writes to the server immediately.
func WithAutosync(on bool) RegistryOption {
	return func(r *Registry) { r.autosync = on }
}

func newRegistry(cat *Catalog, schema *Schema, svc Service, opts ...RegistryOption) *Registry {
	r := &Registry{
		catalog:  cat,
		schema:   schema,
		service:  svc,
		updateOp: OpPatch,
		autosync: true,
		cache:    map[uuid.UUID]*Proxy{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Schema returns the entity type schema this registry serves.
func (r *Registry) Schema() *Schema { return r.schema }

// Service returns the remote service this registry talks to.
func (r *Registry) Service() Service { return r.service }

// FetchProxy returns the proxy for the given identifier, creating an EMPTY
// one on first use. No server round trip happens here; data loads lazily
// on first attribute access. The all-zero UUID is rejected: it is reserved
// for proxies pending creation.
func (r *Registry) FetchProxy(id uuid.UUID) (*Proxy, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("fetch %s: %w", r.schema.name, ErrNilIdentifier)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.cache[id]; ok {
		return p, nil
	}
	p := &Proxy{
		registry: r,
		id:       uuid.NullUUID{UUID: id, Valid: true},
		autosync: r.autosync,
	}
	r.cache[id] = p
	log.Debug(log.CatRegistry, "proxy cached", "type", r.schema.name, "id", id)
	return p, nil
}

// FetchProxyForEntity returns the proxy for a wire entity already in hand,
// loading the entity's data into it. An existing CLEAN or EMPTY proxy is
// refreshed from the entity; a DIRTY proxy is a conflict, since applying
// the snapshot would silently discard local edits.
func (r *Registry) FetchProxyForEntity(ctx context.Context, entity Entity) (*Proxy, error) {
	id, err := r.schema.GetID(entity)
	if err != nil {
		return nil, err
	}
	if id == uuid.Nil {
		return nil, fmt.Errorf("fetch %s: %w", r.schema.name, ErrNilIdentifier)
	}

	r.mu.Lock()
	p, ok := r.cache[id]
	if !ok {
		p = &Proxy{
			registry: r,
			id:       uuid.NullUUID{UUID: id, Valid: true},
			autosync: r.autosync,
		}
		r.cache[id] = p
	}
	r.mu.Unlock()

	switch p.State() {
	case StateEmpty, StateClean:
		if err := p.Sync(ctx, entity); err != nil {
			if !ok {
				r.Evict(id)
			}
			return nil, err
		}
		return p, nil
	default:
		return nil, &ConflictError{Proxy: p, Entity: entity,
			Reason: "a server snapshot arrived while local changes are unsynced"}
	}
}

// RegisterProxyForEntity binds a pending proxy to the identifier the
// server assigned at creation. The proxy must still carry the all-zero
// identifier and the slot must be free.
func (r *Registry) RegisterProxyForEntity(p *Proxy, entity Entity) error {
	id, err := r.schema.GetID(entity)
	if err != nil {
		return err
	}
	if !p.id.Valid || p.id.UUID != uuid.Nil {
		return &ConflictError{Proxy: p, Entity: entity,
			Reason: "proxy is not pending creation"}
	}
	if id == uuid.Nil {
		return &EntityError{Schema: r.schema.name, WireField: r.schema.id.WireName(),
			Err: fmt.Errorf("server assigned the all-zero identifier")}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if other, ok := r.cache[id]; ok && other != p {
		return &ConflictError{Proxy: other, Entity: entity,
			Reason: "identifier is already bound to another proxy"}
	}
	p.id = uuid.NullUUID{UUID: id, Valid: true}
	r.cache[id] = p
	log.Debug(log.CatRegistry, "pending proxy bound", "type", r.schema.name, "id", id)
	return nil
}

// NewProxy builds a proxy for an entity that does not exist on the server
// yet. Given fields are validated; the rest stay absent until creation,
// when create-time defaults apply. The proxy starts DIRTY with the
// all-zero identifier; with autosync on it is created immediately.
func (r *Registry) NewProxy(ctx context.Context, fields Entity) (*Proxy, error) {
	p := &Proxy{
		registry: r,
		id:       uuid.NullUUID{UUID: uuid.Nil, Valid: true},
		attr:     Entity{},
		changed:  Entity{},
		autosync: r.autosync,
	}

	ex := r.schema.ExtrasField()
	for _, f := range r.schema.Fields() {
		if f.IsID() || f.IsExtras() {
			continue
		}
		v, ok := fields[f.Name()]
		if !ok {
			p.attr[f.Name()] = Absent
			continue
		}
		vv, err := f.Validator().Validate(v)
		if err != nil {
			return nil, &ConversionError{Field: r.schema.name + "." + f.Name(),
				Direction: "validate", Err: err}
		}
		p.attr[f.Name()] = vv
	}

	// Unclaimed fields land in the extras bag, if the type has one.
	bag := map[string]any{}
	for name, v := range fields {
		if _, ok := r.schema.fields[name]; ok {
			continue
		}
		if ex == nil {
			return nil, fmt.Errorf("entity type %s has no field %q", r.schema.name, name)
		}
		vv, err := ex.Item().Validate(v)
		if err != nil {
			return nil, &ConversionError{Field: r.schema.name + "." + name,
				Direction: "validate", Err: err}
		}
		bag[name] = vv
	}
	if ex != nil {
		p.attr[ex.Name()] = bag
	}

	if p.autosync {
		if err := p.Sync(ctx, nil); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// purgeProxy frees the cache slot of a proxy whose entity is gone, so a
// later fetch of the identifier yields a fresh proxy.
func (r *Registry) purgeProxy(p *Proxy) {
	if !p.id.Valid || p.id.UUID == uuid.Nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cache[p.id.UUID] == p {
		delete(r.cache, p.id.UUID)
	}
}

// Evict drops the cached proxy for an identifier without touching the
// proxy's state. Existing references keep working; the next fetch builds
// a fresh proxy.
func (r *Registry) Evict(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, id)
}

// Clear drops every cached proxy.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = map[uuid.UUID]*Proxy{}
}

// Len returns the number of cached proxies.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}

func (r *Registry) publish(t pubsub.EventType, id uuid.UUID) {
	if r.catalog == nil || r.catalog.events == nil {
		return
	}
	r.catalog.events.Publish(t, EntityEvent{Type: r.schema.name, ID: id})
}
