package proxy

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/remoraproj/remora/internal/log"
	"github.com/remoraproj/remora/internal/pubsub"
)

var tracer = otel.Tracer("github.com/remoraproj/remora/proxy")

// Proxy is the local handle for one remote entity. At most one proxy per
// (type, identifier) exists in a registry; all state-dependent behavior is
// derived from the identifier, the attribute map and the change map.
//
// Proxies are not safe for concurrent use; the registry that owns them is.
type Proxy struct {
	registry *Registry

	// id.Valid == false marks the ERROR state. The all-zero UUID with
	// Valid == true marks an entity pending creation.
	id       uuid.NullUUID
	purgedID uuid.UUID
	purged   bool

	attr    Entity
	changed Entity

	autosync bool
}

// Schema returns the entity type schema.
func (p *Proxy) Schema() *Schema { return p.registry.schema }

// Registry returns the owning registry.
func (p *Proxy) Registry() *Registry { return p.registry }

// ID returns the entity identifier. It is the all-zero UUID for proxies
// pending creation and for proxies in ERROR state; see State.
func (p *Proxy) ID() uuid.UUID {
	if !p.id.Valid {
		return uuid.Nil
	}
	return p.id.UUID
}

// PurgedID returns the identifier the entity had before it was deleted.
// Zero unless the proxy is in ERROR state.
func (p *Proxy) PurgedID() uuid.UUID { return p.purgedID }

// Purged reports whether the entity was purged (physically erased) rather
// than soft-deleted.
func (p *Proxy) Purged() bool { return p.purged }

// Autosync reports whether attribute writes commit to the server
// immediately.
func (p *Proxy) Autosync() bool { return p.autosync }

// SetAutosync toggles immediate commit of attribute writes.
func (p *Proxy) SetAutosync(on bool) { p.autosync = on }

// State derives the proxy lifecycle state.
func (p *Proxy) State() State {
	switch {
	case !p.id.Valid:
		return StateError
	case p.attr == nil:
		return StateEmpty
	case p.changed == nil:
		return StateClean
	default:
		return StateDirty
	}
}

func (p *Proxy) describe() string {
	name := "?"
	if p.registry != nil {
		name = p.registry.schema.name
	}
	id := "?"
	switch {
	case !p.id.Valid:
		id = p.purgedID.String()
	case p.id.UUID == uuid.Nil:
		id = "pending"
	default:
		id = p.id.UUID.String()
	}
	return fmt.Sprintf("%s[%s] (%s)", name, id, p.State())
}

// FromEntity replaces the proxy's attributes with the decoded wire entity,
// leaving the proxy CLEAN. On error the previous attributes are kept.
func (p *Proxy) FromEntity(entity Entity) error {
	old := p.attr
	p.attr = Entity{}
	for _, f := range p.Schema().Fields() {
		if err := f.ConvertFromEntity(p, entity); err != nil {
			p.attr = old
			return err
		}
	}
	p.changed = nil
	return nil
}

// ToEntity encodes the proxy's attributes as a wire entity. A non-nil
// attrset restricts the output to the named fields.
func (p *Proxy) ToEntity(attrset map[string]struct{}) (Entity, error) {
	entity := Entity{}
	for _, f := range p.Schema().Fields() {
		if attrset != nil {
			if _, ok := attrset[f.Name()]; !ok {
				continue
			}
		}
		if err := f.ConvertToEntity(p, entity); err != nil {
			return nil, err
		}
	}
	return entity, nil
}

// Sync reconciles the proxy with the server. A pending proxy is created;
// a DIRTY proxy pushes its changes; otherwise the server copy is fetched
// (or taken from entity, if given) and loaded. A server-side not-found on
// fetch silently moves the proxy to ERROR: the entity is gone.
func (p *Proxy) Sync(ctx context.Context, entity Entity) error {
	ctx, span := tracer.Start(ctx, "proxy.Sync", trace.WithAttributes(
		attribute.String("entity.type", p.Schema().Name()),
		attribute.String("proxy.state", p.State().String()),
	))
	defer span.End()

	if !p.id.Valid {
		return fmt.Errorf("sync %s: %w", p.describe(), ErrErrorState)
	}
	if p.id.UUID == uuid.Nil {
		return p.syncCreate(ctx)
	}

	if p.changed != nil {
		if err := p.pushChanges(ctx, &entity); err != nil {
			return err
		}
	}

	if entity == nil {
		var err error
		entity, err = p.registry.service.Show(ctx, p.id.UUID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				log.Info(log.CatSync, "entity vanished on sync",
					"type", p.Schema().Name(), "id", p.id.UUID)
				p.registry.purgeProxy(p)
				p.markPurged()
				return nil
			}
			return &OperationError{Schema: p.Schema().Name(), ID: p.id.UUID, Op: OpShow, Err: err}
		}
	}
	return p.FromEntity(entity)
}

// pushChanges sends local edits to the server with the registry's update
// operation and leaves the server's response in *entity. On failure the
// change map is kept, so the proxy stays DIRTY and can be retried or
// Reset.
func (p *Proxy) pushChanges(ctx context.Context, entity *Entity) error {
	psl := &Synclist{}
	psl.CollectUpdate(p)

	op := p.registry.updateOp
	var payload Entity
	var err error
	if op == OpPatch {
		attrset := make(map[string]struct{}, len(p.changed))
		for name := range p.changed {
			attrset[name] = struct{}{}
		}
		payload, err = p.ToEntity(attrset)
	} else {
		payload, err = p.ToEntity(nil)
	}
	if err != nil {
		return err
	}

	var resp Entity
	if op == OpPatch {
		resp, err = p.registry.service.Patch(ctx, p.id.UUID, payload)
	} else {
		resp, err = p.registry.service.Update(ctx, p.id.UUID, payload)
	}
	if err != nil {
		return &OperationError{Schema: p.Schema().Name(), ID: p.id.UUID, Op: op, Err: err}
	}

	log.Debug(log.CatSync, "pushed changes",
		"type", p.Schema().Name(), "id", p.id.UUID, "op", op, "fields", len(p.changed))
	p.changed = nil
	*entity = resp
	p.registry.publish(pubsub.UpdatedEvent, p.id.UUID)
	return psl.Sync(ctx)
}

// createPayload encodes the pending proxy's attributes as a creation
// payload. Absent fields fall back to their create-time defaults; the
// extras bag is flattened to top-level wire fields.
func (p *Proxy) createPayload(ctx context.Context) (Entity, error) {
	ex := p.Schema().ExtrasField()
	fields := Entity{}
	for name, v := range p.attr {
		if IsAbsent(v) {
			continue
		}
		if ex != nil && name == ex.Name() {
			if m, ok := v.(map[string]any); ok {
				for k, ev := range m {
					fields[k] = ev
				}
			}
			continue
		}
		fields[name] = v
	}
	payload := Entity{}
	for _, f := range p.Schema().Fields() {
		if err := f.ConvertToCreate(ctx, p.registry.catalog, fields, payload); err != nil {
			return nil, err
		}
	}
	return payload, nil
}

// syncCreate creates the pending entity on the server, binds the proxy to
// the assigned identifier and re-syncs referents of trigger-sync fields.
func (p *Proxy) syncCreate(ctx context.Context) error {
	psl := &Synclist{}
	psl.CollectCreate(p)

	payload, err := p.createPayload(ctx)
	if err != nil {
		return err
	}
	entity, err := p.registry.service.Create(ctx, payload)
	if err != nil {
		return &OperationError{Schema: p.Schema().Name(), Op: OpCreate, Err: err}
	}
	if err := p.registry.RegisterProxyForEntity(p, entity); err != nil {
		return err
	}
	if err := p.FromEntity(entity); err != nil {
		return err
	}
	log.Info(log.CatSync, "entity created", "type", p.Schema().Name(), "id", p.id.UUID)
	p.registry.publish(pubsub.CreatedEvent, p.id.UUID)
	return psl.Sync(ctx)
}

// Invalidate drops the local attributes so the next access re-fetches from
// the server. A DIRTY proxy refuses unless force is set; force discards
// the local edits.
func (p *Proxy) Invalidate(force bool) error {
	if !p.id.Valid {
		return fmt.Errorf("invalidate %s: %w", p.describe(), ErrErrorState)
	}
	if p.id.UUID == uuid.Nil {
		return fmt.Errorf("invalidate %s: %w", p.describe(), ErrNilIdentifier)
	}
	if p.changed != nil && !force {
		return fmt.Errorf("invalidate %s: %w", p.describe(), ErrInvalidation)
	}
	p.attr = nil
	p.changed = nil
	return nil
}

// Reset rolls back local edits, restoring the values recorded at first
// touch. The proxy returns to CLEAN.
func (p *Proxy) Reset() {
	if p.changed == nil {
		return
	}
	for name, v := range p.changed {
		p.attr[name] = v
	}
	p.changed = nil
	log.Debug(log.CatProxy, "reset", "desc", p.describe())
}

// markPurged moves the proxy to ERROR state, remembering the identifier it
// had. Every subsequent operation fails with ErrErrorState.
func (p *Proxy) markPurged() {
	if p.id.Valid {
		p.purgedID = p.id.UUID
	}
	p.id = uuid.NullUUID{}
	p.attr = nil
	p.changed = nil
}

// Delete removes the entity on the server. With purge the entity is
// physically erased; otherwise it is soft-deleted. Either way this proxy
// moves to ERROR and its registry slot is freed, so a later fetch of the
// same identifier yields a fresh proxy. Deleting an ERROR proxy is a
// no-op.
func (p *Proxy) Delete(ctx context.Context, purge bool) error {
	ctx, span := tracer.Start(ctx, "proxy.Delete", trace.WithAttributes(
		attribute.String("entity.type", p.Schema().Name()),
		attribute.Bool("purge", purge),
	))
	defer span.End()

	if !p.id.Valid {
		return nil
	}
	if p.id.UUID == uuid.Nil {
		// Never created: nothing to delete remotely.
		p.markPurged()
		p.purged = purge
		return nil
	}

	psl := &Synclist{}
	psl.CollectDelete(p)

	id := p.id.UUID
	var err error
	op := OpDelete
	if purge {
		op = OpPurge
		err = p.registry.service.Purge(ctx, id)
	} else {
		err = p.registry.service.Delete(ctx, id)
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return &OperationError{Schema: p.Schema().Name(), ID: id, Op: op, Err: err}
	}

	log.Info(log.CatSync, "entity deleted",
		"type", p.Schema().Name(), "id", id, "purge", purge)
	p.registry.purgeProxy(p)
	p.markPurged()
	p.purged = purge
	if purge {
		p.registry.publish(pubsub.PurgedEvent, id)
	} else {
		p.registry.publish(pubsub.DeletedEvent, id)
	}
	return psl.Sync(ctx)
}

// autocommit pushes a DIRTY proxy to the server when autosync is on. On
// failure the local edits are rolled back before the error is returned,
// so the proxy never silently diverges from the server.
func (p *Proxy) autocommit(ctx context.Context) error {
	if !p.autosync || p.State() != StateDirty {
		return nil
	}
	if err := p.Sync(ctx, nil); err != nil {
		p.Reset()
		return err
	}
	return nil
}

func (p *Proxy) fieldNamed(name string) (Field, error) {
	f, ok := p.Schema().FieldNamed(name)
	if !ok {
		return nil, fmt.Errorf("entity type %s has no field %q", p.Schema().Name(), name)
	}
	return f, nil
}

// Get reads a field by name, lazily syncing an EMPTY proxy.
func (p *Proxy) Get(ctx context.Context, name string) (any, error) {
	f, err := p.fieldNamed(name)
	if err != nil {
		return nil, err
	}
	if !p.id.Valid {
		return nil, fmt.Errorf("get %s.%s: %w", p.Schema().Name(), name, ErrErrorState)
	}
	return f.Get(ctx, p)
}

// Set writes a field by name. With autosync on, the change commits to the
// server immediately and rolls back on failure; otherwise the proxy turns
// DIRTY until the next Sync.
func (p *Proxy) Set(ctx context.Context, name string, value any) error {
	f, err := p.fieldNamed(name)
	if err != nil {
		return err
	}
	if !p.id.Valid {
		return fmt.Errorf("set %s.%s: %w", p.Schema().Name(), name, ErrErrorState)
	}
	if !f.Updatable() {
		return fmt.Errorf("%s.%s: %w", p.Schema().Name(), name, ErrReadOnly)
	}
	// The deletion sentinel never goes through Set; it would sidestep the
	// optionality check. DeleteField is the one way to remove a value.
	if IsAbsent(value) {
		return fmt.Errorf("%s.%s: fields cannot be set to %v, use DeleteField",
			p.Schema().Name(), name, Absent)
	}
	if err := f.Set(ctx, p, value); err != nil {
		return err
	}
	return p.autocommit(ctx)
}

// DeleteField removes an optional field's value; the field becomes absent.
func (p *Proxy) DeleteField(ctx context.Context, name string) error {
	f, err := p.fieldNamed(name)
	if err != nil {
		return err
	}
	if !p.id.Valid {
		return fmt.Errorf("delete %s.%s: %w", p.Schema().Name(), name, ErrErrorState)
	}
	if !f.Updatable() {
		return fmt.Errorf("%s.%s: %w", p.Schema().Name(), name, ErrReadOnly)
	}
	if !f.Optional() {
		return fmt.Errorf("%s.%s: %w", p.Schema().Name(), name, ErrNotOptional)
	}
	// Deleting an already-absent field is an error; Get reports it.
	if _, err := f.Get(ctx, p); err != nil {
		return err
	}
	if err := f.Set(ctx, p, Absent); err != nil {
		return err
	}
	return p.autocommit(ctx)
}

// Update applies several field writes as one atomic group: either all of
// them commit in a single server round trip or, on failure, none of them
// stick. An Absent value deletes the named field, under the same
// optionality rules as DeleteField.
func (p *Proxy) Update(ctx context.Context, fields Entity) error {
	return DeferredSync(ctx, func() error {
		for name, v := range fields {
			var err error
			if IsAbsent(v) {
				err = p.DeleteField(ctx, name)
			} else {
				err = p.Set(ctx, name, v)
			}
			if err != nil {
				return err
			}
		}
		return nil
	}, p)
}

func (p *Proxy) extrasField() (*Extras, error) {
	ex := p.Schema().ExtrasField()
	if ex == nil {
		return nil, fmt.Errorf("entity type %s has no dynamic attributes", p.Schema().Name())
	}
	if !p.id.Valid {
		return nil, fmt.Errorf("%s extras: %w", p.Schema().Name(), ErrErrorState)
	}
	return ex, nil
}

// GetExtra reads one dynamic attribute.
func (p *Proxy) GetExtra(ctx context.Context, key string) (any, error) {
	ex, err := p.extrasField()
	if err != nil {
		return nil, err
	}
	return ex.GetValue(ctx, p, key)
}

// SetExtra writes one dynamic attribute, creating it if needed.
func (p *Proxy) SetExtra(ctx context.Context, key string, value any) error {
	ex, err := p.extrasField()
	if err != nil {
		return err
	}
	if err := ex.SetValue(ctx, p, key, value); err != nil {
		return err
	}
	return p.autocommit(ctx)
}

// DeleteExtra removes one dynamic attribute.
func (p *Proxy) DeleteExtra(ctx context.Context, key string) error {
	ex, err := p.extrasField()
	if err != nil {
		return err
	}
	if err := ex.DeleteValue(ctx, p, key); err != nil {
		return err
	}
	return p.autocommit(ctx)
}
