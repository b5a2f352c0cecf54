package proxy

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/remoraproj/remora/field"
)

// refValidator validates reference values. The proxy form of a reference is
// the referent's UUID; callers may also assign a *Proxy of the target type
// or an identifier string, both of which coerce to the UUID.
type refValidator struct {
	field.FieldValidator
	target string
}

func newRefValidator(target string, opts ...field.Option) *refValidator {
	rv := &refValidator{FieldValidator: field.NewBase("ref["+target+"]", opts...), target: target}
	rv.AddCheck(rv.coerce, field.PriCoerce)
	return rv
}

func (rv *refValidator) coerce(value any) (any, bool, error) {
	switch v := value.(type) {
	case uuid.UUID:
		return v, true, nil
	case *Proxy:
		if v.Schema().Name() != rv.target {
			return nil, false, fmt.Errorf("expected a %s proxy, got %s", rv.target, v.Schema().Name())
		}
		id := v.ID()
		if id == uuid.Nil {
			return nil, false, fmt.Errorf("referent %s is not created yet", v.Schema().Name())
		}
		return id, true, nil
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, false, err
		}
		return id, true, nil
	}
	return value, false, nil
}

func (rv *refValidator) ToWire(value any) (any, error) {
	id, ok := value.(uuid.UUID)
	if !ok {
		return nil, fmt.Errorf("reference holds %T, not a UUID", value)
	}
	return id.String(), nil
}

func (rv *refValidator) FromWire(value any) (any, error) {
	switch v := value.(type) {
	case uuid.UUID:
		return v, nil
	case string:
		return uuid.Parse(v)
	default:
		return nil, fmt.Errorf("cannot decode %T as a reference identifier", value)
	}
}

// Reference is a field holding the identity of another proxied entity. It
// stores the referent's UUID; reading it resolves the UUID through the
// target type's registry, so the caller always sees a proxy.
type Reference struct {
	Property
	target string
}

// NewReference declares a reference field to entities of the named target
// schema.
func NewReference(name, target string, opts ...PropertyOption) *Reference {
	p := NewProperty(name, newRefValidator(target), opts...)
	return &Reference{Property: *p, target: target}
}

// Target returns the referenced schema name.
func (f *Reference) Target() string { return f.target }

// Get resolves the stored identifier to a proxy of the target type.
func (f *Reference) Get(ctx context.Context, px *Proxy) (any, error) {
	v, err := f.Property.Get(ctx, px)
	if err != nil || v == nil {
		return nil, err
	}
	id, ok := v.(uuid.UUID)
	if !ok {
		return nil, &ConversionError{Field: f.qualName(), Direction: "from_wire",
			Err: fmt.Errorf("reference holds %T, not a UUID", v)}
	}
	reg, err := px.registry.catalog.RegistryFor(f.target)
	if err != nil {
		return nil, err
	}
	return reg.FetchProxy(id)
}

// ProxyList is the read view of a reference collection: the referent
// identifiers plus lazy resolution through the target registry.
type ProxyList struct {
	registry *Registry
	ids      []uuid.UUID
}

// Len returns the number of referents.
func (l *ProxyList) Len() int { return len(l.ids) }

// IDs returns a copy of the referent identifiers.
func (l *ProxyList) IDs() []uuid.UUID {
	out := make([]uuid.UUID, len(l.ids))
	copy(out, l.ids)
	return out
}

// At resolves the i-th referent to a proxy.
func (l *ProxyList) At(i int) (*Proxy, error) {
	return l.registry.FetchProxy(l.ids[i])
}

// Proxies resolves all referents.
func (l *ProxyList) Proxies() ([]*Proxy, error) {
	out := make([]*Proxy, len(l.ids))
	for i, id := range l.ids {
		p, err := l.registry.FetchProxy(id)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// RefList is a server-managed collection of references to entities of one
// target type. It is read-only on the client: membership changes happen
// through operations on the referents, and the synclist refreshes this
// proxy afterwards when the field is marked TriggerSync.
type RefList struct {
	Property
	target string
}

// NewRefList declares a reference-collection field to the named target
// schema.
func NewRefList(name, target string, opts ...PropertyOption) *RefList {
	p := NewProperty(name, field.NewAny(), opts...)
	p.updatable = false
	return &RefList{Property: *p, target: target}
}

// Target returns the referenced schema name.
func (f *RefList) Target() string { return f.target }

// Get returns a ProxyList over the stored referent identifiers.
func (f *RefList) Get(ctx context.Context, px *Proxy) (any, error) {
	v, err := f.Property.Get(ctx, px)
	if err != nil {
		return nil, err
	}
	reg, err := px.registry.catalog.RegistryFor(f.target)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return &ProxyList{registry: reg}, nil
	}
	ids, ok := v.([]uuid.UUID)
	if !ok {
		return nil, &ConversionError{Field: f.qualName(), Direction: "from_wire",
			Err: fmt.Errorf("reference list holds %T", v)}
	}
	return &ProxyList{registry: reg, ids: ids}, nil
}

// Set always fails: the collection is maintained by the server.
func (f *RefList) Set(ctx context.Context, px *Proxy, value any) error {
	return fmt.Errorf("%s: %w", f.qualName(), ErrReadOnly)
}

// ConvertFromEntity decodes the wire collection into referent identifiers.
// Elements may be identifier strings or nested entity objects, in which
// case the target schema's identifier field is extracted.
func (f *RefList) ConvertFromEntity(px *Proxy, entity Entity) error {
	wv, ok := entity[f.wireName]
	if !ok {
		if f.optional {
			px.attr[f.name] = Absent
			return nil
		}
		return &EntityError{Schema: px.Schema().Name(), WireField: f.wireName}
	}
	if wv == nil {
		px.attr[f.name] = nil
		return nil
	}
	items, ok := wv.([]any)
	if !ok {
		return &EntityError{Schema: px.Schema().Name(), WireField: f.wireName,
			Err: fmt.Errorf("expected a list, got %T", wv)}
	}
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		id, err := f.extractID(item)
		if err != nil {
			return &EntityError{Schema: px.Schema().Name(), WireField: f.wireName, Err: err}
		}
		ids = append(ids, id)
	}
	px.attr[f.name] = ids
	return nil
}

func (f *RefList) extractID(item any) (uuid.UUID, error) {
	switch v := item.(type) {
	case string:
		return uuid.Parse(v)
	case map[string]any:
		ts, err := SchemaFor(f.target)
		if err != nil {
			return uuid.Nil, err
		}
		return ts.GetID(v)
	default:
		return uuid.Nil, fmt.Errorf("cannot extract a %s identifier from %T", f.target, item)
	}
}

// ConvertToEntity encodes the referent identifiers as a list of strings.
func (f *RefList) ConvertToEntity(px *Proxy, entity Entity) error {
	v := px.attr[f.name]
	if IsAbsent(v) {
		return nil
	}
	if v == nil {
		entity[f.wireName] = nil
		return nil
	}
	ids, ok := v.([]uuid.UUID)
	if !ok {
		return &ConversionError{Field: f.qualName(), Direction: "to_wire",
			Err: fmt.Errorf("reference list holds %T", v)}
	}
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	entity[f.wireName] = out
	return nil
}

// ConvertToCreate is a no-op: the server initializes reference collections.
func (f *RefList) ConvertToCreate(ctx context.Context, cat *Catalog, fields, out Entity) error {
	return nil
}
