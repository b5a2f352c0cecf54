package proxy

import (
	"context"
	"fmt"

	"github.com/remoraproj/remora/field"
)

// Field is the schema-driven descriptor for one named entity field. It
// never stores data itself; it reads and writes the owning proxy's
// attribute map, validating and converting on the way.
//
// Get is caller-facing: it lazy-loads an EMPTY proxy and rejects absent
// optional fields. Set is the low-level mutation primitive (validate,
// touch, store); the caller-facing write path on Proxy adds the
// updatability check and autocommit.
type Field interface {
	Name() string
	WireName() string
	Validator() field.Validator
	Updatable() bool
	Optional() bool
	IsID() bool
	IsNameID() bool
	IsExtras() bool
	TriggerSync() bool

	// Bind attaches the field to its owning schema. A field binds exactly
	// once.
	Bind(s *Schema) error

	Get(ctx context.Context, p *Proxy) (any, error)
	Set(ctx context.Context, p *Proxy, value any) error

	// ConvertFromEntity updates the proxy's attribute map from the wire
	// entity; ConvertToEntity does the reverse.
	ConvertFromEntity(p *Proxy, entity Entity) error
	ConvertToEntity(p *Proxy, entity Entity) error

	// ConvertToCreate fills the wire payload for entity creation, drawing
	// missing values from create-default sources on the catalog.
	ConvertToCreate(ctx context.Context, cat *Catalog, fields, out Entity) error
}

// PropertyOption configures a field at declaration time.
type PropertyOption func(*propertySpec)

type propertySpec struct {
	wireName      string
	updatable     bool
	optional      bool
	createDefault string
	triggerSync   bool
}

// Updatable allows the field to be set after creation.
func Updatable() PropertyOption { return func(s *propertySpec) { s.updatable = true } }

// Optional allows the field to be deleted (it becomes absent).
func Optional() PropertyOption { return func(s *propertySpec) { s.optional = true } }

// WireName overrides the entity field name; it defaults to the field name.
func WireName(n string) PropertyOption { return func(s *propertySpec) { s.wireName = n } }

// CreateDefault names a catalog default source used to fill this field at
// creation time when the caller provides no value.
func CreateDefault(source string) PropertyOption {
	return func(s *propertySpec) { s.createDefault = source }
}

// TriggerSync marks a reference field whose referent may become stale on
// the server when this entity changes; the synclist re-syncs it after the
// primary operation.
func TriggerSync() PropertyOption { return func(s *propertySpec) { s.triggerSync = true } }

// Property is the basic field descriptor: a validated, possibly updatable,
// possibly optional scalar or composite value.
type Property struct {
	name          string
	wireName      string
	validator     field.Validator
	updatable     bool
	optional      bool
	createDefault string
	triggerSync   bool
	schema        *Schema
}

// NewProperty declares a field named name, validated by v.
func NewProperty(name string, v field.Validator, opts ...PropertyOption) *Property {
	spec := propertySpec{wireName: name}
	for _, opt := range opts {
		opt(&spec)
	}
	if v == nil {
		v = field.NewAny()
	}
	return &Property{
		name:          name,
		wireName:      spec.wireName,
		validator:     v,
		updatable:     spec.updatable,
		optional:      spec.optional,
		createDefault: spec.createDefault,
		triggerSync:   spec.triggerSync,
	}
}

func (p *Property) Name() string               { return p.name }
func (p *Property) WireName() string           { return p.wireName }
func (p *Property) Validator() field.Validator { return p.validator }
func (p *Property) Updatable() bool            { return p.updatable }
func (p *Property) Optional() bool             { return p.optional }
func (p *Property) IsID() bool                 { return false }
func (p *Property) IsNameID() bool             { return false }
func (p *Property) IsExtras() bool             { return false }
func (p *Property) TriggerSync() bool          { return p.triggerSync }

// Bind attaches the property to its owning schema. Properties are immutable
// once bound.
func (p *Property) Bind(s *Schema) error {
	if p.schema != nil {
		return fmt.Errorf("field %q is already bound to schema %s", p.name, p.schema.name)
	}
	p.schema = s
	return nil
}

func (p *Property) qualName() string {
	if p.schema != nil {
		return p.schema.name + "." + p.name
	}
	return p.name
}

// raw returns the stored attribute value, lazily syncing an EMPTY proxy.
func (p *Property) raw(ctx context.Context, px *Proxy) (any, error) {
	if px.attr == nil {
		if err := px.Sync(ctx, nil); err != nil {
			return nil, err
		}
	}
	return px.attr[p.name], nil
}

// Get returns the caller-facing field value. Reading an absent optional
// field is an error.
func (p *Property) Get(ctx context.Context, px *Proxy) (any, error) {
	v, err := p.raw(ctx, px)
	if err != nil {
		return nil, err
	}
	if IsAbsent(v) {
		return nil, fmt.Errorf("%s: %w", p.qualName(), ErrNotPresent)
	}
	return v, nil
}

// Touch records the field's pre-change value in the proxy's change map.
// Only the first touch since the last clean state records anything; this is
// what makes Reset restore the exact last-synced values.
func (p *Property) Touch(ctx context.Context, px *Proxy) (bool, error) {
	if px.changed == nil {
		if px.attr == nil {
			if err := px.Sync(ctx, nil); err != nil {
				return false, err
			}
		}
		px.changed = Entity{p.name: px.attr[p.name]}
		return true, nil
	}
	if _, ok := px.changed[p.name]; !ok {
		px.changed[p.name] = px.attr[p.name]
		return true, nil
	}
	return false, nil
}

// Set validates, touches and stores. The Absent sentinel bypasses
// validation: it denotes removal of an optional field, not a value.
func (p *Property) Set(ctx context.Context, px *Proxy, value any) error {
	if !IsAbsent(value) {
		v, err := p.validator.Validate(value)
		if err != nil {
			return &ConversionError{Field: p.qualName(), Direction: "validate", Err: err}
		}
		value = v
	}
	if _, err := p.Touch(ctx, px); err != nil {
		return err
	}
	px.attr[p.name] = value
	return nil
}

// ConvertFromEntity stores this field's wire value into the proxy's
// attribute map. A missing wire field is an error unless the field is
// optional, in which case it becomes absent.
func (p *Property) ConvertFromEntity(px *Proxy, entity Entity) error {
	wv, ok := entity[p.wireName]
	if !ok {
		if p.optional {
			px.attr[p.name] = Absent
			return nil
		}
		return &EntityError{Schema: px.Schema().Name(), WireField: p.wireName}
	}
	if wv == nil {
		px.attr[p.name] = nil
		return nil
	}
	v, err := p.validator.FromWire(wv)
	if err != nil {
		return &EntityError{Schema: px.Schema().Name(), WireField: p.wireName, Err: err}
	}
	px.attr[p.name] = v
	return nil
}

// ConvertToEntity writes this field's wire value into the entity. Absent
// fields are skipped; nil passes through unconverted.
func (p *Property) ConvertToEntity(px *Proxy, entity Entity) error {
	v := px.attr[p.name]
	if IsAbsent(v) {
		return nil
	}
	if v == nil {
		entity[p.wireName] = nil
		return nil
	}
	wv, err := p.validator.ToWire(v)
	if err != nil {
		return &ConversionError{Field: p.qualName(), Direction: "to_wire", Err: err}
	}
	entity[p.wireName] = wv
	return nil
}

// missing resolves the creation-time default for this field: an explicit
// catalog source first, then the validator's declared default.
func (p *Property) missing(ctx context.Context, cat *Catalog) (any, bool, error) {
	if p.createDefault != "" && cat != nil {
		return cat.defaultValue(ctx, p.createDefault)
	}
	v, ok := p.validator.DefaultValue()
	return v, ok, nil
}

// ConvertToCreate fills the creation payload from the caller's fields,
// falling back to default sources. Unlike normal wire conversion, a missing
// value here is not an error.
func (p *Property) ConvertToCreate(ctx context.Context, cat *Catalog, fields, out Entity) error {
	v, ok := fields[p.name]
	if !ok {
		defv, ok, err := p.missing(ctx, cat)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		v = defv
	}
	if v == nil {
		out[p.wireName] = nil
		return nil
	}
	vv, err := p.validator.Validate(v)
	if err != nil {
		return &ConversionError{Field: p.qualName(), Direction: "validate", Err: err}
	}
	if vv == nil {
		out[p.wireName] = nil
		return nil
	}
	wv, err := p.validator.ToWire(vv)
	if err != nil {
		return &ConversionError{Field: p.qualName(), Direction: "to_wire", Err: err}
	}
	out[p.wireName] = wv
	return nil
}

// ID is the entity identifier field. The identifier lives on the proxy
// itself, never in the attribute map, so conversion is a no-op in both
// directions.
type ID struct {
	Property
}

// NewID declares the identifier field.
func NewID(name string, opts ...PropertyOption) *ID {
	return &ID{Property: *NewProperty(name, field.NewUUID(field.NotNullable()), opts...)}
}

func (f *ID) IsID() bool { return true }

// Get returns the proxy identifier.
func (f *ID) Get(ctx context.Context, px *Proxy) (any, error) {
	return px.ID(), nil
}

// Set always fails: identifiers are assigned by the registry.
func (f *ID) Set(ctx context.Context, px *Proxy, value any) error {
	return fmt.Errorf("%s: %w", f.qualName(), ErrReadOnly)
}

func (f *ID) ConvertFromEntity(px *Proxy, entity Entity) error { return nil }
func (f *ID) ConvertToEntity(px *Proxy, entity Entity) error   { return nil }
func (f *ID) ConvertToCreate(ctx context.Context, cat *Catalog, fields, out Entity) error {
	return nil
}

// NameID is the human-readable unique name many entity types carry
// alongside their UUID.
type NameID struct {
	Property
}

// NewNameID declares the name-identifier field.
func NewNameID(name string, opts ...PropertyOption) *NameID {
	return &NameID{Property: *NewProperty(name, field.NewName(), opts...)}
}

// NewNameIDWith declares a name-identifier with a custom validator (e.g.
// vocabulary names, which allow a wider character set).
func NewNameIDWith(name string, v field.Validator, opts ...PropertyOption) *NameID {
	return &NameID{Property: *NewProperty(name, v, opts...)}
}

func (f *NameID) IsNameID() bool { return true }
