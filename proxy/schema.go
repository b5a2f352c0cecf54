package proxy

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Schema describes one proxied entity type: its name and its ordered field
// set. Schemas are immutable after Build and shared by every proxy of the
// type.
type Schema struct {
	name   string
	fields map[string]Field
	order  []string

	id     Field
	nameID Field
	extras *Extras

	wireIndex map[string]struct{}
}

var (
	schemaMu    sync.RWMutex
	schemaIndex = map[string]*Schema{}
)

// SchemaFor returns the schema registered under the given entity type name.
func SchemaFor(name string) (*Schema, error) {
	schemaMu.RLock()
	defer schemaMu.RUnlock()
	s, ok := schemaIndex[name]
	if !ok {
		return nil, fmt.Errorf("no schema registered for entity type %q", name)
	}
	return s, nil
}

// Name returns the entity type name.
func (s *Schema) Name() string { return s.name }

// Fields returns the fields in declaration order.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.order))
	for i, n := range s.order {
		out[i] = s.fields[n]
	}
	return out
}

// FieldNamed returns the field with the given name.
func (s *Schema) FieldNamed(name string) (Field, bool) {
	f, ok := s.fields[name]
	return f, ok
}

// IDField returns the identifier field.
func (s *Schema) IDField() Field { return s.id }

// NameIDField returns the name-identifier field, or nil if the type has
// none.
func (s *Schema) NameIDField() Field { return s.nameID }

// ExtrasField returns the dynamic attribute bag, or nil if the type has
// none.
func (s *Schema) ExtrasField() *Extras { return s.extras }

// wireNames returns the set of wire field names claimed by schema fields.
// The extras bag absorbs everything else.
func (s *Schema) wireNames() map[string]struct{} { return s.wireIndex }

// GetID extracts and parses the identifier from a wire entity.
func (s *Schema) GetID(entity Entity) (uuid.UUID, error) {
	wv, ok := entity[s.id.WireName()]
	if !ok {
		return uuid.Nil, &EntityError{Schema: s.name, WireField: s.id.WireName()}
	}
	switch v := wv.(type) {
	case uuid.UUID:
		return v, nil
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return uuid.Nil, &EntityError{Schema: s.name, WireField: s.id.WireName(), Err: err}
		}
		return id, nil
	default:
		return uuid.Nil, &EntityError{Schema: s.name, WireField: s.id.WireName(),
			Err: fmt.Errorf("expected an identifier string, got %T", wv)}
	}
}

// Fieldset is a reusable group of field declarations shared by several
// schemas, e.g. the name/state/metadata trio most entity types carry.
type Fieldset func() []Field

// SchemaBuilder assembles a schema field by field. Errors are accumulated
// and reported once by Build.
type SchemaBuilder struct {
	schema *Schema
	errs   []error
}

// NewSchema starts building a schema for the named entity type.
func NewSchema(name string) *SchemaBuilder {
	return &SchemaBuilder{schema: &Schema{
		name:      name,
		fields:    map[string]Field{},
		wireIndex: map[string]struct{}{},
	}}
}

// Field adds one field declaration.
func (b *SchemaBuilder) Field(f Field) *SchemaBuilder {
	s := b.schema
	name := f.Name()
	if _, ok := s.fields[name]; ok {
		b.errs = append(b.errs, fmt.Errorf("duplicate field %q", name))
		return b
	}
	if f.IsID() {
		if s.id != nil {
			b.errs = append(b.errs, fmt.Errorf("duplicate identifier field %q", name))
			return b
		}
		s.id = f
	}
	if f.IsNameID() {
		if s.nameID != nil {
			b.errs = append(b.errs, fmt.Errorf("duplicate name-identifier field %q", name))
			return b
		}
		s.nameID = f
	}
	if f.IsExtras() {
		if s.extras != nil {
			b.errs = append(b.errs, fmt.Errorf("duplicate extras field %q", name))
			return b
		}
		ex, ok := f.(*Extras)
		if !ok {
			b.errs = append(b.errs, fmt.Errorf("extras field %q must be *Extras", name))
			return b
		}
		s.extras = ex
	}
	s.fields[name] = f
	s.order = append(s.order, name)
	return b
}

// Include adds every field of a fieldset.
func (b *SchemaBuilder) Include(fs Fieldset) *SchemaBuilder {
	for _, f := range fs() {
		b.Field(f)
	}
	return b
}

// Build finalizes the schema, binds its fields and registers it under the
// entity type name. A schema without an explicit identifier field gets a
// standard "id" field. Re-registering a name replaces the previous schema.
func (b *SchemaBuilder) Build() (*Schema, error) {
	s := b.schema
	if len(b.errs) > 0 {
		return nil, fmt.Errorf("schema %s: %w", s.name, b.errs[0])
	}
	if s.id == nil {
		if _, taken := s.fields["id"]; taken {
			return nil, fmt.Errorf("schema %s: field \"id\" is not the identifier", s.name)
		}
		b.Field(NewID("id"))
		if len(b.errs) > 0 {
			return nil, fmt.Errorf("schema %s: %w", s.name, b.errs[0])
		}
	}
	for _, name := range s.order {
		f := s.fields[name]
		if err := f.Bind(s); err != nil {
			return nil, fmt.Errorf("schema %s: %w", s.name, err)
		}
		if !f.IsExtras() {
			s.wireIndex[f.WireName()] = struct{}{}
		}
	}
	schemaMu.Lock()
	schemaIndex[s.name] = s
	schemaMu.Unlock()
	return s, nil
}

// MustBuild is Build for package-level schema declarations.
func (b *SchemaBuilder) MustBuild() *Schema {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}
