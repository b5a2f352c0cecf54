package proxy

import (
	"context"
	"fmt"

	"github.com/remoraproj/remora/field"
)

// Extras is the dynamic attribute bag: it absorbs every top-level wire
// field the schema does not claim, and flattens them back on the way out.
// The bag is mutated through Proxy.SetExtra and Proxy.DeleteExtra, never
// assigned wholesale.
type Extras struct {
	Property
	item field.Validator
}

// NewExtras declares the dynamic attribute bag. The item validator, if
// given, applies to each value set through SetExtra.
func NewExtras(name string, item field.Validator, opts ...PropertyOption) *Extras {
	if item == nil {
		item = field.NewAny()
	}
	p := NewProperty(name, field.NewDict(item), opts...)
	p.updatable = true
	return &Extras{Property: *p, item: item}
}

func (f *Extras) IsExtras() bool { return true }

// Item returns the per-value validator.
func (f *Extras) Item() field.Validator { return f.item }

// Get returns a copy of the bag; mutating the copy does not touch the
// proxy.
func (f *Extras) Get(ctx context.Context, px *Proxy) (any, error) {
	v, err := f.raw(ctx, px)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(m))
	for k, val := range m {
		out[k] = val
	}
	return out, nil
}

// Set always fails; individual keys are set through Proxy.SetExtra.
func (f *Extras) Set(ctx context.Context, px *Proxy, value any) error {
	return fmt.Errorf("%s: %w", f.qualName(), ErrReadOnly)
}

// Touch snapshots the whole bag on first touch so Reset can restore it;
// the live map is then mutated in place.
func (f *Extras) Touch(ctx context.Context, px *Proxy) (bool, error) {
	first, err := f.Property.Touch(ctx, px)
	if err != nil || !first {
		return first, err
	}
	if m, ok := px.changed[f.name].(map[string]any); ok {
		cp := make(map[string]any, len(m))
		for k, v := range m {
			cp[k] = v
		}
		px.changed[f.name] = cp
	}
	return true, nil
}

// live returns the mutable bag, lazily syncing and materializing it.
func (f *Extras) live(ctx context.Context, px *Proxy) (map[string]any, error) {
	if px.attr == nil {
		if err := px.Sync(ctx, nil); err != nil {
			return nil, err
		}
	}
	m, ok := px.attr[f.name].(map[string]any)
	if !ok {
		m = map[string]any{}
		px.attr[f.name] = m
	}
	return m, nil
}

// SetValue validates and stores one key of the bag.
func (f *Extras) SetValue(ctx context.Context, px *Proxy, key string, value any) error {
	v, err := f.item.Validate(value)
	if err != nil {
		return &ConversionError{Field: f.qualName() + "." + key, Direction: "validate", Err: err}
	}
	if _, err := f.Touch(ctx, px); err != nil {
		return err
	}
	m, err := f.live(ctx, px)
	if err != nil {
		return err
	}
	m[key] = v
	return nil
}

// DeleteValue removes one key of the bag. Deleting a missing key is an
// error.
func (f *Extras) DeleteValue(ctx context.Context, px *Proxy, key string) error {
	m, err := f.live(ctx, px)
	if err != nil {
		return err
	}
	if _, ok := m[key]; !ok {
		return fmt.Errorf("%s.%s: %w", f.qualName(), key, ErrNotPresent)
	}
	if _, err := f.Touch(ctx, px); err != nil {
		return err
	}
	delete(m, key)
	return nil
}

// GetValue reads one key of the bag.
func (f *Extras) GetValue(ctx context.Context, px *Proxy, key string) (any, error) {
	m, err := f.live(ctx, px)
	if err != nil {
		return nil, err
	}
	v, ok := m[key]
	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", f.qualName(), key, ErrNotPresent)
	}
	return v, nil
}

// ConvertFromEntity absorbs every wire field no other schema field claims.
// An entity with no unclaimed fields yields an empty bag, never an error.
func (f *Extras) ConvertFromEntity(px *Proxy, entity Entity) error {
	claimed := px.Schema().wireNames()
	m := map[string]any{}
	for k, v := range entity {
		if _, ok := claimed[k]; ok {
			continue
		}
		m[k] = v
	}
	px.attr[f.name] = m
	return nil
}

// ConvertToEntity flattens the bag back to top-level wire fields.
func (f *Extras) ConvertToEntity(px *Proxy, entity Entity) error {
	m, ok := px.attr[f.name].(map[string]any)
	if !ok {
		return nil
	}
	for k, v := range m {
		entity[k] = v
	}
	return nil
}

// ConvertToCreate forwards creation fields no schema field claims.
func (f *Extras) ConvertToCreate(ctx context.Context, cat *Catalog, fields, out Entity) error {
	s := f.schema
	for k, v := range fields {
		if s != nil {
			if _, ok := s.fields[k]; ok {
				continue
			}
		}
		vv, err := f.item.Validate(v)
		if err != nil {
			return &ConversionError{Field: f.qualName() + "." + k, Direction: "validate", Err: err}
		}
		out[k] = vv
	}
	return nil
}
