package field

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Any accepts every value unchanged.
type Any struct {
	FieldValidator
}

// NewAny returns a validator without type constraints.
func NewAny(opts ...Option) *Any {
	return &Any{FieldValidator: NewBase("any", opts...)}
}

// Str coerces values to string.
type Str struct {
	FieldValidator
}

// NewStr returns a string field validator.
func NewStr(opts ...Option) *Str {
	s := &Str{FieldValidator: NewBase("str", opts...)}
	s.AddCheck(coerceString, PriCoerce)
	return s
}

func coerceString(value any) (any, bool, error) {
	switch v := value.(type) {
	case string:
		return v, false, nil
	case []byte:
		return string(v), false, nil
	case fmt.Stringer:
		return v.String(), false, nil
	default:
		return nil, false, fmt.Errorf("expected string, got %T", value)
	}
}

// Int coerces values to int. Wire payloads decode JSON numbers as float64,
// so integral floats are accepted.
type Int struct {
	FieldValidator
}

// NewInt returns an int field validator.
func NewInt(opts ...Option) *Int {
	i := &Int{FieldValidator: NewBase("int", opts...)}
	i.AddCheck(coerceInt, PriCoerce)
	return i
}

func coerceInt(value any) (any, bool, error) {
	switch v := value.(type) {
	case int:
		return v, false, nil
	case int32:
		return int(v), false, nil
	case int64:
		return int(v), false, nil
	case float64:
		if v != float64(int(v)) {
			return nil, false, fmt.Errorf("value %v is not an integer", v)
		}
		return int(v), false, nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, false, fmt.Errorf("cannot parse %q as int", v)
		}
		return n, false, nil
	default:
		return nil, false, fmt.Errorf("expected int, got %T", value)
	}
}

// FromWire converts JSON numbers back to int.
func (i *Int) FromWire(value any) (any, error) {
	v, _, err := coerceInt(value)
	return v, err
}

// Bool accepts boolean values.
type Bool struct {
	FieldValidator
}

// NewBool returns a bool field validator.
func NewBool(opts ...Option) *Bool {
	b := &Bool{FieldValidator: NewBase("bool", opts...)}
	b.AddCheck(func(value any) (any, bool, error) {
		v, ok := value.(bool)
		if !ok {
			return nil, false, fmt.Errorf("expected bool, got %T", value)
		}
		return v, false, nil
	}, PriCoerce)
	return b
}

// Date holds time.Time in proxy form and an RFC 3339 string on the wire.
type Date struct {
	FieldValidator
}

// NewDate returns a date field validator.
func NewDate(opts ...Option) *Date {
	d := &Date{FieldValidator: NewBase("datetime", opts...)}
	d.AddCheck(coerceDate, PriCoerce)
	return d
}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a date", s)
}

func coerceDate(value any) (any, bool, error) {
	switch v := value.(type) {
	case time.Time:
		return v, false, nil
	case string:
		t, err := parseDate(v)
		return t, false, err
	default:
		return nil, false, fmt.Errorf("expected time.Time or string, got %T", value)
	}
}

// ToWire formats the date as RFC 3339.
func (d *Date) ToWire(value any) (any, error) {
	t, ok := value.(time.Time)
	if !ok {
		return nil, fmt.Errorf("expected time.Time, got %T", value)
	}
	return t.Format(time.RFC3339Nano), nil
}

// FromWire parses the wire string into a time.Time.
func (d *Date) FromWire(value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("expected string, got %T", value)
	}
	return parseDate(s)
}

// UUID holds uuid.UUID in proxy form and its string form on the wire.
type UUID struct {
	FieldValidator
}

// NewUUID returns a UUID field validator.
func NewUUID(opts ...Option) *UUID {
	u := &UUID{FieldValidator: NewBase("uuid", opts...)}
	u.AddCheck(coerceUUID, PriCoerce)
	return u
}

func coerceUUID(value any) (any, bool, error) {
	switch v := value.(type) {
	case uuid.UUID:
		return v, false, nil
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, false, fmt.Errorf("invalid UUID %q", v)
		}
		return id, false, nil
	default:
		return nil, false, fmt.Errorf("expected uuid.UUID or string, got %T", value)
	}
}

// ToWire renders the UUID as a string.
func (u *UUID) ToWire(value any) (any, error) {
	id, ok := value.(uuid.UUID)
	if !ok {
		return nil, fmt.Errorf("expected uuid.UUID, got %T", value)
	}
	return id.String(), nil
}

// FromWire parses the wire string into a uuid.UUID.
func (u *UUID) FromWire(value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("expected string, got %T", value)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("invalid UUID %q", s)
	}
	return id, nil
}

// Enum accepts values from a fixed set.
type Enum struct {
	FieldValidator
	values []string
}

// NewEnum returns a validator accepting only the given values.
func NewEnum(values []string, opts ...Option) *Enum {
	e := &Enum{FieldValidator: NewBase("enum", opts...), values: values}
	e.AddCheck(e.oneOf, PriCoerce)
	return e
}

func (e *Enum) oneOf(value any) (any, bool, error) {
	s, ok := value.(string)
	if !ok {
		return nil, false, fmt.Errorf("expected string, got %T", value)
	}
	for _, v := range e.values {
		if s == v {
			return s, false, nil
		}
	}
	return nil, false, fmt.Errorf("%q is not one of %v", s, e.values)
}

// NewState returns the standard entity lifecycle state validator.
func NewState() *Enum {
	return NewEnum([]string{"active", "deleted"}, NotNullable())
}

// NewExecState returns the execution state validator for process entities.
func NewExecState() *Enum {
	return NewEnum([]string{"running", "succeeded", "failed"}, NotNullable())
}

// Name is a non-nullable string constrained by a pattern. Names identify
// entities alongside their UUID.
type Name struct {
	FieldValidator
	pattern *regexp.Regexp
}

var (
	namePattern      = regexp.MustCompile(`^[a-z0-9_-]+$`)
	tagNamePattern   = regexp.MustCompile(`^[A-Za-z0-9 ._-]+$`)
	vocabNamePattern = regexp.MustCompile(`^.+$`)
)

func newName(typeName string, pattern *regexp.Regexp, opts ...Option) *Name {
	base := append([]Option{NotNullable(), MinLen(2), MaxLen(100)}, opts...)
	n := &Name{FieldValidator: NewBase(typeName, base...), pattern: pattern}
	n.AddCheck(coerceString, PriCoerce)
	n.AddCheck(n.checkPattern, PriPattern)
	return n
}

// NewName returns the validator for entity name fields.
func NewName(opts ...Option) *Name { return newName("name", namePattern, opts...) }

// NewTagName returns the validator for tag names.
func NewTagName(opts ...Option) *Name { return newName("tagname", tagNamePattern, opts...) }

// NewVocabName returns the validator for vocabulary names.
func NewVocabName(opts ...Option) *Name { return newName("vocabname", vocabNamePattern, opts...) }

func (n *Name) checkPattern(value any) (any, bool, error) {
	s, ok := value.(string)
	if !ok {
		return nil, false, fmt.Errorf("expected string, got %T", value)
	}
	if !n.pattern.MatchString(s) {
		return nil, false, fmt.Errorf("%q does not match %s", s, n.pattern)
	}
	return s, false, nil
}

// List validates slices, applying an element validator to every member.
type List struct {
	FieldValidator
	elem Validator
}

// NewList returns a list field validator over the given element validator.
func NewList(elem Validator, opts ...Option) *List {
	l := &List{FieldValidator: NewBase("list["+elem.TypeName()+"]", opts...), elem: elem}
	l.AddCheck(l.checkList, PriCoerce)
	return l
}

func (l *List) checkList(value any) (any, bool, error) {
	items, ok := asSlice(value)
	if !ok {
		return nil, false, fmt.Errorf("expected a list, got %T", value)
	}
	out := make([]any, len(items))
	for i, item := range items {
		v, err := l.elem.Validate(item)
		if err != nil {
			return nil, false, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = v
	}
	return out, true, nil
}

// ToWire converts every element to its wire form.
func (l *List) ToWire(value any) (any, error) {
	items, ok := asSlice(value)
	if !ok {
		return nil, fmt.Errorf("expected a list, got %T", value)
	}
	out := make([]any, len(items))
	for i, item := range items {
		if item == nil {
			continue
		}
		v, err := l.elem.ToWire(item)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// FromWire converts every element from its wire form.
func (l *List) FromWire(value any) (any, error) {
	items, ok := asSlice(value)
	if !ok {
		return nil, fmt.Errorf("expected a list, got %T", value)
	}
	out := make([]any, len(items))
	for i, item := range items {
		if item == nil {
			continue
		}
		v, err := l.elem.FromWire(item)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func asSlice(value any) ([]any, bool) {
	items, ok := value.([]any)
	return items, ok
}

// Dict validates string-keyed maps, applying a value validator to every
// entry.
type Dict struct {
	FieldValidator
	elem Validator
}

// NewDict returns a dict field validator over the given value validator.
func NewDict(elem Validator, opts ...Option) *Dict {
	d := &Dict{FieldValidator: NewBase("dict["+elem.TypeName()+"]", opts...), elem: elem}
	d.AddCheck(d.checkDict, PriCoerce)
	return d
}

func (d *Dict) checkDict(value any) (any, bool, error) {
	m, ok := value.(map[string]any)
	if !ok {
		return nil, false, fmt.Errorf("expected a map, got %T", value)
	}
	out := make(map[string]any, len(m))
	for k, item := range m {
		v, err := d.elem.Validate(item)
		if err != nil {
			return nil, false, fmt.Errorf("key %q: %w", k, err)
		}
		out[k] = v
	}
	return out, false, nil
}
