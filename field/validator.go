package field

import (
	"fmt"
	"reflect"
	"sort"
)

// Built-in check priorities. Lower priorities run first.
const (
	PriNull    = -1
	PriCoerce  = 5
	PriPattern = 7
	PriMinimum = 10
	PriMaximum = 12
	PriLength  = 20
)

// ValidationError reports a value rejected by a validator.
type ValidationError struct {
	Type   string // validator type name, e.g. "str"
	Value  any
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s value %v: %v", e.Type, e.Value, e.Err)
	}
	return fmt.Sprintf("invalid %s value %v: %s", e.Type, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// CheckFunc is one stage of a validation pipeline. It returns the possibly
// converted value and whether the pipeline should terminate here.
type CheckFunc func(value any) (any, bool, error)

// Validator validates proxy-form values and converts between the proxy form
// and the wire form. ToWire and FromWire are only ever called for non-nil
// values; nil passes through unchanged at the layer above.
type Validator interface {
	Validate(value any) (any, error)
	ToWire(value any) (any, error)
	FromWire(value any) (any, error)

	// DefaultValue reports the creation-time default, if one is declared.
	DefaultValue() (any, bool)

	TypeName() string
}

type prioritizedCheck struct {
	fn  CheckFunc
	pri int
}

// FieldValidator is the base validation pipeline. Concrete validators embed
// it and register their own checks with AddCheck.
type FieldValidator struct {
	typeName   string
	strict     bool
	nullable   bool
	hasDefault bool
	def        any

	minValue *float64
	maxValue *float64
	minLen   *int
	maxLen   *int

	checks []prioritizedCheck
}

// Option configures a FieldValidator.
type Option func(*FieldValidator)

// Strict makes validation fail when no check terminates the pipeline.
func Strict() Option { return func(fv *FieldValidator) { fv.strict = true } }

// NotNullable rejects nil values.
func NotNullable() Option { return func(fv *FieldValidator) { fv.nullable = false } }

// Default declares a creation-time default value.
func Default(v any) Option {
	return func(fv *FieldValidator) {
		fv.hasDefault = true
		fv.def = v
	}
}

// MinValue sets an inclusive lower bound for numeric values.
func MinValue(v float64) Option { return func(fv *FieldValidator) { fv.minValue = &v } }

// MaxValue sets an inclusive upper bound for numeric values.
func MaxValue(v float64) Option { return func(fv *FieldValidator) { fv.maxValue = &v } }

// MinLen sets an inclusive lower bound on string/slice/map length.
func MinLen(n int) Option { return func(fv *FieldValidator) { fv.minLen = &n } }

// MaxLen sets an inclusive upper bound on string/slice/map length.
func MaxLen(n int) Option { return func(fv *FieldValidator) { fv.maxLen = &n } }

// NewBase constructs the base pipeline with the built-in checks implied by
// the given options. Concrete validators embed the result.
func NewBase(typeName string, opts ...Option) FieldValidator {
	fv := FieldValidator{typeName: typeName, nullable: true}
	for _, opt := range opts {
		opt(&fv)
	}
	fv.AddCheck(fv.checkNull, PriNull)
	if fv.minValue != nil {
		fv.AddCheck(fv.checkMinimum, PriMinimum)
	}
	if fv.maxValue != nil {
		fv.AddCheck(fv.checkMaximum, PriMaximum)
	}
	if fv.minLen != nil || fv.maxLen != nil {
		fv.AddCheck(fv.checkLength, PriLength)
	}
	return fv
}

// AddCheck registers a check at the given priority.
func (fv *FieldValidator) AddCheck(fn CheckFunc, pri int) {
	fv.checks = append(fv.checks, prioritizedCheck{fn: fn, pri: pri})
	sort.SliceStable(fv.checks, func(i, j int) bool { return fv.checks[i].pri < fv.checks[j].pri })
}

// Validate runs the check pipeline in priority order, stopping at the first
// check that signals termination.
func (fv *FieldValidator) Validate(value any) (any, error) {
	for _, c := range fv.checks {
		v, done, err := c.fn(value)
		if err != nil {
			if verr, ok := err.(*ValidationError); ok {
				return nil, verr
			}
			return nil, &ValidationError{Type: fv.typeName, Value: value, Err: err}
		}
		value = v
		if done {
			return value, nil
		}
	}
	if fv.strict {
		return nil, &ValidationError{Type: fv.typeName, Value: value, Reason: "no check accepted the value"}
	}
	return value, nil
}

// ToWire converts a proxy-form value to its wire form. The base conversion
// is the identity.
func (fv *FieldValidator) ToWire(value any) (any, error) { return value, nil }

// FromWire converts a wire-form value to its proxy form. The base conversion
// is the identity.
func (fv *FieldValidator) FromWire(value any) (any, error) { return value, nil }

// DefaultValue reports the declared creation default, if any.
func (fv *FieldValidator) DefaultValue() (any, bool) {
	return fv.def, fv.hasDefault
}

// TypeName returns the validator's type name, e.g. "str" or "uuid".
func (fv *FieldValidator) TypeName() string { return fv.typeName }

// Nullable reports whether the validator accepts nil.
func (fv *FieldValidator) Nullable() bool { return fv.nullable }

func (fv *FieldValidator) checkNull(value any) (any, bool, error) {
	if value == nil {
		if fv.nullable {
			return nil, true, nil
		}
		return nil, false, fmt.Errorf("nil is not allowed")
	}
	return value, false, nil
}

func (fv *FieldValidator) checkMinimum(value any) (any, bool, error) {
	n, ok := asFloat(value)
	if !ok {
		return nil, false, fmt.Errorf("value %v is not orderable", value)
	}
	if n < *fv.minValue {
		return nil, false, fmt.Errorf("value %v too low (minimum %v)", value, *fv.minValue)
	}
	return value, false, nil
}

func (fv *FieldValidator) checkMaximum(value any) (any, bool, error) {
	n, ok := asFloat(value)
	if !ok {
		return nil, false, fmt.Errorf("value %v is not orderable", value)
	}
	if n > *fv.maxValue {
		return nil, false, fmt.Errorf("value %v too high (maximum %v)", value, *fv.maxValue)
	}
	return value, false, nil
}

func (fv *FieldValidator) checkLength(value any) (any, bool, error) {
	n, ok := lengthOf(value)
	if !ok {
		return nil, false, fmt.Errorf("value %v has no length", value)
	}
	if fv.minLen != nil && n < *fv.minLen {
		return nil, false, fmt.Errorf("length %d is less than the minimum %d", n, *fv.minLen)
	}
	if fv.maxLen != nil && n > *fv.maxLen {
		return nil, false, fmt.Errorf("length %d is greater than the maximum %d", n, *fv.maxLen)
	}
	return value, false, nil
}

func asFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func lengthOf(value any) (int, bool) {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len(), true
	default:
		return 0, false
	}
}
