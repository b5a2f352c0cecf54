// Package field implements per-field validation, normalization and wire
// conversion for proxied entity fields.
//
// Every entity field has two representations: the wire form, as it appears
// in the JSON entity payload (e.g. an RFC 3339 string), and the proxy form,
// as it is held in memory (e.g. a time.Time). A Validator owns both the
// validation pipeline for incoming proxy-form values and the asymmetric
// ToWire/FromWire conversion pair.
//
// Validation is an ordered sequence of checks. Each check can reject the
// value, apply a conversion and continue, or apply a conversion and
// terminate the pipeline. Checks run in priority order (lower first); the
// built-in priorities are PriNull, PriCoerce, PriPattern, PriMinimum,
// PriMaximum and PriLength. If no check terminates the pipeline and the
// validator is strict, validation fails.
//
// Validators are stateless with respect to any one value. Context-dependent
// validators (for example tag lists checked against a vocabulary index)
// capture their context at construction time.
package field
