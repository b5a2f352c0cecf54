package proxy

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/remoraproj/remora/field"
)

func buildTestSchema(t *testing.T, name string, fields ...Field) *Schema {
	t.Helper()
	b := NewSchema(name)
	for _, f := range fields {
		b.Field(f)
	}
	s, err := b.Build()
	require.NoError(t, err)
	return s
}

// cleanProxy returns a CLEAN proxy over the schema, detached from any
// service; tests that never trigger a lazy sync can use it directly.
func cleanProxy(s *Schema) *Proxy {
	r := &Registry{schema: s, cache: map[uuid.UUID]*Proxy{}}
	return &Proxy{
		registry: r,
		id:       uuid.NullUUID{UUID: uuid.New(), Valid: true},
		attr:     Entity{},
	}
}

func TestProperty_GetAndAbsent(t *testing.T) {
	title := NewProperty("title", field.NewStr(), Updatable())
	notes := NewProperty("notes", field.NewStr(), Updatable(), Optional())
	s := buildTestSchema(t, "prop-get", title, notes)
	p := cleanProxy(s)
	p.attr["title"] = "hello"
	p.attr["notes"] = Absent

	v, err := title.Get(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, "hello", v)

	_, err = notes.Get(context.Background(), p)
	require.ErrorIs(t, err, ErrNotPresent)
}

func TestProperty_SetRecordsFirstTouchOnly(t *testing.T) {
	title := NewProperty("title", field.NewStr(), Updatable())
	s := buildTestSchema(t, "prop-touch", title)
	p := cleanProxy(s)
	p.attr["title"] = "original"

	ctx := context.Background()
	require.NoError(t, title.Set(ctx, p, "first"))
	require.Equal(t, StateDirty, p.State())
	require.Equal(t, "original", p.changed["title"])

	require.NoError(t, title.Set(ctx, p, "second"))
	require.Equal(t, "original", p.changed["title"], "first touch must stick")
	require.Equal(t, "second", p.attr["title"])

	p.Reset()
	require.Equal(t, StateClean, p.State())
	require.Equal(t, "original", p.attr["title"])
}

func TestProperty_SetRejectsInvalidValue(t *testing.T) {
	count := NewProperty("count", field.NewInt(field.MinValue(0)), Updatable())
	s := buildTestSchema(t, "prop-invalid", count)
	p := cleanProxy(s)
	p.attr["count"] = 1

	err := count.Set(context.Background(), p, -5)
	require.Error(t, err)
	var cerr *ConversionError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, StateClean, p.State(), "rejected write must not dirty the proxy")
}

func TestProperty_ConvertFromEntity(t *testing.T) {
	title := NewProperty("title", field.NewStr(), WireName("display_title"))
	notes := NewProperty("notes", field.NewStr(), Optional())
	s := buildTestSchema(t, "prop-from", title, notes)
	p := cleanProxy(s)

	require.NoError(t, title.ConvertFromEntity(p, Entity{"display_title": "t"}))
	require.Equal(t, "t", p.attr["title"])

	require.NoError(t, notes.ConvertFromEntity(p, Entity{}))
	require.True(t, IsAbsent(p.attr["notes"]))

	require.NoError(t, notes.ConvertFromEntity(p, Entity{"notes": nil}))
	require.Nil(t, p.attr["notes"])

	err := title.ConvertFromEntity(p, Entity{})
	var eerr *EntityError
	require.ErrorAs(t, err, &eerr)
	require.Equal(t, "display_title", eerr.WireField)
}

func TestProperty_ConvertToEntity(t *testing.T) {
	when := NewProperty("created", field.NewDate(), WireName("metadata_created"))
	notes := NewProperty("notes", field.NewStr(), Optional())
	s := buildTestSchema(t, "prop-to", when, notes)
	p := cleanProxy(s)

	ts, err := when.Validator().Validate("2024-06-01T10:00:00")
	require.NoError(t, err)
	p.attr["created"] = ts
	p.attr["notes"] = Absent

	entity := Entity{}
	require.NoError(t, when.ConvertToEntity(p, entity))
	require.NoError(t, notes.ConvertToEntity(p, entity))

	require.Equal(t, "2024-06-01T10:00:00Z", entity["metadata_created"])
	_, present := entity["notes"]
	require.False(t, present, "absent fields must not appear on the wire")
}

func TestProperty_ConvertToCreate(t *testing.T) {
	title := NewProperty("title", field.NewStr())
	kind := NewProperty("kind", field.NewStr(field.Default("generic")))
	notes := NewProperty("notes", field.NewStr(), Optional())
	s := buildTestSchema(t, "prop-create", title, kind, notes)
	_ = s

	ctx := context.Background()
	out := Entity{}
	require.NoError(t, title.ConvertToCreate(ctx, nil, Entity{"title": "t"}, out))
	require.NoError(t, kind.ConvertToCreate(ctx, nil, Entity{}, out))
	require.NoError(t, notes.ConvertToCreate(ctx, nil, Entity{}, out))

	require.Equal(t, "t", out["title"])
	require.Equal(t, "generic", out["kind"], "declared default fills missing create values")
	_, present := out["notes"]
	require.False(t, present)
}

func TestIDField(t *testing.T) {
	s := buildTestSchema(t, "prop-id")
	p := cleanProxy(s)

	v, err := s.IDField().Get(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, p.ID(), v)

	err = s.IDField().Set(context.Background(), p, uuid.New())
	require.ErrorIs(t, err, ErrReadOnly)
}
