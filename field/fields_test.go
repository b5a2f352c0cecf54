package field

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestStr_Coercion(t *testing.T) {
	sv := NewStr()

	v, err := sv.Validate("plain")
	require.NoError(t, err)
	require.Equal(t, "plain", v)

	v, err = sv.Validate([]byte("bytes"))
	require.NoError(t, err)
	require.Equal(t, "bytes", v)

	id := uuid.New()
	v, err = sv.Validate(id) // fmt.Stringer
	require.NoError(t, err)
	require.Equal(t, id.String(), v)

	_, err = sv.Validate(42)
	require.Error(t, err)
}

func TestInt_Coercion(t *testing.T) {
	iv := NewInt()

	cases := []struct {
		in   any
		want int
	}{
		{7, 7},
		{int32(7), 7},
		{int64(7), 7},
		{float64(7), 7}, // JSON numbers decode as float64
		{"7", 7},
	}
	for _, tc := range cases {
		v, err := iv.Validate(tc.in)
		require.NoError(t, err)
		require.Equal(t, tc.want, v)
	}

	_, err := iv.Validate(7.5)
	require.Error(t, err)
	_, err = iv.Validate("seven")
	require.Error(t, err)
}

func TestBool(t *testing.T) {
	bv := NewBool()
	v, err := bv.Validate(true)
	require.NoError(t, err)
	require.Equal(t, true, v)

	_, err = bv.Validate("true")
	require.Error(t, err)
}

func TestDate_WireRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		sec := rapid.Int64Range(0, 4102444800).Draw(t, "sec") // up to year 2100
		nsec := rapid.Int64Range(0, 999999999).Draw(t, "nsec")
		in := time.Unix(sec, nsec).UTC()

		dv := NewDate()
		wire, err := dv.ToWire(in)
		require.NoError(t, err)
		back, err := dv.FromWire(wire)
		require.NoError(t, err)
		require.True(t, in.Equal(back.(time.Time)))
	})
}

func TestDate_AcceptsPlainLayouts(t *testing.T) {
	dv := NewDate()

	v, err := dv.Validate("2024-06-01")
	require.NoError(t, err)
	require.Equal(t, 2024, v.(time.Time).Year())

	v, err = dv.Validate("2024-06-01T13:30:00")
	require.NoError(t, err)
	require.Equal(t, 13, v.(time.Time).Hour())

	_, err = dv.Validate("not a date")
	require.Error(t, err)
}

func TestUUID_WireRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var raw [16]byte
		for i := range raw {
			raw[i] = rapid.Byte().Draw(t, "b")
		}
		in := uuid.UUID(raw)

		uv := NewUUID()
		wire, err := uv.ToWire(in)
		require.NoError(t, err)
		back, err := uv.FromWire(wire)
		require.NoError(t, err)
		require.Equal(t, in, back)
	})
}

func TestUUID_RejectsGarbage(t *testing.T) {
	uv := NewUUID()
	_, err := uv.Validate("not-a-uuid")
	require.Error(t, err)
	_, err = uv.FromWire(12345)
	require.Error(t, err)
}

func TestEnum(t *testing.T) {
	ev := NewState()

	v, err := ev.Validate("active")
	require.NoError(t, err)
	require.Equal(t, "active", v)

	_, err = ev.Validate("zombie")
	require.Error(t, err)
	_, err = ev.Validate(nil) // NotNullable
	require.Error(t, err)
}

func TestName_Pattern(t *testing.T) {
	nv := NewName()

	_, err := nv.Validate("my-dataset_01")
	require.NoError(t, err)

	_, err = nv.Validate("Has Capitals")
	require.Error(t, err)
	_, err = nv.Validate("x") // below MinLen
	require.Error(t, err)
	_, err = nv.Validate(nil)
	require.Error(t, err)
}

func TestTagName_Pattern(t *testing.T) {
	tv := NewTagName()
	_, err := tv.Validate("Machine Learning")
	require.NoError(t, err)
	_, err = tv.Validate("no:colons")
	require.Error(t, err)
}

func TestList_ValidatesElements(t *testing.T) {
	lv := NewList(NewInt())

	v, err := lv.Validate([]any{1, float64(2), "3"})
	require.NoError(t, err)
	require.Equal(t, []any{1, 2, 3}, v)

	_, err = lv.Validate([]any{1, "two"})
	require.Error(t, err)
	_, err = lv.Validate("not a list")
	require.Error(t, err)
}

func TestList_WireRoundTrip(t *testing.T) {
	lv := NewList(NewUUID())
	id := uuid.New()

	wire, err := lv.ToWire([]any{id})
	require.NoError(t, err)
	require.Equal(t, []any{id.String()}, wire)

	back, err := lv.FromWire(wire)
	require.NoError(t, err)
	require.Equal(t, []any{id}, back)
}

func TestDict_ValidatesValues(t *testing.T) {
	dv := NewDict(NewStr())

	v, err := dv.Validate(map[string]any{"a": "x", "b": []byte("y")})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"a": "x", "b": "y"}, v)

	_, err = dv.Validate(map[string]any{"a": 1})
	require.Error(t, err)
}
