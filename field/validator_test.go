package field

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestValidate_NullHandling(t *testing.T) {
	nullable := NewStr()
	v, err := nullable.Validate(nil)
	require.NoError(t, err)
	require.Nil(t, v)

	strict := NewStr(NotNullable())
	_, err = strict.Validate(nil)
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "str", verr.Type)
}

func TestValidate_ChecksRunInPriorityOrder(t *testing.T) {
	fv := NewBase("test")
	var order []int
	fv.AddCheck(func(v any) (any, bool, error) {
		order = append(order, 20)
		return v, false, nil
	}, 20)
	fv.AddCheck(func(v any) (any, bool, error) {
		order = append(order, 5)
		return v, false, nil
	}, 5)

	_, err := fv.Validate("x")
	require.NoError(t, err)
	require.Equal(t, []int{5, 20}, order)
}

func TestValidate_TerminatingCheckStopsPipeline(t *testing.T) {
	fv := NewBase("test")
	fv.AddCheck(func(v any) (any, bool, error) { return "early", true, nil }, 5)
	ran := false
	fv.AddCheck(func(v any) (any, bool, error) {
		ran = true
		return v, false, nil
	}, 10)

	v, err := fv.Validate("x")
	require.NoError(t, err)
	require.Equal(t, "early", v)
	require.False(t, ran)
}

func TestValidate_Strict(t *testing.T) {
	fv := NewBase("test", Strict())
	_, err := fv.Validate("anything")
	require.Error(t, err)

	done := NewBase("test", Strict())
	done.AddCheck(func(v any) (any, bool, error) { return v, true, nil }, 5)
	v, err := done.Validate("anything")
	require.NoError(t, err)
	require.Equal(t, "anything", v)
}

func TestValidate_Bounds(t *testing.T) {
	iv := NewInt(MinValue(0), MaxValue(100))

	v, err := iv.Validate(50)
	require.NoError(t, err)
	require.Equal(t, 50, v)

	_, err = iv.Validate(-1)
	require.Error(t, err)
	_, err = iv.Validate(101)
	require.Error(t, err)
}

func TestValidate_Length(t *testing.T) {
	sv := NewStr(MinLen(2), MaxLen(4))

	_, err := sv.Validate("ok")
	require.NoError(t, err)
	_, err = sv.Validate("x")
	require.Error(t, err)
	_, err = sv.Validate("toolong")
	require.Error(t, err)
}

func TestDefaultValue(t *testing.T) {
	plain := NewStr()
	_, ok := plain.DefaultValue()
	require.False(t, ok)

	withDefault := NewStr(Default("hello"))
	v, ok := withDefault.DefaultValue()
	require.True(t, ok)
	require.Equal(t, "hello", v)
}

func TestValidate_Idempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.String().Draw(t, "s")
		sv := NewStr()

		once, err := sv.Validate(s)
		require.NoError(t, err)
		twice, err := sv.Validate(once)
		require.NoError(t, err)
		require.Equal(t, once, twice)
	})
}

func TestValidateInt_Idempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.Int().Draw(t, "n")
		iv := NewInt()

		once, err := iv.Validate(n)
		require.NoError(t, err)
		twice, err := iv.Validate(once)
		require.NoError(t, err)
		require.Equal(t, once, twice)
	})
}
