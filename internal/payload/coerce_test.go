package payload

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerce(t *testing.T) {
	tests := []struct {
		name  string
		in    any
		tag   string
		want  any
		fails bool
	}{
		{"no tag keeps string", "42", "", "42", false},
		{"int from string", "42", TypeInt, int64(42), false},
		{"int from padded string", " 7 ", TypeInt, int64(7), false},
		{"int from negative", "-3", TypeInt, int64(-3), false},
		{"int already int", 42, TypeInt, 42, false},
		{"int from float truncates", 3.9, TypeInt, int64(3), false},
		{"int from garbage", "4x4", TypeInt, nil, true},
		{"int from decimal string", "3.5", TypeInt, nil, true},
		{"int from empty", "", TypeInt, nil, true},
		{"int from nil", nil, TypeInt, nil, true},
		{"int keeps bool", true, TypeInt, true, false},
		{"int keeps large unsigned", uint64(math.MaxUint64), TypeInt, uint64(math.MaxUint64), false},
		{"float from string", "3.25", TypeFloat, 3.25, false},
		{"float from int literal", 42, TypeFloat, float64(42), false},
		{"float already float", 1.5, TypeFloat, 1.5, false},
		{"float from garbage", "abc", TypeFloat, nil, true},
		{"float from true", true, TypeFloat, 1.0, false},
		{"float from false", false, TypeFloat, 0.0, false},
		{"float from large unsigned", uint64(math.MaxUint64), TypeFloat, float64(math.MaxUint64), false},
		{"bool true", "true", TypeBool, true, false},
		{"bool True", "True", TypeBool, true, false},
		{"bool TRUE", "TRUE", TypeBool, true, false},
		{"bool false", "false", TypeBool, false, false},
		{"bool False", "False", TypeBool, false, false},
		{"bool empty", "", TypeBool, false, false},
		{"bool one", "1", TypeBool, false, false},
		{"bool padded", " true", TypeBool, false, false},
		{"bool already bool", true, TypeBool, true, false},
		{"str keeps string", "spam", TypeStr, "spam", false},
		{"str keeps int", 5, TypeStr, 5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.in, tt.tag)
			if tt.fails {
				var cerr *CoercionError
				require.ErrorAs(t, err, &cerr)
				assert.Equal(t, tt.tag, cerr.Type)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCoerceUnsupportedTag(t *testing.T) {
	for _, tag := range []string{"boolean", "Bool", "INT", "integer", "list"} {
		got, err := Coerce("true", tag)
		require.Error(t, err, tag)
		assert.True(t, errors.Is(err, ErrUnsupportedType), tag)
		assert.Equal(t, "true", got, tag)
	}
}

func TestSupportedType(t *testing.T) {
	assert.True(t, SupportedType("int"))
	assert.True(t, SupportedType("str"))
	assert.False(t, SupportedType("Int"))
	assert.False(t, SupportedType(""))
}
