package value

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    Value
		expected string
	}{
		{"string", String("hello"), `"hello"`},
		{"empty string", String(""), `""`},
		{"int", Int(42), "42"},
		{"negative int", Int(-100), "-100"},
		{"float", Float(1.5), "1.5"},
		{"integral float", Float(2), "2"},
		{"small float", Float(0.000001), "0.000001"},
		{"tiny float", Float(1.5e-7), "1.5e-7"},
		{"huge float", Float(1e21), "1e+21"},
		{"null", Null{}, "null"},
		{"bool true", Bool(true), "true"},
		{"empty array", Array{}, "[]"},
		{"empty object", Object{}, "{}"},
		{"nested", Object{"b": Array{Int(1), Null{}}, "a": Object{}}, `{"a":{},"b":[1,null]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalUTF16Ordering(t *testing.T) {
	obj := Object{
		"\uE000":     Int(1),
		"\U00010000": Int(2),
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)

	// UTF-16: 0xD800 (surrogate) < 0xE000
	assert.Equal(t, "{\"\U00010000\":2,\"\uE000\":1}", string(result))
}

func TestMarshalCanonicalEscaping(t *testing.T) {
	result, err := MarshalCanonical(String("a<b>&\"\\\n\x01\u2028"))
	require.NoError(t, err)
	assert.Equal(t, "\"a<b>&\\\"\\\\\\n\\u0001\u2028\"", string(result))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	// "e" + combining acute accent normalizes to U+00E9
	result, err := MarshalCanonical(String("e\u0301"))
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(result))

	plain, err := Marshal(String("e\u0301"))
	require.NoError(t, err)
	assert.Equal(t, "\"e\u0301\"", string(plain))
}

func TestMarshalCanonicalRejectsNonFinite(t *testing.T) {
	_, err := MarshalCanonical(Float(math.NaN()))
	assert.Error(t, err)

	_, err = MarshalCanonical(Array{Float(math.Inf(1))})
	assert.Error(t, err)
}

func TestHashStableAcrossKeyOrder(t *testing.T) {
	a, err := Hash(DomainRecord, Object{"x": Int(1), "y": String("z")})
	require.NoError(t, err)
	b, err := Hash(DomainRecord, Object{"y": String("z"), "x": Int(1)})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestHashDomainSeparation(t *testing.T) {
	a, err := Hash(DomainRecord, Int(1))
	require.NoError(t, err)
	b, err := Hash("other/v1", Int(1))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
