package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		want string
	}{
		{"string", String("hi"), `"hi"`},
		{"int", Int(-42), `-42`},
		{"bool", Bool(true), `true`},
		{"html not escaped", String("<a&b>"), `"<a&b>"`},
		{"sorted keys", Object{"b": Int(2), "a": Int(1)}, `{"a":1,"b":2}`},
		{"nested", Object{"legs": List{String("x"), Object{"z": Bool(false)}}}, `{"legs":["x",{"z":false}]}`},
		{"line separator literal", String("a\u2028b"), "\"a\u2028b\""},
		{"escaped backslash kept", String(`\u2028`), `"\\u2028"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalCanonical_NFC(t *testing.T) {
	// "e" + combining acute accent normalizes to U+00E9.
	got, err := MarshalCanonical(String("e\u0301"))
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(got))
}

func TestMarshalCanonical_Null(t *testing.T) {
	got, err := MarshalCanonical(Object{"x": Null{}, "a": List{Null{}, Int(1)}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":[null,1],"x":null}`, string(got))

	got, err = MarshalCanonical(nil)
	require.NoError(t, err)
	assert.Equal(t, "null", string(got))
}

func TestDigest_NullArgument(t *testing.T) {
	withNull, err := Digest(DomainLeg, Object{"welcome": Null{}})
	require.NoError(t, err)
	without, err := Digest(DomainLeg, Object{})
	require.NoError(t, err)
	assert.NotEqual(t, withNull, without)
}

func TestDigest_StableAndDomainSeparated(t *testing.T) {
	v := Object{"peer": String("bob"), "seq": Int(1)}

	a, err := Digest(DomainLeg, v)
	require.NoError(t, err)
	b, err := Digest(DomainLeg, Object{"seq": Int(1), "peer": String("bob")})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	c, err := Digest(DomainOutcome, v)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}
