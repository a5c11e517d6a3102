package value

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObject_SortedKeysUsesUTF16Order(t *testing.T) {
	// U+1F600 encodes as surrogate 0xD83D, which sorts before U+FF5E (0xFF5E)
	// in UTF-16 but after it in UTF-8.
	obj := Object{"\uFF5E": Int(1), "\U0001F600": Int(2), "a": Int(3)}
	assert.Equal(t, []string{"a", "\U0001F600", "\uFF5E"}, obj.SortedKeys())
}

func TestParse_RejectsFloats(t *testing.T) {
	_, err := Parse([]byte(`{"amount": 1.5}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats are not allowed")
}

func TestParse_NullBecomesNull(t *testing.T) {
	v, err := Parse([]byte(`{"x": null}`))
	require.NoError(t, err)
	assert.Equal(t, Object{"x": Null{}}, v)
}

func TestParseObject_Empty(t *testing.T) {
	obj, err := ParseObject(nil)
	require.NoError(t, err)
	assert.Equal(t, Object{}, obj)

	_, err = ParseObject([]byte(`[1,2]`))
	assert.Error(t, err)
}

func TestMarshal_SortedAndNested(t *testing.T) {
	v := Object{
		"peer":    String("bob"),
		"payload": String("Hey!"),
		"legs":    List{Int(1), Bool(true), Null{}},
	}
	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, `{"legs":[1,true,null],"payload":"Hey!","peer":"bob"}`, string(data))
}

func TestObject_RoundTrip(t *testing.T) {
	in := Object{"messages": List{Strings("alice", "Hey!")}, "count": Int(1)}
	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out Object
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestFromAny(t *testing.T) {
	v, err := FromAny(map[string]any{
		"count":  3,
		"name":   "child",
		"nested": []any{int64(1), "x", false},
	})
	require.NoError(t, err)
	assert.Equal(t, Object{
		"count":  Int(3),
		"name":   String("child"),
		"nested": List{Int(1), String("x"), Bool(false)},
	}, v)

	_, err = FromAny(2.5)
	assert.Error(t, err)

	whole, err := FromAny(float64(40))
	require.NoError(t, err)
	assert.Equal(t, Int(40), whole)
}

func TestToAny(t *testing.T) {
	got := ToAny(List{Strings("alice", "Hey!"), Object{"n": Int(2)}})
	assert.Equal(t, []any{[]any{"alice", "Hey!"}, map[string]any{"n": int64(2)}}, got)
}

func TestObject_Accessors(t *testing.T) {
	obj := Object{"peer": String("bob"), "count": Int(4)}

	peer, ok := obj.Str("peer")
	assert.True(t, ok)
	assert.Equal(t, "bob", peer)

	_, ok = obj.Str("count")
	assert.False(t, ok)

	n, ok := obj.Int64("count")
	assert.True(t, ok)
	assert.Equal(t, int64(4), n)

	clone := obj.Clone()
	clone["peer"] = String("carol")
	assert.Equal(t, String("bob"), obj["peer"])
}
