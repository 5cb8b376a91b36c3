package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_SortsKeysAtEveryLevel(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "TopLevelKeys",
			in:   `{"b":1,"a":2}`,
			want: `{"a":2,"b":1}`,
		},
		{
			name: "NestedKeys",
			in:   `{"outer":{"z":1,"a":{"y":2,"x":3}}}`,
			want: `{"outer":{"a":{"x":3,"y":2},"z":1}}`,
		},
		{
			name: "ArrayOrderPreserved",
			in:   `{"list":[{"b":1,"a":2},{"d":3,"c":4}]}`,
			want: `{"list":[{"a":2,"b":1},{"c":4,"d":3}]}`,
		},
		{
			name: "WhitespaceStripped",
			in:   "{\n  \"a\" : 1,\n  \"b\" : 2\n}",
			want: `{"a":1,"b":2}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Encode([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(out))
		})
	}
}

func TestEncode_EquivalentInputsProduceSameBytes(t *testing.T) {
	a, err := Encode([]byte(`{"idShort":"x","value":"1"}`))
	require.NoError(t, err)
	b, err := Encode([]byte(`{"value":"1","idShort":"x"}`))
	require.NoError(t, err)
	assert.True(t, Equal(a, b))
}

func TestEncode_RejectsTrailingData(t *testing.T) {
	_, err := Encode([]byte(`{"a":1}garbage`))
	assert.Error(t, err)
}

func TestEncodeValue_MarshalsStructThenCanonicalizes(t *testing.T) {
	type doc struct {
		B string `json:"b"`
		A string `json:"a"`
	}
	out, err := EncodeValue(doc{B: "2", A: "1"})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"1","b":"2"}`, string(out))
}

func TestETag_IsStableAndQuoted(t *testing.T) {
	canon, err := Encode([]byte(`{"a":1}`))
	require.NoError(t, err)

	tag1 := ETag(canon)
	tag2 := ETag(canon)
	assert.Equal(t, tag1, tag2)
	assert.True(t, len(tag1) > 2)
	assert.Equal(t, byte('"'), tag1[0])
	assert.Equal(t, byte('"'), tag1[len(tag1)-1])
}

func TestETag_DiffersOnContentChange(t *testing.T) {
	a, err := Encode([]byte(`{"a":1}`))
	require.NoError(t, err)
	b, err := Encode([]byte(`{"a":2}`))
	require.NoError(t, err)

	assert.NotEqual(t, ETag(a), ETag(b))
}

func TestETagOf_AgreesAcrossKeyOrder(t *testing.T) {
	tagA, err := ETagOf(map[string]any{"b": 1, "a": 2})
	require.NoError(t, err)
	tagB, err := ETagOf(map[string]any{"a": 2, "b": 1})
	require.NoError(t, err)
	assert.Equal(t, tagA, tagB)
}
