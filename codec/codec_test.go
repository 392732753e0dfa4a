package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByName(t *testing.T) {
	for _, name := range []string{"json", "go-json"} {
		c, ok := ByName(name)
		require.True(t, ok)
		assert.Equal(t, name, c.Name())
	}
	_, ok := ByName("msgpack")
	assert.False(t, ok)
}

func TestMetadata(t *testing.T) {
	meta := map[string]string{"tier": "gold", "region": "eu"}
	for _, c := range []Codec{JSON{}, GoJSON{}} {
		t.Run(c.Name(), func(t *testing.T) {
			b, err := EncodeMetadata(c, meta)
			require.NoError(t, err)

			got, err := DecodeMetadata(c, b)
			require.NoError(t, err)
			assert.Equal(t, meta, got)
		})
	}
}

func TestMetadata_Empty(t *testing.T) {
	b, err := EncodeMetadata(nil, map[string]string{})
	require.NoError(t, err)
	assert.Nil(t, b)

	m, err := DecodeMetadata(nil, nil)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestMetadata_Corrupt(t *testing.T) {
	_, err := DecodeMetadata(GoJSON{}, []byte("{not json"))
	assert.Error(t, err)
}

func TestCodecsAgree(t *testing.T) {
	meta := map[string]string{"a": "1"}
	b, err := JSON{}.Marshal(meta)
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, GoJSON{}.Unmarshal(b, &got))
	assert.Equal(t, meta, got)
}

func TestCodecs_SameBytes(t *testing.T) {
	meta := map[string]string{"note": "<b>&co</b>", "tier": "gold"}

	a, err := JSON{}.Marshal(meta)
	require.NoError(t, err)
	b, err := GoJSON{}.Marshal(meta)
	require.NoError(t, err)

	assert.Equal(t, string(a), string(b))
	assert.Contains(t, string(b), "<b>&co</b>")
}
