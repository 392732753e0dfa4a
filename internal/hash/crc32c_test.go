package hash

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCRC32C_KnownValue(t *testing.T) {
	// RFC 3720 B.4 check value.
	assert.Equal(t, uint32(0xE3069283), CRC32C([]byte("123456789")))
}

func TestExtend_MatchesOneShot(t *testing.T) {
	data := []byte("alice@wonderland")
	assert.Equal(t, CRC32C(data), Extend(Extend(0, data[:5]), data[5:]))

	h := NewCRC32C()
	_, _ = h.Write(data)
	assert.Equal(t, CRC32C(data), h.Sum32())
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	_, err := w.Write([]byte("bob@"))
	require.NoError(t, err)
	_, err = w.Write([]byte("wonderland"))
	require.NoError(t, err)

	assert.Equal(t, "bob@wonderland", buf.String())
	assert.Equal(t, CRC32C(buf.Bytes()), w.Sum32())
	assert.Equal(t, int64(buf.Len()), w.Len())
}
