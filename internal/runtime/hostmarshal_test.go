package runtime

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// splitKeys reads back a list produced by encodeKeys.
func splitKeys(t *testing.T, data []byte) [][]byte {
	t.Helper()
	require.GreaterOrEqual(t, len(data), 4)
	count := binary.LittleEndian.Uint32(data)
	data = data[4:]
	keys := make([][]byte, 0, count)
	for i := uint32(0); i < count; i++ {
		require.NotEmpty(t, data)
		n := int(data[0])
		require.GreaterOrEqual(t, len(data), 1+n)
		keys = append(keys, data[1:1+n])
		data = data[1+n:]
	}
	require.Empty(t, data)
	return keys
}

func TestEncodeKeys(t *testing.T) {
	out, err := encodeKeys(nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0}, out)

	keys := [][]byte{[]byte("a"), {}, bytes.Repeat([]byte{0xAB}, maxKeyLength)}
	out, err = encodeKeys(keys)
	require.NoError(t, err)
	assert.Len(t, out, 4+2+1+1+maxKeyLength)
	assert.Equal(t, keys, splitKeys(t, out))

	_, err = encodeKeys([][]byte{make([]byte, maxKeyLength+1)})
	assert.Error(t, err)
}

func TestBoolToU32(t *testing.T) {
	assert.Equal(t, uint32(1), boolToU32(true))
	assert.Equal(t, uint32(0), boolToU32(false))
}
