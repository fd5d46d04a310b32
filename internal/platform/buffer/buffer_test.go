package buffer_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cuckoohost/internal/platform/buffer"
	"cuckoohost/internal/platform/contract"
)

func TestWriteTextFits(t *testing.T) {
	t.Parallel()
	dst := make([]byte, 16)
	length := uint32(len(dst))
	status := buffer.WriteText(dst, &length, "cuckoo")
	require.Equal(t, contract.StatusOK, status)
	assert.Equal(t, uint32(6), length)
	assert.Equal(t, byte(0), dst[6])

	text, ok := buffer.ReadText(dst, length)
	require.True(t, ok)
	assert.Equal(t, "cuckoo", text)
}

func TestWriteTextExactFitNeedsTerminator(t *testing.T) {
	t.Parallel()
	dst := make([]byte, 6)
	length := uint32(len(dst))
	status := buffer.WriteText(dst, &length, "cuckoo")
	assert.Equal(t, contract.StatusBufferTooSmall, status)
	assert.Zero(t, length)

	dst = make([]byte, 7)
	length = uint32(len(dst))
	assert.Equal(t, contract.StatusOK, buffer.WriteText(dst, &length, "cuckoo"))
	assert.Equal(t, uint32(6), length)
}

func TestWriteTextTooSmallWritesNothing(t *testing.T) {
	t.Parallel()
	dst := bytes.Repeat([]byte{0xaa}, 4)
	length := uint32(len(dst))
	status := buffer.WriteText(dst, &length, "a much longer text")
	assert.Equal(t, contract.StatusBufferTooSmall, status)
	assert.Zero(t, length)
	assert.Equal(t, bytes.Repeat([]byte{0xaa}, 4), dst)

	_, ok := buffer.ReadText(dst, length)
	assert.False(t, ok)
}

func TestWriteTextClampsDeclaredLength(t *testing.T) {
	t.Parallel()
	dst := make([]byte, 4)
	length := uint32(1024)
	status := buffer.WriteText(dst, &length, "overrun")
	assert.Equal(t, contract.StatusBufferTooSmall, status)
	assert.Zero(t, length)

	dst = make([]byte, 64)
	length = uint32(3)
	status = buffer.WriteText(dst, &length, "fits in dst but not in declared")
	assert.Equal(t, contract.StatusBufferTooSmall, status)
}

func TestReadTextRequiresTerminator(t *testing.T) {
	t.Parallel()
	src := []byte("abcd")
	_, ok := buffer.ReadText(src, 2)
	assert.False(t, ok)
	_, ok = buffer.ReadText(src, 4)
	assert.False(t, ok)
}

func TestScratchSize(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 10, buffer.ScratchSize(10))
	assert.Equal(t, buffer.MaxCapacity, buffer.ScratchSize(1<<30))
}
