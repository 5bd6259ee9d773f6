package framing

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    []byte
	}{
		{"empty", nil, []byte{DLE, STX, DLE, ETX}},
		{"plain", []byte{0xAB, 0xCD}, []byte{DLE, STX, 0xAB, 0xCD, DLE, ETX}},
		{"stuffed", []byte{0x01, DLE, 0x02}, []byte{DLE, STX, 0x01, DLE, DLE, 0x02, DLE, ETX}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Encode(tt.payload))
		})
	}
}

func TestDecodeSingleChunk(t *testing.T) {
	d := NewDecoder(0)

	stream := append(Encode([]byte{0xAB, 0xCD}), Encode([]byte{DLE, ETX, STX})...)
	frames := d.Feed(stream)

	require.Len(t, frames, 2)
	assert.Equal(t, []byte{0xAB, 0xCD}, frames[0])
	assert.Equal(t, []byte{DLE, ETX, STX}, frames[1])
	assert.False(t, d.Pending())
	assert.Zero(t, d.Dropped())
}

func TestDecodeAcrossChunkBoundaries(t *testing.T) {
	payloads := [][]byte{
		{0x01, 0x02, 0x03},
		{DLE, DLE, DLE},
		{},
		bytes.Repeat([]byte{0x7E}, 100),
	}

	var stream []byte
	for _, p := range payloads {
		stream = append(stream, Encode(p)...)
	}

	// Every split size, including one byte at a time.
	for size := 1; size <= len(stream); size++ {
		d := NewDecoder(0)
		var got [][]byte
		for start := 0; start < len(stream); start += size {
			end := min(start+size, len(stream))
			got = append(got, d.Feed(stream[start:end])...)
		}

		require.Len(t, got, len(payloads), "chunk size %d", size)
		for i := range payloads {
			assert.Equal(t, payloads[i], append([]byte{}, got[i]...), "chunk size %d frame %d", size, i)
		}
	}
}

func TestDecodeIgnoresNoiseBetweenFrames(t *testing.T) {
	d := NewDecoder(0)

	stream := []byte{0x55, DLE, DLE, STX, ETX, 0x00}
	stream = append(stream, Encode([]byte{0x42})...)
	stream = append(stream, DLE, 0x99, 0x01)

	frames := d.Feed(stream)

	require.Len(t, frames, 1)
	assert.Equal(t, []byte{0x42}, frames[0])
}

func TestDecodeRestartOnNewStart(t *testing.T) {
	d := NewDecoder(0)

	stream := []byte{DLE, STX, 0x01, 0x02}
	stream = append(stream, Encode([]byte{0x03})...)

	frames := d.Feed(stream)

	require.Len(t, frames, 1)
	assert.Equal(t, []byte{0x03}, frames[0])
	assert.Equal(t, uint64(1), d.Dropped())
}

func TestDecodeDropsInvalidEscape(t *testing.T) {
	d := NewDecoder(0)

	stream := []byte{DLE, STX, 0x01, DLE, 0x7F, 0x02, DLE, ETX}
	stream = append(stream, Encode([]byte{0x04})...)

	frames := d.Feed(stream)

	require.Len(t, frames, 1)
	assert.Equal(t, []byte{0x04}, frames[0])
	assert.Equal(t, uint64(1), d.Dropped())
}

func TestDecodeDropsOversizedFrames(t *testing.T) {
	d := NewDecoder(4)

	frames := d.Feed(Encode([]byte{1, 2, 3, 4, 5}))
	assert.Empty(t, frames)
	assert.Equal(t, uint64(1), d.Dropped())

	frames = d.Feed(Encode([]byte{1, 2, 3, 4}))
	require.Len(t, frames, 1)
	assert.Equal(t, []byte{1, 2, 3, 4}, frames[0])
}

func TestDecodedFramesAreNotAliased(t *testing.T) {
	d := NewDecoder(0)

	first := d.Feed(Encode([]byte{0x01, 0x02}))
	_ = d.Feed(Encode([]byte{0x09, 0x09}))

	require.Len(t, first, 1)
	assert.Equal(t, []byte{0x01, 0x02}, first[0])
}

func TestPending(t *testing.T) {
	d := NewDecoder(0)

	d.Feed([]byte{DLE, STX, 0x01})
	assert.True(t, d.Pending())

	d.Feed([]byte{DLE})
	assert.True(t, d.Pending())

	frames := d.Feed([]byte{ETX})
	assert.False(t, d.Pending())
	assert.Equal(t, [][]byte{{0x01}}, frames)
}
