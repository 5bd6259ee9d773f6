package mac

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHex(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  uint64
	}{
		{"canonical 64-bit", "0004A30000123456", 0x0004A30000123456},
		{"lowercase", "0004a30000123456", 0x0004A30000123456},
		{"prefix", "0x1234", 0x1234},
		{"unpadded", "1234", 0x1234},
		{"colon separated", "00:15:8d:00:01:02", 0x00158D000102},
		{"dash separated", "00-15-8D-00-01-02", 0x00158D000102},
		{"surrounding space", "  ff ", 0xFF},
		{"max", "FFFFFFFFFFFFFFFF", ^uint64(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseHex(tt.input)
			require.NoError(t, err)
			assert.Equal(t, New(tt.want), got)
		})
	}
}

func TestParseHex_Invalid(t *testing.T) {
	for _, input := range []string{"", "0x", "xyz", "12345678901234567", "12 34"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseHex(input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid))
		})
	}
}

func TestEqualityIgnoresCasingAndPadding(t *testing.T) {
	a, err := ParseHex("00000000000004A3")
	require.NoError(t, err)
	b, err := ParseHex("4a3")
	require.NoError(t, err)

	assert.Equal(t, a, b)

	set := map[Address]string{a: "node"}
	assert.Equal(t, "node", set[b])
}

func TestHex(t *testing.T) {
	a := New(0x123456)

	assert.Equal(t, "000000123456", a.Hex(Mode48))
	assert.Equal(t, "0000000000123456", a.Hex(Mode64))
	assert.Equal(t, "0000000000123456", a.String())
	assert.Equal(t, "0004A30000123456", New(0x0004A30000123456).Hex(Mode48), "wide values are not truncated")
}

func TestFits(t *testing.T) {
	assert.True(t, New(1<<48-1).Fits(Mode48))
	assert.False(t, New(1<<48).Fits(Mode48))
	assert.True(t, New(^uint64(0)).Fits(Mode64))
}

func TestHexRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 0xABCDEF, 1<<48 - 1, 0x0004A30000112233, ^uint64(0)}

	for _, v := range values {
		for _, mode := range []Mode{Mode48, Mode64} {
			m := New(v)
			parsed, err := ParseHex(m.Hex(mode))
			require.NoError(t, err)
			assert.Equal(t, m, parsed, "value %X mode %d", v, mode)
		}
	}
}
