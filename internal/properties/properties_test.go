package properties

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	data := []byte(`# device settings
baudrate=115200
! alternate comment
parity : none
path=${HOME}/x

empty=
`)

	entries, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, []Entry{
		{Key: "baudrate", Value: "115200"},
		{Key: "parity", Value: "none"},
		{Key: "path", Value: "${HOME}/x"},
		{Key: "empty", Value: ""},
	}, entries)
}

func TestParse_PreservesFirstOccurrenceOrder(t *testing.T) {
	entries, err := Parse([]byte("b=1\na=2\nb=3\n"))
	require.NoError(t, err)

	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].Key)
	assert.Equal(t, "3", entries[0].Value)
	assert.Equal(t, "a", entries[1].Key)
}

func TestLoadMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.properties")
	require.NoError(t, os.WriteFile(path, []byte("baudrate=57600\nmac=0x1234\n"), 0600))

	m, err := LoadMap(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"baudrate": "57600", "mac": "0x1234"}, m)
}

func TestLoadMap_Missing(t *testing.T) {
	_, err := LoadMap(filepath.Join(t.TempDir(), "missing.properties"))
	assert.Error(t, err)
}
