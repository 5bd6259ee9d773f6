package reference

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TTeubler/wsn-device-utils/internal/mac"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "refs.properties")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func mustMAC(t *testing.T, s string) mac.Address {
	t.Helper()
	addr, err := mac.ParseHex(s)
	require.NoError(t, err)
	return addr
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "# lab nodes\na=0004A30000112233\nb=0x1A2B\n")

	m, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, m.Len())
	assert.Equal(t, []string{"a", "b"}, m.References())

	addr, ok := m.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, "0004A30000112233", addr.String())

	ref, ok := m.Reference(mustMAC(t, "0004a30000112233"))
	require.True(t, ok)
	assert.Equal(t, "a", ref)
}

func TestLookupIsConsistentBothWays(t *testing.T) {
	m, err := Parse("inline", []byte("n1=01\nn2=02\nn3=0000000000000003\n"))
	require.NoError(t, err)

	for _, ref := range m.References() {
		addr, ok := m.Lookup(ref)
		require.True(t, ok)

		back, ok := m.Reference(addr)
		require.True(t, ok)
		assert.Equal(t, ref, back)
	}
}

func TestReference_DuplicateMACFirstWins(t *testing.T) {
	m, err := Parse("inline", []byte("first=AA\nsecond=aa\n"))
	require.NoError(t, err)

	ref, ok := m.Reference(mac.New(0xAA))
	require.True(t, ok)
	assert.Equal(t, "first", ref)

	addr, ok := m.Lookup("second")
	require.True(t, ok)
	assert.Equal(t, mac.New(0xAA), addr)
}

func TestLoad_ConfigErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.properties"))
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, KindNotExist, cfgErr.Kind)
	assert.Equal(t, ExitFileNotExisting, ExitCode(err))

	_, err = Load(dir)
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, KindIsDirectory, cfgErr.Kind)
	assert.Equal(t, ExitFileIsDirectory, ExitCode(err))
}

func TestLoad_Unreadable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read files regardless of mode")
	}

	path := writeFile(t, "a=01\n")
	require.NoError(t, os.Chmod(path, 0o000))

	_, err := Load(path)
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, KindUnreadable, cfgErr.Kind)
	assert.Equal(t, ExitFileNotReadable, ExitCode(err))
}

func TestLoad_MalformedEntryFailsWholeLoad(t *testing.T) {
	path := writeFile(t, "good=01\nbad=not-a-mac\nlater=02\n")

	m, err := Load(path)
	assert.Nil(t, m)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "bad", parseErr.Key)
	assert.Equal(t, "not-a-mac", parseErr.Value)
	assert.True(t, errors.Is(err, mac.ErrInvalid))
	assert.Contains(t, err.Error(), `"bad"`)
	assert.Equal(t, ExitInvalidArguments, ExitCode(err))
}

func TestNilMapMisses(t *testing.T) {
	var m *Map

	_, ok := m.Lookup("a")
	assert.False(t, ok)
	_, ok = m.Reference(mac.New(1))
	assert.False(t, ok)
	assert.Zero(t, m.Len())
	assert.Nil(t, m.References())
}
