package reference

import (
	"errors"
	"io/fs"
	"os"

	"github.com/TTeubler/wsn-device-utils/internal/mac"
	"github.com/TTeubler/wsn-device-utils/internal/properties"
)

// Map is an immutable bidirectional reference <-> MAC table.
//
// A nil *Map is valid and empty; all lookups miss.
type Map struct {
	byReference map[string]mac.Address
	byMAC       map[mac.Address]string
	references  []string
}

// Load reads a reference map from a properties file.
//
// Returns:
//   - *Map: the loaded map
//   - error: *ConfigError if the file is missing, unreadable or a directory,
//     *ParseError if any entry is malformed
func Load(path string) (*Map, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ConfigError{Kind: KindNotExist, Path: path}
		}
		return nil, &ConfigError{Kind: KindUnreadable, Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, &ConfigError{Kind: KindIsDirectory, Path: path}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Kind: KindUnreadable, Path: path, Err: err}
	}

	return Parse(path, data)
}

// Parse builds a map from properties content. source names the content in errors.
func Parse(source string, data []byte) (*Map, error) {
	entries, err := properties.Parse(data)
	if err != nil {
		return nil, &ParseError{Path: source, Err: err}
	}

	m := &Map{
		byReference: make(map[string]mac.Address, len(entries)),
		byMAC:       make(map[mac.Address]string, len(entries)),
		references:  make([]string, 0, len(entries)),
	}

	for _, e := range entries {
		if e.Key == "" {
			return nil, &ParseError{Path: source, Key: e.Key, Value: e.Value, Err: ErrEmptyReference}
		}

		addr, err := mac.ParseHex(e.Value)
		if err != nil {
			return nil, &ParseError{Path: source, Key: e.Key, Value: e.Value, Err: err}
		}

		m.byReference[e.Key] = addr
		m.references = append(m.references, e.Key)
		if _, taken := m.byMAC[addr]; !taken {
			m.byMAC[addr] = e.Key
		}
	}

	return m, nil
}

// Lookup returns the MAC assigned to reference.
func (m *Map) Lookup(reference string) (mac.Address, bool) {
	if m == nil {
		return mac.Address{}, false
	}
	addr, ok := m.byReference[reference]
	return addr, ok
}

// Reference returns the reference assigned to addr.
func (m *Map) Reference(addr mac.Address) (string, bool) {
	if m == nil {
		return "", false
	}
	ref, ok := m.byMAC[addr]
	return ref, ok
}

// Len returns the number of references.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.references)
}

// References returns all references in file order.
func (m *Map) References() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.references))
	copy(out, m.references)
	return out
}
