// Package properties reads flat key=value files.
//
// The format is the Java properties dialect: one entry per line, '=' or ':'
// separating key and value, '#' and '!' starting comments. It is used for the
// device configuration handed opaquely to drivers and for reference-to-MAC maps.
package properties

import (
	"fmt"
	"os"

	"github.com/magiconair/properties"
)

// Entry is a single key/value pair in file order.
type Entry struct {
	Key   string
	Value string
}

func loader() *properties.Loader {
	// ${...} expansion is disabled: values are passed to drivers verbatim.
	return &properties.Loader{
		Encoding:         properties.UTF8,
		DisableExpansion: true,
	}
}

// Parse parses properties content and returns its entries in first-occurrence
// order. For a key that appears more than once the last value wins.
func Parse(data []byte) ([]Entry, error) {
	p, err := loader().LoadBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parsing properties: %w", err)
	}

	keys := p.Keys()
	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		v, _ := p.Get(k)
		entries = append(entries, Entry{Key: k, Value: v})
	}
	return entries, nil
}

// LoadMap reads a properties file into a flat map.
func LoadMap(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	entries, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	m := make(map[string]string, len(entries))
	for _, e := range entries {
		m[e.Key] = e.Value
	}
	return m, nil
}
