package data

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// MediaEntry describes one file clients download during startup.
type MediaEntry struct {
	Name string `yaml:"name"` // name the client requests
	File string `yaml:"file"` // path relative to the media directory
	SHA1 string `yaml:"sha1"` // base64 digest announced to clients
}

// MediaTable provides lookup of media files by requested name.
type MediaTable struct {
	dir     string
	entries map[string]*MediaEntry
}

// LoadMediaTable loads media_list.yaml. Files are resolved against dir.
func LoadMediaTable(path, dir string) (*MediaTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read media list: %w", err)
	}
	var entries []MediaEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse media list: %w", err)
	}
	t := &MediaTable{
		dir:     dir,
		entries: make(map[string]*MediaEntry, len(entries)),
	}
	for i := range entries {
		e := &entries[i]
		if e.Name == "" {
			return nil, fmt.Errorf("media list entry %d has no name", i)
		}
		if _, dup := t.entries[e.Name]; dup {
			return nil, fmt.Errorf("media list: duplicate name %q", e.Name)
		}
		if e.File == "" {
			e.File = e.Name
		}
		t.entries[e.Name] = e
	}
	return t, nil
}

// Get returns the entry for name, or nil if unknown.
func (t *MediaTable) Get(name string) *MediaEntry {
	return t.entries[name]
}

// Read returns the file content for an entry.
func (t *MediaTable) Read(e *MediaEntry) ([]byte, error) {
	clean := filepath.Clean("/" + e.File)
	return os.ReadFile(filepath.Join(t.dir, clean))
}

// Names returns all media names in sorted order.
func (t *MediaTable) Names() []string {
	names := make([]string, 0, len(t.entries))
	for n := range t.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Count returns the total number of media entries loaded.
func (t *MediaTable) Count() int {
	return len(t.entries)
}
