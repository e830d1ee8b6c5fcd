// Copyright 2022-2026 aquova et al.

// Package catalog holds the bot's user-visible message and title templates,
// keyed by name. A default catalog is embedded in the binary; a yaml file
// can override it at startup and be hot-reloaded at runtime.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed strings.yaml
var defaultStrings []byte

// Catalog is a reloadable set of named templates. Safe for concurrent use.
type Catalog struct {
	mu      sync.RWMutex
	strings map[string]string
	lists   map[string][]string
}

// Load builds a Catalog from the embedded defaults.
func Load() (*Catalog, error) {
	c := &Catalog{}
	if err := c.parse(defaultStrings); err != nil {
		return nil, fmt.Errorf("failed to parse embedded strings: %w", err)
	}
	return c, nil
}

// LoadFile replaces the catalog's contents with the given yaml file.
// Missing keys fall back to the key name at lookup time, so a partial
// override file swaps the whole catalog.
func (c *Catalog) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read strings file: %w", err)
	}
	if err := c.parse(data); err != nil {
		return fmt.Errorf("failed to parse strings file: %w", err)
	}
	return nil
}

func (c *Catalog) parse(data []byte) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}
	strs := make(map[string]string)
	lists := make(map[string][]string)
	for key, val := range raw {
		switch v := val.(type) {
		case string:
			strs[key] = v
		case []any:
			list := make([]string, 0, len(v))
			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					return fmt.Errorf("entry %q has a non-string list item", key)
				}
				list = append(list, s)
			}
			lists[key] = list
		default:
			return fmt.Errorf("entry %q is neither string nor list", key)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.strings = strs
	c.lists = lists
	return nil
}

// Get returns the template stored under name, or the name itself when the
// catalog has no such entry. A raw key in chat beats a silent blank.
func (c *Catalog) Get(name string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if s, ok := c.strings[name]; ok {
		return s
	}
	return name
}

// Format renders the named template with fmt.Sprintf semantics.
func (c *Catalog) Format(name string, args ...any) string {
	return fmt.Sprintf(c.Get(name), args...)
}

// List returns the template list stored under name, or nil.
func (c *Catalog) List(name string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lists[name]
}
