package gamecat

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	yaml "gopkg.in/yaml.v3"
)

//go:embed games.yaml
var defaultFiles embed.FS

// Info describes one playable game type for presentation and activity
// records (display name, feed icon).
type Info struct {
	Type string `yaml:"-"`
	Name string `yaml:"name"`
	Icon string `yaml:"icon"`
}

type catalogFile struct {
	Games   map[string]Info `yaml:"games"`
	Default Info            `yaml:"default"`
}

// Catalog holds game type metadata loaded from the embedded defaults and an
// optional override directory. The set of game types is open: looking up an
// unknown type yields the default entry, never an error, so adding a game is
// a data change rather than a code change.
type Catalog struct {
	mu   sync.RWMutex
	data map[string]Info
	def  Info
}

// New loads the embedded defaults and then applies overrides from dir, if
// provided. Override files use the same shape as games.yaml.
func New(overrideDir string) (*Catalog, error) {
	c := &Catalog{data: make(map[string]Info)}
	raw, err := defaultFiles.ReadFile("games.yaml")
	if err != nil {
		return nil, fmt.Errorf("read embedded catalog: %w", err)
	}
	if err := c.merge(raw); err != nil {
		return nil, fmt.Errorf("parse embedded catalog: %w", err)
	}
	if strings.TrimSpace(overrideDir) != "" {
		if err := c.applyDir(overrideDir); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) merge(raw []byte) error {
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for typ, info := range f.Games {
		info.Type = typ
		c.data[typ] = info
	}
	if f.Default.Name != "" || f.Default.Icon != "" {
		c.def = f.Default
	}
	return nil
}

func (c *Catalog) applyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read catalog override dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return fmt.Errorf("read catalog override %s: %w", e.Name(), err)
		}
		if err := c.merge(raw); err != nil {
			return fmt.Errorf("parse catalog override %s: %w", e.Name(), err)
		}
	}
	return nil
}

// Lookup returns the metadata for a game type. Unknown types fall back to
// the default entry with the requested type echoed back.
func (c *Catalog) Lookup(gameType string) Info {
	typ := strings.TrimSpace(gameType)
	c.mu.RLock()
	defer c.mu.RUnlock()
	if info, ok := c.data[typ]; ok {
		return info
	}
	info := c.def
	info.Type = typ
	if info.Name == "" {
		info.Name = typ
	}
	return info
}

// Known reports whether the type appears in the catalog.
func (c *Catalog) Known(gameType string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.data[strings.TrimSpace(gameType)]
	return ok
}

// Types lists the catalogued game types.
func (c *Catalog) Types() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.data))
	for typ := range c.data {
		out = append(out, typ)
	}
	return out
}
