// Package refpool supplies the countries a duel draws its flag rounds from.
package refpool

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/park285/flagduel/internal/duel"
	yaml "gopkg.in/yaml.v3"
)

//go:embed countries.yaml
var defaultCountries []byte

type country struct {
	Key       string `yaml:"key"`
	Name      string `yaml:"name"`
	Region    string `yaml:"region"`
	FlagURL   string `yaml:"flag_url"`
	FlagEmoji string `yaml:"flag_emoji"`
	// Inactive entries stay in the file but are never drawn.
	Inactive bool `yaml:"inactive"`
}

type file struct {
	Countries []country `yaml:"countries"`
}

// Catalog is a duel.ReferencePool backed by YAML. The embedded list is used
// unless an override file is given; the override replaces it entirely.
type Catalog struct {
	mu    sync.RWMutex
	items []duel.PoolItem
}

func New(overrideFile string) (*Catalog, error) {
	raw := defaultCountries
	if path := strings.TrimSpace(overrideFile); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read pool file: %w", err)
		}
		raw = b
	}
	items, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	return &Catalog{items: items}, nil
}

// Parse decodes a countries document and rejects duplicate keys or names.
func Parse(raw []byte) ([]duel.PoolItem, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse pool: %w", err)
	}
	keys := make(map[string]bool, len(f.Countries))
	names := make(map[string]bool, len(f.Countries))
	items := make([]duel.PoolItem, 0, len(f.Countries))
	for i, c := range f.Countries {
		key, name := strings.ToUpper(strings.TrimSpace(c.Key)), strings.TrimSpace(c.Name)
		if key == "" || name == "" {
			return nil, fmt.Errorf("country #%d: key and name required: %w", i, duel.ErrInvalidPool)
		}
		if keys[key] || names[name] {
			return nil, fmt.Errorf("country %s duplicated: %w", key, duel.ErrInvalidPool)
		}
		keys[key], names[name] = true, true
		if c.Inactive {
			continue
		}
		items = append(items, duel.PoolItem{
			Key:    key,
			Answer: name,
			Prompt: strings.TrimSpace(c.FlagURL),
			Emoji:  strings.TrimSpace(c.FlagEmoji),
		})
	}
	return items, nil
}

// Items returns a copy so callers cannot reorder the shared slice.
func (c *Catalog) Items(ctx context.Context) ([]duel.PoolItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]duel.PoolItem, len(c.items))
	copy(out, c.items)
	return out, nil
}

// Replace swaps the pool, e.g. after the operator edits the override file.
func (c *Catalog) Replace(items []duel.PoolItem) {
	c.mu.Lock()
	c.items = append([]duel.PoolItem(nil), items...)
	c.mu.Unlock()
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
