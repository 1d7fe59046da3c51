// Package domain implements the build core: workspace composition, the
// per-target pipeline and the dependency-ordered library builder.
package domain

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Entry is one resolved file in a merged directory: which layer won and
// where the file actually lives on the host.
type Entry struct {
	Layer  string
	Source string
}

type layer struct {
	name    string
	entries map[string]string
}

// Overlay merges ordered directory layers into one flat namespace. Earlier
// layers win on name collision; later layers only fill gaps. It is a pure
// lookup structure so precedence can be tested without a filesystem.
type Overlay struct {
	layers []layer
}

// NewOverlay returns an empty overlay.
func NewOverlay() *Overlay {
	return &Overlay{}
}

// AddLayer appends a layer. entries map an entry name to its source path.
func (o *Overlay) AddLayer(name string, entries map[string]string) {
	o.layers = append(o.layers, layer{name: name, entries: entries})
}

// Resolve returns the merged view, first occurrence per name winning.
func (o *Overlay) Resolve() map[string]Entry {
	resolved := make(map[string]Entry)

	for _, l := range o.layers {
		for name, source := range l.entries {
			if _, taken := resolved[name]; !taken {
				resolved[name] = Entry{Layer: l.name, Source: source}
			}
		}
	}

	return resolved
}

// Materialize symlinks every resolved entry into dest, in sorted name order.
func (o *Overlay) Materialize(dest string) error {
	resolved := o.Resolve()

	names := make([]string, 0, len(resolved))
	for name := range resolved {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		if err := os.Symlink(resolved[name].Source, filepath.Join(dest, name)); err != nil {
			return fmt.Errorf("linking %s from layer %s: %w", name, resolved[name].Layer, err)
		}
	}

	return nil
}

// dirEntries lists the regular files under root that pass filter, keyed by
// DOS-uppercased name. A missing or unreadable root yields an empty map so
// optional layers are simply skipped.
func dirEntries(root string, filter func(string) bool) map[string]string {
	entries := make(map[string]string)

	items, err := os.ReadDir(root)
	if err != nil {
		return entries
	}

	for _, item := range items {
		if item.IsDir() {
			continue
		}

		if filter != nil && !filter(item.Name()) {
			continue
		}

		entries[strings.ToUpper(item.Name())] = filepath.Join(root, item.Name())
	}

	return entries
}

func withExt(ext string) func(string) bool {
	return func(name string) bool {
		return strings.EqualFold(filepath.Ext(name), ext)
	}
}
