// Package molecules maps commercial drug names to their active molecule.
package molecules

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	_ "embed"

	"gopkg.in/yaml.v2"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// File is the on-disk layout: molecule name to the drug names that contain it.
type File struct {
	Molecules map[string][]string `yaml:"molecules"`
}

// Map is a concurrency-safe drug to molecule lookup. It satisfies
// dataprocessing.MoleculeLookup.
type Map struct {
	mu     sync.RWMutex
	byDrug map[string]string
}

// New returns an empty map.
func New() *Map {
	return &Map{byDrug: make(map[string]string)}
}

// Default returns the built-in mapping.
func Default() (*Map, error) {
	m := New()
	if err := m.merge(defaultsYAML); err != nil {
		return nil, fmt.Errorf("failed to parse built-in molecules: %w", err)
	}
	return m, nil
}

// Load returns the built-in mapping overlaid with the file at path. A
// missing file is not an error.
func Load(path string) (*Map, error) {
	m, err := Default()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return m, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read molecule map: %w", err)
	}
	if err := m.merge(data); err != nil {
		return nil, fmt.Errorf("failed to parse molecule map %s: %w", path, err)
	}
	return m, nil
}

func (m *Map) merge(data []byte) error {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for molecule, drugs := range f.Molecules {
		for _, d := range drugs {
			if key := normalize(d); key != "" {
				m.byDrug[key] = molecule
			}
		}
	}
	return nil
}

// Lookup returns the molecule of drug, or "" when unknown.
func (m *Map) Lookup(drug string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byDrug[normalize(drug)]
}

// Add records a mapping, replacing any previous one for drug.
func (m *Map) Add(drug, molecule string) {
	key := normalize(drug)
	if key == "" {
		return
	}
	m.mu.Lock()
	m.byDrug[key] = molecule
	m.mu.Unlock()
}

// Len returns the number of mapped drugs.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byDrug)
}

// Unknown returns the distinct drugs without a mapping, sorted.
func (m *Map) Unknown(drugs []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, d := range drugs {
		if m.Lookup(d) != "" || seen[d] || strings.TrimSpace(d) == "" {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Save writes the mapping to path grouped by molecule.
func (m *Map) Save(path string) error {
	m.mu.RLock()
	f := File{Molecules: make(map[string][]string)}
	for drug, molecule := range m.byDrug {
		f.Molecules[molecule] = append(f.Molecules[molecule], drug)
	}
	m.mu.RUnlock()
	for _, drugs := range f.Molecules {
		sort.Strings(drugs)
	}

	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to encode molecule map: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func normalize(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}
