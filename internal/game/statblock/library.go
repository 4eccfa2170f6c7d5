package statblock

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// LoadFromBytes parses and validates a single stat block from YAML.
//
// Postcondition: Returns a validated StatBlock with unset abilities defaulted to 10.
func LoadFromBytes(data []byte) (StatBlock, error) {
	sb := Default()
	if err := yaml.Unmarshal(data, &sb); err != nil {
		return StatBlock{}, fmt.Errorf("parsing stat block YAML: %w", err)
	}
	if sb.ID == "" {
		sb.ID = slug(sb.Name)
	}
	if err := sb.Validate(); err != nil {
		return StatBlock{}, err
	}
	return sb, nil
}

// LoadDir reads every *.yaml file in dir.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns all stat blocks in file-name order, or the first error.
func LoadDir(dir string) ([]StatBlock, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading stat block dir %q: %w", dir, err)
	}
	var out []StatBlock
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		sb, err := LoadFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("loading %q: %w", path, err)
		}
		out = append(out, sb)
	}
	return out, nil
}

// Library indexes stat blocks by ID. All methods are safe for concurrent use.
type Library struct {
	mu     sync.RWMutex
	blocks map[string]StatBlock
}

// NewLibrary builds a Library from blocks.
//
// Postcondition: Returns an error if two blocks share an ID.
func NewLibrary(blocks []StatBlock) (*Library, error) {
	l := &Library{blocks: make(map[string]StatBlock, len(blocks))}
	for _, sb := range blocks {
		if _, dup := l.blocks[sb.ID]; dup {
			return nil, fmt.Errorf("duplicate stat block id %q", sb.ID)
		}
		l.blocks[sb.ID] = sb
	}
	return l, nil
}

// Get returns the stat block with id.
func (l *Library) Get(id string) (StatBlock, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	sb, ok := l.blocks[id]
	return sb, ok
}

// Search returns stat blocks whose name contains query, case-insensitively,
// sorted by name. An empty query returns everything.
func (l *Library) Search(query string) []StatBlock {
	q := strings.ToLower(strings.TrimSpace(query))
	l.mu.RLock()
	out := make([]StatBlock, 0, len(l.blocks))
	for _, sb := range l.blocks {
		if q == "" || strings.Contains(strings.ToLower(sb.Name), q) {
			out = append(out, sb)
		}
	}
	l.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of stat blocks.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.blocks)
}

func slug(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}
