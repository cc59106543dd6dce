package entity

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"jds/internal/field"
)

// Descriptor declares one entity type.
type Descriptor struct {
	ID          int64
	Name        string
	Version     int
	Parent      int64
	Description string
	// New returns a fresh instance with all fields bound.
	New func(*Types) Persistable
}

// Types is the catalog of entity types over one field registry.
type Types struct {
	mu     sync.RWMutex
	fields *field.Registry
	byID   map[int64]Descriptor
}

func NewTypes(reg *field.Registry) *Types {
	if reg == nil {
		reg = field.NewRegistry()
	}
	return &Types{fields: reg, byID: make(map[int64]Descriptor)}
}

func (t *Types) Fields() *field.Registry { return t.fields }

// Register adds d. Registering the same id again with the same metadata
// replaces the constructor.
func (t *Types) Register(d Descriptor) error {
	if d.New == nil {
		return errors.Errorf("entity %d (%s): nil constructor", d.ID, d.Name)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.byID[d.ID]; ok {
		if old.Name != d.Name || old.Version != d.Version || old.Parent != d.Parent {
			return errors.Wrapf(field.ErrConflictingBinding, "entity %d already registered as %s v%d", d.ID, old.Name, old.Version)
		}
	}
	t.byID[d.ID] = d
	return nil
}

func (t *Types) Lookup(id int64) (Descriptor, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	d, ok := t.byID[id]
	return d, ok
}

// New instantiates a registered type and surfaces binding errors.
func (t *Types) New(id int64) (Persistable, error) {
	d, ok := t.Lookup(id)
	if !ok {
		return nil, errors.Wrapf(ErrUnregisteredEntityType, "entity %d", id)
	}
	p := d.New(t)
	if isNil(p) {
		return nil, errors.Errorf("entity %d (%s): constructor returned nil", id, d.Name)
	}
	if err := p.Base().Err(); err != nil {
		return nil, errors.Wrapf(err, "construct entity %d (%s)", id, d.Name)
	}
	return p, nil
}

// Depth is the number of registered ancestors of id.
func (t *Types) Depth(id int64) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	depth := 0
	seen := map[int64]struct{}{id: {}}
	for {
		d, ok := t.byID[id]
		if !ok || d.Parent == 0 {
			return depth
		}
		if _, loop := seen[d.Parent]; loop {
			return depth
		}
		seen[d.Parent] = struct{}{}
		depth++
		id = d.Parent
	}
}

// IsA reports whether id equals ancestor or inherits from it.
func (t *Types) IsA(id, ancestor int64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	seen := map[int64]struct{}{}
	for id != 0 {
		if id == ancestor {
			return true
		}
		if _, loop := seen[id]; loop {
			return false
		}
		seen[id] = struct{}{}
		id = t.byID[id].Parent
	}
	return false
}

// Descendants returns id and every registered type inheriting from it.
func (t *Types) Descendants(id int64) []int64 {
	out := []int64{id}
	for _, d := range t.All() {
		if d.ID != id && t.IsA(d.ID, id) {
			out = append(out, d.ID)
		}
	}
	return out
}

// All returns descriptors ordered by id.
func (t *Types) All() []Descriptor {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Descriptor, 0, len(t.byID))
	for _, d := range t.byID {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Inheritance lists (parent, child) edges.
func (t *Types) Inheritance() [][2]int64 {
	var out [][2]int64
	for _, d := range t.All() {
		if d.Parent != 0 {
			out = append(out, [2]int64{d.Parent, d.ID})
		}
	}
	return out
}

// ByName finds a descriptor by case-sensitive name.
func (t *Types) ByName(name string) (Descriptor, bool) {
	for _, d := range t.All() {
		if d.Name == name {
			return d, true
		}
	}
	return Descriptor{}, false
}
