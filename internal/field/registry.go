package field

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// Registry maps field ids to metadata and tracks which fields and enums
// each entity type touches. Safe for concurrent use.
type Registry struct {
	mu           sync.RWMutex
	fields       map[int64]Field
	enums        map[int64]Enum
	entityFields map[int64]map[int64]struct{}
	entityEnums  map[int64]map[int64]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		fields:       make(map[int64]Field),
		enums:        make(map[int64]Enum),
		entityFields: make(map[int64]map[int64]struct{}),
		entityEnums:  make(map[int64]map[int64]struct{}),
	}
}

// Bind records f. An empty allowed list accepts any type.
func (r *Registry) Bind(f Field, allowed ...Type) (int64, error) {
	if len(allowed) > 0 && !typeIn(f.Type, allowed) {
		return 0, errors.Wrapf(ErrIncorrectFieldType, "field %d (%s) has type %s, want one of %v", f.ID, f.Name, f.Type, allowed)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.fields[f.ID]; ok {
		if !existing.Equal(f) {
			return 0, errors.Wrapf(ErrConflictingBinding, "field %d already bound as %q (%s)", f.ID, existing.Name, existing.Type)
		}
		return f.ID, nil
	}
	r.fields[f.ID] = f
	return f.ID, nil
}

// BindEnum records an enum and its underlying field.
func (r *Registry) BindEnum(e Enum) (int64, error) {
	if _, err := r.Bind(e.Field, TypeEnum, TypeEnumCollection); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.enums[e.Field.ID]; ok {
		if !existing.Equal(e) {
			return 0, errors.Wrapf(ErrConflictingBinding, "enum %d already bound with values %v", e.Field.ID, existing.Values)
		}
		return e.Field.ID, nil
	}
	r.enums[e.Field.ID] = Enum{Field: e.Field, Values: append([]string(nil), e.Values...)}
	return e.Field.ID, nil
}

func (r *Registry) Field(id int64) (Field, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.fields[id]
	return f, ok
}

func (r *Registry) Enum(id int64) (Enum, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.enums[id]
	return e, ok
}

// FindAll returns the registered fields among ids, ordered by id.
// Unknown ids are omitted.
func (r *Registry) FindAll(ids []int64) []Field {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Field, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if f, ok := r.fields[id]; ok {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) AllFields() []Field {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Field, 0, len(r.fields))
	for _, f := range r.fields {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) AllEnums() []Enum {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Enum, 0, len(r.enums))
	for _, e := range r.enums {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field.ID < out[j].Field.ID })
	return out
}

func (r *Registry) MapField(entityID, fieldID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	insert(r.entityFields, entityID, fieldID)
}

func (r *Registry) MapEnum(entityID, fieldID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	insert(r.entityEnums, entityID, fieldID)
}

// Fields returns the field ids mapped to an entity type, sorted.
func (r *Registry) Fields(entityID int64) []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedIDs(r.entityFields[entityID])
}

func (r *Registry) Enums(entityID int64) []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedIDs(r.entityEnums[entityID])
}

// MappedEntities lists entity ids with at least one mapped field.
func (r *Registry) MappedEntities() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := make(map[int64]struct{}, len(r.entityFields))
	for id := range r.entityFields {
		set[id] = struct{}{}
	}
	return sortedIDs(set)
}

func insert(m map[int64]map[int64]struct{}, k, v int64) {
	set, ok := m[k]
	if !ok {
		set = make(map[int64]struct{})
		m[k] = set
	}
	set[v] = struct{}{}
}

func typeIn(t Type, allowed []Type) bool {
	for _, a := range allowed {
		if a == t {
			return true
		}
	}
	return false
}
