package field

import (
	"io"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Snapshot is the serializable form of a Registry.
type Snapshot struct {
	Fields       []Field           `yaml:"fields"`
	Enums        []Enum            `yaml:"enums,omitempty"`
	EntityFields map[int64][]int64 `yaml:"entityFields,omitempty"`
	EntityEnums  map[int64][]int64 `yaml:"entityEnums,omitempty"`
}

func (r *Registry) Snapshot() Snapshot {
	s := Snapshot{
		Fields:       r.AllFields(),
		Enums:        r.AllEnums(),
		EntityFields: make(map[int64][]int64),
		EntityEnums:  make(map[int64][]int64),
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, set := range r.entityFields {
		s.EntityFields[id] = sortedIDs(set)
	}
	for id, set := range r.entityEnums {
		s.EntityEnums[id] = sortedIDs(set)
	}
	return s
}

// Restore binds everything in s. Conflicts with already bound fields fail.
func (r *Registry) Restore(s Snapshot) error {
	for _, f := range s.Fields {
		if _, err := r.Bind(f); err != nil {
			return errors.Wrap(err, "restore fields")
		}
	}
	for _, e := range s.Enums {
		if _, err := r.BindEnum(e); err != nil {
			return errors.Wrap(err, "restore enums")
		}
	}
	for entityID, ids := range s.EntityFields {
		for _, id := range ids {
			r.MapField(entityID, id)
		}
	}
	for entityID, ids := range s.EntityEnums {
		for _, id := range ids {
			r.MapEnum(entityID, id)
		}
	}
	return nil
}

func (r *Registry) WriteSnapshot(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r.Snapshot()); err != nil {
		return errors.Wrap(err, "encode snapshot")
	}
	return enc.Close()
}

func (r *Registry) ReadSnapshot(rd io.Reader) error {
	var s Snapshot
	if err := yaml.NewDecoder(rd).Decode(&s); err != nil {
		return errors.Wrap(err, "decode snapshot")
	}
	return r.Restore(s)
}
