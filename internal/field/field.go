package field

import (
	"sort"

	"github.com/pkg/errors"
)

var (
	// ErrIncorrectFieldType is returned when a field is bound to a category
	// its type does not belong to.
	ErrIncorrectFieldType = errors.New("incorrect field type")
	// ErrTypeMismatch is the registry-level name for ErrIncorrectFieldType.
	ErrTypeMismatch = ErrIncorrectFieldType
	// ErrConflictingBinding is returned when an id is rebound to different
	// metadata or a different category.
	ErrConflictingBinding = errors.New("conflicting binding")
	// ErrAlreadyBound is returned when a nested slot is bound twice.
	ErrAlreadyBound = errors.New("field already bound")
)

// Field describes one persisted attribute. Ids are global.
type Field struct {
	ID             int64             `yaml:"id" json:"id"`
	Name           string            `yaml:"name" json:"name"`
	Type           Type              `yaml:"type" json:"type"`
	Description    string            `yaml:"description,omitempty" json:"description,omitempty"`
	AlternateCodes map[string]string `yaml:"alternateCodes,omitempty" json:"alternateCodes,omitempty"`
	Tags           []string          `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// Equal compares tags as a set and alternate codes as a map.
func (f Field) Equal(o Field) bool {
	if f.ID != o.ID || f.Name != o.Name || f.Type != o.Type || f.Description != o.Description {
		return false
	}
	if len(f.AlternateCodes) != len(o.AlternateCodes) {
		return false
	}
	for k, v := range f.AlternateCodes {
		if ov, ok := o.AlternateCodes[k]; !ok || ov != v {
			return false
		}
	}
	return sameSet(f.Tags, o.Tags)
}

func (f Field) HasTag(tag string) bool {
	for _, t := range f.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func sameSet(a, b []string) bool {
	as := make(map[string]struct{}, len(a))
	for _, s := range a {
		as[s] = struct{}{}
	}
	bs := make(map[string]struct{}, len(b))
	for _, s := range b {
		bs[s] = struct{}{}
	}
	if len(as) != len(bs) {
		return false
	}
	for s := range as {
		if _, ok := bs[s]; !ok {
			return false
		}
	}
	return true
}

// Enum pairs an enum-typed field with its ordered values.
type Enum struct {
	Field  Field    `yaml:"field" json:"field"`
	Values []string `yaml:"values" json:"values"`
}

func (e Enum) Ordinal(value string) (int, bool) {
	for i, v := range e.Values {
		if v == value {
			return i, true
		}
	}
	return -1, false
}

func (e Enum) Value(ordinal int) (string, bool) {
	if ordinal < 0 || ordinal >= len(e.Values) {
		return "", false
	}
	return e.Values[ordinal], true
}

func (e Enum) Equal(o Enum) bool {
	if !e.Field.Equal(o.Field) || len(e.Values) != len(o.Values) {
		return false
	}
	for i := range e.Values {
		if e.Values[i] != o.Values[i] {
			return false
		}
	}
	return true
}

// Entity keys a nested entity slot: the field plus the declared child type.
type Entity struct {
	Field    Field
	EntityID int64
}

func sortedIDs(set map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
