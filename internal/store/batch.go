package store

import (
	"sort"
	"strconv"
	"strings"
)

// Key identifies one persisted revision of an entity.
type Key struct {
	UUID        string
	EditVersion int
}

// String is the composite key.
func (k Key) String() string {
	return k.UUID + ":" + strconv.Itoa(k.EditVersion)
}

func (k Key) IsZero() bool { return k.UUID == "" }

// ParseKey splits a composite key at its last colon.
func ParseKey(ck string) (Key, bool) {
	i := strings.LastIndexByte(ck, ':')
	if i <= 0 {
		return Key{}, false
	}
	ev, err := strconv.Atoi(ck[i+1:])
	if err != nil {
		return Key{}, false
	}
	return Key{UUID: ck[:i], EditVersion: ev}, true
}

type OverviewRow struct {
	Key           Key
	EntityID      int64
	EntityVersion int
	Live          bool
	Parent        Key
}

type BindingRow struct {
	Parent  Key
	FieldID int64
	Seq     int
	Child   Key
}

// Step holds the rows of one dependency step, keyed by composite key.
type Step struct {
	Index       int
	Overviews   map[string]OverviewRow
	Values      map[Table]map[string]map[int64]any
	Collections map[Table]map[string]map[int64][]any
	Bindings    map[string]map[int64][]BindingRow

	order []string
}

func newStep(i int) *Step {
	return &Step{
		Index:       i,
		Overviews:   make(map[string]OverviewRow),
		Values:      make(map[Table]map[string]map[int64]any),
		Collections: make(map[Table]map[string]map[int64][]any),
		Bindings:    make(map[string]map[int64][]BindingRow),
	}
}

func (s *Step) PutOverview(row OverviewRow) {
	ck := row.Key.String()
	if _, ok := s.Overviews[ck]; !ok {
		s.order = append(s.order, ck)
	}
	s.Overviews[ck] = row
}

func (s *Step) PutValue(t Table, k Key, fieldID int64, v any) {
	byKey, ok := s.Values[t]
	if !ok {
		byKey = make(map[string]map[int64]any)
		s.Values[t] = byKey
	}
	ck := k.String()
	byField, ok := byKey[ck]
	if !ok {
		byField = make(map[int64]any)
		byKey[ck] = byField
	}
	byField[fieldID] = v
}

// PutCollection replaces the elements of one collection field.
func (s *Step) PutCollection(t Table, k Key, fieldID int64, vs []any) {
	byKey, ok := s.Collections[t]
	if !ok {
		byKey = make(map[string]map[int64][]any)
		s.Collections[t] = byKey
	}
	ck := k.String()
	byField, ok := byKey[ck]
	if !ok {
		byField = make(map[int64][]any)
		byKey[ck] = byField
	}
	byField[fieldID] = vs
}

// PutBindings replaces the children bound under parent's field.
func (s *Step) PutBindings(parent Key, fieldID int64, children []Key) {
	ck := parent.String()
	byField, ok := s.Bindings[ck]
	if !ok {
		byField = make(map[int64][]BindingRow)
		s.Bindings[ck] = byField
	}
	rows := make([]BindingRow, 0, len(children))
	for i, c := range children {
		rows = append(rows, BindingRow{Parent: parent, FieldID: fieldID, Seq: i, Child: c})
	}
	byField[fieldID] = rows
}

// Keys returns the composite keys of this step in first-seen order.
func (s *Step) Keys() []string {
	return append([]string(nil), s.order...)
}

// Batch collects the steps of a save unit.
type Batch struct {
	steps map[int]*Step
}

func NewBatch() *Batch {
	return &Batch{steps: make(map[int]*Step)}
}

func (b *Batch) Step(i int) *Step {
	s, ok := b.steps[i]
	if !ok {
		s = newStep(i)
		b.steps[i] = s
	}
	return s
}

// Steps returns steps in ascending index order.
func (b *Batch) Steps() []*Step {
	out := make([]*Step, 0, len(b.steps))
	for _, s := range b.steps {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Rows counts every row the batch would write.
func (b *Batch) Rows() int {
	n := 0
	for _, s := range b.steps {
		n += len(s.Overviews)
		for _, byKey := range s.Values {
			for _, byField := range byKey {
				n += len(byField)
			}
		}
		for _, byKey := range s.Collections {
			for _, byField := range byKey {
				for _, vs := range byField {
					n += len(vs)
				}
			}
		}
		for _, byField := range s.Bindings {
			for _, rows := range byField {
				n += len(rows)
			}
		}
	}
	return n
}
