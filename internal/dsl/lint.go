package dsl

import (
	"fmt"
	"strconv"

	"jds/internal/entity"
	"jds/internal/field"
)

type Issue struct {
	Entity  string `json:"entity"`
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.Field == "" {
		return fmt.Sprintf("%s: %s: %s", i.Entity, i.Code, i.Message)
	}
	return fmt.Sprintf("%s.%s: %s: %s", i.Entity, i.Field, i.Code, i.Message)
}

var dslTypes = map[string]field.Type{
	"decimal": field.TypeDouble,
	"money":   field.TypeDouble,
	"binary":  field.TypeBlob,
}

var collectionOf = map[field.Type]field.Type{
	field.TypeString:   field.TypeStringCollection,
	field.TypeDateTime: field.TypeDateTimeCollection,
	field.TypeFloat:    field.TypeFloatCollection,
	field.TypeDouble:   field.TypeDoubleCollection,
	field.TypeInt:      field.TypeIntCollection,
	field.TypeLong:     field.TypeLongCollection,
}

func primitive(name string) (field.Type, bool) {
	if t, ok := dslTypes[name]; ok {
		return t, true
	}
	t, err := field.ParseType(name)
	if err != nil || t.Collection() || t == field.TypeEnum || t == field.TypeEntity {
		return field.TypeUnknown, false
	}
	return t, true
}

// FieldType maps the declared type of f to a field kind.
func FieldType(f Field) (field.Type, bool) {
	switch f.Type {
	case "enum":
		return field.TypeEnum, true
	case "ref":
		return field.TypeEntity, true
	case "array":
		switch f.ElemType {
		case "enum":
			return field.TypeEnumCollection, true
		case "ref":
			return field.TypeEntityCollection, true
		}
		elem, ok := primitive(f.ElemType)
		if !ok {
			return field.TypeUnknown, false
		}
		t, ok := collectionOf[elem]
		return t, ok
	}
	return primitive(f.Type)
}

// resolver finds entity ids by declared name, qualified name or id,
// falling back to types registered in code.
type resolver struct {
	types  *entity.Types
	byFQN  map[string]*Entity
	byName map[string][]*Entity
	byID   map[int64]*Entity
}

func newResolver(types *entity.Types, entities []*Entity) *resolver {
	r := &resolver{
		types:  types,
		byFQN:  map[string]*Entity{},
		byName: map[string][]*Entity{},
		byID:   map[int64]*Entity{},
	}
	for _, e := range entities {
		if _, ok := r.byFQN[e.FQN()]; !ok {
			r.byFQN[e.FQN()] = e
		}
		r.byName[e.Name] = append(r.byName[e.Name], e)
		if id := e.ID(); id != 0 {
			if _, ok := r.byID[id]; !ok {
				r.byID[id] = e
			}
		}
	}
	return r
}

// declared returns the declaration a reference points to, if any.
func (r *resolver) declared(from *Entity, ref string) *Entity {
	if e, ok := r.byFQN[ref]; ok {
		return e
	}
	if from.Module != "" {
		if e, ok := r.byFQN[from.Module+"."+ref]; ok {
			return e
		}
	}
	if es := r.byName[ref]; len(es) == 1 {
		return es[0]
	}
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return r.byID[id]
	}
	return nil
}

func (r *resolver) target(from *Entity, ref string) (int64, bool) {
	if e := r.declared(from, ref); e != nil {
		return e.ID(), e.ID() != 0
	}
	if r.types == nil {
		return 0, false
	}
	if d, ok := r.types.ByName(ref); ok {
		return d.ID, true
	}
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		if _, ok := r.types.Lookup(id); ok {
			return id, true
		}
	}
	return 0, false
}

// Lint reports structural problems of a declaration set. types may be nil;
// when given, references may point at types registered in code.
func Lint(entities []*Entity, types *entity.Types) []Issue {
	var issues []Issue
	add := func(e *Entity, f, code, format string, args ...any) {
		issues = append(issues, Issue{Entity: e.FQN(), Field: f, Code: code, Message: fmt.Sprintf(format, args...)})
	}
	r := newResolver(types, entities)

	entityIDs := map[int64]string{}
	names := map[string]bool{}
	fieldIDs := map[int64]Field{}
	for _, e := range entities {
		if names[e.FQN()] {
			add(e, "", "entity_name_duplicate", "entity declared twice (%s)", e.Source)
		}
		names[e.FQN()] = true

		id := e.ID()
		switch {
		case id <= 0:
			add(e, "", "entity_id_missing", "entity needs a positive id= option")
		case entityIDs[id] != "":
			add(e, "", "entity_id_duplicate", "id %d already used by %s", id, entityIDs[id])
		default:
			entityIDs[id] = e.FQN()
			if types != nil {
				if d, ok := types.Lookup(id); ok && d.Name != e.Name {
					add(e, "", "entity_id_duplicate", "id %d is registered as %s", id, d.Name)
				}
			}
		}
		if ext := e.Extends(); ext != "" {
			if _, ok := r.target(e, ext); !ok {
				add(e, "", "extends_unknown", "unknown parent %q", ext)
			} else if cyclic(r, e) {
				add(e, "", "extends_cycle", "inheritance cycle through %q", ext)
			}
		}

		own := map[int64]bool{}
		for _, f := range e.Fields {
			t, ok := FieldType(f)
			if !ok {
				add(e, f.Name, "type_unknown", "unknown type %q", typeLabel(f))
			}
			fid := f.ID()
			if fid <= 0 {
				add(e, f.Name, "field_id_missing", "field needs a positive id= option")
				continue
			}
			if own[fid] {
				add(e, f.Name, "field_id_duplicate", "id %d used twice in the entity", fid)
			}
			own[fid] = true
			if prev, seen := fieldIDs[fid]; seen {
				pt, _ := FieldType(prev)
				if prev.Name != f.Name || pt != t {
					add(e, f.Name, "field_id_conflict", "id %d is declared as %s %s elsewhere", fid, prev.Name, typeLabel(prev))
				}
			} else {
				fieldIDs[fid] = f
			}
			if (t == field.TypeEnum || t == field.TypeEnumCollection) && len(f.Enum) == 0 && !catalogued(types, fid) {
				add(e, f.Name, "enum_empty", "enum declares no values")
			}
			if t == field.TypeEntity || t == field.TypeEntityCollection {
				if f.RefTarget == "" {
					add(e, f.Name, "ref_target_empty", "ref field has no target")
				} else if _, ok := r.target(e, f.RefTarget); !ok {
					add(e, f.Name, "ref_target_unknown", "unknown target %q", f.RefTarget)
				}
			}
		}
	}
	return issues
}

func typeLabel(f Field) string {
	if f.Type == "array" {
		return "array[" + f.ElemType + "]"
	}
	return f.Type
}

func cyclic(r *resolver, start *Entity) bool {
	seen := map[*Entity]bool{start: true}
	for cur := start; cur.Extends() != ""; {
		next := r.declared(cur, cur.Extends())
		if next == nil {
			return false
		}
		if seen[next] {
			return true
		}
		seen[next] = true
		cur = next
	}
	return false
}

// catalogued reports whether an enum catalog already bound values for id.
func catalogued(types *entity.Types, id int64) bool {
	if types == nil {
		return false
	}
	_, ok := types.Fields().Enum(id)
	return ok
}
