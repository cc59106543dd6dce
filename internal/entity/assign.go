package entity

import (
	"time"

	"jds/internal/field"
	"jds/internal/store"
	"jds/internal/temporal"
)

// Assign flattens e into step of b. Children get their parent linkage
// stamped here; they are flattened by their own Assign call.
func (e *Entity) Assign(b *store.Batch, step int) {
	s := b.Step(step)
	key := e.Overview.Key()
	parent, _ := store.ParseKey(e.Overview.ParentCompositeKey)
	s.PutOverview(store.OverviewRow{
		Key:           key,
		EntityID:      e.Overview.EntityID,
		EntityVersion: e.Overview.EntityVersion,
		Live:          e.Overview.Live,
		Parent:        parent,
	})
	for _, id := range e.order {
		bd := e.bindings[id]
		if bd.nested != nil {
			children := bd.nested.get()
			keys := make([]store.Key, 0, len(children))
			for _, c := range children {
				e.adopt(c.Base())
				keys = append(keys, c.Base().Overview.Key())
			}
			s.PutBindings(key, id, keys)
			continue
		}
		table, ok := store.TableFor(bd.kind())
		if !ok {
			continue
		}
		if bd.kind().Collection() {
			s.PutCollection(table, key, id, collectionValues(bd))
			continue
		}
		s.PutValue(table, key, id, scalarValue(bd))
	}
}

func (e *Entity) adopt(child *Entity) {
	child.Overview.ParentUUID = e.Overview.UUID
	child.Overview.ParentCompositeKey = e.Overview.CompositeKey()
	root := e.Overview.RootKey()
	child.Overview.Location = root.UUID
	child.Overview.LocationVersion = root.EditVersion
}

func nilIfZero(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

// scalarValue is the wire representation of a single-valued binding.
func scalarValue(bd *binding) any {
	switch p := bd.ptr.(type) {
	case *bool:
		return *p
	case *int32:
		return int64(*p)
	case *int64:
		return *p
	case *float32:
		return float64(*p)
	case *float64:
		return *p
	case *string:
		return *p
	case *time.Time:
		return nilIfZero(*p)
	case *temporal.TimeOfDay:
		return p.Nanos()
	case *time.Duration:
		return int64(*p)
	case *temporal.Period:
		return p.String()
	case *temporal.YearMonth:
		if p.IsZero() {
			return nil
		}
		return p.String()
	case *temporal.MonthDay:
		if p.IsZero() {
			return nil
		}
		return p.String()
	case *[]byte:
		if *p == nil {
			return []byte{}
		}
		return append([]byte(nil), *p...)
	case *int:
		if *p < 0 {
			return nil
		}
		return int64(*p)
	}
	return nil
}

func collectionValues(bd *binding) []any {
	var out []any
	switch p := bd.ptr.(type) {
	case *[]string:
		for _, v := range *p {
			out = append(out, v)
		}
	case *[]time.Time:
		for _, v := range *p {
			out = append(out, nilIfZero(v))
		}
	case *[]float32:
		for _, v := range *p {
			out = append(out, float64(v))
		}
	case *[]float64:
		for _, v := range *p {
			out = append(out, v)
		}
	case *[]int32:
		for _, v := range *p {
			out = append(out, int64(v))
		}
	case *[]int64:
		for _, v := range *p {
			out = append(out, v)
		}
	case *[]int:
		for _, v := range *p {
			out = append(out, int64(v))
		}
	}
	return out
}

// AtomicValue returns the single value of fieldID for a report column.
// For enum collections it reports whether ordinal is present.
func (e *Entity) AtomicValue(fieldID int64, ordinal int) any {
	bd, ok := e.bindings[fieldID]
	if !ok {
		return nil
	}
	switch bd.kind() {
	case field.TypeEntity:
		children := bd.nested.get()
		if len(children) == 0 {
			return nil
		}
		return children[0].Base().Overview.UUID
	case field.TypeEnumCollection:
		for _, o := range *bd.ptr.(*[]int) {
			if o == ordinal {
				return true
			}
		}
		return false
	case field.TypeBlob:
		return nil
	}
	if bd.kind().Collection() {
		return nil
	}
	return scalarValue(bd)
}
