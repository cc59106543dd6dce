package entity

import (
	"fmt"
	"iter"
	"time"

	"github.com/pkg/errors"

	"jds/internal/field"
	"jds/internal/temporal"
)

// StandardizeIdentities rewrites the uuid of every nested entity as
// {root}.{entityId} for single slots and {root}.{entityId}.{seq} for
// collections, recursing with the child's new uuid as root.
func (e *Entity) StandardizeIdentities(root string) {
	for _, id := range e.order {
		bd := e.bindings[id]
		if bd.nested == nil {
			continue
		}
		for seq, c := range bd.nested.get() {
			cb := c.Base()
			if bd.nested.collection {
				cb.Overview.UUID = fmt.Sprintf("%s.%d.%d", root, cb.Overview.EntityID, seq)
			} else {
				cb.Overview.UUID = fmt.Sprintf("%s.%d", root, cb.Overview.EntityID)
			}
			cb.StandardizeIdentities(cb.Overview.UUID)
		}
	}
}

// AllEntities walks e and its nested entities depth-first: the entity,
// then single slots, then collection slots, each in binding order.
// Every call starts a new traversal.
func (e *Entity) AllEntities(includeSelf bool) iter.Seq[*Entity] {
	return func(yield func(*Entity) bool) {
		stack := []*Entity{e}
		first := true
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !first || includeSelf {
				if !yield(cur) {
					return
				}
			}
			first = false
			next := cur.directChildren()
			for i := len(next) - 1; i >= 0; i-- {
				stack = append(stack, next[i])
			}
		}
	}
}

func (e *Entity) directChildren() []*Entity {
	var singles, collections []*Entity
	for _, id := range e.order {
		bd := e.bindings[id]
		if bd.nested == nil {
			continue
		}
		for _, c := range bd.nested.get() {
			if bd.nested.collection {
				collections = append(collections, c.Base())
			} else {
				singles = append(singles, c.Base())
			}
		}
	}
	return append(singles, collections...)
}

// Copy copies identity and every value bound in both e and src with the
// same type. Nested entities are cloned.
func (e *Entity) Copy(src Persistable) error {
	s := src.Base()
	e.Overview.UUID = s.Overview.UUID
	e.Overview.EditVersion = s.Overview.EditVersion
	e.Overview.Live = s.Overview.Live
	e.Overview.ParentUUID = s.Overview.ParentUUID
	e.Overview.ParentCompositeKey = s.Overview.ParentCompositeKey
	e.Overview.Location = s.Overview.Location
	e.Overview.LocationVersion = s.Overview.LocationVersion
	for _, id := range s.order {
		sb := s.bindings[id]
		db, ok := e.bindings[id]
		if !ok || db.kind() != sb.kind() {
			continue
		}
		if sb.nested != nil {
			if err := e.copyNested(db, sb); err != nil {
				return err
			}
			continue
		}
		copyValue(db.ptr, sb.ptr)
	}
	return nil
}

func (e *Entity) copyNested(db, sb *binding) error {
	types := e.types
	if types == nil {
		return errors.New("copy into uninitialised entity")
	}
	db.nested.clear()
	for _, c := range sb.nested.get() {
		clone, err := types.New(c.Base().Overview.EntityID)
		if err != nil {
			return err
		}
		if err := clone.Base().Copy(c); err != nil {
			return err
		}
		if err := db.nested.set(clone); err != nil {
			return err
		}
	}
	return nil
}

func copyValue(dst, src any) {
	switch d := dst.(type) {
	case *bool:
		*d = *src.(*bool)
	case *int32:
		*d = *src.(*int32)
	case *int64:
		*d = *src.(*int64)
	case *float32:
		*d = *src.(*float32)
	case *float64:
		*d = *src.(*float64)
	case *string:
		*d = *src.(*string)
	case *time.Time:
		*d = *src.(*time.Time)
	case *temporal.TimeOfDay:
		*d = *src.(*temporal.TimeOfDay)
	case *time.Duration:
		*d = *src.(*time.Duration)
	case *temporal.Period:
		*d = *src.(*temporal.Period)
	case *temporal.YearMonth:
		*d = *src.(*temporal.YearMonth)
	case *temporal.MonthDay:
		*d = *src.(*temporal.MonthDay)
	case *int:
		*d = *src.(*int)
	case *[]byte:
		*d = cloneSlice(*src.(*[]byte))
	case *[]int:
		*d = cloneSlice(*src.(*[]int))
	case *[]string:
		*d = cloneSlice(*src.(*[]string))
	case *[]time.Time:
		*d = cloneSlice(*src.(*[]time.Time))
	case *[]float32:
		*d = cloneSlice(*src.(*[]float32))
	case *[]float64:
		*d = cloneSlice(*src.(*[]float64))
	case *[]int32:
		*d = cloneSlice(*src.(*[]int32))
	case *[]int64:
		*d = cloneSlice(*src.(*[]int64))
	}
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}

// BoundTypes reports the field types bound on e, in type order.
func (e *Entity) BoundTypes() []field.Type {
	set := make(map[field.Type]struct{}, len(e.order))
	for _, b := range e.bindings {
		set[b.kind()] = struct{}{}
	}
	out := make([]field.Type, 0, len(set))
	for _, t := range field.AllTypes() {
		if _, ok := set[t]; ok {
			out = append(out, t)
		}
	}
	return out
}
