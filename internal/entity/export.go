package entity

import (
	"time"

	"github.com/pkg/errors"

	"jds/internal/embedded"
	"jds/internal/temporal"
)

// Export produces the embedded form of e and its nested entities.
func (e *Entity) Export() embedded.Object {
	o := embedded.Object{Overview: embedded.Overview{
		EntityID:      e.Overview.EntityID,
		EntityVersion: e.Overview.EntityVersion,
		UUID:          e.Overview.UUID,
		EditVersion:   e.Overview.EditVersion,
		ParentUUID:    e.Overview.ParentUUID,
		Live:          e.Overview.Live,
	}}
	for _, id := range e.order {
		bd := e.bindings[id]
		if bd.nested != nil {
			for _, c := range bd.nested.get() {
				o.EO = append(o.EO, embedded.Child{K: id, O: c.Base().Export()})
			}
			continue
		}
		switch p := bd.ptr.(type) {
		case *bool:
			o.B = append(o.B, embedded.Value[bool]{K: id, V: *p})
		case *int32:
			o.I = append(o.I, embedded.Value[int32]{K: id, V: *p})
		case *int64:
			o.L = append(o.L, embedded.Value[int64]{K: id, V: *p})
		case *float32:
			o.F = append(o.F, embedded.Value[float32]{K: id, V: *p})
		case *float64:
			o.D = append(o.D, embedded.Value[float64]{K: id, V: *p})
		case *string:
			o.S = append(o.S, embedded.Value[string]{K: id, V: *p})
		case *time.Time:
			if !p.IsZero() {
				o.LDT = append(o.LDT, embedded.Value[time.Time]{K: id, V: *p})
			}
		case *temporal.TimeOfDay:
			o.L = append(o.L, embedded.Value[int64]{K: id, V: p.Nanos()})
		case *time.Duration:
			o.L = append(o.L, embedded.Value[int64]{K: id, V: int64(*p)})
		case *temporal.Period:
			o.S = append(o.S, embedded.Value[string]{K: id, V: p.String()})
		case *temporal.YearMonth:
			if !p.IsZero() {
				o.S = append(o.S, embedded.Value[string]{K: id, V: p.String()})
			}
		case *temporal.MonthDay:
			if !p.IsZero() {
				o.S = append(o.S, embedded.Value[string]{K: id, V: p.String()})
			}
		case *[]byte:
			o.BL = append(o.BL, embedded.Value[[]byte]{K: id, V: cloneSlice(*p)})
		case *int:
			if *p >= 0 {
				o.I = append(o.I, embedded.Value[int32]{K: id, V: int32(*p)})
			}
		case *[]int:
			for _, v := range *p {
				o.I = append(o.I, embedded.Value[int32]{K: id, V: int32(v)})
			}
		case *[]int32:
			for _, v := range *p {
				o.I = append(o.I, embedded.Value[int32]{K: id, V: v})
			}
		case *[]int64:
			for _, v := range *p {
				o.L = append(o.L, embedded.Value[int64]{K: id, V: v})
			}
		case *[]float32:
			for _, v := range *p {
				o.F = append(o.F, embedded.Value[float32]{K: id, V: v})
			}
		case *[]float64:
			for _, v := range *p {
				o.D = append(o.D, embedded.Value[float64]{K: id, V: v})
			}
		case *[]string:
			for _, v := range *p {
				o.S = append(o.S, embedded.Value[string]{K: id, V: v})
			}
		case *[]time.Time:
			for _, v := range *p {
				o.LDT = append(o.LDT, embedded.Value[time.Time]{K: id, V: v})
			}
		}
	}
	return o
}

// Import builds an entity graph from its embedded form.
func Import(types *Types, o embedded.Object) (Persistable, error) {
	p, err := types.New(o.Overview.EntityID)
	if err != nil {
		return nil, err
	}
	e := p.Base()
	e.Overview.UUID = o.Overview.UUID
	if e.Overview.UUID == "" {
		e.Overview.UUID = NewUUID()
	}
	e.Overview.EditVersion = o.Overview.EditVersion
	e.Overview.Live = o.Overview.Live
	if err := e.importValues(o); err != nil {
		return nil, err
	}
	return p, nil
}

func (e *Entity) importValues(o embedded.Object) error {
	put := func(id int64, v any) error {
		f, ok := e.FieldOf(id)
		if !ok {
			return nil
		}
		return e.PopulateProperty(f.Type, id, v)
	}
	for _, v := range o.B {
		if err := put(v.K, v.V); err != nil {
			return err
		}
	}
	for _, v := range o.S {
		if err := put(v.K, v.V); err != nil {
			return err
		}
	}
	for _, v := range o.F {
		if err := put(v.K, v.V); err != nil {
			return err
		}
	}
	for _, v := range o.D {
		if err := put(v.K, v.V); err != nil {
			return err
		}
	}
	for _, v := range o.L {
		if err := put(v.K, v.V); err != nil {
			return err
		}
	}
	for _, v := range o.I {
		if err := put(v.K, v.V); err != nil {
			return err
		}
	}
	for _, v := range o.LDT {
		if err := put(v.K, v.V); err != nil {
			return err
		}
	}
	for _, v := range o.BL {
		if err := put(v.K, v.V); err != nil {
			return err
		}
	}
	for _, c := range o.EO {
		ov := Overview{
			EntityVersion: c.O.Overview.EntityVersion,
			UUID:          c.O.Overview.UUID,
			EditVersion:   c.O.Overview.EditVersion,
			Live:          c.O.Overview.Live,
		}
		if ov.UUID == "" {
			ov.UUID = NewUUID()
		}
		child, err := e.PopulateNestedEntity(c.K, c.O.Overview.EntityID, ov)
		if err != nil {
			return errors.Wrapf(err, "import child of field %d", c.K)
		}
		if err := child.Base().importValues(c.O); err != nil {
			return err
		}
	}
	return nil
}
