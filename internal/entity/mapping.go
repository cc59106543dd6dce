package entity

import (
	"time"

	"github.com/pkg/errors"

	"jds/internal/field"
	"jds/internal/temporal"
)

func (e *Entity) bind(f field.Field, want field.Type, ptr any) error {
	if e.bindings == nil {
		return e.fail(errors.Errorf("entity not initialised before binding field %d", f.ID))
	}
	if f.Type != want {
		return e.fail(errors.Wrapf(field.ErrIncorrectFieldType, "field %d (%s) is %s, bound as %s", f.ID, f.Name, f.Type, want))
	}
	if old, ok := e.bindings[f.ID]; ok && old.kind() != want {
		return e.fail(errors.Wrapf(field.ErrConflictingBinding, "field %d already bound as %s", f.ID, old.kind()))
	}
	if _, err := e.types.Fields().Bind(f); err != nil {
		return e.fail(err)
	}
	e.types.Fields().MapField(e.Overview.EntityID, f.ID)
	e.put(&binding{field: f, ptr: ptr})
	return nil
}

func (e *Entity) put(b *binding) {
	if _, ok := e.bindings[b.field.ID]; !ok {
		e.order = append(e.order, b.field.ID)
	}
	e.bindings[b.field.ID] = b
}

func (e *Entity) MapBool(f field.Field, p *bool) error { return e.bind(f, field.TypeBoolean, p) }

func (e *Entity) MapInt(f field.Field, p *int32) error { return e.bind(f, field.TypeInt, p) }

func (e *Entity) MapLong(f field.Field, p *int64) error { return e.bind(f, field.TypeLong, p) }

func (e *Entity) MapFloat(f field.Field, p *float32) error { return e.bind(f, field.TypeFloat, p) }

func (e *Entity) MapDouble(f field.Field, p *float64) error { return e.bind(f, field.TypeDouble, p) }

func (e *Entity) MapString(f field.Field, p *string) error { return e.bind(f, field.TypeString, p) }

func (e *Entity) MapDate(f field.Field, p *time.Time) error { return e.bind(f, field.TypeDate, p) }

func (e *Entity) MapDateTime(f field.Field, p *time.Time) error {
	return e.bind(f, field.TypeDateTime, p)
}

func (e *Entity) MapZonedDateTime(f field.Field, p *time.Time) error {
	return e.bind(f, field.TypeZonedDateTime, p)
}

func (e *Entity) MapTime(f field.Field, p *temporal.TimeOfDay) error {
	return e.bind(f, field.TypeTime, p)
}

func (e *Entity) MapDuration(f field.Field, p *time.Duration) error {
	return e.bind(f, field.TypeDuration, p)
}

func (e *Entity) MapPeriod(f field.Field, p *temporal.Period) error {
	return e.bind(f, field.TypePeriod, p)
}

func (e *Entity) MapYearMonth(f field.Field, p *temporal.YearMonth) error {
	return e.bind(f, field.TypeYearMonth, p)
}

func (e *Entity) MapMonthDay(f field.Field, p *temporal.MonthDay) error {
	return e.bind(f, field.TypeMonthDay, p)
}

func (e *Entity) MapBlob(f field.Field, p *[]byte) error { return e.bind(f, field.TypeBlob, p) }

func (e *Entity) MapStrings(f field.Field, p *[]string) error {
	return e.bind(f, field.TypeStringCollection, p)
}

func (e *Entity) MapDateTimes(f field.Field, p *[]time.Time) error {
	return e.bind(f, field.TypeDateTimeCollection, p)
}

func (e *Entity) MapFloats(f field.Field, p *[]float32) error {
	return e.bind(f, field.TypeFloatCollection, p)
}

func (e *Entity) MapDoubles(f field.Field, p *[]float64) error {
	return e.bind(f, field.TypeDoubleCollection, p)
}

func (e *Entity) MapInts(f field.Field, p *[]int32) error {
	return e.bind(f, field.TypeIntCollection, p)
}

func (e *Entity) MapLongs(f field.Field, p *[]int64) error {
	return e.bind(f, field.TypeLongCollection, p)
}

// MapEnum binds a single enum held as an ordinal; -1 means unset.
func (e *Entity) MapEnum(fe field.Enum, p *int) error {
	return e.bindEnum(fe, field.TypeEnum, p)
}

// MapEnums binds an enum collection held as ordinals.
func (e *Entity) MapEnums(fe field.Enum, p *[]int) error {
	return e.bindEnum(fe, field.TypeEnumCollection, p)
}

func (e *Entity) bindEnum(fe field.Enum, want field.Type, ptr any) error {
	if fe.Field.Type != want {
		return e.fail(errors.Wrapf(field.ErrIncorrectFieldType, "enum %d (%s) is %s, bound as %s", fe.Field.ID, fe.Field.Name, fe.Field.Type, want))
	}
	if _, err := e.types.Fields().BindEnum(fe); err != nil {
		return e.fail(err)
	}
	if err := e.bind(fe.Field, want, ptr); err != nil {
		return err
	}
	e.types.Fields().MapEnum(e.Overview.EntityID, fe.Field.ID)
	return nil
}

func (e *Entity) bindNested(fe field.Entity, want field.Type, slot *nestedSlot) error {
	if e.bindings == nil {
		return e.fail(errors.Errorf("entity not initialised before binding field %d", fe.Field.ID))
	}
	if fe.Field.Type != want {
		return e.fail(errors.Wrapf(field.ErrIncorrectFieldType, "field %d (%s) is %s, bound as %s", fe.Field.ID, fe.Field.Name, fe.Field.Type, want))
	}
	if old, ok := e.bindings[fe.Field.ID]; ok {
		if old.nested != nil {
			return e.fail(errors.Wrapf(field.ErrAlreadyBound, "field %d", fe.Field.ID))
		}
		return e.fail(errors.Wrapf(field.ErrConflictingBinding, "field %d already bound as %s", fe.Field.ID, old.kind()))
	}
	if _, err := e.types.Fields().Bind(fe.Field); err != nil {
		return e.fail(err)
	}
	e.types.Fields().MapField(e.Overview.EntityID, fe.Field.ID)
	slot.entityID = fe.EntityID
	e.put(&binding{field: fe.Field, nested: slot})
	return nil
}

// MapEntity binds a single nested entity slot.
func MapEntity[T Persistable](e *Entity, fe field.Entity, slot *T) error {
	return e.bindNested(fe, field.TypeEntity, &nestedSlot{
		get: func() []Persistable {
			if isNil(*slot) {
				return nil
			}
			return []Persistable{*slot}
		},
		set: func(p Persistable) error {
			v, ok := p.(T)
			if !ok {
				return errors.Errorf("field %d: cannot hold %T", fe.Field.ID, p)
			}
			*slot = v
			return nil
		},
		clear: func() {
			var zero T
			*slot = zero
		},
	})
}

// MapEntities binds a nested entity collection slot.
func MapEntities[T Persistable](e *Entity, fe field.Entity, slot *[]T) error {
	return e.bindNested(fe, field.TypeEntityCollection, &nestedSlot{
		collection: true,
		get: func() []Persistable {
			out := make([]Persistable, 0, len(*slot))
			for _, v := range *slot {
				if !isNil(v) {
					out = append(out, v)
				}
			}
			return out
		},
		set: func(p Persistable) error {
			v, ok := p.(T)
			if !ok {
				return errors.Errorf("field %d: cannot hold %T", fe.Field.ID, p)
			}
			*slot = append(*slot, v)
			return nil
		},
		clear: func() { *slot = nil },
	})
}
