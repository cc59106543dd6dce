package entity

import (
	"time"

	"github.com/pkg/errors"

	"jds/internal/field"
	"jds/internal/temporal"
)

// Slot declares one field of a Dynamic entity. Enum carries the values of
// enum kinds and Child the declared type of entity kinds.
type Slot struct {
	Field field.Field
	Enum  []string
	Child int64
}

// Dynamic is an entity whose holders are allocated from a slot list
// instead of struct fields.
type Dynamic struct {
	Entity
	holders map[int64]any
}

// NewDynamic allocates and binds a holder per slot. Binding errors are
// recorded on the entity and reported by Err.
func NewDynamic(types *Types, entityID int64, slots []Slot) *Dynamic {
	d := &Dynamic{holders: make(map[int64]any, len(slots))}
	d.Init(types, entityID)
	for _, s := range slots {
		d.bindSlot(s)
	}
	return d
}

func (d *Dynamic) bindSlot(s Slot) {
	f := s.Field
	switch f.Type {
	case field.TypeBoolean:
		p := new(bool)
		d.holders[f.ID] = p
		_ = d.MapBool(f, p)
	case field.TypeInt:
		p := new(int32)
		d.holders[f.ID] = p
		_ = d.MapInt(f, p)
	case field.TypeLong:
		p := new(int64)
		d.holders[f.ID] = p
		_ = d.MapLong(f, p)
	case field.TypeFloat:
		p := new(float32)
		d.holders[f.ID] = p
		_ = d.MapFloat(f, p)
	case field.TypeDouble:
		p := new(float64)
		d.holders[f.ID] = p
		_ = d.MapDouble(f, p)
	case field.TypeString:
		p := new(string)
		d.holders[f.ID] = p
		_ = d.MapString(f, p)
	case field.TypeDate:
		p := new(time.Time)
		d.holders[f.ID] = p
		_ = d.MapDate(f, p)
	case field.TypeDateTime:
		p := new(time.Time)
		d.holders[f.ID] = p
		_ = d.MapDateTime(f, p)
	case field.TypeZonedDateTime:
		p := new(time.Time)
		d.holders[f.ID] = p
		_ = d.MapZonedDateTime(f, p)
	case field.TypeTime:
		p := new(temporal.TimeOfDay)
		d.holders[f.ID] = p
		_ = d.MapTime(f, p)
	case field.TypeDuration:
		p := new(time.Duration)
		d.holders[f.ID] = p
		_ = d.MapDuration(f, p)
	case field.TypePeriod:
		p := new(temporal.Period)
		d.holders[f.ID] = p
		_ = d.MapPeriod(f, p)
	case field.TypeYearMonth:
		p := new(temporal.YearMonth)
		d.holders[f.ID] = p
		_ = d.MapYearMonth(f, p)
	case field.TypeMonthDay:
		p := new(temporal.MonthDay)
		d.holders[f.ID] = p
		_ = d.MapMonthDay(f, p)
	case field.TypeBlob:
		p := new([]byte)
		d.holders[f.ID] = p
		_ = d.MapBlob(f, p)
	case field.TypeEnum:
		p := new(int)
		*p = -1
		d.holders[f.ID] = p
		_ = d.MapEnum(field.Enum{Field: f, Values: s.Enum}, p)
	case field.TypeEnumCollection:
		p := new([]int)
		d.holders[f.ID] = p
		_ = d.MapEnums(field.Enum{Field: f, Values: s.Enum}, p)
	case field.TypeStringCollection:
		p := new([]string)
		d.holders[f.ID] = p
		_ = d.MapStrings(f, p)
	case field.TypeDateTimeCollection:
		p := new([]time.Time)
		d.holders[f.ID] = p
		_ = d.MapDateTimes(f, p)
	case field.TypeFloatCollection:
		p := new([]float32)
		d.holders[f.ID] = p
		_ = d.MapFloats(f, p)
	case field.TypeDoubleCollection:
		p := new([]float64)
		d.holders[f.ID] = p
		_ = d.MapDoubles(f, p)
	case field.TypeIntCollection:
		p := new([]int32)
		d.holders[f.ID] = p
		_ = d.MapInts(f, p)
	case field.TypeLongCollection:
		p := new([]int64)
		d.holders[f.ID] = p
		_ = d.MapLongs(f, p)
	case field.TypeEntity:
		p := new(Persistable)
		d.holders[f.ID] = p
		_ = MapEntity(&d.Entity, field.Entity{Field: f, EntityID: s.Child}, p)
	case field.TypeEntityCollection:
		p := new([]Persistable)
		d.holders[f.ID] = p
		_ = MapEntities(&d.Entity, field.Entity{Field: f, EntityID: s.Child}, p)
	default:
		d.fail(errors.Wrapf(field.ErrIncorrectFieldType, "field %d has unsupported type %s", f.ID, f.Type))
	}
}

// Get returns the current value of a field: the dereferenced holder.
func (d *Dynamic) Get(fieldID int64) (any, bool) {
	h, ok := d.holders[fieldID]
	if !ok {
		return nil, false
	}
	switch p := h.(type) {
	case *bool:
		return *p, true
	case *int32:
		return *p, true
	case *int64:
		return *p, true
	case *float32:
		return *p, true
	case *float64:
		return *p, true
	case *string:
		return *p, true
	case *time.Time:
		return *p, true
	case *temporal.TimeOfDay:
		return *p, true
	case *time.Duration:
		return *p, true
	case *temporal.Period:
		return *p, true
	case *temporal.YearMonth:
		return *p, true
	case *temporal.MonthDay:
		return *p, true
	case *[]byte:
		return *p, true
	case *int:
		return *p, true
	case *[]int:
		return *p, true
	case *[]string:
		return *p, true
	case *[]time.Time:
		return *p, true
	case *[]float32:
		return *p, true
	case *[]float64:
		return *p, true
	case *[]int32:
		return *p, true
	case *[]int64:
		return *p, true
	case *Persistable:
		return *p, true
	case *[]Persistable:
		return *p, true
	}
	return nil, false
}

// Set assigns a value with the same coercions a load applies. Slices
// replace collections; enums accept ordinals or value names.
func (d *Dynamic) Set(fieldID int64, v any) error {
	f, ok := d.FieldOf(fieldID)
	if !ok {
		return errors.Errorf("entity %d has no field %d", d.Overview.EntityID, fieldID)
	}
	switch f.Type {
	case field.TypeEntity:
		p, ok := v.(Persistable)
		if !ok && v != nil {
			return errors.Errorf("field %d wants an entity, got %T", fieldID, v)
		}
		*d.holders[fieldID].(*Persistable) = p
		return nil
	case field.TypeEntityCollection:
		ps, ok := v.([]Persistable)
		if !ok && v != nil {
			return errors.Errorf("field %d wants []Persistable, got %T", fieldID, v)
		}
		*d.holders[fieldID].(*[]Persistable) = ps
		return nil
	}
	if !f.Type.Collection() {
		return d.PopulateProperty(f.Type, fieldID, v)
	}
	d.clearCollection(fieldID)
	for _, el := range elements(v) {
		if err := d.PopulateProperty(f.Type, fieldID, el); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dynamic) clearCollection(fieldID int64) {
	switch p := d.holders[fieldID].(type) {
	case *[]int:
		*p = nil
	case *[]string:
		*p = nil
	case *[]time.Time:
		*p = nil
	case *[]float32:
		*p = nil
	case *[]float64:
		*p = nil
	case *[]int32:
		*p = nil
	case *[]int64:
		*p = nil
	}
}

func elements(v any) []any {
	switch s := v.(type) {
	case []any:
		return s
	case []string:
		return toAny(s)
	case []int:
		return toAny(s)
	case []int32:
		return toAny(s)
	case []int64:
		return toAny(s)
	case []float32:
		return toAny(s)
	case []float64:
		return toAny(s)
	case []time.Time:
		return toAny(s)
	case nil:
		return nil
	}
	return []any{v}
}

func toAny[T any](s []T) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
