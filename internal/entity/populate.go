package entity

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"jds/internal/field"
	"jds/internal/temporal"
)

// PopulateProperty stores a raw loaded value into the binding of fieldID.
// Collection bindings append. Unknown field ids and nil values are ignored,
// as are enum ordinals outside the enum's range.
func (e *Entity) PopulateProperty(t field.Type, fieldID int64, raw any) error {
	bd, ok := e.bindings[fieldID]
	if !ok || bd.nested != nil {
		return nil
	}
	if t != bd.kind() {
		return errors.Wrapf(field.ErrIncorrectFieldType, "field %d is %s, got %s value", fieldID, bd.kind(), t)
	}
	if raw == nil {
		if p, ok := bd.ptr.(*[]byte); ok {
			*p = []byte{}
		}
		return nil
	}
	fail := func() error {
		return errors.Errorf("field %d (%s): cannot convert %T to %s", fieldID, bd.field.Name, raw, t)
	}
	switch p := bd.ptr.(type) {
	case *bool:
		v, ok := asBool(raw)
		if !ok {
			return fail()
		}
		*p = v
	case *int32:
		v, ok := asInt64(raw)
		if !ok {
			return fail()
		}
		*p = int32(v)
	case *int64:
		v, ok := asInt64(raw)
		if !ok {
			return fail()
		}
		*p = v
	case *float32:
		v, ok := asFloat64(raw)
		if !ok {
			return fail()
		}
		*p = float32(v)
	case *float64:
		v, ok := asFloat64(raw)
		if !ok {
			return fail()
		}
		*p = v
	case *string:
		v, ok := asString(raw)
		if !ok {
			return fail()
		}
		*p = v
	case *time.Time:
		v, ok := asTime(raw, t == field.TypeZonedDateTime)
		if !ok {
			return fail()
		}
		*p = v
	case *temporal.TimeOfDay:
		v, ok := asTimeOfDay(raw)
		if !ok {
			return fail()
		}
		*p = v
	case *time.Duration:
		v, ok := asDuration(raw)
		if !ok {
			return fail()
		}
		*p = v
	case *temporal.Period:
		s, _ := asString(raw)
		v, err := temporal.ParsePeriod(s)
		if err != nil {
			return errors.Wrapf(err, "field %d", fieldID)
		}
		*p = v
	case *temporal.YearMonth:
		s, _ := asString(raw)
		v, err := temporal.ParseYearMonth(s)
		if err != nil {
			return errors.Wrapf(err, "field %d", fieldID)
		}
		*p = v
	case *temporal.MonthDay:
		s, _ := asString(raw)
		v, err := temporal.ParseMonthDay(s)
		if err != nil {
			return errors.Wrapf(err, "field %d", fieldID)
		}
		*p = v
	case *[]byte:
		switch b := raw.(type) {
		case []byte:
			*p = append([]byte(nil), b...)
		case string:
			*p = []byte(b)
		default:
			return fail()
		}
	case *int:
		if o, ok := e.ordinal(fieldID, raw); ok {
			*p = o
		} else {
			*p = -1
		}
	case *[]int:
		if o, ok := e.ordinal(fieldID, raw); ok {
			*p = append(*p, o)
		}
	case *[]string:
		v, ok := asString(raw)
		if !ok {
			return fail()
		}
		*p = append(*p, v)
	case *[]time.Time:
		v, ok := asTime(raw, false)
		if !ok {
			return fail()
		}
		*p = append(*p, v)
	case *[]float32:
		v, ok := asFloat64(raw)
		if !ok {
			return fail()
		}
		*p = append(*p, float32(v))
	case *[]float64:
		v, ok := asFloat64(raw)
		if !ok {
			return fail()
		}
		*p = append(*p, v)
	case *[]int32:
		v, ok := asInt64(raw)
		if !ok {
			return fail()
		}
		*p = append(*p, int32(v))
	case *[]int64:
		v, ok := asInt64(raw)
		if !ok {
			return fail()
		}
		*p = append(*p, v)
	default:
		return fail()
	}
	return nil
}

// ordinal resolves raw to a valid ordinal of the enum bound at fieldID.
func (e *Entity) ordinal(fieldID int64, raw any) (int, bool) {
	fe, ok := e.types.Fields().Enum(fieldID)
	if !ok {
		return -1, false
	}
	if n, ok := asInt64(raw); ok {
		if n < 0 || int(n) >= len(fe.Values) {
			return -1, false
		}
		return int(n), true
	}
	if s, ok := asString(raw); ok {
		return fe.Ordinal(s)
	}
	return -1, false
}

// PopulateNestedEntity creates an instance of entityID, stamps ov plus the
// parent linkage, and attaches it to the slot of fieldID.
func (e *Entity) PopulateNestedEntity(fieldID, entityID int64, ov Overview) (Persistable, error) {
	bd, ok := e.bindings[fieldID]
	if !ok || bd.nested == nil {
		return nil, errors.Errorf("entity %d has no nested slot for field %d", e.Overview.EntityID, fieldID)
	}
	child, err := e.types.New(entityID)
	if err != nil {
		return nil, err
	}
	cb := child.Base()
	ov.EntityID = entityID
	if ov.EntityVersion == 0 {
		ov.EntityVersion = cb.Overview.EntityVersion
	}
	cb.Overview = ov
	e.adopt(cb)
	if err := bd.nested.set(child); err != nil {
		return nil, err
	}
	return child, nil
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float32:
		return int64(math.Round(float64(n))), true
	case float64:
		return int64(math.Round(n)), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case []byte:
		return asInt64(string(n))
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(math.Round(f)), true
		}
	}
	return 0, false
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case []byte:
		return asFloat64(string(n))
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	if i, ok := asInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}

func asBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case []byte:
		return asBool(string(b))
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "1", "t", "true", "y", "yes":
			return true, true
		case "0", "f", "false", "n", "no":
			return false, true
		}
		return false, false
	}
	if i, ok := asInt64(v); ok {
		return i == 1, true
	}
	return false, false
}

func asString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	case interface{ String() string }:
		return s.String(), true
	}
	return "", false
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

func asTime(v any, epochMillis bool) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case []byte:
		return asTime(string(t), epochMillis)
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed, true
			}
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil && epochMillis {
			return time.UnixMilli(n), true
		}
		return time.Time{}, false
	}
	if n, ok := asInt64(v); ok && epochMillis {
		return time.UnixMilli(n), true
	}
	return time.Time{}, false
}

func asTimeOfDay(v any) (temporal.TimeOfDay, bool) {
	switch t := v.(type) {
	case temporal.TimeOfDay:
		return t, true
	case time.Time:
		return temporal.ClockOf(t), true
	case []byte:
		return asTimeOfDay(string(t))
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
			return temporal.TimeOfDay(n), true
		}
		tod, err := temporal.ParseTimeOfDay(t)
		return tod, err == nil
	}
	if n, ok := asInt64(v); ok {
		return temporal.TimeOfDay(n), true
	}
	return 0, false
}

func asDuration(v any) (time.Duration, bool) {
	switch d := v.(type) {
	case time.Duration:
		return d, true
	case []byte:
		return asDuration(string(d))
	case string:
		s := strings.TrimSpace(d)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Duration(n), true
		}
		if parsed, err := time.ParseDuration(s); err == nil {
			return parsed, true
		}
		if parsed, err := time.ParseDuration(strings.ToLower(strings.TrimPrefix(strings.ToUpper(s), "PT"))); err == nil {
			return parsed, true
		}
		return 0, false
	}
	if n, ok := asInt64(v); ok {
		return time.Duration(n), true
	}
	return 0, false
}
