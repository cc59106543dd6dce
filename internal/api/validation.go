package api

import (
	"fmt"

	"jds/internal/embedded"
	"jds/internal/entity"
	"jds/internal/field"
)

type FieldError struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

const (
	ErrUnknownEntity = "unknown_entity"
	ErrUnknownField  = "unknown_field"
	ErrTypeMismatch  = "type_mismatch"
	ErrDuplicate     = "duplicate_value"
	ErrNotNested     = "not_nested"
)

func ferr(code, path, msg string) FieldError {
	return FieldError{Code: code, Field: path, Message: msg}
}

// listKinds lists the field kinds each typed list of an embedded object may
// carry.
var listKinds = map[string][]field.Type{
	"b":   {field.TypeBoolean},
	"i":   {field.TypeInt, field.TypeIntCollection, field.TypeEnum, field.TypeEnumCollection},
	"l":   {field.TypeLong, field.TypeLongCollection, field.TypeTime, field.TypeDuration},
	"f":   {field.TypeFloat, field.TypeFloatCollection},
	"d":   {field.TypeDouble, field.TypeDoubleCollection},
	"s":   {field.TypeString, field.TypeStringCollection, field.TypePeriod, field.TypeYearMonth, field.TypeMonthDay},
	"ldt": {field.TypeDate, field.TypeDateTime, field.TypeZonedDateTime, field.TypeDateTimeCollection},
	"bl":  {field.TypeBlob},
}

func keysOf[T any](vs []embedded.Value[T]) []int64 {
	out := make([]int64, len(vs))
	for i, v := range vs {
		out[i] = v.K
	}
	return out
}

// ValidateObject checks that o names a registered type and that every value
// and child sits under a field of that type with a matching kind. path
// prefixes the reported field names.
func ValidateObject(types *entity.Types, o embedded.Object, path string) []FieldError {
	p, err := types.New(o.Overview.EntityID)
	if err != nil {
		return []FieldError{ferr(ErrUnknownEntity, path+".o.entityId", fmt.Sprintf("entity %d is not registered", o.Overview.EntityID))}
	}
	e := p.Base()

	var errs []FieldError
	seen := map[int64]bool{}
	check := func(list string, ids []int64) {
		for _, id := range ids {
			at := fmt.Sprintf("%s.%s[%d]", path, list, id)
			f, ok := e.FieldOf(id)
			if !ok {
				errs = append(errs, ferr(ErrUnknownField, at, fmt.Sprintf("field %d is not bound on entity %d", id, o.Overview.EntityID)))
				continue
			}
			if !typeIn(f.Type, listKinds[list]) {
				errs = append(errs, ferr(ErrTypeMismatch, at, fmt.Sprintf("field %s is %s and cannot be carried in %q", f.Name, f.Type, list)))
				continue
			}
			if !f.Type.Collection() && seen[id] {
				errs = append(errs, ferr(ErrDuplicate, at, fmt.Sprintf("field %s holds a single value", f.Name)))
			}
			seen[id] = true
		}
	}
	check("b", keysOf(o.B))
	check("i", keysOf(o.I))
	check("l", keysOf(o.L))
	check("f", keysOf(o.F))
	check("d", keysOf(o.D))
	check("s", keysOf(o.S))
	check("ldt", keysOf(o.LDT))
	check("bl", keysOf(o.BL))

	for i, c := range o.EO {
		at := fmt.Sprintf("%s.eo[%d]", path, i)
		f, ok := e.FieldOf(c.K)
		if !ok {
			errs = append(errs, ferr(ErrUnknownField, at, fmt.Sprintf("field %d is not bound on entity %d", c.K, o.Overview.EntityID)))
			continue
		}
		if f.Type != field.TypeEntity && f.Type != field.TypeEntityCollection {
			errs = append(errs, ferr(ErrNotNested, at, fmt.Sprintf("field %s is %s, not an entity field", f.Name, f.Type)))
			continue
		}
		if f.Type == field.TypeEntity && seen[c.K] {
			errs = append(errs, ferr(ErrDuplicate, at, fmt.Sprintf("field %s holds a single entity", f.Name)))
		}
		seen[c.K] = true
		errs = append(errs, ValidateObject(types, c.O, at)...)
	}
	return errs
}

func typeIn(t field.Type, kinds []field.Type) bool {
	for _, k := range kinds {
		if k == t {
			return true
		}
	}
	return false
}
