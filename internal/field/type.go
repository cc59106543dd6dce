package field

import (
	"strings"

	"github.com/pkg/errors"
)

// Type is the value kind of a persisted field.
type Type int

const (
	TypeUnknown Type = iota
	TypeBoolean
	TypeInt
	TypeLong
	TypeFloat
	TypeDouble
	TypeString
	TypeDate
	TypeTime
	TypeDateTime
	TypeZonedDateTime
	TypeDuration
	TypePeriod
	TypeYearMonth
	TypeMonthDay
	TypeBlob
	TypeEnum
	TypeEntity
	TypeEnumCollection
	TypeEntityCollection
	TypeStringCollection
	TypeDateTimeCollection
	TypeFloatCollection
	TypeDoubleCollection
	TypeIntCollection
	TypeLongCollection
)

var typeNames = map[Type]string{
	TypeBoolean:            "boolean",
	TypeInt:                "int",
	TypeLong:               "long",
	TypeFloat:              "float",
	TypeDouble:             "double",
	TypeString:             "string",
	TypeDate:               "date",
	TypeTime:               "time",
	TypeDateTime:           "date_time",
	TypeZonedDateTime:      "zoned_date_time",
	TypeDuration:           "duration",
	TypePeriod:             "period",
	TypeYearMonth:          "year_month",
	TypeMonthDay:           "month_day",
	TypeBlob:               "blob",
	TypeEnum:               "enum",
	TypeEntity:             "entity",
	TypeEnumCollection:     "enum_collection",
	TypeEntityCollection:   "entity_collection",
	TypeStringCollection:   "string_collection",
	TypeDateTimeCollection: "date_time_collection",
	TypeFloatCollection:    "float_collection",
	TypeDoubleCollection:   "double_collection",
	TypeIntCollection:      "int_collection",
	TypeLongCollection:     "long_collection",
}

// aliases accepted by ParseType in addition to canonical names
var typeAliases = map[string]Type{
	"bool":          TypeBoolean,
	"integer":       TypeInt,
	"text":          TypeString,
	"datetime":      TypeDateTime,
	"zoned":         TypeZonedDateTime,
	"zoneddatetime": TypeZonedDateTime,
	"yearmonth":     TypeYearMonth,
	"monthday":      TypeMonthDay,
	"bytes":         TypeBlob,
}

func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return "unknown"
}

// ParseType resolves a canonical name or alias, case-insensitively.
func ParseType(name string) (Type, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for t, tn := range typeNames {
		if tn == n {
			return t, nil
		}
	}
	if t, ok := typeAliases[n]; ok {
		return t, nil
	}
	return TypeUnknown, errors.Errorf("unknown field type %q", name)
}

// AllTypes lists every known kind in declaration order.
func AllTypes() []Type {
	out := make([]Type, 0, len(typeNames))
	for t := TypeBoolean; t <= TypeLongCollection; t++ {
		out = append(out, t)
	}
	return out
}

func (t Type) Collection() bool {
	return t >= TypeEnumCollection
}

func (t Type) Temporal() bool {
	switch t {
	case TypeDate, TypeTime, TypeDateTime, TypeZonedDateTime,
		TypeDuration, TypePeriod, TypeYearMonth, TypeMonthDay:
		return true
	}
	return false
}

// Element returns the element kind of a primitive collection.
func (t Type) Element() Type {
	switch t {
	case TypeEnumCollection:
		return TypeEnum
	case TypeEntityCollection:
		return TypeEntity
	case TypeStringCollection:
		return TypeString
	case TypeDateTimeCollection:
		return TypeDateTime
	case TypeFloatCollection:
		return TypeFloat
	case TypeDoubleCollection:
		return TypeDouble
	case TypeIntCollection:
		return TypeInt
	case TypeLongCollection:
		return TypeLong
	}
	return t
}

// MarshalYAML keeps snapshots readable.
func (t Type) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}

func (t *Type) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	v, err := ParseType(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Type) UnmarshalText(b []byte) error {
	v, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
