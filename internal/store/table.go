// Package store describes the fixed-shape store tables and the in-memory
// batches a save unit accumulates before writing them.
package store

import (
	"jds/internal/field"
)

// Table is the unprefixed name of a store table.
type Table string

const (
	Boolean       Table = "str_boolean"
	Integer       Table = "str_integer"
	Long          Table = "str_long"
	Float         Table = "str_float"
	Double        Table = "str_double"
	Text          Table = "str_text"
	Date          Table = "str_date"
	Time          Table = "str_time"
	DateTime      Table = "str_date_time"
	ZonedDateTime Table = "str_zoned_date_time"
	Duration      Table = "str_duration"
	Period        Table = "str_period"
	YearMonth     Table = "str_year_month"
	MonthDay      Table = "str_month_day"
	Blob          Table = "str_blob"
	Enum          Table = "str_enum"

	EnumCollection     Table = "str_enum_col"
	TextCollection     Table = "str_text_col"
	DateTimeCollection Table = "str_date_time_col"
	FloatCollection    Table = "str_float_col"
	DoubleCollection   Table = "str_double_col"
	IntegerCollection  Table = "str_integer_col"
	LongCollection     Table = "str_long_col"

	Overview Table = "entity_overview"
	Binding  Table = "entity_binding"
)

var tableTypes = []struct {
	table Table
	typ   field.Type
}{
	{Boolean, field.TypeBoolean},
	{Integer, field.TypeInt},
	{Long, field.TypeLong},
	{Float, field.TypeFloat},
	{Double, field.TypeDouble},
	{Text, field.TypeString},
	{Date, field.TypeDate},
	{Time, field.TypeTime},
	{DateTime, field.TypeDateTime},
	{ZonedDateTime, field.TypeZonedDateTime},
	{Duration, field.TypeDuration},
	{Period, field.TypePeriod},
	{YearMonth, field.TypeYearMonth},
	{MonthDay, field.TypeMonthDay},
	{Blob, field.TypeBlob},
	{Enum, field.TypeEnum},
	{EnumCollection, field.TypeEnumCollection},
	{TextCollection, field.TypeStringCollection},
	{DateTimeCollection, field.TypeDateTimeCollection},
	{FloatCollection, field.TypeFloatCollection},
	{DoubleCollection, field.TypeDoubleCollection},
	{IntegerCollection, field.TypeIntCollection},
	{LongCollection, field.TypeLongCollection},
}

// TableFor returns the store table holding values of type t.
// Entity kinds live in the binding table and report false.
func TableFor(t field.Type) (Table, bool) {
	for _, tt := range tableTypes {
		if tt.typ == t {
			return tt.table, true
		}
	}
	return "", false
}

// ValueTables lists every per-category table in a stable order.
func ValueTables() []Table {
	out := make([]Table, 0, len(tableTypes))
	for _, tt := range tableTypes {
		out = append(out, tt.table)
	}
	return out
}

// Type is the field type whose values the table holds.
func (t Table) Type() field.Type {
	for _, tt := range tableTypes {
		if tt.table == t {
			return tt.typ
		}
	}
	return field.TypeUnknown
}

// Collection reports whether rows carry a seq column.
func (t Table) Collection() bool {
	return t.Type().Collection()
}

func (t Table) Name(prefix string) string {
	return prefix + string(t)
}
