// Package embedded is the tree-shaped export of an entity graph: typed
// value lists per category plus nested containers, independent of any
// database.
package embedded

import "time"

// Value is one (field id, value) record.
type Value[T any] struct {
	K int64 `json:"k"`
	V T     `json:"v"`
}

type Overview struct {
	EntityID      int64  `json:"entityId"`
	EntityVersion int    `json:"entityVersion"`
	UUID          string `json:"uuid"`
	EditVersion   int    `json:"editVersion"`
	ParentUUID    string `json:"parentUuid,omitempty"`
	Live          bool   `json:"live"`
}

// Child is a nested container under field K.
type Child struct {
	K int64  `json:"k"`
	O Object `json:"o"`
}

// Object is one entity. Collections repeat their field id once per element.
// I carries integers and enum ordinals. S carries strings and the text form
// of periods, year-months and month-days. L carries longs plus durations and
// times of day as nanoseconds. LDT carries every date and date-time.
type Object struct {
	Overview Overview          `json:"o"`
	B        []Value[bool]      `json:"b,omitempty"`
	S        []Value[string]    `json:"s,omitempty"`
	F        []Value[float32]   `json:"f,omitempty"`
	D        []Value[float64]   `json:"d,omitempty"`
	L        []Value[int64]     `json:"l,omitempty"`
	I        []Value[int32]     `json:"i,omitempty"`
	LDT      []Value[time.Time] `json:"ldt,omitempty"`
	BL       []Value[[]byte]    `json:"bl,omitempty"`
	EO       []Child            `json:"eo,omitempty"`
}

// Count returns the number of objects in the tree rooted at o.
func (o Object) Count() int {
	n := 1
	for _, c := range o.EO {
		n += c.O.Count()
	}
	return n
}
