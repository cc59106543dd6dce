package dsl

import (
	"strconv"
	"strings"
)

// Entity is one `entity` block of a .dsl file.
type Entity struct {
	Module  string
	Name    string
	Options map[string]string
	Fields  []Field
	// Source is file:line of the declaration.
	Source string
}

// Field is one attribute line inside an entity block.
type Field struct {
	Name      string
	Type      string // primitive name, enum, ref or array
	ElemType  string // element of an array
	Enum      []string
	RefTarget string
	Options   map[string]string
	Line      int
}

// FQN is module.Name, or Name outside a module.
func (e *Entity) FQN() string {
	if e.Module == "" {
		return e.Name
	}
	return e.Module + "." + e.Name
}

func (e *Entity) ID() int64 { return optInt(e.Options, "id") }

func (e *Entity) Version() int {
	if v := optInt(e.Options, "version"); v > 0 {
		return int(v)
	}
	return 1
}

func (e *Entity) Extends() string { return e.Options["extends"] }

func (f Field) ID() int64 { return optInt(f.Options, "id") }

func (f Field) Tags() []string {
	raw := f.Options["tags"]
	if raw == "" {
		return nil
	}
	var out []string
	for _, t := range strings.Split(raw, "|") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func optInt(opts map[string]string, key string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(opts[key]), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
