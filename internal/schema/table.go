// Package schema creates and additively migrates the store tables and the
// report tables. Tables are never dropped and columns are never removed.
package schema

import (
	"fmt"
	"strings"

	"jds/internal/dialect"
	"jds/internal/field"
)

// Column is one column of a table. Max bounds strings and blobs.
type Column struct {
	Name    string
	Type    field.Type
	Max     int
	NotNull bool
}

func (c Column) Def(d *dialect.Dialect) string {
	def := c.Name + " " + d.DataType(c.Type, c.Max)
	if c.NotNull {
		def += " NOT NULL"
	}
	return def
}

type Index struct {
	Name    string
	Columns []string
}

// TableDef is everything the synchronizer needs to create or extend a table.
type TableDef struct {
	Name       string
	Columns    []Column
	PrimaryKey []string
	Indexes    []Index
}

// CreateSQL renders the CREATE TABLE statement for d.
func (t TableDef) CreateSQL(d *dialect.Dialect) string {
	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		defs[i] = c.Def(d)
	}
	return d.CreateTable(t.Name, defs, t.PrimaryKey...)
}

// IndexSQL renders one statement per declared index.
func (t TableDef) IndexSQL(d *dialect.Dialect) []string {
	out := make([]string, 0, len(t.Indexes))
	for _, ix := range t.Indexes {
		out = append(out, d.CreateIndex(t.Name, ix.Name, ix.Columns...))
	}
	return out
}

func (t TableDef) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

var reserved = map[string]struct{}{
	"user": {}, "select": {}, "table": {}, "insert": {}, "update": {}, "delete": {},
	"where": {}, "join": {}, "group": {}, "order": {}, "limit": {}, "offset": {},
	"primary": {}, "foreign": {}, "key": {}, "constraint": {}, "default": {},
	"from": {}, "into": {}, "values": {}, "unique": {}, "index": {}, "create": {},
	"drop": {}, "alter": {}, "schema": {}, "grant": {}, "revoke": {}, "size": {},
	"level": {}, "number": {}, "date": {}, "comment": {}, "check": {}, "column": {},
}

func isReserved(s string) bool { _, ok := reserved[strings.ToLower(s)]; return ok }

// Ident turns an arbitrary name into a lowercase identifier that is safe
// unquoted on every dialect. Reserved words and names starting with a
// digit get a prefix.
func Ident(name string) string {
	var b strings.Builder
	last := byte('_')
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'A' && c <= 'Z':
			c += 'a' - 'A'
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		default:
			c = '_'
		}
		if c == '_' && last == '_' {
			continue
		}
		b.WriteByte(c)
		last = c
	}
	s := strings.TrimRight(b.String(), "_")
	if s == "" {
		return "f_"
	}
	if isReserved(s) || (s[0] >= '0' && s[0] <= '9') {
		s = "f_" + s
	}
	return s
}

func indexName(table string, cols ...string) string {
	return fmt.Sprintf("%s_%s_ix", table, strings.Join(cols, "_"))
}
