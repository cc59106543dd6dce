package schema

import (
	"jds/internal/field"
	"jds/internal/store"
)

const uuidSize = 96

var (
	colID          = Column{Name: "id", Type: field.TypeString, Max: uuidSize, NotNull: true}
	colEditVersion = Column{Name: "edit_version", Type: field.TypeInt, NotNull: true}
	colFieldID     = Column{Name: "field_id", Type: field.TypeLong, NotNull: true}
	colSeq         = Column{Name: "seq", Type: field.TypeInt, NotNull: true}
)

// StoreTables returns the definitions of every value table plus the
// overview and binding tables, with prefix applied to their names.
func StoreTables(prefix string) []TableDef {
	tables := store.ValueTables()
	out := make([]TableDef, 0, len(tables)+2)
	for _, t := range tables {
		out = append(out, ValueTable(prefix, t))
	}
	return append(out, OverviewTable(prefix), BindingTable(prefix))
}

// ValueTable keys scalar tables by (id, edit_version, field_id) and adds
// seq to the key of collection tables.
func ValueTable(prefix string, t store.Table) TableDef {
	name := t.Name(prefix)
	value := Column{Name: "value", Type: t.Type()}
	cols := []Column{colID, colEditVersion, colFieldID}
	pk := []string{"id", "edit_version", "field_id"}
	if t.Collection() {
		cols = append(cols, colSeq)
		pk = append(pk, "seq")
	}
	return TableDef{
		Name:       name,
		Columns:    append(cols, value),
		PrimaryKey: pk,
		Indexes:    []Index{{Name: indexName(name, "field_id"), Columns: []string{"field_id"}}},
	}
}

func OverviewTable(prefix string) TableDef {
	name := store.Overview.Name(prefix)
	return TableDef{
		Name: name,
		Columns: []Column{
			colID,
			colEditVersion,
			{Name: "entity_id", Type: field.TypeLong, NotNull: true},
			{Name: "entity_version", Type: field.TypeInt, NotNull: true},
			{Name: "live", Type: field.TypeBoolean, NotNull: true},
			{Name: "parent_id", Type: field.TypeString, Max: uuidSize},
			{Name: "parent_edit_version", Type: field.TypeInt},
		},
		PrimaryKey: []string{"id", "edit_version"},
		Indexes: []Index{
			{Name: indexName(name, "entity_id"), Columns: []string{"entity_id"}},
			{Name: indexName(name, "parent_id"), Columns: []string{"parent_id", "parent_edit_version"}},
		},
	}
}

func BindingTable(prefix string) TableDef {
	name := store.Binding.Name(prefix)
	return TableDef{
		Name: name,
		Columns: []Column{
			{Name: "parent_id", Type: field.TypeString, Max: uuidSize, NotNull: true},
			{Name: "parent_edit_version", Type: field.TypeInt, NotNull: true},
			colFieldID,
			colSeq,
			{Name: "child_id", Type: field.TypeString, Max: uuidSize, NotNull: true},
			{Name: "child_edit_version", Type: field.TypeInt, NotNull: true},
		},
		PrimaryKey: []string{"parent_id", "parent_edit_version", "field_id", "seq"},
		Indexes: []Index{
			{Name: indexName(name, "child_id"), Columns: []string{"child_id", "child_edit_version"}},
		},
	}
}
