package reference

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jds/internal/field"
)

func writeFile(t *testing.T, dir, name, body string) {
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestLoadEnumCatalog(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a_status.yaml", `
name: order_status
field: 5002
items:
  - {code: PAID, name: Paid, order: 3}
  - {code: DRAFT, name: Draft, order: 1}
  - {code: SENT, name: Sent, order: 3}
`)
	writeFile(t, dir, "b_colour.yml", `
field: 5003
collection: true
items:
  - {code: red, name: Red}
  - {code: green, name: Green}
`)
	writeFile(t, dir, "readme.txt", "not a catalog")

	cat, err := LoadEnumCatalog(dir)
	require.NoError(t, err)
	require.Len(t, cat, 2)
	assert.Equal(t, []string{"DRAFT", "PAID", "SENT"}, cat["order_status"].Values())
	assert.Equal(t, []string{"red", "green"}, cat["b_colour"].Values())

	reg := field.NewRegistry()
	require.NoError(t, Bind(reg, cat))
	e, ok := reg.Enum(5002)
	require.True(t, ok)
	assert.Equal(t, "order_status", e.Field.Name)
	assert.Equal(t, field.TypeEnum, e.Field.Type)
	colour, ok := reg.Enum(5003)
	require.True(t, ok)
	assert.Equal(t, field.TypeEnumCollection, colour.Field.Type)

	// binding the same catalog again is accepted
	require.NoError(t, Bind(reg, cat))
}

func TestBindKeepsRegisteredField(t *testing.T) {
	reg := field.NewRegistry()
	_, err := reg.Bind(field.Field{ID: 7, Name: "state", Type: field.TypeEnum, Description: "lifecycle"})
	require.NoError(t, err)

	cat := Catalog{"states": {Name: "states", Field: 7, Items: []EnumItem{{Code: "ON"}, {Code: "OFF"}}}}
	require.NoError(t, Bind(reg, cat))
	e, _ := reg.Enum(7)
	assert.Equal(t, "state", e.Field.Name)
	assert.Equal(t, []string{"ON", "OFF"}, e.Values)

	cat["states"] = EnumDirectory{Name: "states", Field: 7, Items: []EnumItem{{Code: "ON"}}}
	assert.ErrorIs(t, Bind(reg, cat), field.ErrConflictingBinding)
}

func TestBindRejectsEmptyCatalog(t *testing.T) {
	err := Bind(field.NewRegistry(), Catalog{"empty": {Name: "empty", Field: 9}})
	assert.Error(t, err)
	assert.NoError(t, Bind(field.NewRegistry(), Catalog{"loose": {Name: "loose", Items: []EnumItem{{Code: "x"}}}}))
}

func TestLoadEnumCatalogDuplicateName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "name: same\nitems: [{code: A}]\n")
	writeFile(t, dir, "b.yaml", "name: same\nitems: [{code: B}]\n")
	_, err := LoadEnumCatalog(dir)
	assert.ErrorContains(t, err, "declared twice")
}
