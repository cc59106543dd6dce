// Package reference loads enum catalogs from YAML and binds them as enum
// fields of the registry.
package reference

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"jds/internal/field"
)

// Catalog maps a catalog name to its directory.
type Catalog map[string]EnumDirectory

// LoadEnumCatalog reads every .yaml/.yml file in dir. The catalog name is
// the name key, or the file name without extension.
func LoadEnumCatalog(dir string) (Catalog, error) {
	result := make(Catalog)
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "read enum dir")
	}
	for i, file := range files {
		if file.IsDir() || !(strings.HasSuffix(file.Name(), ".yaml") || strings.HasSuffix(file.Name(), ".yml")) {
			continue
		}
		path := filepath.Join(dir, file.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", path)
		}
		var enumDir EnumDirectory
		if err := yaml.Unmarshal(data, &enumDir); err != nil {
			return nil, errors.Wrapf(err, "parse %s", path)
		}
		if enumDir.Name == "" {
			enumDir.Name = strings.TrimSuffix(file.Name(), filepath.Ext(file.Name()))
		}
		if _, dup := result[enumDir.Name]; dup {
			return nil, errors.Errorf("%s: catalog %q declared twice", path, enumDir.Name)
		}
		enumDir.file = i
		result[enumDir.Name] = enumDir
	}
	return result, nil
}

// Values returns the item codes ordered by Order, then by position.
func (d EnumDirectory) Values() []string {
	items := append([]EnumItem(nil), d.Items...)
	sort.SliceStable(items, func(i, j int) bool { return items[i].Order < items[j].Order })
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Code)
	}
	return out
}

// Enum builds the enum binding of d. A field already in reg keeps its
// metadata; otherwise the catalog name becomes the field name.
func (d EnumDirectory) Enum(reg *field.Registry) field.Enum {
	f, ok := reg.Field(d.Field)
	if !ok {
		t := field.TypeEnum
		if d.Collection {
			t = field.TypeEnumCollection
		}
		f = field.Field{ID: d.Field, Name: d.Name, Type: t}
	}
	return field.Enum{Field: f, Values: d.Values()}
}

// Bind registers every catalog that names a field. Catalogs are bound in
// file order so errors are deterministic.
func Bind(reg *field.Registry, catalog Catalog) error {
	dirs := make([]EnumDirectory, 0, len(catalog))
	for _, d := range catalog {
		dirs = append(dirs, d)
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].file < dirs[j].file })
	for _, d := range dirs {
		if d.Field <= 0 {
			log.WithField("catalog", d.Name).Debug("catalog names no field, not bound")
			continue
		}
		if len(d.Items) == 0 {
			return errors.Errorf("catalog %q has no items", d.Name)
		}
		if _, err := reg.BindEnum(d.Enum(reg)); err != nil {
			return errors.Wrapf(err, "catalog %q", d.Name)
		}
	}
	return nil
}
