// Package dictionary mirrors the field and entity catalog into reference
// tables that reporting tools can join against.
package dictionary

import (
	"context"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"jds/internal/dialect"
	"jds/internal/entity"
	"jds/internal/field"
)

const batchSize = 200

// ErrUnsupportedDialect is returned by Open for backends without a gorm
// dialector in this build.
var ErrUnsupportedDialect = errors.New("dictionary: unsupported dialect")

type Dictionary struct {
	db *gorm.DB

	mu       sync.Mutex
	migrated bool
}

// Open wraps an existing connection; the dictionary shares its pool.
func Open(d *dialect.Dialect, conn *sqlx.DB, prefix string) (*Dictionary, error) {
	var dialector gorm.Dialector
	switch d.Kind {
	case dialect.Postgres:
		dialector = postgres.New(postgres.Config{Conn: conn.DB})
	case dialect.MySQL:
		dialector = mysql.New(mysql.Config{Conn: conn.DB})
	case dialect.SQLite:
		dialector = sqlite.Dialector{DriverName: d.Driver, Conn: conn.DB}
	default:
		return nil, errors.Wrap(ErrUnsupportedDialect, d.Name)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		NamingStrategy: schema.NamingStrategy{TablePrefix: prefix, SingularTable: true},
		Logger: logger.New(log.StandardLogger(), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open dictionary")
	}
	return &Dictionary{db: db}, nil
}

func (d *Dictionary) DB() *gorm.DB { return d.db }

// Migrate creates or extends the reference tables once per Dictionary.
func (d *Dictionary) Migrate(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.migrated {
		return nil
	}
	if err := d.db.WithContext(ctx).AutoMigrate(models()...); err != nil {
		return errors.Wrap(err, "migrate dictionary")
	}
	d.migrated = true
	return nil
}

// rows is the reference content of a set of entity types.
type rows struct {
	fieldTypes  []RefFieldType
	fields      []RefField
	entities    []RefEntity
	enums       []RefEnum
	enumFields  []RefEnum
	entityField []RefEntityField
	entityEnum  []RefEntityEnum
	inheritance []RefEntityInheritance
}

func collect(types *entity.Types, entityIDs []int64) (*rows, error) {
	out := &rows{}
	for _, t := range field.AllTypes() {
		out.fieldTypes = append(out.fieldTypes, RefFieldType{ID: int(t), Name: t.String()})
	}
	reg := types.Fields()
	seenFields := map[int64]struct{}{}
	addField := func(id int64) {
		if _, ok := seenFields[id]; ok {
			return
		}
		seenFields[id] = struct{}{}
		if f, ok := reg.Field(id); ok {
			out.fields = append(out.fields, RefField{ID: f.ID, Name: f.Name, Description: f.Description, TypeID: int(f.Type)})
		}
	}
	for _, id := range entityIDs {
		desc, ok := types.Lookup(id)
		if !ok {
			return nil, errors.Wrapf(entity.ErrUnregisteredEntityType, "entity %d", id)
		}
		// an instance binds its fields into the registry
		if _, err := types.New(id); err != nil {
			return nil, err
		}
		out.entities = append(out.entities, RefEntity{ID: desc.ID, Name: desc.Name, Version: desc.Version, Description: desc.Description})
		if desc.Parent != 0 {
			out.inheritance = append(out.inheritance, RefEntityInheritance{ParentID: desc.Parent, ChildID: desc.ID})
		}
		for _, fid := range reg.Fields(id) {
			addField(fid)
			out.entityField = append(out.entityField, RefEntityField{EntityID: id, FieldID: fid})
		}
		for _, fid := range reg.Enums(id) {
			addField(fid)
			out.entityEnum = append(out.entityEnum, RefEntityEnum{EntityID: id, FieldID: fid})
			e, ok := reg.Enum(fid)
			if !ok {
				continue
			}
			out.enumFields = append(out.enumFields, RefEnum{FieldID: fid, Seq: len(e.Values)})
			for seq, v := range e.Values {
				out.enums = append(out.enums, RefEnum{FieldID: fid, Seq: seq, Value: v})
			}
		}
	}
	return out, nil
}

// Sync upserts the reference rows of entityIDs in one transaction. Enum
// values past the current length are removed.
func (d *Dictionary) Sync(ctx context.Context, types *entity.Types, entityIDs []int64) error {
	if err := d.Migrate(ctx); err != nil {
		return err
	}
	r, err := collect(types, entityIDs)
	if err != nil {
		return err
	}
	err = d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		update := clause.OnConflict{UpdateAll: true}
		ignore := clause.OnConflict{DoNothing: true}
		if err := create(tx, r.fieldTypes, update); err != nil {
			return err
		}
		if err := create(tx, r.fields, update); err != nil {
			return err
		}
		if err := create(tx, r.entities, update); err != nil {
			return err
		}
		for _, e := range r.enumFields {
			if err := tx.Where("field_id = ? AND seq >= ?", e.FieldID, e.Seq).Delete(&RefEnum{}).Error; err != nil {
				return errors.Wrapf(err, "trim enum %d", e.FieldID)
			}
		}
		if err := create(tx, r.enums, update); err != nil {
			return err
		}
		if err := create(tx, r.entityField, ignore); err != nil {
			return err
		}
		if err := create(tx, r.entityEnum, ignore); err != nil {
			return err
		}
		return create(tx, r.inheritance, ignore)
	})
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"entities": len(r.entities), "fields": len(r.fields)}).Debug("dictionary synced")
	return nil
}

func create[T any](tx *gorm.DB, rows []T, conflict clause.OnConflict) error {
	if len(rows) == 0 {
		return nil
	}
	if err := tx.Clauses(conflict).CreateInBatches(rows, batchSize).Error; err != nil {
		return errors.Wrapf(err, "upsert %T", rows[0])
	}
	return nil
}
