package schema

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"jds/internal/dialect"
	"jds/internal/entity"
	"jds/internal/field"
)

// FilterBy selects the column identifying the rows a report replaces.
type FilterBy int

const (
	UniqueByUUID FilterBy = iota
	UniqueByCompositeKey
	UniqueByUUIDLocation
	UniqueByParentUUID
)

func (f FilterBy) Column() string {
	switch f {
	case UniqueByCompositeKey:
		return "composite_key"
	case UniqueByUUIDLocation:
		return "uuid_location"
	case UniqueByParentUUID:
		return "parent_uuid"
	}
	return "uuid"
}

// ParseFilterBy accepts the column names returned by Column.
func ParseFilterBy(s string) (FilterBy, error) {
	for _, f := range []FilterBy{UniqueByUUID, UniqueByCompositeKey, UniqueByUUIDLocation, UniqueByParentUUID} {
		if strings.EqualFold(s, f.Column()) {
			return f, nil
		}
	}
	return 0, errors.Errorf("unknown unique-by %q", s)
}

var keyColumns = []Column{
	{Name: "composite_key", Type: field.TypeString, Max: uuidSize + 12, NotNull: true},
	{Name: "uuid", Type: field.TypeString, Max: uuidSize, NotNull: true},
	{Name: "uuid_location", Type: field.TypeString, Max: uuidSize},
	{Name: "uuid_location_version", Type: field.TypeInt},
	{Name: "parent_uuid", Type: field.TypeString, Max: uuidSize},
	{Name: "entity_id", Type: field.TypeLong, NotNull: true},
	{Name: "live", Type: field.TypeBoolean},
}

type reportColumn struct {
	Column
	fieldID int64
	ordinal int
}

// Report is a flat projection of selected fields, one row per entity.
type Report struct {
	Name     string
	Entities []int64
	Fields   []int64
	UniqueBy FilterBy
	// UniqueEntries replaces earlier rows with the same UniqueBy value.
	UniqueEntries  bool
	OnlyLive       bool
	OnlyDeprecated bool
	// Target names an alternate connection; empty means the default one.
	Target string

	mu      sync.Mutex
	synced  bool
	columns []reportColumn
	// pending holds field ids the registry could not resolve at the last
	// build.
	pending []int64
}

// Register adds fields to the report. The table must be synchronized
// again before the next write.
func (r *Report) Register(fieldIDs ...int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range fieldIDs {
		if !slices.Contains(r.Fields, id) {
			r.Fields = append(r.Fields, id)
			r.synced = false
		}
	}
}

func (r *Report) Synced() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.synced
}

// Table builds the report table definition from the current field list.
func (r *Report) Table(reg *field.Registry) TableDef {
	r.mu.Lock()
	defer r.mu.Unlock()
	cols := r.buildColumns(reg)
	def := TableDef{Name: r.Name, Columns: append([]Column(nil), keyColumns...)}
	for _, c := range cols {
		def.Columns = append(def.Columns, c.Column)
	}
	by := r.UniqueBy.Column()
	def.Indexes = []Index{{Name: indexName(r.Name, by), Columns: []string{by}}}
	return def
}

func (r *Report) buildColumns(reg *field.Registry) []reportColumn {
	taken := make(map[string]struct{}, len(keyColumns))
	for _, c := range keyColumns {
		taken[c.Name] = struct{}{}
	}
	name := func(s string) string {
		n := Ident(s)
		if _, dup := taken[n]; dup {
			n = "f_" + n
		}
		taken[n] = struct{}{}
		return n
	}
	var out []reportColumn
	r.pending = r.pending[:0]
	for _, id := range r.Fields {
		f, ok := reg.Field(id)
		if !ok {
			log.WithFields(log.Fields{"report": r.Name, "field_id": id}).Warn("report field not registered")
			r.pending = append(r.pending, id)
			continue
		}
		switch f.Type {
		case field.TypeBlob, field.TypeEntityCollection, field.TypeStringCollection,
			field.TypeDateTimeCollection, field.TypeFloatCollection, field.TypeDoubleCollection,
			field.TypeIntCollection, field.TypeLongCollection:
			continue
		case field.TypeEnumCollection:
			fe, ok := reg.Enum(id)
			if !ok {
				continue
			}
			for i, v := range fe.Values {
				out = append(out, reportColumn{
					Column:  Column{Name: name(f.Name + "_" + v), Type: field.TypeBoolean},
					fieldID: id,
					ordinal: i,
				})
			}
		case field.TypeEntity:
			out = append(out, reportColumn{Column: Column{Name: name(f.Name), Type: field.TypeString, Max: uuidSize}, fieldID: id})
		default:
			out = append(out, reportColumn{Column: Column{Name: name(f.Name), Type: f.Type}, fieldID: id})
		}
	}
	r.columns = out
	return out
}

// Sync creates or extends the report table on conn.
func (r *Report) Sync(ctx context.Context, s *Synchronizer, conn *sqlx.DB, reg *field.Registry) error {
	def := r.Table(reg)
	s.Forget(def.Name)
	if err := s.Ensure(ctx, conn, def); err != nil {
		return errors.Wrapf(err, "report %s", r.Name)
	}
	r.mu.Lock()
	r.synced = true
	r.mu.Unlock()
	return nil
}

// Satisfies applies the entity type and liveness filters.
func (r *Report) Satisfies(types *entity.Types, e *entity.Entity) bool {
	if r.OnlyLive && !e.Overview.Live {
		return false
	}
	if r.OnlyDeprecated && e.Overview.Live {
		return false
	}
	if len(r.Entities) == 0 {
		return true
	}
	for _, id := range r.Entities {
		if types.IsA(e.Overview.EntityID, id) {
			return true
		}
	}
	return false
}

// Write inserts one row per matching entity. It returns the number of rows
// written.
func (r *Report) Write(ctx context.Context, tx sqlx.ExtContext, d *dialect.Dialect, types *entity.Types, entities []*entity.Entity) (int, error) {
	r.mu.Lock()
	synced, cols := r.synced, r.columns
	if synced {
		reg := types.Fields()
		for _, id := range r.pending {
			if _, ok := reg.Field(id); ok {
				r.synced, synced = false, false
				break
			}
		}
	}
	r.mu.Unlock()
	if !synced {
		return 0, errors.Wrapf(ErrSchemaSyncRequired, "report %s", r.Name)
	}

	var rows []*entity.Entity
	for _, e := range entities {
		if r.Satisfies(types, e) {
			rows = append(rows, e)
		}
	}
	if len(rows) == 0 {
		return 0, nil
	}

	if r.UniqueEntries {
		if err := r.deleteExisting(ctx, tx, d, rows); err != nil {
			return 0, err
		}
	}

	names := make([]string, 0, len(keyColumns)+len(cols))
	for _, c := range keyColumns {
		names = append(names, c.Name)
	}
	for _, c := range cols {
		names = append(names, c.Name)
	}
	per := d.RowsPerStatement(len(names), 0)
	for chunk := range slices.Chunk(rows, per) {
		args := make([]any, 0, len(chunk)*len(names))
		for _, e := range chunk {
			root := e.Overview.RootKey()
			var parent any
			if e.Overview.ParentUUID != "" {
				parent = e.Overview.ParentUUID
			}
			args = append(args,
				e.Overview.CompositeKey(),
				e.Overview.UUID,
				root.UUID,
				root.EditVersion,
				parent,
				e.Overview.EntityID,
				d.Encode(field.TypeBoolean, e.Overview.Live),
			)
			for _, c := range cols {
				args = append(args, d.Encode(c.Type, e.AtomicValue(c.fieldID, c.ordinal)))
			}
		}
		query := d.Rebind(d.Insert(r.Name, names, len(chunk)))
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return 0, errors.Wrapf(err, "write report %s", r.Name)
		}
	}
	return len(rows), nil
}

func (r *Report) deleteExisting(ctx context.Context, tx sqlx.ExtContext, d *dialect.Dialect, rows []*entity.Entity) error {
	seen := make(map[string]struct{}, len(rows))
	var keys []any
	for _, e := range rows {
		var k string
		switch r.UniqueBy {
		case UniqueByCompositeKey:
			k = e.Overview.CompositeKey()
		case UniqueByUUIDLocation:
			k = e.Overview.RootKey().UUID
		case UniqueByParentUUID:
			k = e.Overview.ParentUUID
		default:
			k = e.Overview.UUID
		}
		if k == "" {
			continue
		}
		if _, dup := seen[k]; !dup {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	for chunk := range slices.Chunk(keys, d.RowsPerStatement(1, 0)) {
		query, args, err := sqlx.In("DELETE FROM "+r.Name+" WHERE "+r.UniqueBy.Column()+" IN (?)", chunk)
		if err != nil {
			return errors.Wrap(err, "expand delete")
		}
		if _, err := tx.ExecContext(ctx, d.Rebind(query), args...); err != nil {
			return errors.Wrapf(err, "replace report %s rows", r.Name)
		}
	}
	return nil
}
