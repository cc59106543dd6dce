package engine

import (
	"context"
	"database/sql"
	"slices"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"jds/internal/entity"
	"jds/internal/field"
	"jds/internal/store"
)

// Filter selects the revisions a load returns. Types are expanded with
// their descendants. Without UUIDs and without IncludeNested only roots
// are returned.
type Filter struct {
	Types         []int64
	UUIDs         []string
	IncludeNested bool
	LatestOnly    bool
}

type overviewRow struct {
	ID                string         `db:"id"`
	EditVersion       int            `db:"edit_version"`
	EntityID          int64          `db:"entity_id"`
	EntityVersion     int            `db:"entity_version"`
	Live              bool           `db:"live"`
	ParentID          sql.NullString `db:"parent_id"`
	ParentEditVersion sql.NullInt64  `db:"parent_edit_version"`
}

func (r overviewRow) overview() entity.Overview {
	ov := entity.Overview{
		EntityID:      r.EntityID,
		EntityVersion: r.EntityVersion,
		UUID:          r.ID,
		EditVersion:   r.EditVersion,
		Live:          r.Live,
	}
	if r.ParentID.Valid {
		parent := store.Key{UUID: r.ParentID.String, EditVersion: int(r.ParentEditVersion.Int64)}
		ov.ParentUUID = parent.UUID
		ov.ParentCompositeKey = parent.String()
	}
	return ov
}

type bindingRow struct {
	ParentID          string `db:"parent_id"`
	ParentEditVersion int    `db:"parent_edit_version"`
	FieldID           int64  `db:"field_id"`
	Seq               int    `db:"seq"`
	ChildID           string `db:"child_id"`
	ChildEditVersion  int    `db:"child_edit_version"`
	EntityID          int64  `db:"entity_id"`
	EntityVersion     int    `db:"entity_version"`
	Live              bool   `db:"live"`
}

// Load reads the matching revisions and rebuilds their nested graphs.
func (e *Engine) Load(ctx context.Context, f Filter) ([]entity.Persistable, error) {
	start := time.Now()
	out, err := e.load(ctx, f)
	if err != nil {
		e.metrics.LoadFail.Inc(1)
		return nil, err
	}
	e.metrics.LoadDuration.Record(time.Since(start))
	return out, nil
}

func (e *Engine) load(ctx context.Context, f Filter) ([]entity.Persistable, error) {
	rows, err := e.selectOverviews(ctx, f)
	if err != nil {
		return nil, err
	}
	if f.LatestOnly {
		rows = latest(rows)
	}

	roots := make([]entity.Persistable, 0, len(rows))
	level := make([]*entity.Entity, 0, len(rows))
	seen := make(map[store.Key]struct{}, len(rows))
	for _, r := range rows {
		k := store.Key{UUID: r.ID, EditVersion: r.EditVersion}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		p, err := e.types.New(r.EntityID)
		if err != nil {
			if errors.Is(err, entity.ErrUnregisteredEntityType) {
				e.skip(r.EntityID, r.ID)
				continue
			}
			return nil, err
		}
		p.Base().Overview = r.overview()
		roots = append(roots, p)
		level = append(level, p.Base())
	}

	total := 0
	for depth := 0; len(level) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		total += len(level)
		if err := e.populate(ctx, level); err != nil {
			return nil, errors.Wrapf(err, "populate level %d", depth)
		}
		next, err := e.children(ctx, level)
		if err != nil {
			return nil, errors.Wrapf(err, "children of level %d", depth)
		}
		level = next
	}
	e.metrics.LoadEntities.Inc(int64(total))
	e.log.WithFields(log.Fields{"roots": len(roots), "entities": total}).Debug("load complete")
	return roots, nil
}

func (e *Engine) skip(entityID int64, uuid string) {
	e.metrics.LoadSkipped.Inc(1)
	e.log.WithFields(log.Fields{"entity_id": entityID, "uuid": uuid}).Warn("skipping unregistered entity type")
}

func (e *Engine) selectOverviews(ctx context.Context, f Filter) ([]overviewRow, error) {
	base := "SELECT id, edit_version, entity_id, entity_version, live, parent_id, parent_edit_version FROM " +
		e.table(store.Overview) + " WHERE 1 = 1"
	var types []int64
	for _, id := range f.Types {
		for _, d := range e.types.Descendants(id) {
			if !slices.Contains(types, d) {
				types = append(types, d)
			}
		}
	}
	var args []any
	if len(types) > 0 {
		base += " AND entity_id IN (?)"
		args = append(args, types)
	}
	if len(f.UUIDs) == 0 && !f.IncludeNested {
		base += " AND parent_id IS NULL"
	}
	const order = " ORDER BY id, edit_version"

	if len(f.UUIDs) == 0 {
		return e.selectRows(ctx, base+order, args)
	}
	var uuids []string
	seen := make(map[string]struct{}, len(f.UUIDs))
	for _, u := range f.UUIDs {
		uuids = appendUnique(uuids, seen, u)
	}
	var out []overviewRow
	for chunk := range slices.Chunk(uuids, e.opts.LoadChunkSize) {
		rows, err := e.selectRows(ctx, base+" AND id IN (?)"+order, append(slices.Clone(args), chunk))
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

func (e *Engine) selectRows(ctx context.Context, query string, args []any) ([]overviewRow, error) {
	if len(args) > 0 {
		var err error
		query, args, err = sqlx.In(query, args...)
		if err != nil {
			return nil, errors.Wrap(err, "expand overview query")
		}
	}
	var rows []overviewRow
	if err := e.db.SelectContext(ctx, &rows, e.dialect.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "select overviews")
	}
	return rows, nil
}

// latest keeps the highest edit version per uuid; rows arrive ordered by
// id then edit_version.
func latest(rows []overviewRow) []overviewRow {
	out := make([]overviewRow, 0, len(rows))
	for _, r := range rows {
		if n := len(out); n > 0 && out[n-1].ID == r.ID {
			out[n-1] = r
			continue
		}
		out = append(out, r)
	}
	return out
}

// populate fills the values of one level from every table its types use.
func (e *Engine) populate(ctx context.Context, level []*entity.Entity) error {
	byKey := make(map[string]*entity.Entity, len(level))
	var uuids []string
	seenUUIDs := map[string]struct{}{}
	tables := map[store.Table]struct{}{}
	seenTypes := map[int64]struct{}{}
	reg := e.types.Fields()
	for _, ent := range level {
		ck := ent.Overview.CompositeKey()
		if _, dup := byKey[ck]; dup {
			continue
		}
		byKey[ck] = ent
		uuids = appendUnique(uuids, seenUUIDs, ent.Overview.UUID)
		if _, ok := seenTypes[ent.Overview.EntityID]; ok {
			continue
		}
		seenTypes[ent.Overview.EntityID] = struct{}{}
		for _, f := range reg.FindAll(reg.Fields(ent.Overview.EntityID)) {
			if t, ok := store.TableFor(f.Type); ok {
				tables[t] = struct{}{}
			}
		}
	}
	for _, t := range store.ValueTables() {
		if _, ok := tables[t]; !ok {
			continue
		}
		if err := e.populateTable(ctx, t, uuids, byKey); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) populateTable(ctx context.Context, t store.Table, uuids []string, byKey map[string]*entity.Entity) error {
	cols, order := "id, edit_version, field_id, value", " ORDER BY id, edit_version, field_id"
	if t.Collection() {
		cols, order = "id, edit_version, field_id, seq, value", " ORDER BY id, edit_version, field_id, seq"
	}
	base := "SELECT " + cols + " FROM " + e.table(t) + " WHERE id IN (?)" + order
	typ := t.Type()
	for chunk := range slices.Chunk(uuids, e.opts.LoadChunkSize) {
		query, args, err := sqlx.In(base, chunk)
		if err != nil {
			return errors.Wrap(err, "expand value query")
		}
		rows, err := e.db.QueryxContext(ctx, e.dialect.Rebind(query), args...)
		if err != nil {
			return errors.Wrapf(err, "select %s", e.table(t))
		}
		if err := e.scanValues(rows, t, typ, byKey); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) scanValues(rows *sqlx.Rows, t store.Table, typ field.Type, byKey map[string]*entity.Entity) error {
	defer rows.Close()
	var (
		id      string
		ev      int
		fieldID int64
		seq     int
		value   any
	)
	dest := []any{&id, &ev, &fieldID, &value}
	if t.Collection() {
		dest = []any{&id, &ev, &fieldID, &seq, &value}
	}
	for rows.Next() {
		value = nil
		if err := rows.Scan(dest...); err != nil {
			return errors.Wrapf(err, "scan %s", e.table(t))
		}
		ent, ok := byKey[store.Key{UUID: id, EditVersion: ev}.String()]
		if !ok {
			continue
		}
		if err := ent.PopulateProperty(typ, fieldID, value); err != nil {
			return errors.Wrapf(err, "entity %s", ent.Overview.CompositeKey())
		}
	}
	return errors.Wrapf(rows.Err(), "read %s", e.table(t))
}

// children loads the nested entities bound under the parents of a level,
// attaches them in saved sequence order and returns them as the next level.
func (e *Engine) children(ctx context.Context, parents []*entity.Entity) ([]*entity.Entity, error) {
	byKey := make(map[string]*entity.Entity, len(parents))
	var uuids []string
	seenUUIDs := map[string]struct{}{}
	for _, p := range parents {
		byKey[p.Overview.CompositeKey()] = p
		uuids = appendUnique(uuids, seenUUIDs, p.Overview.UUID)
	}
	base := "SELECT b.parent_id, b.parent_edit_version, b.field_id, b.seq, b.child_id, b.child_edit_version, " +
		"o.entity_id, o.entity_version, o.live FROM " + e.table(store.Binding) + " b JOIN " + e.table(store.Overview) +
		" o ON o.id = b.child_id AND o.edit_version = b.child_edit_version" +
		" WHERE b.parent_id IN (?) ORDER BY b.parent_id, b.parent_edit_version, b.field_id, b.seq"

	var next []*entity.Entity
	for chunk := range slices.Chunk(uuids, e.opts.LoadChunkSize) {
		query, args, err := sqlx.In(base, chunk)
		if err != nil {
			return nil, errors.Wrap(err, "expand binding query")
		}
		var rows []bindingRow
		if err := e.db.SelectContext(ctx, &rows, e.dialect.Rebind(query), args...); err != nil {
			return nil, errors.Wrap(err, "select bindings")
		}
		for _, r := range rows {
			parent, ok := byKey[store.Key{UUID: r.ParentID, EditVersion: r.ParentEditVersion}.String()]
			if !ok {
				continue
			}
			ov := entity.Overview{
				EntityVersion: r.EntityVersion,
				UUID:          r.ChildID,
				EditVersion:   r.ChildEditVersion,
				Live:          r.Live,
			}
			child, err := parent.PopulateNestedEntity(r.FieldID, r.EntityID, ov)
			if err != nil {
				if errors.Is(err, entity.ErrUnregisteredEntityType) {
					e.skip(r.EntityID, r.ChildID)
					continue
				}
				e.log.WithError(err).WithFields(log.Fields{"parent": r.ParentID, "field_id": r.FieldID}).Warn("skipping binding")
				continue
			}
			next = append(next, child.Base())
		}
	}
	return next, nil
}

func appendUnique(out []string, seen map[string]struct{}, s string) []string {
	if _, ok := seen[s]; ok {
		return out
	}
	seen[s] = struct{}{}
	return append(out, s)
}
