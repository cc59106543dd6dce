package engine

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"jds/internal/entity"
	"jds/internal/field"
	"jds/internal/schema"
	"jds/internal/store"
)

type SaveOptions struct {
	// BatchSize overrides Options.BatchSize when positive.
	BatchSize int
	// Standardize derives child uuids from each root's uuid before saving.
	Standardize bool
}

// unit is one save: the flattened steps plus the instances they came from.
type unit struct {
	batch    *store.Batch
	entities []*entity.Entity
	types    []int64
}

func (e *Engine) flatten(opts SaveOptions, roots []entity.Persistable) (*unit, error) {
	u := &unit{batch: store.NewBatch()}
	seenTypes := map[int64]struct{}{}
	for _, p := range roots {
		root := p.Base()
		if err := root.Err(); err != nil {
			return nil, errors.Wrapf(err, "entity %s", root.Overview.UUID)
		}
		if opts.Standardize {
			root.StandardizeIdentities(root.Overview.UUID)
		}
		for ent := range root.AllEntities(true) {
			if err := ent.Err(); err != nil {
				return nil, errors.Wrapf(err, "entity %s", ent.Overview.UUID)
			}
			id := ent.Overview.EntityID
			if _, ok := e.types.Lookup(id); !ok {
				return nil, errors.Wrapf(entity.ErrUnregisteredEntityType, "entity %d", id)
			}
			ent.Assign(u.batch, e.types.Depth(id))
			u.entities = append(u.entities, ent)
			if _, ok := seenTypes[id]; !ok {
				seenTypes[id] = struct{}{}
				u.types = append(u.types, id)
			}
		}
	}
	return u, nil
}

// Save writes roots and everything reachable from them as one unit.
func (e *Engine) Save(ctx context.Context, opts SaveOptions, roots ...entity.Persistable) error {
	if !e.ready.Load() {
		return errors.Wrap(schema.ErrSchemaSyncRequired, "engine not initialised")
	}
	if len(roots) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	u, err := e.flatten(opts, roots)
	if err != nil {
		e.metrics.SaveFail.Inc(1)
		return err
	}
	e.syncDictionary(ctx, u.types)

	batchSize := e.opts.BatchSize
	if opts.BatchSize > 0 {
		batchSize = opts.BatchSize
	}
	rows, err := e.write(ctx, u, batchSize)
	if err != nil {
		e.metrics.SaveFail.Inc(1)
		return err
	}
	e.metrics.SaveUnits.Inc(1)
	e.metrics.SaveEntities.Inc(int64(len(u.entities)))
	e.metrics.SaveRows.Inc(int64(rows))
	e.metrics.SaveDuration.Record(time.Since(start))
	return nil
}

// SaveAll saves independent units concurrently, each in its own
// transactions. The first failure cancels units not yet started.
func (e *Engine) SaveAll(ctx context.Context, opts SaveOptions, units ...[]entity.Persistable) error {
	g, gctx := errgroup.WithContext(ctx)
	if e.opts.Parallelism > 0 {
		g.SetLimit(e.opts.Parallelism)
	}
	for _, roots := range units {
		g.Go(func() error {
			return e.Save(gctx, opts, roots...)
		})
	}
	return g.Wait()
}

// txSet holds one transaction per connection used by a unit.
type txSet struct {
	names []string
	txs   map[string]*sqlx.Tx
}

func (s *txSet) rollback() {
	for _, name := range s.names {
		_ = s.txs[name].Rollback()
	}
}

// commitOrder puts the default connection last so a failed alternate
// commit still rolls back the store rows.
func (s *txSet) commitOrder() []string {
	out := make([]string, 0, len(s.names))
	for _, name := range s.names {
		if name != "" {
			out = append(out, name)
		}
	}
	if _, ok := s.txs[""]; ok {
		out = append(out, "")
	}
	return out
}

func (s *txSet) commit() error {
	for _, name := range s.commitOrder() {
		if err := s.txs[name].Commit(); err != nil {
			s.rollback()
			return errors.Wrapf(err, "commit %q", name)
		}
	}
	return nil
}

// begin opens the default transaction first and alternates in name order
// so concurrent units always acquire connections in the same order.
func (e *Engine) begin(ctx context.Context, reports []*schema.Report) (*txSet, error) {
	targets := []string{""}
	for _, r := range reports {
		if r.Target != "" && !slices.Contains(targets, r.Target) {
			targets = append(targets, r.Target)
		}
	}
	sort.Strings(targets[1:])
	set := &txSet{txs: make(map[string]*sqlx.Tx, len(targets))}
	for _, name := range targets {
		conn, err := e.conn(name)
		if err != nil {
			set.rollback()
			return nil, err
		}
		tx, err := conn.BeginTxx(ctx, nil)
		if err != nil {
			set.rollback()
			return nil, errors.Wrapf(err, "begin %q", name)
		}
		set.names = append(set.names, name)
		set.txs[name] = tx
	}
	return set, nil
}

func (e *Engine) write(ctx context.Context, u *unit, batchSize int) (int, error) {
	reports := e.Reports()
	// once begun, the unit runs to commit or rollback
	ctx = context.WithoutCancel(ctx)
	set, err := e.begin(ctx, reports)
	if err != nil {
		return 0, err
	}
	tx := set.txs[""]
	rows := 0
	for _, s := range u.batch.Steps() {
		n, err := e.writeStep(ctx, tx, s, batchSize)
		if err != nil {
			set.rollback()
			return 0, errors.Wrapf(err, "step %d", s.Index)
		}
		rows += n
		e.log.WithFields(log.Fields{"step": s.Index, "entities": len(s.Overviews), "rows": n}).Debug("step written")
	}
	for _, r := range reports {
		n, err := r.Write(ctx, set.txs[r.Target], e.dialect, e.types, u.entities)
		if err != nil {
			set.rollback()
			return 0, err
		}
		e.metrics.ReportRows.Inc(int64(n))
	}
	if err := set.commit(); err != nil {
		return 0, err
	}
	return rows, nil
}

func (e *Engine) writeStep(ctx context.Context, tx *sqlx.Tx, s *store.Step, batchSize int) (int, error) {
	keys := s.Keys()
	rows := 0

	overviews := make([][]any, 0, len(keys))
	for _, ck := range keys {
		ov := s.Overviews[ck]
		var parentID, parentEV any
		if !ov.Parent.IsZero() {
			parentID, parentEV = ov.Parent.UUID, ov.Parent.EditVersion
		}
		overviews = append(overviews, []any{
			ov.Key.UUID, ov.Key.EditVersion,
			ov.EntityID, ov.EntityVersion, e.dialect.Encode(field.TypeBoolean, ov.Live), parentID, parentEV,
		})
	}
	n, err := e.upsert(ctx, tx, e.table(store.Overview),
		[]string{"id", "edit_version"},
		[]string{"entity_id", "entity_version", "live", "parent_id", "parent_edit_version"},
		overviews, batchSize)
	if err != nil {
		return 0, err
	}
	rows += n

	for _, t := range store.ValueTables() {
		if t.Collection() {
			n, err := e.writeCollections(ctx, tx, t, keys, s.Collections[t], batchSize)
			if err != nil {
				return 0, err
			}
			rows += n
			continue
		}
		byKey := s.Values[t]
		if len(byKey) == 0 {
			continue
		}
		var values [][]any
		for _, ck := range keys {
			byField, ok := byKey[ck]
			if !ok {
				continue
			}
			k := s.Overviews[ck].Key
			for _, fid := range sortedFields(byField) {
				values = append(values, []any{k.UUID, k.EditVersion, fid, e.dialect.Encode(t.Type(), byField[fid])})
			}
		}
		n, err := e.upsert(ctx, tx, e.table(t), []string{"id", "edit_version", "field_id"}, []string{"value"}, values, batchSize)
		if err != nil {
			return 0, err
		}
		rows += n
	}

	n, err = e.writeBindings(ctx, tx, keys, s.Bindings, batchSize)
	if err != nil {
		return 0, err
	}
	return rows + n, nil
}

func (e *Engine) writeCollections(ctx context.Context, tx *sqlx.Tx, t store.Table, keys []string, byKey map[string]map[int64][]any, batchSize int) (int, error) {
	if len(byKey) == 0 {
		return 0, nil
	}
	name := e.table(t)
	del := e.dialect.Rebind("DELETE FROM " + name + " WHERE id = ? AND edit_version = ? AND field_id = ?")
	elem := t.Type().Element()
	var values [][]any
	for _, ck := range keys {
		byField, ok := byKey[ck]
		if !ok {
			continue
		}
		k, _ := store.ParseKey(ck)
		for _, fid := range sortedFields(byField) {
			if _, err := tx.ExecContext(ctx, del, k.UUID, k.EditVersion, fid); err != nil {
				return 0, errors.Wrapf(err, "clear %s", name)
			}
			for seq, v := range byField[fid] {
				values = append(values, []any{k.UUID, k.EditVersion, fid, seq, e.dialect.Encode(elem, v)})
			}
		}
	}
	return e.insert(ctx, tx, name, []string{"id", "edit_version", "field_id", "seq", "value"}, values, batchSize)
}

func (e *Engine) writeBindings(ctx context.Context, tx *sqlx.Tx, keys []string, bindings map[string]map[int64][]store.BindingRow, batchSize int) (int, error) {
	if len(bindings) == 0 {
		return 0, nil
	}
	name := e.table(store.Binding)
	del := e.dialect.Rebind("DELETE FROM " + name + " WHERE parent_id = ? AND parent_edit_version = ?")
	var values [][]any
	for _, ck := range keys {
		byField, ok := bindings[ck]
		if !ok {
			continue
		}
		k, _ := store.ParseKey(ck)
		if _, err := tx.ExecContext(ctx, del, k.UUID, k.EditVersion); err != nil {
			return 0, errors.Wrapf(err, "clear %s", name)
		}
		for _, fid := range sortedFields(byField) {
			for _, b := range byField[fid] {
				values = append(values, []any{b.Parent.UUID, b.Parent.EditVersion, b.FieldID, b.Seq, b.Child.UUID, b.Child.EditVersion})
			}
		}
	}
	return e.insert(ctx, tx, name,
		[]string{"parent_id", "parent_edit_version", "field_id", "seq", "child_id", "child_edit_version"},
		values, batchSize)
}

func (e *Engine) upsert(ctx context.Context, tx *sqlx.Tx, table string, keys, values []string, rows [][]any, batchSize int) (int, error) {
	cols := len(keys) + len(values)
	for chunk := range slices.Chunk(rows, e.dialect.RowsPerStatement(cols, batchSize)) {
		query := e.dialect.Rebind(e.dialect.Upsert(table, keys, values, len(chunk)))
		if _, err := tx.ExecContext(ctx, query, flatten(chunk, cols)...); err != nil {
			return 0, errors.Wrapf(err, "upsert %s", table)
		}
	}
	return len(rows), nil
}

func (e *Engine) insert(ctx context.Context, tx *sqlx.Tx, table string, cols []string, rows [][]any, batchSize int) (int, error) {
	for chunk := range slices.Chunk(rows, e.dialect.RowsPerStatement(len(cols), batchSize)) {
		query := e.dialect.Rebind(e.dialect.Insert(table, cols, len(chunk)))
		if _, err := tx.ExecContext(ctx, query, flatten(chunk, len(cols))...); err != nil {
			return 0, errors.Wrapf(err, "insert %s", table)
		}
	}
	return len(rows), nil
}

func flatten(rows [][]any, cols int) []any {
	out := make([]any, 0, len(rows)*cols)
	for _, r := range rows {
		out = append(out, r...)
	}
	return out
}

func sortedFields[V any](m map[int64]V) []int64 {
	out := make([]int64, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Delete removes the rows of explicit revisions in one transaction.
func (e *Engine) Delete(ctx context.Context, keys ...store.Key) error {
	if !e.ready.Load() {
		return errors.Wrap(schema.ErrSchemaSyncRequired, "engine not initialised")
	}
	if len(keys) == 0 {
		return nil
	}
	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin delete")
	}
	ctx = context.WithoutCancel(ctx)
	type revisionColumns struct{ table, id, editVersion string }
	targets := []revisionColumns{
		{e.table(store.Overview), "id", "edit_version"},
		{e.table(store.Binding), "parent_id", "parent_edit_version"},
		{e.table(store.Binding), "child_id", "child_edit_version"},
	}
	for _, t := range store.ValueTables() {
		targets = append(targets, revisionColumns{e.table(t), "id", "edit_version"})
	}
	for _, k := range keys {
		for _, t := range targets {
			query := e.dialect.Rebind(fmt.Sprintf("DELETE FROM %s WHERE %s = ? AND %s = ?", t.table, t.id, t.editVersion))
			if _, err := tx.ExecContext(ctx, query, k.UUID, k.EditVersion); err != nil {
				_ = tx.Rollback()
				e.metrics.DeleteFail.Inc(1)
				return errors.Wrapf(err, "delete %s from %s", k, t.table)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		e.metrics.DeleteFail.Inc(1)
		return errors.Wrap(err, "commit delete")
	}
	e.metrics.DeleteRevisions.Inc(int64(len(keys)))
	e.log.WithField("revisions", len(keys)).Info("revisions deleted")
	return nil
}
