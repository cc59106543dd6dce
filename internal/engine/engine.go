// Package engine saves and loads entity graphs through the per-category
// store tables. A save unit is flattened into dependency steps and written
// in one transaction per connection; loads rebuild graphs level by level.
package engine

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"

	"jds/internal/dialect"
	"jds/internal/entity"
	"jds/internal/schema"
	"jds/internal/store"
)

const (
	defaultTablePrefix   = "jds_"
	defaultLoadChunkSize = 500
)

// ErrUnknownTarget is returned for reports naming an alternate connection
// that was not configured.
var ErrUnknownTarget = errors.New("unknown report target")

// Dictionary mirrors type metadata into reference tables.
type Dictionary interface {
	Sync(ctx context.Context, types *entity.Types, entityIDs []int64) error
}

type Options struct {
	// TablePrefix is prepended to every store table. Defaults to "jds_".
	TablePrefix string
	// Alternates are extra connections report tables can target by name.
	Alternates map[string]*sqlx.DB
	Dictionary Dictionary
	Scope      tally.Scope
	Logger     *log.Entry
	// LoadChunkSize bounds the identities per IN list.
	LoadChunkSize int
	// BatchSize bounds the rows per insert statement; <= 0 means as many
	// as the dialect allows.
	BatchSize int
	// Parallelism bounds concurrent units in SaveAll; <= 0 is unbounded.
	Parallelism int
}

// Engine is safe for concurrent use once Init has returned.
type Engine struct {
	db      *sqlx.DB
	dialect *dialect.Dialect
	types   *entity.Types
	opts    Options
	sync    *schema.Synchronizer
	metrics *Metrics
	log     *log.Entry

	mu      sync.RWMutex
	reports []*schema.Report
	ready   atomic.Bool
	known   sync.Map
}

func New(db *sqlx.DB, d *dialect.Dialect, types *entity.Types, opts Options) *Engine {
	if opts.TablePrefix == "" {
		opts.TablePrefix = defaultTablePrefix
	}
	if opts.LoadChunkSize <= 0 {
		opts.LoadChunkSize = defaultLoadChunkSize
	}
	if opts.Scope == nil {
		opts.Scope = tally.NoopScope
	}
	if opts.Logger == nil {
		opts.Logger = log.NewEntry(log.StandardLogger())
	}
	return &Engine{
		db:      db,
		dialect: d,
		types:   types,
		opts:    opts,
		sync:    schema.NewSynchronizer(d, opts.Scope),
		metrics: NewMetrics(opts.Scope),
		log:     opts.Logger.WithField("dialect", d.Name),
	}
}

func (e *Engine) Types() *entity.Types { return e.types }
func (e *Engine) Dialect() *dialect.Dialect { return e.dialect }
func (e *Engine) DB() *sqlx.DB { return e.db }
func (e *Engine) TablePrefix() string { return e.opts.TablePrefix }
func (e *Engine) Metrics() *Metrics { return e.metrics }
func (e *Engine) Synchronizer() *schema.Synchronizer { return e.sync }

func (e *Engine) table(t store.Table) string { return t.Name(e.opts.TablePrefix) }

// Init synchronizes the store tables and every registered report, then
// mirrors all known types into the dictionary.
func (e *Engine) Init(ctx context.Context) error {
	if err := e.sync.EnsureAll(ctx, e.db, schema.StoreTables(e.opts.TablePrefix)); err != nil {
		return errors.Wrap(err, "sync store tables")
	}
	e.mu.RLock()
	reports := append([]*schema.Report(nil), e.reports...)
	e.mu.RUnlock()
	for _, r := range reports {
		if err := e.syncReport(ctx, r); err != nil {
			return err
		}
	}
	all := e.types.All()
	ids := make([]int64, 0, len(all))
	for _, d := range all {
		ids = append(ids, d.ID)
	}
	e.syncDictionary(ctx, ids)
	e.ready.Store(true)
	e.log.WithField("reports", len(reports)).Info("store initialised")
	return nil
}

// Resync forgets cached table state and runs Init again.
func (e *Engine) Resync(ctx context.Context) error {
	for _, def := range schema.StoreTables(e.opts.TablePrefix) {
		e.sync.Forget(def.Name)
	}
	e.known.Range(func(k, _ any) bool {
		e.known.Delete(k)
		return true
	})
	return e.Init(ctx)
}

// RegisterReport adds a report. After Init it is synchronized at once.
func (e *Engine) RegisterReport(ctx context.Context, r *schema.Report) error {
	if _, err := e.conn(r.Target); err != nil {
		return err
	}
	e.mu.Lock()
	e.reports = append(e.reports, r)
	e.mu.Unlock()
	if e.ready.Load() {
		return e.syncReport(ctx, r)
	}
	return nil
}

// SyncReports synchronizes every report whose fields changed.
func (e *Engine) SyncReports(ctx context.Context) error {
	for _, r := range e.Reports() {
		if r.Synced() {
			continue
		}
		if err := e.syncReport(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) Reports() []*schema.Report {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]*schema.Report(nil), e.reports...)
}

func (e *Engine) syncReport(ctx context.Context, r *schema.Report) error {
	conn, err := e.conn(r.Target)
	if err != nil {
		return err
	}
	if err := e.bindFields(); err != nil {
		return err
	}
	return r.Sync(ctx, e.sync, conn, e.types.Fields())
}

// bindFields instantiates every registered type once. Fields enter the
// registry when an instance binds them, and report columns are derived
// from the registry.
func (e *Engine) bindFields() error {
	for _, d := range e.types.All() {
		if _, err := e.types.New(d.ID); err != nil {
			return errors.Wrapf(err, "bind fields of %s", d.Name)
		}
	}
	return nil
}

func (e *Engine) conn(target string) (*sqlx.DB, error) {
	if target == "" {
		return e.db, nil
	}
	c, ok := e.opts.Alternates[target]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownTarget, "%q", target)
	}
	return c, nil
}

// syncDictionary mirrors types not seen before. Failures are logged and
// retried on the next save.
func (e *Engine) syncDictionary(ctx context.Context, ids []int64) {
	if e.opts.Dictionary == nil {
		return
	}
	var fresh []int64
	for _, id := range ids {
		if _, ok := e.known.Load(id); !ok {
			fresh = append(fresh, id)
		}
	}
	if len(fresh) == 0 {
		return
	}
	sort.Slice(fresh, func(i, j int) bool { return fresh[i] < fresh[j] })
	if err := e.opts.Dictionary.Sync(ctx, e.types, fresh); err != nil {
		e.log.WithError(err).WithField("entity_ids", fresh).Warn("dictionary sync failed")
		return
	}
	for _, id := range fresh {
		e.known.Store(id, struct{}{})
	}
}
