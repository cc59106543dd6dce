package schema

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"

	"jds/internal/db"
	"jds/internal/dialect"
)

// ErrSchemaSyncRequired is returned when rows are written to a table whose
// definition changed since it was last synchronized.
var ErrSchemaSyncRequired = errors.New("schema sync required")

// Synchronizer creates missing tables and adds missing columns. Tables
// synchronized once per connection are cached and skipped afterwards.
type Synchronizer struct {
	dialect *dialect.Dialect
	cache   sync.Map
	ddl     tally.Counter
}

// NewSynchronizer returns a synchronizer for d. A nil scope disables
// metrics.
func NewSynchronizer(d *dialect.Dialect, scope tally.Scope) *Synchronizer {
	if scope == nil {
		scope = tally.NoopScope
	}
	return &Synchronizer{dialect: d, ddl: scope.SubScope("schema").Counter("ddl")}
}

func (s *Synchronizer) Dialect() *dialect.Dialect { return s.dialect }

func cacheKey(conn *sqlx.DB, table string) string {
	return fmt.Sprintf("%p/%s", conn, strings.ToLower(table))
}

// Synced reports whether def has been synchronized on conn.
func (s *Synchronizer) Synced(conn *sqlx.DB, table string) bool {
	_, ok := s.cache.Load(cacheKey(conn, table))
	return ok
}

// Forget drops table from the cache on every connection.
func (s *Synchronizer) Forget(table string) {
	suffix := "/" + strings.ToLower(table)
	s.cache.Range(func(k, _ any) bool {
		if strings.HasSuffix(k.(string), suffix) {
			s.cache.Delete(k)
		}
		return true
	})
}

// Ensure makes the table on conn match def, additively.
func (s *Synchronizer) Ensure(ctx context.Context, conn *sqlx.DB, def TableDef) error {
	key := cacheKey(conn, def.Name)
	if _, ok := s.cache.Load(key); ok {
		return nil
	}
	logger := log.WithFields(log.Fields{"table": def.Name, "dialect": s.dialect.Name})

	exists, err := s.dialect.TableExists(ctx, conn, def.Name)
	if err != nil {
		return errors.Wrapf(err, "probe table %s", def.Name)
	}
	var stmts []string
	if !exists {
		stmts = append(stmts, def.CreateSQL(s.dialect))
		logger.Info("creating table")
	} else {
		var missing []string
		for _, c := range def.Columns {
			ok, err := s.dialect.ColumnExists(ctx, conn, def.Name, c.Name)
			if err != nil {
				return errors.Wrapf(err, "probe column %s.%s", def.Name, c.Name)
			}
			if !ok {
				missing = append(missing, c.Def(s.dialect))
			}
		}
		if len(missing) > 0 {
			logger.WithField("columns", len(missing)).Info("adding columns")
			if err := s.addColumns(ctx, conn, def.Name, missing); err != nil {
				return err
			}
		}
	}
	stmts = append(stmts, def.IndexSQL(s.dialect)...)
	n, err := db.ApplyDDL(ctx, conn, stmts)
	s.ddl.Inc(int64(n))
	if err != nil {
		return errors.Wrapf(err, "sync %s", def.Name)
	}
	s.cache.Store(key, struct{}{})
	return nil
}

// addColumns runs the alter statements in one transaction so that a
// partially extended table is never observed.
func (s *Synchronizer) addColumns(ctx context.Context, conn *sqlx.DB, table string, defs []string) error {
	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin alter")
	}
	n, err := db.ApplyDDL(ctx, tx, s.dialect.AddColumns(table, defs))
	if err != nil {
		_ = tx.Rollback()
		return errors.Wrapf(err, "alter %s", table)
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrapf(err, "commit alter %s", table)
	}
	s.ddl.Inc(int64(n))
	return nil
}

// EnsureAll synchronizes defs in order and stops at the first failure.
func (s *Synchronizer) EnsureAll(ctx context.Context, conn *sqlx.DB, defs []TableDef) error {
	for _, def := range defs {
		if err := s.Ensure(ctx, conn, def); err != nil {
			return err
		}
	}
	return nil
}
