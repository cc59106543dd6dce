package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"

	"jds/internal/config"
	"jds/internal/db"
	"jds/internal/dialect"
	"jds/internal/dictionary"
	"jds/internal/dsl"
	"jds/internal/engine"
	"jds/internal/entity"
	"jds/internal/field"
	"jds/internal/reference"
)

// app holds everything a command needs once the store is open.
type app struct {
	cfg     config.Config
	conn    *sqlx.DB
	alts    map[string]*sqlx.DB
	types   *entity.Types
	decls   []*dsl.Entity
	catalog reference.Catalog
	engine  *engine.Engine
	metrics io.Closer
}

func (a *app) Close() {
	if a.metrics != nil {
		_ = a.metrics.Close()
	}
	db.CloseAll(a.alts)
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			log.WithError(err).Warn("close store connection")
		}
	}
}

func dirExists(dir string) bool {
	st, err := os.Stat(dir)
	return err == nil && st.IsDir()
}

// restoreSnapshot seeds reg from the snapshot file when it exists.
func restoreSnapshot(reg *field.Registry, path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "open snapshot")
	}
	defer f.Close()
	if err := reg.ReadSnapshot(f); err != nil {
		return errors.Wrapf(err, "restore %s", path)
	}
	log.WithFields(log.Fields{"path": path, "fields": len(reg.AllFields())}).Info("field registry restored")
	return nil
}

// writeSnapshot writes reg to path through a temporary file; "-" means
// stdout.
func writeSnapshot(reg *field.Registry, path string, stdout io.Writer) error {
	if path == "-" {
		return reg.WriteSnapshot(stdout)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "snapshot dir")
		}
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrap(err, "create snapshot")
	}
	if err := reg.WriteSnapshot(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "close snapshot")
	}
	return errors.Wrap(os.Rename(tmp, path), "replace snapshot")
}

// loadTypes builds the entity types from the snapshot, the enum catalog
// and the DSL declarations. Missing directories count as empty.
func loadTypes(cfg config.Config) (*entity.Types, []*dsl.Entity, reference.Catalog, error) {
	reg := field.NewRegistry()
	if err := restoreSnapshot(reg, cfg.SnapshotPath); err != nil {
		return nil, nil, nil, err
	}
	types := entity.NewTypes(reg)

	catalog := reference.Catalog{}
	if dirExists(cfg.EnumsDir) {
		var err error
		if catalog, err = reference.LoadEnumCatalog(cfg.EnumsDir); err != nil {
			return nil, nil, nil, err
		}
		if err := reference.Bind(reg, catalog); err != nil {
			return nil, nil, nil, err
		}
	} else {
		log.WithField("dir", cfg.EnumsDir).Warn("enum catalog directory not found")
	}

	var decls []*dsl.Entity
	if dirExists(cfg.DSLDir) {
		var err error
		if decls, err = dsl.LoadDir(cfg.DSLDir); err != nil {
			return nil, nil, nil, err
		}
		if err := dsl.Register(types, decls); err != nil {
			return nil, nil, nil, err
		}
	} else {
		log.WithField("dir", cfg.DSLDir).Warn("dsl directory not found")
	}
	log.WithFields(log.Fields{"entities": len(decls), "enumGroups": len(catalog)}).Info("declarations loaded")
	return types, decls, catalog, nil
}

// open loads the types, connects the store and its alternates, and runs
// the schema and dictionary sync.
func open(ctx context.Context, cfg config.Config) (*app, error) {
	types, decls, catalog, err := loadTypes(cfg)
	if err != nil {
		return nil, err
	}
	d, err := dialect.ByName(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(d, cfg.DBURL)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, conn: conn, types: types, decls: decls, catalog: catalog}
	if a.alts, err = db.OpenAll(d, cfg.Alternates); err != nil {
		a.Close()
		return nil, err
	}

	scope, closer := tally.NewRootScope(tally.ScopeOptions{
		Prefix:   "jds",
		Reporter: tally.NullStatsReporter,
	}, time.Second)
	a.metrics = closer

	opts := engine.Options{
		TablePrefix:   cfg.TablePrefix,
		Alternates:    a.alts,
		Scope:         scope,
		Logger:        log.WithField("component", "engine"),
		LoadChunkSize: cfg.LoadChunkSize,
		BatchSize:     cfg.BatchSize,
		Parallelism:   cfg.SaveParallelism,
	}
	if cfg.AutoMigrate {
		dict, err := dictionary.Open(d, conn, cfg.TablePrefix)
		switch {
		case errors.Is(err, dictionary.ErrUnsupportedDialect):
			log.WithField("dialect", d.Name).Warn("reference dictionary not available")
		case err != nil:
			a.Close()
			return nil, err
		default:
			opts.Dictionary = dict
		}
	}

	a.engine = engine.New(conn, d, types, opts)
	if err := a.engine.Init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if cfg.SnapshotPath != "" {
		if err := writeSnapshot(types.Fields(), cfg.SnapshotPath, os.Stdout); err != nil {
			log.WithError(err).Warn("snapshot not written")
		}
	}
	return a, nil
}
