package api

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"jds/internal/dsl"
	"jds/internal/engine"
	"jds/internal/entity"
	"jds/internal/reference"
)

// ErrRejected marks reload input that failed to load, bind or lint.
var ErrRejected = errors.New("reload rejected")

type rejected struct{ cause error }

func (r rejected) Error() string { return ErrRejected.Error() + ": " + r.cause.Error() }
func (r rejected) Unwrap() error { return r.cause }
func (r rejected) Is(target error) bool { return target == ErrRejected }

type Options struct {
	DSLDir       string
	EnumsDir     string
	Declarations []*dsl.Entity
	Catalog      reference.Catalog
	Logger       *log.Entry
}

// Service is what the handlers share: the engine plus the declarations and
// enum catalog the running types were loaded from.
type Service struct {
	engine *engine.Engine
	log    *log.Entry

	mu       sync.RWMutex
	decls    []*dsl.Entity
	catalog  reference.Catalog
	dslDir   string
	enumsDir string
}

func NewService(e *engine.Engine, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = log.NewEntry(log.StandardLogger())
	}
	return &Service{
		engine:   e,
		log:      opts.Logger.WithField("component", "api"),
		decls:    opts.Declarations,
		catalog:  opts.Catalog,
		dslDir:   opts.DSLDir,
		enumsDir: opts.EnumsDir,
	}
}

func (s *Service) Engine() *engine.Engine { return s.engine }
func (s *Service) Types() *entity.Types { return s.engine.Types() }

func (s *Service) declarations() []*dsl.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*dsl.Entity(nil), s.decls...)
}

type ReloadResult struct {
	DSLDir     string      `json:"dslDir"`
	EnumsDir   string      `json:"enumsDir"`
	Entities   int         `json:"entities"`
	EnumGroups int         `json:"enumGroups"`
	Issues     []dsl.Issue `json:"issues,omitempty"`
}

// Reload reads the declarations and enum catalog again, binds and registers
// them, and mirrors the result into the dictionary. Empty dirs fall back to
// the ones the service was started with. Types already registered stay
// registered; a rejected reload leaves the previous declarations in place.
func (s *Service) Reload(ctx context.Context, dslDir, enumsDir string) (ReloadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dslDir == "" {
		dslDir = s.dslDir
	}
	if enumsDir == "" {
		enumsDir = s.enumsDir
	}
	res := ReloadResult{DSLDir: dslDir, EnumsDir: enumsDir}

	decls, err := dsl.LoadDir(dslDir)
	if err != nil {
		return res, rejected{errors.Wrap(err, "load dsl")}
	}
	catalog, err := reference.LoadEnumCatalog(enumsDir)
	if err != nil {
		return res, rejected{errors.Wrap(err, "load enums")}
	}
	types := s.engine.Types()
	if err := reference.Bind(types.Fields(), catalog); err != nil {
		return res, rejected{err}
	}
	if issues := dsl.Lint(decls, types); len(issues) > 0 {
		res.Issues = issues
		return res, rejected{errors.Wrap(dsl.ErrInvalidSchema, "schema has blocking issues")}
	}
	if err := dsl.Register(types, decls); err != nil {
		return res, rejected{err}
	}
	if err := s.engine.Init(ctx); err != nil {
		return res, err
	}

	s.decls, s.catalog = decls, catalog
	s.dslDir, s.enumsDir = dslDir, enumsDir
	res.Entities, res.EnumGroups = len(decls), len(catalog)
	s.log.WithFields(log.Fields{"entities": res.Entities, "enumGroups": res.EnumGroups}).Info("declarations reloaded")
	return res, nil
}
