package dsl

import (
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"jds/internal/entity"
	"jds/internal/field"
)

// ErrInvalidSchema wraps the lint issues that stop a registration.
var ErrInvalidSchema = errors.New("invalid entity declarations")

// Register lints the declarations and registers each one as a dynamic
// entity type. A declaration inherits the fields of declared ancestors.
// Every new type is instantiated once so field conflicts surface here.
func Register(types *entity.Types, entities []*Entity) error {
	if issues := Lint(entities, types); len(issues) > 0 {
		msgs := make([]string, 0, len(issues))
		for _, i := range issues {
			msgs = append(msgs, i.String())
		}
		return errors.Wrap(ErrInvalidSchema, strings.Join(msgs, "; "))
	}
	r := newResolver(types, entities)
	for _, e := range entities {
		slots, err := slotsOf(r, e)
		if err != nil {
			return err
		}
		var parent int64
		if ext := e.Extends(); ext != "" {
			parent, _ = r.target(e, ext)
			if r.declared(e, ext) == nil {
				log.WithFields(log.Fields{"entity": e.FQN(), "parent": parent}).
					Debug("parent registered in code, its fields are not inherited")
			}
		}
		id := e.ID()
		d := entity.Descriptor{
			ID:          id,
			Name:        e.Name,
			Version:     e.Version(),
			Parent:      parent,
			Description: e.Options["description"],
			New: func(t *entity.Types) entity.Persistable {
				return entity.NewDynamic(t, id, slots)
			},
		}
		if err := types.Register(d); err != nil {
			return errors.Wrapf(err, "register %s", e.FQN())
		}
	}
	for _, e := range entities {
		p, err := types.New(e.ID())
		if err != nil {
			return err
		}
		if err := p.Base().Err(); err != nil {
			return errors.Wrapf(err, "bind %s", e.FQN())
		}
	}
	log.WithField("entities", len(entities)).Info("dsl entities registered")
	return nil
}

// slotsOf returns the slots of the declared ancestors followed by e's own.
func slotsOf(r *resolver, e *Entity) ([]entity.Slot, error) {
	var chain []*Entity
	for cur := e; cur != nil; {
		chain = append([]*Entity{cur}, chain...)
		ext := cur.Extends()
		if ext == "" {
			break
		}
		cur = r.declared(cur, ext)
	}
	var slots []entity.Slot
	for _, decl := range chain {
		for _, f := range decl.Fields {
			s, err := slotOf(r, decl, f)
			if err != nil {
				return nil, err
			}
			slots = append(slots, s)
		}
	}
	return slots, nil
}

func slotOf(r *resolver, e *Entity, f Field) (entity.Slot, error) {
	t, ok := FieldType(f)
	if !ok {
		return entity.Slot{}, errors.Errorf("%s.%s: unknown type %q", e.FQN(), f.Name, typeLabel(f))
	}
	s := entity.Slot{Field: field.Field{
		ID:          f.ID(),
		Name:        f.Name,
		Type:        t,
		Description: f.Options["description"],
		Tags:        f.Tags(),
	}}
	switch t {
	case field.TypeEnum, field.TypeEnumCollection:
		s.Enum = f.Enum
		// a catalog-bound enum keeps the catalog's field metadata
		if len(s.Enum) == 0 && r.types != nil {
			if e, ok := r.types.Fields().Enum(s.Field.ID); ok {
				s.Field, s.Enum = e.Field, e.Values
			}
		}
	case field.TypeEntity, field.TypeEntityCollection:
		s.Child, _ = r.target(e, f.RefTarget)
	}
	return s, nil
}
