package entity

import (
	"math/rand"
	"reflect"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"

	"jds/internal/field"
	"jds/internal/store"
)

// ErrUnregisteredEntityType is returned for entity ids with no descriptor.
var ErrUnregisteredEntityType = errors.New("unregistered entity type")

// Persistable is implemented by every mapped type through an embedded Entity.
type Persistable interface {
	Base() *Entity
}

// Overview is the identity, versioning and parent linkage of an instance.
type Overview struct {
	EntityID           int64
	EntityVersion      int
	UUID               string
	EditVersion        int
	ParentUUID         string
	ParentCompositeKey string
	// Location is the uuid of the aggregate root. Empty on roots.
	Location        string
	LocationVersion int
	Live            bool
}

func (o Overview) Key() store.Key {
	return store.Key{UUID: o.UUID, EditVersion: o.EditVersion}
}

func (o Overview) CompositeKey() string {
	return o.Key().String()
}

// LocationOrSelf is the aggregate root uuid, the entity's own uuid on roots.
func (o Overview) LocationOrSelf() string {
	if o.Location != "" {
		return o.Location
	}
	return o.UUID
}

// RootKey is the revision key of the aggregate root.
func (o Overview) RootKey() store.Key {
	if o.Location != "" {
		return store.Key{UUID: o.Location, EditVersion: o.LocationVersion}
	}
	return o.Key()
}

// Entity holds bindings from field ids to typed value holders.
type Entity struct {
	Overview Overview

	types    *Types
	bindings map[int64]*binding
	order    []int64
	err      error
}

type binding struct {
	field  field.Field
	ptr    any
	nested *nestedSlot
}

func (b *binding) kind() field.Type { return b.field.Type }

type nestedSlot struct {
	entityID   int64
	collection bool
	get        func() []Persistable
	set        func(Persistable) error
	clear      func()
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// NewUUID returns a fresh monotonic ULID string.
func NewUUID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Init prepares e as an instance of entityID. Constructors call it before
// any Map call.
func (e *Entity) Init(types *Types, entityID int64) {
	e.types = types
	e.bindings = make(map[int64]*binding)
	e.order = nil
	e.err = nil
	e.Overview = Overview{EntityID: entityID, UUID: NewUUID(), Live: true}
	d, ok := types.Lookup(entityID)
	if !ok {
		e.fail(errors.Wrapf(ErrUnregisteredEntityType, "entity %d", entityID))
		return
	}
	e.Overview.EntityVersion = d.Version
}

func (e *Entity) Base() *Entity { return e }

// Err returns the first binding error recorded on e.
func (e *Entity) Err() error { return e.err }

func (e *Entity) Types() *Types { return e.types }

func (e *Entity) fail(err error) error {
	if e.err == nil {
		e.err = err
	}
	return err
}

// Bound reports whether fieldID has a binding on e.
func (e *Entity) Bound(fieldID int64) bool {
	_, ok := e.bindings[fieldID]
	return ok
}

// FieldIDs returns bound field ids in binding order.
func (e *Entity) FieldIDs() []int64 {
	return append([]int64(nil), e.order...)
}

// FieldOf returns the metadata of a bound field.
func (e *Entity) FieldOf(fieldID int64) (field.Field, bool) {
	b, ok := e.bindings[fieldID]
	if !ok {
		return field.Field{}, false
	}
	return b.field, true
}

// Children returns the entities held by a nested slot.
func (e *Entity) Children(fieldID int64) []Persistable {
	b, ok := e.bindings[fieldID]
	if !ok || b.nested == nil {
		return nil
	}
	return b.nested.get()
}

// ChildType returns the declared entity type of a nested slot.
func (e *Entity) ChildType(fieldID int64) (int64, bool) {
	b, ok := e.bindings[fieldID]
	if !ok || b.nested == nil {
		return 0, false
	}
	return b.nested.entityID, true
}

func isNil(p Persistable) bool {
	if p == nil {
		return true
	}
	v := reflect.ValueOf(p)
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice:
		return v.IsNil()
	}
	return false
}
