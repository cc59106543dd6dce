package entity

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jds/internal/field"
	"jds/internal/store"
)

func TestNewRegistersMembership(t *testing.T) {
	types := newTypes()
	p, err := types.New(employeeID)
	require.NoError(t, err)

	e := p.(*Employee)
	assert.Equal(t, employeeID, e.Overview.EntityID)
	assert.Equal(t, 1, e.Overview.EntityVersion)
	assert.True(t, e.Overview.Live)
	assert.NotEmpty(t, e.Overview.UUID)

	fields := types.Fields().Fields(employeeID)
	assert.Contains(t, fields, fSalary.ID)
	assert.Contains(t, fields, fName.ID)
	assert.Equal(t, []int64{eStatus.Field.ID, eRoles.Field.ID}, types.Fields().Enums(employeeID))
}

func TestUnregisteredType(t *testing.T) {
	types := newTypes()
	_, err := types.New(999)
	assert.True(t, errors.Is(err, ErrUnregisteredEntityType))
}

func TestMapIncorrectFieldType(t *testing.T) {
	types := newTypes()
	a := NewAddress(types)
	var n int64
	err := a.MapLong(fStreet, &n)
	assert.True(t, errors.Is(err, field.ErrIncorrectFieldType))
	assert.True(t, errors.Is(a.Err(), field.ErrIncorrectFieldType))
}

func TestMapAlreadyBound(t *testing.T) {
	types := newTypes()
	p := NewPerson(types)
	var other []*Address
	err := MapEntities(&p.Entity, field.Entity{Field: feHome.Field, EntityID: addressID}, &other)
	// different field type for the same id is rejected before the slot check
	assert.True(t, errors.Is(err, field.ErrIncorrectFieldType))

	var again *Address
	err = MapEntity(&p.Entity, feHome, &again)
	assert.True(t, errors.Is(err, field.ErrAlreadyBound))

	err = MapEntity(&p.Entity, field.Entity{Field: field.Field{ID: fName.ID, Name: "name", Type: field.TypeEntity}}, &again)
	assert.True(t, errors.Is(err, field.ErrConflictingBinding))
}

func TestAllEntitiesOrderAndRestart(t *testing.T) {
	types := newTypes()
	p := samplePerson(types)
	p.Home.Street = "Home"

	walk := func(includeSelf bool) []string {
		var out []string
		for e := range p.AllEntities(includeSelf) {
			if e == &p.Entity {
				out = append(out, "root")
				continue
			}
			for _, c := range []*Address{p.Home, p.Previous[0], p.Previous[1]} {
				if e == &c.Entity {
					out = append(out, c.Street)
				}
			}
		}
		return out
	}
	assert.Equal(t, []string{"root", "Home", "First", "Second"}, walk(true))
	assert.Equal(t, []string{"root", "Home", "First", "Second"}, walk(true))
	assert.Equal(t, []string{"Home", "First", "Second"}, walk(false))

	n := 0
	for range p.AllEntities(true) {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestStandardizeIdentitiesDeterministic(t *testing.T) {
	types := newTypes()
	p := samplePerson(types)
	p.Overview.UUID = "root"

	p.StandardizeIdentities("root")
	first := []string{p.Home.Overview.UUID, p.Previous[0].Overview.UUID, p.Previous[1].Overview.UUID}
	assert.Equal(t, []string{"root.3001", "root.3001.0", "root.3001.1"}, first)

	p.StandardizeIdentities("root")
	second := []string{p.Home.Overview.UUID, p.Previous[0].Overview.UUID, p.Previous[1].Overview.UUID}
	assert.Equal(t, first, second)
}

type relocation struct {
	Entity
	From *Address
	To   *Address
}

func TestStandardizeIdentitiesSharedChildType(t *testing.T) {
	types := newTypes()
	const relocationID int64 = 3010
	require.NoError(t, types.Register(Descriptor{ID: relocationID, Name: "Relocation", Version: 1, New: func(t *Types) Persistable {
		r := &relocation{}
		r.Init(t, relocationID)
		MapEntity(&r.Entity, field.Entity{Field: field.Field{ID: 231, Name: "from", Type: field.TypeEntity}, EntityID: addressID}, &r.From)
		MapEntity(&r.Entity, field.Entity{Field: field.Field{ID: 232, Name: "to", Type: field.TypeEntity}, EntityID: addressID}, &r.To)
		return r
	}}))
	p, err := types.New(relocationID)
	require.NoError(t, err)
	r := p.(*relocation)
	r.From, r.To = NewAddress(types), NewAddress(types)

	// both single slots of one child type derive the same id
	r.StandardizeIdentities("root")
	assert.Equal(t, "root.3001", r.From.Overview.UUID)
	assert.Equal(t, r.From.Overview.UUID, r.To.Overview.UUID)
}

func TestAssignFlattensIntoStep(t *testing.T) {
	types := newTypes()
	p := samplePerson(types)
	p.StandardizeIdentities(p.Overview.UUID)

	b := store.NewBatch()
	for e := range p.AllEntities(true) {
		e.Assign(b, types.Depth(e.Overview.EntityID))
	}
	steps := b.Steps()
	require.Len(t, steps, 1)
	s := steps[0]

	ck := p.Overview.CompositeKey()
	assert.Len(t, s.Overviews, 4)
	assert.Equal(t, "Ada", s.Values[store.Text][ck][fName.ID])
	assert.Equal(t, int64(36), s.Values[store.Integer][ck][fAge.ID])
	assert.Equal(t, int64(2), s.Values[store.Enum][ck][eStatus.Field.ID])
	assert.Equal(t, []any{int64(0), int64(2)}, s.Collections[store.EnumCollection][ck][eRoles.Field.ID])
	assert.Equal(t, "P12D", s.Values[store.Period][ck][fLeave.ID])

	prev := s.Bindings[ck][fePrevious.Field.ID]
	require.Len(t, prev, 2)
	assert.Equal(t, 1, prev[1].Seq)
	assert.Equal(t, p.Previous[1].Overview.Key(), prev[1].Child)

	child := s.Overviews[p.Home.Overview.CompositeKey()]
	assert.Equal(t, p.Overview.Key(), child.Parent)
	assert.Equal(t, p.Overview.UUID, p.Home.Overview.Location)
}

func TestAssignUsesInheritanceDepth(t *testing.T) {
	types := newTypes()
	emp := NewEmployee(types)
	emp.Home = NewAddress(types)
	b := store.NewBatch()
	for e := range emp.AllEntities(true) {
		e.Assign(b, types.Depth(e.Overview.EntityID))
	}
	steps := b.Steps()
	require.Len(t, steps, 2)
	assert.Contains(t, steps[0].Overviews, emp.Home.Overview.CompositeKey())
	assert.Contains(t, steps[1].Overviews, emp.Overview.CompositeKey())
}

func TestPopulatePropertyCoercion(t *testing.T) {
	types := newTypes()
	p := NewPerson(types)

	require.NoError(t, p.PopulateProperty(field.TypeInt, fAge.ID, "41.000"))
	assert.Equal(t, int32(41), p.Age)
	require.NoError(t, p.PopulateProperty(field.TypeDate, fBorn.ID, "1815-12-10 00:00:00+00:00"))
	assert.Equal(t, 1815, p.Born.Year())
	require.NoError(t, p.PopulateProperty(field.TypeTime, fWake.ID, int64(time.Hour)))
	assert.Equal(t, "01:00:00", p.Wake.String())
	require.NoError(t, p.PopulateProperty(field.TypeDoubleCollection, fScores.ID, []byte("2.25")))
	require.NoError(t, p.PopulateProperty(field.TypeDoubleCollection, fScores.ID, float32(4)))
	assert.Equal(t, []float64{2.25, 4}, p.Scores)
	require.NoError(t, p.PopulateProperty(field.TypeBlob, fPhoto.ID, nil))
	assert.Equal(t, []byte{}, p.Photo)

	err := p.PopulateProperty(field.TypeInt, fAge.ID, struct{}{})
	assert.Error(t, err)
	assert.NoError(t, p.PopulateProperty(field.TypeString, 99999, "ignored"))
}

func TestPopulateEnumOutOfRange(t *testing.T) {
	types := newTypes()
	p := NewPerson(types)

	require.NoError(t, p.PopulateProperty(field.TypeEnum, eStatus.Field.ID, int64(2)))
	assert.Equal(t, 2, p.Status)
	v, _ := eStatus.Value(p.Status)
	assert.Equal(t, "SUSPENDED", v)

	require.NoError(t, p.PopulateProperty(field.TypeEnum, eStatus.Field.ID, int64(9)))
	assert.Equal(t, -1, p.Status)

	require.NoError(t, p.PopulateProperty(field.TypeEnumCollection, eRoles.Field.ID, int64(1)))
	require.NoError(t, p.PopulateProperty(field.TypeEnumCollection, eRoles.Field.ID, int64(7)))
	require.NoError(t, p.PopulateProperty(field.TypeEnumCollection, eRoles.Field.ID, "GUEST"))
	assert.Equal(t, []int{1, 2}, p.Roles)
}

func TestPopulateNestedEntity(t *testing.T) {
	types := newTypes()
	p := NewPerson(types)

	c, err := p.PopulateNestedEntity(fePrevious.Field.ID, addressID, Overview{UUID: "x", EditVersion: 3, Live: true})
	require.NoError(t, err)
	assert.Len(t, p.Previous, 1)
	assert.Same(t, c.(*Address), p.Previous[0])
	assert.Equal(t, p.Overview.UUID, p.Previous[0].Overview.ParentUUID)
	assert.Equal(t, p.Overview.CompositeKey(), p.Previous[0].Overview.ParentCompositeKey)
	assert.Equal(t, 1, p.Previous[0].Overview.EntityVersion)

	_, err = p.PopulateNestedEntity(fName.ID, addressID, Overview{UUID: "y"})
	assert.Error(t, err)
	_, err = p.PopulateNestedEntity(feHome.Field.ID, 4242, Overview{UUID: "z"})
	assert.True(t, errors.Is(err, ErrUnregisteredEntityType))
}

func TestCopySkipsUnmatchedCategories(t *testing.T) {
	types := newTypes()
	src := samplePerson(types)
	dst := NewEmployee(types)
	dst.Salary = 10

	require.NoError(t, dst.Copy(src))
	assert.Equal(t, src.Overview.UUID, dst.Overview.UUID)
	assert.Equal(t, "Ada", dst.Name)
	assert.Equal(t, src.Roles, dst.Roles)
	assert.Equal(t, 10.0, dst.Salary)
	require.NotNil(t, dst.Home)
	assert.NotSame(t, src.Home, dst.Home)
	assert.Equal(t, "Main", dst.Home.Street)
	require.Len(t, dst.Previous, 2)

	src.Scores[0] = 99
	assert.Equal(t, 1.5, dst.Scores[0])

	addr := NewAddress(types)
	require.NoError(t, addr.Copy(src))
	assert.Empty(t, addr.Street)
}

func TestAtomicValue(t *testing.T) {
	types := newTypes()
	p := samplePerson(types)

	assert.Equal(t, "Ada", p.AtomicValue(fName.ID, 0))
	assert.Equal(t, int64(2), p.AtomicValue(eStatus.Field.ID, 0))
	assert.Equal(t, true, p.AtomicValue(eRoles.Field.ID, 2))
	assert.Equal(t, false, p.AtomicValue(eRoles.Field.ID, 1))
	assert.Equal(t, p.Home.Overview.UUID, p.AtomicValue(feHome.Field.ID, 0))
	assert.Nil(t, p.AtomicValue(fPhoto.ID, 0))
	assert.Nil(t, p.AtomicValue(fScores.ID, 0))
	assert.Nil(t, p.AtomicValue(42, 0))

	p.Home = nil
	p.Status = -1
	assert.Nil(t, p.AtomicValue(feHome.Field.ID, 0))
	assert.Nil(t, p.AtomicValue(eStatus.Field.ID, 0))
}

func TestExportImport(t *testing.T) {
	types := newTypes()
	p := samplePerson(types)
	o := p.Export()
	assert.Equal(t, 4, o.Count())

	back, err := Import(types, o)
	require.NoError(t, err)
	q := back.(*Person)
	assert.Equal(t, p.Overview.UUID, q.Overview.UUID)
	assert.Equal(t, p.Name, q.Name)
	assert.True(t, p.Born.Equal(q.Born))
	assert.Equal(t, p.Wake, q.Wake)
	assert.Equal(t, p.Leave, q.Leave)
	assert.Equal(t, p.Photo, q.Photo)
	assert.Equal(t, p.Status, q.Status)
	assert.Equal(t, p.Roles, q.Roles)
	assert.Equal(t, p.Scores, q.Scores)
	require.NotNil(t, q.Home)
	assert.Equal(t, "Main", q.Home.Street)
	assert.Equal(t, int32(1000), q.Home.Zip)
	streets := []string{q.Previous[0].Street, q.Previous[1].Street}
	assert.True(t, slices.Equal([]string{"First", "Second"}, streets))
}

func TestDynamicEntity(t *testing.T) {
	types := NewTypes(field.NewRegistry())
	slots := []Slot{
		{Field: field.Field{ID: 9001, Name: "title", Type: field.TypeString}},
		{Field: field.Field{ID: 9002, Name: "state", Type: field.TypeEnum}, Enum: []string{"OPEN", "DONE"}},
		{Field: field.Field{ID: 9003, Name: "tags", Type: field.TypeStringCollection}},
	}
	require.NoError(t, types.Register(Descriptor{ID: 9000, Name: "Task", New: func(t *Types) Persistable { return NewDynamic(t, 9000, slots) }}))

	p, err := types.New(9000)
	require.NoError(t, err)
	d := p.(*Dynamic)
	require.NoError(t, d.Set(9001, "write docs"))
	require.NoError(t, d.Set(9002, "DONE"))
	require.NoError(t, d.Set(9003, []string{"a", "b"}))
	require.NoError(t, d.Set(9003, []string{"c"}))

	v, ok := d.Get(9001)
	assert.True(t, ok)
	assert.Equal(t, "write docs", v)
	v, _ = d.Get(9002)
	assert.Equal(t, 1, v)
	v, _ = d.Get(9003)
	assert.Equal(t, []string{"c"}, v)
	assert.Error(t, d.Set(1, "x"))
}
