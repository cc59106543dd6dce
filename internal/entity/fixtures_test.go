package entity

import (
	"time"

	"jds/internal/field"
	"jds/internal/temporal"
)

const (
	personID   int64 = 3000
	addressID  int64 = 3001
	employeeID int64 = 3002
)

var (
	fStreet    = field.Field{ID: 101, Name: "street", Type: field.TypeString}
	fZip       = field.Field{ID: 102, Name: "zip", Type: field.TypeInt}
	fName      = field.Field{ID: 201, Name: "name", Type: field.TypeString}
	fAge       = field.Field{ID: 202, Name: "age", Type: field.TypeInt}
	fBorn      = field.Field{ID: 203, Name: "born", Type: field.TypeDate}
	fScores    = field.Field{ID: 204, Name: "scores", Type: field.TypeDoubleCollection}
	fWake      = field.Field{ID: 205, Name: "wake", Type: field.TypeTime}
	fLeave     = field.Field{ID: 206, Name: "leave", Type: field.TypePeriod}
	fPhoto     = field.Field{ID: 207, Name: "photo", Type: field.TypeBlob}
	fSalary    = field.Field{ID: 301, Name: "salary", Type: field.TypeDouble}
	eStatus    = field.Enum{Field: field.Field{ID: 211, Name: "status", Type: field.TypeEnum}, Values: []string{"NEW", "ACTIVE", "SUSPENDED", "CLOSED"}}
	eRoles     = field.Enum{Field: field.Field{ID: 212, Name: "roles", Type: field.TypeEnumCollection}, Values: []string{"ADMIN", "USER", "GUEST"}}
	feHome     = field.Entity{Field: field.Field{ID: 221, Name: "home", Type: field.TypeEntity}, EntityID: addressID}
	fePrevious = field.Entity{Field: field.Field{ID: 222, Name: "previous", Type: field.TypeEntityCollection}, EntityID: addressID}
)

type Address struct {
	Entity
	Street string
	Zip    int32
}

func NewAddress(t *Types) *Address {
	a := &Address{}
	a.Init(t, addressID)
	a.MapString(fStreet, &a.Street)
	a.MapInt(fZip, &a.Zip)
	return a
}

type Person struct {
	Entity
	Name     string
	Age      int32
	Born     time.Time
	Scores   []float64
	Wake     temporal.TimeOfDay
	Leave    temporal.Period
	Photo    []byte
	Status   int
	Roles    []int
	Home     *Address
	Previous []*Address
}

func (p *Person) bindPerson() {
	p.Status = -1
	p.MapString(fName, &p.Name)
	p.MapInt(fAge, &p.Age)
	p.MapDate(fBorn, &p.Born)
	p.MapDoubles(fScores, &p.Scores)
	p.MapTime(fWake, &p.Wake)
	p.MapPeriod(fLeave, &p.Leave)
	p.MapBlob(fPhoto, &p.Photo)
	p.MapEnum(eStatus, &p.Status)
	p.MapEnums(eRoles, &p.Roles)
	MapEntity(&p.Entity, feHome, &p.Home)
	MapEntities(&p.Entity, fePrevious, &p.Previous)
}

func NewPerson(t *Types) *Person {
	p := &Person{}
	p.Init(t, personID)
	p.bindPerson()
	return p
}

type Employee struct {
	Person
	Salary float64
}

func NewEmployee(t *Types) *Employee {
	e := &Employee{}
	e.Init(t, employeeID)
	e.bindPerson()
	e.MapDouble(fSalary, &e.Salary)
	return e
}

func newTypes() *Types {
	t := NewTypes(field.NewRegistry())
	must(t.Register(Descriptor{ID: addressID, Name: "Address", Version: 1, New: func(t *Types) Persistable { return NewAddress(t) }}))
	must(t.Register(Descriptor{ID: personID, Name: "Person", Version: 2, New: func(t *Types) Persistable { return NewPerson(t) }}))
	must(t.Register(Descriptor{ID: employeeID, Name: "Employee", Version: 1, Parent: personID, New: func(t *Types) Persistable { return NewEmployee(t) }}))
	return t
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func samplePerson(t *Types) *Person {
	p := NewPerson(t)
	p.Name = "Ada"
	p.Age = 36
	p.Born = time.Date(1815, 12, 10, 0, 0, 0, 0, time.UTC)
	p.Scores = []float64{1.5, 2.5}
	p.Wake = temporal.NewTimeOfDay(6, 30, 0, 0)
	p.Leave = temporal.Period{Days: 12}
	p.Photo = []byte{1, 2, 3}
	p.Status = 2
	p.Roles = []int{0, 2}
	p.Home = NewAddress(t)
	p.Home.Street = "Main"
	p.Home.Zip = 1000
	for _, s := range []string{"First", "Second"} {
		a := NewAddress(t)
		a.Street = s
		p.Previous = append(p.Previous, a)
	}
	return p
}
