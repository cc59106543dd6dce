package engine

import (
	"time"

	"jds/internal/entity"
	"jds/internal/field"
	"jds/internal/temporal"
)

const (
	invoiceID    int64 = 2000
	creditNoteID int64 = 2001
	addressID    int64 = 4001
	lineID       int64 = 4002
	readingID    int64 = 2100
)

var (
	fStreet  = field.Field{ID: 4101, Name: "street", Type: field.TypeString}
	fZip     = field.Field{ID: 4102, Name: "zip", Type: field.TypeInt}
	fSku     = field.Field{ID: 4201, Name: "sku", Type: field.TypeString}
	fQty     = field.Field{ID: 4202, Name: "qty", Type: field.TypeInt}
	fCode    = field.Field{ID: 5001, Name: "code", Type: field.TypeString}
	fTags    = field.Field{ID: 5003, Name: "tags", Type: field.TypeStringCollection}
	fIssued  = field.Field{ID: 5004, Name: "issued", Type: field.TypeDate}
	fTotal   = field.Field{ID: 5007, Name: "total", Type: field.TypeDouble}
	fPaid    = field.Field{ID: 5008, Name: "paid", Type: field.TypeBoolean}
	fReason  = field.Field{ID: 5101, Name: "reason", Type: field.TypeString}
	eStatus  = field.Enum{Field: field.Field{ID: 5002, Name: "status", Type: field.TypeEnum}, Values: []string{"DRAFT", "SENT", "PAID", "VOID"}}
	feLines  = field.Entity{Field: field.Field{ID: 5005, Name: "lines", Type: field.TypeEntityCollection}, EntityID: lineID}
	feBillTo = field.Entity{Field: field.Field{ID: 5006, Name: "billTo", Type: field.TypeEntity}, EntityID: addressID}
)

type Address struct {
	entity.Entity
	Street string
	Zip    int32
}

func NewAddress(t *entity.Types) *Address {
	a := &Address{}
	a.Init(t, addressID)
	a.MapString(fStreet, &a.Street)
	a.MapInt(fZip, &a.Zip)
	return a
}

type Line struct {
	entity.Entity
	Sku string
	Qty int32
}

func NewLine(t *entity.Types, sku string, qty int32) *Line {
	l := &Line{Sku: sku, Qty: qty}
	l.Init(t, lineID)
	l.MapString(fSku, &l.Sku)
	l.MapInt(fQty, &l.Qty)
	return l
}

type Invoice struct {
	entity.Entity
	Code   string
	Status int
	Tags   []string
	Issued time.Time
	Total  float64
	Paid   bool
	Lines  []*Line
	BillTo *Address
}

func (i *Invoice) bindInvoice() {
	i.Status = -1
	i.MapString(fCode, &i.Code)
	i.MapEnum(eStatus, &i.Status)
	i.MapStrings(fTags, &i.Tags)
	i.MapDate(fIssued, &i.Issued)
	i.MapDouble(fTotal, &i.Total)
	i.MapBool(fPaid, &i.Paid)
	entity.MapEntities(&i.Entity, feLines, &i.Lines)
	entity.MapEntity(&i.Entity, feBillTo, &i.BillTo)
}

func NewInvoice(t *entity.Types) *Invoice {
	i := &Invoice{}
	i.Init(t, invoiceID)
	i.bindInvoice()
	return i
}

type CreditNote struct {
	Invoice
	Reason string
}

func NewCreditNote(t *entity.Types) *CreditNote {
	c := &CreditNote{}
	c.Init(t, creditNoteID)
	c.bindInvoice()
	c.MapString(fReason, &c.Reason)
	return c
}

var (
	fCounter    = field.Field{ID: 7101, Name: "counter", Type: field.TypeLong}
	fRatio      = field.Field{ID: 7102, Name: "ratio", Type: field.TypeFloat}
	fTakenAt    = field.Field{ID: 7103, Name: "takenAt", Type: field.TypeDateTime}
	fSentAt     = field.Field{ID: 7104, Name: "sentAt", Type: field.TypeZonedDateTime}
	fElapsed    = field.Field{ID: 7105, Name: "elapsed", Type: field.TypeDuration}
	fOpensAt    = field.Field{ID: 7106, Name: "opensAt", Type: field.TypeTime}
	fWarranty   = field.Field{ID: 7107, Name: "warranty", Type: field.TypePeriod}
	fExpiry     = field.Field{ID: 7108, Name: "expiry", Type: field.TypeYearMonth}
	fBirthday   = field.Field{ID: 7109, Name: "birthday", Type: field.TypeMonthDay}
	fPayload    = field.Field{ID: 7110, Name: "payload", Type: field.TypeBlob}
	eChannels   = field.Enum{Field: field.Field{ID: 7111, Name: "channels", Type: field.TypeEnumCollection}, Values: []string{"SMS", "MAIL", "PUSH"}}
	fOffsets    = field.Field{ID: 7112, Name: "offsets", Type: field.TypeLongCollection}
	fWeights    = field.Field{ID: 7113, Name: "weights", Type: field.TypeFloatCollection}
	fSlots      = field.Field{ID: 7114, Name: "slots", Type: field.TypeIntCollection}
	fSamples    = field.Field{ID: 7115, Name: "samples", Type: field.TypeDoubleCollection}
	fCheckpoint = field.Field{ID: 7116, Name: "checkpoints", Type: field.TypeDateTimeCollection}
)

// Reading binds one field of every value category the invoice fixtures
// leave out.
type Reading struct {
	entity.Entity
	Counter     int64
	Ratio       float32
	TakenAt     time.Time
	SentAt      time.Time
	Elapsed     time.Duration
	OpensAt     temporal.TimeOfDay
	Warranty    temporal.Period
	Expiry      temporal.YearMonth
	Birthday    temporal.MonthDay
	Payload     []byte
	Channels    []int
	Offsets     []int64
	Weights     []float32
	Slots       []int32
	Samples     []float64
	Checkpoints []time.Time
}

func NewReading(t *entity.Types) *Reading {
	r := &Reading{}
	r.Init(t, readingID)
	r.MapLong(fCounter, &r.Counter)
	r.MapFloat(fRatio, &r.Ratio)
	r.MapDateTime(fTakenAt, &r.TakenAt)
	r.MapZonedDateTime(fSentAt, &r.SentAt)
	r.MapDuration(fElapsed, &r.Elapsed)
	r.MapTime(fOpensAt, &r.OpensAt)
	r.MapPeriod(fWarranty, &r.Warranty)
	r.MapYearMonth(fExpiry, &r.Expiry)
	r.MapMonthDay(fBirthday, &r.Birthday)
	r.MapBlob(fPayload, &r.Payload)
	r.MapEnums(eChannels, &r.Channels)
	r.MapLongs(fOffsets, &r.Offsets)
	r.MapFloats(fWeights, &r.Weights)
	r.MapInts(fSlots, &r.Slots)
	r.MapDoubles(fSamples, &r.Samples)
	r.MapDateTimes(fCheckpoint, &r.Checkpoints)
	return r
}

func sampleReading(t *entity.Types) *Reading {
	r := NewReading(t)
	r.Counter = 1 << 40
	r.Ratio = 0.75
	r.TakenAt = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	r.SentAt = time.Date(2024, 5, 6, 9, 8, 9, 0, time.FixedZone("CEST", 2*60*60))
	r.Elapsed = 90 * time.Minute
	r.OpensAt = temporal.NewTimeOfDay(8, 30, 0, 0)
	r.Warranty = temporal.Period{Years: 2, Months: 6}
	r.Expiry = temporal.YearMonth{Year: 2027, Month: time.November}
	r.Birthday = temporal.MonthDay{Month: time.February, Day: 29}
	r.Payload = []byte{0x00, 0x7f, 0xff}
	r.Channels = []int{2, 0}
	r.Offsets = []int64{-1, 1 << 33}
	r.Weights = []float32{1.5, 2.25}
	r.Slots = []int32{3, 1, 2}
	r.Samples = []float64{0.125, -4}
	r.Checkpoints = []time.Time{
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC),
	}
	return r
}

func descriptors() []entity.Descriptor {
	return []entity.Descriptor{
		{ID: addressID, Name: "Address", Version: 1, New: func(t *entity.Types) entity.Persistable { return NewAddress(t) }},
		{ID: lineID, Name: "Line", Version: 1, New: func(t *entity.Types) entity.Persistable { return NewLine(t, "", 0) }},
		{ID: invoiceID, Name: "Invoice", Version: 3, New: func(t *entity.Types) entity.Persistable { return NewInvoice(t) }},
		{ID: creditNoteID, Name: "CreditNote", Version: 1, Parent: invoiceID, New: func(t *entity.Types) entity.Persistable { return NewCreditNote(t) }},
		{ID: readingID, Name: "Reading", Version: 1, New: func(t *entity.Types) entity.Persistable { return NewReading(t) }},
	}
}

// newTypes registers every fixture type except the ones listed in skip.
func newTypes(skip ...int64) *entity.Types {
	t := entity.NewTypes(field.NewRegistry())
outer:
	for _, d := range descriptors() {
		for _, id := range skip {
			if d.ID == id {
				continue outer
			}
		}
		if err := t.Register(d); err != nil {
			panic(err)
		}
	}
	return t
}

func sampleInvoice(t *entity.Types, code string) *Invoice {
	i := NewInvoice(t)
	i.Code = code
	i.Status = 2
	i.Tags = []string{"urgent", "export"}
	i.Issued = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	i.Total = 99.5
	i.Paid = true
	i.Lines = []*Line{NewLine(t, "A-1", 3), NewLine(t, "B-2", 1), NewLine(t, "C-3", 7)}
	i.BillTo = NewAddress(t)
	i.BillTo.Street = "Harbour Road"
	i.BillTo.Zip = 4100
	return i
}
