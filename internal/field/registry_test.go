package field

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var greeting = Field{ID: 5001, Name: "greeting", Type: TypeString, Tags: []string{"a", "b"}}

func TestBindIdempotent(t *testing.T) {
	r := NewRegistry()
	id, err := r.Bind(greeting, TypeString)
	require.NoError(t, err)
	assert.Equal(t, int64(5001), id)

	same := greeting
	same.Tags = []string{"b", "a", "a"}
	_, err = r.Bind(same, TypeString)
	require.NoError(t, err)
}

func TestBindTypeMismatch(t *testing.T) {
	r := NewRegistry()
	_, err := r.Bind(greeting, TypeLong, TypeInt)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIncorrectFieldType))
	assert.True(t, errors.Is(err, ErrTypeMismatch))
	_, ok := r.Field(5001)
	assert.False(t, ok)
}

func TestBindConflict(t *testing.T) {
	r := NewRegistry()
	_, err := r.Bind(greeting)
	require.NoError(t, err)

	other := greeting
	other.Name = "salutation"
	_, err = r.Bind(other)
	assert.True(t, errors.Is(err, ErrConflictingBinding))

	retyped := greeting
	retyped.Type = TypeBlob
	_, err = r.Bind(retyped)
	assert.True(t, errors.Is(err, ErrConflictingBinding))
}

func TestBindEnumConflict(t *testing.T) {
	r := NewRegistry()
	status := Enum{Field: Field{ID: 6001, Name: "status", Type: TypeEnum}, Values: []string{"A", "B"}}
	_, err := r.BindEnum(status)
	require.NoError(t, err)

	changed := status
	changed.Values = []string{"A", "C"}
	_, err = r.BindEnum(changed)
	assert.True(t, errors.Is(err, ErrConflictingBinding))

	_, err = r.BindEnum(Enum{Field: Field{ID: 6002, Name: "bad", Type: TypeString}})
	assert.True(t, errors.Is(err, ErrIncorrectFieldType))
}

func TestFindAllSkipsUnknown(t *testing.T) {
	r := NewRegistry()
	_, _ = r.Bind(Field{ID: 3, Name: "c", Type: TypeInt})
	_, _ = r.Bind(Field{ID: 1, Name: "a", Type: TypeInt})

	got := r.FindAll([]int64{3, 99, 1, 3})
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, int64(3), got[1].ID)
	assert.Empty(t, r.FindAll([]int64{42}))
}

func TestMembershipConcurrent(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, _ = r.Bind(greeting)
			r.MapField(2000, 5001)
			r.MapField(2000, int64(n%4))
			r.MapEnum(2000, 6001)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, []int64{0, 1, 2, 3, 5001}, r.Fields(2000))
	assert.Equal(t, []int64{6001}, r.Enums(2000))
}

func TestSnapshotRoundTrip(t *testing.T) {
	r := NewRegistry()
	_, err := r.Bind(greeting)
	require.NoError(t, err)
	_, err = r.BindEnum(Enum{Field: Field{ID: 6001, Name: "status", Type: TypeEnum}, Values: []string{"OPEN", "CLOSED"}})
	require.NoError(t, err)
	r.MapField(2000, 5001)
	r.MapEnum(2000, 6001)

	var buf bytes.Buffer
	require.NoError(t, r.WriteSnapshot(&buf))
	assert.Contains(t, buf.String(), "type: string")

	warm := NewRegistry()
	require.NoError(t, warm.ReadSnapshot(&buf))
	f, ok := warm.Field(5001)
	require.True(t, ok)
	assert.True(t, f.Equal(greeting))
	e, ok := warm.Enum(6001)
	require.True(t, ok)
	v, ok := e.Value(1)
	assert.True(t, ok)
	assert.Equal(t, "CLOSED", v)
	assert.Equal(t, []int64{5001}, warm.Fields(2000))
	assert.Equal(t, []int64{6001}, warm.Enums(2000))
}

func TestParseType(t *testing.T) {
	for _, typ := range AllTypes() {
		got, err := ParseType(typ.String())
		require.NoError(t, err)
		assert.Equal(t, typ, got)
	}
	got, err := ParseType("DateTime")
	require.NoError(t, err)
	assert.Equal(t, TypeDateTime, got)
	_, err = ParseType("money")
	assert.Error(t, err)
}
