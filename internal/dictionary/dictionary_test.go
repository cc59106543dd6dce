package dictionary

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jds/internal/db"
	"jds/internal/dialect"
	"jds/internal/entity"
	"jds/internal/field"
)

func newTypes(t *testing.T, status []string) *entity.Types {
	types := entity.NewTypes(field.NewRegistry())
	base := []entity.Slot{
		{Field: field.Field{ID: 9001, Name: "code", Type: field.TypeString, Description: "Document code"}},
		{Field: field.Field{ID: 9002, Name: "status", Type: field.TypeEnum}, Enum: status},
	}
	derived := append(append([]entity.Slot(nil), base...), entity.Slot{Field: field.Field{ID: 9003, Name: "amount", Type: field.TypeDouble}})
	require.NoError(t, types.Register(entity.Descriptor{ID: 900, Name: "Document", Version: 1,
		New: func(t *entity.Types) entity.Persistable { return entity.NewDynamic(t, 900, base) }}))
	require.NoError(t, types.Register(entity.Descriptor{ID: 901, Name: "Invoice", Version: 2, Parent: 900,
		New: func(t *entity.Types) entity.Persistable { return entity.NewDynamic(t, 901, derived) }}))
	return types
}

func open(t *testing.T) *Dictionary {
	d, err := dialect.ByName("sqlite")
	require.NoError(t, err)
	conn, err := db.Open(d, filepath.Join(t.TempDir(), "dict.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	dict, err := Open(d, conn, "jds_")
	require.NoError(t, err)
	return dict
}

func count(t *testing.T, dict *Dictionary, model any) int64 {
	var n int64
	require.NoError(t, dict.DB().Model(model).Count(&n).Error)
	return n
}

func TestSync(t *testing.T) {
	ctx := context.Background()
	dict := open(t)
	types := newTypes(t, []string{"OPEN", "SENT", "PAID"})

	require.NoError(t, dict.Sync(ctx, types, []int64{900, 901}))
	require.NoError(t, dict.Sync(ctx, types, []int64{900, 901}))

	assert.True(t, dict.DB().Migrator().HasTable("jds_ref_entity_inheritance"))
	assert.Equal(t, int64(len(field.AllTypes())), count(t, dict, &RefFieldType{}))
	assert.Equal(t, int64(3), count(t, dict, &RefField{}))
	assert.Equal(t, int64(2), count(t, dict, &RefEntity{}))
	assert.Equal(t, int64(3), count(t, dict, &RefEnum{}))
	assert.Equal(t, int64(1), count(t, dict, &RefEntityInheritance{}))

	var f RefField
	require.NoError(t, dict.DB().First(&f, 9001).Error)
	assert.Equal(t, "Document code", f.Description)
	assert.Equal(t, int(field.TypeString), f.TypeID)

	var e RefEntity
	require.NoError(t, dict.DB().First(&e, 901).Error)
	assert.Equal(t, "Invoice", e.Name)
	assert.Equal(t, 2, e.Version)
}

func TestSyncTrimsEnumValues(t *testing.T) {
	ctx := context.Background()
	dict := open(t)
	require.NoError(t, dict.Sync(ctx, newTypes(t, []string{"OPEN", "SENT", "PAID"}), []int64{900}))
	require.NoError(t, dict.Sync(ctx, newTypes(t, []string{"OPEN", "CLOSED"}), []int64{900}))

	var values []RefEnum
	require.NoError(t, dict.DB().Where("field_id = ?", 9002).Order("seq").Find(&values).Error)
	require.Len(t, values, 2)
	assert.Equal(t, "CLOSED", values[1].Value)
}

func TestSyncUnknownEntity(t *testing.T) {
	dict := open(t)
	err := dict.Sync(context.Background(), newTypes(t, []string{"A"}), []int64{42})
	assert.ErrorIs(t, err, entity.ErrUnregisteredEntityType)
}

func TestOpenUnsupported(t *testing.T) {
	d, err := dialect.ByName("oracle")
	require.NoError(t, err)
	_, err = Open(d, nil, "")
	assert.ErrorIs(t, err, ErrUnsupportedDialect)
}
