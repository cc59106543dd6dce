package dialect

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"jds/internal/field"
)

func mustDialect(t *testing.T, name string) *Dialect {
	t.Helper()
	d, err := ByName(name)
	require.NoError(t, err)
	return d
}

func TestByName(t *testing.T) {
	for alias, want := range map[string]Kind{
		"postgresql": Postgres,
		"MySQL":      MySQL,
		"sqlite3":    SQLite,
		"mssql":      TSQL,
		"oracle":     Oracle,
	} {
		assert.Equal(t, want, mustDialect(t, alias).Kind, alias)
	}
	_, err := ByName("db2")
	assert.ErrorIs(t, err, ErrUnknownDialect)
	assert.Len(t, All(), 5)
}

func TestDataType(t *testing.T) {
	pg := mustDialect(t, "postgres")
	assert.Equal(t, "varchar(96)", pg.DataType(field.TypeString, 96))
	assert.Equal(t, "text", pg.DataType(field.TypeString, 0))
	assert.Equal(t, "varchar(96)", pg.DataType(field.TypeEntity, 0))
	assert.Equal(t, "integer", pg.DataType(field.TypeEnumCollection, 0))
	assert.Equal(t, "timestamp with time zone", pg.DataType(field.TypeZonedDateTime, 0))
	assert.Equal(t, "bigint", pg.DataType(field.TypeTime, 0))

	my := mustDialect(t, "mysql")
	assert.Equal(t, "bigint", my.DataType(field.TypeZonedDateTime, 0))
	assert.Equal(t, "tinyint(1)", my.DataType(field.TypeBoolean, 0))

	ms := mustDialect(t, "tsql")
	assert.Equal(t, "nvarchar(max)", ms.DataType(field.TypeString, 0))
	assert.Equal(t, "varbinary(256)", ms.DataType(field.TypeBlob, 256))

	ora := mustDialect(t, "oracle")
	assert.Equal(t, "VARCHAR2(32)", ora.DataType(field.TypePeriod, 0))
	assert.Equal(t, "BINARY_DOUBLE", ora.DataType(field.TypeDoubleCollection, 0))

	for _, d := range All() {
		for _, ft := range field.AllTypes() {
			assert.NotEmpty(t, d.DataType(ft, 0), "%s/%s", d, ft)
		}
	}
}

func TestAddColumns(t *testing.T) {
	defs := []string{"a integer", "b text"}
	assert.Equal(t, []string{
		"ALTER TABLE t ADD COLUMN a integer",
		"ALTER TABLE t ADD COLUMN b text",
	}, mustDialect(t, "sqlite").AddColumns("t", defs))
	assert.Equal(t, []string{"ALTER TABLE t ADD COLUMN a integer, ADD COLUMN b text"}, mustDialect(t, "postgres").AddColumns("t", defs))
	assert.Equal(t, []string{"ALTER TABLE t ADD COLUMN a integer, ADD COLUMN b text"}, mustDialect(t, "mysql").AddColumns("t", defs))
	assert.Equal(t, []string{"ALTER TABLE t ADD a integer, b text"}, mustDialect(t, "tsql").AddColumns("t", defs))
	assert.Equal(t, []string{"ALTER TABLE t ADD (a integer, b text)"}, mustDialect(t, "oracle").AddColumns("t", defs))
	assert.Nil(t, mustDialect(t, "oracle").AddColumns("t", nil))
}

func TestUpsertShapes(t *testing.T) {
	keys := []string{"id", "field_id"}
	vals := []string{"val"}

	assert.Equal(t,
		"INSERT INTO t (id, field_id, val) VALUES (?, ?, ?), (?, ?, ?) ON CONFLICT (id, field_id) DO UPDATE SET val = EXCLUDED.val",
		mustDialect(t, "postgres").Upsert("t", keys, vals, 2))
	assert.Equal(t,
		"INSERT INTO t (id, field_id) VALUES (?, ?) ON CONFLICT (id, field_id) DO NOTHING",
		mustDialect(t, "sqlite").Upsert("t", keys, nil, 1))
	assert.Equal(t,
		"INSERT INTO t (id, field_id, val) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE val = VALUES(val)",
		mustDialect(t, "mysql").Upsert("t", keys, vals, 1))

	ms := mustDialect(t, "tsql").Upsert("t", keys, vals, 2)
	assert.Contains(t, ms, "MERGE INTO t AS tgt USING (VALUES (?, ?, ?), (?, ?, ?)) AS src (id, field_id, val)")
	assert.Contains(t, ms, "ON tgt.id = src.id AND tgt.field_id = src.field_id")
	assert.Contains(t, ms, "WHEN MATCHED THEN UPDATE SET tgt.val = src.val")

	ora := mustDialect(t, "oracle").Upsert("t", keys, vals, 2)
	assert.Contains(t, ora, "SELECT ? id, ? field_id, ? val FROM dual UNION ALL SELECT ? id, ? field_id, ? val FROM dual")
	assert.Contains(t, ora, "WHEN NOT MATCHED THEN INSERT (id, field_id, val) VALUES (src.id, src.field_id, src.val)")
}

func TestRebindAndLimits(t *testing.T) {
	assert.Equal(t, "a = $1 AND b = $2", mustDialect(t, "postgres").Rebind("a = ? AND b = ?"))
	assert.Equal(t, "a = @p1", mustDialect(t, "tsql").Rebind("a = ?"))
	assert.Equal(t, "a = ?", mustDialect(t, "sqlite").Rebind("a = ?"))

	ms := mustDialect(t, "tsql")
	assert.Equal(t, 300, ms.RowsPerStatement(7, 0))
	assert.Equal(t, 50, ms.RowsPerStatement(7, 50))
	assert.Equal(t, 300, ms.RowsPerStatement(7, 1000))
}

func TestEncode(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 1, mustDialect(t, "oracle").Encode(field.TypeBoolean, true))
	assert.Equal(t, true, mustDialect(t, "postgres").Encode(field.TypeBoolean, true))
	assert.Equal(t, ts.UnixMilli(), mustDialect(t, "sqlite").Encode(field.TypeZonedDateTime, ts))
	assert.Equal(t, ts, mustDialect(t, "postgres").Encode(field.TypeZonedDateTime, ts))
	assert.Nil(t, mustDialect(t, "postgres").Encode(field.TypeDate, time.Time{}))
	assert.Nil(t, mustDialect(t, "mysql").Encode(field.TypeString, nil))
}

func TestStoredRoutine(t *testing.T) {
	_, ok := mustDialect(t, "sqlite").StoredRoutine("p", "SELECT 1;")
	assert.False(t, ok)
	sql, ok := mustDialect(t, "postgres").StoredRoutine("p", "PERFORM 1;")
	assert.True(t, ok)
	assert.Contains(t, sql, "CREATE OR REPLACE PROCEDURE p()")
}

func TestSQLiteProbes(t *testing.T) {
	db, err := sqlx.Open("sqlite", filepath.Join(t.TempDir(), "probe.db"))
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	d := mustDialect(t, "sqlite")
	_, err = db.ExecContext(ctx, d.CreateTable("things", []string{"id TEXT NOT NULL", "n INTEGER"}, "id"))
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "CREATE TRIGGER things_t AFTER INSERT ON things BEGIN SELECT 1; END")
	require.NoError(t, err)

	ok, err := d.TableExists(ctx, db, "things")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = d.TableExists(ctx, db, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = d.ColumnExists(ctx, db, "things", "n")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = d.ColumnExists(ctx, db, "things", "m")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = d.TriggerExists(ctx, db, "things_t")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = d.ProcedureExists(ctx, db, "anything")
	require.NoError(t, err)
	assert.False(t, ok)
}
