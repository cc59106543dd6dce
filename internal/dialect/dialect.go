// Package dialect describes what differs between the supported SQL
// backends: driver names, placeholder styles, column types, existence
// probes and the shape of upsert, alter and index statements.
package dialect

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"jds/internal/field"
)

type Kind int

const (
	Postgres Kind = iota + 1
	MySQL
	SQLite
	TSQL
	Oracle
)

// Dialect is a capability descriptor. Values are immutable and shared.
type Dialect struct {
	Kind   Kind
	Name   string
	Driver string
	// Bind is the sqlx bind type used to rebind '?' placeholders.
	Bind int
	// ZonedAsEpoch stores zoned date-times as epoch milliseconds.
	ZonedAsEpoch bool
	// BoolAsInt sends booleans as 0/1.
	BoolAsInt bool
	// MaxParams caps the number of bind parameters in one statement.
	MaxParams int
}

var (
	pg  = &Dialect{Kind: Postgres, Name: "postgres", Driver: "pgx", Bind: sqlx.DOLLAR, MaxParams: 65535}
	my  = &Dialect{Kind: MySQL, Name: "mysql", Driver: "mysql", Bind: sqlx.QUESTION, ZonedAsEpoch: true, MaxParams: 65535}
	lt  = &Dialect{Kind: SQLite, Name: "sqlite", Driver: "sqlite", Bind: sqlx.QUESTION, ZonedAsEpoch: true, MaxParams: 32766}
	ms  = &Dialect{Kind: TSQL, Name: "tsql", Driver: "sqlserver", Bind: sqlx.AT, BoolAsInt: true, MaxParams: 2100}
	ora = &Dialect{Kind: Oracle, Name: "oracle", Driver: "godror", Bind: sqlx.NAMED, BoolAsInt: true, MaxParams: 65535}
)

// ErrUnknownDialect is returned by ByName.
var ErrUnknownDialect = errors.New("unknown dialect")

// ByName resolves a dialect from its name or a common alias.
func ByName(name string) (*Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pg", "pgx":
		return pg, nil
	case "mysql", "mariadb":
		return my, nil
	case "sqlite", "sqlite3":
		return lt, nil
	case "tsql", "sqlserver", "mssql":
		return ms, nil
	case "oracle", "godror":
		return ora, nil
	}
	return nil, errors.Wrapf(ErrUnknownDialect, "%q", name)
}

// All lists every supported dialect.
func All() []*Dialect { return []*Dialect{pg, my, lt, ms, ora} }

func (d *Dialect) String() string { return d.Name }

// Rebind converts '?' placeholders to the dialect's bind style.
func (d *Dialect) Rebind(query string) string {
	return sqlx.Rebind(d.Bind, query)
}

// DataType maps a field kind to a native column type. max applies to
// strings and blobs; zero means unbounded.
func (d *Dialect) DataType(t field.Type, max int) string {
	if t.Collection() {
		t = t.Element()
	}
	switch t {
	case field.TypeBoolean:
		return d.pick("boolean", "tinyint(1)", "INTEGER", "bit", "NUMBER(1)")
	case field.TypeInt, field.TypeEnum:
		return d.pick("integer", "int", "INTEGER", "int", "NUMBER(10)")
	case field.TypeLong, field.TypeTime, field.TypeDuration:
		return d.pick("bigint", "bigint", "INTEGER", "bigint", "NUMBER(19)")
	case field.TypeFloat:
		return d.pick("real", "float", "REAL", "real", "BINARY_FLOAT")
	case field.TypeDouble:
		return d.pick("double precision", "double", "REAL", "float", "BINARY_DOUBLE")
	case field.TypeString, field.TypeEntity:
		if t == field.TypeEntity && max == 0 {
			max = 96
		}
		if max <= 0 {
			return d.pick("text", "longtext", "TEXT", "nvarchar(max)", "CLOB")
		}
		return d.pick(
			fmt.Sprintf("varchar(%d)", max),
			fmt.Sprintf("varchar(%d)", max),
			"TEXT",
			fmt.Sprintf("nvarchar(%d)", max),
			fmt.Sprintf("VARCHAR2(%d)", max),
		)
	case field.TypePeriod:
		return d.DataType(field.TypeString, 32)
	case field.TypeYearMonth, field.TypeMonthDay:
		return d.DataType(field.TypeString, 16)
	case field.TypeDate:
		return d.pick("date", "date", "DATE", "date", "DATE")
	case field.TypeDateTime:
		return d.pick("timestamp", "datetime(6)", "TIMESTAMP", "datetime2", "TIMESTAMP")
	case field.TypeZonedDateTime:
		if d.ZonedAsEpoch {
			return d.DataType(field.TypeLong, 0)
		}
		return d.pick("timestamp with time zone", "bigint", "INTEGER", "datetimeoffset", "TIMESTAMP WITH TIME ZONE")
	case field.TypeBlob:
		if max > 0 && d.Kind == TSQL {
			return fmt.Sprintf("varbinary(%d)", max)
		}
		return d.pick("bytea", "longblob", "BLOB", "varbinary(max)", "BLOB")
	}
	return d.DataType(field.TypeString, 0)
}

func (d *Dialect) pick(postgres, mysql, sqlite, tsql, oracle string) string {
	switch d.Kind {
	case MySQL:
		return mysql
	case SQLite:
		return sqlite
	case TSQL:
		return tsql
	case Oracle:
		return oracle
	}
	return postgres
}

// Encode converts a wire value to the parameter the driver expects.
func (d *Dialect) Encode(t field.Type, v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case bool:
		if d.BoolAsInt {
			if x {
				return 1
			}
			return 0
		}
	case time.Time:
		if x.IsZero() {
			return nil
		}
		if t == field.TypeZonedDateTime && d.ZonedAsEpoch {
			return x.UnixMilli()
		}
	}
	return v
}

// CreateTable renders a CREATE TABLE statement from column definitions.
func (d *Dialect) CreateTable(table string, defs []string, primaryKey ...string) string {
	cols := append([]string(nil), defs...)
	if len(primaryKey) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(primaryKey, ", ")))
	}
	prefix := "CREATE TABLE IF NOT EXISTS"
	if d.Kind == TSQL || d.Kind == Oracle {
		prefix = "CREATE TABLE"
	}
	return fmt.Sprintf("%s %s (\n  %s\n)", prefix, table, strings.Join(cols, ",\n  "))
}

// AddColumns renders the statements adding defs to table. SQLite needs one
// statement per column.
func (d *Dialect) AddColumns(table string, defs []string) []string {
	if len(defs) == 0 {
		return nil
	}
	switch d.Kind {
	case SQLite:
		out := make([]string, 0, len(defs))
		for _, def := range defs {
			out = append(out, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", table, def))
		}
		return out
	case TSQL:
		return []string{fmt.Sprintf("ALTER TABLE %s ADD %s", table, strings.Join(defs, ", "))}
	case Oracle:
		return []string{fmt.Sprintf("ALTER TABLE %s ADD (%s)", table, strings.Join(defs, ", "))}
	}
	parts := make([]string, len(defs))
	for i, def := range defs {
		parts[i] = "ADD COLUMN " + def
	}
	return []string{fmt.Sprintf("ALTER TABLE %s %s", table, strings.Join(parts, ", "))}
}

func (d *Dialect) CreateIndex(table, index string, cols ...string) string {
	ine := ""
	if d.Kind == Postgres || d.Kind == SQLite {
		ine = "IF NOT EXISTS "
	}
	return fmt.Sprintf("CREATE INDEX %s%s ON %s (%s)", ine, index, table, strings.Join(cols, ", "))
}

// Upsert renders a multi-row insert-or-update of rows tuples with '?'
// placeholders. Columns are keys followed by values; with no values the
// statement only inserts missing keys.
func (d *Dialect) Upsert(table string, keys, values []string, rows int) string {
	cols := append(append([]string(nil), keys...), values...)
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	var b strings.Builder
	switch d.Kind {
	case TSQL:
		fmt.Fprintf(&b, "MERGE INTO %s AS tgt USING (VALUES %s) AS src (%s) ON %s",
			table, repeatJoin(tuple, rows, ", "), strings.Join(cols, ", "), matchOn(keys))
		if len(values) > 0 {
			fmt.Fprintf(&b, " WHEN MATCHED THEN UPDATE SET %s", assign(values, "tgt.%[1]s = src.%[1]s"))
		}
		fmt.Fprintf(&b, " WHEN NOT MATCHED THEN INSERT (%s) VALUES (%s);", strings.Join(cols, ", "), prefixed("src.", cols))
	case Oracle:
		sel := make([]string, len(cols))
		for i, c := range cols {
			sel[i] = "? " + c
		}
		row := "SELECT " + strings.Join(sel, ", ") + " FROM dual"
		fmt.Fprintf(&b, "MERGE INTO %s tgt USING (%s) src ON (%s)",
			table, repeatJoin(row, rows, " UNION ALL "), matchOn(keys))
		if len(values) > 0 {
			fmt.Fprintf(&b, " WHEN MATCHED THEN UPDATE SET %s", assign(values, "tgt.%[1]s = src.%[1]s"))
		}
		fmt.Fprintf(&b, " WHEN NOT MATCHED THEN INSERT (%s) VALUES (%s)", strings.Join(cols, ", "), prefixed("src.", cols))
	case MySQL:
		fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES %s ON DUPLICATE KEY UPDATE ",
			table, strings.Join(cols, ", "), repeatJoin(tuple, rows, ", "))
		if len(values) > 0 {
			b.WriteString(assign(values, "%[1]s = VALUES(%[1]s)"))
		} else {
			b.WriteString(assign(keys[:1], "%[1]s = %[1]s"))
		}
	default:
		fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES %s ON CONFLICT (%s) ",
			table, strings.Join(cols, ", "), repeatJoin(tuple, rows, ", "), strings.Join(keys, ", "))
		if len(values) > 0 {
			b.WriteString("DO UPDATE SET " + assign(values, "%[1]s = EXCLUDED.%[1]s"))
		} else {
			b.WriteString("DO NOTHING")
		}
	}
	return b.String()
}

// Insert renders a plain multi-row insert.
func (d *Dialect) Insert(table string, cols []string, rows int) string {
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	if d.Kind == Oracle {
		into := fmt.Sprintf(" INTO %s (%s) VALUES %s", table, strings.Join(cols, ", "), tuple)
		return "INSERT ALL" + strings.Repeat(into, rows) + " SELECT 1 FROM dual"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, strings.Join(cols, ", "), repeatJoin(tuple, rows, ", "))
}

// RowsPerStatement caps a batch so that a statement of cols columns stays
// under MaxParams. batch <= 0 means as many as allowed.
func (d *Dialect) RowsPerStatement(cols, batch int) int {
	limit := d.MaxParams / max(cols, 1)
	if batch <= 0 || batch > limit {
		return max(limit, 1)
	}
	return batch
}

// StoredRoutine wraps body into a procedure definition. The bool is false
// when the backend has no stored procedures.
func (d *Dialect) StoredRoutine(name, body string) (string, bool) {
	switch d.Kind {
	case Postgres:
		return fmt.Sprintf("CREATE OR REPLACE PROCEDURE %s() LANGUAGE plpgsql AS $$\nBEGIN\n%s\nEND\n$$", name, body), true
	case MySQL:
		return fmt.Sprintf("CREATE PROCEDURE %s()\nBEGIN\n%s\nEND", name, body), true
	case TSQL:
		return fmt.Sprintf("CREATE PROCEDURE %s AS\nBEGIN\n%s\nEND", name, body), true
	case Oracle:
		return fmt.Sprintf("CREATE OR REPLACE PROCEDURE %s AS\nBEGIN\n%s\nEND;", name, body), true
	}
	return "", false
}

func (d *Dialect) TableExists(ctx context.Context, q sqlx.QueryerContext, table string) (bool, error) {
	query := d.pick(
		"SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?",
		"SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?",
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?",
		"SELECT COUNT(*) FROM sys.tables WHERE name = ?",
		"SELECT COUNT(*) FROM user_tables WHERE table_name = UPPER(?)",
	)
	return d.count(ctx, q, query, table)
}

func (d *Dialect) ColumnExists(ctx context.Context, q sqlx.QueryerContext, table, column string) (bool, error) {
	query := d.pick(
		"SELECT COUNT(*) FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = ? AND column_name = ?",
		"SELECT COUNT(*) FROM information_schema.columns WHERE table_schema = DATABASE() AND table_name = ? AND column_name = ?",
		"SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?",
		"SELECT COUNT(*) FROM sys.columns WHERE object_id = OBJECT_ID(?) AND name = ?",
		"SELECT COUNT(*) FROM user_tab_columns WHERE table_name = UPPER(?) AND column_name = UPPER(?)",
	)
	return d.count(ctx, q, query, table, column)
}

func (d *Dialect) ProcedureExists(ctx context.Context, q sqlx.QueryerContext, name string) (bool, error) {
	if d.Kind == SQLite {
		return false, nil
	}
	query := d.pick(
		"SELECT COUNT(*) FROM information_schema.routines WHERE routine_schema = current_schema() AND routine_name = ?",
		"SELECT COUNT(*) FROM information_schema.routines WHERE routine_schema = DATABASE() AND routine_name = ?",
		"",
		"SELECT COUNT(*) FROM sys.procedures WHERE name = ?",
		"SELECT COUNT(*) FROM user_procedures WHERE object_name = UPPER(?)",
	)
	return d.count(ctx, q, query, name)
}

func (d *Dialect) TriggerExists(ctx context.Context, q sqlx.QueryerContext, name string) (bool, error) {
	query := d.pick(
		"SELECT COUNT(*) FROM information_schema.triggers WHERE trigger_schema = current_schema() AND trigger_name = ?",
		"SELECT COUNT(*) FROM information_schema.triggers WHERE trigger_schema = DATABASE() AND trigger_name = ?",
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'trigger' AND name = ?",
		"SELECT COUNT(*) FROM sys.triggers WHERE name = ?",
		"SELECT COUNT(*) FROM user_triggers WHERE trigger_name = UPPER(?)",
	)
	return d.count(ctx, q, query, name)
}

func (d *Dialect) count(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) (bool, error) {
	var n int
	if err := sqlx.GetContext(ctx, q, &n, d.Rebind(query), args...); err != nil {
		return false, errors.Wrapf(err, "%s probe", d.Name)
	}
	return n > 0, nil
}

func repeatJoin(s string, n int, sep string) string {
	if n <= 0 {
		n = 1
	}
	parts := make([]string, n)
	for i := range parts {
		parts[i] = s
	}
	return strings.Join(parts, sep)
}

func matchOn(keys []string) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("tgt.%[1]s = src.%[1]s", k)
	}
	return strings.Join(parts, " AND ")
}

func assign(cols []string, format string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprintf(format, c)
	}
	return strings.Join(parts, ", ")
}

func prefixed(prefix string, cols []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = prefix + c
	}
	return strings.Join(parts, ", ")
}
