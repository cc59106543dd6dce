package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jds/internal/dialect"
)

func openSQLite(t *testing.T) *dialect.Dialect {
	t.Helper()
	d, err := dialect.ByName("sqlite")
	require.NoError(t, err)
	return d
}

func TestOpenAndApplyDDL(t *testing.T) {
	d := openSQLite(t)
	conn, err := Open(d, filepath.Join(t.TempDir(), "jds.db"))
	require.NoError(t, err)
	defer conn.Close()

	ctx := context.Background()
	stmts := []string{
		"CREATE TABLE t (id TEXT PRIMARY KEY)",
		"  ",
		"CREATE INDEX t_id ON t (id)",
	}
	n, err := ApplyDDL(ctx, conn, stmts)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = ApplyDDL(ctx, conn, stmts)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = ApplyDDL(ctx, conn, []string{"CREATE TABLE broken ("})
	assert.Error(t, err)
}

func TestOpenAllClosesOnFailure(t *testing.T) {
	d := openSQLite(t)
	conns, err := OpenAll(d, map[string]string{"reports": filepath.Join(t.TempDir(), "reports.db")})
	require.NoError(t, err)
	require.Contains(t, conns, "reports")
	CloseAll(conns)

	_, err = OpenAll(d, map[string]string{"bad": filepath.Join(t.TempDir(), "missing", "dir", "x.db")})
	assert.Error(t, err)
}

func TestAlreadyExists(t *testing.T) {
	assert.True(t, AlreadyExists(&pgconn.PgError{Code: "42P07"}))
	assert.True(t, AlreadyExists(errors.Wrap(&pgconn.PgError{Code: "42701"}, "alter")))
	assert.False(t, AlreadyExists(&pgconn.PgError{Code: "23505", Message: "duplicate key value"}))
	assert.True(t, AlreadyExists(&mysql.MySQLError{Number: 1060}))
	assert.False(t, AlreadyExists(&mysql.MySQLError{Number: 1146}))
	assert.True(t, AlreadyExists(errors.New("ORA-00955: name is already used by an existing object")))
	assert.False(t, AlreadyExists(errors.New("syntax error")))
}
