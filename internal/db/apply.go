package db

import (
	"context"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Postgres duplicate_table, duplicate_column, duplicate_object and MySQL
// table exists, duplicate column, duplicate key name.
var (
	pgDuplicate    = map[string]struct{}{"42P07": {}, "42701": {}, "42710": {}}
	mysqlDuplicate = map[uint16]struct{}{1050: {}, 1060: {}, 1061: {}}
)

// ApplyDDL runs statements in order. Errors that only say the object
// already exists are logged and skipped. It returns the number of
// statements that took effect.
func ApplyDDL(ctx context.Context, conn sqlx.ExecerContext, statements []string) (int, error) {
	applied := 0
	for _, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			if AlreadyExists(err) {
				log.WithError(err).WithField("ddl", firstLine(stmt)).Debug("DDL skipped (already exists)")
				continue
			}
			return applied, errors.Wrapf(err, "DDL apply failed: %s", firstLine(stmt))
		}
		log.WithField("ddl", firstLine(stmt)).Debug("DDL applied")
		applied++
	}
	return applied, nil
}

// AlreadyExists reports whether err is a duplicate-object error.
func AlreadyExists(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		_, ok := pgDuplicate[pgErr.Code]
		return ok
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		_, ok := mysqlDuplicate[myErr.Number]
		return ok
	}
	e := strings.ToLower(err.Error())
	return strings.Contains(e, "already exists") || strings.Contains(e, "duplicate") ||
		strings.Contains(e, "already used")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
