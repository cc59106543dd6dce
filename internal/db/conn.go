package db

import (
	"context"
	"time"

	_ "github.com/go-sql-driver/mysql" // driver: mysql
	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // driver: sqlite

	"jds/internal/dialect"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Open connects to url with the driver of d and verifies the connection.
// SQLite gets a single connection so that a unit's transaction never
// waits on a second writer.
func Open(d *dialect.Dialect, url string) (*sqlx.DB, error) {
	conn, err := sqlx.Open(d.Driver, url)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", d.Name)
	}
	if d.Kind == dialect.SQLite {
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetConnMaxLifetime(30 * time.Minute)
		conn.SetMaxOpenConns(10)
		conn.SetMaxIdleConns(5)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, errors.Wrapf(err, "ping %s", d.Name)
	}
	log.WithFields(log.Fields{"dialect": d.Name, "driver": d.Driver}).Info("database connected")
	return conn, nil
}

// OpenAll opens every url in alternates. Connections opened before a
// failure are closed.
func OpenAll(d *dialect.Dialect, alternates map[string]string) (map[string]*sqlx.DB, error) {
	out := make(map[string]*sqlx.DB, len(alternates))
	for name, url := range alternates {
		conn, err := Open(d, url)
		if err != nil {
			CloseAll(out)
			return nil, errors.Wrapf(err, "alternate %q", name)
		}
		out[name] = conn
	}
	return out, nil
}

func CloseAll(conns map[string]*sqlx.DB) {
	for name, c := range conns {
		if err := c.Close(); err != nil {
			log.WithError(err).WithField("alternate", name).Warn("close failed")
		}
	}
}
