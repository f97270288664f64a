package data

import (
	"database/sql"
	"embed"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const (
	DataFileName = "nnpu.db"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var (
	//go:embed sql/*
	f embed.FS

	errDBNotInitialized = errors.New("database not initialized")

	// ErrNotFound is returned when a run does not exist.
	ErrNotFound = errors.New("not found")
)

// Driver picks the database driver for dsn. Postgres URLs go to lib/pq,
// anything else is treated as a sqlite file path.
func Driver(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return DriverPostgres
	}
	return DriverSQLite
}

// Init creates the schema for dsn. It is safe to call on an existing database.
func Init(dsn string) error {
	if dsn == "" {
		return errors.New("dsn not specified")
	}

	driver := Driver(dsn)
	if driver == DriverSQLite {
		if _, err := os.Stat(dsn); err == nil {
			return nil
		}
	}

	db, err := GetDB(dsn)
	if err != nil {
		return errors.Wrapf(err, "error opening database: %s", redact(dsn))
	}
	defer db.Close()

	slog.Debug("creating db schema", "driver", driver)
	b, err := f.ReadFile("sql/" + driver + ".sql")
	if err != nil {
		return errors.Wrap(err, "failed to read the schema creation file")
	}
	if _, err := db.Exec(string(b)); err != nil {
		return errors.Wrapf(err, "failed to create database schema in: %s", redact(dsn))
	}
	slog.Debug("db schema created")
	return nil
}

func GetDB(dsn string) (*sql.DB, error) {
	conn, err := sql.Open(Driver(dsn), dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database: %s", redact(dsn))
	}
	return conn, nil
}

func isPostgres(db *sql.DB) bool {
	_, ok := db.Driver().(*pq.Driver)
	return ok
}

// rebind rewrites ? placeholders into $n for postgres.
func rebind(db *sql.DB, query string) string {
	if !isPostgres(db) {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func rollbackTransaction(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil {
		slog.Error("error rolling back transaction", "error", err)
	}
}

// redact drops the password from postgres URLs.
func redact(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if Driver(dsn) != DriverPostgres || at < 0 || scheme < 0 {
		return dsn
	}
	creds := dsn[scheme+3 : at]
	if i := strings.Index(creds, ":"); i >= 0 {
		creds = creds[:i] + ":xxx"
	}
	return dsn[:scheme+3] + creds + dsn[at:]
}
