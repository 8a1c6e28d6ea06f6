package csql

import (
	"database/sql"
	"fmt"
	"regexp"

	_ "github.com/lib/pq" // load database driver for postgres

	"github.com/relabs-tech/jsonserver/core/logger"
)

// DB encapsulates a standard sql.DB with a schema
type DB struct {
	*sql.DB
	Schema string
}

// ErrNoRows is returned by Scan when QueryRow doesn't return a
// row. In such a case, QueryRow returns a placeholder *Row value that
// defers this error until a Scan.
var ErrNoRows = sql.ErrNoRows

var validSchema = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// OpenWithSchema opens a postgres database with a schema.
// The schema gets created if it does not exist yet.
func OpenWithSchema(dataSourceName, schema string) (*DB, error) {
	logger.Default().Infoln("connecting to postgres database")
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot reach database: %w", err)
	}
	return WithSchema(db, schema)
}

// WithSchema wraps an open database and creates the schema if it does not exist yet.
// An empty schema selects "public".
func WithSchema(db *sql.DB, schema string) (*DB, error) {
	if len(schema) == 0 {
		return &DB{DB: db, Schema: "public"}, nil
	}
	if !validSchema.MatchString(schema) {
		return nil, fmt.Errorf("invalid schema name '%s'", schema)
	}
	logger.Default().Infoln("selected database schema:", schema)
	if _, err := db.Exec(`CREATE SCHEMA IF NOT EXISTS ` + schema + `;`); err != nil {
		return nil, fmt.Errorf("cannot create schema %s: %w", schema, err)
	}
	return &DB{DB: db, Schema: schema}, nil
}

// Table returns the schema qualified name of a table
func (db *DB) Table(name string) string {
	return db.Schema + `."` + name + `"`
}
