package storage

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"

	"github.com/relabs-tech/jsonserver/core/csql"
	"github.com/relabs-tech/jsonserver/core/document"
)

// PostgresConfiguration contains the configuration for the postgres driver
type PostgresConfiguration struct {
	// Name identifies the document row, several servers can share one table
	Name string
}

const postgresTable = "jsonserver_documents"

// Postgres stores the document as one row of a postgres table. The document is
// kept in a JSON column, so the stored text is exactly what Save wrote.
type Postgres struct {
	db    *csql.DB
	name  string
	table string

	mutex  sync.Mutex
	digest [sha256.Size]byte
	known  bool
}

// NewPostgres returns a new postgres driver. It creates the table if it does not exist yet.
func NewPostgres(ctx context.Context, db *csql.DB, config PostgresConfiguration) (*Postgres, error) {
	name := config.Name
	if name == "" {
		name = "default"
	}
	p := &Postgres{db: db, name: name, table: db.Table(postgresTable)}
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+p.table+` (
name VARCHAR NOT NULL PRIMARY KEY,
document JSON NOT NULL,
updated_at TIMESTAMP NOT NULL DEFAULT now()
);`)
	if err != nil {
		return nil, fmt.Errorf("cannot create table %s: %w", p.table, err)
	}
	return p, nil
}

// Load implements Driver. A missing row is an empty document.
func (p *Postgres) Load(ctx context.Context) (document.Document, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	var data []byte
	err := p.db.QueryRowContext(ctx, `SELECT document FROM `+p.table+` WHERE name = $1;`, p.name).Scan(&data)
	if errors.Is(err, csql.ErrNoRows) {
		return document.Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot select document %s: %w", p.name, err)
	}
	digest := sha256.Sum256(data)
	if p.known && digest == p.digest {
		return nil, ErrUnchanged
	}
	doc, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", p.name, err)
	}
	p.digest = digest
	p.known = true
	return doc, nil
}

// Save implements Driver
func (p *Postgres) Save(ctx context.Context, doc document.Document) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	data, err := Encode(doc)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO `+p.table+` (name, document, updated_at) VALUES ($1, $2, now())
ON CONFLICT (name) DO UPDATE SET document = $2, updated_at = now();`, p.name, string(data))
	if err != nil {
		return fmt.Errorf("cannot save document %s: %w", p.name, err)
	}
	p.digest = sha256.Sum256(data)
	p.known = true
	return nil
}
