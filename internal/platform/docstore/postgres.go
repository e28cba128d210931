package docstore

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/ehr/pms/internal/platform/db"
)

// Postgres stores the document as one row of the documents table, keyed by
// document name. The body column is BYTEA rather than JSONB so the document
// comes back byte-for-byte as written, key order included.
type Postgres struct {
	pool *pgxpool.Pool
	name string
}

const postgresSchema = `CREATE TABLE IF NOT EXISTS documents (
    name       TEXT PRIMARY KEY,
    body       BYTEA NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// OpenPostgres connects to databaseURL and ensures the documents table exists.
func OpenPostgres(ctx context.Context, databaseURL string, maxConns, minConns int32, name string) (*Postgres, error) {
	if databaseURL == "" {
		return nil, errors.New("postgres driver requires a database url")
	}
	pool, err := db.NewPool(ctx, databaseURL, maxConns, minConns)
	if err != nil {
		return nil, err
	}
	p := NewPostgres(pool, name)
	if err := p.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// NewPostgres wraps an existing pool. The caller is responsible for running
// Migrate before the first read.
func NewPostgres(pool *pgxpool.Pool, name string) *Postgres {
	return &Postgres{pool: pool, name: documentName(name)}
}

func (p *Postgres) Driver() string { return DriverPostgres }

// Pool exposes the connection pool for health reporting.
func (p *Postgres) Pool() *pgxpool.Pool { return p.pool }

// Migrate creates the documents table if it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, postgresSchema); err != nil {
		return errors.Wrap(err, "could not create documents table")
	}
	return nil
}

func (p *Postgres) Read(ctx context.Context) ([]byte, error) {
	var body []byte
	err := p.pool.QueryRow(ctx, `SELECT body FROM documents WHERE name = $1`, p.name).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, errors.Wrapf(err, "could not read document %s", p.name)
	}
	return body, nil
}

func (p *Postgres) Write(ctx context.Context, data []byte) error {
	_, err := p.pool.Exec(ctx, `INSERT INTO documents (name, body, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`, p.name, data)
	if err != nil {
		return errors.Wrapf(err, "could not write document %s", p.name)
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
