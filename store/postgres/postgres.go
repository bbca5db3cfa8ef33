// Package postgres implements store.Database on PostgreSQL. Documents live in a
// single JSONB table keyed by (collection, id); filters use JSONB containment.
// The schema is applied with goose from embedded migrations.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MrEthical07/saasAuth/store"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

var gooseUpContext = goose.UpContext

// DBTX is the subset of *sql.DB and *sql.Tx the store needs.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Database is a PostgreSQL-backed store.Database.
type Database struct {
	db DBTX
}

// New wraps an open connection. The schema must already be migrated.
func New(db DBTX) *Database {
	return &Database{db: db}
}

// Open connects with the pgx driver, verifies the connection and applies migrations.
func Open(ctx context.Context, dsn string) (*Database, *sql.DB, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("db open error: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("db ping error: %w", err)
	}
	if err := Migrate(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("migration error: %w", err)
	}
	return New(conn), conn, nil
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, "migrations")
}

func (d *Database) FindOne(ctx context.Context, collection string, filter store.Filter) (store.Document, error) {
	docs, err := d.query(ctx, collection, filter, true)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, store.ErrNotFound
	}
	return docs[0], nil
}

func (d *Database) Find(ctx context.Context, collection string, filter store.Filter) ([]store.Document, error) {
	return d.query(ctx, collection, filter, false)
}

func (d *Database) query(ctx context.Context, collection string, filter store.Filter, one bool) ([]store.Document, error) {
	if filter == nil {
		filter = store.Filter{}
	}
	rawFilter, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("postgres: encode filter: %w", err)
	}

	query := `SELECT body FROM documents
		WHERE collection = $1 AND body @> $2::jsonb
		ORDER BY created_at, id`
	if one {
		query += ` LIMIT 1`
	}

	rows, err := d.db.QueryContext(ctx, query, collection, string(rawFilter))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	defer rows.Close()

	var out []store.Document
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
		}
		var doc store.Document
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, fmt.Errorf("postgres: decode document: %w", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return out, nil
}

func (d *Database) Create(ctx context.Context, collection string, doc store.Document) error {
	id, err := store.DocumentID(doc)
	if err != nil {
		return err
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("postgres: encode document: %w", err)
	}

	res, err := d.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, body) VALUES ($1, $2, $3::jsonb)
		 ON CONFLICT (collection, id) DO NOTHING`,
		collection, id, string(body))
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	if n == 0 {
		return store.ErrDuplicateID
	}
	return nil
}

func (d *Database) Update(ctx context.Context, collection, id string, patch store.Document) error {
	clean := make(store.Document, len(patch))
	for k, v := range patch {
		if k != "id" {
			clean[k] = v
		}
	}
	body, err := json.Marshal(clean)
	if err != nil {
		return fmt.Errorf("postgres: encode patch: %w", err)
	}

	res, err := d.db.ExecContext(ctx,
		`UPDATE documents SET body = body || $3::jsonb WHERE collection = $1 AND id = $2`,
		collection, id, string(body))
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (d *Database) Remove(ctx context.Context, collection, id string) error {
	if _, err := d.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		collection, id); err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return nil
}

func (d *Database) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := d.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return value, nil
}

func (d *Database) Set(ctx context.Context, key string, value []byte) error {
	if _, err := d.db.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value); err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return nil
}
