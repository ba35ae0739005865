// Package db provides the Postgres access layer shared by the Lambdas and the
// CLI: a small row-map interface over a lazily created pgx pool with pgvector
// types registered.
package db

import (
	"context"
	_ "embed"
	"fmt"
	"net/url"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// Schema is the search path every connection uses.
const Schema = "claims"

//go:embed schema.sql
var schemaSQL string

// DB defines the database operations used by the store.
type DB interface {
	// Query returns every row as a column-name keyed map.
	Query(ctx context.Context, sql string, args ...any) ([]map[string]any, error)
	// Insert runs an INSERT ... RETURNING id and returns the id as a string.
	Insert(ctx context.Context, sql string, args ...any) (string, error)
	// Exec runs a statement and returns the number of affected rows.
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
}

// Credentials are the connection settings read from the environment or a
// Secrets Manager JSON secret.
type Credentials struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	DBName   string `json:"dbname"`
	Username string `json:"username"`
	Password string `json:"password"`
	MaxConns int    `json:"-"`
}

// CredentialsFunc resolves credentials on first use.
type CredentialsFunc func(ctx context.Context) (Credentials, error)

// ConnString renders c as a pgx connection URL.
func (c Credentials) ConnString() string {
	port := c.Port
	if port == "" {
		port = "5432"
	}
	name := c.DBName
	if name == "" {
		name = "postgres"
	}
	conns := c.MaxConns
	if conns <= 0 {
		conns = 2
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.Username, c.Password),
		Host:   c.Host + ":" + port,
		Path:   "/" + name,
	}
	q := url.Values{}
	q.Set("search_path", Schema+",public")
	q.Set("pool_max_conns", fmt.Sprint(conns))
	q.Set("connect_timeout", "10")
	u.RawQuery = q.Encode()
	return u.String()
}

// PgxDB implements DB using pgxpool.
type PgxDB struct {
	credsFn CredentialsFunc
	pool    *pgxpool.Pool
	once    sync.Once
	initErr error
}

// New creates a PgxDB whose pool is created on the first call.
func New(credsFn CredentialsFunc) *PgxDB {
	return &PgxDB{credsFn: credsFn}
}

func (d *PgxDB) init(ctx context.Context) error {
	d.once.Do(func() {
		creds, err := d.credsFn(ctx)
		if err != nil {
			d.initErr = fmt.Errorf("get db credentials: %w", err)
			return
		}

		config, err := pgxpool.ParseConfig(creds.ConnString())
		if err != nil {
			d.initErr = fmt.Errorf("parse pool config: %w", err)
			return
		}
		config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			return pgxvec.RegisterTypes(ctx, conn)
		}

		pool, err := pgxpool.NewWithConfig(ctx, config)
		if err != nil {
			d.initErr = fmt.Errorf("create pool: %w", err)
			return
		}
		d.pool = pool
	})
	return d.initErr
}

// Migrate creates the schema, tables and indexes if they do not exist.
// The vector extension must be installable by the connecting role.
func (d *PgxDB) Migrate(ctx context.Context) error {
	if err := d.init(ctx); err != nil {
		return err
	}
	if _, err := d.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Close releases the pool if it was created.
func (d *PgxDB) Close() {
	if d.pool != nil {
		d.pool.Close()
	}
}

func (d *PgxDB) Query(ctx context.Context, sql string, args ...any) ([]map[string]any, error) {
	if err := d.init(ctx); err != nil {
		return nil, err
	}

	rows, err := d.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	results, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("collect rows: %w", err)
	}
	return results, nil
}

func (d *PgxDB) Insert(ctx context.Context, sql string, args ...any) (string, error) {
	if err := d.init(ctx); err != nil {
		return "", err
	}

	var id any
	if err := d.pool.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		return "", fmt.Errorf("insert: %w", err)
	}
	return String(id), nil
}

func (d *PgxDB) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	if err := d.init(ctx); err != nil {
		return 0, err
	}

	tag, err := d.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("exec: %w", err)
	}
	return tag.RowsAffected(), nil
}
