package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/spf13/viper"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Conn is satisfied by both *pgxpool.Pool and pgx.Tx, so repositories
// run unchanged inside and outside a transaction.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Client represents a Postgres client.
type Client struct {
	pool *pgxpool.Pool
}

// Pool returns the underlying connection pool.
func (p *Client) Pool() *pgxpool.Pool {
	return p.pool
}

// Close closes the database connection for graceful shutdown.
func (p *Client) Close() {
	p.pool.Close()
}

// Ping checks that the store answers.
func (p *Client) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return Classify(err, "failed to ping postgres")
	}

	return nil
}

// ConnString builds the DSN from ORDER_PG_* environment variables.
func ConnString() string {
	port := os.Getenv("ORDER_PG_PORT")
	if port == "" {
		port = "5432"
	}
	sslMode := os.Getenv("ORDER_PG_SSLMODE")
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		os.Getenv("ORDER_PG_HOST"),
		port,
		os.Getenv("ORDER_PG_USER"),
		os.Getenv("ORDER_PG_PASSWORD"),
		os.Getenv("ORDER_PG_DB"),
		sslMode,
	)
}

// NewClient connects to Postgres and verifies the connection.
func NewClient(ctx context.Context, connStr string) (*Client, error) {
	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}
	if maxConns := viper.GetInt32("postgres.max_conns"); maxConns > 0 {
		config.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &Client{
		pool: pool,
	}, nil
}

// MustNewClient creates a new Postgres client and applies pending migrations
// when postgres.migrate_on_start is set.
func MustNewClient() *Client {
	client, err := NewClient(context.Background(), ConnString())
	if err != nil {
		panic(err)
	}

	if viper.GetBool("postgres.migrate_on_start") {
		if err := client.Migrate(); err != nil {
			panic(err)
		}
	}

	return client
}

func (p *Client) gooseDB() (*sql.DB, error) {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return stdlib.OpenDBFromPool(p.pool), nil
}

// Migrate applies every pending embedded migration.
func (p *Client) Migrate() error {
	db, err := p.gooseDB()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

// MigrationStatus logs the state of every embedded migration.
func (p *Client) MigrationStatus() error {
	db, err := p.gooseDB()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := goose.Status(db, "migrations"); err != nil {
		return fmt.Errorf("failed to read migration status: %w", err)
	}

	return nil
}
