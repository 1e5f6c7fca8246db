// Package sqlstore persists realm users and clients in SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	apperrors "github.com/jrsteele09/planb-provider/internal/errors"
	"github.com/jrsteele09/planb-provider/realms/sqlstore/migrations"
	_ "modernc.org/sqlite"
)

type Store struct {
	db  *sql.DB
	dsn string
}

// NewStore opens the database. An in-memory DSN is pinned to one connection,
// otherwise every pooled connection would see its own empty database.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.ExecContext(context.Background(), `PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}

	return &Store{db: db, dsn: dsn}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ApplyMigrations applies the embedded schema files.
func (s *Store) ApplyMigrations() error {
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("migrate driver: %w", err)
	}

	source, err := iofs.New(migrations.Migrations, ".")
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}

	instance, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}

	if err := instance.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

func (s *Store) Users() *UsersRepo     { return &UsersRepo{db: s.db} }
func (s *Store) Clients() *ClientsRepo { return &ClientsRepo{db: s.db} }

// Realms lists every realm that owns at least one user or client.
func (s *Store) Realms(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT realm FROM users
		UNION
		SELECT realm FROM clients
		ORDER BY realm`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var realms []string
	for rows.Next() {
		var realm string
		if err := rows.Scan(&realm); err != nil {
			return nil, err
		}
		realms = append(realms, realm)
	}
	return realms, rows.Err()
}

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.ErrNotFound
	}
	return err
}

func joinScopes(scopes []string) string {
	return strings.Join(scopes, " ")
}

func splitScopes(scopes string) []string {
	return strings.Fields(scopes)
}
