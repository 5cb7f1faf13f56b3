package db

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lwelte/gozp/pkg/config"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"go.uber.org/fx"
)

var Module = fx.Module("db",
	fx.Provide(New),
)

type DB struct {
	conn   *sql.DB
	logger *slog.Logger
}

func New(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger) (*DB, error) {
	logger = logger.With("component", "db")

	db, err := Open(cfg.DBPath, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("database initialized", "path", cfg.DBPath)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("closing database")
			return db.Close()
		},
	})

	return db, nil
}

// Open opens (or creates) the database at path and brings the schema up
// to date.
func Open(path string, logger *slog.Logger) (*DB, error) {
	// Ensure db directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	db := &DB{
		conn:   conn,
		logger: logger,
	}

	if err := db.init(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) init() error {
	db.logger.Debug("initializing database with migrations")

	// Enable foreign keys
	if _, err := db.conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return err
	}

	// Run migrations
	return db.RunMigrations()
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Conn() *sql.DB {
	return db.conn
}
