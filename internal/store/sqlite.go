package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"controlroom.busops.org/internal/appconf"
	"controlroom.busops.org/internal/logging"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

//go:embed schema.sql
var ddl string

// SQLiteBackend keeps each collection as a row in a local SQLite database.
type SQLiteBackend struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

func NewSQLiteBackend(ctx context.Context, path string, env appconf.Environment, logger *slog.Logger) (*SQLiteBackend, error) {
	if env == appconf.Test && path != ":memory:" {
		return nil, fmt.Errorf("test database must use in-memory storage, got %s", path)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	if path == ":memory:" {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := performDatabaseMigration(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error performing database migration: %w", err)
	}

	return &SQLiteBackend{db: db, logger: logging.Component(logger, "sqlite"), now: time.Now}, nil
}

func performDatabaseMigration(ctx context.Context, db *sql.DB) error {
	statements := strings.Split(ddl, "-- migrate")
	for _, stmt := range statements {
		trimmedStmt := strings.TrimSpace(stmt)
		if trimmedStmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, trimmedStmt); err != nil {
			return fmt.Errorf("error executing DDL statement [%s]: %w", trimmedStmt, err)
		}
	}
	return nil
}

func (b *SQLiteBackend) Load(ctx context.Context, collection string) ([]byte, bool, error) {
	var body string
	err := b.db.QueryRowContext(ctx, "SELECT body FROM collections WHERE name = ?", collection).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(body), true, nil
}

// Save replaces the collection body and bumps its revision.
func (b *SQLiteBackend) Save(ctx context.Context, collection string, body []byte) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer logging.SafeRollbackWithLogging(tx, b.logger, "save_collection")

	var revision int64
	err = tx.QueryRowContext(ctx, "SELECT revision FROM collections WHERE name = ?", collection).Scan(&revision)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO collections (name, body, revision, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET body = excluded.body, revision = excluded.revision, updated_at = excluded.updated_at`,
		collection, string(body), revision+1, b.now().UnixMilli())
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (b *SQLiteBackend) Delete(ctx context.Context, collection string) error {
	_, err := b.db.ExecContext(ctx, "DELETE FROM collections WHERE name = ?", collection)
	return err
}

func (b *SQLiteBackend) Collections(ctx context.Context) (infos []CollectionInfo, err error) {
	rows, err := b.db.QueryContext(ctx, "SELECT name, revision, length(body), updated_at FROM collections ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer logging.HandleDeferredError(&err, rows.Close, b.logger, "list_collections")

	for rows.Next() {
		var info CollectionInfo
		if err := rows.Scan(&info.Name, &info.Revision, &info.Size, &info.UpdatedAt); err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
