package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"fotos/internal/logging"
	"fotos/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// SQLiteTimeLayout is the layout of SQLite's datetime('now'), always UTC.
const SQLiteTimeLayout = "2006-01-02 15:04:05"

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Options controls how a gallery database file is opened.
type Options struct {
	// ReadOnly opens the file with mode=ro. The web service always uses
	// this; only the admin CLI writes.
	ReadOnly bool
	// CreateSchema creates missing tables. Ignored when ReadOnly is set.
	CreateSchema bool
}

// Database wraps a gallery SQLite file (fotos.db).
type Database struct {
	db       *sqlx.DB
	dbPath   string
	readOnly bool
	mu       sync.RWMutex
}

// Open opens the gallery database at dbPath.
func Open(ctx context.Context, dbPath string, opts Options) (*Database, error) {
	if _, err := os.Stat(dbPath); err != nil && opts.ReadOnly {
		return nil, fmt.Errorf("database file unavailable: %w", err)
	}

	// The file is published as a single blob, so rollback journaling is
	// used instead of WAL.
	connStr := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on", dbPath)
	if opts.ReadOnly {
		connStr = fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", dbPath)
	}

	db, err := sqlx.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if opts.ReadOnly {
		db.SetMaxOpenConns(10)
	} else {
		db.SetMaxOpenConns(1)
	}
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:       db,
		dbPath:   dbPath,
		readOnly: opts.ReadOnly,
	}

	if opts.CreateSchema && !opts.ReadOnly {
		if err := d.EnsureSchema(ctx); err != nil {
			if closeErr := db.Close(); closeErr != nil {
				logging.Error("failed to close database after schema failure: %v", closeErr)
			}
			return nil, fmt.Errorf("failed to initialize database schema: %w", err)
		}
	}

	logging.Debug("Database opened at %s (read-only: %v)", dbPath, opts.ReadOnly)
	return d, nil
}

// EnsureSchema creates the gallery tables when they do not exist.
func (d *Database) EnsureSchema(ctx context.Context) error {
	if d.readOnly {
		return errors.New("cannot create schema on a read-only database")
	}

	schema := `
	CREATE TABLE IF NOT EXISTS imagenes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL UNIQUE,
		date TEXT NOT NULL,
		author TEXT,
		description TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_imagenes_date ON imagenes(date);

	CREATE TABLE IF NOT EXISTS image_analysis (
		image_id INTEGER PRIMARY KEY,
		is_appropriate INTEGER,
		description TEXT,
		tags TEXT,
		FOREIGN KEY (image_id) REFERENCES imagenes(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS bluesky_posts (
		image_id INTEGER PRIMARY KEY,
		post_id TEXT NOT NULL,
		FOREIGN KEY (image_id) REFERENCES imagenes(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS bluesky_interactions_cache (
		image_id INTEGER PRIMARY KEY,
		like_count INTEGER NOT NULL DEFAULT 0,
		comment_count INTEGER NOT NULL DEFAULT 0,
		repost_count INTEGER NOT NULL DEFAULT 0,
		last_updated TEXT,
		FOREIGN KEY (image_id) REFERENCES imagenes(id) ON DELETE CASCADE
	);
	`

	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.db.ExecContext(ctx, schema)
	return err
}

// Path returns the file the database was opened from.
func (d *Database) Path() string {
	return d.dbPath
}

// ReadOnly reports whether the database was opened read-only.
func (d *Database) ReadOnly() bool {
	return d.readOnly
}

// Ping verifies the connection is still usable.
func (d *Database) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return d.db.PingContext(ctx)
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil && !errors.Is(err, ErrNotFound) {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}
