// Package sqlite implements a provider that keeps objects as blobs in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"replicafs/pkg/log"
	"replicafs/pkg/provider"

	_ "modernc.org/sqlite"
)

// Provider stores objects in a single SQLite file.
type Provider struct {
	name   string
	dbPath string

	mu sync.RWMutex
	db *sql.DB
}

// New creates a provider for the database at dbPath. The database is opened by Initialize.
func New(name, dbPath string) *Provider {
	return &Provider{name: name, dbPath: dbPath}
}

func (p *Provider) Name() string {
	return "sqlite"
}

// Initialize opens the database, enables WAL mode and creates the schema.
// Calling it again on an open provider is a no-op.
func (p *Provider) Initialize(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.db != nil {
		return nil
	}

	database, err := sql.Open("sqlite", p.dbPath)
	if err != nil {
		return fmt.Errorf("%w: failed to open database: %w", ErrDatabaseError, err)
	}

	// Enable WAL mode for better concurrency
	if _, err := database.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		_ = database.Close()
		return fmt.Errorf("%w: failed to enable WAL mode: %w", ErrDatabaseError, err)
	}

	if _, err := database.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = database.Close()
		return fmt.Errorf("%w: failed to set busy timeout: %w", ErrDatabaseError, err)
	}

	if _, err := database.ExecContext(ctx, Schema); err != nil {
		_ = database.Close()
		return fmt.Errorf("%w: failed to initialize schema: %w", ErrDatabaseError, err)
	}

	p.db = database
	log.Debug().Str("provider", p.name).Str("db", p.dbPath).Msg("SQLite provider ready")
	return nil
}

// Close closes the database connection.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}

func (p *Provider) conn() (*sql.DB, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.db == nil {
		return nil, provider.ErrNotInitialized
	}
	return p.db, nil
}

// Store inserts or replaces the object.
func (p *Provider) Store(ctx context.Context, data []byte, filename, _ string) (provider.Receipt, error) {
	database, err := p.conn()
	if err != nil {
		return provider.Receipt{}, err
	}

	now := time.Now()
	_, err = database.ExecContext(ctx,
		`INSERT INTO objects (name, data, size, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET data = excluded.data, size = excluded.size, updated_at = excluded.updated_at`,
		filename, data, len(data), now, now,
	)
	if err != nil {
		log.Error().Err(err).Str("provider", p.name).Str("filename", filename).Msg("Failed to store object")
		return provider.Receipt{}, fmt.Errorf("%w: %w: %w", provider.ErrUploadFailed, ErrDatabaseError, err)
	}

	return provider.Receipt{
		Provider:  p.name,
		Ref:       "sqlite://" + p.dbPath + "#" + filename,
		Size:      int64(len(data)),
		Placement: provider.PlacementRemote,
	}, nil
}

// Retrieve reads the object blob.
func (p *Provider) Retrieve(ctx context.Context, filename, _ string) ([]byte, error) {
	database, err := p.conn()
	if err != nil {
		return nil, err
	}

	var data []byte
	err = database.QueryRowContext(ctx, `SELECT data FROM objects WHERE name = ?`, filename).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, provider.FileNotFoundError{Filename: filename}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", provider.ErrDownloadFailed, ErrDatabaseError, err)
	}
	return data, nil
}

// Delete removes the object row.
func (p *Provider) Delete(ctx context.Context, filename string) error {
	database, err := p.conn()
	if err != nil {
		return err
	}

	result, err := database.ExecContext(ctx, `DELETE FROM objects WHERE name = ?`, filename)
	if err != nil {
		return fmt.Errorf("%w: %w: %w", provider.ErrDeleteFailed, ErrDatabaseError, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w: %w", provider.ErrDeleteFailed, ErrDatabaseError, err)
	}
	if affected == 0 {
		return provider.FileNotFoundError{Filename: filename}
	}
	return nil
}

// List returns every stored name in order.
func (p *Provider) List(ctx context.Context) ([]string, error) {
	database, err := p.conn()
	if err != nil {
		return nil, err
	}

	rows, err := database.QueryContext(ctx, `SELECT name FROM objects ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", provider.ErrListFailed, ErrDatabaseError, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("%w: %w: %w", provider.ErrListFailed, ErrDatabaseError, err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w: %w", provider.ErrListFailed, ErrDatabaseError, err)
	}
	return names, nil
}

// Exists checks for the object row.
func (p *Provider) Exists(ctx context.Context, filename string) bool {
	database, err := p.conn()
	if err != nil {
		return false
	}

	var one int
	err = database.QueryRowContext(ctx, `SELECT 1 FROM objects WHERE name = ?`, filename).Scan(&one)
	return err == nil
}

// IsConfigured reports whether the database is open.
func (p *Provider) IsConfigured() bool {
	_, err := p.conn()
	return err == nil
}

// Ping checks that the database still answers.
func (p *Provider) Ping(ctx context.Context) error {
	database, err := p.conn()
	if err != nil {
		return err
	}
	return database.PingContext(ctx)
}

// Stats returns the number of objects and their total size.
func (p *Provider) Stats(ctx context.Context) (files int, bytes int64, err error) {
	database, err := p.conn()
	if err != nil {
		return 0, 0, err
	}
	err = database.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(size), 0) FROM objects`).Scan(&files, &bytes)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return files, bytes, nil
}
