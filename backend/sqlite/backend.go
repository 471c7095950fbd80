package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/mwantia/feather/backend"
	"github.com/mwantia/feather/data"
	"github.com/tidwall/btree"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteBackend stores objects in a SQLite database with two layers:
//
// Layer 1: In-memory B-tree for fast key → ID lookups and ordered listings
// Layer 2: SQLite tables for object records (feather_objects) and content (feather_data)
type SQLiteBackend struct {
	mu      sync.RWMutex
	db      *sql.DB
	dbPath  string
	address string

	// In-memory B-tree for fast key lookups
	keys *btree.Map[string, string]
}

// NewSQLiteBackend creates a new SQLite-backed storage backend.
// The dbPath can be ":memory:" for an in-memory database or a file path.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", data.ErrOpenFailed, err)
	}

	address := "sqlite://" + dbPath
	if dbPath == ":memory:" {
		// Every connection to ":memory:" opens a separate database
		db.SetMaxOpenConns(1)
		// and no two backends share one, so neither may their addresses
		address += "#" + uuid.NewString()
	} else {
		// Enable WAL mode for better concurrency
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			db.Close()
			return nil, err
		}
	}

	sb := &SQLiteBackend{
		db:      db,
		dbPath:  dbPath,
		address: address,
		keys:    btree.NewMap[string, string](0),
	}

	if err := sb.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return sb, nil
}

// initSchema creates the database schema.
func (sb *SQLiteBackend) initSchema() error {
	schema := `
	-- Object records
	CREATE TABLE IF NOT EXISTS feather_objects (
		id TEXT PRIMARY KEY,
		key TEXT NOT NULL UNIQUE,
		mode INTEGER NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		modify_time INTEGER NOT NULL,
		create_time INTEGER NOT NULL,
		content_type TEXT,
		etag TEXT,
		link_target TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_feather_objects_key ON feather_objects(key);

	-- Content storage
	CREATE TABLE IF NOT EXISTS feather_data (
		id TEXT PRIMARY KEY REFERENCES feather_objects(id) ON DELETE CASCADE,
		content BLOB NOT NULL,
		size INTEGER NOT NULL CHECK(size >= 0)
	);
	`

	_, err := sb.db.Exec(schema)
	return err
}

// Returns the identifier name defined for this backend
func (*SQLiteBackend) Name() string {
	return "sqlite"
}

func (sb *SQLiteBackend) Address() string {
	return sb.address
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (sb *SQLiteBackend) Open(ctx context.Context) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	// Verify database connection
	if err := sb.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", data.ErrOpenFailed, err)
	}

	// Load all keys into memory B-tree
	rows, err := sb.db.QueryContext(ctx, "SELECT key, id FROM feather_objects")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key, id string
		if err := rows.Scan(&key, &id); err != nil {
			return err
		}
		sb.keys.Set(key, id)
	}

	return rows.Err()
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (sb *SQLiteBackend) Close(ctx context.Context) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	sb.keys.Clear()
	return sb.db.Close()
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (sb *SQLiteBackend) GetCapabilities() *backend.BackendCapabilities {
	return &backend.BackendCapabilities{
		Capabilities: []backend.BackendCapability{
			backend.CapabilityObjectStorage,
			backend.CapabilityRandomRead,
			backend.CapabilityRandomWrite,
		},
		MaxObjectSize: 1073741824, // 1 GB, the default SQLite blob limit
	}
}
