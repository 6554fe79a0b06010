package db

import (
	"database/sql"
	"fmt"

	"craft-pricer/internal/logger"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection.
type DB struct {
	sql *sql.DB
}

// Open opens (or creates) the SQLite database at path and runs migrations.
// Pass ":memory:" for an ephemeral database (tests).
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	d := &DB{sql: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	logger.Success("DB", fmt.Sprintf("Opened %s", path))
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate() error {
	version := 0
	// Try to read current version
	d.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS recipe_methods (
				recipe_id   INTEGER PRIMARY KEY,
				method_type TEXT NOT NULL,
				profession  TEXT NOT NULL DEFAULT '',
				expansion   TEXT NOT NULL DEFAULT '',
				rank        INTEGER NOT NULL DEFAULT 0,
				provenance  TEXT NOT NULL DEFAULT '',
				reagents    TEXT NOT NULL DEFAULT '[]',
				derivatives TEXT NOT NULL DEFAULT '[]',
				imported_at TEXT NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_recipe_type ON recipe_methods(method_type);

			-- Denormalized item references for fast "who produces / consumes X"
			-- lookups; rebuilt whenever the recipe row is written.
			CREATE TABLE IF NOT EXISTS recipe_reagents (
				recipe_id INTEGER NOT NULL,
				item_id   INTEGER NOT NULL,
				PRIMARY KEY (recipe_id, item_id)
			);
			CREATE INDEX IF NOT EXISTS idx_reagent_item ON recipe_reagents(item_id);

			CREATE TABLE IF NOT EXISTS recipe_derivatives (
				recipe_id INTEGER NOT NULL,
				item_id   INTEGER NOT NULL,
				PRIMARY KEY (recipe_id, item_id)
			);
			CREATE INDEX IF NOT EXISTS idx_derivative_item ON recipe_derivatives(item_id);

			CREATE TABLE IF NOT EXISTS market_observations (
				id        INTEGER PRIMARY KEY AUTOINCREMENT,
				item_id   INTEGER NOT NULL,
				realm_id  INTEGER NOT NULL,
				price     REAL NOT NULL,
				quantity  REAL NOT NULL DEFAULT 1,
				value     REAL NOT NULL DEFAULT 0,
				channel   TEXT NOT NULL DEFAULT 'AUCTION',
				timestamp TEXT NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_obs_item_realm_ts
				ON market_observations(item_id, realm_id, timestamp DESC);

			CREATE TABLE IF NOT EXISTS market_snapshots (
				item_id      INTEGER NOT NULL,
				realm_id     INTEGER NOT NULL,
				market_price REAL NOT NULL,
				timestamp    TEXT NOT NULL,
				PRIMARY KEY (item_id, realm_id)
			);

			CREATE TABLE IF NOT EXISTS items (
				item_id           INTEGER PRIMARY KEY,
				name              TEXT NOT NULL DEFAULT '',
				vendor_sell_price REAL NOT NULL DEFAULT 0,
				purchase_price    REAL NOT NULL DEFAULT 0,
				loot_type         TEXT NOT NULL DEFAULT '',
				profession        TEXT NOT NULL DEFAULT '',
				expansion         TEXT NOT NULL DEFAULT '',
				item_class        TEXT NOT NULL DEFAULT '',
				item_subclass     TEXT NOT NULL DEFAULT '',
				quality           TEXT NOT NULL DEFAULT '',
				ticker            TEXT NOT NULL DEFAULT '',
				asset_classes     TEXT NOT NULL DEFAULT '[]',
				general_tags      TEXT NOT NULL DEFAULT '[]',
				updated_at        TEXT NOT NULL
			);

			CREATE TABLE IF NOT EXISTS evaluations (
				id                INTEGER PRIMARY KEY AUTOINCREMENT,
				item_id           INTEGER NOT NULL,
				realm_id          INTEGER NOT NULL,
				market_price      REAL,
				crafting_cost     REAL,
				vendor_sell_price REAL,
				profit            REAL,
				profit_margin     REAL,
				is_profitable     INTEGER NOT NULL DEFAULT 0,
				best_recipe_id    INTEGER,
				recipe_rank       INTEGER,
				profession        TEXT,
				expansion         TEXT,
				asset_classes     TEXT NOT NULL DEFAULT '[]',
				recommendations   TEXT NOT NULL DEFAULT '[]',
				confidence        REAL,
				market_volume     REAL,
				timestamp         TEXT NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_eval_realm ON evaluations(realm_id);
			CREATE INDEX IF NOT EXISTS idx_eval_item ON evaluations(item_id);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
		logger.Info("DB", "Applied migration v1")
	}

	if version < 2 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS processed_marks (
				key        TEXT PRIMARY KEY,
				expires_at TEXT NOT NULL
			);

			INSERT OR IGNORE INTO schema_version (version) VALUES (2);
		`)
		if err != nil {
			return fmt.Errorf("migration v2: %w", err)
		}
		logger.Info("DB", "Applied migration v2 (processed marks)")
	}

	return nil
}

// SqlDB returns the underlying *sql.DB for use by other packages.
func (d *DB) SqlDB() *sql.DB {
	return d.sql
}
