package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// Migration represents a database schema migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// allMigrations defines all migrations in order
var allMigrations = []Migration{
	{
		Version: 1,
		Name:    "add_purchase_orders",
		Up:      migration001PurchaseOrders,
	},
	{
		Version: 2,
		Name:    "add_extractions",
		Up:      migration002Extractions,
	},
	{
		Version: 3,
		Name:    "add_match_runs_and_links",
		Up:      migration003MatchRunsAndLinks,
	},
}

// runMigrations executes all pending migrations
func (s *Storage) runMigrations() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, migration := range allMigrations {
		if applied[migration.Version] {
			continue
		}

		slog.Info("running migration", "version", migration.Version, "name", migration.Name)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}

		_, err = tx.Exec(`
			INSERT INTO schema_migrations (version, name) VALUES (?, ?)
		`, migration.Version, migration.Name)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// ensureMigrationsTable creates the schema_migrations table
func (s *Storage) ensureMigrationsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	_, err := s.db.Exec(query)
	return err
}

// getAppliedMigrations returns a set of applied migration versions
func (s *Storage) getAppliedMigrations() (map[int]bool, error) {
	applied := make(map[int]bool)

	rows, err := s.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

// ================================================================
// MIGRATION FUNCTIONS
// ================================================================

func execAll(tx *sql.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// migration001PurchaseOrders creates purchase orders and their lines.
// Amounts are decimal strings.
func migration001PurchaseOrders(tx *sql.Tx) error {
	return execAll(tx, []string{
		`CREATE TABLE purchase_orders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			reference TEXT UNIQUE NOT NULL,
			vendor_id TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX idx_purchase_orders_vendor ON purchase_orders(vendor_id)`,

		`CREATE TABLE purchase_order_lines (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			purchase_order_id INTEGER NOT NULL REFERENCES purchase_orders(id) ON DELETE CASCADE,
			description TEXT,
			amount_to_invoice TEXT NOT NULL DEFAULT '0'
		)`,

		`CREATE INDEX idx_purchase_order_lines_order ON purchase_order_lines(purchase_order_id)`,
	})
}

// migration002Extractions creates the extracted bills table
func migration002Extractions(tx *sql.Tx) error {
	return execAll(tx, []string{
		`CREATE TABLE extractions (
			id TEXT PRIMARY KEY,
			vendor_id TEXT NOT NULL,
			invoice_number TEXT,
			goal_total TEXT NOT NULL,
			po_references_json TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			received_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX idx_extractions_status ON extractions(status, received_at)`,

		`CREATE INDEX idx_extractions_vendor ON extractions(vendor_id)`,
	})
}

// migration003MatchRunsAndLinks creates batch runs and link decisions
func migration003MatchRunsAndLinks(tx *sql.Tx) error {
	return execAll(tx, []string{
		`CREATE TABLE match_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			completed_at TIMESTAMP,
			dry_run BOOLEAN DEFAULT 0,
			extractions_found INTEGER DEFAULT 0,
			linked INTEGER DEFAULT 0,
			unlinked INTEGER DEFAULT 0,
			errored INTEGER DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'running'
		)`,

		`CREATE TABLE link_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			extraction_id TEXT NOT NULL REFERENCES extractions(id) ON DELETE CASCADE,
			run_id INTEGER REFERENCES match_runs(id),
			strategy TEXT NOT NULL,
			outcome TEXT,
			searched BOOLEAN DEFAULT 0,
			order_ids_json TEXT,
			line_ids_json TEXT,
			candidate_count INTEGER DEFAULT 0,
			goal_total TEXT NOT NULL,
			matched_total TEXT NOT NULL DEFAULT '0',
			duration_ms INTEGER DEFAULT 0,
			dry_run BOOLEAN DEFAULT 0,
			linked_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX idx_link_records_extraction ON link_records(extraction_id, id)`,

		`CREATE INDEX idx_link_records_run ON link_records(run_id)`,
	})
}
