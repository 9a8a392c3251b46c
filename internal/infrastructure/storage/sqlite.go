package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Storage provides SQLite database access for purchase orders, extractions
// and link decisions. It implements the Repository interface.
type Storage struct {
	db *sql.DB
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

// NewStorage creates a new storage instance with SQLite database
func NewStorage(dbPath string) (*Storage, error) {
	// Foreign keys are a per-connection setting in SQLite
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite3", dbPath+sep+"_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open database %s: %w", dbPath, err)
	}

	s := &Storage{db: db}

	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// ================================================================
// PURCHASE ORDERS
// ================================================================

// SavePurchaseOrder upserts the order by reference and replaces its lines in
// a single transaction
func (s *Storage) SavePurchaseOrder(po *PurchaseOrder) error {
	if po.CreatedAt.IsZero() {
		po.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT INTO purchase_orders (reference, vendor_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(reference) DO UPDATE SET vendor_id = excluded.vendor_id
	`, po.Reference, po.VendorID, po.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save purchase order %s: %w", po.Reference, err)
	}

	if err := tx.QueryRow(
		`SELECT id, created_at FROM purchase_orders WHERE reference = ?`, po.Reference,
	).Scan(&po.ID, &po.CreatedAt); err != nil {
		return fmt.Errorf("failed to read purchase order id: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM purchase_order_lines WHERE purchase_order_id = ?`, po.ID); err != nil {
		return fmt.Errorf("failed to clear lines: %w", err)
	}

	for i := range po.Lines {
		line := &po.Lines[i]
		result, err := tx.Exec(`
			INSERT INTO purchase_order_lines (purchase_order_id, description, amount_to_invoice)
			VALUES (?, ?, ?)
		`, po.ID, line.Description, line.AmountToInvoice)
		if err != nil {
			return fmt.Errorf("failed to save line %d of %s: %w", i, po.Reference, err)
		}
		if line.ID, err = result.LastInsertId(); err != nil {
			return err
		}
		line.PurchaseOrderID = po.ID
	}

	return tx.Commit()
}

// GetPurchaseOrder retrieves an order by ID
func (s *Storage) GetPurchaseOrder(id int64) (*PurchaseOrder, error) {
	po := &PurchaseOrder{}
	err := s.db.QueryRow(`
		SELECT id, reference, vendor_id, created_at FROM purchase_orders WHERE id = ?
	`, id).Scan(&po.ID, &po.Reference, &po.VendorID, &po.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.loadLines(po); err != nil {
		return nil, err
	}
	return po, nil
}

// FindPurchaseOrdersByReference returns the orders named by refs
func (s *Storage) FindPurchaseOrdersByReference(refs []string) ([]*PurchaseOrder, error) {
	if len(refs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(refs)), ",")
	args := make([]any, len(refs))
	for i, ref := range refs {
		args[i] = ref
	}

	return s.queryOrders(`
		SELECT id, reference, vendor_id, created_at FROM purchase_orders
		WHERE reference IN (`+placeholders+`)
		ORDER BY id
	`, args...)
}

// ListOpenPurchaseOrders returns the vendor's orders with a non-zero line
func (s *Storage) ListOpenPurchaseOrders(vendorID string) ([]*PurchaseOrder, error) {
	return s.queryOrders(`
		SELECT po.id, po.reference, po.vendor_id, po.created_at FROM purchase_orders po
		WHERE po.vendor_id = ?
		  AND EXISTS (
			SELECT 1 FROM purchase_order_lines l
			WHERE l.purchase_order_id = po.id AND CAST(l.amount_to_invoice AS REAL) != 0
		  )
		ORDER BY po.id
	`, vendorID)
}

func (s *Storage) queryOrders(query string, args ...any) ([]*PurchaseOrder, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}

	var orders []*PurchaseOrder
	for rows.Next() {
		po := &PurchaseOrder{}
		if err := rows.Scan(&po.ID, &po.Reference, &po.VendorID, &po.CreatedAt); err != nil {
			_ = rows.Close()
			return nil, err
		}
		orders = append(orders, po)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	for _, po := range orders {
		if err := s.loadLines(po); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (s *Storage) loadLines(po *PurchaseOrder) error {
	rows, err := s.db.Query(`
		SELECT id, purchase_order_id, COALESCE(description, ''), amount_to_invoice
		FROM purchase_order_lines WHERE purchase_order_id = ? ORDER BY id
	`, po.ID)
	if err != nil {
		return fmt.Errorf("failed to load lines of %s: %w", po.Reference, err)
	}
	defer func() { _ = rows.Close() }()

	po.Lines = nil
	for rows.Next() {
		var line PurchaseOrderLine
		if err := rows.Scan(&line.ID, &line.PurchaseOrderID, &line.Description, &line.AmountToInvoice); err != nil {
			return err
		}
		po.Lines = append(po.Lines, line)
	}
	return rows.Err()
}

// ================================================================
// EXTRACTIONS
// ================================================================

const extractionColumns = `id, vendor_id, COALESCE(invoice_number, ''), goal_total,
	COALESCE(po_references_json, ''), status, received_at, updated_at`

// SaveExtraction inserts or replaces an extraction
func (s *Storage) SaveExtraction(e *Extraction) error {
	now := time.Now().UTC()
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = now
	}
	e.UpdatedAt = now
	if e.Status == "" {
		e.Status = ExtractionPending
	}

	refsJSON, _ := json.Marshal(e.POReferences)

	// Upsert rather than REPLACE so existing link records are not cascaded away
	_, err := s.db.Exec(`
		INSERT INTO extractions
		(id, vendor_id, invoice_number, goal_total, po_references_json, status, received_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			vendor_id = excluded.vendor_id,
			invoice_number = excluded.invoice_number,
			goal_total = excluded.goal_total,
			po_references_json = excluded.po_references_json,
			status = excluded.status,
			updated_at = excluded.updated_at
	`,
		e.ID,
		e.VendorID,
		e.InvoiceNumber,
		e.GoalTotal,
		string(refsJSON),
		string(e.Status),
		e.ReceivedAt,
		e.UpdatedAt,
	)
	return err
}

// GetExtraction retrieves an extraction by ID
func (s *Storage) GetExtraction(id string) (*Extraction, error) {
	row := s.db.QueryRow(`SELECT `+extractionColumns+` FROM extractions WHERE id = ?`, id)
	e, err := scanExtraction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// ListExtractions returns extractions matching the filters, newest first
func (s *Storage) ListExtractions(filters ExtractionFilters) (*ExtractionListResult, error) {
	limit := filters.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	var where []string
	var args []any
	if filters.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filters.Status))
	}
	if filters.VendorID != "" {
		where = append(where, "vendor_id = ?")
		args = append(args, filters.VendorID)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	result := &ExtractionListResult{Limit: limit, Offset: filters.Offset}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM extractions`+clause, args...).Scan(&result.TotalCount); err != nil {
		return nil, fmt.Errorf("failed to count extractions: %w", err)
	}

	rows, err := s.db.Query(
		`SELECT `+extractionColumns+` FROM extractions`+clause+` ORDER BY received_at DESC, id LIMIT ? OFFSET ?`,
		append(args, limit, filters.Offset)...,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	result.Extractions = make([]*Extraction, 0)
	for rows.Next() {
		e, err := scanExtraction(rows)
		if err != nil {
			return nil, err
		}
		result.Extractions = append(result.Extractions, e)
	}
	return result, rows.Err()
}

// ListPendingExtractions returns pending extractions, oldest first
func (s *Storage) ListPendingExtractions(limit int) ([]*Extraction, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := s.db.Query(
		`SELECT `+extractionColumns+` FROM extractions WHERE status = ? ORDER BY received_at ASC, id LIMIT ?`,
		string(ExtractionPending), limit,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var extractions []*Extraction
	for rows.Next() {
		e, err := scanExtraction(rows)
		if err != nil {
			return nil, err
		}
		extractions = append(extractions, e)
	}
	return extractions, rows.Err()
}

// UpdateExtractionStatus sets the status of an extraction
func (s *Storage) UpdateExtractionStatus(id string, status ExtractionStatus) error {
	result, err := s.db.Exec(
		`UPDATE extractions SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("extraction %s not found", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExtraction(row rowScanner) (*Extraction, error) {
	e := &Extraction{}
	var refsJSON, status string
	err := row.Scan(
		&e.ID,
		&e.VendorID,
		&e.InvoiceNumber,
		&e.GoalTotal,
		&refsJSON,
		&status,
		&e.ReceivedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Status = ExtractionStatus(status)
	if refsJSON != "" {
		_ = json.Unmarshal([]byte(refsJSON), &e.POReferences)
	}
	return e, nil
}

// ================================================================
// LINKS
// ================================================================

const linkColumns = `id, extraction_id, COALESCE(run_id, 0), strategy, COALESCE(outcome, ''),
	searched, COALESCE(order_ids_json, ''), COALESCE(line_ids_json, ''), candidate_count,
	goal_total, matched_total, duration_ms, dry_run, linked_at`

// SaveLink records a link decision
func (s *Storage) SaveLink(link *LinkRecord) error {
	if link.LinkedAt.IsZero() {
		link.LinkedAt = time.Now().UTC()
	}

	orderIDsJSON, _ := json.Marshal(link.OrderIDs)
	lineIDsJSON, _ := json.Marshal(link.LineIDs)

	var runID any
	if link.RunID != 0 {
		runID = link.RunID
	}

	result, err := s.db.Exec(`
		INSERT INTO link_records
		(extraction_id, run_id, strategy, outcome, searched, order_ids_json, line_ids_json,
		 candidate_count, goal_total, matched_total, duration_ms, dry_run, linked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		link.ExtractionID,
		runID,
		link.Strategy,
		link.Outcome,
		link.Searched,
		string(orderIDsJSON),
		string(lineIDsJSON),
		link.CandidateCount,
		link.GoalTotal,
		link.MatchedTotal,
		link.DurationMs,
		link.DryRun,
		link.LinkedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save link for %s: %w", link.ExtractionID, err)
	}

	link.ID, err = result.LastInsertId()
	return err
}

// GetLatestLink returns the most recent link of an extraction
func (s *Storage) GetLatestLink(extractionID string) (*LinkRecord, error) {
	row := s.db.QueryRow(
		`SELECT `+linkColumns+` FROM link_records WHERE extraction_id = ? ORDER BY id DESC LIMIT 1`,
		extractionID,
	)
	link, err := scanLink(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return link, err
}

// ListLinks returns recent links, newest first
func (s *Storage) ListLinks(limit int) ([]*LinkRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.db.Query(`SELECT `+linkColumns+` FROM link_records ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	links := make([]*LinkRecord, 0)
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

func scanLink(row rowScanner) (*LinkRecord, error) {
	link := &LinkRecord{}
	var orderIDsJSON, lineIDsJSON string
	err := row.Scan(
		&link.ID,
		&link.ExtractionID,
		&link.RunID,
		&link.Strategy,
		&link.Outcome,
		&link.Searched,
		&orderIDsJSON,
		&lineIDsJSON,
		&link.CandidateCount,
		&link.GoalTotal,
		&link.MatchedTotal,
		&link.DurationMs,
		&link.DryRun,
		&link.LinkedAt,
	)
	if err != nil {
		return nil, err
	}
	if orderIDsJSON != "" {
		_ = json.Unmarshal([]byte(orderIDsJSON), &link.OrderIDs)
	}
	if lineIDsJSON != "" {
		_ = json.Unmarshal([]byte(lineIDsJSON), &link.LineIDs)
	}
	return link, nil
}

// GetStats returns extraction and link statistics. Dry-run links are
// excluded from the strategy and outcome breakdowns.
func (s *Storage) GetStats() (*Stats, error) {
	stats := &Stats{
		StrategyCounts: make(map[string]int),
		OutcomeCounts:  make(map[string]int),
	}

	err := s.db.QueryRow(`
	SELECT
		COUNT(*) as total,
		COUNT(CASE WHEN status = 'pending' THEN 1 END) as pending,
		COUNT(CASE WHEN status = 'linked' THEN 1 END) as linked,
		COUNT(CASE WHEN status = 'unlinked' THEN 1 END) as unlinked
	FROM extractions
	`).Scan(&stats.TotalExtractions, &stats.Pending, &stats.Linked, &stats.Unlinked)
	if err != nil {
		return nil, err
	}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM link_records WHERE dry_run = 0`).Scan(&stats.TotalLinks); err != nil {
		return nil, err
	}

	if err := s.countInto(stats.StrategyCounts, `
		SELECT strategy, COUNT(*) FROM link_records WHERE dry_run = 0 GROUP BY strategy
	`); err != nil {
		return nil, err
	}
	if err := s.countInto(stats.OutcomeCounts, `
		SELECT outcome, COUNT(*) FROM link_records
		WHERE dry_run = 0 AND searched = 1 AND outcome != ''
		GROUP BY outcome
	`); err != nil {
		return nil, err
	}

	return stats, nil
}

func (s *Storage) countInto(counts map[string]int, query string) error {
	rows, err := s.db.Query(query)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return err
		}
		counts[key] = count
	}
	return rows.Err()
}

// ================================================================
// MATCH RUNS
// ================================================================

// StartMatchRun records the start of a batch run
func (s *Storage) StartMatchRun(dryRun bool) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO match_runs (started_at, dry_run, status)
		VALUES (?, ?, ?)
	`, time.Now().UTC(), dryRun, RunStatusRunning)
	if err != nil {
		return 0, err
	}

	return result.LastInsertId()
}

// CompleteMatchRun records the completion of a batch run
func (s *Storage) CompleteMatchRun(runID int64, found, linked, unlinked, errored int) error {
	status := RunStatusCompleted
	if errored > 0 {
		status = RunStatusCompletedWithErrors
	}

	_, err := s.db.Exec(`
		UPDATE match_runs
		SET completed_at = ?,
		    extractions_found = ?,
		    linked = ?,
		    unlinked = ?,
		    errored = ?,
		    status = ?
		WHERE id = ?
	`, time.Now().UTC(), found, linked, unlinked, errored, status, runID)
	return err
}

const matchRunColumns = `id, started_at, completed_at, dry_run, extractions_found,
	linked, unlinked, errored, status`

// ListMatchRuns returns recent runs, newest first
func (s *Storage) ListMatchRuns(limit int) ([]MatchRun, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.db.Query(`SELECT `+matchRunColumns+` FROM match_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	runs := make([]MatchRun, 0)
	for rows.Next() {
		run, err := scanMatchRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetMatchRun retrieves a run by ID
func (s *Storage) GetMatchRun(runID int64) (*MatchRun, error) {
	run, err := scanMatchRun(s.db.QueryRow(`SELECT `+matchRunColumns+` FROM match_runs WHERE id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

func scanMatchRun(row rowScanner) (*MatchRun, error) {
	run := &MatchRun{}
	var completedAt sql.NullTime
	err := row.Scan(
		&run.ID,
		&run.StartedAt,
		&completedAt,
		&run.DryRun,
		&run.ExtractionsFound,
		&run.Linked,
		&run.Unlinked,
		&run.Errored,
		&run.Status,
	)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	return run, nil
}
