package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// nowUTC returns the current UTC time as an ISO 8601 string.
func nowUTC() string { return time.Now().UTC().Format(time.RFC3339) }

// SqlStore implements Store with SQLite.
type SqlStore struct {
	db *sql.DB
}

// Open opens or creates a SQLite DB at path and runs migrations.
// Creates the parent directory (e.g. .caseline) if it does not exist.
func Open(path string) (*SqlStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &SqlStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SqlStore) migrate() error {
	var tableCount int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableCount == 0 {
		// Fresh database.
		if _, err := s.db.Exec(schemaV1); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_version(version) VALUES(?)", currentSchemaVersion); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
		return nil
	}

	var v int
	if err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if v != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version %d (want %d)", v, currentSchemaVersion)
	}
	return nil
}

// Close closes the database connection.
func (s *SqlStore) Close() error {
	return s.db.Close()
}

// CreateCase inserts a new case and returns its ID. The client_id must be
// unique; re-screening an existing client reuses the case via
// GetCaseByClientID.
func (s *SqlStore) CreateCase(c *Case) (int64, error) {
	now := nowUTC()
	res, err := s.db.Exec(`
		INSERT INTO cases (client_id, client_type, display_name, stage, status,
		                   risk_score, risk_band, grade, decision, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ClientID, c.ClientType, c.DisplayName, c.Stage, c.Status,
		c.RiskScore, c.RiskBand, c.Grade, c.Decision, now, now)
	if err != nil {
		return 0, fmt.Errorf("create case: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create case id: %w", err)
	}
	c.ID = id
	c.CreatedAt = now
	c.UpdatedAt = now
	return id, nil
}

func (s *SqlStore) scanCase(row *sql.Row) (*Case, error) {
	var c Case
	err := row.Scan(&c.ID, &c.ClientID, &c.ClientType, &c.DisplayName, &c.Stage, &c.Status,
		&c.RiskScore, &c.RiskBand, &c.Grade, &c.Decision, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan case: %w", err)
	}
	return &c, nil
}

const caseColumns = `id, client_id, client_type, display_name, stage, status,
	risk_score, risk_band, grade, decision, created_at, updated_at`

// GetCase returns the case by ID, or nil if not found.
func (s *SqlStore) GetCase(caseID int64) (*Case, error) {
	return s.scanCase(s.db.QueryRow(
		"SELECT "+caseColumns+" FROM cases WHERE id = ?", caseID))
}

// GetCaseByClientID returns the case for a client identifier, or nil.
func (s *SqlStore) GetCaseByClientID(clientID string) (*Case, error) {
	return s.scanCase(s.db.QueryRow(
		"SELECT "+caseColumns+" FROM cases WHERE client_id = ?", clientID))
}

// ListCases returns all cases ordered by creation.
func (s *SqlStore) ListCases() ([]*Case, error) {
	rows, err := s.db.Query("SELECT " + caseColumns + " FROM cases ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	var out []*Case
	for rows.Next() {
		var c Case
		if err := rows.Scan(&c.ID, &c.ClientID, &c.ClientType, &c.DisplayName, &c.Stage, &c.Status,
			&c.RiskScore, &c.RiskBand, &c.Grade, &c.Decision, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan case row: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// UpdateCaseStage sets the pipeline stage and status of a case.
func (s *SqlStore) UpdateCaseStage(caseID int64, stage, status string) error {
	_, err := s.db.Exec("UPDATE cases SET stage = ?, status = ?, updated_at = ? WHERE id = ?",
		stage, status, nowUTC(), caseID)
	if err != nil {
		return fmt.Errorf("update case stage: %w", err)
	}
	return nil
}

// UpdateCaseRisk records the latest score and band on the case row.
func (s *SqlStore) UpdateCaseRisk(caseID int64, score int, band string) error {
	_, err := s.db.Exec("UPDATE cases SET risk_score = ?, risk_band = ?, updated_at = ? WHERE id = ?",
		score, band, nowUTC(), caseID)
	if err != nil {
		return fmt.Errorf("update case risk: %w", err)
	}
	return nil
}

// UpdateCaseOutcome records the evidence grade and final decision.
func (s *SqlStore) UpdateCaseOutcome(caseID int64, grade, decision string) error {
	_, err := s.db.Exec("UPDATE cases SET grade = ?, decision = ?, updated_at = ? WHERE id = ?",
		grade, decision, nowUTC(), caseID)
	if err != nil {
		return fmt.Errorf("update case outcome: %w", err)
	}
	return nil
}

// AppendFinding appends one finding payload to the case's ledger.
func (s *SqlStore) AppendFinding(caseID int64, findingID string, payload []byte) error {
	_, err := s.db.Exec(
		"INSERT INTO findings (finding_id, case_id, payload, created_at) VALUES (?, ?, ?, ?)",
		findingID, caseID, payload, nowUTC())
	if err != nil {
		return fmt.Errorf("append finding: %w", err)
	}
	return nil
}

// ListFindings returns finding payloads for a case in append order.
func (s *SqlStore) ListFindings(caseID int64) ([][]byte, error) {
	rows, err := s.db.Query(
		"SELECT payload FROM findings WHERE case_id = ? ORDER BY seq", caseID)
	if err != nil {
		return nil, fmt.Errorf("list findings: %w", err)
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan finding row: %w", err)
		}
		out = append(out, payload)
	}
	return out, rows.Err()
}

// SaveCheckpoint upserts the checkpoint for a case+stage.
func (s *SqlStore) SaveCheckpoint(caseID int64, stage string, payload []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO checkpoints (case_id, stage, payload, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(case_id, stage) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at`,
		caseID, stage, payload, nowUTC())
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// GetCheckpoint returns the checkpoint payload for a case+stage, or nil.
func (s *SqlStore) GetCheckpoint(caseID int64, stage string) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRow(
		"SELECT payload FROM checkpoints WHERE case_id = ? AND stage = ?", caseID, stage).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}
	return payload, nil
}

// AppendDecision appends one review decision to the case's decision log.
func (s *SqlStore) AppendDecision(d *Decision) (int64, error) {
	now := nowUTC()
	override := 0
	if d.Override {
		override = 1
	}
	res, err := s.db.Exec(`
		INSERT INTO decisions (case_id, point_id, option, officer, note, override, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.CaseID, d.PointID, d.Option, d.Officer, d.Note, override, now)
	if err != nil {
		return 0, fmt.Errorf("append decision: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append decision id: %w", err)
	}
	d.ID = id
	d.CreatedAt = now
	return id, nil
}

// ListDecisions returns the decision log for a case in append order.
func (s *SqlStore) ListDecisions(caseID int64) ([]*Decision, error) {
	rows, err := s.db.Query(`
		SELECT id, case_id, point_id, option, officer, note, override, created_at
		FROM decisions WHERE case_id = ? ORDER BY id`, caseID)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var out []*Decision
	for rows.Next() {
		var d Decision
		var override int
		if err := rows.Scan(&d.ID, &d.CaseID, &d.PointID, &d.Option, &d.Officer, &d.Note, &override, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan decision row: %w", err)
		}
		d.Override = override != 0
		out = append(out, &d)
	}
	return out, rows.Err()
}

// OpenSession claims review ownership of a case. Returns ErrSessionHeld if a
// session is already open.
func (s *SqlStore) OpenSession(caseID int64, officer string) error {
	_, err := s.db.Exec(
		"INSERT INTO sessions (case_id, officer, opened_at) VALUES (?, ?, ?)",
		caseID, officer, nowUTC())
	if err != nil {
		existing, serr := s.SessionOfficer(caseID)
		if serr == nil && existing != "" {
			return ErrSessionHeld
		}
		return fmt.Errorf("open session: %w", err)
	}
	return nil
}

// CloseSession releases review ownership of a case.
func (s *SqlStore) CloseSession(caseID int64) error {
	if _, err := s.db.Exec("DELETE FROM sessions WHERE case_id = ?", caseID); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}

// SessionOfficer returns the officer holding the case's session, or "".
func (s *SqlStore) SessionOfficer(caseID int64) (string, error) {
	var officer string
	err := s.db.QueryRow("SELECT officer FROM sessions WHERE case_id = ?", caseID).Scan(&officer)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("session officer: %w", err)
	}
	return officer, nil
}
