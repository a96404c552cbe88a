// Package store is the persistence facade for cases, findings, stage
// checkpoints and review decisions. Domain and CLI code use only the Store
// interface; the implementation is SQLite or in-memory.
package store

import "errors"

// DefaultDBPath is the default relative path for the SQLite DB.
// Open() creates the parent dir (.caseline).
const DefaultDBPath = ".caseline/caseline.db"

// ErrSessionHeld is returned by OpenSession when another review session
// already owns the case.
var ErrSessionHeld = errors.New("review session already open for case")

// Case is one onboarding screening case, keyed by the client identifier.
type Case struct {
	ID          int64
	ClientID    string
	ClientType  string
	DisplayName string
	Stage       string
	Status      string
	RiskScore   int
	RiskBand    string
	Grade       string
	Decision    string
	CreatedAt   string
	UpdatedAt   string
}

// Decision is one entry in a case's review decision log. Override marks a
// decision that departs from the recommended option.
type Decision struct {
	ID        int64
	CaseID    int64
	PointID   string
	Option    string
	Officer   string
	Note      string
	Override  bool
	CreatedAt string
}

// Store is the persistence facade.
type Store interface {
	// Cases
	CreateCase(c *Case) (caseID int64, err error)
	GetCase(caseID int64) (*Case, error)
	GetCaseByClientID(clientID string) (*Case, error)
	ListCases() ([]*Case, error)
	UpdateCaseStage(caseID int64, stage, status string) error
	UpdateCaseRisk(caseID int64, score int, band string) error
	UpdateCaseOutcome(caseID int64, grade, decision string) error

	// Findings (append-only; ListFindings returns payloads in record order)
	AppendFinding(caseID int64, findingID string, payload []byte) error
	ListFindings(caseID int64) ([][]byte, error)

	// Stage checkpoints (one per case+stage, written after stage completion)
	SaveCheckpoint(caseID int64, stage string, payload []byte) error
	GetCheckpoint(caseID int64, stage string) ([]byte, error)

	// Review decision log
	AppendDecision(d *Decision) (int64, error)
	ListDecisions(caseID int64) ([]*Decision, error)

	// Review session ownership (at most one open session per case)
	OpenSession(caseID int64, officer string) error
	CloseSession(caseID int64) error
	SessionOfficer(caseID int64) (string, error)

	Close() error
}
