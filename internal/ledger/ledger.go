// Package ledger is the append-only evidence ledger for a case. Findings are
// immutable once recorded; corrections are new findings that supersede the
// old one. Every successful Record is durable in the backing store before it
// returns.
package ledger

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Class is the evidence quality classification of a finding.
type Class string

const (
	Verified Class = "VERIFIED"  // source reference plus corroborating quote
	Sourced  Class = "SOURCED"   // source reference, no quote
	Inferred Class = "INFERRED"  // deduced from indirect signals
	Unknown  Class = "UNKNOWN"   // searched for, explicitly not found
)

// Valid reports whether c is one of the four classes.
func (c Class) Valid() bool {
	switch c {
	case Verified, Sourced, Inferred, Unknown:
		return true
	}
	return false
}

// Polarity is the direction of a claim for contradiction detection:
// a CLEAR screening result and an ADVERSE media hit on the same topic
// pull in opposite directions.
type Polarity string

const (
	PolarityClear   Polarity = "clear"
	PolarityAdverse Polarity = "adverse"
	PolarityNeutral Polarity = ""
)

// Well-known finding topics. Capabilities may emit others; these are the
// ones synthesis reasons about.
const (
	TopicSanctions    = "sanctions"
	TopicPEP          = "pep"
	TopicAdverseMedia = "adverse_media"
	TopicJurisdiction = "jurisdiction"
	TopicIdentity     = "identity"
	TopicRiskFactor   = "risk_factor"
)

// Finding is one recorded piece of evidence. Value carries the normalized
// fact for identity topics (date of birth, registration number) so synthesis
// can compare findings without parsing claims.
type Finding struct {
	ID          string   `json:"id"`
	Capability  string   `json:"capability"`
	Subject     string   `json:"subject"`
	SubjectRole string   `json:"subject_role,omitempty"`
	Topic       string   `json:"topic"`
	Claim       string   `json:"claim"`
	Class       Class    `json:"class"`
	Polarity    Polarity `json:"polarity,omitempty"`
	SourceRef   string   `json:"source_ref,omitempty"`
	Quote       string   `json:"quote,omitempty"`
	Value       string   `json:"value,omitempty"`
	MatchScore  float64  `json:"match_score,omitempty"`
	Supersedes  string   `json:"supersedes,omitempty"`
	RecordedAt  string   `json:"recorded_at"`
}

// ValidationError rejects a finding at Record time. The ledger stays
// unchanged when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid finding: %s: %s", e.Field, e.Reason)
}

// Sink is the durable backing for recorded findings. store.Store satisfies
// it; tests can substitute their own.
type Sink interface {
	AppendFinding(caseID int64, findingID string, payload []byte) error
	ListFindings(caseID int64) ([][]byte, error)
}

// Ledger serializes writes for one case and validates findings before they
// reach the sink.
type Ledger struct {
	mu     sync.Mutex
	caseID int64
	sink   Sink
	known  map[string]bool // IDs recorded or loaded this session
	now    func() time.Time
}

// New opens the ledger for a case. Existing findings in the sink are visible
// through All/Query immediately.
func New(sink Sink, caseID int64) (*Ledger, error) {
	l := &Ledger{caseID: caseID, sink: sink, known: map[string]bool{}, now: time.Now}
	existing, err := l.All()
	if err != nil {
		return nil, err
	}
	for _, f := range existing {
		l.known[f.ID] = true
	}
	return l, nil
}

// Record validates f, assigns an ID and timestamp, and appends it durably.
// The assigned ID is returned. Class must be valid; Verified and Sourced
// findings must carry a source reference; Verified findings must carry a
// quote; a Supersedes reference must point at an already-recorded finding.
func (l *Ledger) Record(f Finding) (string, error) {
	if err := l.validate(&f); err != nil {
		return "", err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if f.Supersedes != "" && !l.known[f.Supersedes] {
		return "", &ValidationError{Field: "supersedes", Reason: fmt.Sprintf("no finding %s in this case", f.Supersedes)}
	}

	f.ID = uuid.NewString()
	f.RecordedAt = l.now().UTC().Format(time.RFC3339)

	payload, err := json.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("marshal finding: %w", err)
	}
	if err := l.sink.AppendFinding(l.caseID, f.ID, payload); err != nil {
		return "", fmt.Errorf("append finding: %w", err)
	}
	l.known[f.ID] = true
	return f.ID, nil
}

func (l *Ledger) validate(f *Finding) error {
	if strings.TrimSpace(f.Subject) == "" {
		return &ValidationError{Field: "subject", Reason: "required"}
	}
	if strings.TrimSpace(f.Claim) == "" {
		return &ValidationError{Field: "claim", Reason: "required"}
	}
	if f.Class == "" {
		return &ValidationError{Field: "class", Reason: "required"}
	}
	if !f.Class.Valid() {
		return &ValidationError{Field: "class", Reason: fmt.Sprintf("unknown class %q", f.Class)}
	}
	switch f.Class {
	case Verified:
		if f.SourceRef == "" {
			return &ValidationError{Field: "source_ref", Reason: "required for VERIFIED findings"}
		}
		if f.Quote == "" {
			return &ValidationError{Field: "quote", Reason: "required for VERIFIED findings"}
		}
	case Sourced:
		if f.SourceRef == "" {
			return &ValidationError{Field: "source_ref", Reason: "required for SOURCED findings"}
		}
	}
	return nil
}

// All returns every finding for the case in record order.
func (l *Ledger) All() ([]Finding, error) {
	rows, err := l.sink.ListFindings(l.caseID)
	if err != nil {
		return nil, fmt.Errorf("list findings: %w", err)
	}
	out := make([]Finding, 0, len(rows))
	for _, row := range rows {
		var f Finding
		if err := json.Unmarshal(row, &f); err != nil {
			return nil, fmt.Errorf("decode finding: %w", err)
		}
		out = append(out, f)
	}
	return out, nil
}

// Filter narrows a Query. Zero fields match everything.
type Filter struct {
	Subject string
	Topic   string
	Class   Class
}

// Query returns findings matching the filter, in record order.
func (l *Ledger) Query(q Filter) ([]Finding, error) {
	all, err := l.All()
	if err != nil {
		return nil, err
	}
	var out []Finding
	for _, f := range all {
		if q.Subject != "" && !strings.EqualFold(f.Subject, q.Subject) {
			continue
		}
		if q.Topic != "" && f.Topic != q.Topic {
			continue
		}
		if q.Class != "" && f.Class != q.Class {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

// Superseded returns the set of finding IDs that some later finding
// supersedes. Findings in this set are excluded from grading and synthesis.
func Superseded(findings []Finding) map[string]bool {
	out := map[string]bool{}
	for _, f := range findings {
		if f.Supersedes != "" {
			out[f.Supersedes] = true
		}
	}
	return out
}

// Active filters out superseded findings.
func Active(findings []Finding) []Finding {
	dead := Superseded(findings)
	if len(dead) == 0 {
		return findings
	}
	out := make([]Finding, 0, len(findings))
	for _, f := range findings {
		if !dead[f.ID] {
			out = append(out, f)
		}
	}
	return out
}
