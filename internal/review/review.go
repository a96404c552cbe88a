// Package review drives the human decision gate. A session is opened over a
// case in the REVIEW stage, accepts query/decide/note commands, and
// finalizes once every required decision point has been decided. After
// finalize every mutation fails with ErrSessionClosed.
package review

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"caseline/internal/grade"
	"caseline/internal/ledger"
	"caseline/internal/store"
	"caseline/internal/synthesis"
)

// ErrSessionClosed is returned by every mutating call after Finalize.
var ErrSessionClosed = errors.New("review session is closed")

// ValidationError rejects a review command without changing session state.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid review command: %s: %s", e.Field, e.Reason)
}

// Action is one entry in the session transcript, queries included.
type Action struct {
	Type    string `json:"type"` // query | decide | note | finalize
	Officer string `json:"officer"`
	Text    string `json:"text,omitempty"`
	PointID string `json:"point_id,omitempty"`
	Option  string `json:"option,omitempty"`
	At      string `json:"at"`
}

// PointStatus is the review-facing view of one decision point.
type PointStatus struct {
	Point   synthesis.Point `json:"point"`
	Decided bool            `json:"decided"`
	Option  string          `json:"option,omitempty"`
}

// Session is one officer's open review of a case. At most one session per
// case; ownership is held in the store.
type Session struct {
	mu sync.Mutex

	caseID  int64
	officer string
	st      store.Store

	findings  []ledger.Finding
	breakdown grade.Breakdown
	rec       synthesis.Recommendation
	points    []synthesis.Point
	decided   map[string]string

	actions []Action
	closed  bool
	final   synthesis.Decision
}

// Open claims the case's review session for an officer. The case must be in
// the REVIEW stage; the caller passes the synthesis output backing the
// session.
func Open(st store.Store, caseID int64, officer string, findings []ledger.Finding, breakdown grade.Breakdown, rec synthesis.Recommendation, points []synthesis.Point) (*Session, error) {
	if strings.TrimSpace(officer) == "" {
		return nil, &ValidationError{Field: "officer", Reason: "required"}
	}
	if err := st.OpenSession(caseID, officer); err != nil {
		return nil, err
	}

	s := &Session{
		caseID:    caseID,
		officer:   officer,
		st:        st,
		findings:  findings,
		breakdown: breakdown,
		rec:       rec,
		points:    points,
		decided:   map[string]string{},
	}

	// Rehydrate decisions from a previously interrupted session.
	prior, err := st.ListDecisions(caseID)
	if err != nil {
		_ = st.CloseSession(caseID)
		return nil, fmt.Errorf("load decision log: %w", err)
	}
	for _, d := range prior {
		s.decided[d.PointID] = d.Option
	}
	return s, nil
}

// Officer returns the session owner.
func (s *Session) Officer() string { return s.officer }

// Query answers a free-text question from the ledger, grade and
// recommendation only. It is logged in the transcript and changes nothing.
func (s *Session) Query(text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrSessionClosed
	}
	if strings.TrimSpace(text) == "" {
		return "", &ValidationError{Field: "query", Reason: "required"}
	}

	answer := s.answer(text)
	s.actions = append(s.actions, Action{
		Type: "query", Officer: s.officer, Text: text, At: nowUTC(),
	})
	return answer, nil
}

// answer is a deterministic retrieval over the session's evidence. It never
// reaches outside the case.
func (s *Session) answer(text string) string {
	q := strings.ToLower(text)
	var b strings.Builder

	switch {
	case strings.Contains(q, "recommend") || strings.Contains(q, "disposition") || strings.Contains(q, "decision"):
		fmt.Fprintf(&b, "Recommended disposition: %s (%s).", s.rec.Decision, s.rec.Reasoning)
		for _, c := range s.rec.Conditions {
			fmt.Fprintf(&b, "\n  condition: %s", c)
		}
	case strings.Contains(q, "grade") || strings.Contains(q, "confidence") || strings.Contains(q, "evidence quality"):
		fmt.Fprintf(&b, "Evidence grade %s: %d findings (%d verified, %d sourced, %d inferred, %d unknown), %d unresolved contradictions.",
			s.breakdown.Grade, s.breakdown.Total, s.breakdown.Verified, s.breakdown.Sourced,
			s.breakdown.Inferred, s.breakdown.Unknown, s.breakdown.Unresolved)
	default:
		matches := 0
		for _, f := range ledger.Active(s.findings) {
			if strings.Contains(strings.ToLower(f.Claim), q) ||
				strings.Contains(strings.ToLower(f.Subject), q) ||
				strings.Contains(strings.ToLower(f.Topic), q) {
				matches++
				fmt.Fprintf(&b, "[%s] %s: %s (%s)\n", f.Class, f.Subject, f.Claim, f.Capability)
			}
		}
		if matches == 0 {
			fmt.Fprintf(&b, "No findings match %q.", text)
		}
	}
	return b.String()
}

// Decide records a decision for a point. Choosing an option other than the
// recommended one requires a non-empty note; the decision is appended to
// the durable decision log before the session state updates.
func (s *Session) Decide(pointID, option, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}

	point := s.point(pointID)
	if point == nil {
		return &ValidationError{Field: "point_id", Reason: fmt.Sprintf("unknown decision point %q", pointID)}
	}
	valid := false
	for _, o := range point.Options {
		if o == option {
			valid = true
		}
	}
	if !valid {
		return &ValidationError{Field: "option", Reason: fmt.Sprintf("%q is not an option for %s (options: %s)", option, pointID, strings.Join(point.Options, ", "))}
	}

	override := option != point.Recommended
	if override && strings.TrimSpace(note) == "" {
		return &ValidationError{Field: "note", Reason: "overriding the recommendation requires a justification note"}
	}

	if _, err := s.st.AppendDecision(&store.Decision{
		CaseID:   s.caseID,
		PointID:  pointID,
		Option:   option,
		Officer:  s.officer,
		Note:     note,
		Override: override,
	}); err != nil {
		return fmt.Errorf("record decision: %w", err)
	}

	s.decided[pointID] = option
	s.actions = append(s.actions, Action{
		Type: "decide", Officer: s.officer, PointID: pointID, Option: option, Text: note, At: nowUTC(),
	})
	return nil
}

// Note appends a free-form officer note to the transcript.
func (s *Session) Note(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if strings.TrimSpace(text) == "" {
		return &ValidationError{Field: "note", Reason: "required"}
	}
	s.actions = append(s.actions, Action{Type: "note", Officer: s.officer, Text: text, At: nowUTC()})
	return nil
}

// Status reports every decision point and whether it has been decided.
func (s *Session) Status() []PointStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PointStatus, 0, len(s.points))
	for _, p := range s.points {
		option, decided := s.decided[p.ID]
		out = append(out, PointStatus{Point: p, Decided: decided, Option: option})
	}
	return out
}

// Pending lists the required points still undecided.
func (s *Session) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingLocked()
}

func (s *Session) pendingLocked() []string {
	var out []string
	for _, p := range s.points {
		if p.Required {
			if _, ok := s.decided[p.ID]; !ok {
				out = append(out, p.ID)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Finalize closes the session. Every required decision point must be
// decided; the final disposition is the decided final_disposition option.
// Session ownership is released and later mutations get ErrSessionClosed.
func (s *Session) Finalize() (synthesis.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrSessionClosed
	}
	if pending := s.pendingLocked(); len(pending) > 0 {
		return "", &ValidationError{
			Field:  "decision_points",
			Reason: fmt.Sprintf("required points undecided: %s", strings.Join(pending, ", ")),
		}
	}

	final := synthesis.Decision(s.decided["final_disposition"])
	if final == "" {
		final = s.rec.Decision
	}

	if err := s.st.CloseSession(s.caseID); err != nil {
		return "", fmt.Errorf("release session: %w", err)
	}
	s.closed = true
	s.final = final
	s.actions = append(s.actions, Action{Type: "finalize", Officer: s.officer, Option: string(final), At: nowUTC()})
	return final, nil
}

// Final returns the finalized disposition, or "" while the session is open.
func (s *Session) Final() synthesis.Decision {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		return ""
	}
	return s.final
}

// Transcript returns a copy of the session's action log.
func (s *Session) Transcript() []Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Action, len(s.actions))
	copy(out, s.actions)
	return out
}

func (s *Session) point(id string) *synthesis.Point {
	for i := range s.points {
		if s.points[i].ID == id {
			return &s.points[i]
		}
	}
	return nil
}

func nowUTC() string { return time.Now().UTC().Format(time.RFC3339) }
