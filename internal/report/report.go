// Package report builds the structural case summary handed to external
// renderers. Output is plain JSON; presentation is out of scope.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"caseline/internal/grade"
	"caseline/internal/ledger"
	"caseline/internal/pipeline"
	"caseline/internal/risk"
	"caseline/internal/store"
	"caseline/internal/synthesis"
)

// Summary is the full external view of a screened case.
type Summary struct {
	CaseID      int64  `json:"case_id"`
	ClientID    string `json:"client_id"`
	ClientType  string `json:"client_type"`
	DisplayName string `json:"display_name"`
	Stage       string `json:"stage"`
	Status      string `json:"status"`
	Decision    string `json:"decision,omitempty"`

	Regulations []string `json:"regulations,omitempty"`

	Preliminary *risk.Assessment `json:"preliminary_assessment,omitempty"`
	Revised     *risk.Assessment `json:"revised_assessment,omitempty"`

	Grade    *grade.Breakdown `json:"evidence_grade,omitempty"`
	Findings []ledger.Finding `json:"findings,omitempty"`

	Edges          []synthesis.Edge          `json:"edges,omitempty"`
	Recommendation *synthesis.Recommendation `json:"recommendation,omitempty"`
	Annotations    []string                  `json:"annotations,omitempty"`

	Decisions []DecisionEntry `json:"decisions,omitempty"`
}

// DecisionEntry is one review decision in the summary.
type DecisionEntry struct {
	PointID  string `json:"point_id"`
	Option   string `json:"option"`
	Officer  string `json:"officer"`
	Note     string `json:"note,omitempty"`
	Override bool   `json:"override,omitempty"`
	At       string `json:"at"`
}

// Build assembles the summary for a case from its checkpointed state and
// decision log.
func Build(st store.Store, runner *pipeline.Runner, caseID int64) (*Summary, error) {
	state, err := runner.LoadState(caseID)
	if err != nil {
		return nil, err
	}

	s := &Summary{
		CaseID:      state.Case.ID,
		ClientID:    state.Case.ClientID,
		ClientType:  state.Case.ClientType,
		DisplayName: state.Case.DisplayName,
		Stage:       state.Case.Stage,
		Status:      state.Case.Status,
		Decision:    state.Case.Decision,
		Regulations: state.Plan.Regulations,
		Findings:    state.Findings,
	}

	if len(state.Prelim.History) > 0 {
		prelim := state.Prelim
		s.Preliminary = &prelim
	}
	if state.Output != nil {
		revised := state.Output.Revised
		s.Revised = &revised
		rec := state.Output.Recommendation
		s.Recommendation = &rec
		s.Edges = state.Output.Edges
		s.Annotations = state.Output.Annotations
		breakdown := state.Breakdown
		s.Grade = &breakdown
	}

	decisions, err := st.ListDecisions(caseID)
	if err != nil {
		return nil, err
	}
	for _, d := range decisions {
		s.Decisions = append(s.Decisions, DecisionEntry{
			PointID:  d.PointID,
			Option:   d.Option,
			Officer:  d.Officer,
			Note:     d.Note,
			Override: d.Override,
			At:       d.CreatedAt,
		})
	}
	return s, nil
}

// WriteJSON renders the summary as indented JSON.
func WriteJSON(w io.Writer, s *Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}
