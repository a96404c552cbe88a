// Package reviewmcp exposes the review session over MCP so an agent client
// can drive the decision gate with the same commands the CLI offers.
package reviewmcp

import (
	"context"
	"fmt"
	"sync"

	"caseline/internal/logging"
	"caseline/internal/pipeline"
	"caseline/internal/review"
	"caseline/internal/store"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the MCP SDK server and manages at most one open review
// session at a time.
type Server struct {
	MCPServer *sdkmcp.Server

	st     store.Store
	runner *pipeline.Runner

	mu      sync.Mutex
	session *review.Session
	caseID  int64
}

// NewServer creates an MCP server with the review tool set.
func NewServer(st store.Store, runner *pipeline.Runner) *Server {
	s := &Server{st: st, runner: runner}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "caseline", Version: "dev"},
		nil,
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "open_review",
		Description: "Open the review session for a case in the REVIEW stage. Claims session ownership for the officer.",
	}, s.handleOpenReview)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "query_case",
		Description: "Ask a question answered from the case's evidence ledger, grade and recommendation. Logged; changes nothing.",
	}, s.handleQueryCase)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "decide",
		Description: "Record a decision for one decision point. Overriding the recommended option requires a note.",
	}, s.handleDecide)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "add_note",
		Description: "Append a free-form officer note to the session transcript.",
	}, s.handleAddNote)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "review_status",
		Description: "List every decision point with its options, recommendation, and current decision state.",
	}, s.handleReviewStatus)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "finalize_review",
		Description: "Finalize the session. Fails while required decision points are undecided; afterwards the case is closed.",
	}, s.handleFinalizeReview)
}

// --- Tool input/output types ---

type openReviewInput struct {
	CaseID  int64  `json:"case_id" jsonschema:"case ID in the REVIEW stage"`
	Officer string `json:"officer" jsonschema:"reviewing officer name, stamped on every decision"`
}

type openReviewOutput struct {
	CaseID         int64  `json:"case_id"`
	Recommendation string `json:"recommendation"`
	Reasoning      string `json:"reasoning"`
	Grade          string `json:"grade"`
	RiskBand       string `json:"risk_band"`
	Points         int    `json:"points"`
}

type queryCaseInput struct {
	Query string `json:"query" jsonschema:"free-text question about the case evidence"`
}

type queryCaseOutput struct {
	Answer string `json:"answer"`
}

type decideInput struct {
	PointID string `json:"point_id" jsonschema:"decision point ID from review_status"`
	Option  string `json:"option" jsonschema:"one of the point's options"`
	Note    string `json:"note,omitempty" jsonschema:"justification, required when overriding the recommendation"`
}

type decideOutput struct {
	OK      string   `json:"ok"`
	Pending []string `json:"pending,omitempty"`
}

type addNoteInput struct {
	Note string `json:"note" jsonschema:"note text"`
}

type addNoteOutput struct {
	OK string `json:"ok"`
}

type reviewStatusInput struct{}

type reviewStatusOutput struct {
	Points []review.PointStatus `json:"points"`
}

type finalizeReviewInput struct{}

type finalizeReviewOutput struct {
	Decision string `json:"decision"`
}

// --- Tool handlers ---

func (s *Server) handleOpenReview(_ context.Context, _ *sdkmcp.CallToolRequest, input openReviewInput) (*sdkmcp.CallToolResult, openReviewOutput, error) {
	log := logging.New("review-mcp")

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil && s.session.Final() == "" {
		return nil, openReviewOutput{}, fmt.Errorf("a review session is already open for case %d", s.caseID)
	}

	state, err := s.runner.LoadState(input.CaseID)
	if err != nil {
		return nil, openReviewOutput{}, err
	}
	if pipeline.Stage(state.Case.Stage) != pipeline.StageReview {
		return nil, openReviewOutput{}, fmt.Errorf("case %d is in stage %s, not %s", input.CaseID, state.Case.Stage, pipeline.StageReview)
	}
	if state.Output == nil {
		return nil, openReviewOutput{}, fmt.Errorf("case %d has no synthesis checkpoint", input.CaseID)
	}

	sess, err := review.Open(s.st, input.CaseID, input.Officer,
		state.Findings, state.Breakdown, state.Output.Recommendation, state.Output.Points)
	if err != nil {
		return nil, openReviewOutput{}, err
	}
	s.session = sess
	s.caseID = input.CaseID
	log.Info("review session opened", "case_id", input.CaseID, "officer", input.Officer)

	return nil, openReviewOutput{
		CaseID:         input.CaseID,
		Recommendation: string(state.Output.Recommendation.Decision),
		Reasoning:      state.Output.Recommendation.Reasoning,
		Grade:          string(state.Breakdown.Grade),
		RiskBand:       string(state.Output.Revised.Band),
		Points:         len(state.Output.Points),
	}, nil
}

func (s *Server) getSession() (*review.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, fmt.Errorf("no open review session (call open_review first)")
	}
	return s.session, nil
}

func (s *Server) handleQueryCase(_ context.Context, _ *sdkmcp.CallToolRequest, input queryCaseInput) (*sdkmcp.CallToolResult, queryCaseOutput, error) {
	sess, err := s.getSession()
	if err != nil {
		return nil, queryCaseOutput{}, err
	}
	answer, err := sess.Query(input.Query)
	if err != nil {
		return nil, queryCaseOutput{}, err
	}
	return nil, queryCaseOutput{Answer: answer}, nil
}

func (s *Server) handleDecide(_ context.Context, _ *sdkmcp.CallToolRequest, input decideInput) (*sdkmcp.CallToolResult, decideOutput, error) {
	sess, err := s.getSession()
	if err != nil {
		return nil, decideOutput{}, err
	}
	if err := sess.Decide(input.PointID, input.Option, input.Note); err != nil {
		return nil, decideOutput{}, err
	}
	return nil, decideOutput{OK: "recorded", Pending: sess.Pending()}, nil
}

func (s *Server) handleAddNote(_ context.Context, _ *sdkmcp.CallToolRequest, input addNoteInput) (*sdkmcp.CallToolResult, addNoteOutput, error) {
	sess, err := s.getSession()
	if err != nil {
		return nil, addNoteOutput{}, err
	}
	if err := sess.Note(input.Note); err != nil {
		return nil, addNoteOutput{}, err
	}
	return nil, addNoteOutput{OK: "recorded"}, nil
}

func (s *Server) handleReviewStatus(_ context.Context, _ *sdkmcp.CallToolRequest, _ reviewStatusInput) (*sdkmcp.CallToolResult, reviewStatusOutput, error) {
	sess, err := s.getSession()
	if err != nil {
		return nil, reviewStatusOutput{}, err
	}
	return nil, reviewStatusOutput{Points: sess.Status()}, nil
}

func (s *Server) handleFinalizeReview(_ context.Context, _ *sdkmcp.CallToolRequest, _ finalizeReviewInput) (*sdkmcp.CallToolResult, finalizeReviewOutput, error) {
	sess, err := s.getSession()
	if err != nil {
		return nil, finalizeReviewOutput{}, err
	}
	decision, err := sess.Finalize()
	if err != nil {
		return nil, finalizeReviewOutput{}, err
	}

	s.mu.Lock()
	caseID := s.caseID
	s.mu.Unlock()
	if err := s.runner.Finalize(caseID, decision); err != nil {
		return nil, finalizeReviewOutput{}, err
	}
	return nil, finalizeReviewOutput{Decision: string(decision)}, nil
}
