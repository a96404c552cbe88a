package report

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"caseline/internal/capability"
	"caseline/internal/client"
	"caseline/internal/config"
	"caseline/internal/pipeline"
	"caseline/internal/plan"
	"caseline/internal/screening"
	"caseline/internal/store"
)

func TestBuild_ScreenedCase(t *testing.T) {
	cfg := config.Default()
	st := store.NewMemStore()
	reg := capability.NewRegistry()
	reg.Register(screening.New(plan.CapIndividualSanctions, screening.DefaultEntries, cfg.ScreeningMatchThreshold))
	reg.Register(screening.New(plan.CapEntitySanctions, screening.DefaultEntries, cfg.ScreeningMatchThreshold))
	capability.RegisterStubs(reg)

	runner := pipeline.New(st, reg, cfg)
	runner.SetRetryPolicy(capability.RetryPolicy{Limit: 1, InitialInterval: time.Millisecond})

	state, err := runner.Screen(context.Background(), &client.Individual{
		FullName:       "Alice Chen",
		DateOfBirth:    "1988-04-12",
		Citizenship:    "Canada",
		CountryOfBirth: "Canada",
		SourceOfFunds:  "employment_income",
		AnnualIncome:   95000,
		EstimatedWorth: 400000,
		TaxResidencies: []string{"Canada"},
	}, false)
	if err != nil {
		t.Fatalf("Screen: %v", err)
	}

	if _, err := st.AppendDecision(&store.Decision{
		CaseID: state.Case.ID, PointID: "final_disposition", Option: "APPROVE", Officer: "m.osei",
	}); err != nil {
		t.Fatalf("AppendDecision: %v", err)
	}

	s, err := Build(st, runner, state.Case.ID)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if s.CaseID != state.Case.ID || s.DisplayName != "Alice Chen" {
		t.Errorf("summary header = %+v", s)
	}
	if s.Preliminary == nil || s.Revised == nil || s.Grade == nil || s.Recommendation == nil {
		t.Fatal("summary missing assessment, grade or recommendation sections")
	}
	if len(s.Findings) == 0 {
		t.Error("summary carries no findings")
	}
	if len(s.Regulations) == 0 {
		t.Error("summary carries no regulations")
	}
	if len(s.Decisions) != 1 || s.Decisions[0].Officer != "m.osei" {
		t.Errorf("decisions = %+v", s.Decisions)
	}

	var buf bytes.Buffer
	if err := WriteJSON(&buf, s); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var round Summary
	if err := json.Unmarshal(buf.Bytes(), &round); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if round.CaseID != s.CaseID {
		t.Errorf("round-trip CaseID = %d, want %d", round.CaseID, s.CaseID)
	}
}
