package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"caseline/internal/capability"
	"caseline/internal/client"
	"caseline/internal/config"
	"caseline/internal/grade"
	"caseline/internal/ledger"
	"caseline/internal/plan"
	"caseline/internal/screening"
	"caseline/internal/store"
	"caseline/internal/synthesis"
)

func testRegistry(cfg config.Config) *capability.Registry {
	r := capability.NewRegistry()
	r.Register(screening.New(plan.CapIndividualSanctions, screening.DefaultEntries, cfg.ScreeningMatchThreshold))
	r.Register(screening.New(plan.CapEntitySanctions, screening.DefaultEntries, cfg.ScreeningMatchThreshold))
	capability.RegisterStubs(r)
	return r
}

func testRunner(t *testing.T) (*Runner, store.Store) {
	t.Helper()
	cfg := config.Default()
	st := store.NewMemStore()
	r := New(st, testRegistry(cfg), cfg)
	r.SetRetryPolicy(capability.RetryPolicy{Limit: 1, InitialInterval: time.Millisecond})
	return r, st
}

func cleanIndividual() *client.Individual {
	return &client.Individual{
		FullName:       "Alice Chen",
		DateOfBirth:    "1988-04-12",
		Citizenship:    "Canada",
		CountryOfBirth: "Canada",
		Employment:     client.Employment{Occupation: "teacher", Employer: "School District 39"},
		SourceOfFunds:  "employment_income",
		AnnualIncome:   95000,
		EstimatedWorth: 400000,
		TaxResidencies: []string{"Canada"},
	}
}

func TestScreen_CleanIndividualReachesReview(t *testing.T) {
	r, st := testRunner(t)

	state, err := r.Screen(context.Background(), cleanIndividual(), false)
	if err != nil {
		t.Fatalf("Screen: %v", err)
	}

	if state.Case.Stage != string(StageReview) {
		t.Errorf("Stage = %s, want REVIEW", state.Case.Stage)
	}
	if state.Case.Status != "awaiting_review" {
		t.Errorf("Status = %s", state.Case.Status)
	}
	if state.Case.RiskBand != "LOW" || state.Case.RiskScore != 0 {
		t.Errorf("risk = %d/%s, want 0/LOW", state.Case.RiskScore, state.Case.RiskBand)
	}
	if state.Breakdown.Grade != grade.A {
		t.Errorf("Grade = %s (pctVS %.2f), want A", state.Breakdown.Grade, state.Breakdown.PctVS)
	}
	if state.Output.Recommendation.Decision != synthesis.DecisionApprove {
		t.Errorf("recommendation = %s (%s), want APPROVE",
			state.Output.Recommendation.Decision, state.Output.Recommendation.Reasoning)
	}
	if len(state.Findings) != 9 {
		t.Errorf("got %d findings, want one per scheduled check", len(state.Findings))
	}
	if len(state.Output.Points) == 0 || state.Output.Points[0].ID != "final_disposition" {
		t.Error("expected decision points led by final_disposition")
	}

	// Each completed stage left its checkpoint.
	for _, stage := range []Stage{StageIntake, StageInvestigation, StageSynthesis} {
		cp, err := st.GetCheckpoint(state.Case.ID, string(stage))
		if err != nil {
			t.Fatalf("GetCheckpoint %s: %v", stage, err)
		}
		if cp == nil {
			t.Errorf("missing %s checkpoint", stage)
		}
	}
}

func TestScreen_ExistingCaseNeedsResume(t *testing.T) {
	r, _ := testRunner(t)

	if _, err := r.Screen(context.Background(), cleanIndividual(), false); err != nil {
		t.Fatalf("Screen: %v", err)
	}
	_, err := r.Screen(context.Background(), cleanIndividual(), false)
	if !errors.Is(err, ErrCaseExists) {
		t.Fatalf("second Screen = %v, want ErrCaseExists", err)
	}
}

func TestScreen_ResumeDoesNotReinvoke(t *testing.T) {
	cfg := config.Default()
	st := store.NewMemStore()
	reg := testRegistry(cfg)

	// Count invocations of one scheduled capability.
	invocations := 0
	inner := reg.Lookup(plan.CapPEPDetection)
	reg.Register(&capability.Func{CapName: plan.CapPEPDetection, Fn: func(ctx context.Context, req capability.Request) (*capability.Result, error) {
		invocations++
		return inner.Invoke(ctx, req)
	}})

	r := New(st, reg, cfg)
	r.SetRetryPolicy(capability.RetryPolicy{Limit: 1, InitialInterval: time.Millisecond})

	first, err := r.Screen(context.Background(), cleanIndividual(), false)
	if err != nil {
		t.Fatalf("Screen: %v", err)
	}
	if invocations != 1 {
		t.Fatalf("invocations = %d after first run, want 1", invocations)
	}

	resumed, err := r.Screen(context.Background(), cleanIndividual(), true)
	if err != nil {
		t.Fatalf("resume Screen: %v", err)
	}
	if invocations != 1 {
		t.Errorf("invocations = %d after resume, want 1 (completed stages are not re-run)", invocations)
	}
	if resumed.Case.ID != first.Case.ID {
		t.Errorf("resume opened a new case: %d vs %d", resumed.Case.ID, first.Case.ID)
	}
	if len(resumed.Findings) != len(first.Findings) {
		t.Errorf("findings changed on resume: %d vs %d", len(resumed.Findings), len(first.Findings))
	}
}

func TestScreen_ResumeAfterCrashMatchesCleanRun(t *testing.T) {
	cfg := config.Default()
	st := store.NewMemStore()
	reg := testRegistry(cfg)

	// The broken check returns a finding the ledger rejects (VERIFIED with
	// no provenance), so the investigation stage dies after earlier checks
	// already appended their findings. No checkpoint is written.
	reg.Register(&capability.Func{CapName: plan.CapPEPDetection, Fn: func(_ context.Context, req capability.Request) (*capability.Result, error) {
		return &capability.Result{Findings: []ledger.Finding{{
			Capability:  plan.CapPEPDetection,
			Subject:     req.Subject,
			SubjectRole: req.SubjectRole,
			Topic:       ledger.TopicPEP,
			Claim:       "Self-declared politically exposed position confirmed against intake declaration",
			Class:       ledger.Verified,
		}}}, nil
	}})

	r := New(st, reg, cfg)
	r.SetRetryPolicy(capability.RetryPolicy{Limit: 1, InitialInterval: time.Millisecond})

	if _, err := r.Screen(context.Background(), cleanIndividual(), false); err == nil {
		t.Fatal("expected the first run to fail mid-investigation")
	}

	cs, err := st.GetCaseByClientID(cleanIndividual().ClientID())
	if err != nil || cs == nil {
		t.Fatalf("GetCaseByClientID: %v (case %v)", err, cs)
	}
	if cs.Stage != string(StageInvestigation) {
		t.Fatalf("Stage = %s, want INVESTIGATION (crashed stage left no checkpoint)", cs.Stage)
	}
	orphans, err := st.ListFindings(cs.ID)
	if err != nil {
		t.Fatalf("ListFindings: %v", err)
	}
	if len(orphans) == 0 {
		t.Fatal("expected appended findings from the crashed attempt")
	}

	// Restore the working check and resume; the stage recomputes from
	// scratch and the crashed attempt's appends stay unreferenced.
	capability.RegisterStubs(reg)
	resumed, err := r.Screen(context.Background(), cleanIndividual(), true)
	if err != nil {
		t.Fatalf("resume Screen: %v", err)
	}

	baseline, _ := testRunner(t)
	clean, err := baseline.Screen(context.Background(), cleanIndividual(), false)
	if err != nil {
		t.Fatalf("uninterrupted Screen: %v", err)
	}

	claims := func(fs []ledger.Finding) []string {
		out := make([]string, 0, len(fs))
		for _, f := range fs {
			out = append(out, f.Capability+": "+f.Claim)
		}
		return out
	}
	if diff := cmp.Diff(claims(clean.Findings), claims(resumed.Findings)); diff != "" {
		t.Errorf("official findings differ from an uninterrupted run (-clean +resumed):\n%s", diff)
	}
	if resumed.Breakdown.Grade != clean.Breakdown.Grade {
		t.Errorf("Grade = %s, want %s as in the uninterrupted run", resumed.Breakdown.Grade, clean.Breakdown.Grade)
	}
	if resumed.Output.Revised.Score != clean.Output.Revised.Score {
		t.Errorf("revised score = %d, want %d", resumed.Output.Revised.Score, clean.Output.Revised.Score)
	}

	// The orphan rows are still in the append-only store, over and above
	// the official evidence subset.
	raw, err := st.ListFindings(cs.ID)
	if err != nil {
		t.Fatalf("ListFindings: %v", err)
	}
	if len(raw) <= len(resumed.Findings) {
		t.Errorf("raw findings = %d, official = %d; want orphans retained but excluded",
			len(raw), len(resumed.Findings))
	}
}

func TestScreen_FailingCheckDegradesToIncomplete(t *testing.T) {
	cfg := config.Default()
	st := store.NewMemStore()
	reg := testRegistry(cfg)
	reg.Register(&capability.Func{CapName: plan.CapIndividualSanctions, Fn: func(_ context.Context, _ capability.Request) (*capability.Result, error) {
		return nil, &capability.Failure{Capability: plan.CapIndividualSanctions, Kind: capability.FailError, Msg: "list provider down"}
	}})

	r := New(st, reg, cfg)
	r.SetRetryPolicy(capability.RetryPolicy{Limit: 1, InitialInterval: time.Millisecond})

	state, err := r.Screen(context.Background(), cleanIndividual(), false)
	if err != nil {
		t.Fatalf("Screen: %v", err)
	}
	if state.Case.Stage != string(StageReview) {
		t.Fatalf("Stage = %s, want REVIEW despite the failed check", state.Case.Stage)
	}

	var incomplete bool
	for _, f := range state.Findings {
		if f.Capability == plan.CapIndividualSanctions && strings.Contains(f.Claim, "INCOMPLETE") {
			incomplete = true
			if f.Class != "UNKNOWN" {
				t.Errorf("incomplete finding class = %s, want UNKNOWN", f.Class)
			}
		}
	}
	if !incomplete {
		t.Error("expected an INCOMPLETE finding for the failed check")
	}

	var annotated bool
	for _, a := range state.Output.Annotations {
		if strings.Contains(a, plan.CapIndividualSanctions) {
			annotated = true
		}
	}
	if !annotated {
		t.Errorf("annotations = %v, want the incomplete check named", state.Output.Annotations)
	}

	// A sanctions screen that never completed cannot leave the evidence
	// grade at A, however clean the remaining checks are.
	if state.Breakdown.Grade != grade.B || !state.Breakdown.CappedIncomplete {
		t.Errorf("Grade = %s (capped_incomplete=%v), want B with the incomplete cap",
			state.Breakdown.Grade, state.Breakdown.CappedIncomplete)
	}
	if state.Breakdown.Incomplete != 1 {
		t.Errorf("Incomplete = %d, want 1", state.Breakdown.Incomplete)
	}
}

func TestScreen_SanctionsHitRecommendsDecline(t *testing.T) {
	r, _ := testRunner(t)

	hit := cleanIndividual()
	hit.FullName = "Viktor Alexeyevich Morozov"

	state, err := r.Screen(context.Background(), hit, false)
	if err != nil {
		t.Fatalf("Screen: %v", err)
	}
	if state.Output.Recommendation.Decision != synthesis.DecisionDecline {
		t.Errorf("recommendation = %s (%s), want DECLINE",
			state.Output.Recommendation.Decision, state.Output.Recommendation.Reasoning)
	}

	var matchPoint bool
	for _, p := range state.Output.Points {
		if p.ID == "sanctions_match_1" {
			matchPoint = true
		}
	}
	if !matchPoint {
		t.Error("expected a sanctions match adjudication point")
	}
}

func TestFinalize(t *testing.T) {
	r, _ := testRunner(t)

	state, err := r.Screen(context.Background(), cleanIndividual(), false)
	if err != nil {
		t.Fatalf("Screen: %v", err)
	}
	caseID := state.Case.ID

	if err := r.Finalize(caseID, synthesis.DecisionApprove); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	final, err := r.LoadState(caseID)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if final.Case.Stage != string(StageFinalized) || final.Case.Status != "closed" {
		t.Errorf("case = %s/%s, want FINALIZED/closed", final.Case.Stage, final.Case.Status)
	}
	if final.Case.Decision != string(synthesis.DecisionApprove) {
		t.Errorf("Decision = %s, want APPROVE", final.Case.Decision)
	}

	// FINALIZED is terminal.
	if err := r.Finalize(caseID, synthesis.DecisionDecline); err == nil {
		t.Error("expected error finalizing a closed case")
	}
}

func TestAbort(t *testing.T) {
	r, _ := testRunner(t)

	state, err := r.Screen(context.Background(), cleanIndividual(), false)
	if err != nil {
		t.Fatalf("Screen: %v", err)
	}
	if err := r.Abort(state.Case.ID, "client withdrew application"); err != nil {
		t.Fatalf("Abort: %v", err)
	}

	aborted, err := r.LoadState(state.Case.ID)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if aborted.Case.Stage != string(StageAborted) {
		t.Errorf("Stage = %s, want ABORTED", aborted.Case.Stage)
	}
	// A resumed screen of an aborted case stays terminal.
	resumed, err := r.Screen(context.Background(), cleanIndividual(), true)
	if err != nil {
		t.Fatalf("resume Screen: %v", err)
	}
	if resumed.Case.Stage != string(StageAborted) {
		t.Errorf("resume advanced an aborted case to %s", resumed.Case.Stage)
	}
}

func TestScreen_BusinessWithSanctionedOwnerEscalates(t *testing.T) {
	r, _ := testRunner(t)

	biz := &client.Business{
		LegalName:                 "North Shore Imports Inc",
		RegistrationNumber:        "BC7654321",
		IncorporationDate:         "2012-03-01",
		IncorporationJurisdiction: "British Columbia",
		Industry:                  "software",
		CountriesOfOperation:      []string{"Canada"},
		AnnualTxnVolume:           800_000,
		BeneficialOwners: []client.BeneficialOwner{
			{FullName: "Dmitri Volkov", OwnershipPercent: 55, Citizenship: "Belarus"},
			{FullName: "Janet Hill", OwnershipPercent: 45, Citizenship: "Canada"},
		},
	}

	state, err := r.Screen(context.Background(), biz, false)
	if err != nil {
		t.Fatalf("Screen: %v", err)
	}

	// The owner hit is Verified sanctions at full similarity, so the case
	// recommendation is DECLINE regardless of the entity's own clean screen.
	if state.Output.Recommendation.Decision != synthesis.DecisionDecline {
		t.Errorf("recommendation = %s (%s), want DECLINE",
			state.Output.Recommendation.Decision, state.Output.Recommendation.Reasoning)
	}
	if state.Output.UBOScores["Dmitri Volkov"] != 30 {
		t.Errorf("UBO score = %d, want 30 for the sanctions hit", state.Output.UBOScores["Dmitri Volkov"])
	}
	// Cascade half-weight lands on the revised score.
	if state.Output.Revised.Score < 15 {
		t.Errorf("revised score = %d, want at least the 15-point cascade", state.Output.Revised.Score)
	}
}

func TestTopicFor(t *testing.T) {
	cases := map[string]string{
		plan.CapIndividualSanctions: "sanctions",
		plan.CapEntitySanctions:     "sanctions",
		plan.CapPEPDetection:        "pep",
		plan.CapJurisdictionRisk:    "jurisdiction",
		plan.CapIDVerification:      "identity",
		plan.CapSuitability:         "risk_factor",
	}
	for capName, want := range cases {
		if got := topicFor(capName); got != want {
			t.Errorf("topicFor(%s) = %s, want %s", capName, got, want)
		}
	}
}
