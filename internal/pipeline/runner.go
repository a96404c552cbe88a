// Package pipeline is the stage orchestrator: INTAKE, INVESTIGATION,
// SYNTHESIS, REVIEW, FINALIZED, with ABORTED as the manual terminal. Each
// completed stage writes a checkpoint; resume re-enters at the first stage
// without one and recomputes the in-flight stage from scratch.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"caseline/internal/capability"
	"caseline/internal/client"
	"caseline/internal/config"
	"caseline/internal/grade"
	"caseline/internal/ledger"
	"caseline/internal/logging"
	"caseline/internal/plan"
	"caseline/internal/risk"
	"caseline/internal/store"
	"caseline/internal/synthesis"
)

// ErrCaseExists is returned by Screen when the client already has a case
// and resume was not requested.
var ErrCaseExists = errors.New("case already exists for client (use resume)")

// intakeCheckpoint is the payload written after INTAKE completes.
type intakeCheckpoint struct {
	Plan       plan.Plan       `json:"plan"`
	Assessment risk.Assessment `json:"assessment"`
}

// investigationCheckpoint fixes the official evidence subset for the case.
// Findings appended by a crashed attempt stay in the append-only store but
// are not referenced here, which is how partial stage output is discarded.
type investigationCheckpoint struct {
	FindingIDs []string `json:"finding_ids"`
	Incomplete []string `json:"incomplete,omitempty"`
}

// synthesisCheckpoint is the payload written after SYNTHESIS completes (or
// degrades).
type synthesisCheckpoint struct {
	Output    *synthesis.Output `json:"output"`
	Breakdown grade.Breakdown   `json:"breakdown"`
}

// CaseState is the materialized view of a case used by the review and
// report surfaces.
type CaseState struct {
	Case      *store.Case
	Plan      plan.Plan
	Prelim    risk.Assessment
	Findings  []ledger.Finding
	Output    *synthesis.Output
	Breakdown grade.Breakdown
}

// Runner executes the pipeline over one store and capability registry.
type Runner struct {
	st     store.Store
	caps   *capability.Registry
	cfg    config.Config
	engine *risk.Engine
	retry  capability.RetryPolicy
	log    *slog.Logger
}

// New builds a runner. The retry policy derives from config; tests can
// shorten the backoff via SetRetryPolicy.
func New(st store.Store, caps *capability.Registry, cfg config.Config) *Runner {
	return &Runner{
		st:     st,
		caps:   caps,
		cfg:    cfg,
		engine: risk.NewEngine(cfg.Bands),
		retry:  capability.RetryPolicy{Limit: cfg.RetryLimit},
		log:    logging.New("pipeline"),
	}
}

// SetRetryPolicy overrides the capability retry policy.
func (r *Runner) SetRetryPolicy(p capability.RetryPolicy) { r.retry = p }

// Screen runs the pipeline for a client until it reaches the review gate or
// a terminal stage. With resume=false a pre-existing case is an error; with
// resume=true the pipeline re-enters at the first incomplete stage.
func (r *Runner) Screen(ctx context.Context, cl client.Client, resume bool) (*CaseState, error) {
	cs, err := r.st.GetCaseByClientID(cl.ClientID())
	if err != nil {
		return nil, err
	}
	if cs == nil {
		cs = &store.Case{
			ClientID:    cl.ClientID(),
			ClientType:  string(cl.ClientType()),
			DisplayName: cl.DisplayName(),
			Stage:       string(StageIntake),
			Status:      "open",
		}
		if _, err := r.st.CreateCase(cs); err != nil {
			return nil, err
		}
		r.log.Info("case opened", "case_id", cs.ID, "client_id", cs.ClientID, "client_type", cs.ClientType)
	} else if !resume {
		return nil, fmt.Errorf("%w: client %s is case %d in stage %s", ErrCaseExists, cs.ClientID, cs.ID, cs.Stage)
	} else {
		r.log.Info("case resumed", "case_id", cs.ID, "stage", cs.Stage)
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch Stage(cs.Stage) {
		case StageIntake:
			err = r.runIntake(ctx, cs, cl)
		case StageInvestigation:
			err = r.runInvestigation(ctx, cs, cl)
		case StageSynthesis:
			err = r.runSynthesis(ctx, cs)
		case StageReview, StageFinalized, StageAborted:
			casesScreened.WithLabelValues(cs.Stage).Inc()
			return r.LoadState(cs.ID)
		default:
			return nil, fmt.Errorf("case %d in unknown stage %q", cs.ID, cs.Stage)
		}
		if err != nil {
			return nil, err
		}
		cs, err = r.st.GetCase(cs.ID)
		if err != nil {
			return nil, err
		}
	}
}

// Abort marks a case terminally aborted. No checkpoint is written.
func (r *Runner) Abort(caseID int64, reason string) error {
	r.log.Warn("case aborted", "case_id", caseID, "reason", reason)
	return r.st.UpdateCaseStage(caseID, string(StageAborted), reason)
}

// advance checkpoints the finished stage and moves the case forward.
func (r *Runner) advance(cs *store.Case, finished Stage, payload any, status string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s checkpoint: %w", finished, err)
	}
	if err := r.st.SaveCheckpoint(cs.ID, string(finished), data); err != nil {
		return err
	}
	return r.st.UpdateCaseStage(cs.ID, string(next(finished)), status)
}

func (r *Runner) runIntake(_ context.Context, cs *store.Case, cl client.Client) error {
	start := time.Now()

	p := plan.Build(cl)
	prelim := r.engine.Score(cl)

	if err := r.st.UpdateCaseRisk(cs.ID, prelim.Score, string(prelim.Band)); err != nil {
		return err
	}
	if err := r.advance(cs, StageIntake, intakeCheckpoint{Plan: p, Assessment: prelim}, "investigating"); err != nil {
		return err
	}

	stageDuration.WithLabelValues(string(StageIntake)).Observe(time.Since(start).Seconds())
	r.log.Info("intake complete", "case_id", cs.ID,
		"score", prelim.Score, "band", prelim.Band,
		"invocations", len(p.Invocations), "regulations", p.Regulations)
	return nil
}

// invocationOutcome collects one invocation's result off the worker pool so
// findings are recorded in plan order after the fan-out completes.
type invocationOutcome struct {
	findings []ledger.Finding
	err      error
}

func (r *Runner) runInvestigation(ctx context.Context, cs *store.Case, cl client.Client) error {
	start := time.Now()

	var intake intakeCheckpoint
	if err := r.loadCheckpoint(cs.ID, StageIntake, &intake); err != nil {
		return err
	}

	led, err := ledger.New(r.st, cs.ID)
	if err != nil {
		return err
	}

	outcomes := make([]invocationOutcome, len(intake.Plan.Invocations))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Fanout)
	for i, inv := range intake.Plan.Invocations {
		g.Go(func() error {
			outcomes[i] = r.invoke(gctx, cl, inv)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var ids []string
	var incomplete []string
	for i, inv := range intake.Plan.Invocations {
		out := outcomes[i]
		findings := out.findings
		if out.err != nil {
			incomplete = append(incomplete, inv.Capability)
			findings = []ledger.Finding{incompleteFinding(inv, out.err, r.retry.Limit)}
		}
		for _, f := range findings {
			id, err := led.Record(f)
			if err != nil {
				return fmt.Errorf("record %s finding: %w", inv.Capability, err)
			}
			ids = append(ids, id)
		}
	}

	// Intake fields that could not be scored become explicit Unknowns.
	for _, field := range intake.Assessment.Missing {
		id, err := led.Record(ledger.Finding{
			Capability:  "intake",
			Subject:     cs.DisplayName,
			SubjectRole: "client",
			Topic:       ledger.TopicRiskFactor,
			Claim:       fmt.Sprintf("Intake field %s missing; scored 0 points", field),
			Class:       ledger.Unknown,
		})
		if err != nil {
			return fmt.Errorf("record missing-input finding: %w", err)
		}
		ids = append(ids, id)
	}

	if err := r.advance(cs, StageInvestigation, investigationCheckpoint{FindingIDs: ids, Incomplete: incomplete}, "synthesizing"); err != nil {
		return err
	}

	stageDuration.WithLabelValues(string(StageInvestigation)).Observe(time.Since(start).Seconds())
	r.log.Info("investigation complete", "case_id", cs.ID,
		"findings", len(ids), "incomplete", len(incomplete))
	return nil
}

// invoke runs one scheduled capability under the retry policy. It holds no
// locks; results are recorded after the whole fan-out drains.
func (r *Runner) invoke(ctx context.Context, cl client.Client, inv plan.Invocation) invocationOutcome {
	c := r.caps.Lookup(inv.Capability)
	if c == nil {
		capabilityInvocations.WithLabelValues(inv.Capability, "unregistered").Inc()
		return invocationOutcome{err: &capability.Failure{
			Capability: inv.Capability, Kind: capability.FailRefused, Msg: "capability not registered",
		}}
	}

	req := capability.Request{Client: cl, Subject: inv.Subject, SubjectRole: inv.SubjectRole}
	res, err := capability.InvokeWithRetry(ctx, c, req, r.retry, r.log)
	if err != nil {
		if f := capability.AsFailure(err); f != nil && f.Kind == capability.FailNoResults {
			capabilityInvocations.WithLabelValues(inv.Capability, "no_results").Inc()
			return invocationOutcome{findings: []ledger.Finding{{
				Capability:  inv.Capability,
				Subject:     inv.Subject,
				SubjectRole: inv.SubjectRole,
				Topic:       topicFor(inv.Capability),
				Claim:       fmt.Sprintf("%s searched; no records found for subject", inv.Capability),
				Class:       ledger.Unknown,
			}}}
		}
		capabilityInvocations.WithLabelValues(inv.Capability, "failed").Inc()
		return invocationOutcome{err: err}
	}
	capabilityInvocations.WithLabelValues(inv.Capability, "ok").Inc()
	return invocationOutcome{findings: res.Findings}
}

// incompleteFinding records a check that exhausted its retries. The check
// is never silently dropped; review sees the gap.
func incompleteFinding(inv plan.Invocation, cause error, retries int) ledger.Finding {
	return ledger.Finding{
		Capability:  inv.Capability,
		Subject:     inv.Subject,
		SubjectRole: inv.SubjectRole,
		Topic:       topicFor(inv.Capability),
		Claim:       fmt.Sprintf("%s INCOMPLETE after %d retries: %v", inv.Capability, retries, cause),
		Class:       ledger.Unknown,
	}
}

func topicFor(capName string) string {
	switch capName {
	case plan.CapIndividualSanctions, plan.CapEntitySanctions:
		return ledger.TopicSanctions
	case plan.CapPEPDetection:
		return ledger.TopicPEP
	case plan.CapIndividualAdverseMedia, plan.CapBusinessAdverseMedia:
		return ledger.TopicAdverseMedia
	case plan.CapJurisdictionRisk:
		return ledger.TopicJurisdiction
	case plan.CapIDVerification, plan.CapEntityVerification:
		return ledger.TopicIdentity
	default:
		return ledger.TopicRiskFactor
	}
}

func (r *Runner) runSynthesis(_ context.Context, cs *store.Case) error {
	start := time.Now()

	var intake intakeCheckpoint
	if err := r.loadCheckpoint(cs.ID, StageIntake, &intake); err != nil {
		return err
	}
	var inv investigationCheckpoint
	if err := r.loadCheckpoint(cs.ID, StageInvestigation, &inv); err != nil {
		return err
	}
	findings, err := r.officialFindings(cs.ID, inv.FindingIDs)
	if err != nil {
		return err
	}

	out, synthErr := synthesis.Run(findings, intake.Assessment, r.engine, r.cfg.SanctionsDeclineThreshold)
	if synthErr != nil {
		// Degrade: review proceeds over raw findings with an explicit gap.
		r.log.Error("synthesis failed, degrading to review", "case_id", cs.ID, "err", synthErr)
		rec := synthesis.Recommendation{
			Decision:  synthesis.DecisionEscalate,
			Reasoning: "synthesis unavailable; manual cross-reference required",
		}
		out = &synthesis.Output{
			Revised:        intake.Assessment,
			Recommendation: rec,
			Points:         synthesis.Points(rec, findings, nil),
			Skipped:        true,
			Annotations:    []string{fmt.Sprintf("synthesis skipped: %v", synthErr)},
		}
	}
	for _, capName := range inv.Incomplete {
		out.Annotations = append(out.Annotations, fmt.Sprintf("check incomplete: %s", capName))
	}

	breakdown := grade.Evaluate(findings, out.Contradictions, len(inv.Incomplete), r.cfg.GradeCuts)

	if err := r.st.UpdateCaseRisk(cs.ID, out.Revised.Score, string(out.Revised.Band)); err != nil {
		return err
	}
	if err := r.st.UpdateCaseOutcome(cs.ID, string(breakdown.Grade), ""); err != nil {
		return err
	}
	if err := r.advance(cs, StageSynthesis, synthesisCheckpoint{Output: out, Breakdown: breakdown}, "awaiting_review"); err != nil {
		return err
	}

	stageDuration.WithLabelValues(string(StageSynthesis)).Observe(time.Since(start).Seconds())
	r.log.Info("synthesis complete", "case_id", cs.ID,
		"score", out.Revised.Score, "band", out.Revised.Band,
		"grade", breakdown.Grade, "recommendation", out.Recommendation.Decision,
		"contradictions", out.Contradictions, "skipped", out.Skipped)
	return nil
}

// Finalize records the reviewed disposition and closes the case.
func (r *Runner) Finalize(caseID int64, decision synthesis.Decision) error {
	cs, err := r.st.GetCase(caseID)
	if err != nil {
		return err
	}
	if cs == nil {
		return fmt.Errorf("no case %d", caseID)
	}
	if Stage(cs.Stage) != StageReview {
		return fmt.Errorf("case %d is in stage %s, not %s", caseID, cs.Stage, StageReview)
	}
	if err := r.st.UpdateCaseOutcome(caseID, cs.Grade, string(decision)); err != nil {
		return err
	}
	if err := r.st.UpdateCaseStage(caseID, string(StageFinalized), "closed"); err != nil {
		return err
	}
	casesScreened.WithLabelValues(string(StageFinalized)).Inc()
	r.log.Info("case finalized", "case_id", caseID, "decision", decision)
	return nil
}

// LoadState materializes the case view from its checkpoints.
func (r *Runner) LoadState(caseID int64) (*CaseState, error) {
	cs, err := r.st.GetCase(caseID)
	if err != nil {
		return nil, err
	}
	if cs == nil {
		return nil, fmt.Errorf("no case %d", caseID)
	}
	state := &CaseState{Case: cs}

	var intake intakeCheckpoint
	if ok, err := r.tryCheckpoint(caseID, StageIntake, &intake); err != nil {
		return nil, err
	} else if ok {
		state.Plan = intake.Plan
		state.Prelim = intake.Assessment
	}

	var inv investigationCheckpoint
	if ok, err := r.tryCheckpoint(caseID, StageInvestigation, &inv); err != nil {
		return nil, err
	} else if ok {
		state.Findings, err = r.officialFindings(caseID, inv.FindingIDs)
		if err != nil {
			return nil, err
		}
	}

	var synth synthesisCheckpoint
	if ok, err := r.tryCheckpoint(caseID, StageSynthesis, &synth); err != nil {
		return nil, err
	} else if ok {
		state.Output = synth.Output
		state.Breakdown = synth.Breakdown
	}
	return state, nil
}

// officialFindings loads the checkpointed evidence subset in ledger order.
func (r *Runner) officialFindings(caseID int64, ids []string) ([]ledger.Finding, error) {
	led, err := ledger.New(r.st, caseID)
	if err != nil {
		return nil, err
	}
	all, err := led.All()
	if err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []ledger.Finding
	for _, f := range all {
		if want[f.ID] {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *Runner) loadCheckpoint(caseID int64, stage Stage, into any) error {
	ok, err := r.tryCheckpoint(caseID, stage, into)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("case %d missing %s checkpoint", caseID, stage)
	}
	return nil
}

func (r *Runner) tryCheckpoint(caseID int64, stage Stage, into any) (bool, error) {
	data, err := r.st.GetCheckpoint(caseID, string(stage))
	if err != nil {
		return false, err
	}
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, into); err != nil {
		return false, fmt.Errorf("decode %s checkpoint: %w", stage, err)
	}
	return true, nil
}
