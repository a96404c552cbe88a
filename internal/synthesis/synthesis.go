// Package synthesis cross-references the evidence ledger after the
// investigation stage: it derives contradiction and corroboration edges,
// folds the beneficial-owner cascade into the pass-2 risk assessment, and
// produces the disposition recommendation with its decision points. Given
// the same ledger it always produces the same output.
package synthesis

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"caseline/internal/ledger"
	"caseline/internal/risk"
)

// ErrUnavailable marks a synthesis failure the pipeline degrades around:
// the case proceeds to review with raw findings.
var ErrUnavailable = errors.New("synthesis unavailable")

// EdgeKind distinguishes the two relation types between findings.
type EdgeKind string

const (
	EdgeContradiction EdgeKind = "contradiction"
	EdgeCorroboration EdgeKind = "corroboration"
)

// Edge relates two findings on the same subject. Contradictions on
// sanctions or PEP topics force escalation.
type Edge struct {
	Kind             EdgeKind `json:"kind"`
	AID              string   `json:"a_id"`
	BID              string   `json:"b_id"`
	Subject          string   `json:"subject"`
	Topic            string   `json:"topic"`
	Detail           string   `json:"detail"`
	TouchesScreening bool     `json:"touches_screening,omitempty"`
}

// CrossReference derives edges over the active (non-superseded) findings.
// Two findings contradict when they carry opposing polarity for the same
// subject and topic, or conflicting values for the same identity fact.
// Independent same-polarity findings on a topic corroborate each other.
func CrossReference(findings []ledger.Finding) []Edge {
	active := ledger.Active(findings)

	type key struct {
		subject string
		topic   string
	}
	groups := map[key][]ledger.Finding{}
	var order []key
	for _, f := range active {
		k := key{subject: strings.ToLower(f.Subject), topic: f.Topic}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], f)
	}

	var edges []Edge
	for _, k := range order {
		group := groups[k]
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				a, b := group[i], group[j]
				if e := relate(a, b); e != nil {
					edges = append(edges, *e)
				}
			}
		}
	}
	return edges
}

func relate(a, b ledger.Finding) *Edge {
	screening := a.Topic == ledger.TopicSanctions || a.Topic == ledger.TopicPEP

	// Identity facts conflict on value, not polarity.
	if a.Topic == ledger.TopicIdentity {
		if a.Value != "" && b.Value != "" {
			if a.Value != b.Value {
				return &Edge{
					Kind: EdgeContradiction, AID: a.ID, BID: b.ID,
					Subject: a.Subject, Topic: a.Topic,
					Detail: fmt.Sprintf("conflicting identity facts: %q vs %q", a.Value, b.Value),
				}
			}
			if a.Capability != b.Capability || a.SourceRef != b.SourceRef {
				return &Edge{
					Kind: EdgeCorroboration, AID: a.ID, BID: b.ID,
					Subject: a.Subject, Topic: a.Topic,
					Detail: fmt.Sprintf("identity fact %q confirmed by independent checks", a.Value),
				}
			}
		}
		return nil
	}

	if a.Polarity == ledger.PolarityNeutral || b.Polarity == ledger.PolarityNeutral {
		return nil
	}
	if a.Polarity != b.Polarity {
		return &Edge{
			Kind: EdgeContradiction, AID: a.ID, BID: b.ID,
			Subject: a.Subject, Topic: a.Topic,
			Detail:           fmt.Sprintf("opposing results on %s: %q vs %q", a.Topic, a.Claim, b.Claim),
			TouchesScreening: screening,
		}
	}
	if a.Capability != b.Capability || a.SourceRef != b.SourceRef {
		return &Edge{
			Kind: EdgeCorroboration, AID: a.ID, BID: b.ID,
			Subject: a.Subject, Topic: a.Topic,
			Detail: fmt.Sprintf("independent sources agree on %s", a.Topic),
		}
	}
	return nil
}

// Contradictions filters edges down to contradictions.
func Contradictions(edges []Edge) []Edge {
	var out []Edge
	for _, e := range edges {
		if e.Kind == EdgeContradiction {
			out = append(out, e)
		}
	}
	return out
}

// UBOScores computes the per-owner cascade sub-scores from the ledger:
// a non-clear sanctions result is 30, PEP exposure 25, adverse media 15.
func UBOScores(findings []ledger.Finding) map[string]int {
	active := ledger.Active(findings)

	type flags struct{ sanctions, pep, media bool }
	owners := map[string]*flags{}
	for _, f := range active {
		if !strings.HasPrefix(f.SubjectRole, "UBO") {
			continue
		}
		fl := owners[f.Subject]
		if fl == nil {
			fl = &flags{}
			owners[f.Subject] = fl
		}
		if f.Polarity != ledger.PolarityAdverse {
			continue
		}
		switch f.Topic {
		case ledger.TopicSanctions:
			fl.sanctions = true
		case ledger.TopicPEP:
			fl.pep = true
		case ledger.TopicAdverseMedia:
			fl.media = true
		}
	}

	out := map[string]int{}
	for name, fl := range owners {
		score := 0
		if fl.sanctions {
			score += 30
		}
		if fl.pep {
			score += 25
		}
		if fl.media {
			score += 15
		}
		out[name] = score
	}
	return out
}

// Decision is the recommended (or final) case disposition.
type Decision string

const (
	DecisionApprove     Decision = "APPROVE"
	DecisionConditional Decision = "CONDITIONAL"
	DecisionEscalate    Decision = "ESCALATE"
	DecisionDecline     Decision = "DECLINE"
)

// Recommendation is the synthesized disposition with its reasoning.
type Recommendation struct {
	Decision   Decision `json:"decision"`
	Reasoning  string   `json:"reasoning"`
	Conditions []string `json:"conditions,omitempty"`
}

// Recommend applies the disposition rule, in precedence order: a Verified
// sanctions match at or above the threshold declines; an unresolved
// screening contradiction or a CRITICAL band escalates; a HIGH band with a
// clean contradiction slate is conditional; everything else approves.
func Recommend(band risk.Band, findings []ledger.Finding, edges []Edge, declineThreshold float64) Recommendation {
	for _, f := range ledger.Active(findings) {
		if f.Topic == ledger.TopicSanctions && f.Class == ledger.Verified &&
			f.Polarity == ledger.PolarityAdverse && f.MatchScore >= declineThreshold {
			return Recommendation{
				Decision:  DecisionDecline,
				Reasoning: fmt.Sprintf("verified sanctions match for %s (similarity %.2f >= %.2f)", f.Subject, f.MatchScore, declineThreshold),
			}
		}
	}

	contradictions := Contradictions(edges)
	for _, e := range contradictions {
		if e.TouchesScreening {
			return Recommendation{
				Decision:  DecisionEscalate,
				Reasoning: fmt.Sprintf("unresolved %s contradiction for %s", e.Topic, e.Subject),
			}
		}
	}
	if band == risk.BandCritical {
		return Recommendation{Decision: DecisionEscalate, Reasoning: "risk band CRITICAL"}
	}

	if band == risk.BandHigh {
		if len(contradictions) == 0 {
			return Recommendation{
				Decision:  DecisionConditional,
				Reasoning: "risk band HIGH with consistent evidence",
				Conditions: []string{
					"enhanced ongoing monitoring",
					"annual profile refresh",
					"source of funds documentation on file before first transaction",
				},
			}
		}
		return Recommendation{
			Decision:  DecisionEscalate,
			Reasoning: "risk band HIGH with unresolved contradictions",
		}
	}

	if len(contradictions) > 0 {
		return Recommendation{
			Decision:  DecisionEscalate,
			Reasoning: "unresolved contradictions in evidence base",
		}
	}
	return Recommendation{Decision: DecisionApprove, Reasoning: fmt.Sprintf("risk band %s with consistent evidence", band)}
}

// Point is one decision the reviewing officer must make.
type Point struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Options     []string `json:"options"`
	Recommended string   `json:"recommended"`
	Required    bool     `json:"required"`
}

// Points derives the review decision points: the final disposition, one
// point per verified sanctions match, and one per contradiction.
func Points(rec Recommendation, findings []ledger.Finding, edges []Edge) []Point {
	points := []Point{{
		ID:    "final_disposition",
		Title: "Final case disposition",
		Options: []string{
			string(DecisionApprove), string(DecisionConditional),
			string(DecisionEscalate), string(DecisionDecline),
		},
		Recommended: string(rec.Decision),
		Required:    true,
	}}

	n := 0
	for _, f := range ledger.Active(findings) {
		if f.Topic == ledger.TopicSanctions && f.Class == ledger.Verified && f.Polarity == ledger.PolarityAdverse {
			n++
			points = append(points, Point{
				ID:          fmt.Sprintf("sanctions_match_%d", n),
				Title:       fmt.Sprintf("Sanctions match adjudication: %s", f.Claim),
				Options:     []string{"true_match", "false_positive"},
				Recommended: "true_match",
				Required:    true,
			})
		}
	}

	for i, e := range Contradictions(edges) {
		points = append(points, Point{
			ID:          fmt.Sprintf("contradiction_%d", i+1),
			Title:       fmt.Sprintf("Contradiction on %s for %s: %s", e.Topic, e.Subject, e.Detail),
			Options:     []string{"resolved_no_impact", "sustained"},
			Recommended: "sustained",
			Required:    true,
		})
	}
	return points
}

// Output is the full result of the synthesis stage.
type Output struct {
	Edges          []Edge          `json:"edges"`
	Contradictions int             `json:"contradictions"`
	UBOScores      map[string]int  `json:"ubo_scores,omitempty"`
	Revised        risk.Assessment `json:"revised"`
	Recommendation Recommendation  `json:"recommendation"`
	Points         []Point         `json:"points"`
	Skipped        bool            `json:"skipped,omitempty"`
	Annotations    []string        `json:"annotations,omitempty"`
}

// Run executes the full synthesis pass over the ledger.
func Run(findings []ledger.Finding, prelim risk.Assessment, engine *risk.Engine, declineThreshold float64) (*Output, error) {
	if engine == nil {
		return nil, fmt.Errorf("%w: no scoring engine", ErrUnavailable)
	}

	edges := CrossReference(findings)
	uboScores := UBOScores(findings)
	revised := engine.Revise(prelim, uboScores, nil)
	rec := Recommend(revised.Band, findings, edges, declineThreshold)

	out := &Output{
		Edges:          edges,
		Contradictions: len(Contradictions(edges)),
		UBOScores:      uboScores,
		Revised:        revised,
		Recommendation: rec,
		Points:         Points(rec, findings, edges),
	}
	sortEdges(out.Edges)
	return out, nil
}

func sortEdges(edges []Edge) {
	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].Subject != edges[j].Subject {
			return edges[i].Subject < edges[j].Subject
		}
		if edges[i].Topic != edges[j].Topic {
			return edges[i].Topic < edges[j].Topic
		}
		return edges[i].Kind < edges[j].Kind
	})
}
