// Package grade scores the evidentiary quality of a case. The grade is a
// pure function of the active findings and the number of unresolved
// contradictions; it never looks at the risk score.
package grade

import (
	"caseline/internal/config"
	"caseline/internal/ledger"
)

// Grade is the letter quality of a case's evidence base.
type Grade string

const (
	A Grade = "A"
	B Grade = "B"
	C Grade = "C"
	D Grade = "D"
	F Grade = "F"
)

// Breakdown is the grade plus the class distribution that produced it,
// kept for the report and for review queries.
type Breakdown struct {
	Grade            Grade   `json:"grade"`
	Total            int     `json:"total"`
	Verified         int     `json:"verified"`
	Sourced          int     `json:"sourced"`
	Inferred         int     `json:"inferred"`
	Unknown          int     `json:"unknown"`
	PctVS            float64 `json:"pct_verified_sourced"`
	Capped           bool    `json:"capped_by_contradiction,omitempty"`
	CappedIncomplete bool    `json:"capped_by_incomplete,omitempty"`
	Unresolved       int     `json:"unresolved_contradictions"`
	Incomplete       int     `json:"incomplete_checks"`
}

// Evaluate grades the active findings. Superseded findings are excluded
// before counting. An empty ledger is F. Any unresolved contradiction caps
// the result at C; any check that never completed caps it at B.
func Evaluate(findings []ledger.Finding, unresolved, incomplete int, cuts config.GradeCuts) Breakdown {
	active := ledger.Active(findings)

	b := Breakdown{Unresolved: unresolved, Incomplete: incomplete}
	for _, f := range active {
		b.Total++
		switch f.Class {
		case ledger.Verified:
			b.Verified++
		case ledger.Sourced:
			b.Sourced++
		case ledger.Inferred:
			b.Inferred++
		case ledger.Unknown:
			b.Unknown++
		}
	}

	if b.Total == 0 {
		b.Grade = F
		return b
	}
	b.PctVS = float64(b.Verified+b.Sourced) / float64(b.Total)

	switch {
	case b.PctVS >= cuts.A:
		b.Grade = A
	case b.PctVS >= cuts.B:
		b.Grade = B
	case b.PctVS >= cuts.C:
		b.Grade = C
	case b.PctVS >= cuts.D:
		b.Grade = D
	default:
		b.Grade = F
	}

	// An A or B with open contradictions overstates confidence.
	if unresolved > 0 && (b.Grade == A || b.Grade == B) {
		b.Grade = C
		b.Capped = true
	}
	// A check that never completed leaves a hole in the evidence base no
	// share of verified findings can close.
	if incomplete > 0 && b.Grade == A {
		b.Grade = B
		b.CappedIncomplete = true
	}
	return b
}

// Rank orders grades for comparisons; higher is better.
func Rank(g Grade) int {
	switch g {
	case A:
		return 4
	case B:
		return 3
	case C:
		return 2
	case D:
		return 1
	default:
		return 0
	}
}
