package pipeline

// Stage is one step of the screening pipeline. A case advances strictly
// forward; a checkpoint is written only when a stage completes.
type Stage string

const (
	StageIntake        Stage = "INTAKE"
	StageInvestigation Stage = "INVESTIGATION"
	StageSynthesis     Stage = "SYNTHESIS"
	StageReview        Stage = "REVIEW"
	StageFinalized     Stage = "FINALIZED"
	StageAborted       Stage = "ABORTED"
)

// next returns the stage that follows s, or "" for terminal stages.
func next(s Stage) Stage {
	switch s {
	case StageIntake:
		return StageInvestigation
	case StageInvestigation:
		return StageSynthesis
	case StageSynthesis:
		return StageReview
	case StageReview:
		return StageFinalized
	default:
		return ""
	}
}

// Terminal reports whether a case in stage s can still advance.
func Terminal(s Stage) bool {
	return s == StageFinalized || s == StageAborted
}
