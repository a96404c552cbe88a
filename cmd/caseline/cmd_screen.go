package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"caseline/internal/client"
	"caseline/internal/pipeline"
)

var screenFlags struct {
	profilePath string
	resume      bool
	abortCaseID int64
	abortReason string
}

var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Run the screening pipeline for an intake profile",
	Long: `Runs intake scoring, the capability fan-out, and synthesis for one
intake profile, stopping at the review gate. With --resume an interrupted
case re-enters at its first incomplete stage; completed stages are never
re-executed.`,
	RunE: runScreen,
}

func init() {
	f := screenCmd.Flags()
	f.StringVarP(&screenFlags.profilePath, "file", "f", "", "Intake profile (YAML or JSON)")
	f.BoolVar(&screenFlags.resume, "resume", false, "Resume an interrupted case for this client")
	f.Int64Var(&screenFlags.abortCaseID, "abort", 0, "Abort the given case ID instead of screening")
	f.StringVar(&screenFlags.abortReason, "reason", "aborted by operator", "Reason recorded when aborting")
}

func runScreen(cmd *cobra.Command, _ []string) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	runner := buildRunner(st, cfg)
	out := cmd.OutOrStdout()

	if screenFlags.abortCaseID != 0 {
		if err := runner.Abort(screenFlags.abortCaseID, screenFlags.abortReason); err != nil {
			return err
		}
		fmt.Fprintf(out, "Case #%d aborted\n", screenFlags.abortCaseID)
		return nil
	}

	if screenFlags.profilePath == "" {
		return fmt.Errorf("--file is required (or --abort)")
	}
	cl, err := client.LoadFromPath(screenFlags.profilePath)
	if err != nil {
		return err
	}

	state, err := runner.Screen(cmd.Context(), cl, screenFlags.resume)
	if err != nil {
		return err
	}

	cs := state.Case
	fmt.Fprintf(out, "Case:     #%d (%s)\n", cs.ID, cs.DisplayName)
	fmt.Fprintf(out, "Stage:    %s (%s)\n", cs.Stage, cs.Status)
	fmt.Fprintf(out, "Risk:     %d (%s)\n", cs.RiskScore, cs.RiskBand)
	if cs.Grade != "" {
		fmt.Fprintf(out, "Grade:    %s\n", cs.Grade)
	}
	if state.Output != nil {
		fmt.Fprintf(out, "Recommend: %s (%s)\n", state.Output.Recommendation.Decision, state.Output.Recommendation.Reasoning)
		for _, a := range state.Output.Annotations {
			fmt.Fprintf(out, "  note: %s\n", a)
		}
	}
	if pipeline.Stage(cs.Stage) == pipeline.StageReview {
		fmt.Fprintf(out, "Run 'caseline review --case-id %d --officer <name>' to review.\n", cs.ID)
	}
	return nil
}
