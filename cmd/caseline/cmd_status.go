package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusFlags struct {
	caseID int64
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show screening state for cases",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().Int64Var(&statusFlags.caseID, "case-id", 0, "Case DB ID (omit to list all cases)")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	out := cmd.OutOrStdout()

	if statusFlags.caseID == 0 {
		cases, err := st.ListCases()
		if err != nil {
			return err
		}
		if len(cases) == 0 {
			fmt.Fprintln(out, "No cases. Run 'caseline screen -f <profile>' to start one.")
			return nil
		}
		for _, c := range cases {
			fmt.Fprintf(out, "#%-4d %-30s %-13s %-16s risk %3d %-8s %s\n",
				c.ID, c.DisplayName, c.Stage, c.Status, c.RiskScore, c.RiskBand, c.Decision)
		}
		return nil
	}

	runner := buildRunner(st, cfg)
	state, err := runner.LoadState(statusFlags.caseID)
	if err != nil {
		return err
	}

	c := state.Case
	fmt.Fprintf(out, "Case:     #%d (%s, %s)\n", c.ID, c.DisplayName, c.ClientType)
	fmt.Fprintf(out, "Stage:    %s (%s)\n", c.Stage, c.Status)
	fmt.Fprintf(out, "Risk:     %d (%s)\n", c.RiskScore, c.RiskBand)
	if c.Grade != "" {
		fmt.Fprintf(out, "Grade:    %s\n", c.Grade)
	}
	if c.Decision != "" {
		fmt.Fprintf(out, "Decision: %s\n", c.Decision)
	}
	if len(state.Plan.Regulations) > 0 {
		fmt.Fprintf(out, "Regs:     %v\n", state.Plan.Regulations)
	}
	if len(state.Findings) > 0 {
		fmt.Fprintf(out, "Findings: %d\n", len(state.Findings))
	}
	if state.Output != nil {
		fmt.Fprintf(out, "Recommend: %s (%s)\n", state.Output.Recommendation.Decision, state.Output.Recommendation.Reasoning)
		fmt.Fprintf(out, "Edges:     %d (%d contradictions)\n", len(state.Output.Edges), state.Output.Contradictions)
		for _, a := range state.Output.Annotations {
			fmt.Fprintf(out, "  note: %s\n", a)
		}
	}

	officer, err := st.SessionOfficer(statusFlags.caseID)
	if err != nil {
		return err
	}
	if officer != "" {
		fmt.Fprintf(out, "Review session open: %s\n", officer)
	}
	return nil
}
