package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"caseline/internal/report"
)

var reportFlags struct {
	caseID  int64
	outPath string
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write the structural case summary as JSON",
	RunE:  runReport,
}

func init() {
	f := reportCmd.Flags()
	f.Int64Var(&reportFlags.caseID, "case-id", 0, "Case DB ID (required)")
	f.StringVarP(&reportFlags.outPath, "out", "o", "", "Output file (default stdout)")

	_ = reportCmd.MarkFlagRequired("case-id")
}

func runReport(cmd *cobra.Command, _ []string) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	runner := buildRunner(st, cfg)
	summary, err := report.Build(st, runner, reportFlags.caseID)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if reportFlags.outPath != "" {
		f, err := os.Create(reportFlags.outPath)
		if err != nil {
			return fmt.Errorf("create report file: %w", err)
		}
		defer f.Close()
		w = f
	}
	return report.WriteJSON(w, summary)
}
