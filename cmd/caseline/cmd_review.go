package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"caseline/internal/pipeline"
	"caseline/internal/review"
)

var reviewFlags struct {
	caseID  int64
	officer string
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Open the interactive review session for a case",
	Long: `Opens the review gate for a case in the REVIEW stage. Commands:

  status                         list decision points
  query <text>                   ask about the case evidence
  decide <point> <option> [note] record a decision (note required on override)
  note <text>                    append an officer note
  finalize                       close the case (all required points decided)
  quit                           leave the session open and exit`,
	RunE: runReview,
}

func init() {
	f := reviewCmd.Flags()
	f.Int64Var(&reviewFlags.caseID, "case-id", 0, "Case DB ID (required)")
	f.StringVar(&reviewFlags.officer, "officer", "", "Reviewing officer name (required)")

	_ = reviewCmd.MarkFlagRequired("case-id")
	_ = reviewCmd.MarkFlagRequired("officer")
}

func runReview(cmd *cobra.Command, _ []string) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	runner := buildRunner(st, cfg)
	state, err := runner.LoadState(reviewFlags.caseID)
	if err != nil {
		return err
	}
	if pipeline.Stage(state.Case.Stage) != pipeline.StageReview {
		return fmt.Errorf("case %d is in stage %s, not %s", reviewFlags.caseID, state.Case.Stage, pipeline.StageReview)
	}
	if state.Output == nil {
		return fmt.Errorf("case %d has no synthesis checkpoint", reviewFlags.caseID)
	}

	sess, err := review.Open(st, reviewFlags.caseID, reviewFlags.officer,
		state.Findings, state.Breakdown, state.Output.Recommendation, state.Output.Points)
	if err != nil {
		return err
	}
	// Release ownership if the officer exits without finalizing.
	defer func() {
		if sess.Final() == "" {
			_ = st.CloseSession(reviewFlags.caseID)
		}
	}()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Case #%d (%s): risk %s, grade %s\n", state.Case.ID, state.Case.DisplayName,
		state.Case.RiskBand, state.Breakdown.Grade)
	fmt.Fprintf(out, "Recommended: %s (%s)\n", state.Output.Recommendation.Decision, state.Output.Recommendation.Reasoning)
	for _, a := range state.Output.Annotations {
		fmt.Fprintf(out, "  note: %s\n", a)
	}
	printStatus(out, sess)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 64*1024), 64*1024)
	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Fprint(out, "> ")
			continue
		}
		verb, rest, _ := strings.Cut(line, " ")

		var cmdErr error
		switch verb {
		case "quit", "exit":
			fmt.Fprintln(out, "Session left open.")
			return nil
		case "status":
			printStatus(out, sess)
		case "query":
			var answer string
			if answer, cmdErr = sess.Query(rest); cmdErr == nil {
				fmt.Fprintln(out, answer)
			}
		case "note":
			cmdErr = sess.Note(rest)
		case "decide":
			pointID, rest2, _ := strings.Cut(rest, " ")
			option, note, _ := strings.Cut(rest2, " ")
			cmdErr = sess.Decide(pointID, option, strings.TrimSpace(note))
		case "finalize":
			final, err := sess.Finalize()
			if err != nil {
				cmdErr = err
				break
			}
			if err := runner.Finalize(reviewFlags.caseID, final); err != nil {
				return err
			}
			fmt.Fprintf(out, "Case #%d finalized: %s\n", reviewFlags.caseID, final)
			return nil
		default:
			fmt.Fprintf(out, "unknown command %q\n", verb)
		}

		if cmdErr != nil {
			var verr *review.ValidationError
			if errors.As(cmdErr, &verr) || errors.Is(cmdErr, review.ErrSessionClosed) {
				fmt.Fprintln(out, cmdErr)
			} else {
				return cmdErr
			}
		}
		fmt.Fprint(out, "> ")
	}
	return scanner.Err()
}

func printStatus(out io.Writer, sess *review.Session) {
	fmt.Fprintln(out, "Decision points:")
	for _, ps := range sess.Status() {
		mark := " "
		detail := fmt.Sprintf("(options: %s; recommended: %s)", strings.Join(ps.Point.Options, ", "), ps.Point.Recommended)
		if ps.Decided {
			mark = "x"
			detail = "decided: " + ps.Option
		}
		fmt.Fprintf(out, "  [%s] %-24s %s\n", mark, ps.Point.ID, detail)
		fmt.Fprintf(out, "      %s\n", ps.Point.Title)
	}
}
