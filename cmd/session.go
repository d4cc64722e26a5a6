package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/masteryforge/internal/session"
)

var sessionCmd = &cobra.Command{
	Use:   "session <learner>",
	Short: "Summarize the learner's current session, or end it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		end, _ := cmd.Flags().GetBool("end")
		history, _ := cmd.Flags().GetInt("history")

		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		now := time.Now()

		if history > 0 {
			sessions, err := e.tutor.Sessions(ctx, args[0], history)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Fprintln(out, "No sessions recorded.")
				return nil
			}
			fmt.Fprintf(out, "%-19s  %-6s  %9s  %7s  %7s  %s\n", "Started", "State", "Questions", "Correct", "Average", "Duration")
			fmt.Fprintln(out, strings.Repeat("─", 72))
			for _, s := range sessions {
				sum := session.BuildSummary(s, now)
				fmt.Fprintf(out, "%-19s  %-6s  %9d  %7d  %6.1f%%  %s\n",
					sum.StartTime.Local().Format("2006-01-02 15:04:05"), stateLabel(sum.Open),
					sum.TotalQuestions, sum.TotalCorrect, sum.AverageScore, sum.Duration.Round(time.Second))
			}
			return nil
		}

		var s *session.Session
		if end {
			s, err = e.tutor.EndSession(ctx, args[0])
		} else {
			s, err = e.tutor.Session(ctx, args[0])
		}
		if err != nil {
			return err
		}
		if s == nil {
			fmt.Fprintln(out, "No open session.")
			return nil
		}
		printSummary(out, session.BuildSummary(*s, now))
		return nil
	},
}

func stateLabel(open bool) string {
	if open {
		return "open"
	}
	return "closed"
}

func printSummary(out io.Writer, sum session.Summary) {
	fmt.Fprintf(out, "Session %s (%s)\n", sum.ID, stateLabel(sum.Open))
	fmt.Fprintf(out, "  started   %s\n", sum.StartTime.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "  duration  %s\n", sum.Duration.Round(time.Second))
	fmt.Fprintf(out, "  questions %d (%d correct, %.0f%% accuracy)\n", sum.TotalQuestions, sum.TotalCorrect, sum.Accuracy*100)
	fmt.Fprintf(out, "  average   %.1f%%\n", sum.AverageScore)
	if len(sum.Concepts) > 0 {
		fmt.Fprintf(out, "  concepts  %s\n", strings.Join(sum.Concepts, ", "))
	}
}

func init() {
	sessionCmd.Flags().Bool("end", false, "Close the open session and print its final summary")
	sessionCmd.Flags().Int("history", 0, "List the learner's last N sessions instead")
	sessionCmd.MarkFlagsMutuallyExclusive("end", "history")
}
