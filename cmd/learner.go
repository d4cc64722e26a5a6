package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var attemptCmd = &cobra.Command{
	Use:   "attempt <learner> <concept>",
	Short: "Record one answer and print the updated scores",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		correct, _ := cmd.Flags().GetBool("correct")
		incorrect, _ := cmd.Flags().GetBool("incorrect")
		if correct == incorrect {
			return errors.New("pass exactly one of --correct or --incorrect")
		}

		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		res, err := e.tutor.RecordAttempt(cmd.Context(), args[0], args[1], correct)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s on %s: attempt %d\n", args[0], args[1], res.State.Attempts)
		fmt.Fprintf(out, "  mastery     %.3f\n", res.State.MasteryScore)
		fmt.Fprintf(out, "  confidence  %.3f\n", res.State.ConfidenceScore)
		fmt.Fprintf(out, "  frustration %.3f\n", res.State.FrustrationScore)
		switch {
		case res.NewlyMastered:
			fmt.Fprintln(out, "Concept mastered!")
		case res.Frustrated:
			fmt.Fprintln(out, "Frustration is high; the next recommendation will steer elsewhere.")
		}
		return nil
	},
}

var nextCmd = &cobra.Command{
	Use:   "next <learner>",
	Short: "Recommend the next concept to study",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		current, _ := cmd.Flags().GetString("current")

		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		c, ok, err := e.tutor.Recommend(cmd.Context(), args[0], current)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing left to study: every concept is mastered or locked.")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s (difficulty %d)\n", c.ID, c.Title, c.Difficulty)
		return nil
	},
}

var progressCmd = &cobra.Command{
	Use:   "progress <learner>",
	Short: "Show mastery, frustration and availability for every concept",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		progress, err := e.tutor.Progress(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-24s  %7s  %11s  %8s  %s\n", "Concept", "Mastery", "Frustration", "Attempts", "Status")
		fmt.Fprintln(out, strings.Repeat("\u2500", 72))

		mastered := 0
		for _, p := range progress {
			if p.Mastered {
				mastered++
			}
			fmt.Fprintf(out, "%-24s  %7.3f  %11.3f  %8d  %s\n",
				p.ConceptID, p.MasteryScore, p.FrustrationScore, p.Attempts, p.Status)
		}
		fmt.Fprintf(out, "\n%d/%d concepts mastered\n", mastered, len(progress))
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <learner> <concept>",
	Short: "List recent attempts, newest first",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		attempts, err := e.tutor.History(cmd.Context(), args[0], args[1], limit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(attempts) == 0 {
			fmt.Fprintln(out, "No attempts recorded.")
			return nil
		}

		fmt.Fprintf(out, "%-26s  %-19s  %-7s  %7s  %11s\n", "ID", "Time", "Result", "Mastery", "Frustration")
		fmt.Fprintln(out, strings.Repeat("\u2500", 80))
		for _, a := range attempts {
			result := "✗"
			if a.Correct {
				result = "✓"
			}
			fmt.Fprintf(out, "%-26s  %-19s  %-7s  %7.3f  %11.3f\n",
				a.ID, a.RecordedAt.Local().Format("2006-01-02 15:04:05"), result, a.MasteryAfter, a.FrustrationAfter)
		}
		return nil
	},
}

var hintCmd = &cobra.Command{
	Use:   "hint <learner> <concept>",
	Short: "Ask for a hint tailored to the learner's progress",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		hint, err := e.tutor.Hint(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hint)
		return nil
	},
}

func init() {
	attemptCmd.Flags().Bool("correct", false, "The answer was correct")
	attemptCmd.Flags().Bool("incorrect", false, "The answer was incorrect")
	attemptCmd.MarkFlagsMutuallyExclusive("correct", "incorrect")

	nextCmd.Flags().String("current", "", "Concept the learner is currently on")

	historyCmd.Flags().Int("limit", 20, "Maximum number of attempts to show (0 for all)")
}
