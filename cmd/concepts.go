package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/masteryforge/internal/conceptgraph"
	"github.com/abhisek/masteryforge/internal/curriculum"
)

var conceptsCmd = &cobra.Command{
	Use:   "concepts",
	Short: "Validate and browse the curriculum",
}

var conceptsValidateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Check a curriculum file for unknown prerequisites and cycles",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := curriculumPath(cmd, args)
		if err != nil {
			return err
		}
		g, err := curriculum.LoadFile(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d concepts, %d roots, OK\n", path, g.Len(), len(g.Roots()))
		return nil
	},
}

var conceptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List concepts in study order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := loadGraph(cmd)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		// Header.
		fmt.Fprintf(out, "%-24s  %-36s  %4s  %s\n", "ID", "Title", "Diff", "Prerequisites")
		fmt.Fprintln(out, strings.Repeat("\u2500", 90))

		for _, c := range g.TopologicalOrder() {
			title := c.Title
			if len(title) > 36 {
				title = title[:33] + "..."
			}
			fmt.Fprintf(out, "%-24s  %-36s  %4d  %s\n", c.ID, title, c.Difficulty, strings.Join(c.Prerequisites, ", "))
		}

		fmt.Fprintf(out, "\n%d concepts\n", g.Len())
		return nil
	},
}

var conceptsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one concept with its prerequisites and dependents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := loadGraph(cmd)
		if err != nil {
			return err
		}
		c, err := g.Get(args[0])
		if err != nil {
			return err
		}
		prereqs, _ := g.Prerequisites(c.ID)
		dependents, _ := g.Dependents(c.ID)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "ID:            %s\n", c.ID)
		fmt.Fprintf(out, "Title:         %s\n", c.Title)
		fmt.Fprintf(out, "Difficulty:    %d\n", c.Difficulty)
		if c.Description != "" {
			fmt.Fprintf(out, "Description:   %s\n", c.Description)
		}
		fmt.Fprintf(out, "Prerequisites: %s\n", joinIDs(prereqs))
		fmt.Fprintf(out, "Dependents:    %s\n", joinIDs(dependents))
		return nil
	},
}

func init() {
	conceptsCmd.AddCommand(conceptsValidateCmd)
	conceptsCmd.AddCommand(conceptsListCmd)
	conceptsCmd.AddCommand(conceptsShowCmd)
}

// curriculumPath returns the positional path if given, else the
// configured one.
func curriculumPath(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return "", err
	}
	return cfg.CurriculumPath, nil
}

func loadGraph(cmd *cobra.Command) (*conceptgraph.Graph, error) {
	path, err := curriculumPath(cmd, nil)
	if err != nil {
		return nil, err
	}
	return curriculum.LoadFile(path)
}

func joinIDs(cs []conceptgraph.Concept) string {
	if len(cs) == 0 {
		return "-"
	}
	ids := make([]string, len(cs))
	for i, c := range cs {
		ids[i] = c.ID
	}
	return strings.Join(ids, ", ")
}
