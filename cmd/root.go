package cmd

import (
	"github.com/spf13/cobra"

	"github.com/abhisek/masteryforge/internal/config"
	"github.com/abhisek/masteryforge/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "masteryforge",
	Short: "Adaptive learning engine",
	Long: "MasteryForge tracks how well each learner knows each concept of a prerequisite-ordered\n" +
		"curriculum and recommends what to study next, steering away from concepts that frustrate.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Path to config file (default: ./config/masteryforge.yaml or ./masteryforge.yaml)")
	pf.String("curriculum", "", "Path to curriculum YAML (overrides curriculum_path)")
	pf.String("store", "", "Store driver: memory, sqlite, postgres or redis (overrides store.driver)")
	pf.String("db", "", "Path to SQLite database file (overrides store.sqlite_path and MASTERYFORGE_DB)")

	rootCmd.AddCommand(conceptsCmd)
	rootCmd.AddCommand(attemptCmd)
	rootCmd.AddCommand(nextCmd)
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(hintCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the configuration and applies the persistent flag
// overrides: --curriculum, --store, then --db.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if p, _ := cmd.Flags().GetString("curriculum"); p != "" {
		cfg.CurriculumPath = p
	}
	if d, _ := cmd.Flags().GetString("store"); d != "" {
		cfg.Store.Driver = d
	}
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		if err := store.EnsureDir(p); err != nil {
			return nil, err
		}
		cfg.Store.SQLitePath = p
	}
	return cfg, nil
}
