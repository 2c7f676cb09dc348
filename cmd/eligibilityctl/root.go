package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/liamcoop/eligibility/config"
	"github.com/liamcoop/eligibility/internal/logger"
)

// version is set via -ldflags at build time.
var version = "(devel)"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "eligibilityctl",
		Short:         "Operate the insurance eligibility model",
		Long:          "eligibilityctl scores CSV files offline and manages artifact bundles in the Postgres registry.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// stdout may carry scored CSV, so logs go to stderr
			if err := logger.Configure(logger.Options{Output: cmd.ErrOrStderr()}); err != nil {
				return err
			}
			level := logger.LevelWarning
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				level = logger.LevelDebug
			}
			logger.SetLevel(level)
			return nil
		},
	}

	root.PersistentFlags().String("config", "", "Path to YAML config file (overrides CONFIG_FILE env var)")
	root.PersistentFlags().String("artifact-dir", "", "Read artifacts from this directory (overrides artifact_dir)")
	root.PersistentFlags().String("database", "", "Postgres URL (overrides DATABASE_URL env var)")
	root.PersistentFlags().BoolP("verbose", "v", false, "Log progress to stderr")

	root.AddCommand(newScoreCmd())
	root.AddCommand(newInspectCmd())
	root.AddCommand(newPublishCmd())
	root.AddCommand(newVersionsCmd())
	root.AddCommand(newActivateCmd())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "eligibilityctl", version)
		},
	})

	return root
}

// loadConfig resolves configuration with the global flags taking the highest priority.
// --artifact-dir forces the file source.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if p, _ := cmd.Flags().GetString("config"); p != "" {
		if err := os.Setenv("CONFIG_FILE", p); err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if dir, _ := cmd.Flags().GetString("artifact-dir"); dir != "" {
		cfg.ArtifactSource = config.SourceFile
		cfg.ArtifactDir = dir
	}
	if url, _ := cmd.Flags().GetString("database"); url != "" {
		cfg.DatabaseURL = url
	}
	return cfg, cfg.Validate()
}
