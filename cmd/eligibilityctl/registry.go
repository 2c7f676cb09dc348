package main

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/liamcoop/eligibility/artifacts"
	"github.com/liamcoop/eligibility/config"
	"github.com/liamcoop/eligibility/internal/bootstrap"
)

func newPublishCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish <artifact-dir>",
		Short: "Store a file bundle in the registry and make it active",
		Long: "Reads model.json, scaler.json, features.json and optional model_info.json from a directory, " +
			"validates them together, and stores them as the next version of the bundle name.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := artifacts.ReadDocuments(args[0])
			if err != nil {
				return err
			}

			db, name, err := openRegistry(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			v, err := artifacts.Publish(cmd.Context(), db, name, docs)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Published %s v%d (%s)\n", v.Name, v.Version, v.ID)
			return nil
		},
	}
	cmd.Flags().String("name", "", "Bundle name (defaults to artifact_name)")
	return cmd
}

func newVersionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "versions",
		Short: "List registry versions of a bundle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, name, err := openRegistry(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			versions, err := artifacts.ListVersions(cmd.Context(), db, name)
			if err != nil {
				return err
			}
			if len(versions) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No versions of %s\n", name)
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "VERSION\tACTIVE\tID\tCREATED")
			for _, v := range versions {
				active := ""
				if v.Active {
					active = "*"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", v.Version, active, v.ID, v.CreatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().String("name", "", "Bundle name (defaults to artifact_name)")
	return cmd
}

func newActivateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activate <version>",
		Short: "Make an existing registry version the active one",
		Long:  "Switches the active version of a bundle. Running servers pick it up on their next restart.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil || version < 1 {
				return fmt.Errorf("invalid version %q", args[0])
			}

			db, name, err := openRegistry(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := artifacts.Activate(cmd.Context(), db, name, version); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Activated %s v%d\n", name, version)
			return nil
		},
	}
	cmd.Flags().String("name", "", "Bundle name (defaults to artifact_name)")
	return cmd
}

// openRegistry connects to the registry database and resolves the bundle name
func openRegistry(cmd *cobra.Command) (*sql.DB, string, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, "", err
	}
	if cfg.DatabaseURL == "" {
		return nil, "", errors.New("database URL is required: use --database or DATABASE_URL")
	}

	name := cfg.ArtifactName
	if n, _ := cmd.Flags().GetString("name"); n != "" {
		name = n
	}
	if name == "" {
		name = config.Default().ArtifactName
	}

	db, err := bootstrap.OpenDB(cmd.Context(), cfg.DatabaseURL)
	if err != nil {
		return nil, "", err
	}
	return db, name, nil
}
