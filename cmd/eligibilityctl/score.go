package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/liamcoop/eligibility/csvbatch"
	"github.com/liamcoop/eligibility/internal/bootstrap"
)

func newScoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score <input.csv>",
		Short: "Score a CSV file with the configured model",
		Long: "Reads patient rows from a CSV file, scores each one with the same service the HTTP API uses " +
			"and writes the input with eligible, eligible_probability, not_eligible_probability, confidence " +
			"and error columns appended.",
		Args: cobra.ExactArgs(1),
		RunE: runScore,
	}
	cmd.Flags().StringP("output", "o", "", "Write scored CSV to this file instead of stdout")
	return cmd
}

func runScore(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	input, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer input.Close()

	table, err := csvbatch.Read(input, 0)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	bundle, err := bootstrap.LoadBundle(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	svc, _, err := bootstrap.NewService(cfg, bundle)
	if err != nil {
		return err
	}

	outcomes := svc.PredictBatch(table.Records)

	write := func(w io.Writer) error { return csvbatch.Write(w, table, outcomes) }
	if path, _ := cmd.Flags().GetString("output"); path != "" {
		err = writeFile(path, write)
	} else {
		err = write(cmd.OutOrStdout())
	}
	if err != nil {
		return err
	}

	failed, eligible := 0, 0
	for _, o := range outcomes {
		switch {
		case o.Err != nil:
			failed++
		case o.Result.Eligible:
			eligible++
		}
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Scored %d rows: %d eligible, %d not eligible, %d failed\n",
		len(outcomes), eligible, len(outcomes)-eligible-failed, failed)
	return nil
}

// writeFile creates path, runs write on it and returns the close error too
func writeFile(path string, write func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	if err := write(file); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close output: %w", err)
	}
	return nil
}
