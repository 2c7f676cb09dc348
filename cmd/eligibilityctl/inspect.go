package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/liamcoop/eligibility/internal/bootstrap"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Load the configured bundle and print what it contains",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			bundle, err := bootstrap.LoadBundle(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Bundle:     %s\n", bundle.Describe())
			fmt.Fprintf(out, "Model type: %s\n", bundle.Documents.Model.ModelType)
			fmt.Fprintf(out, "Intercept:  %v\n\n", bundle.Classifier.Intercept)

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FEATURE\tMIN\tMAX\tCOEFFICIENT")
			for i, name := range bundle.Documents.Features {
				fmt.Fprintf(tw, "%s\t%v\t%v\t%v\n", name, bundle.Params.Min[i], bundle.Params.Max[i], bundle.Classifier.Coefficients[i])
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if md := bundle.Documents.Metadata; md != nil {
				fmt.Fprintf(out, "\nAlgorithm:  %s\n", md.Algorithm)
				if md.Version != "" {
					fmt.Fprintf(out, "Version:    %s\n", md.Version)
				}
				if p := md.Performance; p != nil {
					fmt.Fprintf(out, "Accuracy %.4f  Precision %.4f  Recall %.4f  F1 %.4f  ROC AUC %.4f\n",
						p.Accuracy, p.Precision, p.Recall, p.F1Score, p.ROCAUC)
				}
			}
			return nil
		},
	}
}
