package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hyperjump/eiga/internal/dataset"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newPrepareCmd(o *rootOptions) *cobra.Command {
	var input, format, output string
	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Convert a raw catalog into the processed item_id,title table",
		Example: `  eiga prepare --input data/raw/ml-100k/u.item --output data/processed/items.csv
  eiga prepare --input movies.xlsx --format xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, logger, err := o.setup()
			if err != nil {
				return err
			}
			defer logger.Sync()
			if format == "" {
				format = cfg.Dataset.Format
			}
			items, err := dataset.Load(input, dataset.Options{Format: format})
			if err != nil {
				return err
			}
			clean, dropped := dataset.Clean(items)

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
					return err
				}
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				w = f
			}
			if err := dataset.WriteCSV(w, clean); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			logger.Info("dataset prepared",
				zap.String("input", input),
				zap.Int("items", len(clean)),
				zap.Int("dropped", dropped),
				zap.String("output", output),
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "raw catalog file")
	cmd.Flags().StringVar(&format, "format", "", "input format: auto, csv, tsv, movielens, xlsx")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output CSV path (- for stdout)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
