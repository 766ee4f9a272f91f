package main

import (
	"errors"

	"github.com/hyperjump/eiga/internal/cli"
	"github.com/hyperjump/eiga/internal/dataset"
	"github.com/hyperjump/eiga/internal/trainer"
	"github.com/spf13/cobra"
)

func newTrainCmd(o *rootOptions) *cobra.Command {
	var (
		datasetPath string
		format      string
		name        string
		experiment  string
		alias       string
		maxFeatures int
		noAlias     bool
		output      string
	)
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fit a model from the dataset and register it as a new version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			outFormat, err := cli.ParseOutputFormat(output)
			if err != nil {
				return err
			}
			cfg, _, logger, err := o.setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			if datasetPath == "" {
				datasetPath = cfg.Dataset.Path
			}
			if datasetPath == "" {
				return errors.New("no dataset: pass --dataset or set dataset.path")
			}
			if format == "" {
				format = cfg.Dataset.Format
			}
			if name == "" {
				name = cfg.Model.Name
			}
			if experiment == "" {
				experiment = cfg.Model.Experiment
			}
			if maxFeatures <= 0 {
				maxFeatures = cfg.Model.MaxFeatures
			}
			if alias == "" && !noAlias {
				alias = cfg.Model.Alias
			}

			items, err := dataset.Load(datasetPath, dataset.Options{Format: format})
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			components, err := initializeComponents(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer components.Close()

			res, err := trainer.New(components.Registry, components.Store, trainer.WithLogger(logger)).
				Train(ctx, items, trainer.Options{
					ModelName:   name,
					Experiment:  experiment,
					MaxFeatures: maxFeatures,
					Alias:       alias,
					Source:      datasetPath,
				})
			if err != nil {
				return err
			}
			return cli.WriteVersion(cmd.OutOrStdout(), res.Version, outFormat)
		},
	}
	cmd.Flags().StringVar(&datasetPath, "dataset", "", "processed dataset (default dataset.path)")
	cmd.Flags().StringVar(&format, "format", "", "dataset format (default dataset.format)")
	cmd.Flags().StringVar(&name, "name", "", "registered model name (default model.name)")
	cmd.Flags().StringVar(&experiment, "experiment", "", "experiment to record the run under (default model.experiment)")
	cmd.Flags().StringVar(&alias, "alias", "", "alias to point at the new version (default model.alias)")
	cmd.Flags().BoolVar(&noAlias, "no-alias", false, "register without moving any alias")
	cmd.Flags().IntVar(&maxFeatures, "max-features", 0, "vocabulary size cap (default model.max_features)")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	return cmd
}
