package main

import (
	"github.com/hyperjump/eiga/internal/cli"
	"github.com/spf13/cobra"
)

func newRunsCmd(o *rootOptions) *cobra.Command {
	var experiment, output string
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect training runs",
	}
	cmd.PersistentFlags().StringVarP(&output, "output", "o", "text", "output format: text or json")

	latest := &cobra.Command{
		Use:   "latest",
		Short: "Show the most recent run of an experiment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.showRun(cmd, output, func(c *Components, exp string) (string, error) {
				if experiment != "" {
					exp = experiment
				}
				run, err := c.Registry.LatestRun(cmd.Context(), exp)
				if err != nil {
					return "", err
				}
				return run.ID, nil
			})
		},
	}
	latest.Flags().StringVar(&experiment, "experiment", "", "experiment name (default model.experiment)")

	show := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.showRun(cmd, output, func(*Components, string) (string, error) { return args[0], nil })
		},
	}
	cmd.AddCommand(latest, show)
	return cmd
}

// showRun resolves a run id with pick and prints the run.
func (o *rootOptions) showRun(cmd *cobra.Command, output string, pick func(c *Components, experiment string) (string, error)) error {
	format, err := cli.ParseOutputFormat(output)
	if err != nil {
		return err
	}
	cfg, _, logger, err := o.setup()
	if err != nil {
		return err
	}
	defer logger.Sync()
	components, err := initializeComponents(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()

	id, err := pick(components, cfg.Model.Experiment)
	if err != nil {
		return err
	}
	run, err := components.Registry.GetRun(cmd.Context(), id)
	if err != nil {
		return err
	}
	return cli.WriteRun(cmd.OutOrStdout(), run, format)
}
