package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/hyperjump/eiga/internal/cli"
	"github.com/hyperjump/eiga/internal/config"
	"github.com/hyperjump/eiga/internal/registry"
	"github.com/spf13/cobra"
)

func newModelsCmd(o *rootOptions) *cobra.Command {
	var name, output string
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Inspect registered model versions and aliases",
	}
	cmd.PersistentFlags().StringVar(&name, "name", "", "registered model name (default model.name)")
	cmd.PersistentFlags().StringVarP(&output, "output", "o", "text", "output format: text or json")

	// withRegistry runs fn with the loaded config, resolved model name, and an open registry.
	withRegistry := func(cmd *cobra.Command, fn func(cfg *config.Config, cfgPath, model string, reg registry.Registry, format cli.OutputFormat) error) error {
		format, err := cli.ParseOutputFormat(output)
		if err != nil {
			return err
		}
		cfg, cfgPath, logger, err := o.setup()
		if err != nil {
			return err
		}
		defer logger.Sync()
		components, err := initializeComponents(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer components.Close()
		model := name
		if model == "" {
			model = cfg.Model.Name
		}
		return fn(cfg, cfgPath, model, components.Registry, format)
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List versions, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withRegistry(cmd, func(_ *config.Config, _, model string, reg registry.Registry, format cli.OutputFormat) error {
					versions, err := reg.ListVersions(cmd.Context(), model)
					if err != nil {
						return err
					}
					return cli.WriteVersions(cmd.OutOrStdout(), versions, format)
				})
			},
		},
		&cobra.Command{
			Use:   "show <version|alias>",
			Short: "Show one version",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRegistry(cmd, func(_ *config.Config, _, model string, reg registry.Registry, format cli.OutputFormat) error {
					mv, err := reg.Resolve(cmd.Context(), model, args[0])
					if err != nil {
						return err
					}
					return cli.WriteVersion(cmd.OutOrStdout(), mv, format)
				})
			},
		},
		newAliasCmd(withRegistry),
		&cobra.Command{
			Use:   "use <version|alias>",
			Short: "Pin the reference the server loads and save it to the config file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRegistry(cmd, func(cfg *config.Config, cfgPath, model string, reg registry.Registry, _ cli.OutputFormat) error {
					if cfgPath == "" {
						return errors.New("no config file to update; pass --config")
					}
					mv, err := reg.Resolve(cmd.Context(), model, args[0])
					if err != nil {
						return err
					}
					cfg.Model.Name = model
					cfg.Model.Ref = args[0]
					if err := config.Save(cfgPath, cfg); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "serving %s (version %d)\n", cfg.Model.URI(), mv.Version)
					return nil
				})
			},
		},
	)
	return cmd
}

type registryRunner func(cmd *cobra.Command, fn func(cfg *config.Config, cfgPath, model string, reg registry.Registry, format cli.OutputFormat) error) error

func newAliasCmd(withRegistry registryRunner) *cobra.Command {
	var remove bool
	cmd := &cobra.Command{
		Use:   "alias <alias> [version]",
		Short: "Point an alias at a version, or remove it with --delete",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if remove != (len(args) == 1) {
				return errors.New("pass <alias> <version>, or <alias> --delete")
			}
			return withRegistry(cmd, func(_ *config.Config, _, model string, reg registry.Registry, _ cli.OutputFormat) error {
				alias := args[0]
				if remove {
					if err := reg.DeleteAlias(cmd.Context(), model, alias); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "removed alias %q\n", alias)
					return nil
				}
				version, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("version must be a number: %q", args[1])
				}
				if err := reg.SetAlias(cmd.Context(), model, alias, version); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", registry.FormatURI(model, alias), registry.FormatURI(model, args[1]))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&remove, "delete", false, "remove the alias")
	return cmd
}
