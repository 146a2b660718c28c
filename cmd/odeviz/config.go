package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/san-kum/odeviz/internal/config"
)

const defaultConfigFile = "odeviz.yaml"

func (a *cli) configCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "write or check a configuration file",
	}

	initCmd := &cobra.Command{
		Use:   "init [file]",
		Short: "write the effective configuration to a yaml file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.configPath(args)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			} else if !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			if err := config.Save(path, a.cfg); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}

	checkCmd := &cobra.Command{
		Use:   "check [file]",
		Short: "validate a yaml configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.configPath(args)
			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("read config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s ok\n", path)
			fmt.Fprintf(out, "  archive  %s\n", cfg.DBPath(a.root))
			fmt.Fprintf(out, "  initial  y0=%g yp0=%g\n", cfg.Defaults.Y0, cfg.Defaults.YP0)
			fmt.Fprintf(out, "  time     [%g, %g]\n", cfg.Defaults.TMin, cfg.Defaults.TMax)
			return nil
		},
	}

	configCmd.AddCommand(initCmd, checkCmd)
	return configCmd
}

// configPath prefers an explicit argument, then --config.
func (a *cli) configPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	if a.configFile != "" {
		return a.configFile
	}
	return defaultConfigFile
}
