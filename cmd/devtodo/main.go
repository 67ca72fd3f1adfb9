/* Copyright (c) 2025 Ben Boeckel <mathstuf@gmail.com>
 * SPDX-License-Identifier: MIT OR Apache-2.0 */
package main

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mathstuf/devtodo/internal/config"
	"github.com/mathstuf/devtodo/internal/logger"
	"github.com/mathstuf/devtodo/internal/service"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

var (
	configPath string
	verbosity  int
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "devtodo [target...]",
		Short:        "Sync issues and merge requests into local todo documents",
		Long:         "devtodo queries code hosting platforms for open issues and pull/merge\nrequests and mirrors them as iCalendar VTODO documents on disk.",
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			return service.New(cfg, log).Run(cmd.Context(), args)
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "path to the configuration file")
	root.PersistentFlags().CountVarP(&verbosity, "debug", "d", "increase logging verbosity (repeatable)")

	root.AddCommand(newServeCommand())

	return root
}

func setup() (config.Config, zerolog.Logger, error) {
	log := logger.New(verbosity)
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, log, err
	}
	return cfg, log, nil
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(dir, "devtodo", "config.yaml")
}
