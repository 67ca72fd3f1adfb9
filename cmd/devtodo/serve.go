/* Copyright (c) 2025 Ben Boeckel <mathstuf@gmail.com>
 * SPDX-License-Identifier: MIT OR Apache-2.0 */
package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mathstuf/devtodo/internal/jobs"
	"github.com/mathstuf/devtodo/internal/service"
	"github.com/mathstuf/devtodo/internal/web"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run as a daemon, syncing on a schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			if cfg.SyncCron == "" {
				return errors.New("serve requires sync_cron in the configuration")
			}

			svc := service.New(cfg, log)

			cr, err := jobs.NewCron(cfg.SyncCron, log, svc)
			if err != nil {
				return err
			}
			cr.Start()
			defer cr.Stop()

			router := web.NewRouter(log, svc)
			httpErr := make(chan error, 1)
			go func() { httpErr <- router.Run(cfg.HTTPAddr) }()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

			log.Info().Str("addr", cfg.HTTPAddr).Str("cron", cfg.SyncCron).Msg("daemon started")
			select {
			case <-stop:
				log.Info().Msg("shutting down")
				return nil
			case err := <-httpErr:
				return err
			}
		},
	}
}
