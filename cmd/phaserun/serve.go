package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nomis52/phasetest/server"
	"github.com/nomis52/phasetest/suites"
)

func newServeCmd(catalog *suites.Catalog) *cobra.Command {
	var addr, spec string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run test groups on schedules",
		Example: `  phaserun serve -c phaserun.yaml
  phaserun serve --addr :9090 --schedule 'arithmetic,strings:0 2 * * *;steps:*/15 * * * *'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			opts := []server.Option{
				server.WithLogger(logger),
				server.WithStreams(cmd.ErrOrStderr(), cmd.OutOrStdout()),
			}
			if addr != "" {
				opts = append(opts, server.WithListenAddr(addr))
			}
			if spec != "" {
				opts = append(opts, server.WithSchedule(spec))
			}
			srv, err := server.New(cfg, catalog, opts...)
			if err != nil {
				return err
			}

			// Set up signal handling for graceful shutdown
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address, overrides the config file")
	cmd.Flags().StringVar(&spec, "schedule", "", "Schedules in the form 'group1,group2:cron;group3:cron'")
	return cmd
}
