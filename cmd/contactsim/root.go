package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chazu/contactkit/pkg/contact"
)

// options are the flags shared by every subcommand.
type options struct {
	logLevel   string
	configPath string
	workers    int
	cells      int
	kernel     string

	logger *slog.Logger
	cfg    contact.Config
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "contactsim",
		Short:        "Run contact scenarios through the barrier contact form",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := parseLevel(opts.logLevel)
			if err != nil {
				return err
			}
			opts.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: lvl}))

			opts.cfg = contact.DefaultConfig()
			if opts.configPath != "" {
				if opts.cfg, err = contact.LoadConfig(opts.configPath); err != nil {
					return err
				}
				opts.logger.Debug("loaded config", "path", opts.configPath)
			}
			if cmd.Flags().Changed("workers") {
				opts.cfg.Workers = opts.workers
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVarP(&opts.configPath, "config", "c", "", "contact config YAML file")
	pf.IntVar(&opts.workers, "workers", 0, "worker goroutines, 0 = GOMAXPROCS")
	pf.IntVar(&opts.cells, "cells", 0, "marching cubes cells per solid, 0 = scenario resolution")
	pf.StringVar(&opts.kernel, "kernel", "sdfx", "solid kernel (sdfx, manifold)")

	root.AddCommand(newRunCmd(opts), newCheckCmd(opts))
	return root
}
