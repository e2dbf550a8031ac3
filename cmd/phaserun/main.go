// Command phaserun runs phasetest test groups from the command line or as a
// server re-running them on schedules.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nomis52/phasetest/buildinfo"
	"github.com/nomis52/phasetest/config"
	"github.com/nomis52/phasetest/suites"
	"github.com/nomis52/phasetest/suites/demo"
)

// Exit codes of phaserun.
const (
	ExitCodeSuccess = 0
	// ExitCodeFailed means every run finished and at least one test failed.
	ExitCodeFailed = 1
	// ExitCodeError means phaserun could not run or a run was aborted.
	ExitCodeError = 2
)

// errTestsFailed is returned by run when a test group did not pass.
var errTestsFailed = errors.New("test groups failed")

func main() {
	catalog := suites.NewCatalog()
	if err := demo.Register(catalog); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(ExitCodeError)
	}

	if err := newRootCmd(catalog).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitCodeSuccess
	case errors.Is(err, errTestsFailed):
		return ExitCodeFailed
	default:
		return ExitCodeError
	}
}

// newRootCmd builds the phaserun command tree around catalog.
func newRootCmd(catalog *suites.Catalog) *cobra.Command {
	root := &cobra.Command{
		Use:   "phaserun",
		Short: "Run phasetest test groups",
		Long: `phaserun runs test groups through the phasetest engine and reports
their verdicts. It can also serve an HTTP API running them on demand
and on cron schedules.`,
		Version:       buildinfo.Get().Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(`{{printf "phaserun version %s\n" .Version}}`)
	root.PersistentFlags().StringP("config", "c", "", "Path to config file")

	root.AddCommand(
		newRunCmd(catalog),
		newListCmd(catalog),
		newServeCmd(catalog),
		newValidateCmd(catalog),
		newVersionCmd(),
	)
	return root
}

// loadConfig loads the file named by --config, or the defaults without one.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, err
	}
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func newListCmd(catalog *suites.Catalog) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the test groups that can be run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range catalog.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newValidateCmd(catalog *suites.Catalog) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [group...]",
		Short: "Check the config file and prepare test groups without running them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			r := newRunner(cfg, logger, io.Discard, io.Discard)
			names := namesOrAll(catalog, args)
			for _, name := range names {
				group, err := catalog.New(name)
				if err != nil {
					return err
				}
				if err := r.Validate(group); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Validated %d test groups\n", len(names))
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build properties of phaserun",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), buildinfo.Get())
		},
	}
}

func namesOrAll(catalog *suites.Catalog, names []string) []string {
	if len(names) == 0 {
		return catalog.Names()
	}
	return names
}
