package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/beacon/internal/config"
)

// NewConfigCommand groups the configuration subcommands.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Check and print the effective configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration",
		Long: `Load the configuration file and BEACON_* environment variables and check
the result against the schema. Exits non-zero when it is invalid or when a
live transport would be missing credentials.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigValidate(rootOpts, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "show",
		Short:         "Print the effective configuration as YAML",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(rootOpts, cmd)
		},
	})
	return cmd
}

func runConfigValidate(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cfg, err := loadConfig(opts)
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, "invalid config", err.Error())
		return err
	}
	if err := cfg.RequireCredentials(); err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid config", err)
	}
	return formatter.Result(map[string]bool{"valid": true}, "config valid")
}

func runConfigShow(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cfg, err := loadConfig(opts)
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, "invalid config", err.Error())
		return err
	}
	cfg = redact(cfg)

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to encode config", err)
	}
	return formatter.Result(cfg, strings.TrimRight(string(out), "\n"))
}

func redact(cfg config.Config) config.Config {
	if cfg.Secret != "" {
		cfg.Secret = "REDACTED"
	}
	return cfg
}
