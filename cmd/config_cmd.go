package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"autotyper/internal/config"
)

var configInitForce bool

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the config file",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		Args:  cobra.NoArgs,
		RunE:  runConfigInitCmd,
	}
	initCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")

	cmd.AddCommand(
		initCmd,
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file path",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				mgr, err := config.NewManager(configPath)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), mgr.Path())
				return err
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration with secrets redacted",
			Args:  cobra.NoArgs,
			RunE:  runConfigShowCmd,
		},
	)
	return cmd
}

func runConfigInitCmd(cmd *cobra.Command, _ []string) error {
	mgr, err := config.NewManager(configPath)
	if err != nil {
		return err
	}
	if _, err := os.Stat(mgr.Path()); err == nil && !configInitForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", mgr.Path())
	}

	mgr.Set(config.DefaultConfig())
	if err := mgr.Save(); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", mgr.Path())
	return err
}

func runConfigShowCmd(cmd *cobra.Command, _ []string) error {
	mgr, err := loadConfig()
	if err != nil {
		return err
	}

	cfg := *mgr.Get()
	if cfg.General.APIToken != "" {
		cfg.General.APIToken = "REDACTED"
	}
	if cfg.Bot.Token != "" {
		cfg.Bot.Token = "REDACTED"
	}

	data, err := config.Encode(&cfg, mgr.Path())
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
