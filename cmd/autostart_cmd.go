package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"autotyper/internal/autostart"
)

func newAutostartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autostart",
		Short: "Start autotyper on login",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "enable",
			Short: "Run 'autotyper serve --tray' on login",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				args := []string{"serve", "--tray"}
				if configPath != "" {
					abs, err := filepath.Abs(configPath)
					if err != nil {
						return err
					}
					args = append(args, "--config", abs)
				}
				if err := autostart.Enable(args...); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "autostart enabled")
				return err
			},
		},
		&cobra.Command{
			Use:   "disable",
			Short: "Remove the login entry",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := autostart.Disable(); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "autostart disabled")
				return err
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Report whether autostart is enabled",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				state := "disabled"
				if autostart.IsEnabled() {
					state = "enabled"
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "autostart %s\n", state)
				return err
			},
		},
	)
	return cmd
}
