// autotyper - typing orchestration engine
// Types queued words into the focused window with human-like pacing and
// exposes the controls over HTTP, websocket, Telegram, tray and hotkeys.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"autotyper/internal/config"
)

var version = "0.1.0"

var (
	configPath string
	apiURL     string
	apiToken   string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "autotyper",
		Short:         "Typing orchestration engine",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runServeCmd,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: $XDG_CONFIG_HOME/autotyper/config.toml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "control API URL for client commands (default: from config)")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", "", "API bearer token (default: from config or "+config.EnvAPIToken+")")
	addServeFlags(rootCmd)

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newBotCmd())
	rootCmd.AddCommand(newRemoteCmds()...)
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newAutostartCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "autotyper version %s\n", version)
			return err
		},
	}
}

// loadConfig reads the config file named by --config
func loadConfig() (*config.Manager, error) {
	mgr, err := config.NewManager(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize config: %w", err)
	}
	if err := mgr.Load(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return mgr, nil
}

// endpoint resolves the API URL and token for client commands
func endpoint(cfg *config.Config) (string, string) {
	u, tok := cfg.BotAPIURL(), cfg.General.APIToken
	if apiURL != "" {
		u = apiURL
	}
	if apiToken != "" {
		tok = apiToken
	}
	return u, tok
}
