package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"autotyper/internal/bot"
	"autotyper/internal/config"
	"autotyper/internal/logging"
	"autotyper/internal/network"
)

func newBotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot against a running service",
		Args:  cobra.NoArgs,
		RunE:  runBotCmd,
	}
}

func runBotCmd(_ *cobra.Command, _ []string) error {
	cfgMgr, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := cfgMgr.Get()

	if _, err := logging.Setup(cfg.General.LogFile); err != nil {
		log.Printf("Warning: file logging disabled: %v", err)
	}
	defer logging.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	u, tok := endpoint(cfg)
	return runBot(ctx, cfg, u, tok)
}

// runBot serves Telegram until ctx is done. Run-finished notifications come
// from the service's websocket stream.
func runBot(ctx context.Context, cfg *config.Config, baseURL, token string) error {
	tg, err := bot.Connect(cfg.Bot.Token)
	if err != nil {
		return err
	}
	if len(cfg.Bot.AuthorizedUsers) == 0 {
		log.Printf("Bot: Warning: no authorized_users configured, every request will be denied")
	}

	b := bot.New(tg, network.NewClient(baseURL, token), bot.Options{
		AuthorizedUsers: cfg.Bot.AuthorizedUsers,
		TypedTail:       cfg.Bot.TypedTail,
	})

	ws := network.NewWSClient(baseURL, token)
	ws.OnEvent = b.HandleEvent
	ws.Start()
	defer ws.Close()

	bot.Serve(ctx, b, tg)
	return nil
}
