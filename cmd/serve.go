package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"autotyper/internal/api"
	"autotyper/internal/config"
	"autotyper/internal/control"
	"autotyper/internal/engine"
	"autotyper/internal/hotkey"
	"autotyper/internal/input"
	"autotyper/internal/logging"
	"autotyper/internal/osutils"
	"autotyper/internal/queue"
	"autotyper/internal/settings"
	"autotyper/internal/tray"
	"autotyper/internal/typedlog"
)

var (
	serveAddr   string
	serveDryRun bool
	serveTray   bool
	serveBot    bool
)

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&serveAddr, "addr", "", "API listen address (default: from config)")
	cmd.Flags().BoolVar(&serveDryRun, "dry-run", false, "print keystrokes instead of injecting them")
	cmd.Flags().BoolVar(&serveTray, "tray", false, "show the system tray menu")
	cmd.Flags().BoolVar(&serveBot, "bot", true, "run the Telegram bot when a bot token is configured")
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the typing engine and its control API (default)",
		Args:  cobra.NoArgs,
		RunE:  runServeCmd,
	}
	addServeFlags(cmd)
	return cmd
}

func runServeCmd(_ *cobra.Command, _ []string) error {
	cfgMgr, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := cfgMgr.Get()

	logPath, err := logging.Setup(cfg.General.LogFile)
	if err != nil {
		log.Printf("Warning: file logging disabled: %v", err)
	} else if logPath != "" {
		log.Printf("Logging to %s", logPath)
	}
	defer logging.Close()

	addr := cfg.General.APIAddr
	if serveAddr != "" {
		addr = serveAddr
	}
	token := cfg.General.APIToken
	if apiToken != "" {
		token = apiToken
	}

	backend, err := newBackend(cfg, serveDryRun)
	if err != nil {
		return err
	}

	store := settings.New()
	if err := cfg.Apply(store); err != nil {
		return fmt.Errorf("failed to apply config: %w", err)
	}
	opts, err := cfg.EngineOptions()
	if err != nil {
		return err
	}
	q := queue.New()
	typed := typedlog.New()
	eng := engine.New(backend, store, q, typed, opts)
	svc := control.New(store, q, typed, eng)

	if cfg.General.KeepAwake {
		awake := osutils.NewInhibitor()
		eng.AddEventSink(func(ev engine.Event) {
			switch ev.Type {
			case engine.EventRunStarted:
				awake.Hold()
			case engine.EventRunFinished:
				awake.Release()
			}
		})
		defer awake.Release()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	apiServer := api.NewServer(svc, token)
	serverErr := make(chan error, 1)
	go func() {
		if err := apiServer.Start(addr); err != nil {
			serverErr <- err
			stop()
		}
	}()

	// Hotkeys
	hkMgr := hotkey.NewManager()
	registerHotkeys(hkMgr, cfg, svc)
	if err := hkMgr.Start(); err != nil {
		log.Printf("Warning: Hotkey engine failed to start: %v", err)
	}

	// Live config: speed profiles, shifted keys and hotkeys follow the file.
	// Runtime settings changed through the API are left alone.
	cfgMgr.RegisterChangeCallback(func(c *config.Config) {
		if profiles, err := c.SpeedProfiles(); err == nil {
			if err := store.SetProfiles(profiles); err != nil {
				log.Printf("Config: Speed profiles not applied: %v", err)
			}
		}
		if keys, err := c.ShiftedKeys(); err == nil {
			eng.SetShiftedKeys(keys)
		}
		hkMgr.Clear()
		registerHotkeys(hkMgr, c, svc)
	})
	if err := cfgMgr.Watch(ctx); err != nil {
		log.Printf("Warning: config hot reload disabled: %v", err)
	}

	if serveBot && cfg.Bot.Token != "" {
		go func() {
			if err := runBot(ctx, cfg, "http://"+addr, token); err != nil {
				log.Printf("Bot: %v", err)
			}
		}()
	}

	log.Printf("autotyper %s running. Press Ctrl+C to stop.", version)

	if serveTray {
		t := tray.New(svc, stop)
		svc.OnChange(t.Refresh)
		go func() {
			<-ctx.Done()
			t.Stop()
		}()
		t.Run()
		stop()
	}
	<-ctx.Done()

	var runErr error
	select {
	case runErr = <-serverErr:
	default:
	}

	log.Println("Shutting down...")
	stop()
	if eng.Running() {
		_ = svc.Stop()
	}
	hkMgr.Stop()
	_ = cfgMgr.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("API: shutdown: %v", err)
	}
	return runErr
}

// newBackend picks the input backend named by [general] backend
func newBackend(cfg *config.Config, dryRun bool) (input.Backend, error) {
	name := cfg.General.Backend
	if dryRun {
		name = config.BackendDryRun
	}

	switch name {
	case config.BackendNative:
		if !input.Supported() {
			return nil, fmt.Errorf("backend %q: %w", name, input.ErrUnsupportedPlatform)
		}
		return input.NewInjector(), nil
	case config.BackendAuto:
		if input.Supported() {
			return input.NewInjector(), nil
		}
		log.Printf("Input: Native injection unavailable, using dry-run backend")
	case config.BackendDryRun:
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
	return input.NewDryRun(os.Stdout, input.Layout(cfg.Layouts.English)), nil
}

// registerHotkeys binds the stop and toggle hotkeys to the service
func registerHotkeys(hkMgr *hotkey.Manager, cfg *config.Config, svc *control.Service) {
	debounce := newDebouncer(500 * time.Millisecond)

	if err := hkMgr.Register(cfg.Hotkeys.Stop, func() {
		log.Printf("EMERGENCY: Stop hotkey pressed")
		if err := svc.Stop(); err != nil && !errors.Is(err, engine.ErrNotRunning) {
			log.Printf("Hotkey: Stop failed: %v", err)
		}
	}); err != nil {
		log.Printf("Warning: failed to register stop hotkey: %v", err)
	}

	if err := hkMgr.Register(cfg.Hotkeys.Toggle, func() {
		if !debounce() {
			return
		}
		if svc.Engine.Running() {
			if err := svc.Stop(); err != nil {
				log.Printf("Hotkey: Stop failed: %v", err)
			}
			return
		}
		if _, err := svc.Start(); err != nil {
			log.Printf("Hotkey: Start failed: %v", err)
		}
	}); err != nil {
		log.Printf("Warning: failed to register toggle hotkey: %v", err)
	}
}

// newDebouncer returns a func that reports true at most once per interval
func newDebouncer(interval time.Duration) func() bool {
	var (
		mu   sync.Mutex
		last time.Time
	)
	return func() bool {
		mu.Lock()
		defer mu.Unlock()
		if time.Since(last) < interval {
			return false
		}
		last = time.Now()
		return true
	}
}
