// Package config provides configuration management for autotyper. The file
// only supplies startup defaults; runtime changes made through the control
// surfaces are never written back.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/adrg/xdg"

	"autotyper/internal/engine"
	"autotyper/internal/input"
	"autotyper/internal/settings"
)

const appName = "autotyper"

// Backend names accepted in [general] backend
const (
	BackendAuto   = "auto"
	BackendNative = "native"
	BackendDryRun = "dry-run"
)

// Environment variables that override file values
const (
	EnvAPIToken = "AUTOTYPER_API_TOKEN"
	EnvBotToken = "AUTOTYPER_BOT_TOKEN"
)

// Config represents the application configuration
type Config struct {
	General GeneralConfig `toml:"general" json:"general" yaml:"general"`
	Typing  TypingConfig  `toml:"typing" json:"typing" yaml:"typing"`

	// Speeds maps a profile name to its [min, max] delay in seconds
	Speeds map[string][]float64 `toml:"speeds" json:"speeds" yaml:"speeds"`

	Layouts LayoutsConfig `toml:"layouts" json:"layouts" yaml:"layouts"`
	Bot     BotConfig     `toml:"bot" json:"bot" yaml:"bot"`
	Hotkeys HotkeysConfig `toml:"hotkeys" json:"hotkeys" yaml:"hotkeys"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	// APIAddr is the listen address of the HTTP control API
	APIAddr string `toml:"api_addr" json:"api_addr" yaml:"api_addr"`

	// APIToken is an optional bearer token for API requests
	APIToken string `toml:"api_token" json:"api_token,omitempty" yaml:"api_token,omitempty"`

	// Backend selects the input backend: "auto", "native" or "dry-run"
	Backend string `toml:"backend" json:"backend" yaml:"backend"`

	// LogFile overrides the log file path; "none" disables file logging
	LogFile string `toml:"log_file" json:"log_file,omitempty" yaml:"log_file,omitempty"`

	// KeepAwake blocks display and system sleep while a run is typing
	KeepAwake bool `toml:"keep_awake" json:"keep_awake" yaml:"keep_awake"`
}

// TypingConfig holds the initial typing settings. Times are in seconds.
type TypingConfig struct {
	Speed          string  `toml:"speed" json:"speed" yaml:"speed"`
	ErrorChance    float64 `toml:"error_chance" json:"error_chance" yaml:"error_chance"`
	CustomDelay    float64 `toml:"custom_delay" json:"custom_delay" yaml:"custom_delay"`
	ErrorsEnabled  bool    `toml:"errors_enabled" json:"errors_enabled" yaml:"errors_enabled"`
	ContinueMode   bool    `toml:"continue_mode" json:"continue_mode" yaml:"continue_mode"`
	MemoryEnabled  bool    `toml:"memory_enabled" json:"memory_enabled" yaml:"memory_enabled"`
	ParsingEnabled bool    `toml:"parsing_enabled" json:"parsing_enabled" yaml:"parsing_enabled"`

	// PopTimeout is how long a run waits on an empty queue between checks
	PopTimeout float64 `toml:"pop_timeout" json:"pop_timeout" yaml:"pop_timeout"`

	// ErrorPause is the fixed pause around a simulated mistake
	ErrorPause float64 `toml:"error_pause" json:"error_pause" yaml:"error_pause"`
}

// LayoutsConfig names the OS keyboard layout per language
type LayoutsConfig struct {
	English string `toml:"english" json:"english" yaml:"english"`
	Russian string `toml:"russian" json:"russian" yaml:"russian"`

	// Shifted maps a layout id to characters typed as Shift+key on it
	Shifted map[string]map[string]string `toml:"shifted" json:"shifted" yaml:"shifted"`
}

// BotConfig configures the Telegram front end
type BotConfig struct {
	Token           string  `toml:"token" json:"token,omitempty" yaml:"token,omitempty"`
	AuthorizedUsers []int64 `toml:"authorized_users" json:"authorized_users" yaml:"authorized_users"`

	// APIURL is the control API the bot talks to; empty means the local one
	APIURL string `toml:"api_url" json:"api_url,omitempty" yaml:"api_url,omitempty"`

	// TypedTail is how many typed words the bot shows
	TypedTail int `toml:"typed_tail" json:"typed_tail" yaml:"typed_tail"`
}

// HotkeysConfig contains global hotkeys (e.g. "Ctrl+Alt+Shift+Esc")
type HotkeysConfig struct {
	// Stop is the emergency hotkey that stops the active run
	Stop string `toml:"stop" json:"stop,omitempty" yaml:"stop,omitempty"`

	// Toggle starts a run when idle and stops it when running
	Toggle string `toml:"toggle" json:"toggle,omitempty" yaml:"toggle,omitempty"`
}

// DefaultConfig returns a new Config with sensible defaults
func DefaultConfig() *Config {
	speeds := make(map[string][]float64)
	for name, b := range settings.DefaultProfiles() {
		speeds[name] = []float64{b.Min.Seconds(), b.Max.Seconds()}
	}

	shifted := make(map[string]map[string]string)
	for layout, keys := range input.DefaultShiftedKeys() {
		m := make(map[string]string, len(keys))
		for from, to := range keys {
			m[string(from)] = string(to)
		}
		shifted[string(layout)] = m
	}

	return &Config{
		General: GeneralConfig{
			APIAddr:   "127.0.0.1:5000",
			Backend:   BackendAuto,
			KeepAwake: true,
		},
		Typing: TypingConfig{
			Speed:          settings.DefaultSpeed,
			ErrorChance:    1,
			ParsingEnabled: true,
			PopTimeout:     engine.DefaultPopTimeout.Seconds(),
			ErrorPause:     engine.DefaultErrorPause.Seconds(),
		},
		Speeds: speeds,
		Layouts: LayoutsConfig{
			English: string(input.LayoutEnglish),
			Russian: string(input.LayoutRussian),
			Shifted: shifted,
		},
		Bot: BotConfig{
			TypedTail: 20,
		},
		Hotkeys: HotkeysConfig{
			Stop: "Ctrl+Alt+Shift+Esc",
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/autotyper/config.toml, creating the
// directory if needed
func DefaultPath() (string, error) {
	return xdg.ConfigFile(filepath.Join(appName, "config.toml"))
}

// ApplyEnvOverrides replaces secrets with values from the environment
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv(EnvAPIToken); v != "" {
		c.General.APIToken = v
	}
	if v := os.Getenv(EnvBotToken); v != "" {
		c.Bot.Token = v
	}
}

// Validate checks every section and reports all problems at once
func (c *Config) Validate() error {
	var errs []error

	if c.General.APIAddr == "" {
		errs = append(errs, errors.New("general.api_addr is empty"))
	}
	switch c.General.Backend {
	case BackendAuto, BackendNative, BackendDryRun:
	default:
		errs = append(errs, fmt.Errorf("general.backend %q: want %s, %s or %s",
			c.General.Backend, BackendAuto, BackendNative, BackendDryRun))
	}

	profiles, err := c.SpeedProfiles()
	if err != nil {
		errs = append(errs, err)
	} else if _, ok := profiles[c.Typing.Speed]; !ok {
		errs = append(errs, fmt.Errorf("typing.speed %q is not in [speeds]", c.Typing.Speed))
	}

	if c.Typing.ErrorChance < 0 || c.Typing.ErrorChance > settings.MaxErrorChance {
		errs = append(errs, fmt.Errorf("typing.error_chance %v: must be 0..%v", c.Typing.ErrorChance, settings.MaxErrorChance))
	}
	if c.Typing.CustomDelay < 0 || seconds(c.Typing.CustomDelay) > settings.MaxCustomDelay {
		errs = append(errs, fmt.Errorf("typing.custom_delay %v: must be 0..%v", c.Typing.CustomDelay, settings.MaxCustomDelay.Seconds()))
	}
	if c.Typing.PopTimeout <= 0 {
		errs = append(errs, fmt.Errorf("typing.pop_timeout %v: must be positive", c.Typing.PopTimeout))
	}
	if c.Typing.ErrorPause < 0 {
		errs = append(errs, fmt.Errorf("typing.error_pause %v: must not be negative", c.Typing.ErrorPause))
	}

	if c.Layouts.English == "" || c.Layouts.Russian == "" {
		errs = append(errs, errors.New("layouts.english and layouts.russian must be set"))
	}
	if _, err := c.ShiftedKeys(); err != nil {
		errs = append(errs, err)
	}

	if c.Bot.TypedTail < 0 {
		errs = append(errs, fmt.Errorf("bot.typed_tail %d: must not be negative", c.Bot.TypedTail))
	}

	return errors.Join(errs...)
}

// SpeedProfiles converts [speeds] into settings bounds
func (c *Config) SpeedProfiles() (map[string]settings.Bounds, error) {
	if len(c.Speeds) == 0 {
		return nil, errors.New("[speeds] is empty")
	}
	profiles := make(map[string]settings.Bounds, len(c.Speeds))
	for name, pair := range c.Speeds {
		if len(pair) != 2 {
			return nil, fmt.Errorf("speeds.%s: want [min, max], got %d values", name, len(pair))
		}
		if pair[0] < 0 || pair[1] < pair[0] {
			return nil, fmt.Errorf("speeds.%s: want 0 <= min <= max, got %v", name, pair)
		}
		profiles[name] = settings.Bounds{Min: seconds(pair[0]), Max: seconds(pair[1])}
	}
	return profiles, nil
}

// ShiftedKeys converts [layouts.shifted] into the engine's lookup table
func (c *Config) ShiftedKeys() (input.ShiftedKeys, error) {
	keys := make(input.ShiftedKeys, len(c.Layouts.Shifted))
	for layout, m := range c.Layouts.Shifted {
		table := make(map[rune]rune, len(m))
		for from, to := range m {
			f, fn := utf8.DecodeRuneInString(from)
			t, tn := utf8.DecodeRuneInString(to)
			if fn == 0 || fn != len(from) || tn == 0 || tn != len(to) {
				return nil, fmt.Errorf("layouts.shifted.%s: %q = %q must map one character to one character", layout, from, to)
			}
			table[f] = t
		}
		keys[input.Layout(layout)] = table
	}
	return keys, nil
}

// EngineOptions returns the engine tuning from [typing] and [layouts]
func (c *Config) EngineOptions() (engine.Options, error) {
	keys, err := c.ShiftedKeys()
	if err != nil {
		return engine.Options{}, err
	}
	return engine.Options{
		PopTimeout:    seconds(c.Typing.PopTimeout),
		ErrorPause:    seconds(c.Typing.ErrorPause),
		EnglishLayout: input.Layout(c.Layouts.English),
		RussianLayout: input.Layout(c.Layouts.Russian),
		ShiftedKeys:   keys,
	}, nil
}

// Apply loads the initial typing settings into a store
func (c *Config) Apply(store *settings.Store) error {
	profiles, err := c.SpeedProfiles()
	if err != nil {
		return err
	}
	if err := store.SetProfiles(profiles); err != nil {
		return err
	}
	if err := store.SetSpeed(c.Typing.Speed); err != nil {
		return err
	}
	if err := store.SetErrorChance(c.Typing.ErrorChance); err != nil {
		return err
	}
	if err := store.SetCustomDelay(seconds(c.Typing.CustomDelay)); err != nil {
		return err
	}
	store.SetErrorsEnabled(c.Typing.ErrorsEnabled)
	store.SetContinueMode(c.Typing.ContinueMode)
	store.SetMemoryEnabled(c.Typing.MemoryEnabled)
	store.SetParsingEnabled(c.Typing.ParsingEnabled)
	return nil
}

// BotAPIURL returns the API address the bot should use
func (c *Config) BotAPIURL() string {
	if c.Bot.APIURL != "" {
		return c.Bot.APIURL
	}
	return "http://" + c.General.APIAddr
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}
